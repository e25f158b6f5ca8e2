package target

// fakeMemory is an in-process stand-in for a traced child's address space,
// used to exercise the read-modify-write patch recipe without ptrace.
type fakeMemory struct {
	words map[uintptr]uint64
}

func newFakeMemory(addr uintptr, word uint64) *fakeMemory {
	return &fakeMemory{words: map[uintptr]uint64{addr: word}}
}

func (f *fakeMemory) ReadWord(addr uintptr) (uint64, error) {
	return f.words[addr], nil
}

func (f *fakeMemory) WriteWord(addr uintptr, word uint64) error {
	f.words[addr] = word
	return nil
}
