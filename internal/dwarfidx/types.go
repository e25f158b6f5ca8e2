package dwarfidx

import (
	"debug/dwarf"
	"fmt"
)

// TypeKind distinguishes the four shapes of the type graph.
type TypeKind int

const (
	KindName TypeKind = iota
	KindArray
	KindRef
	KindProduct
)

// Member is one field of a KindProduct entry.
type Member struct {
	FieldName      string
	FieldTypeIndex int
	ByteOffset     int64
}

// TypeName is one node of the flat, indexed type graph. Cycles go through
// KindRef entries whose PointeeIndex may be nil (a void pointer).
type TypeName struct {
	Kind TypeKind

	// KindName
	Name     string
	ByteSize int64

	// KindArray
	ElemTypeIndex int
	Counts        []int64

	// KindRef
	PointeeIndex *int

	// KindProduct
	ProductName string
	Members     []Member
}

// typeDecoder materializes the DWARF type graph into a flat, offset-indexed
// table. Memoizing by DIE offset preserves sharing and terminates decoding
// of cyclic graphs that pass through pointer/reference types.
type typeDecoder struct {
	data *dwarf.Data

	// offsetToIndex memoizes entries by DIE offset. Pointer and struct
	// decoding reserve a placeholder slot in it before recursing, which
	// breaks cycles.
	offsetToIndex map[dwarf.Offset]int
	table         []TypeName
}

func newTypeDecoder(data *dwarf.Data) *typeDecoder {
	return &typeDecoder{
		data:          data,
		offsetToIndex: make(map[dwarf.Offset]int),
	}
}

// Table returns the flat type-graph table built so far.
func (d *typeDecoder) Table() []TypeName { return d.table }

func (d *typeDecoder) decodeFromEntry(entry *dwarf.Entry) (TypeName, error) {
	off, ok := entry.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return TypeName{}, fmt.Errorf("dwarfidx: DIE at %v has no DW_AT_type", entry.Offset)
	}
	return d.decodeOffset(off)
}

func (d *typeDecoder) decodeIndexFromEntry(entry *dwarf.Entry) (int, TypeName, error) {
	off, ok := entry.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return 0, TypeName{}, fmt.Errorf("dwarfidx: DIE at %v has no DW_AT_type", entry.Offset)
	}
	idx, err := d.ensureIndex(off)
	if err != nil {
		return 0, TypeName{}, err
	}
	return idx, d.table[idx], nil
}

func (d *typeDecoder) decodeOffset(off dwarf.Offset) (TypeName, error) {
	if idx, ok := d.offsetToIndex[off]; ok {
		return d.table[idx], nil
	}

	r := d.data.Reader()
	r.Seek(off)
	entry, err := r.Next()
	if err != nil {
		return TypeName{}, fmt.Errorf("dwarfidx: reading type DIE at %v: %w", off, err)
	}
	if entry == nil {
		return TypeName{}, fmt.Errorf("dwarfidx: no DIE at %v", off)
	}

	return d.decodeEntry(off, entry)
}

func (d *typeDecoder) decodeEntry(off dwarf.Offset, entry *dwarf.Entry) (TypeName, error) {
	switch entry.Tag {
	case dwarf.TagTypedef, dwarf.TagConstType, dwarf.TagVolatileType:
		// Transparent wrappers: decode through to the underlying type and
		// memoize the wrapper's own offset against the same result so
		// repeated lookups of the typedef short-circuit too.
		inner, err := d.decodeFromEntry(entry)
		if err != nil {
			return TypeName{}, err
		}
		return d.memoize(off, inner), nil

	case dwarf.TagPointerType:
		return d.decodePointer(off, entry)

	case dwarf.TagArrayType:
		return d.decodeArray(off, entry)

	case dwarf.TagStructType, dwarf.TagUnionType:
		return d.decodeProduct(off, entry)

	case dwarf.TagBaseType:
		size, _ := entry.Val(dwarf.AttrByteSize).(int64)
		name, _ := entry.Val(dwarf.AttrName).(string)
		return d.memoize(off, TypeName{Kind: KindName, Name: name, ByteSize: size}), nil

	default:
		name, _ := entry.Val(dwarf.AttrName).(string)
		size, _ := entry.Val(dwarf.AttrByteSize).(int64)
		return d.memoize(off, TypeName{Kind: KindName, Name: name, ByteSize: size}), nil
	}
}

func (d *typeDecoder) decodePointer(off dwarf.Offset, entry *dwarf.Entry) (TypeName, error) {
	// Reserve the slot before recursing so a struct containing a pointer
	// back to itself (or a longer pointer cycle) terminates.
	placeholder := TypeName{Kind: KindRef}
	idx := d.memoizeIndex(off, placeholder)

	pointeeOff, hasPointee := entry.Val(dwarf.AttrType).(dwarf.Offset)
	if !hasPointee {
		d.table[idx] = TypeName{Kind: KindRef, PointeeIndex: nil}
		return d.table[idx], nil
	}

	pointeeIdx, err := d.ensureIndex(pointeeOff)
	if err != nil {
		return TypeName{}, err
	}
	d.table[idx] = TypeName{Kind: KindRef, PointeeIndex: &pointeeIdx}
	return d.table[idx], nil
}

func (d *typeDecoder) decodeArray(off dwarf.Offset, entry *dwarf.Entry) (TypeName, error) {
	elemOff, ok := entry.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return TypeName{}, fmt.Errorf("dwarfidx: array type at %v missing element type", off)
	}
	elemIdx, err := d.ensureIndex(elemOff)
	if err != nil {
		return TypeName{}, err
	}

	var counts []int64
	kids, err := d.children(off)
	if err != nil {
		return TypeName{}, err
	}
	for _, kid := range kids {
		if kid.Tag != dwarf.TagSubrangeType {
			continue
		}
		if count, ok := kid.Val(dwarf.AttrCount).(int64); ok {
			counts = append(counts, count)
		} else if upper, ok := kid.Val(dwarf.AttrUpperBound).(int64); ok {
			counts = append(counts, upper+1)
		}
	}

	return d.memoize(off, TypeName{Kind: KindArray, ElemTypeIndex: elemIdx, Counts: counts}), nil
}

func (d *typeDecoder) decodeProduct(off dwarf.Offset, entry *dwarf.Entry) (TypeName, error) {
	placeholder := TypeName{Kind: KindProduct}
	idx := d.memoizeIndex(off, placeholder)

	name, _ := entry.Val(dwarf.AttrName).(string)
	size, _ := entry.Val(dwarf.AttrByteSize).(int64)

	kids, err := d.children(off)
	if err != nil {
		return TypeName{}, err
	}

	var members []Member
	for _, kid := range kids {
		if kid.Tag != dwarf.TagMember {
			continue
		}
		fieldName, _ := kid.Val(dwarf.AttrName).(string)
		fieldOff, ok := kid.Val(dwarf.AttrType).(dwarf.Offset)
		if !ok {
			continue
		}
		fieldIdx, err := d.ensureIndex(fieldOff)
		if err != nil {
			return TypeName{}, err
		}
		byteOffset, _ := kid.Val(dwarf.AttrDataMemberLoc).(int64)
		members = append(members, Member{FieldName: fieldName, FieldTypeIndex: fieldIdx, ByteOffset: byteOffset})
	}

	result := TypeName{Kind: KindProduct, ProductName: name, ByteSize: size, Members: members}
	d.table[idx] = result
	return result, nil
}

// ensureIndex decodes off if needed and returns its table index.
func (d *typeDecoder) ensureIndex(off dwarf.Offset) (int, error) {
	if idx, ok := d.offsetToIndex[off]; ok {
		return idx, nil
	}
	if _, err := d.decodeOffset(off); err != nil {
		return 0, err
	}
	return d.offsetToIndex[off], nil
}

func (d *typeDecoder) memoize(off dwarf.Offset, t TypeName) TypeName {
	d.memoizeIndex(off, t)
	return t
}

func (d *typeDecoder) memoizeIndex(off dwarf.Offset, t TypeName) int {
	if idx, ok := d.offsetToIndex[off]; ok {
		d.table[idx] = t
		return idx
	}
	idx := len(d.table)
	d.table = append(d.table, t)
	d.offsetToIndex[off] = idx
	return idx
}

// children returns the immediate child DIEs of the DIE at off (one level,
// not recursive), used to enumerate struct members and array subranges.
func (d *typeDecoder) children(off dwarf.Offset) ([]*dwarf.Entry, error) {
	r := d.data.Reader()
	r.Seek(off)
	parent, err := r.Next()
	if err != nil || parent == nil {
		return nil, err
	}
	if !parent.Children {
		return nil, nil
	}

	var kids []*dwarf.Entry
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		if entry.Tag == 0 {
			break // end of children (null entry)
		}
		kids = append(kids, entry)
		if entry.Children {
			if err := skipChildren(r); err != nil {
				return nil, err
			}
		}
	}
	return kids, nil
}

func skipChildren(r *dwarf.Reader) error {
	depth := 1
	for depth > 0 {
		entry, err := r.Next()
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if entry.Tag == 0 {
			depth--
			continue
		}
		if entry.Children {
			depth++
		}
	}
	return nil
}

// TypeTable exposes the flat, index-addressed type graph materialized so
// far by DecodeType/DecodeTypeOffset calls.
func (idx *Index) TypeTable() []TypeName { return idx.typeDecoder.Table() }
