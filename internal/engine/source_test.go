package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceWindowClampsAtFileStart(t *testing.T) {
	content := "line1\nline2\nline3\nline4\nline5"
	lines := sourceWindow(content, 2, 3)

	require.NotEmpty(t, lines)
	assert.Equal(t, 1, lines[0].LineNo, "clamped to file start")
	assert.Equal(t, 5, lines[len(lines)-1].LineNo, "clamped to file length")

	var foundCurrent bool
	for _, l := range lines {
		if l.LineNo == 2 {
			foundCurrent = true
			assert.True(t, l.IsCurrent, "line 2 should be tagged current")
		} else {
			assert.False(t, l.IsCurrent, "line %d should not be tagged current", l.LineNo)
		}
	}
	assert.True(t, foundCurrent, "current line 2 missing from window")
}

func TestSourceWindowExactText(t *testing.T) {
	content := "a\nb\nc\nd\ne"
	lines := sourceWindow(content, 3, 1)
	require.Len(t, lines, 3)
	want := []string{"b", "c", "d"}
	for i, w := range want {
		assert.Equal(t, w, lines[i].Text)
	}
}
