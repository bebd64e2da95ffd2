package reinit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionsForLevelBelowThreeIsEmpty(t *testing.T) {
	a := ActionsForLevel(2)
	assert.Empty(t, a.Files)
	assert.Empty(t, a.Globs)
	assert.Empty(t, a.WipeDirs)
}

func TestActionsForLevelThreeIncludesGenerationalGlobs(t *testing.T) {
	a := ActionsForLevel(3)
	assert.Contains(t, a.Globs, "fifo_dir/fsa.stat.*")
	assert.Empty(t, a.Files)
}

func TestActionsForLevelSevenIsCumulative(t *testing.T) {
	a := ActionsForLevel(7)
	assert.Contains(t, a.Globs, "fifo_dir/fsa.stat.*")
	assert.Contains(t, a.Files, "fifo_dir/msg_cache")
	assert.Contains(t, a.Files, "fifo_dir/block_file")
	assert.Contains(t, a.WipeDirs, "file_dir/dupcheck")
}

func TestActionsForLevelNineIncludesSpoolWipe(t *testing.T) {
	a := ActionsForLevel(9)
	assert.Contains(t, a.WipeDirs, "file_dir")
	assert.Contains(t, a.WipeDirs, "archive")
}

func TestRequiresFSAFRAWipeWindow(t *testing.T) {
	assert.False(t, requiresFSAFRAWipe(2))
	assert.True(t, requiresFSAFRAWipe(3))
	assert.True(t, requiresFSAFRAWipe(6))
	assert.False(t, requiresFSAFRAWipe(7))
}

func TestTypesizeChangeAny(t *testing.T) {
	assert.False(t, TypesizeChange{}.Any())
	assert.True(t, TypesizeChange{OffT: true}.Any())
}
