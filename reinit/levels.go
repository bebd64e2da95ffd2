// Package reinit implements the reinitialiser: given a numeric
// init_level and an optional typesize-change indicator, it removes
// the on-disk state files that can no longer be trusted, composing two
// flag vectors (single files, glob families) from a fixed level table
// rather than re-deriving them ad hoc at every call site.
package reinit

// LevelAction names the files and glob families a given reinitialisation
// level removes. Actions accumulate: level N's Files/Globs already include
// everything named at every threshold <= N.
type LevelAction struct {
	Files []string
	Globs []string
	// WipeDirs are whole directory subtrees removed with RemoveAll
	// (the file-spool/archive wipe at level > 8, and the dup-check and
	// ls-data directories, are too large to enumerate as individual
	// Files/Globs entries).
	WipeDirs []string
}

// level3 removes every generational copy of FSA/FRA (fsa.stat.* and
// fra.stat.*), the currently active one included.
var level3 = LevelAction{
	Globs: []string{"fifo_dir/fsa.stat.*", "fifo_dir/fra.stat.*"},
}

// level4 wipes the in-flight message buffers and error queue.
var level4 = LevelAction{
	Files: []string{"fifo_dir/msg_cache", "fifo_dir/error_queue"},
}

// level7 removes block/counter files and the dup-check CRC directory.
var level7 = LevelAction{
	Files:    []string{"fifo_dir/block_file", "fifo_dir/counter_file"},
	WipeDirs: []string{"file_dir/dupcheck"},
}

// level8 removes typesize and system-data files plus the LS-data
// directory.
var level8 = LevelAction{
	Files:    []string{"fifo_dir/typesize_data", "fifo_dir/system_data"},
	WipeDirs: []string{"file_dir/incoming/ls_data"},
}

// level9 removes the entire file-spool and
// archive, and rotates logs (handled separately: log rotation renames
// rather than deletes, so it isn't expressed as a WipeDirs entry).
var level9 = LevelAction{
	WipeDirs: []string{"file_dir", "archive"},
}

// thresholds is the ordered level table: each entry's action is folded
// into the result for every requested level >= its threshold.
var thresholds = []struct {
	level  int
	action LevelAction
}{
	{3, level3},
	{4, level4},
	{7, level7},
	{8, level8},
	{9, level9},
}

// ActionsForLevel composes the cumulative LevelAction for level, folding
// in every threshold at or below it.
func ActionsForLevel(level int) LevelAction {
	var out LevelAction
	for _, t := range thresholds {
		if level >= t.level {
			out.Files = append(out.Files, t.action.Files...)
			out.Globs = append(out.Globs, t.action.Globs...)
			out.WipeDirs = append(out.WipeDirs, t.action.WipeDirs...)
		}
	}
	return out
}

// requiresFSAFRAWipe reports whether level lies in 3 <= level < 7: an
// FSA/FRA wipe below level 7 is the case in which afdcfg --save_status
// is called first so user-visible configuration flags survive the wipe.
// Levels >= 7 also remove FSA/FRA but report false.
func requiresFSAFRAWipe(level int) bool {
	return level >= 3 && level < 7
}

// TypesizeChange names which fixed-width type definitions changed between
// builds. Any field set to true forces the typesize/system-data purge
// (level8's actions) regardless of the numeric level, since stale binary
// layouts can't be trusted at any level once a typesize has actually
// changed.
type TypesizeChange struct {
	MaxHostnameLength bool
	MaxFilenameLength bool
	OffT              bool
	TimeT             bool
}

// Any reports whether any tracked typesize changed.
func (c TypesizeChange) Any() bool {
	return c.MaxHostnameLength || c.MaxFilenameLength || c.OffT || c.TimeT
}
