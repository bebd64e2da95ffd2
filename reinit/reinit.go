package reinit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rclone/filerelay/fs"
)

// Reinitialiser removes on-disk AFD state that init_level (and, if set,
// a typesize change) has invalidated.
type Reinitialiser struct {
	WorkDir string
	// SaveStatus calls the external `afdcfg --save_status` tool to
	// persist user-visible configuration flags before an FSA/FRA wipe.
	// Injectable so tests can substitute a fake instead of shelling out.
	SaveStatus func(ctx context.Context) error
}

// Run executes the reinitialisation for level, additionally purging
// typesize/system-data state if changed indicates any typesize field no
// longer matches what's on disk.
func (r *Reinitialiser) Run(ctx context.Context, level int, changed TypesizeChange) error {
	actions := ActionsForLevel(level)
	if changed.Any() {
		actions.Files = append(actions.Files, level8.Files...)
		actions.WipeDirs = append(actions.WipeDirs, level8.WipeDirs...)
	}

	if requiresFSAFRAWipe(level) && r.SaveStatus != nil {
		if err := r.SaveStatus(ctx); err != nil {
			return fmt.Errorf("reinit: save_status: %w", err)
		}
	}

	for _, rel := range actions.Files {
		if err := r.removeFile(rel); err != nil {
			return err
		}
	}
	for _, pattern := range actions.Globs {
		if err := r.removeGlob(pattern); err != nil {
			return err
		}
	}
	for _, rel := range actions.WipeDirs {
		if err := r.removeDir(rel); err != nil {
			return err
		}
	}

	if level > 8 {
		if err := r.rotateLogs(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reinitialiser) removeFile(rel string) error {
	path := filepath.Join(r.WorkDir, rel)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reinit: remove %s: %w", rel, err)
	}
	fs.Debugf(r.WorkDir, "reinit: removed %s", rel)
	return nil
}

func (r *Reinitialiser) removeGlob(pattern string) error {
	matches, err := filepath.Glob(filepath.Join(r.WorkDir, pattern))
	if err != nil {
		return fmt.Errorf("reinit: glob %s: %w", pattern, err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reinit: remove %s: %w", m, err)
		}
	}
	fs.Debugf(r.WorkDir, "reinit: removed %d files matching %s", len(matches), pattern)
	return nil
}

func (r *Reinitialiser) removeDir(rel string) error {
	path := filepath.Join(r.WorkDir, rel)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("reinit: remove dir %s: %w", rel, err)
	}
	fs.Debugf(r.WorkDir, "reinit: removed directory %s", rel)
	return nil
}

// rotateLogs renames the main log file to a numbered backup, matching the
// "rotates logs" clause of level > 8 action.
func (r *Reinitialiser) rotateLogs() error {
	logPath := filepath.Join(r.WorkDir, "log", "afd.log")
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return nil
	}
	backup := filepath.Join(r.WorkDir, "log", fmt.Sprintf("afd.log.%d", time.Now().Unix()))
	if err := os.Rename(logPath, backup); err != nil {
		return fmt.Errorf("reinit: rotate log: %w", err)
	}
	fs.Debugf(r.WorkDir, "reinit: rotated log to %s", backup)
	return nil
}
