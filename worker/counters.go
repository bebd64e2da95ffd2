package worker

import (
	"time"

	"github.com/rclone/filerelay/fs"
	"github.com/rclone/filerelay/lsdata"
	"github.com/rclone/filerelay/status"
)

// VerifyAndUpdateTFC applies update_tfc and, when status.Table.UpdateTFC
// had to clamp a counter to zero, recomputes total_file_size from the
// unscanned tail of the directory's retrieve-list entries still marked
// not-yet-retrieved, logging a verification warning.
func VerifyAndUpdateTFC(table *status.Table, store *lsdata.Store, pos int, n int32, bytes int64, now time.Time) error {
	before, err := table.ReadFSA(pos)
	if err != nil {
		return err
	}
	wouldGoNegative := before.TotalFileCounter-n < 0 || before.TotalFileSize-bytes < 0

	if err := table.UpdateTFC(pos, n, bytes, now); err != nil {
		return err
	}
	if !wouldGoNegative || store == nil {
		return nil
	}

	recount, resize := unscannedTail(store)
	fs.Logf(table.Path(), "worker: total_file_counter/size went negative at pos %d, recomputed from unscanned tail: files=%d bytes=%d", pos, recount, resize)

	if err := table.LockTFC(pos); err != nil {
		return err
	}
	defer table.UnlockTFC(pos)
	after, err := table.ReadFSA(pos)
	if err != nil {
		return err
	}
	after.TotalFileCounter = recount
	after.TotalFileSize = resize
	return table.WriteFSA(pos, after)
}

// unscannedTail walks store's entries and sums the size of every one not
// yet marked Retrieved, giving a ground-truth total_file_counter/size
// independent of the possibly-corrupted running counters.
func unscannedTail(store *lsdata.Store) (int32, int64) {
	var count int32
	var size int64
	for i := 0; i < store.NoOfListedFiles(); i++ {
		e, err := store.Get(i)
		if err != nil {
			continue
		}
		if e.Retrieved {
			continue
		}
		count++
		size += e.Size
	}
	return count, size
}
