package store

import (
	"io/fs"
	"path/filepath"
)

// View is a compact operational snapshot of the database, used by the
// admin surface and the startup banner.
type View struct {
	DiskBytes      uint64 `json:"disk_bytes"`
	WALBytes       uint64 `json:"wal_bytes"`
	L0Files        int64  `json:"l0_files"`
	L0Bytes        int64  `json:"l0_bytes"`
	CompactionDebt uint64 `json:"compaction_debt"`
}

// MetricsView returns a best-effort snapshot. DiskBytes is computed
// from the directory so it includes obsolete files pebble has not yet
// cleaned up; the rest comes from pebble's own metrics.
func (d *DB) MetricsView() View {
	var v View
	if !d.Ready() {
		return v
	}
	var total uint64
	_ = filepath.WalkDir(d.path, func(p string, de fs.DirEntry, err error) error {
		if err != nil || de.IsDir() {
			return nil
		}
		fi, err := de.Info()
		if err != nil {
			return nil
		}
		total += uint64(fi.Size())
		return nil
	})
	v.DiskBytes = total

	m := d.p.Metrics()
	if m == nil {
		return v
	}
	v.WALBytes = m.WAL.Size
	v.L0Files = m.Levels[0].NumFiles
	v.L0Bytes = m.Levels[0].Size
	v.CompactionDebt = m.Compact.EstimatedDebt
	return v
}
