package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"

	"roostdb/pkg/logger"
)

const (
	formatKey     = "meta:format"
	inProgressKey = "meta:migration_in_progress"

	// legacyPrefix is the record namespace written before records were
	// scoped per user.
	legacyPrefix = "p:"
)

// CurrentFormat is the record layout version this build writes.
const CurrentFormat = 1

// EnsureFormat checks the stored layout version and migrates older
// layouts forward. userID names the account that owns any legacy
// unscoped records. A database stamped by a newer build is refused.
func (d *DB) EnsureFormat(userID int64) error {
	if !d.Ready() {
		return ErrClosed
	}
	stored, err := d.getMeta(formatKey)
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("read format stamp: %w", err)
	}
	if stored != "" {
		v, perr := strconv.Atoi(stored)
		if perr != nil {
			return fmt.Errorf("invalid format stamp %q", stored)
		}
		if v > CurrentFormat {
			return fmt.Errorf("store format %d is newer than supported %d", v, CurrentFormat)
		}
		if v == CurrentFormat {
			logger.Debug("format_current", "format", v)
			return nil
		}
	}

	legacy, err := d.hasLegacyRecords()
	if err != nil {
		return err
	}
	if !legacy {
		logger.Info("format_stamped", "format", CurrentFormat)
		return d.setMeta(formatKey, strconv.Itoa(CurrentFormat))
	}

	marker := fmt.Sprintf(`{"to":%d,"started_at":%q}`, CurrentFormat, time.Now().UTC().Format(time.RFC3339))
	if err := d.setMeta(inProgressKey, marker); err != nil {
		return fmt.Errorf("write in-progress marker: %w", err)
	}
	logger.Info("format_migration_start", "to", CurrentFormat, "user", userID)
	if err := d.migrateToUserScope(userID); err != nil {
		logger.Error("format_migration_failed", "error", err)
		return err
	}
	if err := d.setMeta(formatKey, strconv.Itoa(CurrentFormat)); err != nil {
		return fmt.Errorf("persist format stamp: %w", err)
	}
	if err := d.p.Delete([]byte(inProgressKey), d.wopts); err != nil {
		logger.Warn("format_marker_delete_failed", "error", err)
	}
	logger.Info("format_migration_done", "format", CurrentFormat)
	return nil
}

// migrateToUserScope rewrites legacy "p:<id>" records under the user
// namespace in bounded batches. Safe to re-run after an interrupted
// migration: moved keys are gone from the legacy range.
func (d *DB) migrateToUserScope(userID int64) error {
	prefix := []byte(legacyPrefix)
	for {
		iter, err := d.p.NewIter(&pebble.IterOptions{
			LowerBound: prefix,
			UpperBound: prefixUpperBound(prefix),
		})
		if err != nil {
			return err
		}
		b := d.p.NewBatch()
		moved := 0
		for ok := iter.First(); ok && moved < 512; ok = iter.Next() {
			oldKey := append([]byte(nil), iter.Key()...)
			val := append([]byte(nil), iter.Value()...)
			newKey := []byte(userPrefix(userID) + string(oldKey[len(legacyPrefix):]))
			if err := b.Set(newKey, val, nil); err != nil {
				iter.Close()
				b.Close()
				return err
			}
			if err := b.Delete(oldKey, nil); err != nil {
				iter.Close()
				b.Close()
				return err
			}
			moved++
		}
		ierr := iter.Error()
		iter.Close()
		if ierr != nil {
			b.Close()
			return ierr
		}
		if moved == 0 {
			b.Close()
			return nil
		}
		if err := d.p.Apply(b, d.wopts); err != nil {
			b.Close()
			return err
		}
		b.Close()
		logger.Debug("format_migration_batch", "moved", moved)
	}
}

func (d *DB) hasLegacyRecords() (bool, error) {
	prefix := []byte(legacyPrefix)
	iter, err := d.p.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return false, err
	}
	defer iter.Close()
	return iter.First(), iter.Error()
}

func (d *DB) getMeta(key string) (string, error) {
	v, closer, err := d.p.Get([]byte(key))
	if err != nil {
		return "", err
	}
	out := string(v)
	_ = closer.Close()
	return out, nil
}

func (d *DB) setMeta(key, value string) error {
	return d.p.Set([]byte(key), []byte(value), d.wopts)
}
