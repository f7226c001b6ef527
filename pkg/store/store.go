// Package store is the durable record layer: one pebble database holding
// serialized posts under a per-user namespace. Batch writes are atomic;
// reads degrade to empty results rather than failing.
package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"

	"roostdb/pkg/codec"
	"roostdb/pkg/logger"
	"roostdb/pkg/models"
)

// ErrClosed is returned for writes against a store that was never opened
// or has been closed.
var ErrClosed = errors.New("store not opened")

// Options tunes the underlying pebble instance.
type Options struct {
	// CacheSize is the pebble block cache size in bytes; 0 uses a small default.
	CacheSize int64
	// SyncWrites fsyncs every write; on by default at the call sites.
	SyncWrites bool
	// Codec optionally offloads record encode/decode to a worker pool.
	Codec *codec.Pool
}

// DB wraps one pebble database. Per-user views are derived with ForUser.
type DB struct {
	p     *pebble.DB
	path  string
	codec *codec.Pool
	wopts *pebble.WriteOptions
}

// Open opens (or creates) a pebble database at the given path.
func Open(path string, o Options) (*DB, error) {
	logger.Info("opening_pebble_db", "path", path)
	popts := &pebble.Options{}
	if o.CacheSize > 0 {
		c := pebble.NewCache(o.CacheSize)
		popts.Cache = c
		defer c.Unref()
	}
	p, err := pebble.Open(path, popts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	wopts := pebble.Sync
	if !o.SyncWrites {
		wopts = pebble.NoSync
	}
	logger.Info("pebble_opened", "path", path)
	return &DB{p: p, path: path, codec: o.Codec, wopts: wopts}, nil
}

// Close closes the pebble database if present.
func (d *DB) Close() error {
	if d == nil || d.p == nil {
		return nil
	}
	if err := d.p.Close(); err != nil {
		return err
	}
	d.p = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and usable.
func (d *DB) Ready() bool { return d != nil && d.p != nil }

// Path returns the on-disk location of the database.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// ForUser returns the record store scoped to one authenticated user.
// Every key it touches carries the user namespace, so separate accounts
// never see each other's records.
func (d *DB) ForUser(userID int64) *Store {
	return &Store{db: d, user: userID, prefix: []byte(userPrefix(userID))}
}

// Store is the per-user view over the shared database.
type Store struct {
	db     *DB
	user   int64
	prefix []byte
}

// postKey builds the record key for a post id. The zero-padded decimal
// form makes lexicographic key order equal numeric id order.
func postKey(userID, id int64) string {
	return fmt.Sprintf("u:%d:p:%020d", userID, id)
}

func userPrefix(userID int64) string {
	return fmt.Sprintf("u:%d:p:", userID)
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, for use as an exclusive iterator bound.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// User returns the user id this store is scoped to.
func (s *Store) User() int64 { return s.user }

// Put upserts one record keyed by the post id, overwriting any existing
// record. Callers treat failures as non-fatal: prior durable state is
// untouched and in-memory state is unaffected.
func (s *Store) Put(p *models.Post) error {
	if s == nil || !s.db.Ready() {
		return ErrClosed
	}
	data, err := s.db.codec.Encode(p)
	if err != nil {
		return fmt.Errorf("encode post %s: %w", p.IDStr, err)
	}
	key := postKey(s.user, p.ID)
	if err := s.db.p.Set([]byte(key), data, s.db.wopts); err != nil {
		logger.Error("save_post_failed", "user", s.user, "id", p.IDStr, "error", err)
		return err
	}
	logger.Debug("post_saved", "user", s.user, "id", p.IDStr)
	return nil
}

// PutBatch upserts all the posts in one atomic commit: every record is
// encoded before any write is staged, and a single pebble batch applies
// them, so either all N records become visible or none do.
func (s *Store) PutBatch(ps []*models.Post) error {
	if s == nil || !s.db.Ready() {
		return ErrClosed
	}
	if len(ps) == 0 {
		return nil
	}
	vals := make([]any, len(ps))
	for i, p := range ps {
		vals[i] = p
	}
	encoded, err := s.db.codec.EncodeAll(vals)
	if err != nil {
		logger.Error("batch_encode_failed", "user", s.user, "count", len(ps), "error", err)
		return fmt.Errorf("encode batch: %w", err)
	}
	b := s.db.p.NewBatch()
	defer b.Close()
	for i, p := range ps {
		if err := b.Set([]byte(postKey(s.user, p.ID)), encoded[i], nil); err != nil {
			logger.Error("batch_stage_failed", "user", s.user, "id", p.IDStr, "error", err)
			return err
		}
	}
	if err := s.db.p.Apply(b, s.db.wopts); err != nil {
		logger.Error("batch_put_failed", "user", s.user, "count", len(ps), "error", err)
		return err
	}
	logger.Debug("batch_put_ok", "user", s.user, "count", len(ps))
	return nil
}

// FindByIDs returns the stored records matching ids, newest id first.
// Missing ids are silently omitted and internal failures degrade to a
// smaller (possibly empty) result; this read path never fails.
func (s *Store) FindByIDs(ids []int64) []*models.Post {
	if s == nil || !s.db.Ready() {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	raw := make([][]byte, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		v, closer, err := s.db.p.Get([]byte(postKey(s.user, id)))
		if err != nil {
			if !errors.Is(err, pebble.ErrNotFound) {
				logger.Error("find_by_ids_read_failed", "user", s.user, "id", id, "error", err)
			}
			continue
		}
		raw = append(raw, append([]byte(nil), v...))
		_ = closer.Close()
	}
	decoded := make([]models.Post, len(raw))
	errs := s.db.codec.DecodeAll(raw, func(i int) any { return &decoded[i] })
	out := make([]*models.Post, 0, len(raw))
	for i := range decoded {
		if errs[i] != nil {
			logger.Error("find_by_ids_decode_failed", "user", s.user, "error", errs[i])
			continue
		}
		out = append(out, &decoded[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Exists reports whether a record for id is stored.
func (s *Store) Exists(id int64) bool {
	return len(s.FindByIDs([]int64{id})) == 1
}

// Recent returns up to limit stored posts, newest id first. It backs the
// cold-start hydration path when the remote is unreachable.
func (s *Store) Recent(limit int) []*models.Post {
	if s == nil || !s.db.Ready() || limit <= 0 {
		return nil
	}
	iter, err := s.db.p.NewIter(&pebble.IterOptions{
		LowerBound: s.prefix,
		UpperBound: prefixUpperBound(s.prefix),
	})
	if err != nil {
		logger.Error("recent_iter_failed", "user", s.user, "error", err)
		return nil
	}
	defer iter.Close()
	raw := make([][]byte, 0, limit)
	for ok := iter.Last(); ok && len(raw) < limit; ok = iter.Prev() {
		raw = append(raw, append([]byte(nil), iter.Value()...))
	}
	if err := iter.Error(); err != nil {
		logger.Error("recent_scan_failed", "user", s.user, "error", err)
	}
	decoded := make([]models.Post, len(raw))
	errs := s.db.codec.DecodeAll(raw, func(i int) any { return &decoded[i] })
	out := make([]*models.Post, 0, len(raw))
	for i := range decoded {
		if errs[i] != nil {
			logger.Error("recent_decode_failed", "user", s.user, "error", errs[i])
			continue
		}
		out = append(out, &decoded[i])
	}
	return out
}

// Count returns the number of stored records for this user.
func (s *Store) Count() (int, error) {
	if s == nil || !s.db.Ready() {
		return 0, ErrClosed
	}
	iter, err := s.db.p.NewIter(&pebble.IterOptions{
		LowerBound: s.prefix,
		UpperBound: prefixUpperBound(s.prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, iter.Error()
}

// Wipe removes every record in this user's namespace. Used on logout so
// a following sign-in never sees another identity's records.
func (s *Store) Wipe() error {
	if s == nil || !s.db.Ready() {
		return ErrClosed
	}
	if err := s.db.p.DeleteRange(s.prefix, prefixUpperBound(s.prefix), s.db.wopts); err != nil {
		logger.Error("wipe_failed", "user", s.user, "error", err)
		return err
	}
	logger.Info("user_wiped", "user", s.user)
	return nil
}

// SweepOlderThan deletes up to max records whose creation time is before
// cutoff, walking ids from the oldest end of the namespace. It returns
// the number deleted so the retention runner can pace itself in batches.
func (s *Store) SweepOlderThan(cutoff time.Time, max int) (int, error) {
	if s == nil || !s.db.Ready() {
		return 0, ErrClosed
	}
	if max <= 0 {
		max = 1000
	}
	iter, err := s.db.p.NewIter(&pebble.IterOptions{
		LowerBound: s.prefix,
		UpperBound: prefixUpperBound(s.prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	b := s.db.p.NewBatch()
	defer b.Close()
	deleted := 0
	for ok := iter.First(); ok && deleted < max; ok = iter.Next() {
		var meta struct {
			CreatedAt time.Time `json:"created_at"`
		}
		if err := s.db.codec.Decode(iter.Value(), &meta); err != nil {
			logger.Warn("sweep_decode_failed", "user", s.user, "key", string(iter.Key()), "error", err)
			continue
		}
		if meta.CreatedAt.IsZero() || !meta.CreatedAt.Before(cutoff) {
			continue
		}
		if err := b.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			return 0, err
		}
		deleted++
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := s.db.p.Apply(b, s.db.wopts); err != nil {
		logger.Error("sweep_apply_failed", "user", s.user, "error", err)
		return 0, err
	}
	return deleted, nil
}

// CountOlderThan reports how many records a sweep with the same cutoff
// would remove, without deleting anything. Backs retention dry runs.
func (s *Store) CountOlderThan(cutoff time.Time) (int, error) {
	if s == nil || !s.db.Ready() {
		return 0, ErrClosed
	}
	iter, err := s.db.p.NewIter(&pebble.IterOptions{
		LowerBound: s.prefix,
		UpperBound: prefixUpperBound(s.prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		var meta struct {
			CreatedAt time.Time `json:"created_at"`
		}
		if err := s.db.codec.Decode(iter.Value(), &meta); err != nil {
			continue
		}
		if !meta.CreatedAt.IsZero() && meta.CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n, iter.Error()
}
