package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"assetguard/internal/extract"
	"assetguard/internal/fault"
)

const DefaultLockTimeout = 5 * time.Second

type Options struct {
	// LockTimeout bounds how long a writer waits for another writer.
	LockTimeout time.Duration
	// Now is the clock used for CreatedAt. Defaults to time.Now in UTC.
	Now func() time.Time
}

// Store persists optimization records under a storage root.
//
// Readers work from an immutable snapshot and never wait for a writer.
// Writers are serialized in-process by mu and across processes by a lock
// file, and always re-read the document under the lock before changing it.
type Store struct {
	root        string
	lockTimeout time.Duration
	now         func() time.Time

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	records []Record
	byKey   map[recordKey]int
	byID    map[string]int
	modTime time.Time
	size    int64
}

func newSnapshot(records []Record, info os.FileInfo) *snapshot {
	s := &snapshot{
		records: records,
		byKey:   make(map[recordKey]int, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	for i, r := range records {
		s.byKey[keyOf(r)] = i
		s.byID[r.ID] = i
	}
	if info != nil {
		s.modTime = info.ModTime()
		s.size = info.Size()
	}
	return s
}

// Open loads the store at root, creating the directory if needed.
func Open(root string, opts Options) (*Store, error) {
	if err := EnsureLayout(root); err != nil {
		return nil, fault.StorageUnavailable("OPT_STORE_OPEN", err)
	}
	s := &Store{root: root, lockTimeout: opts.LockTimeout, now: opts.Now}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if _, err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) reload() (*snapshot, error) {
	path := OptimizationsPath(s.root)
	info, statErr := os.Stat(path)
	if statErr != nil && !os.IsNotExist(statErr) {
		return nil, fault.StorageUnavailable("OPT_STORE_READ", statErr)
	}
	st, err := LoadState(path)
	if err != nil {
		return nil, fault.StorageUnavailable("OPT_STORE_READ", err)
	}
	snap := newSnapshot(st.Records, info)
	s.snap.Store(snap)
	return snap, nil
}

// current returns the latest snapshot, reloading it when the document on
// disk changed since it was taken.
func (s *Store) current() *snapshot {
	snap := s.snap.Load()
	info, err := os.Stat(OptimizationsPath(s.root))
	switch {
	case err != nil && os.IsNotExist(err):
		if len(snap.records) == 0 {
			return snap
		}
	case err != nil:
		return snap
	case info.ModTime().Equal(snap.modTime) && info.Size() == snap.size:
		return snap
	}
	fresh, err := s.reload()
	if err != nil {
		return snap
	}
	return fresh
}

// update runs fn on a freshly loaded state under the writer locks and saves
// the result when fn reports a change. Nothing is written when fn fails.
func (s *Store) update(ctx context.Context, fn func(st *State) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	release, err := acquireLock(ctx, LockPath(s.root), s.lockTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fault.StorageUnavailable("OPT_STORE_LOCK", err)
	}
	defer release()

	path := OptimizationsPath(s.root)
	st, err := LoadState(path)
	if err != nil {
		return fault.StorageUnavailable("OPT_STORE_READ", err)
	}
	changed, err := fn(&st)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := SaveState(path, st); err != nil {
		return fault.StorageUnavailable("OPT_STORE_WRITE", err)
	}
	info, _ := os.Stat(path)
	s.snap.Store(newSnapshot(st.Records, info))
	return nil
}

func newID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

func (s *Store) insertIfAbsent(st *State, seed Seed) (Record, bool) {
	for _, r := range st.Records {
		if r.Handle == seed.Handle && r.Kind == seed.Kind {
			return r, false
		}
	}
	rec := Record{
		ID:           newID(),
		Kind:         seed.Kind,
		Handle:       seed.Handle,
		OwningPlugin: seed.OwningPlugin,
		IsActive:     true,
		Rule:         seed.Rule,
		CreatedAt:    s.now(),
	}
	st.Records = append(st.Records, rec)
	return rec, true
}

// Upsert returns the record for (kind, handle), creating an active one if
// none exists. An existing record is returned untouched.
func (s *Store) Upsert(ctx context.Context, kind extract.Kind, handle, owner, rule string) (Record, bool, error) {
	if _, err := extract.ParseKind(string(kind)); err != nil {
		return Record{}, false, err
	}
	if handle == "" {
		return Record{}, false, errEmptyHandle
	}
	if snap := s.current(); snap != nil {
		if i, ok := snap.byKey[recordKey{handle: handle, kind: kind}]; ok {
			return snap.records[i], false, nil
		}
	}
	var out Record
	var created bool
	err := s.update(ctx, func(st *State) (bool, error) {
		out, created = s.insertIfAbsent(st, Seed{Kind: kind, Handle: handle, OwningPlugin: owner, Rule: rule})
		return created, nil
	})
	if err != nil {
		return Record{}, false, err
	}
	return out, created, nil
}

// UpsertMany inserts every absent seed in one write cycle and returns the
// number of records created.
func (s *Store) UpsertMany(ctx context.Context, seeds []Seed) (int, error) {
	for _, seed := range seeds {
		if _, err := extract.ParseKind(string(seed.Kind)); err != nil {
			return 0, err
		}
		if seed.Handle == "" {
			return 0, errEmptyHandle
		}
	}
	if len(seeds) == 0 {
		return 0, nil
	}
	created := 0
	err := s.update(ctx, func(st *State) (bool, error) {
		created = 0
		for _, seed := range seeds {
			if _, ok := s.insertIfAbsent(st, seed); ok {
				created++
			}
		}
		return created > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Toggle flips the record's IsActive flag and returns the new value.
func (s *Store) Toggle(ctx context.Context, id string) (bool, error) {
	var next bool
	err := s.update(ctx, func(st *State) (bool, error) {
		for i := range st.Records {
			if st.Records[i].ID == id {
				st.Records[i].IsActive = !st.Records[i].IsActive
				next = st.Records[i].IsActive
				return true, nil
			}
		}
		return false, fault.NotFound("OPT_TOGGLE_NOT_FOUND", "no optimization record with id %q", id)
	})
	if err != nil {
		return false, err
	}
	return next, nil
}

// BulkApply deactivates the given records and returns how many actually
// changed. With no ids it changes nothing. If any id is unknown nothing is
// applied.
func (s *Store) BulkApply(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, ctx.Err()
	}
	applied := 0
	err := s.update(ctx, func(st *State) (bool, error) {
		applied = 0
		index := make(map[string]int, len(st.Records))
		for i, r := range st.Records {
			index[r.ID] = i
		}
		for _, id := range ids {
			if _, ok := index[id]; !ok {
				return false, fault.NotFound("OPT_APPLY_NOT_FOUND", "no optimization record with id %q", id)
			}
		}
		for _, id := range ids {
			r := &st.Records[index[id]]
			if r.IsActive {
				r.IsActive = false
				applied++
			}
		}
		return applied > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// Clear removes every record and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	removed := 0
	err := s.update(ctx, func(st *State) (bool, error) {
		removed = len(st.Records)
		st.Records = nil
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// List returns all records, most recently created first. Records created at
// the same instant are ordered by insertion, latest first.
func (s *Store) List() []Record {
	snap := s.current()
	out := make([]Record, len(snap.records))
	for i, r := range snap.records {
		out[len(out)-1-i] = r
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Lookup returns the record for (kind, handle), if any.
func (s *Store) Lookup(kind extract.Kind, handle string) (Record, bool) {
	return s.View().Lookup(kind, handle)
}

// Get returns the record with id, if any.
func (s *Store) Get(id string) (Record, bool) {
	snap := s.current()
	i, ok := snap.byID[id]
	if !ok {
		return Record{}, false
	}
	return snap.records[i], true
}

// View is a consistent read-only copy of the store at one instant.
type View struct {
	snap *snapshot
}

// View captures the current records for a sequence of lookups.
func (s *Store) View() View { return View{snap: s.current()} }

func (v View) Lookup(kind extract.Kind, handle string) (Record, bool) {
	if v.snap == nil {
		return Record{}, false
	}
	i, ok := v.snap.byKey[recordKey{handle: handle, kind: kind}]
	if !ok {
		return Record{}, false
	}
	return v.snap.records[i], true
}

func (v View) Len() int {
	if v.snap == nil {
		return 0
	}
	return len(v.snap.records)
}
