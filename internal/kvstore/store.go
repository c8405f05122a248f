package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/quadmatch/internal/ir"
)

// Store is a Badger-backed quad store.
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines. Each Snapshot is
//	owned by one query.
type Store struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Options configures the store.
type Options struct {
	// Dir is the directory for data files. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in RAM. Data is lost on Close.
	InMemory bool

	// Logger receives Badger's internal logging. nil silences it.
	Logger *slog.Logger
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore closed")

// Open opens or creates a persistent store in dir.
func Open(dir string) (*Store, error) {
	return OpenWithOptions(Options{Dir: dir})
}

// OpenInMemory creates an in-memory store, mainly for tests.
func OpenInMemory() (*Store, error) {
	return OpenWithOptions(Options{InMemory: true})
}

// OpenWithOptions opens a store with explicit options.
func OpenWithOptions(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(slogAdapter{opts.Logger})
	} else {
		// Use a quiet logger by default
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	// Keys only, no values: keep the memory footprint small.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database. Open snapshots must be closed first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// AddQuads writes quads and returns how many were new. Duplicates are
// silently ignored. A quad that fails validation aborts before anything is
// written.
func (s *Store) AddQuads(ctx context.Context, quads []ir.Quad) (int, error) {
	keys, err := encodeAll(quads)
	if err != nil {
		return 0, fmt.Errorf("add quads: %w", err)
	}
	return s.writeBatch(ctx, keys, true)
}

// DeleteQuads removes quads and returns how many existed.
func (s *Store) DeleteQuads(ctx context.Context, quads []ir.Quad) (int, error) {
	keys, err := encodeAll(quads)
	if err != nil {
		return 0, fmt.Errorf("delete quads: %w", err)
	}
	return s.writeBatch(ctx, keys, false)
}

// Count returns the number of stored quads.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{byte(IndexSPOG)}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count quads: %w", err)
	}
	return n, nil
}

// Snapshot opens a read-only transaction. The caller must Close it.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Snapshot{txn: s.db.NewTransaction(false), open: make(map[*kvCursor]struct{})}, nil
}

func encodeAll(quads []ir.Quad) ([][4]string, error) {
	out := make([][4]string, len(quads))
	for i, q := range quads {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		q = q.Canonical()
		t := q.Terms()
		out[i] = [4]string{t[0].Key(), t[1].Key(), t[2].Key(), t[3].Key()}
	}
	return out, nil
}

// writeBatch adds or removes the four index entries of every quad. Large
// batches are split across transactions when Badger reports the
// transaction too big.
func (s *Store) writeBatch(ctx context.Context, quads [][4]string, add bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	changed := 0
	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for i := 0; i < len(quads); {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		n, err := applyQuad(txn, quads[i], add)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return changed, fmt.Errorf("commit batch: %w", err)
			}
			txn = s.db.NewTransaction(true)
			continue
		}
		if err != nil {
			return changed, err
		}
		changed += n
		i++
	}
	if err := txn.Commit(); err != nil {
		return changed, fmt.Errorf("commit batch: %w", err)
	}
	return changed, nil
}

// applyQuad returns 1 when the quad's presence changed.
func applyQuad(txn *badger.Txn, keys [4]string, add bool) (int, error) {
	_, err := txn.Get(quadKey(IndexSPOG, keys))
	exists := err == nil
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("lookup quad: %w", err)
	}
	if exists == add {
		return 0, nil
	}

	// Check every index fits before touching any, so a too-big transaction
	// never holds half a quad.
	entries := make([][]byte, len(indexes))
	for i, ix := range indexes {
		entries[i] = quadKey(ix, keys)
	}
	for _, k := range entries {
		if add {
			err = txn.Set(k, nil)
		} else {
			err = txn.Delete(k)
		}
		if err != nil {
			return 0, err
		}
	}
	return 1, nil
}

// slogAdapter routes Badger's logger interface into slog.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Errorf(format string, args ...any) {
	a.l.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (a slogAdapter) Warningf(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (a slogAdapter) Infof(format string, args ...any) {
	a.l.Info(fmt.Sprintf(format, args...), "component", "badger")
}

func (a slogAdapter) Debugf(format string, args ...any) {
	a.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
