package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/quadmatch/internal/engine"
	"github.com/roach88/quadmatch/internal/ir"
	"github.com/roach88/quadmatch/internal/kvstore"
	"github.com/roach88/quadmatch/internal/store"
)

// Storage backends selectable with --backend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// snapshot is a read view handed to the engine for one query.
type snapshot interface {
	engine.Dataset
	Close() error
}

// backend is the part of a store the CLI uses. The SQLite file and the
// Badger directory are both addressed by --db.
type backend interface {
	AddQuads(ctx context.Context, quads []ir.Quad) (int, error)
	Count(ctx context.Context) (int64, error)
	Snapshot(ctx context.Context) (snapshot, error)
	Close() error
}

// openBackend opens the store at path. With mustExist the path has to be
// there already, which keeps a mistyped --db from creating an empty store
// and silently answering every query with nothing.
func openBackend(kind, path string, mustExist bool) (backend, error) {
	if path == "" {
		return nil, fmt.Errorf("--db is required")
	}
	if mustExist {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found: %s", path)
		}
	}
	switch kind {
	case BackendSQLite, "":
		s, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		return sqliteBackend{s}, nil
	case BackendBadger:
		s, err := kvstore.Open(path)
		if err != nil {
			return nil, err
		}
		return badgerBackend{s}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", kind, BackendSQLite, BackendBadger)
	}
}

// openMemoryBackend returns an empty in-memory store. explain uses it when
// no --db is given, since compiling plans never reads data.
func openMemoryBackend() (backend, error) {
	s, err := kvstore.OpenInMemory()
	if err != nil {
		return nil, err
	}
	return badgerBackend{s}, nil
}

type sqliteBackend struct{ *store.Store }

func (b sqliteBackend) Snapshot(ctx context.Context) (snapshot, error) {
	sn, err := b.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sn, nil
}

type badgerBackend struct{ *kvstore.Store }

func (b badgerBackend) Snapshot(ctx context.Context) (snapshot, error) {
	sn, err := b.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sn, nil
}
