package storage

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/nornicrdf/pkg/rdf"
)

// BadgerGraph is a persistent triple graph backed by BadgerDB.
//
// Every triple is written under three keys (SPO, POS and OSP orderings) so
// that any filter pattern is answered by a single prefix scan. Values hold
// the N-Triples statement, which keeps blank node labels stable across
// restarts.
//
// Example:
//
//	graph, err := storage.NewBadgerGraph("./data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer graph.Close()
//
//	graph.Add(rdf.NewTriple(rdf.IRI("urn:a"), vocabulary.RDFType, rdf.IRI("urn:Thing")))
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
type BadgerGraph struct {
	db         *badger.DB
	mu         sync.RWMutex // protects closed
	closed     bool
	generation atomic.Uint64

	lock sync.RWMutex
}

// BadgerOptions configures a BadgerGraph.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for testing.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// LowMemory shrinks memtables and caches for constrained environments.
	LowMemory bool

	// BlockCacheMB sets the block cache size. Zero keeps the default.
	BlockCacheMB int

	// Logger for BadgerDB internal logging. If nil, BadgerDB stays quiet.
	Logger badger.Logger
}

// NewBadgerGraph opens (or creates) a persistent graph in dataDir.
func NewBadgerGraph(dataDir string) (*BadgerGraph, error) {
	return NewBadgerGraphWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerGraphInMemory creates a non-persistent BadgerDB graph for tests.
func NewBadgerGraphInMemory() (*BadgerGraph, error) {
	return NewBadgerGraphWithOptions(BadgerOptions{InMemory: true})
}

// NewBadgerGraphWithOptions opens a BadgerGraph with custom configuration.
func NewBadgerGraphWithOptions(opts BadgerOptions) (*BadgerGraph, error) {
	dir := opts.DataDir
	if opts.InMemory {
		dir = ""
	}
	badgerOpts := badger.DefaultOptions(dir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	// nil silences badger's default logger
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(16 << 20).
			WithValueLogFileSize(64 << 20).
			WithNumMemtables(2).
			WithNumLevelZeroTables(2).
			WithNumLevelZeroTablesStall(4).
			WithIndexCacheSize(16 << 20)
	}
	if opts.BlockCacheMB > 0 {
		badgerOpts = badgerOpts.WithBlockCacheSize(int64(opts.BlockCacheMB) << 20)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerGraph{db: db}, nil
}

func (b *BadgerGraph) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Filter returns the triples matching the pattern in key order.
func (b *BadgerGraph) Filter(subject rdf.Subject, predicate rdf.IRI, object rdf.Term) Iterator {
	if err := b.checkOpen(); err != nil {
		return errIterator(err)
	}

	if subject != nil && predicate != "" && object != nil {
		t := rdf.NewTriple(subject, predicate, object)
		ok, err := b.Contains(t)
		if err != nil {
			return errIterator(err)
		}
		if !ok {
			return newSliceIterator(nil, b.Remove)
		}
		return newSliceIterator([]rdf.Triple{t}, b.Remove)
	}

	prefix := scanPrefix(subject, predicate, object)
	var out []rdf.Triple
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var t rdf.Triple
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				t, decodeErr = decodeTriple(val)
				return decodeErr
			}); err != nil {
				return err
			}
			if matches(t, subject, predicate, object) {
				out = append(out, t)
			}
		}
		return nil
	})
	if err != nil {
		return errIterator(err)
	}
	return newSliceIterator(out, b.Remove)
}

// Contains reports whether t is stored.
func (b *BadgerGraph) Contains(t rdf.Triple) (bool, error) {
	if err := validate(t); err != nil {
		return false, nil
	}
	if err := b.checkOpen(); err != nil {
		return false, err
	}

	key := tripleKeys(t)[0]
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Add stores t under all three index orderings.
func (b *BadgerGraph) Add(t rdf.Triple) (bool, error) {
	if err := validate(t); err != nil {
		return false, err
	}
	if err := b.checkOpen(); err != nil {
		return false, err
	}

	keys := tripleKeys(t)
	value := encodeTriple(t)
	added := false
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keys[0])
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		for _, key := range keys {
			if err := txn.Set(key, value); err != nil {
				return err
			}
		}
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("adding %s: %w", t, err)
	}
	if added {
		b.generation.Add(1)
	}
	return added, nil
}

// Remove deletes t from all three index orderings.
func (b *BadgerGraph) Remove(t rdf.Triple) (bool, error) {
	if err := validate(t); err != nil {
		return false, nil
	}
	if err := b.checkOpen(); err != nil {
		return false, err
	}

	keys := tripleKeys(t)
	removed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keys[0])
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("removing %s: %w", t, err)
	}
	if removed {
		b.generation.Add(1)
	}
	return removed, nil
}

// Size counts the stored triples.
func (b *BadgerGraph) Size() (int, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixSPO}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// RWLock returns the caller-facing lock.
func (b *BadgerGraph) RWLock() RWLocker { return &b.lock }

// Generation returns the number of modifications made through this handle.
func (b *BadgerGraph) Generation() uint64 { return b.generation.Load() }

// Sync forces a sync of all data to disk.
func (b *BadgerGraph) Sync() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Sync()
}

// RunGC runs garbage collection on the BadgerDB value log.
func (b *BadgerGraph) RunGC() error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close closes the database. Closing twice is a no-op.
func (b *BadgerGraph) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.db.Close(); err != nil {
		log.Printf("storage: closing badger: %v", err)
		return err
	}
	return nil
}

var (
	_ Graph     = (*BadgerGraph)(nil)
	_ Versioned = (*BadgerGraph)(nil)
)
