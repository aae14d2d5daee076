// Package nornicrdf is the embedded entry point: it opens the configured
// triple store and exposes lists, smushing and N-Triples import/export on it.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	cfg.Storage.Backend = config.BackendMemory
//
//	db, err := nornicrdf.Open(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	list, err := db.CreateList(rdf.IRI("http://example.org/todo"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	list.Append(rdf.NewLiteral("write docs"))
//
// With access control enabled in the config, use OpenWithCredentials. Every
// operation then runs through an access.SecuredGraph bound to the
// authenticated principal.
package nornicrdf

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/orneryd/nornicrdf/pkg/access"
	"github.com/orneryd/nornicrdf/pkg/audit"
	"github.com/orneryd/nornicrdf/pkg/config"
	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/rdflist"
	"github.com/orneryd/nornicrdf/pkg/smush"
	"github.com/orneryd/nornicrdf/pkg/storage"
)

// Errors returned by DB operations.
var (
	ErrClosed              = errors.New("database is closed")
	ErrCredentialsRequired = errors.New("access control is enabled: credentials required")
)

// DB is an open triple store.
type DB struct {
	mu     sync.Mutex
	closed bool

	cfg     *config.Config
	base    storage.Graph
	graph   storage.Graph
	policy  *access.Policy
	session *access.Session
	trail   *audit.Logger

	listOpts []rdflist.Option
	logf     func(format string, args ...any)
}

// Open opens the store described by cfg. It fails with ErrCredentialsRequired
// when cfg enables access control.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.LoadFromEnv()
	}
	if cfg.Access.Enabled {
		return nil, ErrCredentialsRequired
	}
	return open(cfg, "", "")
}

// OpenWithCredentials opens the store and authenticates user against the
// principals listed in cfg. Without access control the credentials are
// ignored.
func OpenWithCredentials(cfg *config.Config, user, password string) (*DB, error) {
	if cfg == nil {
		cfg = config.LoadFromEnv()
	}
	return open(cfg, user, password)
}

func open(cfg *config.Config, user, password string) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}

	db := &DB{
		cfg:    cfg,
		policy: policy,
		logf:   log.Printf,
	}

	db.trail, err = audit.NewLogger(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		LogPath:    cfg.Audit.LogPath,
		SyncWrites: cfg.Audit.SyncWrites,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Access.Enabled {
		db.session, err = policy.Authenticate(user, password)
		if logErr := db.trail.LogAuth(user, err == nil, errString(err)); logErr != nil {
			db.logf("audit: %v", logErr)
		}
		if err != nil {
			db.trail.Close()
			return nil, err
		}
	}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		db.base = storage.NewMemoryGraph()
		db.logf("using in-memory storage (data will not persist)")
	default:
		bg, err := storage.NewBadgerGraphWithOptions(storage.BadgerOptions{
			DataDir:      cfg.Storage.DataDir,
			InMemory:     cfg.Storage.InMemory,
			SyncWrites:   cfg.Storage.SyncWrites,
			LowMemory:    cfg.Storage.LowMemory,
			BlockCacheMB: cfg.Storage.BlockCacheMB,
		})
		if err != nil {
			db.trail.Close()
			return nil, fmt.Errorf("failed to open persistent storage: %w", err)
		}
		db.base = bg
		if cfg.Storage.InMemory {
			db.logf("using in-memory badger storage")
		} else {
			db.logf("using persistent storage at %s", cfg.Storage.DataDir)
		}
	}

	db.graph = db.base
	if db.session != nil {
		ctl := access.Audited(db.session, db.session.Principal(), db.trail)
		db.graph = access.NewSecuredGraph(db.base, rdf.IRI(cfg.Access.GraphName), ctl)
	}

	db.listOpts = []rdflist.Option{
		rdflist.WithDumpSink(dumpSink(cfg.Lists.DumpPath)),
		rdflist.WithDumpLimit(cfg.Lists.DumpLimit),
	}
	return db, nil
}

func buildPolicy(cfg *config.Config) (*access.Policy, error) {
	policy := access.NewPolicy(0)
	for _, u := range cfg.Access.Users {
		if err := policy.AddPrincipalHash(u.Name, u.PasswordHash, access.Role(u.DefaultRole)); err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Name, err)
		}
		for graph, role := range u.Grants {
			if err := policy.Grant(u.Name, rdf.IRI(graph), access.Role(role)); err != nil {
				return nil, fmt.Errorf("user %q grant on %s: %w", u.Name, graph, err)
			}
		}
	}
	return policy, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func dumpSink(path string) rdflist.DumpSink {
	switch path {
	case "off":
		return nil
	case "-":
		return rdflist.WriterSink{W: os.Stderr}
	default:
		return rdflist.FileSink{Path: path}
	}
}

// Config returns the configuration the store was opened with.
func (db *DB) Config() *config.Config { return db.cfg }

// Policy returns the principals loaded from the configuration.
func (db *DB) Policy() *access.Policy { return db.policy }

// Graph returns the default graph, permission checked when access control
// is enabled.
func (db *DB) Graph() storage.Graph { return db.graph }

// List returns a view of the list at head.
func (db *DB) List(head rdf.Subject) *rdflist.List {
	return rdflist.New(head, db.graph, db.listOpts...)
}

// CreateList marks head as an empty list.
func (db *DB) CreateList(head rdf.Subject) (*rdflist.List, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return rdflist.CreateEmpty(head, db.graph, db.listOpts...)
}

// FindLists returns views of every list containing term.
func (db *DB) FindLists(term rdf.Term) ([]*rdflist.List, bool, error) {
	if err := db.checkOpen(); err != nil {
		return nil, false, err
	}
	return rdflist.FindContainingLists(db.graph, term, db.listOpts...)
}

// Smush merges subjects of the default graph that share a value of an
// inverse functional property declared in schema. The graph's write lock is
// held for the whole run.
func (db *DB) Smush(schema storage.Graph) (*smush.Result, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	lock := db.graph.RWLock()
	lock.Lock()
	defer lock.Unlock()

	s := &smush.Smusher{Logger: db.logf}
	return s.Smush(db.graph, schema)
}

// Import adds the N-Triples read from r and returns how many were new.
// Blank nodes of the document become fresh nodes, so importing the same
// document twice adds its blank node triples twice.
func (db *DB) Import(r io.Reader) (int, error) {
	if err := db.checkOpen(); err != nil {
		return 0, err
	}
	lock := db.graph.RWLock()
	lock.Lock()
	defer lock.Unlock()

	dec := rdf.NewDecoder(r)
	added := 0
	for {
		t, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return added, nil
		}
		if err != nil {
			return added, err
		}
		ok, err := db.graph.Add(t)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
}

// Export writes every triple as N-Triples, sorted.
func (db *DB) Export(w io.Writer) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	lock := db.graph.RWLock()
	lock.RLock()
	defer lock.RUnlock()

	triples, err := storage.All(db.graph)
	if err != nil {
		return err
	}
	rdf.SortTriples(triples)
	return rdf.WriteNTriples(w, triples)
}

func (db *DB) checkOpen() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}

// Close closes the underlying storage and the audit trail. It is safe to
// call more than once.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var errs []error
	if c, ok := db.base.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
	}
	if err := db.trail.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing audit trail: %w", err))
	}
	return errors.Join(errs...)
}
