package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
	"github.com/tidwall/btree"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend stores a file tree in a single SQLite database:
//
// Layer 1: In-memory B-tree for fast key → node lookups (keys map)
// Layer 2: SQLite metadata table (vfs_metadata) for the tree structure
// Layer 3: SQLite data table (vfs_data) for file content
//
// The root directory is implicit and never stored. Streams work on an in-memory
// copy of the content that is written back when the stream is closed.
type SQLiteBackend struct {
	vfs.Base

	mu  sync.RWMutex
	db  *sql.DB
	log *log.Logger
	hub *vfs.Hub

	// In-memory B-tree for fast key lookups
	keys    *btree.Map[string, node]
	created time.Time
}

type node struct {
	id  string
	dir bool
}

type Option func(*Options) error

type Options struct {
	Logger *log.Logger
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// New opens or creates the database at dsn and loads its keys.
// The dsn can be ":memory:" for an in-memory database or a file path.
func New(dsn string, opts ...Option) (*SQLiteBackend, error) {
	options := &Options{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Default("vfs")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		// Every connection to :memory: opens a distinct database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	sb := &SQLiteBackend{
		Base:    vfs.Base{BackendName: "sqlite"},
		db:      db,
		log:     logger.Named("sqlite"),
		hub:     vfs.NewHub(),
		keys:    btree.NewMap[string, node](0),
		created: time.Now(),
	}

	if err := sb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := sb.loadKeys(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	sb.log.Debug("New: opened %s with %d keys", dsn, sb.keys.Len())
	return sb, nil
}

func (sb *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vfs_metadata (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		dir INTEGER NOT NULL,
		mode INTEGER NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		modify_time INTEGER NOT NULL,
		content_type TEXT
	);

	CREATE TABLE IF NOT EXISTS vfs_data (
		id TEXT PRIMARY KEY REFERENCES vfs_metadata(id) ON DELETE CASCADE,
		content BLOB
	);
	`

	_, err := sb.db.Exec(schema)
	return err
}

func (sb *SQLiteBackend) loadKeys(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	rows, err := sb.db.QueryContext(ctx, "SELECT key, id, dir FROM vfs_metadata")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, id string
		var dir int
		if err := rows.Scan(&key, &id, &dir); err != nil {
			return err
		}
		sb.keys.Set(key, node{id: id, dir: dir != 0})
	}

	return rows.Err()
}

func (*SQLiteBackend) Name() string {
	return "sqlite"
}

func (sb *SQLiteBackend) Root() vfs.File {
	return vfs.Root(sb)
}

// Close releases the database. Streams still open lose unflushed writes.
func (sb *SQLiteBackend) Close() error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.keys.Clear()
	return sb.db.Close()
}

// lookupUnsafe resolves a normalized key, the root included.
// MUST be called while holding the lock.
func (sb *SQLiteBackend) lookupUnsafe(key string) (node, bool) {
	if key == "/" {
		return node{dir: true}, true
	}
	return sb.keys.Get(key)
}

// descendantsUnsafe returns every key strictly below key in ascending order.
// MUST be called while holding the lock.
func (sb *SQLiteBackend) descendantsUnsafe(key string) []string {
	prefix := key + "/"
	if key == "/" {
		prefix = "/"
	}

	var keys []string
	sb.keys.Ascend(prefix, func(childKey string, _ node) bool {
		if !strings.HasPrefix(childKey, prefix) {
			return false
		}
		keys = append(keys, childKey)
		return true
	})
	return keys
}

func (sb *SQLiteBackend) emit(kind vfs.EventKind, path, newPath string) {
	sb.log.Debug("Emit: %s %s %s", kind, path, newPath)
	sb.hub.Emit(vfs.Event{Kind: kind, Path: path, NewPath: newPath})
}

// withDB runs fn on the worker pool, since every database call blocks.
func withDB[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return async.RunBlocking(ctx, func(*async.CancellationToken) (T, error) {
		return fn()
	})
}
