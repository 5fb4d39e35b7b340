package db

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/mwhitford/reddit-profiler/models"
)

// defaultSkips are usernames that can never resolve to an account and are
// seeded into the skip-list on first run.
var defaultSkips = []string{models.DeletedAuthor, "automoderator"}

// Cache is the persistent username -> AccountRecord store plus the
// skip-list of permanently unresolvable usernames. Both are loaded fully
// into memory at startup so Get and IsSkipped never touch disk; Put writes
// through to SQLite immediately so a crash loses at most the in-flight page.
type Cache struct {
	db       *sql.DB
	mutex    sync.RWMutex
	log      *logrus.Logger
	accounts map[string]models.AccountRecord
	skip     map[string]struct{}
}

// NewCache opens (or creates) the SQLite store at dbPath and loads it.
func NewCache(dbPath string, log *logrus.Logger) (*Cache, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	cache := &Cache{
		db:       sqlDB,
		log:      log,
		accounts: make(map[string]models.AccountRecord),
		skip:     make(map[string]struct{}),
	}

	if err := cache.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize cache tables: %w", err)
	}
	if err := cache.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}

	log.WithFields(logrus.Fields{
		"path":     dbPath,
		"accounts": len(cache.accounts),
		"skipped":  len(cache.skip),
	}).Info("Lookup cache loaded")

	return cache, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.db.Close()
}

func (c *Cache) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		username TEXT PRIMARY KEY,
		display TEXT NOT NULL,
		created_utc INTEGER NOT NULL,
		created_year INTEGER NOT NULL,
		last_activity_utc INTEGER NOT NULL,
		status TEXT NOT NULL,
		source TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS skiplist (
		username TEXT PRIMARY KEY
	);
	`
	if _, err := c.db.Exec(query); err != nil {
		return err
	}

	for _, name := range defaultSkips {
		if _, err := c.db.Exec(`INSERT OR IGNORE INTO skiplist (username) VALUES (?)`, strings.ToLower(name)); err != nil {
			return err
		}
	}
	return nil
}

// load reads both tables into memory. Called once from NewCache.
func (c *Cache) load() error {
	rows, err := c.db.Query(`SELECT username, display, created_utc, created_year, last_activity_utc, status, source FROM accounts`)
	if err != nil {
		return fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, display, status, source string
		var createdUTC, lastActivityUTC int64
		var createdYear int
		if err := rows.Scan(&key, &display, &createdUTC, &createdYear, &lastActivityUTC, &status, &source); err != nil {
			return fmt.Errorf("failed to scan account: %w", err)
		}
		c.accounts[key] = models.AccountRecord{
			Username:        display,
			CreatedUTC:      createdUTC,
			CreatedYear:     createdYear,
			LastActivityUTC: lastActivityUTC,
			Status:          models.AccountStatus(status),
			Source:          models.CreationSource(source),
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("account row iteration error: %w", err)
	}

	skipRows, err := c.db.Query(`SELECT username FROM skiplist`)
	if err != nil {
		return fmt.Errorf("failed to query skiplist: %w", err)
	}
	defer skipRows.Close()

	for skipRows.Next() {
		var name string
		if err := skipRows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan skiplist entry: %w", err)
		}
		c.skip[name] = struct{}{}
	}
	return skipRows.Err()
}

// Get returns the cached record for a username, if present.
func (c *Cache) Get(username string) (models.AccountRecord, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	rec, ok := c.accounts[strings.ToLower(username)]
	return rec, ok
}

// Put inserts or overwrites a record, writing through to disk. A resolved
// record is immutable: a transient-error record never replaces one, though
// an error record may later be promoted to any resolved status. Terminal
// statuses are also added to the skip-list.
func (c *Cache) Put(rec models.AccountRecord) error {
	key := strings.ToLower(rec.Username)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, ok := c.accounts[key]; ok && existing.Status.Resolved() && rec.Status == models.StatusError {
		return nil
	}

	query := `
	INSERT OR REPLACE INTO accounts (username, display, created_utc, created_year, last_activity_utc, status, source)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := c.db.Exec(query, key, rec.Username, rec.CreatedUTC, rec.CreatedYear, rec.LastActivityUTC, string(rec.Status), string(rec.Source)); err != nil {
		return fmt.Errorf("failed to save account record: %w", err)
	}
	c.accounts[key] = rec

	if rec.Status.Terminal() {
		if _, err := c.db.Exec(`INSERT OR IGNORE INTO skiplist (username) VALUES (?)`, key); err != nil {
			return fmt.Errorf("failed to save skiplist entry: %w", err)
		}
		c.skip[key] = struct{}{}
	}
	return nil
}

// IsSkipped reports whether a username is known permanently unresolvable.
func (c *Cache) IsSkipped(username string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.skip[strings.ToLower(username)]
	return ok
}

// SkipSet returns a snapshot of the skip-list, keyed by lower-cased name.
func (c *Cache) SkipSet() map[string]struct{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	set := make(map[string]struct{}, len(c.skip))
	for name := range c.skip {
		set[name] = struct{}{}
	}
	return set
}

// Size returns the number of cached account records.
func (c *Cache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.accounts)
}
