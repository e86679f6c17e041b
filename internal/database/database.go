package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"simpkl/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the sqlite-backed record store. Resource groups come from config
// and are cached here for quota lookups and listing.
type DB struct {
	*sql.DB
	mu     sync.RWMutex
	groups map[string]models.ResourceGroup
	sorted []models.ResourceGroup
	logger zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	l.Info().Str("path", path).Msg("database initialized")

	return &DB{
		DB:     sqlDB,
		groups: make(map[string]models.ResourceGroup),
		logger: l,
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// duration_days is TEXT: rows imported from the legacy datastore
		// are not guaranteed to hold a clean integer, and occupancy
		// accounting parses the value defensively.
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            applicant_name TEXT NOT NULL,
            applicant_email TEXT NOT NULL,
            phone TEXT,
            institution TEXT,
            resource_group TEXT NOT NULL,
            resource_type TEXT NOT NULL,
            start_date TEXT NOT NULL,
            duration_days TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            comment TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_group ON bookings(resource_group)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_start_date ON bookings(start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_email ON bookings(applicant_email)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("exec %q: %w", query, err)
		}
	}
	return nil
}

// SetGroups replaces the cached resource groups used for quota lookups.
func (db *DB) SetGroups(groups []models.ResourceGroup) {
	byName := make(map[string]models.ResourceGroup, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}

	sorted := append([]models.ResourceGroup(nil), groups...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SortOrder == sorted[j].SortOrder {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	db.mu.Lock()
	db.groups = byName
	db.sorted = sorted
	db.mu.Unlock()
}

// GetGroups returns the cached groups in sort order.
func (db *DB) GetGroups() []models.ResourceGroup {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]models.ResourceGroup(nil), db.sorted...)
}

// GetGroupByName returns a cached group by its name.
func (db *DB) GetGroupByName(name string) (models.ResourceGroup, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	g, ok := db.groups[name]
	return g, ok
}
