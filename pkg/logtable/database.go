package logtable

import (
	"sort"
	"strings"
	"sync"

	"github.com/dolthub/go-mysql-server/sql"

	"github.com/lflog/lflog/pkg/errors"
)

// Database is the catalog entry that holds registered log tables.
type Database struct {
	name string

	mu     sync.RWMutex
	tables map[string]sql.Table
}

var _ sql.Database = (*Database)(nil)

// NewDatabase creates an empty database with the given name.
func NewDatabase(name string) *Database {
	return &Database{
		name:   name,
		tables: make(map[string]sql.Table),
	}
}

// Name implements sql.Database.
func (d *Database) Name() string {
	return d.name
}

// AddTable registers a table. Registering the same name twice is an error.
func (d *Database) AddTable(t sql.Table) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(t.Name())
	if _, exists := d.tables[key]; exists {
		return errors.New(errors.ErrorTypeConfig, "table already registered: "+t.Name())
	}
	d.tables[key] = t
	return nil
}

// GetTableInsensitive implements sql.Database.
func (d *Database) GetTableInsensitive(_ *sql.Context, tblName string) (sql.Table, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tables[strings.ToLower(tblName)]
	return t, ok, nil
}

// GetTableNames implements sql.Database.
func (d *Database) GetTableNames(_ *sql.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.tables))
	for _, t := range d.tables {
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Provider exposes the single lflog database to the engine.
type Provider struct {
	db *Database
}

var _ sql.DatabaseProvider = (*Provider)(nil)

// NewProvider wraps db in a sql.DatabaseProvider.
func NewProvider(db *Database) *Provider {
	return &Provider{db: db}
}

// Database implements sql.DatabaseProvider.
func (p *Provider) Database(_ *sql.Context, name string) (sql.Database, error) {
	if strings.EqualFold(name, p.db.name) {
		return p.db, nil
	}
	return nil, sql.ErrDatabaseNotFound.New(name)
}

// HasDatabase implements sql.DatabaseProvider.
func (p *Provider) HasDatabase(_ *sql.Context, name string) bool {
	return strings.EqualFold(name, p.db.name)
}

// AllDatabases implements sql.DatabaseProvider.
func (p *Provider) AllDatabases(_ *sql.Context) []sql.Database {
	return []sql.Database{p.db}
}
