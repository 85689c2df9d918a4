// Package app wires the pieces together: pattern resolution, table
// registration, and SQL execution against the embedded engine.
package app

import (
	"context"

	sqle "github.com/dolthub/go-mysql-server"
	"github.com/dolthub/go-mysql-server/sql"
	"go.uber.org/zap"

	"github.com/lflog/lflog/pkg/config"
	"github.com/lflog/lflog/pkg/errors"
	"github.com/lflog/lflog/pkg/logger"
	"github.com/lflog/lflog/pkg/logtable"
	"github.com/lflog/lflog/pkg/macros"
	"github.com/lflog/lflog/pkg/scan"
	"github.com/lflog/lflog/pkg/scanner"
)

// DatabaseName is the catalog name the tables are registered under.
const DatabaseName = "lflog"

// QueryOptions describes one log table registration.
type QueryOptions struct {
	// LogPath is the input file path or glob.
	LogPath string
	// Profile selects a named pattern from the config.
	Profile string
	// Pattern overrides the profile's pattern when set.
	Pattern string
	// Table is the SQL table name (default "log").
	Table string
	// AddFilePath appends the __FILE__ metadata column.
	AddFilePath bool
	// AddRaw appends the __RAW__ metadata column.
	AddRaw bool
	// Threads is the scan parallelism; 0 resolves the default.
	Threads int
}

// App owns the SQL engine and the registered log tables.
type App struct {
	engine *sqle.Engine
	db     *logtable.Database
	cfg    *config.File
	log    *zap.Logger
}

// New creates an App. cfg may be nil when only inline patterns are used.
func New(cfg *config.File) *App {
	db := logtable.NewDatabase(DatabaseName)
	return &App{
		engine: sqle.NewDefault(logtable.NewProvider(db)),
		db:     db,
		cfg:    cfg,
		log:    logger.With(zap.String("component", "app")),
	}
}

// Register compiles the pattern for opts and registers the resulting table.
// The pattern is resolved in order: explicit pattern, then the named
// profile. Compile errors are fatal before any partition starts.
func (a *App) Register(opts QueryOptions) error {
	if opts.Table == "" {
		opts.Table = "log"
	}

	pattern, custom, err := a.resolvePattern(opts)
	if err != nil {
		return err
	}

	sc, err := scanner.New(pattern, custom)
	if err != nil {
		return err
	}

	files, err := scan.ExpandGlob(opts.LogPath)
	if err != nil {
		return err
	}

	a.log.Debug("registering table",
		zap.String("table", opts.Table),
		zap.Int("fields", len(sc.Fields())),
		zap.Int("files", len(files)),
		zap.String("regex", sc.Regex()))

	table := logtable.New(opts.Table, sc, files, logtable.Options{
		AddFilePath: opts.AddFilePath,
		AddRaw:      opts.AddRaw,
		Threads:     opts.Threads,
	})
	return a.db.AddTable(table)
}

// resolvePattern returns the pattern text and the custom macros in scope.
func (a *App) resolvePattern(opts QueryOptions) (string, []macros.CustomMacro, error) {
	if opts.Pattern != "" {
		// Inline pattern still sees the profile's macros when a profile
		// is named, otherwise the config's top-level macros.
		if a.cfg == nil {
			return opts.Pattern, nil, nil
		}
		if opts.Profile != "" {
			if p, ok := a.cfg.Profile(opts.Profile); ok {
				custom, err := p.Macros()
				return opts.Pattern, custom, err
			}
		}
		custom, err := a.cfg.Macros()
		return opts.Pattern, custom, err
	}

	if opts.Profile == "" {
		return "", nil, errors.New(errors.ErrorTypeConfig, "either --profile or --pattern must be provided")
	}
	if a.cfg == nil {
		return "", nil, errors.New(errors.ErrorTypeConfig, "no config loaded, cannot use --profile")
	}
	p, ok := a.cfg.Profile(opts.Profile)
	if !ok {
		return "", nil, errors.New(errors.ErrorTypeConfig, "profile not found: "+opts.Profile)
	}
	custom, err := p.Macros()
	return p.Pattern, custom, err
}

// Query executes sql text and returns the result schema and row iterator
// along with the context needed to drain it.
func (a *App) Query(query string) (sql.Schema, sql.RowIter, *sql.Context, error) {
	ctx := a.newContext()
	schema, iter, err := a.engine.Query(ctx, query)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, errors.ErrorTypeQuery, "query failed")
	}
	return schema, iter, ctx, nil
}

func (a *App) newContext() *sql.Context {
	ctx := sql.NewContext(context.Background(), sql.WithSession(sql.NewBaseSession()))
	ctx.SetCurrentDatabase(DatabaseName)
	return ctx
}
