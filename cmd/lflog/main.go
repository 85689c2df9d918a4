// lflog queries unstructured log files with SQL. A compact macro pattern
// describes the shape of a line; the derived table is queryable with
// ordinary SELECT statements.
//
// Config file resolution order: --config, then LFLOG_CONFIG, then
// ~/.config/lflog/config.toml.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lflog/lflog/pkg/app"
	"github.com/lflog/lflog/pkg/config"
	"github.com/lflog/lflog/pkg/errors"
	"github.com/lflog/lflog/pkg/logger"
	"github.com/lflog/lflog/pkg/output"
)

var version = "0.1.0"

type flags struct {
	config      string
	profile     string
	pattern     string
	table       string
	query       string
	format      string
	addFilePath bool
	addRaw      bool
	numThreads  int
	logLevel    string
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "lflog [flags] <path-or-glob>",
		Short: "Query log files with SQL",
		Long: `lflog exposes unstructured log files as a queryable relational table.
A pattern of {{name:kind(args)}} macros describes the shape of a line; lflog
derives a typed schema from it and executes SQL against the file set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(args[0], f)
		},
	}

	root.Flags().StringVarP(&f.config, "config", "c", "", "Path to config file (TOML)")
	root.Flags().StringVarP(&f.profile, "profile", "p", "", "Profile name from config")
	root.Flags().StringVar(&f.pattern, "pattern", "", "Pattern override (or use without a profile)")
	root.Flags().StringVarP(&f.table, "table", "t", "log", "Table name for SQL queries")
	root.Flags().StringVarP(&f.query, "query", "q", "", "SQL query to execute (omit for interactive mode)")
	root.Flags().StringVar(&f.format, "format", "table", "Output format: table, json, or csv")
	root.Flags().BoolVarP(&f.addFilePath, "add-file-path", "f", false, `Add the "__FILE__" column`)
	root.Flags().BoolVarP(&f.addRaw, "add-raw", "r", false, `Add the "__RAW__" column`)
	root.Flags().IntVarP(&f.numThreads, "num-threads", "n", 0, "Number of scan threads (default 8, or LFLOGTHREADS)")
	root.Flags().StringVar(&f.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lflog v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(logPath string, f flags) error {
	if err := logger.Init(logger.Config{Level: f.logLevel, Encoding: "console"}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	format, err := output.ParseFormat(f.format)
	if err != nil {
		return err
	}

	var cfg *config.File
	if path, ok := config.ResolvePath(f.config); ok {
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		logger.Debug("loaded config", zap.String("path", path), zap.Int("profiles", len(cfg.Profiles)))
	} else if f.pattern == "" {
		return errors.New(errors.ErrorTypeConfig,
			"no config file found. Either:\n"+
				"  - create ~/.config/lflog/config.toml\n"+
				"  - set LFLOG_CONFIG\n"+
				"  - use --config <path>\n"+
				"  - use --pattern <regex> without a config file")
	}

	a := app.New(cfg)
	err = a.Register(app.QueryOptions{
		LogPath:     logPath,
		Profile:     f.profile,
		Pattern:     f.pattern,
		Table:       f.table,
		AddFilePath: f.addFilePath,
		AddRaw:      f.addRaw,
		Threads:     f.numThreads,
	})
	if err != nil {
		return err
	}

	if f.query != "" {
		schema, iter, ctx, err := a.Query(f.query)
		if err != nil {
			return err
		}
		return output.Render(os.Stdout, format, ctx, schema, iter)
	}
	return a.RunREPL(os.Stdout, format)
}
