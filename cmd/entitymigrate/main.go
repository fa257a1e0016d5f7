package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"entitymigrate/internal/config"
	"entitymigrate/internal/db"
	"entitymigrate/internal/httpserver"
	"entitymigrate/internal/ledger"
	"entitymigrate/internal/logging"
	"entitymigrate/internal/metadata"
	"entitymigrate/internal/migrate"
	"entitymigrate/internal/schema"
	"entitymigrate/internal/snapshot"
	"entitymigrate/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init-config":
		err = initConfigCmd(args)
	case "generate":
		err = generateCmd(args)
	case "apply":
		err = applyCmd(args)
	case "rollback":
		err = rollbackCmd(args)
	case "status":
		err = statusCmd(args)
	case "serve":
		err = serveCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`entitymigrate commands:
  init-config - create a starter config.yaml
  generate    - diff entities (or the live schema) against the latest snapshot and write a migration unit
  apply       - run all pending migration units as one batch
  rollback    - undo the last N batches in reverse order
  status      - show applied and pending migration units
  serve       - launch the read-only JSON status API

Flags are command specific; run "<cmd> -h" for details.`)
}

func initConfigCmd(args []string) error {
	fs := flagSet("init-config")
	path := fs.String("path", "config.yaml", "where to write the sample config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err == nil {
		return fmt.Errorf("%s already exists", *path)
	}
	if err := os.WriteFile(*path, []byte(config.Sample()), 0o644); err != nil {
		return err
	}
	fmt.Println("sample config written to", *path)
	return nil
}

func generateCmd(args []string) error {
	fs := flagSet("generate")
	configPath := fs.String("config", "config.yaml", "path to config file")
	name := fs.String("name", "", "migration name")
	from := fs.String("from", "", "schema source: entities or db (default: entities when entities_file is set)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	source := *from
	if source == "" {
		if cfg.EntitiesFile != "" {
			source = "entities"
		} else {
			source = "db"
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := db.Open(cfg.Database.Provider, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer adapter.Close()

	var current schema.Catalog
	switch source {
	case "entities":
		if cfg.EntitiesFile == "" {
			return fmt.Errorf("entities_file is not configured")
		}
		defs, err := metadata.LoadFile(cfg.EntitiesFile)
		if err != nil {
			return err
		}
		current, err = metadata.ParseAll(defs)
		if err != nil {
			return err
		}
	case "db":
		current, err = adapter.FetchSchema(ctx, cfg.Database.Schema)
		if err != nil {
			return fmt.Errorf("introspect schema: %w", err)
		}
	default:
		return fmt.Errorf("unknown schema source %q (use entities or db)", source)
	}

	runner := buildRunner(cfg, adapter, logger)
	unit, err := runner.Generate(ctx, *name, current)
	if errors.Is(err, migrate.ErrNoChanges) {
		return fmt.Errorf("nothing to generate: %w", err)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Generated migration %s\n", unit.Version)
	return nil
}

func applyCmd(args []string) error {
	fs := flagSet("apply")
	configPath := fs.String("config", "config.yaml", "path to config file")
	approve := fs.Bool("approve", false, "skip approval prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if !*approve {
		fmt.Printf("About to apply all pending migrations on %s\n", cfg.Database.Provider)
		if ok, err := promptYes("Type YES to proceed: "); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("aborted by user")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	adapter, err := db.Open(cfg.Database.Provider, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer adapter.Close()

	result, err := buildRunner(cfg, adapter, logger).Apply(ctx)
	for _, v := range result.Applied {
		fmt.Println("applied", v)
	}
	if err != nil {
		return err
	}
	if len(result.Applied) == 0 {
		fmt.Println("nothing to apply")
	} else {
		fmt.Printf("Batch %d applied (%d units).\n", result.Batch, len(result.Applied))
	}
	return nil
}

func rollbackCmd(args []string) error {
	fs := flagSet("rollback")
	configPath := fs.String("config", "config.yaml", "path to config file")
	batches := fs.Int("batches", 1, "number of batches to roll back")
	approve := fs.Bool("approve", false, "skip approval prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if !*approve {
		fmt.Printf("About to roll back the last %d batch(es) on %s\n", *batches, cfg.Database.Provider)
		if ok, err := promptYes("Type YES to proceed: "); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("aborted by user")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	adapter, err := db.Open(cfg.Database.Provider, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer adapter.Close()

	result, err := buildRunner(cfg, adapter, logger).Rollback(ctx, *batches)
	for _, v := range result.RolledBack {
		fmt.Println("rolled back", v)
	}
	if err != nil {
		return err
	}
	if len(result.RolledBack) == 0 {
		fmt.Println("nothing to roll back")
	}
	return nil
}

func statusCmd(args []string) error {
	fs := flagSet("status")
	configPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := db.Open(cfg.Database.Provider, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer adapter.Close()

	status, err := buildRunner(cfg, adapter, logger).Status(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Applied:")
	if len(status.Applied) == 0 {
		fmt.Println("  none")
	}
	for _, rec := range status.Applied {
		fmt.Printf("  [batch %d] %s applied_at=%s run=%s\n",
			rec.Batch, rec.Version, rec.AppliedAt.Format(time.RFC3339), rec.RunID)
	}
	fmt.Println("Pending:")
	if len(status.Pending) == 0 {
		fmt.Println("  none")
	}
	for _, v := range status.Pending {
		fmt.Println(" ", v)
	}
	return nil
}

func serveCmd(args []string) error {
	fs := flagSet("serve")
	configPath := fs.String("config", "config.yaml", "path to config file")
	addr := fs.String("addr", "", "listen address (overrides http_address)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	adapter, err := db.Open(cfg.Database.Provider, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer adapter.Close()

	listen := cfg.HTTPAddress
	if *addr != "" {
		listen = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	units := storage.New(cfg.MigrationsDir)
	srv := httpserver.New(listen, buildRunner(cfg, adapter, logger), units, logger)
	logger.Info("status API listening", "addr", listen)
	return srv.Start(ctx)
}

func buildRunner(cfg config.Config, adapter db.Adapter, logger migrate.Logger) *migrate.Runner {
	return migrate.New(
		adapter,
		ledger.New(adapter, cfg.LedgerTable),
		storage.New(cfg.MigrationsDir),
		snapshot.New(cfg.SnapshotsDir),
		logger,
	)
}

func promptYes(prompt string) (bool, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}

func flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	return fs
}
