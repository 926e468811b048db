// person-search maintains the derived person search-attribute index.
//
// Usage:
//
//	person-search [-config config.yaml] migrate
//	person-search [-config config.yaml] reindex [-person <uuid>]
//	person-search [-config config.yaml] find [-provenance] <attribute-type> <value>
//	person-search [-config config.yaml] synonyms import <file.yaml>
//
// Database connection: PG* environment variables override the config file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trs-platform/person-search/pkg/audit"
	"github.com/trs-platform/person-search/pkg/config"
	"github.com/trs-platform/person-search/pkg/database"
	"github.com/trs-platform/person-search/pkg/logging"
	"github.com/trs-platform/person-search/pkg/models"
	"github.com/trs-platform/person-search/pkg/repositories"
	"github.com/trs-platform/person-search/pkg/retry"
	"github.com/trs-platform/person-search/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

var errUsage = errors.New("usage")

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	flag.Usage = usage
	flag.Parse()

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n", err)
		}
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, cmd, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", logging.SanitizeError(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-config path] <command> [args]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  migrate                                 Apply pending schema migrations\n")
	fmt.Fprintf(os.Stderr, "  reindex [-person <uuid>]                Rebuild the search index\n")
	fmt.Fprintf(os.Stderr, "  find [-provenance] <type> <value>       Look up persons by attribute\n")
	fmt.Fprintf(os.Stderr, "  synonyms import <file.yaml>             Load name synonyms\n")
}

// command is a parsed subcommand line.
type command struct {
	name       string
	personID   uuid.UUID
	attrType   models.SearchAttributeType
	value      string
	provenance bool
	file       string
}

func parseCommand(args []string) (*command, error) {
	if len(args) == 0 {
		return nil, errUsage
	}

	cmd := &command{name: args[0]}
	rest := args[1:]

	switch cmd.name {
	case "migrate":
		if len(rest) != 0 {
			return nil, fmt.Errorf("migrate takes no arguments")
		}

	case "reindex":
		fs := flag.NewFlagSet("reindex", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		person := fs.String("person", "", "Reindex a single person")
		if err := fs.Parse(rest); err != nil {
			return nil, fmt.Errorf("reindex: %w", err)
		}
		if fs.NArg() != 0 {
			return nil, fmt.Errorf("reindex takes no positional arguments")
		}
		if *person != "" {
			id, err := uuid.Parse(*person)
			if err != nil {
				return nil, fmt.Errorf("invalid person ID: %w", err)
			}
			cmd.personID = id
		}

	case "find":
		fs := flag.NewFlagSet("find", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.BoolVar(&cmd.provenance, "provenance", false, "Print matching rows with their scope and tags")
		if err := fs.Parse(rest); err != nil {
			return nil, fmt.Errorf("find: %w", err)
		}
		if fs.NArg() != 2 {
			return nil, fmt.Errorf("find needs <attribute-type> <value>")
		}
		attrType, err := models.ParseSearchAttributeType(fs.Arg(0))
		if err != nil {
			return nil, err
		}
		cmd.attrType = attrType
		cmd.value = fs.Arg(1)

	case "synonyms":
		if len(rest) != 2 || rest[0] != "import" {
			return nil, fmt.Errorf("synonyms needs: import <file.yaml>")
		}
		cmd.name = "synonyms import"
		cmd.file = rest[1]

	default:
		return nil, fmt.Errorf("unknown command %q", cmd.name)
	}

	return cmd, nil
}

// app holds the wired repositories and services.
type app struct {
	search   services.PersonSearchService
	reindex  services.ReindexService
	synonyms services.SynonymImportService
}

func run(ctx context.Context, configPath string, cmd *command, out io.Writer) error {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("command", cmd.name),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())))

	if cmd.name == "migrate" || cfg.Migrations.RunOnStart {
		if err := migrate(cfg, logger); err != nil {
			return err
		}
		if cmd.name == "migrate" {
			return nil
		}
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             cfg.Database.URL(),
		MaxConnections:  cfg.Database.MaxConnections,
		ApplicationName: "person-search " + cmd.name,
		LockTimeout:     time.Duration(cfg.Database.LockTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	a := newApp(cfg, db, logger)
	ctx = audit.WithActor(ctx, os.Getenv("USER"))

	switch cmd.name {
	case "reindex":
		return a.runReindex(ctx, cmd.personID, out)
	case "find":
		return a.runFind(ctx, cmd, out)
	case "synonyms import":
		return a.runSynonymImport(ctx, cmd.file, out)
	}
	return fmt.Errorf("unknown command %q", cmd.name)
}

func migrate(cfg *config.Config, logger *zap.Logger) error {
	migrationDB, err := database.OpenMigrationDB(cfg.Database.URL(), database.DefaultMigrationTimeout)
	if err != nil {
		return err
	}
	defer migrationDB.Close()

	return database.RunMigrations(migrationDB, logger)
}

func newApp(cfg *config.Config, db *database.DB, logger *zap.Logger) *app {
	persons := repositories.NewPersonRepository()
	previousNames := repositories.NewPreviousNameRepository()
	employments := repositories.NewTpsEmploymentRepository()
	synonymRepo := repositories.NewNameSynonymsRepository()
	attrRepo := repositories.NewSearchAttributeRepository()

	auditor := audit.NewSearchAuditor(logger)
	index := services.NewSearchIndexService(attrRepo, synonymRepo, auditor, logger)
	services.RegisterSearchIndexBindings(index, persons, previousNames, employments)

	retryCfg := retry.NewConfig(cfg.Retry.MaxRetries, time.Duration(cfg.Retry.InitialDelayMs)*time.Millisecond)

	return &app{
		search: services.NewPersonSearchService(db, attrRepo, auditor, logger),
		reindex: services.NewReindexService(db, persons, previousNames, employments, attrRepo, index,
			services.ReindexOptions{
				Concurrency: cfg.Reindex.Concurrency,
				BatchSize:   cfg.Reindex.BatchSize,
				Retry:       retryCfg,
			}, logger),
		synonyms: services.NewSynonymImportService(db, synonymRepo, logger),
	}
}

func (a *app) runReindex(ctx context.Context, personID uuid.UUID, out io.Writer) error {
	var (
		summary *services.ReindexSummary
		err     error
	)
	if personID != uuid.Nil {
		summary, err = a.reindex.ReindexPerson(ctx, personID)
	} else {
		summary, err = a.reindex.ReindexAll(ctx)
	}
	if err != nil {
		return err
	}
	return writeJSON(out, summary)
}

func (a *app) runFind(ctx context.Context, cmd *command, out io.Writer) error {
	if cmd.provenance {
		matches, err := a.search.FindCandidates(ctx, cmd.attrType, cmd.value)
		if err != nil {
			return err
		}
		return writeJSON(out, matches)
	}

	ids, err := a.search.Find(ctx, cmd.attrType, cmd.value)
	if err != nil {
		return err
	}
	return writeJSON(out, ids)
}

func (a *app) runSynonymImport(ctx context.Context, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open synonym file: %w", err)
	}
	defer f.Close()

	n, err := a.synonyms.Import(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d synonym entries from %s\n", n, path)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
