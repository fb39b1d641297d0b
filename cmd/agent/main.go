// Command agent runs the HelixVault data agent: it stores encrypted genome
// payloads and answers privacy-preserving queries over them from the
// command line.
//
// Usage:
//
//	agent [-config agent.yaml] store -file genome.txt -token 1
//	agent [-config agent.yaml] check -token 1 -rsid rs12913832 [-genotype GG]
//	agent [-config agent.yaml] trait -token 1 -trait eye_color
//	agent [-config agent.yaml] search -token 1 -rsids rs671,rs17822931
//	agent [-config agent.yaml] traits
//	agent [-config agent.yaml] audit [-limit 20]
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/HelixVault/agent_layer/internal/app"
	"github.com/HelixVault/agent_layer/internal/app/domain/genome"
	"github.com/HelixVault/agent_layer/internal/app/metrics"
	"github.com/HelixVault/agent_layer/internal/app/services/analysis"
	"github.com/HelixVault/agent_layer/internal/app/storage"
	"github.com/HelixVault/agent_layer/internal/app/storage/badgerstore"
	"github.com/HelixVault/agent_layer/internal/app/storage/postgres"
	"github.com/HelixVault/agent_layer/internal/config"
	"github.com/HelixVault/agent_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "agent.yaml", "path to the agent configuration file")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("component", "agent")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, flag.Args()); err != nil {
		log.WithError(err).Error("agent failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	// Listing traits needs no key material or stores.
	if args[0] == "traits" {
		return cmdTraits()
	}

	stores, cleanup, err := buildStores(cfg)
	if err != nil {
		return fmt.Errorf("configure stores: %w", err)
	}
	defer cleanup()

	application, err := app.New(app.Options{Config: cfg, Stores: stores, Log: log})
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Stop(stopCtx); err != nil {
			log.WithError(err).Warn("shutdown incomplete")
		}
	}()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "store":
		return cmdStore(ctx, application, rest)
	case "check":
		return cmdCheck(ctx, application, rest)
	case "trait":
		return cmdTrait(ctx, application, rest)
	case "search":
		return cmdSearch(ctx, application, rest)
	case "audit":
		return cmdAudit(ctx, stores, application, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func buildStores(cfg *config.Config) (app.Stores, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		// app.New defaults nil stores to the in-memory implementation.
		return app.Stores{}, func() {}, nil
	case "badger":
		store, err := badgerstore.Open(cfg.Storage.Dir)
		if err != nil {
			return app.Stores{}, nil, err
		}
		// The application manages Close through its lifecycle.
		return app.Stores{Content: store, Audit: store}, func() {}, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Storage.PostgresDSN)
		if err != nil {
			return app.Stores{}, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return app.Stores{}, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := postgres.New(db)
		return app.Stores{Content: store, Audit: store}, func() { db.Close() }, nil
	default:
		return app.Stores{}, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func serveMetrics(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Warn("metrics listener stopped")
	}
}

func cmdStore(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("store", flag.ExitOnError)
	file := fs.String("file", "", "genome data file (23andMe, AncestryDNA or VCF)")
	token := fs.Int64("token", 0, "data token id")
	fs.Parse(args)

	if *file == "" || *token == 0 {
		return fmt.Errorf("store: -file and -token are required")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read genome file: %w", err)
	}
	up, err := application.StoreGenome(ctx, *token, raw, *file)
	if err != nil {
		return err
	}
	fmt.Printf("stored: token=%d content_id=%s size=%d\n", *token, up.ContentID, up.Size)
	return nil
}

func cmdCheck(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	token := fs.Int64("token", 0, "data token id")
	rsid := fs.String("rsid", "", "variant rsID")
	genotype := fs.String("genotype", "", "optional target genotype")
	fs.Parse(args)

	if *rsid == "" {
		return fmt.Errorf("check: -rsid is required")
	}
	return execute(ctx, application, *token, genome.VariantCheck{RSID: *rsid, Genotype: *genotype})
}

func cmdTrait(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("trait", flag.ExitOnError)
	token := fs.Int64("token", 0, "data token id")
	trait := fs.String("trait", "", "trait name")
	fs.Parse(args)

	if *trait == "" {
		return fmt.Errorf("trait: -trait is required")
	}
	return execute(ctx, application, *token, genome.TraitQuery{Trait: *trait})
}

func cmdSearch(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	token := fs.Int64("token", 0, "data token id")
	rsids := fs.String("rsids", "", "comma-separated rsIDs")
	fs.Parse(args)

	if *rsids == "" {
		return fmt.Errorf("search: -rsids is required")
	}
	return execute(ctx, application, *token, genome.BatchVariantSearch{RSIDs: strings.Split(*rsids, ",")})
}

func execute(ctx context.Context, application *app.Application, tokenID int64, req genome.AnalysisRequest) error {
	resp := application.Sessions.Execute(ctx, genome.Query{
		QueryID:   uuid.NewString(),
		TokenID:   tokenID,
		Request:   req,
		Requester: "cli",
		Timestamp: time.Now().UTC(),
	})
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if resp.Status != genome.StatusCompleted {
		return fmt.Errorf("query %s: %s", resp.Status, resp.Err)
	}
	return nil
}

func cmdTraits() error {
	for _, trait := range analysis.AvailableTraits() {
		fmt.Println(trait)
	}
	return nil
}

func cmdAudit(ctx context.Context, stores app.Stores, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum entries to show")
	fs.Parse(args)

	var (
		recs []storage.AuditRecord
		err  error
	)
	if stores.Audit != nil {
		recs, err = stores.Audit.ListAudit(ctx, *limit)
		if err != nil {
			return fmt.Errorf("list audit: %w", err)
		}
	} else {
		recs = application.Sessions.AuditEntries(*limit)
	}
	for _, rec := range recs {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}
	return nil
}
