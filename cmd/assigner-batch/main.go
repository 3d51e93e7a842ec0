package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/common"
	"github.com/facturapass/password-assigner/internal/entity"
	"github.com/facturapass/password-assigner/internal/extract"
	"github.com/facturapass/password-assigner/internal/extract/pdftable"
	"github.com/facturapass/password-assigner/internal/extract/tabular"
	"github.com/facturapass/password-assigner/internal/extract/vision"
	"github.com/facturapass/password-assigner/internal/match"
	"github.com/facturapass/password-assigner/internal/profiles"
	"github.com/facturapass/password-assigner/internal/proposal"
	"github.com/facturapass/password-assigner/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory with documents to process (required)")
		template = flag.String("template", "", "template id bound to tabular files in this batch")
		apply    = flag.Bool("apply", false, "write auto-approved rows back to the ledger")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	// .env is optional; real env wins.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()

	if cfg.Database.DSN == "" {
		printError("Error: DB_URL is required\n")
		os.Exit(1)
	}
	db, err := repository.Open(cfg.Database.DSN)
	if err != nil {
		logger.Error("db.open.failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("db.close.error", "error", cerr)
		}
	}()
	if err := repository.HealthCheck(ctx, db, 3*time.Second); err != nil {
		logger.Error("db.health.failed", "error", err)
		os.Exit(1)
	}
	if !strings.HasPrefix(cfg.Database.DSN, "postgres") {
		if err := repository.EnsureSchema(ctx, db); err != nil {
			logger.Error("db.schema.failed", "error", err)
			os.Exit(1)
		}
	}

	store, err := profiles.Load(cfg.Profiles.Path, logger)
	if err != nil {
		logger.Error("profiles.load.failed", "path", cfg.Profiles.Path, "error", err)
		os.Exit(1)
	}

	// Capability registry: strategies are resolved once here; a missing
	// binary or credential disables a strategy instead of failing mid-batch.
	runner := extract.ExecRunner{}
	var pdfTableStrategy extract.Strategy
	if path, lookErr := exec.LookPath(cfg.PDF.Pdftotext); lookErr == nil {
		pdfTableStrategy = pdftable.New(logger, runner, path)
	} else {
		logger.Warn("capability.pdftotext.missing", "bin", cfg.PDF.Pdftotext)
	}

	var visionStrategy extract.Strategy
	if cfg.Provider.APIKey != "" {
		var rasterizer vision.Rasterizer
		if path, lookErr := exec.LookPath(cfg.PDF.Pdftoppm); lookErr == nil {
			rasterizer = vision.NewPopplerRasterizer(logger, runner, path,
				cfg.PDF.DPI, cfg.PDF.MaxWidth, cfg.PDF.JPEGQuality)
		} else {
			logger.Warn("capability.pdftoppm.missing", "bin", cfg.PDF.Pdftoppm)
		}
		visionStrategy = vision.New(logger,
			&http.Client{Timeout: cfg.Provider.Timeout},
			vision.Config{
				APIKey:          cfg.Provider.APIKey,
				APIURL:          cfg.Provider.APIURL,
				Model:           cfg.Provider.Model,
				MaxOutputTokens: cfg.Provider.MaxOutputTokens,
				MaxPages:        cfg.PDF.MaxPages,
			},
			rasterizer)
	} else {
		logger.Warn("capability.vision.disabled", "reason", "OPENAI_API_KEY not set")
	}

	orchestrator := extract.NewOrchestrator(logger, store, tabular.New(logger), pdfTableStrategy, visionStrategy)

	docs, err := collectDocuments(*dir, *template)
	if err != nil {
		logger.Error("batch.collect.failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		printError("No documents found in %s\n", *dir)
		os.Exit(1)
	}

	batch := orchestrator.ProcessBatch(ctx, docs)

	repo := repository.NewInvoiceRepository(db, logger)
	engine := match.NewEngine(logger, repo, cfg.Match.CandidateLimit)
	builder := proposal.NewBuilder(logger, engine, match.Scope{
		CompanyID: cfg.Match.CompanyID,
		MoveTypes: match.DefaultMoveTypes,
	})

	prop, err := builder.Build(ctx, batch)
	if err != nil {
		logger.Error("proposal.build.failed", "error", err)
		os.Exit(1)
	}

	printProposal(prop)

	if *apply {
		applied, invoices, err := proposal.Apply(ctx, logger, repo, prop.Rows)
		if err != nil {
			logger.Error("proposal.apply.failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nApplied %d passwords to %d invoices.\n", applied, invoices)
	}
}

func collectDocuments(dir, template string) ([]extract.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var docs []extract.Document
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc := extract.Document{
			Filename:  e.Name(),
			MediaType: constants.GuessMediaType(e.Name()),
			Content:   content,
		}
		if constants.Classify(doc.Filename, doc.MediaType) == constants.FileClassTabular {
			doc.ProfileID = template
		}
		docs = append(docs, doc)
	}

	// Deterministic batch order regardless of directory iteration order.
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}

func printProposal(p *entity.Proposal) {
	fmt.Printf("Documents: %d  Passwords: %d  Matched: %d  Unmatched: %d  To apply: %d\n\n",
		p.Stats.Documents, p.Stats.Passwords, p.Stats.Matched, p.Stats.Unmatched, p.Stats.ToApply)

	for _, row := range p.Rows {
		applyMark := " "
		if row.Apply {
			applyMark = "x"
		}
		fmt.Printf("[%s] %-14s %-18s %-10s %5.1f%%  candidates=%v  (%s)\n",
			applyMark, row.Password, row.InvoiceNumber, row.MatchStatus,
			row.Confidence, row.CandidateIDs, row.SourceDocument)
	}

	if len(p.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range p.Errors {
			fmt.Printf("  %s: %s\n", e.Document, e.Message)
		}
	}
}
