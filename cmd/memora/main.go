package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/conorfennell/memora/internal/config"
	"github.com/conorfennell/memora/internal/storage"
	"github.com/conorfennell/memora/internal/study"
	"github.com/conorfennell/memora/internal/sync"
	"github.com/conorfennell/memora/internal/web"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "memora: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := config.Flags()
	addSource := fs.String("add-source", "", "Add a local directory or git URL as a card source and sync it")
	runSync := fs.Bool("sync", false, "Sync all sources and exit")
	serve := fs.Bool("serve", false, "Start the web server")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.LogLevel, stderr)
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.DB, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Debug("Database opened", "path", cfg.DB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer := sync.New(db, cfg.ReposDir, logger)

	switch {
	case *addSource != "":
		return addNewSource(ctx, db, syncer, *addSource, stdout)
	case *runSync:
		res, err := syncer.Run(ctx, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Synced %d sources: %d new cards, %d removed, %d errors.\n",
			res.Sources, res.Inserted, res.Deleted, res.Errors)
		return nil
	case *serve:
		return serveHTTP(ctx, cfg, db, syncer, logger)
	default:
		return printSummary(db, cfg, stdout)
	}
}

func addNewSource(ctx context.Context, db *storage.DB, syncer *sync.Syncer, path string, stdout io.Writer) error {
	if _, err := db.FindSourceByPath(path); err == nil {
		return fmt.Errorf("source %s already exists", path)
	} else if !errors.Is(err, storage.ErrSourceNotFound) {
		return err
	}

	sourceType := sync.DetectType(path)
	id, err := db.InsertSource(path, sourceType, time.Time{})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Added %s source %s (id %d).\n", sourceType, path, id)

	res, err := syncer.Source(ctx, storage.Source{ID: id, Path: path, Type: sourceType}, time.Now())
	if err != nil {
		return fmt.Errorf("source added but sync failed: %w", err)
	}
	fmt.Fprintf(stdout, "Imported %s cards.\n", humanize.Comma(int64(res.Inserted)))
	return nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, db *storage.DB, syncer *sync.Syncer, logger *slog.Logger) error {
	session := study.NewSession(study.Config{
		Cards:         db,
		Usage:         db,
		Snapshots:     db.Snapshots(),
		History:       db,
		Settings:      cfg.Settings(),
		ExtraNewCards: cfg.ExtraNewCards,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewServer(db, session, syncer, cfg.Settings(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printSummary(db *storage.DB, cfg *config.Config, stdout io.Writer) error {
	now := time.Now()
	cards, err := db.GetAll()
	if err != nil {
		return err
	}
	today, err := db.DailyLog(now)
	if err != nil {
		return err
	}
	o := study.Summarize(cards, cfg.Settings(), today, now)

	fmt.Fprintf(stdout, "%s cards in total.\n", humanize.Comma(int64(len(cards))))
	fmt.Fprintf(stdout, "Due now: %s (%d learning, %d review)\n",
		humanize.Comma(int64(o.Due())), o.DueLearning, o.DueReview)
	fmt.Fprintf(stdout, "New: %d left today of %s unseen", o.NewToday, humanize.Comma(int64(o.NewAvailable)))
	if o.LimitReached {
		fmt.Fprint(stdout, " (daily limit reached)")
	}
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Today: %d reviews, %d new cards, %s spent\n",
		today.Reviews, today.NewCards, today.TimeSpent.Round(time.Second))

	sources, err := db.GetAllSources()
	if err != nil {
		return err
	}
	for _, s := range sources {
		scanned := "never synced"
		if !s.LastScanned.IsZero() {
			scanned = "synced " + humanize.Time(s.LastScanned)
		}
		fmt.Fprintf(stdout, "Source %d: %s (%s, %s)\n", s.ID, s.Path, s.Type, scanned)
	}
	return nil
}
