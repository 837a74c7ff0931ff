// Package sync reconciles the card store with the decks found in each
// configured source.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/memora/internal/cardid"
	"github.com/conorfennell/memora/internal/gitsource"
	"github.com/conorfennell/memora/internal/parser"
	"github.com/conorfennell/memora/internal/storage"
)

// Result counts what a sync changed.
type Result struct {
	Sources  int `json:"sources"`
	Parsed   int `json:"parsed"`
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
	Errors   int `json:"errors"`
}

func (r *Result) add(o Result) {
	r.Sources += o.Sources
	r.Parsed += o.Parsed
	r.Inserted += o.Inserted
	r.Deleted += o.Deleted
	r.Errors += o.Errors
}

// Syncer pulls decks from sources into the card store.
type Syncer struct {
	db       *storage.DB
	reposDir string
	logger   *slog.Logger
}

// New returns a Syncer that clones git sources under reposDir.
func New(db *storage.DB, reposDir string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{db: db, reposDir: reposDir, logger: logger}
}

// DetectType reports whether path names a git repository or a local
// directory.
func DetectType(path string) string {
	if strings.HasSuffix(path, ".git") ||
		strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "git@") {
		return storage.SourceGit
	}
	return storage.SourceLocal
}

// Run reconciles every source. A failing source is logged and skipped.
func (s *Syncer) Run(ctx context.Context, now time.Time) (Result, error) {
	s.logger.Info("Starting sync process for all sources")
	sources, err := s.db.GetAllSources()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		s.logger.Info("No sources configured. Add one with --add-source <path/or/url.git>")
		return Result{}, nil
	}

	var total Result
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := s.Source(ctx, source, now)
		if err != nil {
			s.logger.Error("Error syncing source", "id", source.ID, "path", source.Path, "error", err)
			total.Errors++
			continue
		}
		total.add(res)
	}
	s.logger.Info("Sync process complete",
		"sources", total.Sources,
		"inserted", total.Inserted,
		"deleted", total.Deleted,
		"errors", total.Errors,
	)
	return total, nil
}

// Source reconciles a single source, cloning or pulling it first when it
// is a git repository.
func (s *Syncer) Source(ctx context.Context, source storage.Source, now time.Time) (Result, error) {
	s.logger.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

	dir := source.Path
	switch source.Type {
	case storage.SourceLocal:
	case storage.SourceGit:
		if err := os.MkdirAll(s.reposDir, 0o755); err != nil {
			return Result{}, fmt.Errorf("failed to create repos directory: %w", err)
		}
		localPath, err := gitURLToLocalPath(s.reposDir, source.Path)
		if err != nil {
			return Result{}, err
		}
		if err := gitsource.Sync(ctx, source.Path, localPath, s.logger); err != nil {
			return Result{}, err
		}
		dir = localPath
	default:
		return Result{}, fmt.Errorf("unknown source type %q", source.Type)
	}

	res, err := s.reconcile(source.ID, dir)
	if err != nil {
		return res, err
	}
	if err := s.db.UpdateSourceLastScanned(source.ID, now); err != nil {
		s.logger.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
	}
	res.Sources = 1
	return res, nil
}

func (s *Syncer) reconcile(sourceID int64, dir string) (Result, error) {
	var res Result
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		cards, err := parser.ParseFile(path)
		if err != nil {
			s.logger.Warn("Failed to parse deck", "path", path, "error", err)
			res.Errors++
			return nil
		}
		cardid.Assign(cards)

		for _, card := range cards {
			res.Parsed++
			if found[card.ID] {
				continue
			}
			found[card.ID] = true

			card.SourceID = sourceID
			inserted, err := s.db.InsertCard(card)
			if err != nil {
				s.logger.Warn("Failed to insert card", "id", card.ID, "error", err)
				res.Errors++
				continue
			}
			if inserted {
				s.logger.Debug("New card found", "id", card.ID, "path", path)
				res.Inserted++
			}
		}
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	stored, err := s.db.GetCardsBySourceID(sourceID)
	if err != nil {
		return res, fmt.Errorf("failed to get cards for source %d: %w", sourceID, err)
	}

	for _, card := range stored {
		if found[card.ID] {
			continue
		}
		s.logger.Info("Orphaned card, deleting", "id", card.ID)
		if err := s.db.DeleteCardByID(card.ID); err != nil && !errors.Is(err, storage.ErrCardNotFound) {
			s.logger.Warn("Failed to delete orphaned card", "id", card.ID, "error", err)
			res.Errors++
			continue
		}
		res.Deleted++
	}

	s.logger.Info("Reconciliation complete",
		"path", dir,
		"parsed_cards", res.Parsed,
		"inserted", res.Inserted,
		"orphaned_deleted", res.Deleted,
		"errors", res.Errors,
	)
	return res, nil
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-like syntax: git@host:owner/repo.git
		if user, rest, ok := strings.Cut(repoURL, "@"); ok && user != "" {
			host, repoPath, ok := strings.Cut(rest, ":")
			if ok && host != "" && repoPath != "" {
				return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git")), nil
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
