// Package importer reconciles deck sources into the question bank. Each
// source (a local directory or a git repository of markdown decks) maps to
// one learning objective; questions are matched by content hash, so edits to
// a deck add and remove questions without disturbing the scheduling state of
// unchanged ones.
package importer

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

	"github.com/google/uuid"

	"github.com/recallforge/recallforge/internal/domain"
	"github.com/recallforge/recallforge/internal/gitsource"
	"github.com/recallforge/recallforge/internal/knol"
	"github.com/recallforge/recallforge/internal/parser"
	"github.com/recallforge/recallforge/internal/storage"
)

// Importer syncs all registered deck sources into the question bank.
type Importer struct {
	db       *storage.DB
	reposDir string // where git sources are cloned
}

// New creates an importer that clones git sources under reposDir.
func New(db *storage.DB, reposDir string) *Importer {
	return &Importer{db: db, reposDir: reposDir}
}

// SourceType classifies a source path. Git URLs are recognized by scheme or
// the scp-like git@host:path form.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return "git"
	}
	return "local"
}

// SyncAll iterates over all registered sources and reconciles each.
func (imp *Importer) SyncAll(ctx context.Context) error {
	sources, err := imp.db.GetAllSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("no deck sources configured")
		return nil
	}

	if err := os.MkdirAll(imp.reposDir, 0o755); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		if err := imp.syncSource(ctx, source); err != nil {
			slog.Error("failed to sync source", "id", source.ID, "path", source.Path, "error", err)
		}
	}
	return nil
}

func (imp *Importer) syncSource(ctx context.Context, source storage.Source) error {
	slog.Info("syncing deck source", "id", source.ID, "type", source.Type, "path", source.Path)

	scanPath := source.Path
	if source.Type == "git" {
		localPath, err := gitURLToLocalPath(imp.reposDir, source.Path)
		if err != nil {
			return err
		}
		if err := gitsource.Sync(source.Path, localPath); err != nil {
			return err
		}
		scanPath = localPath
	}

	return imp.reconcile(ctx, source, scanPath)
}

// reconcile walks the source directory, inserts new questions, and removes
// questions whose deck entries are gone.
func (imp *Importer) reconcile(ctx context.Context, source storage.Source, scanPath string) error {
	objective, err := imp.objectiveForSource(ctx, source)
	if err != nil {
		return err
	}

	foundHashes := make(map[string]bool)
	var parsed, inserted int
	var parseErrors []error

	walkErr := filepath.WalkDir(scanPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		entries, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			parseErrors = append(parseErrors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, entry := range entries {
			entry.Hash = knol.Hash(entry)
			parsed++
			foundHashes[entry.Hash] = true

			_, findErr := imp.db.FindQuestionByHash(ctx, entry.Hash)
			if findErr == nil {
				continue
			}
			if !errors.Is(findErr, storage.ErrNotFound) {
				parseErrors = append(parseErrors, fmt.Errorf("db check for %s: %w", entry.Hash, findErr))
				continue
			}

			question := domain.Question{
				ID:          uuid.New(),
				ObjectiveID: objective.ID,
				Text:        entry.Text,
				Options:     entry.Options,
				Answer:      entry.Answer,
				Explanation: entry.Explanation,
				Hash:        entry.Hash,
				CreatedAt:   time.Now().UTC(),
			}
			if insertErr := imp.db.InsertQuestion(ctx, question, source.ID); insertErr != nil {
				parseErrors = append(parseErrors, fmt.Errorf("db insert for %s: %w", entry.Hash, insertErr))
				continue
			}
			inserted++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("error walking %s: %w", scanPath, walkErr)
	}

	// Remove questions whose entries no longer exist in the deck.
	existing, err := imp.db.QuestionsBySource(ctx, source.ID)
	if err != nil {
		return err
	}
	orphaned := 0
	for _, q := range existing {
		if foundHashes[q.Hash] {
			continue
		}
		orphaned++
		if err := imp.db.DeleteQuestion(ctx, q.ID); err != nil {
			slog.Warn("failed to delete orphaned question", "id", q.ID, "error", err)
		}
	}

	if err := imp.db.UpdateSourceLastScanned(ctx, source.ID, time.Now().UTC()); err != nil {
		slog.Warn("failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", source.Path,
		"parsed", parsed,
		"inserted", inserted,
		"orphaned_deleted", orphaned,
		"errors", len(parseErrors),
	)
	for _, e := range parseErrors {
		slog.Warn("reconcile issue", "error", e)
	}
	return nil
}

// objectiveForSource finds or creates the learning objective holding the
// source's questions.
func (imp *Importer) objectiveForSource(ctx context.Context, source storage.Source) (domain.LearningObjective, error) {
	objective, err := imp.db.FindObjectiveBySource(ctx, source.ID)
	if err == nil {
		return objective, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.LearningObjective{}, err
	}

	objective = domain.LearningObjective{
		ID:        uuid.New(),
		Title:     objectiveTitle(source.Path),
		Priority:  domain.PriorityMedium,
		CreatedAt: time.Now().UTC(),
	}
	if err := imp.db.InsertObjective(ctx, objective, source.ID); err != nil {
		return domain.LearningObjective{}, err
	}
	return objective, nil
}

// objectiveTitle derives a readable objective title from the source path.
func objectiveTitle(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".git")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return path
	}
	return base
}

// gitURLToLocalPath maps a git URL onto a stable clone path under baseDir.
// Both https URLs and scp-like git@host:path forms are supported.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err == nil && (parsedURL.Scheme == "https" || parsedURL.Scheme == "http") {
		sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
		return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
	}

	if strings.Contains(repoURL, "@") {
		parts := strings.Split(repoURL, ":")
		if len(parts) == 2 {
			hostAndUser := strings.Split(parts[0], "@")
			if len(hostAndUser) == 2 {
				host := hostAndUser[1]
				repoPath := strings.TrimSuffix(parts[1], ".git")
				return filepath.Join(baseDir, host, repoPath), nil
			}
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
