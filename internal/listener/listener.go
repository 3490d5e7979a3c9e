package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"skatescore/internal/config"
	"skatescore/internal/logging"
	"skatescore/internal/pipeline"
	"skatescore/internal/results"
)

type Syncer interface {
	Sync(ctx context.Context, indexURL string, meta results.EventMeta) (results.SyncResult, error)
}

type Importer interface {
	ImportDocument(ctx context.Context, task pipeline.Task) (pipeline.ImportResult, error)
}

// Ledger answers whether a document with the given hash was imported before.
type Ledger interface {
	HasImportedHash(ctx context.Context, hash string) (bool, error)
}

type Deps struct {
	Sync     Syncer
	Importer Importer
	// Ledger may be nil; imports are then only remembered for the life of
	// the process.
	Ledger Ledger
	Query  pipeline.QueryStore
}

type CycleResult struct {
	Protocols int
	Imported  int
	Skipped   int
	Failed    int
	Exported  []string
}

type Service struct {
	deps Deps
	cfg  config.Config
	log  *slog.Logger
	seen map[string]struct{}
}

func NewService(deps Deps, cfg config.Config, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{deps: deps, cfg: cfg, log: log, seen: map[string]struct{}{}}
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.cfg.Require("listener_index_url", s.cfg.ListenerIndexURL); err != nil {
		return err
	}
	if err := s.cfg.Require("listener_season", s.cfg.ListenerSeason); err != nil {
		return err
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.ListenerIntervalSec) * time.Second):
		}
	}
}

// RunCycle syncs the index once and imports the protocols not seen before.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	synced, err := s.deps.Sync.Sync(ctx, s.cfg.ListenerIndexURL, results.EventMeta{
		Name:   s.cfg.ListenerCompetition,
		Season: s.cfg.ListenerSeason,
	})
	if err != nil {
		return CycleResult{}, err
	}

	out := CycleResult{Protocols: len(synced.Tasks)}
	touched := map[int64]struct{}{}
	for _, task := range synced.Tasks {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		hash, err := pipeline.HashFile(task.DocumentPath)
		if err != nil {
			out.Failed++
			s.log.Error("hash protocol", "document", task.DocumentPath, "error", err)
			continue
		}
		done, err := s.imported(ctx, hash)
		if err != nil {
			return out, err
		}
		if done {
			out.Skipped++
			continue
		}

		res, err := s.deps.Importer.ImportDocument(ctx, task)
		if err != nil {
			out.Failed++
			s.log.Error("import protocol", "document", task.DocumentPath, "error", err)
			continue
		}
		s.seen[hash] = struct{}{}
		out.Imported++
		touched[res.Competition.ID] = struct{}{}
	}

	if s.cfg.ListenerAutoExport && s.deps.Query != nil {
		for id := range touched {
			path, err := s.export(ctx, id)
			if err != nil {
				return out, err
			}
			out.Exported = append(out.Exported, path)
		}
	}

	s.log.Info("listener cycle done",
		"protocols", out.Protocols,
		"imported", out.Imported,
		"skipped", out.Skipped,
		"failed", out.Failed,
		"exported", len(out.Exported),
	)
	return out, nil
}

func (s *Service) imported(ctx context.Context, hash string) (bool, error) {
	if _, ok := s.seen[hash]; ok {
		return true, nil
	}
	if s.deps.Ledger == nil {
		return false, nil
	}
	return s.deps.Ledger.HasImportedHash(ctx, hash)
}

func (s *Service) export(ctx context.Context, competitionID int64) (string, error) {
	comp, err := s.deps.Query.GetCompetition(ctx, competitionID)
	if err != nil {
		return "", err
	}
	if comp == nil {
		return "", fmt.Errorf("competition %d not found", competitionID)
	}
	details, err := pipeline.LoadPerformanceDetails(ctx, s.deps.Query, competitionID, "")
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%d_%s.xlsx", comp.ID, sanitizeName(comp.Name))
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
	if err := pipeline.ExportCompetitionToXLSX(*comp, details, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

func sanitizeName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
