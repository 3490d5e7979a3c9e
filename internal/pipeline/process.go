package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"skatescore/internal"
	"skatescore/internal/util"
)

const (
	RunImported = "imported"
	RunFailed   = "failed"
)

// TextSource turns a document path into its ordered text lines.
type TextSource interface {
	Lines(ctx context.Context, path string) ([]string, error)
}

// Recorder receives import counters. metrics.Manager implements it.
type Recorder interface {
	DocumentProcessed(status string, took time.Duration)
	RecordsCreated(rt internal.RecordType, n int)
	LinesSkipped(reason string, n int)
}

type Task struct {
	DocumentPath    string
	CompetitionName string
	Season          string
	ProgramType     internal.ProgramType
	Category        internal.Category
	Location        *string
	Date            *string
}

func (t Task) Validate() error {
	switch {
	case strings.TrimSpace(t.DocumentPath) == "":
		return errors.New("document path is required")
	case strings.TrimSpace(t.CompetitionName) == "":
		return errors.New("competition name is required")
	case strings.TrimSpace(t.Season) == "":
		return errors.New("season is required")
	}
	if _, err := internal.ParseProgramType(string(t.ProgramType)); err != nil {
		return err
	}
	if _, err := internal.ParseCategory(string(t.Category)); err != nil {
		return err
	}
	return nil
}

type ImportResult struct {
	RunID              string
	DocumentPath       string
	DocumentHash       string
	Competition        internal.Competition
	CompetitionCreated bool
	Performances       int
	Elements           int
	Components         int
	Ignored            int
	Issues             []LineIssue
}

func (r ImportResult) Counts() map[string]int {
	return map[string]int{
		string(internal.RecordPerformances): r.Performances,
		string(internal.RecordElements):     r.Elements,
		string(internal.RecordComponents):   r.Components,
		"ignored":                           r.Ignored,
		"issues":                            len(r.Issues),
	}
}

type DocumentFailure struct {
	Task Task
	Err  error
}

type BatchResult struct {
	Imported []ImportResult
	Failed   []DocumentFailure
}

type ImportService struct {
	store       Store
	src         TextSource
	log         *slog.Logger
	metrics     Recorder
	incremental bool
}

type Option func(*ImportService)

func WithLogger(log *slog.Logger) Option {
	return func(s *ImportService) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(r Recorder) Option {
	return func(s *ImportService) { s.metrics = r }
}

// WithIncremental saves each performance block as soon as it is closed
// instead of once per document.
func WithIncremental(on bool) Option {
	return func(s *ImportService) { s.incremental = on }
}

func NewImportService(store Store, src TextSource, opts ...Option) *ImportService {
	s := &ImportService{
		store: store,
		src:   src,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportDocument extracts one protocol and appends its records. The text is
// read before any record is created, so an unreadable document leaves the
// store untouched.
func (s *ImportService) ImportDocument(ctx context.Context, task Task) (ImportResult, error) {
	start := time.Now()
	res := ImportResult{RunID: uuid.NewString(), DocumentPath: task.DocumentPath}
	log := s.log.With("run", res.RunID, "document", task.DocumentPath)

	err := s.importDocument(ctx, task, &res, log)
	status := RunImported
	if err != nil {
		status = RunFailed
	}
	s.recordRun(ctx, res, status, log)
	if s.metrics != nil {
		s.metrics.DocumentProcessed(status, time.Since(start))
	}
	if err != nil {
		return res, err
	}

	log.Info("document imported",
		"competition_id", res.Competition.ID,
		"performances", res.Performances,
		"elements", res.Elements,
		"components", res.Components,
		"ignored", res.Ignored,
		"issues", len(res.Issues),
		"took_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *ImportService) importDocument(ctx context.Context, task Task, res *ImportResult, log *slog.Logger) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	program, _ := internal.ParseProgramType(string(task.ProgramType))
	category, _ := internal.ParseCategory(string(task.Category))

	lines, err := s.src.Lines(ctx, task.DocumentPath)
	if err != nil {
		return err
	}
	if res.DocumentHash, err = HashFile(task.DocumentPath); err != nil {
		return err
	}

	comp, created, err := ResolveCompetition(ctx, s.store, CompetitionInput{
		Name:     task.CompetitionName,
		Season:   task.Season,
		Location: util.OptionalString(util.Deref(task.Location)),
		Date:     util.OptionalString(util.Deref(task.Date)),
	})
	if err != nil {
		return err
	}
	res.Competition, res.CompetitionCreated = comp, created
	if created {
		log.Info("competition created", "competition_id", comp.ID, "name", comp.Name)
	}

	ids, err := NewIDAllocator(ctx, s.store)
	if err != nil {
		return err
	}

	pc := &ParseContext{
		CompetitionID: comp.ID,
		ProgramType:   program,
		Category:      category,
		IDs:           ids,
	}
	if s.incremental {
		pc.OnPerformance = func(p ParsedPerformance) error {
			if err := s.save(ctx, p.Batch()); err != nil {
				return err
			}
			res.add(p)
			return nil
		}
	}

	parsed, err := Scan(pc, lines)
	res.Ignored = pc.Ignored
	res.Issues = pc.Issues
	for _, issue := range pc.Issues {
		log.Warn("line skipped", "line", issue.LineNo, "error", issue.Err, "text", issue.Text)
	}
	if s.metrics != nil {
		s.metrics.LinesSkipped("unrecognized", pc.Ignored)
		s.metrics.LinesSkipped("malformed", len(pc.Issues))
	}
	if err != nil {
		return err
	}

	if !s.incremental {
		var batch internal.Batch
		for _, p := range parsed {
			batch.Performances = append(batch.Performances, p.Performance)
			batch.Elements = append(batch.Elements, p.Elements...)
			batch.Components = append(batch.Components, p.Components...)
		}
		if err := s.save(ctx, batch); err != nil {
			return err
		}
		for _, p := range parsed {
			res.add(p)
		}
	}
	return nil
}

func (s *ImportService) save(ctx context.Context, b internal.Batch) error {
	if b.Empty() {
		return nil
	}
	if err := s.store.SaveBatch(ctx, b); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordsCreated(internal.RecordPerformances, len(b.Performances))
		s.metrics.RecordsCreated(internal.RecordElements, len(b.Elements))
		s.metrics.RecordsCreated(internal.RecordComponents, len(b.Components))
	}
	return nil
}

func (s *ImportService) recordRun(ctx context.Context, res ImportResult, status string, log *slog.Logger) {
	runs, ok := s.store.(RunRecorder)
	if !ok {
		return
	}
	err := runs.InsertRun(ctx, internal.ImportRun{
		RunID:         res.RunID,
		DocumentPath:  res.DocumentPath,
		DocumentHash:  res.DocumentHash,
		CompetitionID: res.Competition.ID,
		Status:        status,
		Counts:        res.Counts(),
	})
	if err != nil {
		log.Warn("record run failed", "error", err)
	}
}

func (r *ImportResult) add(p ParsedPerformance) {
	r.Performances++
	r.Elements += len(p.Elements)
	r.Components += len(p.Components)
}

// ImportBatch imports the tasks in order. A failed document is logged and
// reported; the remaining documents are still processed.
func (s *ImportService) ImportBatch(ctx context.Context, tasks []Task) BatchResult {
	var out BatchResult
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			for _, rest := range tasks[i:] {
				out.Failed = append(out.Failed, DocumentFailure{Task: rest, Err: err})
			}
			break
		}
		res, err := s.ImportDocument(ctx, task)
		if err != nil {
			s.log.Error("document failed", "document", task.DocumentPath, "error", err)
			out.Failed = append(out.Failed, DocumentFailure{Task: task, Err: err})
			continue
		}
		out.Imported = append(out.Imported, res)
	}
	s.log.Info("batch finished", "imported", len(out.Imported), "failed", len(out.Failed))
	return out
}

// HashFile returns the hex sha256 of a document, as stored in the run log.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

