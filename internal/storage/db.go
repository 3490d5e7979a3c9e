package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"skatescore/internal"
	"skatescore/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS competitions (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  year TEXT NOT NULL,
  location TEXT,
  date TEXT
);

CREATE TABLE IF NOT EXISTS performances (
  id INTEGER PRIMARY KEY,
  competition_id INTEGER NOT NULL,
  skater_name TEXT NOT NULL,
  nation TEXT NOT NULL,
  rank INTEGER NOT NULL,
  program_type TEXT NOT NULL,
  category TEXT NOT NULL,
  total_score REAL NOT NULL,
  tes_score REAL NOT NULL,
  pcs_score REAL NOT NULL,
  deductions REAL NOT NULL,
  FOREIGN KEY(competition_id) REFERENCES competitions(id)
);
CREATE INDEX IF NOT EXISTS idx_performances_competition ON performances(competition_id);

CREATE TABLE IF NOT EXISTS elements (
  id INTEGER PRIMARY KEY,
  performance_id INTEGER NOT NULL,
  element_index INTEGER NOT NULL,
  element_name TEXT NOT NULL,
  base_value REAL NOT NULL,
  goe REAL NOT NULL,
  panel_score REAL NOT NULL,
  judges_scores TEXT NOT NULL,
  is_bonus INTEGER NOT NULL DEFAULT 0,
  FOREIGN KEY(performance_id) REFERENCES performances(id)
);
CREATE INDEX IF NOT EXISTS idx_elements_performance ON elements(performance_id);

CREATE TABLE IF NOT EXISTS components (
  id INTEGER PRIMARY KEY,
  performance_id INTEGER NOT NULL,
  component_index INTEGER NOT NULL,
  component_name TEXT NOT NULL,
  factor REAL NOT NULL,
  panel_score REAL NOT NULL,
  judges_scores TEXT NOT NULL,
  FOREIGN KEY(performance_id) REFERENCES performances(id)
);
CREATE INDEX IF NOT EXISTS idx_components_performance ON components(performance_id);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  documentPath TEXT NOT NULL,
  documentHash TEXT NOT NULL,
  competitionId INTEGER,
  status TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(documentHash);
`

	_, err := d.conn.Exec(schema)
	return err
}

var tableByRecordType = map[internal.RecordType]string{
	internal.RecordCompetitions: "competitions",
	internal.RecordPerformances: "performances",
	internal.RecordElements:     "elements",
	internal.RecordComponents:   "components",
}

func (d *DB) NextID(ctx context.Context, rt internal.RecordType) (int64, error) {
	table, ok := tableByRecordType[rt]
	if !ok {
		return 0, fmt.Errorf("unknown record type: %s", rt)
	}
	var maxID sql.NullInt64
	if err := d.conn.QueryRowContext(ctx, `SELECT MAX(id) FROM `+table).Scan(&maxID); err != nil {
		return 0, err
	}
	if !maxID.Valid {
		return 1, nil
	}
	return maxID.Int64 + 1, nil
}

func (d *DB) FindCompetitionByName(ctx context.Context, name string) (*internal.Competition, error) {
	var c internal.Competition
	err := d.conn.QueryRowContext(ctx, `SELECT id, name, year, location, date FROM competitions WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &c.Season, &c.Location, &c.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) GetCompetition(ctx context.Context, id int64) (*internal.Competition, error) {
	var c internal.Competition
	err := d.conn.QueryRowContext(ctx, `SELECT id, name, year, location, date FROM competitions WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Season, &c.Location, &c.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) SaveCompetition(ctx context.Context, c internal.Competition) error {
	_, err := d.conn.ExecContext(ctx, `INSERT INTO competitions (id, name, year, location, date) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Season, c.Location, c.Date)
	return err
}

func (d *DB) ListCompetitions(ctx context.Context) ([]internal.Competition, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT id, name, year, location, date FROM competitions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Competition{}
	for rows.Next() {
		var c internal.Competition
		if err := rows.Scan(&c.ID, &c.Name, &c.Season, &c.Location, &c.Date); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveBatch writes a document's records in one transaction.
func (d *DB) SaveBatch(ctx context.Context, b internal.Batch) error {
	if b.Empty() {
		return nil
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	perfStmt, err := tx.PrepareContext(ctx, `
INSERT INTO performances (
  id, competition_id, skater_name, nation, rank, program_type, category,
  total_score, tes_score, pcs_score, deductions
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer perfStmt.Close()
	for _, p := range b.Performances {
		if _, err := perfStmt.ExecContext(ctx,
			p.ID, p.CompetitionID, p.SkaterName, p.Nation, p.Rank, string(p.ProgramType), string(p.Category),
			p.TotalScore, p.TESScore, p.PCSScore, p.Deductions,
		); err != nil {
			return fmt.Errorf("insert performance %d: %w", p.ID, err)
		}
	}

	elemStmt, err := tx.PrepareContext(ctx, `
INSERT INTO elements (
  id, performance_id, element_index, element_name, base_value, goe, panel_score, judges_scores, is_bonus
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer elemStmt.Close()
	for _, e := range b.Elements {
		if _, err := elemStmt.ExecContext(ctx,
			e.ID, e.PerformanceID, e.ElementIndex, e.ElementName, e.BaseValue, e.GOE, e.PanelScore,
			util.JoinScores(e.JudgesScores), e.IsBonus,
		); err != nil {
			return fmt.Errorf("insert element %d: %w", e.ID, err)
		}
	}

	compStmt, err := tx.PrepareContext(ctx, `
INSERT INTO components (
  id, performance_id, component_index, component_name, factor, panel_score, judges_scores
) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer compStmt.Close()
	for _, c := range b.Components {
		if _, err := compStmt.ExecContext(ctx,
			c.ID, c.PerformanceID, c.ComponentIndex, c.ComponentName, c.Factor, c.PanelScore,
			util.JoinScores(c.JudgesScores),
		); err != nil {
			return fmt.Errorf("insert component %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// ListPerformances returns a competition's performances, optionally limited
// to one category. An empty category means all.
func (d *DB) ListPerformances(ctx context.Context, competitionID int64, category internal.Category) ([]internal.Performance, error) {
	query := `
SELECT id, competition_id, skater_name, nation, rank, program_type, category,
       total_score, tes_score, pcs_score, deductions
FROM performances WHERE competition_id = ?`
	args := []any{competitionID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY id`

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Performance{}
	for rows.Next() {
		var p internal.Performance
		var program, cat string
		if err := rows.Scan(
			&p.ID, &p.CompetitionID, &p.SkaterName, &p.Nation, &p.Rank, &program, &cat,
			&p.TotalScore, &p.TESScore, &p.PCSScore, &p.Deductions,
		); err != nil {
			return nil, err
		}
		p.ProgramType = internal.ProgramType(program)
		p.Category = internal.Category(cat)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) ListElements(ctx context.Context, performanceIDs []int64) ([]internal.Element, error) {
	if len(performanceIDs) == 0 {
		return []internal.Element{}, nil
	}
	placeholders, args := inClause(performanceIDs)
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, performance_id, element_index, element_name, base_value, goe, panel_score, judges_scores, is_bonus
FROM elements WHERE performance_id IN (`+placeholders+`) ORDER BY performance_id, element_index, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Element{}
	for rows.Next() {
		var e internal.Element
		var judges string
		if err := rows.Scan(&e.ID, &e.PerformanceID, &e.ElementIndex, &e.ElementName, &e.BaseValue, &e.GOE, &e.PanelScore, &judges, &e.IsBonus); err != nil {
			return nil, err
		}
		if e.JudgesScores, err = util.SplitScores(judges); err != nil {
			return nil, fmt.Errorf("element %d judges scores: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *DB) ListComponents(ctx context.Context, performanceIDs []int64) ([]internal.Component, error) {
	if len(performanceIDs) == 0 {
		return []internal.Component{}, nil
	}
	placeholders, args := inClause(performanceIDs)
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, performance_id, component_index, component_name, factor, panel_score, judges_scores
FROM components WHERE performance_id IN (`+placeholders+`) ORDER BY performance_id, component_index, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.Component{}
	for rows.Next() {
		var c internal.Component
		var judges string
		if err := rows.Scan(&c.ID, &c.PerformanceID, &c.ComponentIndex, &c.ComponentName, &c.Factor, &c.PanelScore, &judges); err != nil {
			return nil, err
		}
		if c.JudgesScores, err = util.SplitScores(judges); err != nil {
			return nil, fmt.Errorf("component %d judges scores: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(ctx context.Context, run internal.ImportRun) error {
	countsJSON, _ := json.Marshal(run.Counts)
	var competitionID *int64
	if run.CompetitionID > 0 {
		competitionID = &run.CompetitionID
	}
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO runs (runId, documentPath, documentHash, competitionId, status, countsJson)
VALUES (?, ?, ?, ?, ?, ?)`, run.RunID, run.DocumentPath, run.DocumentHash, competitionID, run.Status, string(countsJSON))
	return err
}

// HasImportedHash reports whether a document with this content hash was
// already imported successfully.
func (d *DB) HasImportedHash(ctx context.Context, hash string) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE documentHash = ? AND status = 'imported'`, hash).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
