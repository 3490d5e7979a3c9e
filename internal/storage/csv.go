package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"skatescore/internal"
	"skatescore/internal/util"
)

var csvHeaders = map[internal.RecordType][]string{
	internal.RecordCompetitions: {"id", "name", "year", "location", "date"},
	internal.RecordPerformances: {"id", "competition_id", "skater_name", "nation", "rank", "program_type", "category", "total_score", "tes_score", "pcs_score", "deductions"},
	internal.RecordElements:     {"id", "performance_id", "element_index", "element_name", "base_value", "goe", "panel_score", "judges_scores", "is_bonus"},
	internal.RecordComponents:   {"id", "performance_id", "component_index", "component_name", "factor", "panel_score", "judges_scores"},
}

// CSVStore keeps one append-only CSV file per record type in a directory.
type CSVStore struct {
	dir string
}

func OpenCSV(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &CSVStore{dir: dir}
	for _, rt := range internal.RecordTypes {
		path := s.path(rt)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, err
		}
		if err := s.appendRows(rt, nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) path(rt internal.RecordType) string {
	return filepath.Join(s.dir, string(rt)+".csv")
}

func (s *CSVStore) NextID(ctx context.Context, rt internal.RecordType) (int64, error) {
	if _, ok := csvHeaders[rt]; !ok {
		return 0, fmt.Errorf("unknown record type: %s", rt)
	}
	rows, err := s.readRows(ctx, rt)
	if err != nil {
		return 0, err
	}
	var maxID int64
	for i, row := range rows {
		id, err := strconv.ParseInt(strings.TrimSpace(row["id"]), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s row %d: invalid id %q", rt, i+1, row["id"])
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1, nil
}

func (s *CSVStore) FindCompetitionByName(ctx context.Context, name string) (*internal.Competition, error) {
	comps, err := s.ListCompetitions(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range comps {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *CSVStore) GetCompetition(ctx context.Context, id int64) (*internal.Competition, error) {
	comps, err := s.ListCompetitions(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range comps {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *CSVStore) SaveCompetition(ctx context.Context, c internal.Competition) error {
	return s.appendRows(internal.RecordCompetitions, [][]string{{
		strconv.FormatInt(c.ID, 10), c.Name, c.Season, util.Deref(c.Location), util.Deref(c.Date),
	}})
}

func (s *CSVStore) ListCompetitions(ctx context.Context) ([]internal.Competition, error) {
	rows, err := s.readRows(ctx, internal.RecordCompetitions)
	if err != nil {
		return nil, err
	}
	out := make([]internal.Competition, 0, len(rows))
	for i, row := range rows {
		var p rowParser
		c := internal.Competition{
			ID:       p.asInt64(row, "id"),
			Name:     row["name"],
			Season:   row["year"],
			Location: util.OptionalString(row["location"]),
			Date:     util.OptionalString(row["date"]),
		}
		if p.err != nil {
			return nil, fmt.Errorf("competitions row %d: %w", i+1, p.err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *CSVStore) SaveBatch(ctx context.Context, b internal.Batch) error {
	if len(b.Performances) > 0 {
		rows := make([][]string, 0, len(b.Performances))
		for _, p := range b.Performances {
			rows = append(rows, []string{
				strconv.FormatInt(p.ID, 10), strconv.FormatInt(p.CompetitionID, 10), p.SkaterName, p.Nation,
				strconv.Itoa(p.Rank), string(p.ProgramType), string(p.Category),
				util.FormatScore(p.TotalScore), util.FormatScore(p.TESScore), util.FormatScore(p.PCSScore), util.FormatScore(p.Deductions),
			})
		}
		if err := s.appendRows(internal.RecordPerformances, rows); err != nil {
			return err
		}
	}
	if len(b.Elements) > 0 {
		rows := make([][]string, 0, len(b.Elements))
		for _, e := range b.Elements {
			rows = append(rows, []string{
				strconv.FormatInt(e.ID, 10), strconv.FormatInt(e.PerformanceID, 10), strconv.Itoa(e.ElementIndex), e.ElementName,
				util.FormatScore(e.BaseValue), util.FormatScore(e.GOE), util.FormatScore(e.PanelScore),
				util.JoinScores(e.JudgesScores), formatBool(e.IsBonus),
			})
		}
		if err := s.appendRows(internal.RecordElements, rows); err != nil {
			return err
		}
	}
	if len(b.Components) > 0 {
		rows := make([][]string, 0, len(b.Components))
		for _, c := range b.Components {
			rows = append(rows, []string{
				strconv.FormatInt(c.ID, 10), strconv.FormatInt(c.PerformanceID, 10), strconv.Itoa(c.ComponentIndex), c.ComponentName,
				util.FormatScore(c.Factor), util.FormatScore(c.PanelScore), util.JoinScores(c.JudgesScores),
			})
		}
		if err := s.appendRows(internal.RecordComponents, rows); err != nil {
			return err
		}
	}
	return nil
}

func (s *CSVStore) ListPerformances(ctx context.Context, competitionID int64, category internal.Category) ([]internal.Performance, error) {
	rows, err := s.readRows(ctx, internal.RecordPerformances)
	if err != nil {
		return nil, err
	}
	out := []internal.Performance{}
	for i, row := range rows {
		var p rowParser
		perf := internal.Performance{
			ID:            p.asInt64(row, "id"),
			CompetitionID: p.asInt64(row, "competition_id"),
			SkaterName:    row["skater_name"],
			Nation:        row["nation"],
			Rank:          p.asInt(row, "rank"),
			ProgramType:   internal.ProgramType(row["program_type"]),
			Category:      internal.Category(row["category"]),
			TotalScore:    p.asFloat(row, "total_score"),
			TESScore:      p.asFloat(row, "tes_score"),
			PCSScore:      p.asFloat(row, "pcs_score"),
			Deductions:    p.asFloat(row, "deductions"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("performances row %d: %w", i+1, p.err)
		}
		if perf.CompetitionID != competitionID || (category != "" && perf.Category != category) {
			continue
		}
		out = append(out, perf)
	}
	return out, nil
}

func (s *CSVStore) ListElements(ctx context.Context, performanceIDs []int64) ([]internal.Element, error) {
	want := idSet(performanceIDs)
	rows, err := s.readRows(ctx, internal.RecordElements)
	if err != nil {
		return nil, err
	}
	out := []internal.Element{}
	for i, row := range rows {
		var p rowParser
		e := internal.Element{
			ID:            p.asInt64(row, "id"),
			PerformanceID: p.asInt64(row, "performance_id"),
			ElementIndex:  p.asInt(row, "element_index"),
			ElementName:   row["element_name"],
			BaseValue:     p.asFloat(row, "base_value"),
			GOE:           p.asFloat(row, "goe"),
			PanelScore:    p.asFloat(row, "panel_score"),
			JudgesScores:  p.asScores(row, "judges_scores"),
			IsBonus:       p.asBool(row, "is_bonus"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("elements row %d: %w", i+1, p.err)
		}
		if _, ok := want[e.PerformanceID]; ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PerformanceID != out[j].PerformanceID {
			return out[i].PerformanceID < out[j].PerformanceID
		}
		return out[i].ElementIndex < out[j].ElementIndex
	})
	return out, nil
}

func (s *CSVStore) ListComponents(ctx context.Context, performanceIDs []int64) ([]internal.Component, error) {
	want := idSet(performanceIDs)
	rows, err := s.readRows(ctx, internal.RecordComponents)
	if err != nil {
		return nil, err
	}
	out := []internal.Component{}
	for i, row := range rows {
		var p rowParser
		c := internal.Component{
			ID:             p.asInt64(row, "id"),
			PerformanceID:  p.asInt64(row, "performance_id"),
			ComponentIndex: p.asInt(row, "component_index"),
			ComponentName:  row["component_name"],
			Factor:         p.asFloat(row, "factor"),
			PanelScore:     p.asFloat(row, "panel_score"),
			JudgesScores:   p.asScores(row, "judges_scores"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("components row %d: %w", i+1, p.err)
		}
		if _, ok := want[c.PerformanceID]; ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PerformanceID != out[j].PerformanceID {
			return out[i].PerformanceID < out[j].PerformanceID
		}
		return out[i].ComponentIndex < out[j].ComponentIndex
	})
	return out, nil
}

// readRows returns the data rows of a table keyed by header name. A missing
// or empty file has no rows.
func (s *CSVStore) readRows(ctx context.Context, rt internal.RecordType) ([]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(rt))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s header: %w", rt, err)
	}

	out := []map[string]string{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rt, err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// appendRows appends to the table file, writing the header first when the
// file does not exist yet or is empty.
func (s *CSVStore) appendRows(rt internal.RecordType, rows [][]string) error {
	path := s.path(rt)
	needHeader := true
	if st, err := os.Stat(path); err == nil && st.Size() > 0 {
		needHeader = false
	}
	if !needHeader && len(rows) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(csvHeaders[rt]); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type rowParser struct {
	err error
}

func (p *rowParser) asInt64(row map[string]string, key string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(row[key]), 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: invalid integer %q", key, row[key])
	}
	return v
}

func (p *rowParser) asInt(row map[string]string, key string) int {
	return int(p.asInt64(row, key))
}

func (p *rowParser) asFloat(row map[string]string, key string) float64 {
	v, err := util.ParseDecimal(row[key])
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return v
}

func (p *rowParser) asBool(row map[string]string, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(row[key]))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: invalid bool %q", key, row[key])
	}
	return v
}

func (p *rowParser) asScores(row map[string]string, key string) []float64 {
	v, err := util.SplitScores(row[key])
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return v
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func idSet(ids []int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
