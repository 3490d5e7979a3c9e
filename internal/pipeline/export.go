package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"skatescore/internal"
	"skatescore/internal/util"
)

const (
	SheetPerformances = "performances"
	SheetElements     = "elements"
	SheetComponents   = "components"
	SheetSummary      = "summary"
)

// ExportCompetitionToXLSX writes one sheet per record type plus the podium.
func ExportCompetitionToXLSX(comp internal.Competition, details []PerformanceDetail, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetPerformances); err != nil {
		return err
	}
	for _, name := range []string{SheetElements, SheetComponents, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	perfRows := [][]any{{
		"id", "competition", "season", "skater_name", "nation", "rank", "program_type", "category",
		"total_score", "tes_score", "pcs_score", "deductions",
	}}
	elemRows := [][]any{{
		"id", "performance_id", "skater_name", "element_index", "element_name",
		"base_value", "goe", "judges_scores", "panel_score", "is_bonus",
	}}
	compRows := [][]any{{
		"id", "performance_id", "skater_name", "component_index", "component_name",
		"factor", "judges_scores", "panel_score",
	}}
	perfs := make([]internal.Performance, 0, len(details))
	for _, d := range details {
		p := d.Performance
		perfs = append(perfs, p)
		perfRows = append(perfRows, []any{
			p.ID, comp.Name, comp.Season, p.SkaterName, p.Nation, p.Rank, string(p.ProgramType), string(p.Category),
			p.TotalScore, p.TESScore, p.PCSScore, p.Deductions,
		})
		for _, e := range d.Elements {
			elemRows = append(elemRows, []any{
				e.ID, e.PerformanceID, p.SkaterName, e.ElementIndex, e.ElementName,
				e.BaseValue, e.GOE, util.JoinScores(e.JudgesScores), e.PanelScore, e.IsBonus,
			})
		}
		for _, c := range d.Components {
			compRows = append(compRows, []any{
				c.ID, c.PerformanceID, p.SkaterName, c.ComponentIndex, c.ComponentName,
				c.Factor, util.JoinScores(c.JudgesScores), c.PanelScore,
			})
		}
	}
	summaryRows := [][]any{{"name", "nation", "sp_score", "sp_rank", "fs_score", "fs_rank", "total"}}
	for _, s := range Podium(perfs) {
		summaryRows = append(summaryRows, []any{s.Name, s.Nation, s.Short.Score, s.Short.Rank, s.Free.Score, s.Free.Rank, s.Total})
	}

	for sheet, rows := range map[string][][]any{
		SheetPerformances: perfRows,
		SheetElements:     elemRows,
		SheetComponents:   compRows,
		SheetSummary:      summaryRows,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
