package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skatescore/internal"
	"skatescore/internal/config"
	"skatescore/internal/util"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	tmp := t.TempDir()
	db, err := Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	csvStore, err := OpenCSV(filepath.Join(tmp, "data"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{"sqlite": db, "csv": csvStore}
}

func sampleBatch() internal.Batch {
	return internal.Batch{
		Performances: []internal.Performance{
			{ID: 1, CompetitionID: 1, SkaterName: "Ilia MALININ", Nation: "USA", Rank: 1, ProgramType: internal.ProgramFree, Category: internal.CategoryMen, TotalScore: 227.79, TESScore: 137.23, PCSScore: 91.56, Deductions: -1},
			{ID: 2, CompetitionID: 1, SkaterName: "Kaori SAKAMOTO", Nation: "JPN", Rank: 1, ProgramType: internal.ProgramFree, Category: internal.CategoryWomen, TotalScore: 147.09, TESScore: 70.87, PCSScore: 76.22, Deductions: 0},
		},
		Elements: []internal.Element{
			{ID: 1, PerformanceID: 1, ElementIndex: 2, ElementName: "3A", BaseValue: 8, GOE: 2.29, PanelScore: 10.29, JudgesScores: []float64{3, 3, 2}, IsBonus: false},
			{ID: 2, PerformanceID: 1, ElementIndex: 1, ElementName: "4Lz", BaseValue: 11.5, GOE: 3.12, PanelScore: 14.62, JudgesScores: []float64{3, 2, -1}, IsBonus: true},
		},
		Components: []internal.Component{
			{ID: 1, PerformanceID: 1, ComponentIndex: 1, ComponentName: "Composition", Factor: 3.33, PanelScore: 9.25, JudgesScores: []float64{9.25, 9.5}},
		},
	}
}

func TestNextIDEmptyStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, rt := range internal.RecordTypes {
				id, err := s.NextID(ctx, rt)
				if err != nil {
					t.Fatal(err)
				}
				if id != 1 {
					t.Fatalf("%s next id=%d", rt, id)
				}
			}
		})
	}
}

func TestBatchRoundTripAndNextID(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			loc := "Helsinki, FIN"
			if err := s.SaveCompetition(ctx, internal.Competition{ID: 1, Name: "GP Finlandia Trophy", Season: "2025-2026", Location: &loc}); err != nil {
				t.Fatal(err)
			}
			if err := s.SaveBatch(ctx, sampleBatch()); err != nil {
				t.Fatal(err)
			}

			next, err := s.NextID(ctx, internal.RecordElements)
			if err != nil {
				t.Fatal(err)
			}
			if next != 3 {
				t.Fatalf("next element id=%d", next)
			}

			comp, err := s.FindCompetitionByName(ctx, "GP Finlandia Trophy")
			if err != nil {
				t.Fatal(err)
			}
			if comp == nil || comp.ID != 1 || util.Deref(comp.Location) != loc || comp.Date != nil {
				t.Fatalf("comp=%+v", comp)
			}
			missing, err := s.FindCompetitionByName(ctx, "GP Finlandia")
			if err != nil || missing != nil {
				t.Fatalf("partial name matched: %+v err=%v", missing, err)
			}

			men, err := s.ListPerformances(ctx, 1, internal.CategoryMen)
			if err != nil {
				t.Fatal(err)
			}
			if len(men) != 1 || men[0].Deductions != -1 || men[0].ProgramType != internal.ProgramFree {
				t.Fatalf("men=%+v", men)
			}
			all, err := s.ListPerformances(ctx, 1, "")
			if err != nil || len(all) != 2 {
				t.Fatalf("all=%d err=%v", len(all), err)
			}

			elements, err := s.ListElements(ctx, []int64{1})
			if err != nil {
				t.Fatal(err)
			}
			if len(elements) != 2 || elements[0].ElementName != "4Lz" || !elements[0].IsBonus {
				t.Fatalf("elements=%+v", elements)
			}
			if got := util.JoinScores(elements[0].JudgesScores); got != "3,2,-1" {
				t.Fatalf("judges=%q", got)
			}

			components, err := s.ListComponents(ctx, []int64{1, 2})
			if err != nil {
				t.Fatal(err)
			}
			if len(components) != 1 || components[0].Factor != 3.33 {
				t.Fatalf("components=%+v", components)
			}
		})
	}
}

func TestSQLiteRejectsDuplicateCompetitionName(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := db.SaveCompetition(ctx, internal.Competition{ID: 1, Name: "GP Skate Canada", Season: "2025-2026"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveCompetition(ctx, internal.Competition{ID: 2, Name: "GP Skate Canada", Season: "2025-2026"}); err == nil {
		t.Fatal("expected unique violation")
	}
}

func TestSQLiteRuns(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	if err := db.InsertRun(ctx, internal.ImportRun{RunID: "r1", DocumentPath: "a.pdf", DocumentHash: "h1", Status: "failed", Counts: map[string]int{}}); err != nil {
		t.Fatal(err)
	}
	ok, err := db.HasImportedHash(ctx, "h1")
	if err != nil || ok {
		t.Fatalf("failed run counted as imported: ok=%v err=%v", ok, err)
	}
	if err := db.InsertRun(ctx, internal.ImportRun{RunID: "r2", DocumentPath: "a.pdf", DocumentHash: "h1", CompetitionID: 1, Status: "imported", Counts: map[string]int{"performances": 2}}); err != nil {
		t.Fatal(err)
	}
	ok, err = db.HasImportedHash(ctx, "h1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestCSVHeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenCSV(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.SaveBatch(ctx, sampleBatch()); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBatch(ctx, internal.Batch{Performances: sampleBatch().Performances[:1]}); err != nil {
		t.Fatal(err)
	}

	blob, err := os.ReadFile(filepath.Join(dir, "performances.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(blob), "skater_name"); n != 1 {
		t.Fatalf("header count=%d", n)
	}
	if n := strings.Count(string(blob), "\n"); n != 4 {
		t.Fatalf("line count=%d", n)
	}
}

func TestCSVNextIDRejectsCorruptIDs(t *testing.T) {
	dir := t.TempDir()
	body := "id,competition_id,skater_name,nation,rank,program_type,category,total_score,tes_score,pcs_score,deductions\n" +
		"1,1,A,USA,1,Free,Men,1,1,1,0\n" +
		"oops,1,B,JPN,2,Free,Men,1,1,1,0\n"
	if err := os.WriteFile(filepath.Join(dir, "performances.csv"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := OpenCSV(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.NextID(context.Background(), internal.RecordPerformances); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestCSVHeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "elements.csv"), []byte("id,performance_id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := OpenCSV(dir)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.NextID(context.Background(), internal.RecordElements)
	if err != nil || id != 1 {
		t.Fatalf("id=%d err=%v", id, err)
	}
}

func TestOpenConfigured(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	cfg.StoreBackend = config.BackendCSV
	s, err := OpenConfigured(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*CSVStore); !ok {
		t.Fatalf("store=%T", s)
	}

	cfg.StoreBackend = config.BackendSQLite
	s, err = OpenConfigured(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*DB); !ok {
		t.Fatalf("store=%T", s)
	}
}
