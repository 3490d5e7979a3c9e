package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"skatescore/internal"
)

// memStore is a Store whose next ids are fixed by the test.
type memStore struct {
	next         map[internal.RecordType]int64
	nextErr      error
	competitions []internal.Competition
	batches      []internal.Batch
	saveErr      error
}

func (m *memStore) NextID(ctx context.Context, rt internal.RecordType) (int64, error) {
	if m.nextErr != nil {
		return 0, m.nextErr
	}
	if id, ok := m.next[rt]; ok {
		return id, nil
	}
	return 1, nil
}

func (m *memStore) FindCompetitionByName(ctx context.Context, name string) (*internal.Competition, error) {
	for _, c := range m.competitions {
		if c.Name == name {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) SaveCompetition(ctx context.Context, c internal.Competition) error {
	m.competitions = append(m.competitions, c)
	return nil
}

func (m *memStore) SaveBatch(ctx context.Context, b internal.Batch) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.batches = append(m.batches, b)
	return nil
}

func newParseContext(t *testing.T, store *memStore) *ParseContext {
	t.Helper()
	ids, err := NewIDAllocator(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	return &ParseContext{
		CompetitionID: 7,
		ProgramType:   internal.ProgramShort,
		Category:      internal.CategoryMen,
		IDs:           ids,
	}
}

var twoSkaterLines = []string{
	"1 Yuma KAGIYAMA JPN 12 105.70 59.32 46.38 0.00",
	"1 4T 9.50 2.71 3 3 3 2 3 3 3 3 3 12.21",
	"2 3A 8.00 2.29 3 3 2 3 3 3 2 3 3 10.29",
	"3 CCoSp4 3.50 1.05 3 3 3 3 3 2 3 3 3 4.55",
	"Program Components Factor",
	"Composition 1.33 9.25 9.50 9.25 9.32",
	"Presentation 1.33 9.00 9.25 9.25 9.14",
	"Skating Skills 1.33 9.50 9.50 9.25 9.43",
	"Transitions 1.33 9.00 9.00 9.25 9.08",
	"Performance 1.33 9.25 9.25 9.50 9.34",
	"Deductions: 0.00",
	"2 Ilia MALININ USA 11 101.12 60.01 41.11 0.00",
}

func TestScanTwoPerformances(t *testing.T) {
	pc := newParseContext(t, &memStore{})
	perfs, err := Scan(pc, twoSkaterLines)
	if err != nil {
		t.Fatal(err)
	}
	if len(perfs) != 2 {
		t.Fatalf("performances=%d", len(perfs))
	}

	first := perfs[0]
	if len(first.Elements) != 3 || len(first.Components) != 5 {
		t.Fatalf("first elements=%d components=%d", len(first.Elements), len(first.Components))
	}
	if first.Performance.SkaterName != "Yuma KAGIYAMA" || first.Performance.CompetitionID != 7 ||
		first.Performance.ProgramType != internal.ProgramShort || first.Performance.Category != internal.CategoryMen {
		t.Fatalf("first=%+v", first.Performance)
	}
	if first.StartNumber != 12 {
		t.Fatalf("start number=%d", first.StartNumber)
	}
	for i, c := range first.Components {
		if c.ComponentIndex != i+1 || c.PerformanceID != first.Performance.ID {
			t.Fatalf("component %d: %+v", i, c)
		}
		if c.ComponentName != internal.ComponentNames[i] {
			t.Fatalf("component %d name=%q", i, c.ComponentName)
		}
	}

	second := perfs[1]
	if len(second.Elements) != 0 || len(second.Components) != 0 {
		t.Fatalf("second has children: %+v", second)
	}
	if second.Performance.ID != first.Performance.ID+1 {
		t.Fatalf("ids %d %d", first.Performance.ID, second.Performance.ID)
	}
	if pc.State != StateReadElements {
		t.Fatalf("state=%s", pc.State)
	}
}

func TestScanElementsStopAtComponentsMarker(t *testing.T) {
	lines := []string{
		"1 Yuma KAGIYAMA JPN 12 105.70 59.32 46.38 0.00",
		"1 4T 9.50 2.71 3 3 3 2 3 3 3 3 3 12.21",
		"Program Components Factor",
		"2 3A 8.00 2.29 3 3 2 3 3 3 2 3 3 10.29",
		"Composition 1.33 9.25 9.50 9.25 9.32",
		"Judges Total Program Component Score (factored) 46.38",
		"3 CCoSp4 3.50 1.05 3 3 3 3 3 2 3 3 3 4.55",
	}
	pc := newParseContext(t, &memStore{})
	perfs, err := Scan(pc, lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(perfs) != 1 {
		t.Fatalf("performances=%d", len(perfs))
	}
	if len(perfs[0].Elements) != 1 || perfs[0].Elements[0].ElementName != "4T" {
		t.Fatalf("elements=%+v", perfs[0].Elements)
	}
	if len(perfs[0].Components) != 1 {
		t.Fatalf("components=%+v", perfs[0].Components)
	}
	if pc.Ignored != 2 {
		t.Fatalf("ignored=%d", pc.Ignored)
	}
}

func TestScanDropsChildrenBeforeFirstSkater(t *testing.T) {
	lines := []string{
		"1 4T 9.50 2.71 3 3 3 2 3 3 3 3 3 12.21",
		"Composition 1.33 9.25 9.50 9.25 9.32",
		"page 1 of 3",
	}
	pc := newParseContext(t, &memStore{})
	perfs, err := Scan(pc, lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(perfs) != 0 || pc.Ignored != 3 {
		t.Fatalf("perfs=%d ignored=%d", len(perfs), pc.Ignored)
	}
}

func TestScanComponentIndexResetsPerPerformance(t *testing.T) {
	lines := []string{
		"1 Yuma KAGIYAMA JPN 12 105.70 59.32 46.38 0.00",
		"Program Components Factor",
		"Composition 1.33 9.25 9.50 9.25 9.32",
		"Presentation 1.33 9.00 9.25 9.25 9.14",
		"2 Ilia MALININ USA 11 101.12 60.01 41.11 0.00",
		"Program Components Factor",
		"Presentation 1.33 9.00 9.25 9.25 9.14",
		"Composition 1.33 9.25 9.50 9.25 9.32",
		"Composition 1.33 9.25 9.50 9.25 9.32",
		"Transitions 1.33 9.00 9.00 9.25 9.08",
	}
	pc := newParseContext(t, &memStore{})
	perfs, err := Scan(pc, lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(perfs) != 2 {
		t.Fatalf("performances=%d", len(perfs))
	}
	second := perfs[1].Components
	if len(second) != 3 {
		t.Fatalf("second components=%+v", second)
	}
	wantNames := []string{"Presentation", "Composition", "Transitions"}
	for i, c := range second {
		if c.ComponentIndex != i+1 || c.ComponentName != wantNames[i] {
			t.Fatalf("component %d: %+v", i, c)
		}
	}
	if len(pc.Issues) != 1 || !errors.Is(pc.Issues[0].Err, errDuplicateComponent) || pc.Issues[0].LineNo != 9 {
		t.Fatalf("issues=%v", pc.Issues)
	}
}

func TestScanIDsContinueFromStore(t *testing.T) {
	store := &memStore{next: map[internal.RecordType]int64{
		internal.RecordPerformances: 41,
		internal.RecordElements:     301,
		internal.RecordComponents:   201,
	}}
	pc := newParseContext(t, store)
	perfs, err := Scan(pc, twoSkaterLines)
	if err != nil {
		t.Fatal(err)
	}
	if perfs[0].Performance.ID != 41 || perfs[1].Performance.ID != 42 {
		t.Fatalf("performance ids %d %d", perfs[0].Performance.ID, perfs[1].Performance.ID)
	}
	for i, e := range perfs[0].Elements {
		if e.ID != int64(301+i) || e.PerformanceID != 41 || e.ElementIndex != i+1 {
			t.Fatalf("element %d: %+v", i, e)
		}
	}
	if perfs[0].Components[4].ID != 205 {
		t.Fatalf("last component id=%d", perfs[0].Components[4].ID)
	}
	if next := pc.IDs.Peek(internal.RecordElements); next != 304 {
		t.Fatalf("next element id=%d", next)
	}
}

func TestScanRecordsMalformedLines(t *testing.T) {
	lines := []string{
		"1 Yuma KAGIYAMA JPN 12 105.70 59.32 46.38 0.00",
		"1 4T 9.50 2.71 3 3 3 2 3 3 3 3 3 12.21",
		"2 3A 8.00 2.29 3 1..2 2 10.29",
		"3 CCoSp4 3.50 1.05 3 3 3 3 3 2 3 3 3 4.55",
	}
	pc := newParseContext(t, &memStore{})
	perfs, err := Scan(pc, lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(perfs[0].Elements) != 2 {
		t.Fatalf("elements=%+v", perfs[0].Elements)
	}
	if perfs[0].Elements[1].ID != perfs[0].Elements[0].ID+1 {
		t.Fatal("skipped line consumed an id")
	}
	if len(pc.Issues) != 1 || pc.Issues[0].LineNo != 3 {
		t.Fatalf("issues=%v", pc.Issues)
	}
	if !strings.Contains(pc.Issues[0].String(), "judges scores") {
		t.Fatalf("issue=%s", pc.Issues[0])
	}
}

func TestScanKeepsInvalidatedElement(t *testing.T) {
	lines := []string{
		"1 Yuma KAGIYAMA JPN 12 105.70 59.32 46.38 0.00",
		"1 4T 9.50 2.71 3 3 3 2 3 3 3 3 3 12.21",
		"2 3F* 0.00 0.00 - - - - - - - - - 0.00",
		"3 CCoSp4 3.50 1.05 3 3 3 3 3 2 3 3 3 4.55",
	}
	pc := newParseContext(t, &memStore{})
	perfs, err := Scan(pc, lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(pc.Issues) != 0 {
		t.Fatalf("issues=%v", pc.Issues)
	}
	elems := perfs[0].Elements
	if len(elems) != 3 {
		t.Fatalf("elements=%+v", elems)
	}
	invalid := elems[1]
	if invalid.ElementIndex != 2 || invalid.ElementName != "3F*" || invalid.BaseValue != 0 ||
		invalid.PanelScore != 0 || len(invalid.JudgesScores) != 0 {
		t.Fatalf("invalidated element=%+v", invalid)
	}
	if elems[2].ElementIndex != 3 || elems[2].ID != invalid.ID+1 {
		t.Fatalf("next element=%+v", elems[2])
	}
}

func TestScanMalformedSkaterLineClosesBlock(t *testing.T) {
	lines := []string{
		"1 Yuma KAGIYAMA JPN 12 105.70 59.32 46.38 0.00",
		"1 4T 9.50 2.71 3 3 3 2 3 3 3 3 3 12.21",
		"2 3A 8.00 2.29 3 3 2 3 3 3 2 3 3 10.29",
		"2 Ilia MALININ USA 11 101.12 60..01 41.11 0.00",
		"1 4A 12.50 3.20 3 3 3 3 3 3 3 3 3 15.70",
		"Program Components Factor",
		"Composition 1.33 9.25 9.50 9.25 9.32",
		"3 Kevin AYMOZ FRA 10 95.00 50.00 45.00 0.00",
		"1 3A 8.00 1.60 2 2 2 2 2 2 2 2 2 9.60",
	}
	pc := newParseContext(t, &memStore{})
	perfs, err := Scan(pc, lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(perfs) != 2 {
		t.Fatalf("performances=%d", len(perfs))
	}
	if len(perfs[0].Elements) != 2 || len(perfs[0].Components) != 0 {
		t.Fatalf("first elements=%d components=%d", len(perfs[0].Elements), len(perfs[0].Components))
	}
	for _, e := range perfs[0].Elements {
		if e.ElementName == "4A" {
			t.Fatalf("element of the broken block attached to %s", perfs[0].Performance.SkaterName)
		}
	}
	if perfs[1].Performance.SkaterName != "Kevin AYMOZ" || len(perfs[1].Elements) != 1 {
		t.Fatalf("second=%+v", perfs[1])
	}
	if len(pc.Issues) != 1 || pc.Issues[0].LineNo != 4 {
		t.Fatalf("issues=%v", pc.Issues)
	}
	if pc.Ignored != 3 {
		t.Fatalf("ignored=%d", pc.Ignored)
	}
}

func TestScanOnPerformanceErrorStops(t *testing.T) {
	pc := newParseContext(t, &memStore{})
	boom := errors.New("disk full")
	calls := 0
	pc.OnPerformance = func(p ParsedPerformance) error {
		calls++
		return boom
	}
	perfs, err := Scan(pc, twoSkaterLines)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if calls != 1 || len(perfs) != 1 {
		t.Fatalf("calls=%d perfs=%d", calls, len(perfs))
	}
}

func TestScanRequiresAllocator(t *testing.T) {
	if _, err := Scan(&ParseContext{}, twoSkaterLines); err == nil {
		t.Fatal("expected error")
	}
}
