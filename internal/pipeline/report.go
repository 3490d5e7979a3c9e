package pipeline

import (
	"context"
	"fmt"
	"sort"

	"skatescore/internal"
)

// QueryStore is the read side used by the API and the export.
type QueryStore interface {
	ListCompetitions(ctx context.Context) ([]internal.Competition, error)
	GetCompetition(ctx context.Context, id int64) (*internal.Competition, error)
	ListPerformances(ctx context.Context, competitionID int64, category internal.Category) ([]internal.Performance, error)
	ListElements(ctx context.Context, performanceIDs []int64) ([]internal.Element, error)
	ListComponents(ctx context.Context, performanceIDs []int64) ([]internal.Component, error)
}

type PerformanceDetail struct {
	internal.Performance
	Elements   []internal.Element   `json:"elements"`
	Components []internal.Component `json:"components"`
}

// LoadPerformanceDetails returns the performances of a competition with
// elements ordered by element index and components by component index.
// An empty category means all categories.
func LoadPerformanceDetails(ctx context.Context, q QueryStore, competitionID int64, category internal.Category) ([]PerformanceDetail, error) {
	perfs, err := q.ListPerformances(ctx, competitionID, category)
	if err != nil {
		return nil, fmt.Errorf("list performances: %w", err)
	}
	if len(perfs) == 0 {
		return []PerformanceDetail{}, nil
	}
	ids := make([]int64, 0, len(perfs))
	for _, p := range perfs {
		ids = append(ids, p.ID)
	}
	elements, err := q.ListElements(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	components, err := q.ListComponents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	byPerf := make(map[int64]*PerformanceDetail, len(perfs))
	out := make([]PerformanceDetail, len(perfs))
	for i, p := range perfs {
		out[i] = PerformanceDetail{Performance: p, Elements: []internal.Element{}, Components: []internal.Component{}}
		byPerf[p.ID] = &out[i]
	}
	for _, e := range elements {
		if d, ok := byPerf[e.PerformanceID]; ok {
			d.Elements = append(d.Elements, e)
		}
	}
	for _, c := range components {
		if d, ok := byPerf[c.PerformanceID]; ok {
			d.Components = append(d.Components, c)
		}
	}
	for i := range out {
		sort.SliceStable(out[i].Elements, func(a, b int) bool {
			return out[i].Elements[a].ElementIndex < out[i].Elements[b].ElementIndex
		})
		sort.SliceStable(out[i].Components, func(a, b int) bool {
			return out[i].Components[a].ComponentIndex < out[i].Components[b].ComponentIndex
		})
	}
	return out, nil
}

// SegmentResult is a skater's result in one program. Rank is "-" when the
// skater has no performance for that program.
type SegmentResult struct {
	Score float64 `json:"score"`
	Rank  string  `json:"rank"`
}

type SkaterSummary struct {
	Name   string        `json:"name"`
	Nation string        `json:"nation"`
	Short  SegmentResult `json:"sp"`
	Free   SegmentResult `json:"fs"`
	Total  float64       `json:"total"`
}

const podiumSize = 3

// Podium combines short and free results per skater name and returns the
// best totals, highest first. Skaters with a zero total are left out.
func Podium(perfs []internal.Performance) []SkaterSummary {
	var order []string
	skaters := map[string]*SkaterSummary{}
	for _, p := range perfs {
		s, ok := skaters[p.SkaterName]
		if !ok {
			s = &SkaterSummary{
				Name:   p.SkaterName,
				Nation: p.Nation,
				Short:  SegmentResult{Rank: "-"},
				Free:   SegmentResult{Rank: "-"},
			}
			skaters[p.SkaterName] = s
			order = append(order, p.SkaterName)
		}
		seg := SegmentResult{Score: p.TotalScore, Rank: fmt.Sprint(p.Rank)}
		switch p.ProgramType {
		case internal.ProgramShort:
			s.Short = seg
		case internal.ProgramFree:
			s.Free = seg
		}
	}

	out := make([]SkaterSummary, 0, len(order))
	for _, name := range order {
		s := skaters[name]
		s.Total = s.Short.Score + s.Free.Score
		if s.Total > 0 {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if len(out) > podiumSize {
		out = out[:podiumSize]
	}
	return out
}
