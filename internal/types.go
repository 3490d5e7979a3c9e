package internal

import (
	"fmt"
	"strings"
)

type ProgramType string

const (
	ProgramShort ProgramType = "Short"
	ProgramFree  ProgramType = "Free"
)

// ParseProgramType accepts the canonical names plus the usual short forms
// (short/free, sp/fs) in any case.
func ParseProgramType(v string) (ProgramType, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "short", "sp", "short program":
		return ProgramShort, nil
	case "free", "fs", "free skating", "free program":
		return ProgramFree, nil
	default:
		return "", fmt.Errorf("unsupported program type: %q", v)
	}
}

type Category string

const (
	CategoryMen   Category = "Men"
	CategoryWomen Category = "Women"
)

// ParseCategory accepts Men/Women and the batch shorthands m/w.
func ParseCategory(v string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "m", "men":
		return CategoryMen, nil
	case "w", "women", "ladies":
		return CategoryWomen, nil
	default:
		return "", fmt.Errorf("unsupported category: %q", v)
	}
}

type RecordType string

const (
	RecordCompetitions RecordType = "competitions"
	RecordPerformances RecordType = "performances"
	RecordElements     RecordType = "elements"
	RecordComponents   RecordType = "components"
)

var RecordTypes = []RecordType{RecordCompetitions, RecordPerformances, RecordElements, RecordComponents}

var ComponentNames = []string{"Composition", "Presentation", "Skating Skills", "Transitions", "Performance"}

type Competition struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Season   string  `json:"year"`
	Location *string `json:"location"`
	Date     *string `json:"date"`
}

type Performance struct {
	ID            int64       `json:"id"`
	CompetitionID int64       `json:"competition_id"`
	SkaterName    string      `json:"skater_name"`
	Nation        string      `json:"nation"`
	Rank          int         `json:"rank"`
	ProgramType   ProgramType `json:"program_type"`
	Category      Category    `json:"category"`
	TotalScore    float64     `json:"total_score"`
	TESScore      float64     `json:"tes_score"`
	PCSScore      float64     `json:"pcs_score"`
	Deductions    float64     `json:"deductions"`
}

type Element struct {
	ID            int64     `json:"id"`
	PerformanceID int64     `json:"performance_id"`
	ElementIndex  int       `json:"element_index"`
	ElementName   string    `json:"element_name"`
	BaseValue     float64   `json:"base_value"`
	GOE           float64   `json:"goe"`
	PanelScore    float64   `json:"panel_score"`
	JudgesScores  []float64 `json:"judges_scores"`
	IsBonus       bool      `json:"is_bonus"`
}

type Component struct {
	ID             int64     `json:"id"`
	PerformanceID  int64     `json:"performance_id"`
	ComponentIndex int       `json:"component_index"`
	ComponentName  string    `json:"component_name"`
	Factor         float64   `json:"factor"`
	PanelScore     float64   `json:"panel_score"`
	JudgesScores   []float64 `json:"judges_scores"`
}

// ImportRun is one document import attempt as kept in the runs log.
type ImportRun struct {
	RunID         string
	DocumentPath  string
	DocumentHash  string
	CompetitionID int64
	Status        string
	Counts        map[string]int
}

// Batch is the set of records produced from one document, or from one
// performance block when importing incrementally.
type Batch struct {
	Performances []Performance
	Elements     []Element
	Components   []Component
}

func (b Batch) Empty() bool {
	return len(b.Performances) == 0 && len(b.Elements) == 0 && len(b.Components) == 0
}
