package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"skatescore/internal/util"
)

var (
	skaterLinePattern    = regexp.MustCompile(`(\d+)\s+(.+?)\s+([A-Z]{3})\s+(\d+)\s+([\d.]+)\s+([\d.]+)\s+([\d.]+)\s+(-?[\d.]+)`)
	elementLinePattern   = regexp.MustCompile(`^\s*(\d+)\s+(.+?)\s+(\d+\.\d{2}(?:\s*[xX])?)\s+(-?\d+\.\d{2})\s+(.+)\s+(\d+\.\d{2})\s*$`)
	componentLinePattern = regexp.MustCompile(`(Composition|Presentation|Skating Skills|Transitions|Performance)\s+(\d+\.\d{2})\s+(.*)\s+(\d+\.\d{2})`)
)

// The column-header row is close enough to a result line to match it.
const headerRowToken = "Rank Name"

const elementsEndMarker = "Program Components"

var componentsEndMarkers = []string{"Judges Total Program Component", "Deductions"}

// Record shapes reported by Unrecognized.
const (
	ShapeSkater    = "skater"
	ShapeElement   = "element"
	ShapeComponent = "component"
)

type Marker int

const (
	MarkerElementsEnd Marker = iota + 1
	MarkerComponentsEnd
)

func (m Marker) String() string {
	switch m {
	case MarkerElementsEnd:
		return "elements_end"
	case MarkerComponentsEnd:
		return "components_end"
	default:
		return "unknown"
	}
}

// Classified is the result of classifying one line. The concrete type is one
// of SkaterLine, ElementLine, ComponentLine, SectionMarker or Unrecognized.
type Classified interface {
	classified()
}

type SkaterLine struct {
	Rank        int
	Name        string
	Nation      string
	StartNumber int
	TotalScore  float64
	TESScore    float64
	PCSScore    float64
	Deductions  float64
}

type ElementLine struct {
	Index        int
	Name         string
	BaseValue    float64
	IsBonus      bool
	GOE          float64
	JudgesScores []float64
	PanelScore   float64
}

type ComponentLine struct {
	Name         string
	Factor       float64
	JudgesScores []float64
	PanelScore   float64
}

type SectionMarker struct {
	Marker Marker
}

// Unrecognized is a line that is dropped. Shape and Err are set when the
// line had the shape of a record but a field could not be converted.
type Unrecognized struct {
	Shape string
	Err   error
}

func (SkaterLine) classified()    {}
func (ElementLine) classified()   {}
func (ComponentLine) classified() {}
func (SectionMarker) classified() {}
func (Unrecognized) classified()  {}

// ClassifyLine classifies a trimmed, non-blank line for the given state.
// A skater-result line is recognised in every state; markers, elements and
// components only in the state that reads them.
func ClassifyLine(state State, line string) Classified {
	if c, ok := matchSkaterLine(line); ok {
		return c
	}

	switch state {
	case StateReadElements:
		if strings.Contains(line, elementsEndMarker) {
			return SectionMarker{Marker: MarkerElementsEnd}
		}
		if c, ok := matchElementLine(line); ok {
			return c
		}
	case StateReadComponents:
		for _, marker := range componentsEndMarkers {
			if strings.Contains(line, marker) {
				return SectionMarker{Marker: MarkerComponentsEnd}
			}
		}
		if c, ok := matchComponentLine(line); ok {
			return c
		}
	}
	return Unrecognized{}
}

func matchSkaterLine(line string) (Classified, bool) {
	m := skaterLinePattern.FindStringSubmatch(line)
	if m == nil || strings.Contains(line, headerRowToken) {
		return nil, false
	}

	var out SkaterLine
	var err error
	if out.Rank, err = util.ParseInt(m[1]); err != nil {
		return malformed(ShapeSkater, "rank", err), true
	}
	out.Name = strings.TrimSpace(m[2])
	out.Nation = m[3]
	if out.StartNumber, err = util.ParseInt(m[4]); err != nil {
		return malformed(ShapeSkater, "start number", err), true
	}
	scores := []*float64{&out.TotalScore, &out.TESScore, &out.PCSScore, &out.Deductions}
	fields := []string{"total score", "tes", "pcs", "deductions"}
	for i, dst := range scores {
		if *dst, err = util.ParseDecimal(m[5+i]); err != nil {
			return malformed(ShapeSkater, fields[i], err), true
		}
	}
	return out, true
}

func matchElementLine(line string) (Classified, bool) {
	m := elementLinePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	var out ElementLine
	var err error
	if out.Index, err = util.ParseInt(m[1]); err != nil {
		return malformed(ShapeElement, "index", err), true
	}
	out.Name = CanonicalElementName(m[2])
	if out.BaseValue, out.IsBonus, err = ParseBaseValue(m[3]); err != nil {
		return malformed(ShapeElement, "base value", err), true
	}
	if out.GOE, err = util.ParseDecimal(m[4]); err != nil {
		return malformed(ShapeElement, "goe", err), true
	}
	if out.JudgesScores, err = CleanJudgesScores(m[5]); err != nil {
		return malformed(ShapeElement, "judges scores", err), true
	}
	if out.PanelScore, err = util.ParseDecimal(m[6]); err != nil {
		return malformed(ShapeElement, "panel score", err), true
	}
	return out, true
}

func matchComponentLine(line string) (Classified, bool) {
	m := componentLinePattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	out := ComponentLine{Name: m[1]}
	var err error
	if out.Factor, err = util.ParseDecimal(m[2]); err != nil {
		return malformed(ShapeComponent, "factor", err), true
	}
	if out.JudgesScores, err = CleanJudgesScores(m[3]); err != nil {
		return malformed(ShapeComponent, "judges scores", err), true
	}
	if out.PanelScore, err = util.ParseDecimal(m[4]); err != nil {
		return malformed(ShapeComponent, "panel score", err), true
	}
	return out, true
}

func malformed(shape, field string, err error) Unrecognized {
	return Unrecognized{Shape: shape, Err: fmt.Errorf("%s %s: %w", shape, field, err)}
}
