package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"skatescore/internal"
)

type State int

const (
	StateSeekSkater State = iota
	StateReadElements
	StateReadComponents
)

func (s State) String() string {
	switch s {
	case StateSeekSkater:
		return "seek_skater"
	case StateReadElements:
		return "read_elements"
	case StateReadComponents:
		return "read_components"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParsedPerformance is one skater block with its children in source order.
type ParsedPerformance struct {
	Performance internal.Performance
	// StartNumber is read from the result line but not persisted.
	StartNumber int
	Elements    []internal.Element
	Components  []internal.Component
}

func (p ParsedPerformance) Batch() internal.Batch {
	return internal.Batch{
		Performances: []internal.Performance{p.Performance},
		Elements:     p.Elements,
		Components:   p.Components,
	}
}

// LineIssue is a line that had a record shape but was skipped.
type LineIssue struct {
	LineNo int
	Text   string
	Err    error
}

func (i LineIssue) String() string {
	return fmt.Sprintf("line %d: %v: %q", i.LineNo, i.Err, i.Text)
}

var errDuplicateComponent = errors.New("duplicate component")

// ParseContext carries everything that changes while one document is
// scanned. It is owned by the caller; a fresh context is used per document.
type ParseContext struct {
	CompetitionID int64
	ProgramType   internal.ProgramType
	Category      internal.Category
	IDs           *IDAllocator

	// OnPerformance, when set, is called with each performance as soon as its
	// block is closed by the next skater line or by the end of input.
	OnPerformance func(ParsedPerformance) error

	State   State
	Issues  []LineIssue
	Ignored int

	current        *ParsedPerformance
	componentIndex int
	seenComponents map[string]struct{}
	done           []ParsedPerformance
}

// Scan walks the lines once and returns the performances found, in order.
func Scan(pc *ParseContext, lines []string) ([]ParsedPerformance, error) {
	if pc.IDs == nil {
		return nil, errors.New("parse context has no id allocator")
	}
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if err := pc.step(i+1, line); err != nil {
			return pc.done, err
		}
	}
	if err := pc.flush(); err != nil {
		return pc.done, err
	}
	return pc.done, nil
}

func (pc *ParseContext) step(lineNo int, line string) error {
	switch c := ClassifyLine(pc.State, line).(type) {
	case SkaterLine:
		if err := pc.flush(); err != nil {
			return err
		}
		pc.open(c)
	case SectionMarker:
		switch c.Marker {
		case MarkerElementsEnd:
			pc.State = StateReadComponents
		case MarkerComponentsEnd:
			pc.State = StateSeekSkater
		}
	case ElementLine:
		pc.addElement(c)
	case ComponentLine:
		if err := pc.addComponent(c); err != nil {
			pc.Issues = append(pc.Issues, LineIssue{LineNo: lineNo, Text: line, Err: err})
		}
	case Unrecognized:
		if c.Err != nil {
			pc.Issues = append(pc.Issues, LineIssue{LineNo: lineNo, Text: line, Err: c.Err})
			if c.Shape == ShapeSkater {
				// A new block starts here but has no usable header: close the
				// open performance and drop the children that follow.
				if err := pc.flush(); err != nil {
					return err
				}
				pc.State = StateSeekSkater
			}
			return nil
		}
		pc.Ignored++
	default:
		return fmt.Errorf("line %d: unhandled classification %T", lineNo, c)
	}
	return nil
}

func (pc *ParseContext) open(s SkaterLine) {
	pc.current = &ParsedPerformance{
		Performance: internal.Performance{
			ID:            pc.IDs.Next(internal.RecordPerformances),
			CompetitionID: pc.CompetitionID,
			SkaterName:    s.Name,
			Nation:        s.Nation,
			Rank:          s.Rank,
			ProgramType:   pc.ProgramType,
			Category:      pc.Category,
			TotalScore:    s.TotalScore,
			TESScore:      s.TESScore,
			PCSScore:      s.PCSScore,
			Deductions:    s.Deductions,
		},
		StartNumber: s.StartNumber,
		Elements:    []internal.Element{},
		Components:  []internal.Component{},
	}
	pc.State = StateReadElements
	pc.componentIndex = 1
	pc.seenComponents = map[string]struct{}{}
}

func (pc *ParseContext) addElement(e ElementLine) {
	if pc.current == nil {
		return
	}
	pc.current.Elements = append(pc.current.Elements, internal.Element{
		ID:            pc.IDs.Next(internal.RecordElements),
		PerformanceID: pc.current.Performance.ID,
		ElementIndex:  e.Index,
		ElementName:   e.Name,
		BaseValue:     e.BaseValue,
		GOE:           e.GOE,
		PanelScore:    e.PanelScore,
		JudgesScores:  e.JudgesScores,
		IsBonus:       e.IsBonus,
	})
}

func (pc *ParseContext) addComponent(c ComponentLine) error {
	if pc.current == nil {
		return nil
	}
	if _, dup := pc.seenComponents[c.Name]; dup {
		return fmt.Errorf("%w: %s", errDuplicateComponent, c.Name)
	}
	pc.seenComponents[c.Name] = struct{}{}
	pc.current.Components = append(pc.current.Components, internal.Component{
		ID:             pc.IDs.Next(internal.RecordComponents),
		PerformanceID:  pc.current.Performance.ID,
		ComponentIndex: pc.componentIndex,
		ComponentName:  c.Name,
		Factor:         c.Factor,
		PanelScore:     c.PanelScore,
		JudgesScores:   c.JudgesScores,
	})
	pc.componentIndex++
	return nil
}

func (pc *ParseContext) flush() error {
	if pc.current == nil {
		return nil
	}
	p := *pc.current
	pc.current = nil
	pc.done = append(pc.done, p)
	if pc.OnPerformance != nil {
		if err := pc.OnPerformance(p); err != nil {
			return fmt.Errorf("performance %d (%s): %w", p.Performance.ID, p.Performance.SkaterName, err)
		}
	}
	return nil
}
