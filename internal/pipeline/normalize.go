package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"skatescore/internal/util"
)

// Call annotations printed next to an element code: under-rotation,
// downgrade, wrong edge, unclear edge, reduced value.
const callAnnotationChars = "!<qeV"

var (
	reBonusMarker   = regexp.MustCompile(`[xX\s]`)
	reNonScoreRunes = regexp.MustCompile(`[^\d\s.-]`)
)

// CanonicalElementName rebuilds the compact element code from the name field
// as the text extractor spaced it out.
func CanonicalElementName(raw string) string {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return ""
	}
	// "3Lz <<" keeps the code only; "4Lz+3T" or "3A+2A+SEQ" split by the
	// extractor are glued back together.
	if len(parts) > 1 && strings.ContainsAny(parts[1], callAnnotationChars) {
		return parts[0]
	}
	return strings.Join(parts, "")
}

// ParseBaseValue parses a base-value token that may carry the bonus marker,
// e.g. "10.67 x".
func ParseBaseValue(token string) (float64, bool, error) {
	bonus := strings.ContainsAny(token, "xX")
	v, err := util.ParseDecimal(reBonusMarker.ReplaceAllString(token, ""))
	if err != nil {
		return 0, false, err
	}
	return v, bonus, nil
}

// CleanJudgesScores strips footnote glyphs from a judges field and returns the
// individual scores in panel order. A bare "-" is a judge without a mark
// (printed for every judge on an invalidated element) and is left out.
func CleanJudgesScores(raw string) ([]float64, error) {
	tokens := strings.Fields(reNonScoreRunes.ReplaceAllString(raw, ""))
	out := make([]float64, 0, len(tokens))
	for i, tok := range tokens {
		if strings.Trim(tok, "-") == "" {
			continue
		}
		v, err := util.ParseDecimal(tok)
		if err != nil {
			return nil, fmt.Errorf("judge %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}
