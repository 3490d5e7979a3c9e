package util

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDecimal parses a score token such as "105.70", "-1.00" or "0".
// Thousands separators are not expected in protocol sheets and are rejected.
func ParseDecimal(token string) (float64, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return 0, fmt.Errorf("empty number")
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", token)
	}
	return v, nil
}

func ParseInt(token string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", token)
	}
	return v, nil
}

// FormatScore renders a score without trailing zeros ("9.5", "-1", "12.61").
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JoinScores renders a judges list in its stored form, "1,2,-1,3".
func JoinScores(scores []float64) string {
	parts := make([]string, 0, len(scores))
	for _, s := range scores {
		parts = append(parts, FormatScore(s))
	}
	return strings.Join(parts, ",")
}

func SplitScores(joined string) ([]float64, error) {
	joined = strings.TrimSpace(joined)
	if joined == "" {
		return []float64{}, nil
	}
	parts := strings.Split(joined, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := ParseDecimal(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
