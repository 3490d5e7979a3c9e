package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"skatescore/internal/util"
)

// Glyph gaps wider than this share of the font size become a space.
const wordGapRatio = 0.2

// PDFLines extracts every page of a PDF as text rows, top to bottom.
func PDFLines(ctx context.Context, content []byte) (lines []string, err error) {
	defer func() {
		// the reader panics on some malformed content streams
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("%w: pdf decode: %v", ErrOpenDocument, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDocument, err)
	}

	out := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		out = append(out, pageLines(p)...)
	}

	hasText := false
	for _, line := range out {
		if strings.TrimSpace(line) != "" {
			hasText = true
			break
		}
	}
	if !hasText {
		return nil, ErrNoText
	}
	return out, nil
}

func pageLines(p pdf.Page) []string {
	rows, err := p.GetTextByRow()
	if err != nil || len(rows) == 0 {
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil
		}
		return util.SplitLines(text)
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowText(row))
	}
	return out
}

// rowText lays the glyph runs of one row out left to right, turning the gap
// between runs into spaces roughly proportional to its width.
func rowText(row *pdf.Row) string {
	var b strings.Builder
	var lastEnd float64
	for i, t := range row.Content {
		if i > 0 {
			gap := t.X - lastEnd
			if gap > t.FontSize*wordGapRatio {
				n := 1
				if cw := charWidth(t); cw > 0 {
					if k := int(gap / cw); k > n {
						n = k
					}
				}
				b.WriteString(strings.Repeat(" ", n))
			}
		}
		b.WriteString(t.S)
		lastEnd = t.X + textWidth(t)
	}
	return strings.TrimRight(b.String(), " ")
}

func textWidth(t pdf.Text) float64 {
	if t.W > 0 {
		return t.W
	}
	return float64(utf8.RuneCountInString(t.S)) * charWidth(t)
}

func charWidth(t pdf.Text) float64 {
	return t.FontSize * 0.5
}
