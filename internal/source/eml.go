package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
)

// EMLLines reads protocols delivered as e-mail: the lines of every PDF
// attachment, in attachment order.
func EMLLines(ctx context.Context, raw []byte) ([]string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenDocument, err)
	}

	out := []string{}
	found := false
	for _, att := range env.Attachments {
		name := strings.ToLower(strings.TrimSpace(att.FileName))
		if !strings.HasSuffix(name, ".pdf") && att.ContentType != "application/pdf" {
			continue
		}
		found = true
		lines, err := PDFLines(ctx, att.Content)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", att.FileName, err)
		}
		out = append(out, lines...)
	}
	if !found {
		return nil, fmt.Errorf("%w: no pdf attachment", ErrNoText)
	}
	return out, nil
}
