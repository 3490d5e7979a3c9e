package results

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"skatescore/internal"
	"skatescore/internal/util"
)

// Protocol is one judges-details PDF linked from an event index.
type Protocol struct {
	URL         string
	FileName    string
	Category    internal.Category
	ProgramType internal.ProgramType
}

type Index struct {
	Title     string
	Protocols []Protocol
}

// ParseIndex reads an event index page. A row contributes a protocol when it
// links a PDF and both its category and program can be told from the row
// text or the link; category headings carry over to the rows below them.
// Pairs and ice dance rows are skipped.
func ParseIndex(baseURL string, html []byte) (Index, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return Index{}, fmt.Errorf("index url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Index{}, fmt.Errorf("parse index: %w", err)
	}

	idx := Index{Title: util.NormalizeSpaces(doc.Find("title").First().Text())}
	seen := map[string]struct{}{}
	var heading internal.Category
	var headingSet bool

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		text := util.NormalizeSpaces(row.Text())
		links := row.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			return strings.HasSuffix(strings.ToLower(strings.TrimSpace(href)), ".pdf")
		})

		if cat, ok, other := categoryOf(text); ok || other {
			if links.Length() == 0 {
				heading, headingSet = cat, ok
				return
			}
		}

		links.Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			ref, err := url.Parse(strings.TrimSpace(href))
			if err != nil {
				return
			}
			abs := base.ResolveReference(ref)
			name := path.Base(abs.Path)
			hint := text + " " + name

			if !isJudgesDetails(name + " " + a.Text()) {
				return
			}
			cat, ok, other := categoryOf(hint)
			if other {
				return
			}
			if !ok {
				if !headingSet {
					return
				}
				cat = heading
			}
			program, ok := programOf(hint)
			if !ok {
				return
			}
			if _, dup := seen[abs.String()]; dup {
				return
			}
			seen[abs.String()] = struct{}{}
			idx.Protocols = append(idx.Protocols, Protocol{
				URL:         abs.String(),
				FileName:    name,
				Category:    cat,
				ProgramType: program,
			})
		})
	})
	return idx, nil
}

// categoryOf reports the singles category named in s. other is true when s
// names a discipline this importer does not handle.
func categoryOf(s string) (cat internal.Category, ok bool, other bool) {
	l := " " + strings.ToLower(strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)) + " "
	switch {
	case strings.Contains(l, " pairs "), strings.Contains(l, " ice dance "), strings.Contains(l, " icedance "):
		return "", false, true
	case strings.Contains(l, " women "), strings.Contains(l, " ladies "):
		return internal.CategoryWomen, true, false
	case strings.Contains(l, " men "):
		return internal.CategoryMen, true, false
	}
	return "", false, false
}

func programOf(s string) (internal.ProgramType, bool) {
	l := " " + strings.ToLower(strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)) + " "
	switch {
	case strings.Contains(l, "short program"), strings.Contains(l, " sp "):
		return internal.ProgramShort, true
	case strings.Contains(l, "free skating"), strings.Contains(l, "free program"), strings.Contains(l, " fs "):
		return internal.ProgramFree, true
	}
	return "", false
}

func isJudgesDetails(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "judges") || strings.Contains(l, "scores")
}
