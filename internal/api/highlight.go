package api

import (
	"html"
	"sort"
	"strings"
)

type span struct{ start, end int }

// Highlight HTML-escapes text and wraps every exact occurrence of a key phrase
// in <mark>. Longer phrases win where phrases overlap.
func Highlight(text string, phrases []string) string {
	ordered := append([]string(nil), phrases...)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	var spans []span
	for _, phrase := range ordered {
		if phrase == "" {
			continue
		}
		for from := 0; from < len(text); {
			idx := strings.Index(text[from:], phrase)
			if idx < 0 {
				break
			}
			s := span{start: from + idx, end: from + idx + len(phrase)}
			if !overlaps(spans, s) {
				spans = append(spans, s)
			}
			from = s.end
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(html.EscapeString(text[last:s.start]))
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(text[s.start:s.end]))
		b.WriteString("</mark>")
		last = s.end
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

func overlaps(spans []span, s span) bool {
	for _, o := range spans {
		if s.start < o.end && o.start < s.end {
			return true
		}
	}
	return false
}
