package respond

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/papercomputeco/psyche/pkg/mind"
)

// Fixed intents answerable without any model call. Matching is deliberately
// narrow: anything ambiguous falls through to the heavier paths.
var (
	countIntent     = regexp.MustCompile(`(?i)how many (memories|things|experiences)`)
	strongestIntent = regexp.MustCompile(`(?i)(strongest|dominant|biggest) pattern`)
	earliestIntent  = regexp.MustCompile(`(?i)(earliest|first|oldest) (memory|thing|experience)`)
	latestIntent    = regexp.MustCompile(`(?i)(latest|last|newest|most recent) (memory|thing|experience)`)
	rememberIntent  = regexp.MustCompile(`(?i)what do you remember about (.+?)[?.!]?$`)
)

// localAnswer attempts the zero-cost short circuit. Returns empty when no
// fixed intent matches.
func localAnswer(ac *answerContext) string {
	query := strings.TrimSpace(ac.query)

	switch {
	case countIntent.MatchString(query):
		return fmt.Sprintf("I hold %d memories for you.", ac.total)

	case strongestIntent.MatchString(query):
		if len(ac.patterns) == 0 {
			return "No behavioral patterns have formed yet."
		}
		top := ac.patterns[0]
		return fmt.Sprintf("Your strongest pattern is %q, reinforced %d times at strength %.2f.",
			top.Label, top.Frequency, top.Strength)

	case earliestIntent.MatchString(query):
		if m := boundaryMemory(ac.memories, true); m != nil {
			return fmt.Sprintf("The earliest memory I hold is from %s: %s",
				m.CreatedAt.Format("January 2, 2006"), excerpt(m))
		}

	case latestIntent.MatchString(query):
		if m := boundaryMemory(ac.memories, false); m != nil {
			return fmt.Sprintf("The most recent memory I hold is from %s: %s",
				m.CreatedAt.Format("January 2, 2006"), excerpt(m))
		}

	default:
		if sub := rememberIntent.FindStringSubmatch(query); sub != nil {
			return rememberAnswer(ac.memories, sub[1])
		}
	}

	return ""
}

// rememberAnswer lists the highest-gravity memories mentioning the subject.
func rememberAnswer(memories []*mind.Memory, subject string) string {
	needle := strings.ToLower(strings.TrimSpace(subject))
	if needle == "" {
		return ""
	}

	var hits []*mind.Memory
	for _, m := range memories {
		haystack := strings.ToLower(m.Content + " " + m.Topic + " " + m.Summary)
		if strings.Contains(haystack, needle) {
			hits = append(hits, m)
		}
	}
	if len(hits) == 0 {
		return fmt.Sprintf("I don't hold any memories about %s yet.", subject)
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].GravityScore > hits[j].GravityScore
	})
	if len(hits) > 3 {
		hits = hits[:3]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "About %s, I remember:", subject)
	for _, m := range hits {
		b.WriteString(" ")
		b.WriteString(excerpt(m))
	}
	return b.String()
}

func boundaryMemory(memories []*mind.Memory, earliest bool) *mind.Memory {
	var found *mind.Memory
	for _, m := range memories {
		if found == nil {
			found = m
			continue
		}
		if earliest && m.CreatedAt.Before(found.CreatedAt) {
			found = m
		}
		if !earliest && m.CreatedAt.After(found.CreatedAt) {
			found = m
		}
	}
	return found
}

// excerpt prefers the summary and trims long content to a sentence-ish span.
func excerpt(m *mind.Memory) string {
	text := m.Summary
	if text == "" {
		text = m.Content
	}
	if runes := []rune(text); len(runes) > 140 {
		text = string(runes[:140]) + "…"
	}
	return text
}
