package respond

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/papercomputeco/psyche/pkg/mind"
)

// Guardrails for trusting the statistical estimator over the LLM. A rejected
// estimate falls through silently; the caller never sees the guardrail.
const (
	// calcMinMemories is the minimum recalled memories before any estimate
	// is trusted.
	calcMinMemories = 3

	// calcMinConfidence is the minimum estimate confidence for a direct
	// answer. Lower-confidence estimates may still compress context for
	// the LLM path.
	calcMinConfidence = 0.6
)

var (
	averageIntent = regexp.MustCompile(`(?i)(average|typical|overall) (gravity|weight|intensity|salience)`)
	feelingIntent = regexp.MustCompile(`(?i)how (have i|do i usually|do i) (been feeling|feel)`)
	trendIntent   = regexp.MustCompile(`(?i)(getting better|getting worse|improving|trend)`)
)

// estimate is the calculator's output: either a direct answer or a
// compressed context string for the LLM prompt.
type estimate struct {
	answer     string
	compressed string
	confidence float64
}

// calculate runs the statistical estimator over the recalled memories.
// Returns nil when no estimator intent matches or the guardrails reject the
// sample outright.
func calculate(ac *answerContext) *estimate {
	if len(ac.memories) < calcMinMemories {
		return nil
	}

	switch {
	case averageIntent.MatchString(ac.query):
		return gravityEstimate(ac.memories)
	case feelingIntent.MatchString(ac.query):
		return emotionEstimate(ac.memories)
	case trendIntent.MatchString(ac.query):
		return trendEstimate(ac.memories)
	}
	return nil
}

// gravityEstimate answers salience questions from the sample mean. Confidence
// grows with sample size.
func gravityEstimate(memories []*mind.Memory) *estimate {
	var sum float64
	for _, m := range memories {
		sum += m.GravityScore
	}
	mean := sum / float64(len(memories))

	return &estimate{
		answer: fmt.Sprintf("Across %d recalled memories the average gravity is %.2f.",
			len(memories), mean),
		compressed: fmt.Sprintf("mean gravity %.2f over %d memories", mean, len(memories)),
		confidence: sampleConfidence(len(memories)),
	}
}

// emotionEstimate answers feeling questions from the emotion distribution.
func emotionEstimate(memories []*mind.Memory) *estimate {
	counts := make(map[string]int)
	labeled := 0
	for _, m := range memories {
		if m.EmotionalWeight() {
			counts[m.Emotion]++
			labeled++
		}
	}
	if labeled == 0 {
		return nil
	}

	type pair struct {
		emotion string
		count   int
	}
	pairs := make([]pair, 0, len(counts))
	for emotion, count := range counts {
		pairs = append(pairs, pair{emotion, count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].emotion < pairs[j].emotion
	})

	dominant := pairs[0]
	share := float64(dominant.count) / float64(labeled)

	// Confidence tracks how dominant the leading emotion actually is.
	confidence := share * sampleConfidence(labeled)

	return &estimate{
		answer: fmt.Sprintf("Mostly %s: %d of your %d emotionally weighted memories carry it.",
			dominant.emotion, dominant.count, labeled),
		compressed: fmt.Sprintf("dominant emotion %s (%.0f%% of %d labeled memories)",
			dominant.emotion, share*100, labeled),
		confidence: confidence,
	}
}

// trendEstimate compares mean gravity of the older and newer halves.
func trendEstimate(memories []*mind.Memory) *estimate {
	sorted := append([]*mind.Memory(nil), memories...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	half := len(sorted) / 2
	if half == 0 {
		return nil
	}

	older := meanGravity(sorted[:half])
	newer := meanGravity(sorted[half:])
	delta := newer - older

	direction := "holding steady"
	if delta > 0.05 {
		direction = "intensifying"
	} else if delta < -0.05 {
		direction = "settling"
	}

	return &estimate{
		answer: fmt.Sprintf("Your recent memories are %s: mean gravity moved from %.2f to %.2f.",
			direction, older, newer),
		compressed: fmt.Sprintf("gravity trend %s (%.2f -> %.2f)", direction, older, newer),
		confidence: sampleConfidence(len(sorted)) * 0.9,
	}
}

func meanGravity(memories []*mind.Memory) float64 {
	var sum float64
	for _, m := range memories {
		sum += m.GravityScore
	}
	return sum / float64(len(memories))
}

// sampleConfidence saturates toward 1 as the sample grows.
func sampleConfidence(n int) float64 {
	c := float64(n) / 10
	if c > 1 {
		c = 1
	}
	return c
}

// estimateTokens approximates LLM token count for savings accounting.
func estimateTokens(text string) int {
	return len(strings.Fields(text)) * 4 / 3
}
