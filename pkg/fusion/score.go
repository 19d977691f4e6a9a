package fusion

import (
	"time"

	"github.com/papercomputeco/psyche/pkg/mind"
)

// Fusion score weights. They sum to 1.
const (
	weightSemantic     = 0.35
	weightEmotional    = 0.25
	weightGravity      = 0.20
	weightRecency      = 0.10
	weightRelationship = 0.10
)

// recencyHorizon is the window over which temporal recency decays linearly
// to zero.
const recencyHorizon = 30 * 24 * time.Hour

// Breakdown holds the individual factors of a fusion score.
type Breakdown struct {
	Semantic     float64 `json:"semantic"`
	Emotional    float64 `json:"emotional"`
	Gravity      float64 `json:"gravity"`
	Recency      float64 `json:"recency"`
	Relationship float64 `json:"relationship"`
	Total        float64 `json:"total"`
}

// Score computes the weighted fusion score of a memory against an arc.
// members are the arc's current member memories (a recent sample is enough);
// they drive the semantic factor.
func Score(m *mind.Memory, arc *mind.Arc, members []*mind.Memory, now time.Time) Breakdown {
	b := Breakdown{
		Semantic:     semanticSimilarity(m, members),
		Emotional:    emotionalMatch(m, arc),
		Gravity:      1 - abs(m.GravityScore-arc.GravityCenter),
		Recency:      recency(arc.LastMemoryAt, now),
		Relationship: m.RelationshipWeight,
	}

	b.Total = weightSemantic*b.Semantic +
		weightEmotional*b.Emotional +
		weightGravity*b.Gravity +
		weightRecency*b.Recency +
		weightRelationship*b.Relationship

	return b
}

// semanticSimilarity is the mean pairwise similarity between the memory and
// the arc's members. Embedding cosine is used when both sides carry vectors;
// the bag-of-terms similarity over content, topic, and summary is the
// fallback for vectorless records.
func semanticSimilarity(m *mind.Memory, members []*mind.Memory) float64 {
	if len(members) == 0 {
		return 0
	}

	var sum float64
	for _, member := range members {
		sum += MemorySimilarity(m, member)
	}
	return sum / float64(len(members))
}

// MemorySimilarity compares two memories: embedding cosine when both have
// vectors, token overlap otherwise.
func MemorySimilarity(a, b *mind.Memory) float64 {
	if a.HasEmbedding() && b.HasEmbedding() {
		return mind.CosineSimilarity(a.Embedding, b.Embedding)
	}
	return mind.TextSimilarity(memoryTerms(a), memoryTerms(b))
}

func memoryTerms(m *mind.Memory) string {
	return m.Content + " " + m.Topic + " " + m.Summary
}

// emotionalMatch scores the emotional affinity between a memory and an arc:
// full credit for a shared tone, half credit when the arc has already gone
// complex and the memory carries any emotion at all.
func emotionalMatch(m *mind.Memory, arc *mind.Arc) float64 {
	if m.Emotion == "" || arc.EmotionalTone == "" {
		return 0
	}
	if m.Emotion == arc.EmotionalTone {
		return 1
	}
	if arc.EmotionalTone == mind.ToneComplex {
		return 0.5
	}
	return 0
}

// recency decays linearly from 1 at lastActivity to 0 at the horizon.
func recency(lastActivity, now time.Time) float64 {
	age := now.Sub(lastActivity)
	if age <= 0 {
		return 1
	}
	if age >= recencyHorizon {
		return 0
	}
	return 1 - float64(age)/float64(recencyHorizon)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
