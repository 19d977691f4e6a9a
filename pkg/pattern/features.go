package pattern

import (
	"strings"

	"github.com/papercomputeco/psyche/pkg/mind"
)

// emotionValence maps emotion labels onto a signed valence axis. Unknown
// labels land at 0, the same as neutral.
var emotionValence = map[string]float64{
	"awe":         0.9,
	"joy":         0.85,
	"love":        0.8,
	"gratitude":   0.75,
	"pride":       0.6,
	"hope":        0.55,
	"curiosity":   0.5,
	"calm":        0.3,
	"surprise":    0.2,
	"confusion":   -0.2,
	"anxiety":     -0.5,
	"frustration": -0.55,
	"anger":       -0.6,
	"shame":       -0.65,
	"fear":        -0.7,
	"grief":       -0.8,
	"despair":     -0.9,
}

// urgencyMarkers are content cues that raise the temporal urgency feature.
var urgencyMarkers = []string{
	"now", "urgent", "immediately", "deadline", "today", "asap", "must",
}

// actionMarkers are content cues that raise the action potential feature.
var actionMarkers = []string{
	"will", "plan", "going to", "decide", "decided", "start", "commit",
}

// identityMarkers are content cues for self-referential memories that were
// not explicitly flagged as identity anchors.
var identityMarkers = []string{
	"i am", "i'm", "who i am", "myself", "my identity",
}

// contentLoadScale normalizes content length into the cognitive load feature.
const contentLoadScale = 600

// Features positions a memory in the behavioral feature space. Valence is
// signed in [-1,1]; every other dimension is in [0,1].
func Features(m *mind.Memory) mind.FeatureVector {
	var f mind.FeatureVector
	content := strings.ToLower(m.Content)

	f[mind.FeatureValence] = emotionValence[m.Emotion]

	load := float64(len(m.Content)) / contentLoadScale
	if m.Contradiction {
		load += 0.3
	}
	f[mind.FeatureCognitiveLoad] = clamp01(load)

	f[mind.FeatureTemporalUrgency] = markerScore(content, urgencyMarkers)

	switch {
	case m.IdentityAnchor:
		f[mind.FeatureIdentityRelevance] = 1
	case markerScore(content, identityMarkers) > 0:
		f[mind.FeatureIdentityRelevance] = 0.4
	}

	if m.Contradiction {
		f[mind.FeatureContradiction] = 1
	}

	// Arc membership means the memory already reinforces a narrative; its
	// gravity carries full weight there, half weight when unclustered.
	if m.ArcID != "" {
		f[mind.FeatureReinforcement] = m.GravityScore
	} else {
		f[mind.FeatureReinforcement] = m.GravityScore * 0.5
	}

	f[mind.FeatureRelationshipImpact] = clamp01(m.RelationshipWeight)

	f[mind.FeatureActionPotential] = markerScore(content, actionMarkers)

	return f
}

// markerScore counts distinct marker hits, saturating at three.
func markerScore(content string, markers []string) float64 {
	hits := 0
	for _, marker := range markers {
		if strings.Contains(content, marker) {
			hits++
		}
	}
	if hits > 3 {
		hits = 3
	}
	return float64(hits) / 3
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
