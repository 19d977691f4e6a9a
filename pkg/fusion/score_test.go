package fusion

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/psyche/pkg/mind"
)

var _ = Describe("Score", func() {
	var (
		now time.Time
		arc *mind.Arc
	)

	BeforeEach(func() {
		now = time.Now()
		arc = &mind.Arc{
			ID:            "arc-1",
			EmotionalTone: "awe",
			GravityCenter: 0.95,
			LastMemoryAt:  now,
		}
	})

	It("gives full marks to an identical emotional twin", func() {
		embedding := []float32{0.3, 0.7, 0.1}
		m := &mind.Memory{GravityScore: 0.95, Emotion: "awe", Embedding: embedding}
		member := &mind.Memory{GravityScore: 0.95, Emotion: "awe", Embedding: embedding}

		b := Score(m, arc, []*mind.Memory{member}, now)

		Expect(b.Semantic).To(BeNumerically("~", 1, 1e-6))
		Expect(b.Emotional).To(Equal(1.0))
		Expect(b.Gravity).To(BeNumerically("~", 1, 1e-9))
		Expect(b.Recency).To(Equal(1.0))
		Expect(b.Total).To(BeNumerically("~", 0.9, 1e-6))
	})

	It("halves the emotional factor against a complex arc", func() {
		arc.EmotionalTone = mind.ToneComplex
		m := &mind.Memory{GravityScore: 0.9, Emotion: "grief"}

		b := Score(m, arc, nil, now)

		Expect(b.Emotional).To(Equal(0.5))
	})

	It("zeroes the emotional factor on a tone mismatch", func() {
		m := &mind.Memory{GravityScore: 0.9, Emotion: "grief"}

		b := Score(m, arc, nil, now)

		Expect(b.Emotional).To(BeZero())
	})

	It("decays recency linearly toward the horizon", func() {
		arc.LastMemoryAt = now.Add(-15 * 24 * time.Hour)
		m := &mind.Memory{GravityScore: 0.9, Emotion: "awe"}

		b := Score(m, arc, nil, now)

		Expect(b.Recency).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("zeroes recency past the horizon", func() {
		arc.LastMemoryAt = now.Add(-45 * 24 * time.Hour)
		m := &mind.Memory{GravityScore: 0.9, Emotion: "awe"}

		b := Score(m, arc, nil, now)

		Expect(b.Recency).To(BeZero())
	})

	It("never decreases as semantic similarity rises", func() {
		member := &mind.Memory{GravityScore: 0.95, Emotion: "awe", Embedding: []float32{1, 0, 0}}

		prev := -1.0
		for _, x := range []float32{0, 0.25, 0.5, 0.75, 1} {
			y := float32(math.Sqrt(float64(1 - x*x)))
			m := &mind.Memory{
				GravityScore: 0.95,
				Emotion:      "awe",
				Embedding:    []float32{x, y, 0},
			}

			b := Score(m, arc, []*mind.Memory{member}, now)

			Expect(b.Total).To(BeNumerically(">=", prev))
			prev = b.Total
		}
	})

	It("never decreases as the gravity distance shrinks", func() {
		embedding := []float32{0.3, 0.7, 0.1}
		member := &mind.Memory{GravityScore: 0.95, Emotion: "awe", Embedding: embedding}

		prev := -1.0
		for _, gravity := range []float64{0.15, 0.35, 0.55, 0.75, 0.95} {
			m := &mind.Memory{
				GravityScore: gravity,
				Emotion:      "awe",
				Embedding:    embedding,
			}

			b := Score(m, arc, []*mind.Memory{member}, now)

			Expect(b.Total).To(BeNumerically(">=", prev))
			prev = b.Total
		}
	})

	It("falls back to token overlap when embeddings are missing", func() {
		m := &mind.Memory{Content: "watching the aurora over the fjord", GravityScore: 0.9, Emotion: "awe"}
		member := &mind.Memory{Content: "watching the aurora over the fjord", GravityScore: 0.9, Emotion: "awe"}

		b := Score(m, arc, []*mind.Memory{member}, now)

		Expect(b.Semantic).To(BeNumerically("~", 1, 1e-9))
	})
})
