package fusion

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage/inmemory"
)

var _ = Describe("Engine", func() {
	var (
		ctx    context.Context
		store  *inmemory.Driver
		engine *Engine
		now    time.Time
	)

	const owner = "owner-1"

	newMemory := func(id string, gravity float64, emotion string, embedding []float32, age time.Duration) *mind.Memory {
		m := &mind.Memory{
			ID:           id,
			OwnerID:      owner,
			Content:      "standing under the aurora in total silence",
			GravityScore: gravity,
			Emotion:      emotion,
			Embedding:    embedding,
			MemoryType:   mind.MemoryTypeUser,
			CreatedAt:    now.Add(-age),
		}
		Expect(store.PutMemory(ctx, m)).To(Succeed())
		return m
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		now = time.Now()
		engine = NewEngine(store, zap.NewNop())
		engine.now = func() time.Time { return now }
	})

	Describe("rule 1: singularity", func() {
		It("creates an arc for a high-gravity emotional memory", func() {
			m := newMemory("m1", 0.95, "awe", nil, 0)

			decision, err := engine.Fuse(ctx, m)

			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Kind).To(Equal(DecisionCreate))
			Expect(decision.Rule).To(Equal("singularity"))
			Expect(m.ArcID).To(Equal(decision.ArcID))

			arc, err := store.ListArcs(ctx, owner, time.Time{})
			Expect(err).NotTo(HaveOccurred())
			Expect(arc).To(HaveLen(1))
			Expect(arc[0].GravityCenter).To(BeNumerically("~", 0.95, 1e-9))
			Expect(arc[0].EmotionalTone).To(Equal("awe"))
		})

		It("does not fire for neutral memories regardless of gravity", func() {
			m := newMemory("m1", 0.95, mind.EmotionNeutral, nil, 0)

			decision, err := engine.Fuse(ctx, m)

			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Rule).NotTo(Equal("singularity"))
		})
	})

	Describe("rule 2: resonance", func() {
		It("merges an emotional twin into the freshly created arc", func() {
			embedding := []float32{0.2, 0.8, 0.4}

			first := newMemory("m1", 0.95, "awe", embedding, time.Hour)
			decision, err := engine.Fuse(ctx, first)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Kind).To(Equal(DecisionCreate))

			second := newMemory("m2", 0.93, "awe", embedding, 0)
			decision, err = engine.Fuse(ctx, second)

			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Kind).To(Equal(DecisionMerge))
			Expect(decision.Rule).To(Equal("resonance"))
			Expect(decision.Score).To(BeNumerically(">", MergeThreshold))

			arcs, err := store.ListArcs(ctx, owner, time.Time{})
			Expect(err).NotTo(HaveOccurred())
			Expect(arcs).To(HaveLen(1))
			Expect(arcs[0].MemoryCount).To(Equal(2))
			Expect(arcs[0].GravityCenter).To(BeNumerically("~", (0.95+0.93)/2, 1e-9))
		})

		It("ignores arcs inactive beyond the resonance window", func() {
			stale := &mind.Arc{
				ID:            "arc-old",
				OwnerID:       owner,
				EmotionalTone: "awe",
				GravityCenter: 0.9,
				MemoryCount:   1,
				LastMemoryAt:  now.Add(-10 * 24 * time.Hour),
			}
			Expect(store.PutArc(ctx, stale)).To(Succeed())

			m := newMemory("m1", 0.85, "awe", nil, 0)
			decision, err := engine.Fuse(ctx, m)

			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Kind).NotTo(Equal(DecisionMerge))
		})
	})

	Describe("rule 3: thematic density", func() {
		It("seeds an arc from loosely related high-gravity memories", func() {
			for _, id := range []string{"m1", "m2", "m3"} {
				newMemory(id, 0.8, "longing", nil, 24*time.Hour)
			}
			m := newMemory("m4", 0.75, "longing", nil, 0)

			decision, err := engine.Fuse(ctx, m)

			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Kind).To(Equal(DecisionCreate))
			Expect(decision.Rule).To(Equal("density"))

			arcs, err := store.ListArcs(ctx, owner, time.Time{})
			Expect(err).NotTo(HaveOccurred())
			Expect(arcs).To(HaveLen(1))
			Expect(arcs[0].MemoryCount).To(Equal(4))
		})
	})

	Describe("no fusion", func() {
		It("leaves an unremarkable memory unclustered", func() {
			m := &mind.Memory{
				ID:           "m1",
				OwnerID:      owner,
				Content:      "bought groceries",
				GravityScore: 0.2,
				Emotion:      mind.EmotionNeutral,
				CreatedAt:    now,
			}
			Expect(store.PutMemory(ctx, m)).To(Succeed())

			decision, err := engine.Fuse(ctx, m)

			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Kind).To(Equal(DecisionNoFusion))
			Expect(m.ArcID).To(BeEmpty())
		})
	})
})
