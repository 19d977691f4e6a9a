package pattern

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage/inmemory"
)

var _ = ginkgo.Describe("Engine", func() {
	var (
		ctx    context.Context
		store  *inmemory.Driver
		engine *Engine
		clock  time.Time
	)

	const owner = "owner-1"

	addMemories := func(n int, emotion string, gravity float64) {
		for i := 0; i < n; i++ {
			clock = clock.Add(time.Second)
			m := &mind.Memory{
				ID:           fmt.Sprintf("m-%s-%d-%d", emotion, clock.Unix(), i),
				OwnerID:      owner,
				Content:      "quiet reflection by the sea",
				GravityScore: gravity,
				Emotion:      emotion,
				MemoryType:   mind.MemoryTypeUser,
				CreatedAt:    clock,
			}
			Expect(store.PutMemory(ctx, m)).To(Succeed())
		}
	}

	detect := func(force bool) *Report {
		clock = clock.Add(time.Second)
		report, err := engine.Detect(ctx, owner, force)
		Expect(err).NotTo(HaveOccurred())
		return report
	}

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		engine = NewEngine(store, zap.NewNop())
		engine.now = func() time.Time { return clock }
	})

	ginkgo.Describe("clustering", func() {
		ginkgo.It("creates a pattern from a dense emotional neighborhood", func() {
			addMemories(5, "awe", 0.8)

			report := detect(false)

			Expect(report.Cached).To(BeFalse())
			Expect(report.Patterns).To(HaveLen(1))
			Expect(report.Patterns[0].Frequency).To(Equal(5))
			Expect(report.Patterns[0].Status).To(Equal(mind.PatternActive))
			Expect(report.Patterns[0].MemoryIDs).To(HaveLen(5))
			Expect(report.Narrative).NotTo(BeEmpty())
		})

		ginkgo.It("reports a sparse pair as an emerging signal, not a pattern", func() {
			addMemories(2, "awe", 0.8)
			addMemories(2, "grief", 0.3)
			addMemories(1, "", 0.1)

			report := detect(false)

			Expect(report.Patterns).To(BeEmpty())
			Expect(report.Emerging).NotTo(BeEmpty())
			for _, signal := range report.Emerging {
				Expect(signal.Confidence).To(BeNumerically("<", 1))
			}
		})
	})

	ginkgo.Describe("trigger gating", func() {
		ginkgo.It("serves the cached report between milestones, byte for byte", func() {
			addMemories(5, "awe", 0.8)
			detect(false)

			first := detect(false)
			second := detect(false)

			Expect(first.Cached).To(BeTrue())
			Expect(second.Cached).To(BeTrue())

			firstRaw, err := json.Marshal(first)
			Expect(err).NotTo(HaveOccurred())
			secondRaw, err := json.Marshal(second)
			Expect(err).NotTo(HaveOccurred())
			Expect(firstRaw).To(Equal(secondRaw))
		})

		ginkgo.It("recomputes when the count crosses a milestone", func() {
			addMemories(49, "awe", 0.8)
			report := detect(false)
			Expect(report.Cached).To(BeFalse())

			// One more memory crosses the 50 milestone.
			addMemories(1, "awe", 0.8)
			report = detect(false)

			Expect(report.Cached).To(BeFalse())
		})

		ginkgo.It("stays cached when no milestone is crossed", func() {
			addMemories(35, "awe", 0.8)
			detect(false)

			addMemories(3, "awe", 0.8)
			report := detect(false)

			Expect(report.Cached).To(BeTrue())
		})

		ginkgo.It("recomputes when forced", func() {
			addMemories(5, "awe", 0.8)
			detect(false)

			report := detect(true)

			Expect(report.Cached).To(BeFalse())
		})
	})

	ginkgo.Describe("decay and dormancy", func() {
		ginkgo.It("decays unreinforced patterns into dormancy without deleting them", func() {
			addMemories(5, "awe", 0.8)
			detect(false)

			patterns, err := store.ListPatterns(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(patterns).To(HaveLen(1))
			patterns[0].Strength = DormancyThreshold + 0.05
			Expect(store.UpdatePattern(ctx, patterns[0])).To(Succeed())

			// Fifteen new grief memories decay the awe pattern past the
			// threshold while founding their own cluster.
			addMemories(15, "grief", 0.3)
			report := detect(false)

			patterns, err = store.ListPatterns(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(patterns).To(HaveLen(2))

			var awe *mind.Pattern
			for _, p := range patterns {
				if p.Centroid[mind.FeatureValence] > 0 {
					awe = p
				}
			}
			Expect(awe).NotTo(BeNil())
			Expect(awe.Status).To(Equal(mind.PatternDormant))

			// Dormant patterns drop out of the ranked report.
			Expect(report.Patterns).To(HaveLen(1))
			Expect(report.Dynamics.TotalDormant).To(Equal(1))
		})
	})

	ginkgo.Describe("reinforcement", func() {
		ginkgo.It("strengthens a matching pattern instead of duplicating it", func() {
			addMemories(5, "awe", 0.8)
			detect(false)

			patterns, err := store.ListPatterns(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			before := patterns[0].Strength

			// The same neighborhood again, crossing the 10 milestone.
			addMemories(5, "awe", 0.8)
			report := detect(false)

			Expect(report.Patterns).To(HaveLen(1))
			Expect(report.Patterns[0].Frequency).To(Equal(10))
			Expect(report.Patterns[0].Strength).To(BeNumerically(">", before-DecayPerEntry*5))
		})
	})
})

var _ = ginkgo.Describe("milestoneCrossed", func() {
	ginkgo.It("fires when a milestone lies inside the window", func() {
		Expect(milestoneCrossed(49, 50)).To(BeTrue())
		Expect(milestoneCrossed(0, 5)).To(BeTrue())
		Expect(milestoneCrossed(4, 12)).To(BeTrue())
	})

	ginkgo.It("stays quiet between milestones", func() {
		Expect(milestoneCrossed(50, 74)).To(BeFalse())
		Expect(milestoneCrossed(35, 49)).To(BeFalse())
	})

	ginkgo.It("uses the extended interval past the fixed list", func() {
		Expect(milestoneCrossed(1000, 1400)).To(BeFalse())
		Expect(milestoneCrossed(1400, 1500)).To(BeTrue())
	})
})
