package mind

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Arc", func() {
	var arc *Arc

	BeforeEach(func() {
		arc = &Arc{
			ID:            "arc-1",
			OwnerID:       "owner-1",
			EmotionalTone: "awe",
			GravityCenter: 0.95,
			MemoryCount:   1,
			Growth: GrowthVector{
				Velocity:  0.95,
				Direction: DirectionStabilizing,
			},
			LastMemoryAt: time.Now().Add(-time.Hour),
		}
	})

	Describe("Absorb", func() {
		It("recomputes the gravity center as a count-weighted mean", func() {
			arc.Absorb(&Memory{GravityScore: 0.93, Emotion: "awe", CreatedAt: time.Now()})

			Expect(arc.MemoryCount).To(Equal(2))
			Expect(arc.GravityCenter).To(BeNumerically("~", (0.95+0.93)/2, 1e-9))
		})

		It("keeps a unanimous emotional tone", func() {
			arc.Absorb(&Memory{GravityScore: 0.9, Emotion: "awe", CreatedAt: time.Now()})

			Expect(arc.EmotionalTone).To(Equal("awe"))
		})

		It("downgrades the tone to complex on conflict", func() {
			arc.Absorb(&Memory{GravityScore: 0.9, Emotion: "grief", CreatedAt: time.Now()})

			Expect(arc.EmotionalTone).To(Equal(ToneComplex))
		})

		It("stays complex once downgraded", func() {
			arc.Absorb(&Memory{GravityScore: 0.9, Emotion: "grief", CreatedAt: time.Now()})
			arc.Absorb(&Memory{GravityScore: 0.9, Emotion: "awe", CreatedAt: time.Now()})

			Expect(arc.EmotionalTone).To(Equal(ToneComplex))
		})

		It("updates growth velocity as the mean of old velocity and new gravity", func() {
			arc.Absorb(&Memory{GravityScore: 0.75, Emotion: "awe", CreatedAt: time.Now()})

			Expect(arc.Growth.Velocity).To(BeNumerically("~", (0.95+0.75)/2, 1e-9))
			Expect(arc.Growth.Direction).To(Equal(DirectionStabilizing))
		})

		It("marks the direction accelerating when velocity increases", func() {
			arc.Growth.Velocity = 0.5
			arc.Absorb(&Memory{GravityScore: 0.9, Emotion: "awe", CreatedAt: time.Now()})

			Expect(arc.Growth.Direction).To(Equal(DirectionAccelerating))
		})

		It("advances the last activity timestamp", func() {
			now := time.Now()
			arc.Absorb(&Memory{GravityScore: 0.9, Emotion: "awe", CreatedAt: now})

			Expect(arc.LastMemoryAt).To(Equal(now))
		})
	})
})
