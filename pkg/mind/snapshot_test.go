package mind

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ConsciousnessVector", func() {
	It("keeps a stable dimension order", func() {
		v := ConsciousnessVector{}
		dims := v.Dimensions()

		names := make([]string, len(dims))
		for i, d := range dims {
			names[i] = d.Name
		}
		Expect(names).To(Equal([]string{
			"emotional_depth",
			"memory_density",
			"pattern_richness",
			"identity_coherence",
			"experiential_range",
			"adaptive_resilience",
		}))
	})

	Describe("DriftFrom", func() {
		It("is zero against itself", func() {
			v := ConsciousnessVector{EmotionalDepth: 0.4, MemoryDensity: 0.2}
			Expect(v.DriftFrom(v)).To(BeZero())
		})

		It("is the L2 distance across dimensions", func() {
			a := ConsciousnessVector{EmotionalDepth: 0.5, IdentityCoherence: 0.5}
			b := ConsciousnessVector{EmotionalDepth: 0.2, IdentityCoherence: 0.9}
			Expect(a.DriftFrom(b)).To(BeNumerically("~", math.Sqrt(0.3*0.3+0.4*0.4), 1e-9))
		})
	})
})

var _ = Describe("ComputeFingerprint", func() {
	var (
		vector ConsciousnessVector
		health HealthMetrics
	)

	BeforeEach(func() {
		vector = ConsciousnessVector{EmotionalDepth: 0.4, PatternRichness: 0.3}
		health = HealthMetrics{Score: 0.9, Drift: 0.1, NewMemories: 5}
	})

	It("is deterministic", func() {
		Expect(ComputeFingerprint(vector, health, "prev")).
			To(Equal(ComputeFingerprint(vector, health, "prev")))
	})

	It("changes when the vector changes", func() {
		other := vector
		other.EmotionalDepth = 0.5
		Expect(ComputeFingerprint(other, health, "prev")).
			NotTo(Equal(ComputeFingerprint(vector, health, "prev")))
	})

	It("chains on the previous fingerprint", func() {
		Expect(ComputeFingerprint(vector, health, "a")).
			NotTo(Equal(ComputeFingerprint(vector, health, "b")))
	})
})
