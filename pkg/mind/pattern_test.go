package mind

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FeatureVector", func() {
	Describe("Distance", func() {
		It("is zero for identical vectors", func() {
			v := FeatureVector{0.5, 0.2, 0, 1, 0, 0.3, 0.1, 0.4}
			Expect(v.Distance(v)).To(BeZero())
		})

		It("matches the euclidean norm", func() {
			a := FeatureVector{}
			b := FeatureVector{1, 1, 1, 1, 1, 1, 1, 1}
			Expect(a.Distance(b)).To(BeNumerically("~", math.Sqrt(8), 1e-9))
		})
	})

	Describe("Similarity", func() {
		It("is 1 for identical vectors", func() {
			v := FeatureVector{0.5, 0.2, 0, 1, 0, 0.3, 0.1, 0.4}
			Expect(v.Similarity(v)).To(BeNumerically("~", 1, 1e-9))
		})

		It("is 0 for maximally distant vectors in the unit hypercube", func() {
			a := FeatureVector{}
			b := FeatureVector{1, 1, 1, 1, 1, 1, 1, 1}
			Expect(a.Similarity(b)).To(BeNumerically("~", 0, 1e-9))
		})
	})

	Describe("Correlation", func() {
		It("is 1 for perfectly aligned vectors", func() {
			a := FeatureVector{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
			b := FeatureVector{0.2, 0.4, 0.6, 0.8, 1.0, 1.2, 1.4, 1.6}
			Expect(a.Correlation(b)).To(BeNumerically("~", 1, 1e-9))
		})

		It("is -1 for opposed vectors", func() {
			a := FeatureVector{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
			b := FeatureVector{0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
			Expect(a.Correlation(b)).To(BeNumerically("~", -1, 1e-9))
		})

		It("is 0 when a vector has no variance", func() {
			a := FeatureVector{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
			b := FeatureVector{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
			Expect(a.Correlation(b)).To(BeZero())
		})
	})
})

var _ = Describe("Pattern", func() {
	Describe("RecordStrength", func() {
		It("computes velocity as the latest difference", func() {
			p := &Pattern{}
			p.RecordStrength(0.5)
			p.RecordStrength(0.7)

			Expect(p.Velocity).To(BeNumerically("~", 0.2, 1e-9))
		})

		It("computes acceleration as the difference of differences", func() {
			p := &Pattern{}
			p.RecordStrength(0.5)
			p.RecordStrength(0.6)
			p.RecordStrength(0.9)

			Expect(p.Velocity).To(BeNumerically("~", 0.3, 1e-9))
			Expect(p.Acceleration).To(BeNumerically("~", 0.2, 1e-9))
		})

		It("bounds the retained history", func() {
			p := &Pattern{}
			for i := 0; i < StrengthHistoryLen+5; i++ {
				p.RecordStrength(float64(i) / 20)
			}

			Expect(p.StrengthHistory).To(HaveLen(StrengthHistoryLen))
		})
	})

	Describe("Rank", func() {
		It("scales strength by frequency and velocity", func() {
			p := &Pattern{Strength: 0.5, Frequency: 4, Velocity: 0.1}
			Expect(p.Rank()).To(BeNumerically("~", 0.5*4*1.1, 1e-9))
		})
	})
})
