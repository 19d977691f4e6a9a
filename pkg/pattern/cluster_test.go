package pattern

import (
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/psyche/pkg/mind"
)

// tight returns a point near the given base, offset in the first dimension.
func tight(base mind.FeatureVector, offset float64) mind.FeatureVector {
	base[0] += offset
	return base
}

var _ = ginkgo.Describe("Cluster", func() {
	ginkgo.It("groups dense neighborhoods and flags outliers as noise", func() {
		base := mind.FeatureVector{0.5, 0.5, 0, 0, 0, 0.5, 0, 0}
		far := mind.FeatureVector{-0.9, 0, 1, 1, 1, 0, 1, 1}

		points := []mind.FeatureVector{
			tight(base, 0),
			tight(base, 0.05),
			tight(base, -0.05),
			far,
		}

		result := Cluster(points, 0.3, 3)

		Expect(result.Clusters).To(HaveLen(1))
		Expect(result.Clusters[0]).To(ConsistOf(0, 1, 2))
		Expect(result.Noise).To(ConsistOf(3))
	})

	ginkgo.It("finds nothing in sparse data", func() {
		points := []mind.FeatureVector{
			{0, 0, 0, 0, 0, 0, 0, 0},
			{1, 1, 1, 1, 1, 1, 1, 1},
		}

		result := Cluster(points, 0.3, 2)

		Expect(result.Clusters).To(BeEmpty())
		Expect(result.Noise).To(ConsistOf(0, 1))
	})

	ginkgo.It("separates two distinct dense regions", func() {
		a := mind.FeatureVector{0.8, 0.1, 0, 0, 0, 0.5, 0, 0}
		b := mind.FeatureVector{-0.8, 0.9, 1, 1, 1, 0.5, 1, 1}

		points := []mind.FeatureVector{
			tight(a, 0), tight(a, 0.05), tight(a, -0.05),
			tight(b, 0), tight(b, 0.05), tight(b, -0.05),
		}

		result := Cluster(points, 0.3, 3)

		Expect(result.Clusters).To(HaveLen(2))
		Expect(result.Noise).To(BeEmpty())
	})

	ginkgo.It("absorbs border points reachable from a core", func() {
		base := mind.FeatureVector{0.5, 0.5, 0, 0, 0, 0.5, 0, 0}
		points := []mind.FeatureVector{
			tight(base, 0),
			tight(base, 0.1),
			tight(base, -0.1),
			tight(base, 0.35), // within eps of one core point only
		}

		result := Cluster(points, 0.3, 3)

		Expect(result.Clusters).To(HaveLen(1))
		Expect(result.Clusters[0]).To(ContainElement(3))
	})
})

var _ = ginkgo.Describe("Centroid", func() {
	ginkgo.It("averages the selected points", func() {
		points := []mind.FeatureVector{
			{0.2, 0, 0, 0, 0, 0, 0, 0},
			{0.4, 0, 0, 0, 0, 0, 0, 0},
			{0.9, 0, 0, 0, 0, 0, 0, 0},
		}

		c := Centroid(points, []int{0, 1})

		Expect(c[0]).To(BeNumerically("~", 0.3, 1e-9))
	})

	ginkgo.It("returns a zero vector for no points", func() {
		Expect(Centroid(nil, nil)).To(Equal(mind.FeatureVector{}))
	})
})
