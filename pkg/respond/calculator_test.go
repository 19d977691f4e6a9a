package respond

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/psyche/pkg/mind"
)

func gravityMemories(gravities ...float64) []*mind.Memory {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	memories := make([]*mind.Memory, len(gravities))
	for i, g := range gravities {
		memories[i] = &mind.Memory{
			ID:           fmt.Sprintf("m%d", i),
			GravityScore: g,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}
	}
	return memories
}

var _ = Describe("calculate", func() {
	It("rejects samples below the memory floor", func() {
		ac := &answerContext{
			query:    "what is my average gravity?",
			memories: gravityMemories(0.5, 0.5),
		}
		Expect(calculate(ac)).To(BeNil())
	})

	It("ignores queries without an estimator intent", func() {
		ac := &answerContext{
			query:    "tell me about my week",
			memories: gravityMemories(0.5, 0.5, 0.5, 0.5),
		}
		Expect(calculate(ac)).To(BeNil())
	})

	Describe("gravity estimates", func() {
		It("answers with the sample mean and size-scaled confidence", func() {
			ac := &answerContext{
				query:    "what is my average gravity?",
				memories: gravityMemories(0.2, 0.4, 0.6, 0.8),
			}

			est := calculate(ac)
			Expect(est).NotTo(BeNil())
			Expect(est.answer).To(ContainSubstring("average gravity is 0.50"))
			Expect(est.confidence).To(BeNumerically("~", 0.4, 1e-9))
		})

		It("saturates confidence at a full sample", func() {
			est := gravityEstimate(gravityMemories(0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5))
			Expect(est.confidence).To(BeNumerically("==", 1))
		})
	})

	Describe("emotion estimates", func() {
		It("names the dominant emotion with its share", func() {
			memories := gravityMemories(0.5, 0.5, 0.5, 0.5)
			memories[0].Emotion = "awe"
			memories[1].Emotion = "awe"
			memories[2].Emotion = "awe"
			memories[3].Emotion = "grief"

			est := emotionEstimate(memories)
			Expect(est).NotTo(BeNil())
			Expect(est.answer).To(ContainSubstring("Mostly awe"))
			Expect(est.compressed).To(ContainSubstring("75%"))
		})

		It("rejects a sample with no labeled emotions", func() {
			Expect(emotionEstimate(gravityMemories(0.5, 0.5, 0.5))).To(BeNil())
		})
	})

	Describe("trend estimates", func() {
		It("reads rising gravity as intensifying", func() {
			est := trendEstimate(gravityMemories(0.2, 0.2, 0.8, 0.8))
			Expect(est).NotTo(BeNil())
			Expect(est.answer).To(ContainSubstring("intensifying"))
		})

		It("reads falling gravity as settling", func() {
			est := trendEstimate(gravityMemories(0.8, 0.8, 0.2, 0.2))
			Expect(est.answer).To(ContainSubstring("settling"))
		})

		It("reads a flat series as holding steady", func() {
			est := trendEstimate(gravityMemories(0.5, 0.5, 0.52, 0.5))
			Expect(est.answer).To(ContainSubstring("holding steady"))
		})
	})
})

var _ = Describe("estimateTokens", func() {
	It("scales with word count", func() {
		Expect(estimateTokens("one two three")).To(Equal(4))
		Expect(estimateTokens("")).To(Equal(0))
	})
})
