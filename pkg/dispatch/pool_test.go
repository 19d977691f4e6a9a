package dispatch

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/pattern"
	"github.com/papercomputeco/psyche/pkg/storage/inmemory"
)

var _ = Describe("Pool", func() {
	It("drops jobs when the queue is full", func() {
		// No workers draining, capacity one.
		p := &Pool{
			config: &PoolConfig{},
			queue:  make(chan Job, 1),
			logger: zap.NewNop(),
		}

		Expect(p.Enqueue(Job{Kind: JobReflection, OwnerID: "o"})).To(BeTrue())
		Expect(p.Enqueue(Job{Kind: JobReflection, OwnerID: "o"})).To(BeFalse())
	})

	It("drains queued pattern analysis on close", func() {
		ctx := context.Background()
		store := inmemory.NewDriver()
		m := &mind.Memory{ID: "m1", OwnerID: "o", Content: "a long walk", Emotion: "awe", GravityScore: 0.8}
		Expect(store.PutMemory(ctx, m)).To(Succeed())

		engine := pattern.NewEngine(store, zap.NewNop())
		p, err := NewPool(&PoolConfig{
			Patterns:   engine,
			NumWorkers: 2,
			Logger:     zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Enqueue(Job{Kind: JobPatternAnalysis, OwnerID: "o", MemoryID: "m1"})).To(BeTrue())
		p.Close()

		// The job ran: the detection cache row exists.
		cache, err := store.GetPatternCache(ctx, "o")
		Expect(err).NotTo(HaveOccurred())
		Expect(cache.LastProcessedCount).To(Equal(1))
	})

	It("processes reflection flags without a pattern engine", func() {
		p, err := NewPool(&PoolConfig{Logger: zap.NewNop()})
		Expect(err).NotTo(HaveOccurred())

		Expect(p.Enqueue(Job{Kind: JobReflection, OwnerID: "o", MemoryID: "m1"})).To(BeTrue())
		p.Close()
	})
})
