package inmemory

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *Driver
		base   time.Time
	)

	const owner = "owner-1"

	BeforeEach(func() {
		ctx = context.Background()
		driver = NewDriver()
		base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	putMemory := func(id string, at time.Time, mutate func(*mind.Memory)) *mind.Memory {
		m := &mind.Memory{
			ID:           id,
			OwnerID:      owner,
			Content:      "content for " + id,
			GravityScore: 0.5,
			MemoryType:   mind.MemoryTypeUser,
			CreatedAt:    at,
		}
		if mutate != nil {
			mutate(m)
		}
		Expect(driver.PutMemory(ctx, m)).To(Succeed())
		return m
	}

	Describe("memories", func() {
		It("round-trips a memory by id", func() {
			putMemory("m1", base, nil)

			m, err := driver.GetMemory(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Content).To(Equal("content for m1"))
		})

		It("returns a typed not-found error", func() {
			_, err := driver.GetMemory(ctx, "missing")

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Entity).To(Equal("memory"))
		})

		It("isolates owners when counting", func() {
			putMemory("m1", base, nil)
			putMemory("m2", base, func(m *mind.Memory) { m.OwnerID = "someone-else" })

			count, err := driver.CountMemories(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		Describe("filtering", func() {
			BeforeEach(func() {
				putMemory("old", base, func(m *mind.Memory) { m.Topic = "sea"; m.GravityScore = 0.9 })
				putMemory("mid", base.Add(time.Hour), func(m *mind.Memory) { m.Emotion = "awe"; m.ArcID = "arc-1" })
				putMemory("new", base.Add(2*time.Hour), func(m *mind.Memory) { m.GravityScore = 0.2 })
			})

			It("applies Since exclusively", func() {
				got, err := driver.ListMemories(ctx, owner, storage.MemoryFilter{Since: base})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(2))
			})

			It("filters by minimum gravity", func() {
				got, err := driver.ListMemories(ctx, owner, storage.MemoryFilter{MinGravity: 0.5})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(2))
			})

			It("filters by topic and emotion", func() {
				got, err := driver.ListMemories(ctx, owner, storage.MemoryFilter{Topic: "sea"})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(1))
				Expect(got[0].ID).To(Equal("old"))

				got, err = driver.ListMemories(ctx, owner, storage.MemoryFilter{Emotion: "awe"})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(1))
				Expect(got[0].ID).To(Equal("mid"))
			})

			It("filters arc membership both ways", func() {
				got, err := driver.ListMemories(ctx, owner, storage.MemoryFilter{WithoutArc: true})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(2))

				got, err = driver.ListMemories(ctx, owner, storage.MemoryFilter{ArcID: "arc-1"})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(1))
				Expect(got[0].ID).To(Equal("mid"))
			})

			It("orders oldest first without a limit, newest first with one", func() {
				got, err := driver.ListMemories(ctx, owner, storage.MemoryFilter{})
				Expect(err).NotTo(HaveOccurred())
				Expect(got[0].ID).To(Equal("old"))
				Expect(got[2].ID).To(Equal("new"))

				got, err = driver.ListMemories(ctx, owner, storage.MemoryFilter{Limit: 2})
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(HaveLen(2))
				Expect(got[0].ID).To(Equal("new"))
			})
		})

		It("stores copies, not aliases", func() {
			m := putMemory("m1", base, nil)
			m.Content = "mutated after store"

			stored, err := driver.GetMemory(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Content).To(Equal("content for m1"))
		})
	})

	Describe("arcs", func() {
		It("assigns the memory back-reference", func() {
			putMemory("m1", base, nil)
			Expect(driver.PutArc(ctx, &mind.Arc{ID: "arc-1", OwnerID: owner})).To(Succeed())

			Expect(driver.SetMemoryArc(ctx, "m1", "arc-1")).To(Succeed())

			m, err := driver.GetMemory(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.ArcID).To(Equal("arc-1"))
		})

		It("lists only arcs active since the cutoff, most recent first", func() {
			Expect(driver.PutArc(ctx, &mind.Arc{ID: "a1", OwnerID: owner, LastMemoryAt: base})).To(Succeed())
			Expect(driver.PutArc(ctx, &mind.Arc{ID: "a2", OwnerID: owner, LastMemoryAt: base.Add(time.Hour)})).To(Succeed())

			arcs, err := driver.ListArcs(ctx, owner, base.Add(30*time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(arcs).To(HaveLen(1))
			Expect(arcs[0].ID).To(Equal("a2"))

			arcs, err = driver.ListArcs(ctx, owner, time.Time{})
			Expect(err).NotTo(HaveOccurred())
			Expect(arcs).To(HaveLen(2))
			Expect(arcs[0].ID).To(Equal("a2"))
		})
	})

	Describe("the pattern cache CAS", func() {
		It("treats a missing row as expected zero", func() {
			err := driver.CompareAndSwapCache(ctx, &mind.PatternCache{
				OwnerID:            owner,
				LastProcessedCount: 5,
			}, 0)
			Expect(err).NotTo(HaveOccurred())

			cache, err := driver.GetPatternCache(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(cache.LastProcessedCount).To(Equal(5))
		})

		It("rejects a swap against a missing row with nonzero expectation", func() {
			err := driver.CompareAndSwapCache(ctx, &mind.PatternCache{OwnerID: owner}, 3)
			Expect(err).To(MatchError(storage.ErrCacheConflict))
		})

		It("rejects a stale expectation", func() {
			Expect(driver.CompareAndSwapCache(ctx, &mind.PatternCache{
				OwnerID:            owner,
				LastProcessedCount: 5,
			}, 0)).To(Succeed())

			err := driver.CompareAndSwapCache(ctx, &mind.PatternCache{
				OwnerID:            owner,
				LastProcessedCount: 10,
			}, 3)
			Expect(err).To(MatchError(storage.ErrCacheConflict))
		})

		It("advances on a matching expectation", func() {
			Expect(driver.CompareAndSwapCache(ctx, &mind.PatternCache{
				OwnerID:            owner,
				LastProcessedCount: 5,
			}, 0)).To(Succeed())

			Expect(driver.CompareAndSwapCache(ctx, &mind.PatternCache{
				OwnerID:            owner,
				LastProcessedCount: 12,
			}, 5)).To(Succeed())

			cache, err := driver.GetPatternCache(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(cache.LastProcessedCount).To(Equal(12))
		})
	})

	Describe("the snapshot chain", func() {
		It("allows exactly one child per parent", func() {
			root := &mind.Snapshot{ID: "s1", OwnerID: owner, Version: "1.0.0", CreatedAt: base}
			Expect(driver.PutSnapshot(ctx, root)).To(Succeed())

			child := &mind.Snapshot{ID: "s2", OwnerID: owner, Version: "1.0.1", PreviousSnapshotID: "s1", CreatedAt: base.Add(time.Hour)}
			Expect(driver.PutSnapshot(ctx, child)).To(Succeed())

			rival := &mind.Snapshot{ID: "s3", OwnerID: owner, Version: "1.0.1", PreviousSnapshotID: "s1", CreatedAt: base.Add(time.Hour)}
			Expect(driver.PutSnapshot(ctx, rival)).To(MatchError(storage.ErrSnapshotConflict))
		})

		It("rejects a second root for the same owner", func() {
			Expect(driver.PutSnapshot(ctx, &mind.Snapshot{ID: "s1", OwnerID: owner, CreatedAt: base})).To(Succeed())
			Expect(driver.PutSnapshot(ctx, &mind.Snapshot{ID: "s2", OwnerID: owner, CreatedAt: base})).To(MatchError(storage.ErrSnapshotConflict))
		})

		It("finds the chain head", func() {
			Expect(driver.PutSnapshot(ctx, &mind.Snapshot{ID: "s1", OwnerID: owner, CreatedAt: base})).To(Succeed())
			Expect(driver.PutSnapshot(ctx, &mind.Snapshot{ID: "s2", OwnerID: owner, PreviousSnapshotID: "s1", CreatedAt: base.Add(time.Hour)})).To(Succeed())

			head, err := driver.CurrentSnapshot(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(head.ID).To(Equal("s2"))
		})

		It("reports a missing chain as not found", func() {
			_, err := driver.CurrentSnapshot(ctx, owner)

			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("lists the chain oldest first", func() {
			Expect(driver.PutSnapshot(ctx, &mind.Snapshot{ID: "s1", OwnerID: owner, CreatedAt: base})).To(Succeed())
			Expect(driver.PutSnapshot(ctx, &mind.Snapshot{ID: "s2", OwnerID: owner, PreviousSnapshotID: "s1", CreatedAt: base.Add(time.Hour)})).To(Succeed())

			chain, err := driver.ListSnapshots(ctx, owner)
			Expect(err).NotTo(HaveOccurred())
			Expect(chain).To(HaveLen(2))
			Expect(chain[0].ID).To(Equal("s1"))
		})
	})
})
