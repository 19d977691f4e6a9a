package dispatch

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/eventstream"
	"github.com/papercomputeco/psyche/pkg/fusion"
	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/psyche/pkg/utils/test"
)

// brokenStore fails every memory write.
type brokenStore struct {
	*inmemory.Driver
}

func (b *brokenStore) PutMemory(context.Context, *mind.Memory) error {
	return errors.New("disk on fire")
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx        context.Context
		store      *inmemory.Driver
		embedder   *testutils.MockEmbedder
		vectors    *testutils.MockVectorDriver
		events     *testutils.MockPublisher
		pool       *Pool
		dispatcher *Dispatcher
	)

	const owner = "owner-1"

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		embedder = testutils.NewMockEmbedder()
		vectors = testutils.NewMockVectorDriver()
		events = testutils.NewMockPublisher()

		var err error
		pool, err = NewPool(&PoolConfig{Logger: zap.NewNop()})
		Expect(err).NotTo(HaveOccurred())

		dispatcher = NewDispatcher(&Config{
			Store:    store,
			Embedder: embedder,
			Vectors:  vectors,
			Fusion:   fusion.NewEngine(store, zap.NewNop()),
			Pool:     pool,
			Events:   events,
			Logger:   zap.NewNop(),
		})
	})

	AfterEach(func() {
		pool.Close()
	})

	Describe("validation", func() {
		It("rejects a missing owner id", func() {
			_, err := dispatcher.Dispatch(ctx, Input{Content: "hello", Gravity: 0.5})

			var envelope *mind.Envelope
			Expect(errors.As(err, &envelope)).To(BeTrue())
			Expect(envelope.Kind).To(Equal(mind.ErrKindValidation))
		})

		It("rejects blank content", func() {
			_, err := dispatcher.Dispatch(ctx, Input{OwnerID: owner, Content: "   ", Gravity: 0.5})

			var envelope *mind.Envelope
			Expect(errors.As(err, &envelope)).To(BeTrue())
			Expect(envelope.Kind).To(Equal(mind.ErrKindValidation))
		})

		It("rejects gravity outside the unit interval", func() {
			_, err := dispatcher.Dispatch(ctx, Input{OwnerID: owner, Content: "hello", Gravity: 1.2})

			var envelope *mind.Envelope
			Expect(errors.As(err, &envelope)).To(BeTrue())
			Expect(envelope.Kind).To(Equal(mind.ErrKindValidation))
		})
	})

	Describe("gravity classification", func() {
		It("halves gravity for system memories", func() {
			result, err := dispatcher.Dispatch(ctx, Input{
				OwnerID: owner,
				Content: "conversation summarized",
				Gravity: 0.8,
				System:  true,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Memory.MemoryType).To(Equal(mind.MemoryTypeSystem))
			Expect(result.Memory.GravityScore).To(BeNumerically("~", 0.4, 1e-9))
			// Halved below the fusion bar: no synchronous fusion.
			Expect(result.Cascades).NotTo(ContainElement("fusion"))
		})

		It("keeps user gravity untouched", func() {
			result, err := dispatcher.Dispatch(ctx, Input{
				OwnerID: owner,
				Content: "we finally talked it through",
				Gravity: 0.8,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Memory.MemoryType).To(Equal(mind.MemoryTypeUser))
			Expect(result.Memory.GravityScore).To(BeNumerically("~", 0.8, 1e-9))
		})
	})

	Describe("embedding", func() {
		It("attaches the embedding and indexes the vector", func() {
			result, err := dispatcher.Dispatch(ctx, Input{OwnerID: owner, Content: "hello", Gravity: 0.3})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Embedded).To(BeTrue())
			Expect(vectors.Documents).To(HaveLen(1))
			Expect(vectors.Documents[0].OwnerID).To(Equal(owner))
			Expect(vectors.Documents[0].ID).To(Equal(result.Memory.ID))
		})

		It("stores the memory without a vector when embedding fails", func() {
			embedder.FailOn = "hello"

			result, err := dispatcher.Dispatch(ctx, Input{OwnerID: owner, Content: "hello", Gravity: 0.3})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Embedded).To(BeFalse())
			Expect(vectors.Documents).To(BeEmpty())

			stored, err := store.GetMemory(ctx, result.Memory.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.HasEmbedding()).To(BeFalse())
		})
	})

	Describe("the primary write", func() {
		It("fails the dispatch when the store is down", func() {
			dispatcher = NewDispatcher(&Config{
				Store:    &brokenStore{Driver: store},
				Embedder: embedder,
				Vectors:  vectors,
				Fusion:   fusion.NewEngine(store, zap.NewNop()),
				Pool:     pool,
				Events:   events,
				Logger:   zap.NewNop(),
			})

			_, err := dispatcher.Dispatch(ctx, Input{OwnerID: owner, Content: "hello", Gravity: 0.3})

			var envelope *mind.Envelope
			Expect(errors.As(err, &envelope)).To(BeTrue())
			Expect(envelope.Kind).To(Equal(mind.ErrKindDependency))
			Expect(events.Events()).To(BeEmpty())
		})
	})

	Describe("cascades", func() {
		It("runs fusion synchronously for heavy memories", func() {
			result, err := dispatcher.Dispatch(ctx, Input{
				OwnerID: owner,
				Content: "standing under the aurora in total silence",
				Gravity: 0.95,
				Emotion: "awe",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cascades).To(ContainElement("fusion"))
			Expect(result.Fusion).NotTo(BeNil())
			Expect(result.Fusion.Kind).To(Equal(fusion.DecisionCreate))
			Expect(result.Cascades).To(ContainElement("pattern_analysis"))
		})

		It("flags identity anchors for reflection", func() {
			result, err := dispatcher.Dispatch(ctx, Input{
				OwnerID:        owner,
				Content:        "I am someone who keeps promises",
				Gravity:        0.5,
				IdentityAnchor: true,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cascades).To(ContainElement("reflection"))
		})

		It("publishes a cascade event for every dispatch", func() {
			result, err := dispatcher.Dispatch(ctx, Input{OwnerID: owner, Content: "hello", Gravity: 0.3})
			Expect(err).NotTo(HaveOccurred())

			published := events.Events()
			Expect(published).To(HaveLen(1))
			Expect(published[0].EventType).To(Equal(eventstream.EventTypeMemoryDispatched))
			Expect(published[0].OwnerID).To(Equal(owner))
			Expect(published[0].MemoryID).To(Equal(result.Memory.ID))
			Expect(published[0].Cascades).To(Equal(result.Cascades))
		})

		It("treats a publish failure as non-fatal", func() {
			events.Err = errors.New("broker unreachable")

			result, err := dispatcher.Dispatch(ctx, Input{OwnerID: owner, Content: "hello", Gravity: 0.3})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Memory).NotTo(BeNil())
		})
	})
})
