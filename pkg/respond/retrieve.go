package respond

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
)

// recallScanLimit bounds how many recent memories the token-overlap fallback
// scans when no vector search is available.
const recallScanLimit = 200

// retrieve recalls the top-K memories relevant to the query. Vector search
// is preferred; failures and vectorless deployments fall back to token
// overlap over recent memories. Retrieval never fails the respond call.
func (o *Orchestrator) retrieve(ctx context.Context, ownerID, query string, topK int) []*mind.Memory {
	if o.embedder != nil && o.vectors != nil {
		if memories := o.vectorRecall(ctx, ownerID, query, topK); memories != nil {
			return memories
		}
	}
	return o.overlapRecall(ctx, ownerID, query, topK)
}

// vectorRecall embeds the query and searches the vector index. Returns nil
// on any failure so the caller can fall back.
func (o *Orchestrator) vectorRecall(ctx context.Context, ownerID, query string, topK int) []*mind.Memory {
	embedding, err := o.embedder.Embed(ctx, query)
	if err != nil {
		o.logger.Warn("query embedding failed, falling back to token overlap",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return nil
	}

	results, err := o.vectors.Query(ctx, ownerID, embedding, topK)
	if err != nil {
		o.logger.Warn("vector recall failed, falling back to token overlap",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	memories := make([]*mind.Memory, 0, len(results))
	for _, r := range results {
		m, err := o.store.GetMemory(ctx, r.ID)
		if err != nil {
			o.logger.Warn("recalled memory missing from store",
				zap.String("memory_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		memories = append(memories, m)
	}
	return memories
}

// overlapRecall scores recent memories by token overlap with the query.
func (o *Orchestrator) overlapRecall(ctx context.Context, ownerID, query string, topK int) []*mind.Memory {
	recent, err := o.store.ListMemories(ctx, ownerID, storage.MemoryFilter{Limit: recallScanLimit})
	if err != nil {
		o.logger.Warn("memory recall failed",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return nil
	}
	if len(recent) == 0 {
		return nil
	}

	type scored struct {
		memory *mind.Memory
		score  float64
	}
	candidates := make([]scored, 0, len(recent))
	for _, m := range recent {
		score := mind.TextSimilarity(query, m.Content+" "+m.Topic+" "+m.Summary)
		candidates = append(candidates, scored{memory: m, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		// Overlap ties go to gravity.
		return candidates[i].memory.GravityScore > candidates[j].memory.GravityScore
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	memories := make([]*mind.Memory, len(candidates))
	for i, c := range candidates {
		memories[i] = c.memory
	}
	return memories
}
