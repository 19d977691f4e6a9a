// Package respond answers queries over an owner's memory space through three
// escalating paths: fixed-intent local answers (zero token cost), a gated
// statistical calculator, and a full LLM completion grounded in memory and
// pattern context. Every path returns the same envelope shape.
package respond

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/embeddings"
	"github.com/papercomputeco/psyche/pkg/llm"
	"github.com/papercomputeco/psyche/pkg/mind"
	"github.com/papercomputeco/psyche/pkg/storage"
	"github.com/papercomputeco/psyche/pkg/vector"
)

// promptMemoryCap bounds how many recalled memories enter the LLM prompt.
const promptMemoryCap = 15

// Request is a respond call.
type Request struct {
	OwnerID string `json:"owner_id"`
	Query   string `json:"query"`
	Mode    Mode   `json:"mode,omitempty"`

	// Personality seeds the LLM system prompt. Optional.
	Personality string `json:"personality,omitempty"`
}

// Orchestrator routes queries through the answer paths.
type Orchestrator struct {
	store     storage.Driver
	vectors   vector.Driver
	embedder  embeddings.Embedder
	completer llm.Completer
	logger    *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// Config wires an Orchestrator. Vectors, Embedder, and Completer are
// optional; without a Completer the LLM path degrades to a context summary.
type Config struct {
	Store     storage.Driver
	Vectors   vector.Driver
	Embedder  embeddings.Embedder
	Completer llm.Completer
	Logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator from the given configuration.
func NewOrchestrator(c *Config) *Orchestrator {
	return &Orchestrator{
		store:     c.Store,
		vectors:   c.Vectors,
		embedder:  c.Embedder,
		completer: c.Completer,
		logger:    c.Logger,
		now:       time.Now,
	}
}

// Respond answers a query over the owner's memory space.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (*Envelope, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, mind.ValidationError("owner id is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, mind.ValidationError("query is required")
	}

	started := o.now()
	ac := o.gather(ctx, req)

	// Path 1: fixed-intent local answers, zero token cost.
	if content := localAnswer(ac); content != "" {
		env := o.envelope(ac, content, PathLocal)
		env.Processing.TokensSaved = estimateTokens(o.prompt(ac, req.Personality, ""))
		env.Processing.LatencyMS = o.now().Sub(started).Milliseconds()
		return env, nil
	}

	// Path 2: calculator bypass behind guardrails. Rejections fall through
	// silently.
	var compressed string
	if est := calculate(ac); est != nil {
		if est.confidence >= calcMinConfidence {
			env := o.envelope(ac, est.answer, PathCalculator)
			env.Processing.TokensSaved = estimateTokens(o.prompt(ac, req.Personality, ""))
			env.Processing.LatencyMS = o.now().Sub(started).Milliseconds()
			return env, nil
		}
		compressed = est.compressed
	}

	// Path 3: full LLM completion.
	content, usage, err := o.complete(ctx, ac, req.Personality, compressed)
	if err != nil {
		return nil, err
	}

	env := o.envelope(ac, content, PathLLM)
	env.Processing.TokensUsed = usage.TotalTokens
	env.Processing.LatencyMS = o.now().Sub(started).Milliseconds()
	return env, nil
}

// gather assembles everything the answer paths share. Each lookup is
// best-effort: a degraded context still answers.
func (o *Orchestrator) gather(ctx context.Context, req Request) *answerContext {
	ac := &answerContext{
		ownerID:  req.OwnerID,
		query:    req.Query,
		memories: o.retrieve(ctx, req.OwnerID, req.Query, req.Mode.TopK()),
	}

	total, err := o.store.CountMemories(ctx, req.OwnerID)
	if err != nil {
		o.logger.Warn("memory count failed",
			zap.String("owner_id", req.OwnerID),
			zap.Error(err),
		)
		total = len(ac.memories)
	}
	ac.total = total

	patterns, err := o.store.ListPatterns(ctx, req.OwnerID)
	if err != nil {
		o.logger.Warn("pattern lookup failed",
			zap.String("owner_id", req.OwnerID),
			zap.Error(err),
		)
	} else {
		for _, p := range patterns {
			if p.Status == mind.PatternActive {
				ac.patterns = append(ac.patterns, p)
			}
		}
		sort.Slice(ac.patterns, func(i, j int) bool {
			return ac.patterns[i].Rank() > ac.patterns[j].Rank()
		})
	}

	current, err := o.store.CurrentSnapshot(ctx, req.OwnerID)
	if err != nil {
		var notFound storage.NotFoundError
		if !errors.As(err, &notFound) {
			o.logger.Warn("snapshot lookup failed",
				zap.String("owner_id", req.OwnerID),
				zap.Error(err),
			)
		}
	} else {
		ac.current = current
	}

	return ac
}

// complete runs the LLM path. Generation failures return a dependency error
// carrying the context summary as fallback content.
func (o *Orchestrator) complete(ctx context.Context, ac *answerContext, personality, compressed string) (string, llm.Usage, error) {
	fallback := contextSummary(ac)
	if o.completer == nil {
		return fallback, llm.Usage{}, nil
	}

	resp, err := o.completer.Complete(ctx, &llm.CompletionRequest{
		System: o.prompt(ac, personality, compressed),
		Input:  ac.query,
	})
	if err != nil {
		return "", llm.Usage{}, mind.DependencyError(
			fmt.Sprintf("llm completion: %v", err), fallback)
	}

	return resp.Content, resp.Usage, nil
}

// prompt builds the LLM system prompt from personality, memory context, and
// pattern context.
func (o *Orchestrator) prompt(ac *answerContext, personality, compressed string) string {
	var b strings.Builder

	if personality != "" {
		b.WriteString(personality)
	} else {
		b.WriteString("You are a reflective companion that answers from the owner's remembered experiences.")
	}
	b.WriteString("\n\nRemembered experiences:\n")

	memories := ac.memories
	if len(memories) > promptMemoryCap {
		memories = memories[:promptMemoryCap]
	}
	for _, m := range memories {
		fmt.Fprintf(&b, "- [gravity %.2f", m.GravityScore)
		if m.Emotion != "" {
			fmt.Fprintf(&b, ", %s", m.Emotion)
		}
		fmt.Fprintf(&b, "] %s\n", excerpt(m))
	}

	if len(ac.patterns) > 0 {
		b.WriteString("\nBehavioral patterns:\n")
		for i, p := range ac.patterns {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- %s (strength %.2f, seen %d times)\n", p.Label, p.Strength, p.Frequency)
		}
	}

	if compressed != "" {
		fmt.Fprintf(&b, "\nStatistical context: %s\n", compressed)
	}

	b.WriteString("\nAnswer grounded in these memories. Say so when they do not cover the question.")
	return b.String()
}

// envelope builds the uniform response shape around the answer content.
func (o *Orchestrator) envelope(ac *answerContext, content string, path Path) *Envelope {
	var gravity float64
	for _, m := range ac.memories {
		gravity += m.GravityScore
	}
	if len(ac.memories) > 0 {
		gravity /= float64(len(ac.memories))
	}

	var patternNames []string
	for i, p := range ac.patterns {
		if i == 5 {
			break
		}
		patternNames = append(patternNames, p.Label)
	}

	return &Envelope{
		Content:           content,
		EmotionalField:    emotionalField(ac.memories),
		ConsciousnessEcho: consciousnessEcho(ac.current),
		Constellation: Constellation{
			MemoryCount:   len(ac.memories),
			Patterns:      patternNames,
			GravityCenter: gravity,
		},
		Processing: Processing{
			Path:             path,
			RecallSuccessful: len(ac.memories) > 0,
		},
	}
}

// emotionalField summarizes the emotional tone of the recalled memories.
func emotionalField(memories []*mind.Memory) string {
	counts := make(map[string]int)
	labeled := 0
	for _, m := range memories {
		if m.EmotionalWeight() {
			counts[m.Emotion]++
			labeled++
		}
	}
	if labeled == 0 {
		return "neutral"
	}

	dominant := ""
	best := 0
	for emotion, count := range counts {
		if count > best || (count == best && emotion < dominant) {
			dominant = emotion
			best = count
		}
	}

	if len(counts) > 2 {
		return fmt.Sprintf("mixed, leaning %s", dominant)
	}
	return dominant
}

// consciousnessEcho is a one-line echo of the current snapshot state.
func consciousnessEcho(s *mind.Snapshot) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("state %s: health %.2f across %d memories",
		s.Version, s.Health.Score, s.EntryCount)
}

// contextSummary is the degraded answer used when no completer is configured
// or generation fails.
func contextSummary(ac *answerContext) string {
	if len(ac.memories) == 0 {
		return "I don't hold any memories that speak to that yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From %d recalled memories:", len(ac.memories))
	limit := 3
	if len(ac.memories) < limit {
		limit = len(ac.memories)
	}
	for _, m := range ac.memories[:limit] {
		b.WriteString(" ")
		b.WriteString(excerpt(m))
	}
	return b.String()
}
