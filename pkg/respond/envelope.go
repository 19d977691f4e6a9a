package respond

import "github.com/papercomputeco/psyche/pkg/mind"

// Mode sets how deep retrieval reaches. Higher modes recall more memories
// and spend more tokens.
type Mode int

const (
	ModeSurface Mode = iota + 1
	ModeShallow
	ModeStandard
	ModeDeep
	ModeFull
)

// TopK maps the mode to its retrieval depth. Out-of-range modes clamp to the
// standard depth.
func (m Mode) TopK() int {
	switch m {
	case ModeSurface:
		return 10
	case ModeShallow:
		return 20
	case ModeStandard:
		return 30
	case ModeDeep:
		return 40
	case ModeFull:
		return 50
	default:
		return 30
	}
}

// Path names which answer path produced a response.
type Path string

const (
	PathLocal      Path = "local"
	PathCalculator Path = "calculator"
	PathLLM        Path = "llm"
)

// Constellation summarizes the retrieved memory neighborhood.
type Constellation struct {
	// MemoryCount is the number of memories recalled for this response.
	MemoryCount int `json:"memory_count"`

	// Patterns names the owner's active patterns, strongest first.
	Patterns []string `json:"patterns,omitempty"`

	// GravityCenter is the mean gravity of the recalled memories.
	GravityCenter float64 `json:"gravity_center"`
}

// Processing is the accounting metadata attached to every response.
type Processing struct {
	Path Path `json:"path"`

	// TokensUsed counts LLM tokens actually spent; zero on local and
	// calculator paths.
	TokensUsed int `json:"tokens_used"`

	// TokensSaved estimates the LLM tokens a short-circuit avoided.
	TokensSaved int `json:"tokens_saved"`

	// LatencyMS is the wall time of the whole respond call.
	LatencyMS int64 `json:"latency_ms"`

	// RecallSuccessful reports whether retrieval surfaced any memories.
	RecallSuccessful bool `json:"recall_successful"`
}

// Envelope is the uniform response shape returned by every answer path.
type Envelope struct {
	// Content is the answer text.
	Content string `json:"content"`

	// EmotionalField summarizes the emotional tone of the recalled memories.
	EmotionalField string `json:"emotional_field"`

	// ConsciousnessEcho is a one-line echo of the owner's current snapshot
	// state, when one exists.
	ConsciousnessEcho string `json:"consciousness_echo,omitempty"`

	// Constellation summarizes the recalled neighborhood.
	Constellation Constellation `json:"constellation"`

	// Processing carries path and cost accounting.
	Processing Processing `json:"processing"`
}

// context bundles everything the answer paths share.
type answerContext struct {
	ownerID  string
	query    string
	memories []*mind.Memory
	patterns []*mind.Pattern
	current  *mind.Snapshot

	// total is the owner's full memory count, which can exceed the
	// retrieved set when recall is capped by the mode's top-K.
	total int
}
