// Package config holds the psyche service configuration: defaults, the
// config.toml file layout, environment overrides, and CLI flag bindings.
package config

// Config represents the persistent psyche configuration stored as
// config.toml. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	EventStream EventStreamConfig `toml:"event_stream"`
	Dispatch    DispatchConfig    `toml:"dispatch"`
}

// CurrentV is the current config schema version.
const CurrentV = 1

// StorageConfig holds the primary store settings.
type StorageConfig struct {
	// Provider selects the backend: sqlite, postgres, or inmemory.
	Provider string `toml:"provider,omitempty"`

	// SQLitePath is the database file path for the sqlite provider.
	SQLitePath string `toml:"sqlite_path,omitempty"`

	// PostgresDSN is the connection string for the postgres provider.
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	// Provider selects the backend: sqlitevec or chromem.
	Provider string `toml:"provider,omitempty"`

	// Target is the backend location (a file path for both providers).
	Target string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// LLMConfig holds completion provider settings for the response orchestrator.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// EventStreamConfig holds cascade event stream settings.
type EventStreamConfig struct {
	// Provider selects the backend: nop or kafka.
	Provider string `toml:"provider,omitempty"`

	// Brokers is the kafka broker list.
	Brokers []string `toml:"brokers,omitempty"`

	// Topic is the cascade topic name.
	Topic string `toml:"topic,omitempty"`
}

// DispatchConfig holds cascade worker pool settings.
type DispatchConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}
