package dispatch

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/pattern"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// JobKind names an asynchronous cascade.
type JobKind string

const (
	// JobPatternAnalysis re-runs pattern detection for an owner.
	JobPatternAnalysis JobKind = "pattern_analysis"

	// JobReflection flags an identity-anchor memory for a downstream
	// reflection process. The pipeline only records the flag.
	JobReflection JobKind = "reflection"
)

// Job is a unit of cascade work for the pool to execute.
type Job struct {
	Kind     JobKind
	OwnerID  string
	MemoryID string
}

// PoolConfig configures the cascade worker pool.
type PoolConfig struct {
	// Patterns runs pattern-analysis jobs.
	Patterns *pattern.Engine

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pool processes cascade jobs asynchronously so the dispatch hot path only
// pays for validation, embedding, and the primary write.
type Pool struct {
	config *PoolConfig
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full and the job was dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("cascade job queued",
			zap.String("kind", string(job.Kind)),
			zap.String("owner_id", job.OwnerID),
		)
		return true
	default:
		p.logger.Error("cascade job dropped, queue full",
			zap.String("kind", string(job.Kind)),
			zap.String("owner_id", job.OwnerID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker continuously pulls jobs off the queue until it is closed.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()

	for job := range p.queue {
		p.process(job)
	}

	p.logger.Debug("cascade worker exiting", zap.Uint("worker_id", id))
}

// process executes one cascade job. Failures are logged, never retried; the
// primary memory write has already succeeded.
func (p *Pool) process(job Job) {
	ctx := context.Background()

	switch job.Kind {
	case JobPatternAnalysis:
		if p.config.Patterns == nil {
			return
		}
		if _, err := p.config.Patterns.Detect(ctx, job.OwnerID, false); err != nil {
			p.logger.Warn("pattern analysis cascade failed",
				zap.String("owner_id", job.OwnerID),
				zap.String("memory_id", job.MemoryID),
				zap.Error(err),
			)
		}

	case JobReflection:
		// Reflection itself lives outside the pipeline; the flag is the
		// whole cascade here.
		p.logger.Info("identity anchor flagged for reflection",
			zap.String("owner_id", job.OwnerID),
			zap.String("memory_id", job.MemoryID),
		)

	default:
		p.logger.Error("unknown cascade job kind", zap.String("kind", string(job.Kind)))
	}
}
