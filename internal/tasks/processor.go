package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"decentra/internal/queue"
)

const sweepBatch = 200

type PhotoAnalyzer interface {
	Reanalyze(ctx context.Context, photoIDs []int64, maxAttempts int) error
	SweepPending(ctx context.Context, minAge time.Duration, limit int) (int, error)
}

type Options struct {
	MaxAttempts int
	SweepMinAge time.Duration
}

// Processor handles stream messages for the analysis worker.
type Processor struct {
	photos PhotoAnalyzer
	opts   Options
	logger zerolog.Logger
}

func NewProcessor(photos PhotoAnalyzer, opts Options, logger zerolog.Logger) *Processor {
	return &Processor{
		photos: photos,
		opts:   opts,
		logger: logger,
	}
}

// Handle returns an error only when the message should be redelivered.
// Malformed and unknown tasks are logged and acknowledged.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("discarding malformed task")
		return nil
	}

	switch task.Type {
	case queue.TaskAnalyze:
		return p.handleAnalyze(ctx, msg.ID, task)
	case queue.TaskSweep:
		return p.handleSweep(ctx)
	default:
		p.logger.Warn().Str("type", string(task.Type)).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleAnalyze(ctx context.Context, id string, task queue.Task) error {
	if len(task.PhotoIDs) == 0 {
		return nil
	}
	err := p.photos.Reanalyze(ctx, task.PhotoIDs, p.opts.MaxAttempts)
	if err != nil {
		return fmt.Errorf("analyze task %s: %w", id, err)
	}
	p.logger.Info().Str("message_id", id).Ints64("photo_ids", task.PhotoIDs).Msg("analysis task done")
	return nil
}

func (p *Processor) handleSweep(ctx context.Context) error {
	n, err := p.photos.SweepPending(ctx, p.opts.SweepMinAge, sweepBatch)
	if err != nil {
		return fmt.Errorf("sweep pending: %w", err)
	}
	if n > 0 {
		p.logger.Info().Int("photos", n).Msg("pending photos rescheduled")
	}
	return nil
}
