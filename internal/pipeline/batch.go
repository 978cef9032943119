package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"reachcheck/internal/event"
	"reachcheck/internal/models"
)

// ValidateBatch validates a list of numbers in fixed-size chunks. Numbers
// within a chunk run fully in parallel; a fixed delay separates chunks (none
// after the last). Results come back in input order regardless of completion
// order, one per input, never nil past the first chunk that ran.
func (s *Service) ValidateBatch(ctx context.Context, numbers []string, forceRefresh bool) []*models.ValidationResult {
	results := make([]*models.ValidationResult, len(numbers))
	if len(numbers) == 0 {
		return results
	}

	chunkSize := s.cfg.BatchChunkSize
	if chunkSize <= 0 {
		chunkSize = 5
	}
	chunkCount := (len(numbers) + chunkSize - 1) / chunkSize

	s.metrics.ObserveBatch()
	s.emit(ctx, event.Event{
		Type:       event.TypeBatchStarted,
		BatchSize:  len(numbers),
		ChunkCount: chunkCount,
	})

	for chunk := 0; chunk < chunkCount; chunk++ {
		lo := chunk * chunkSize
		hi := min(lo+chunkSize, len(numbers))

		// Validate never returns an error, so the group exists only for
		// the join; cancellation is handled inside Validate itself.
		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				results[i] = s.Validate(ctx, Request{Number: numbers[i], ForceRefresh: forceRefresh})
				return nil
			})
		}
		_ = g.Wait()

		s.emit(ctx, event.Event{
			Type:       event.TypeBatchProgress,
			BatchSize:  len(numbers),
			ChunkIndex: chunk + 1,
			ChunkCount: chunkCount,
		})

		if chunk < chunkCount-1 && s.cfg.BatchChunkDelay > 0 {
			timer := time.NewTimer(s.cfg.BatchChunkDelay)
			select {
			case <-ctx.Done():
				// Skip the remaining delay; the next chunk's validations
				// observe the cancellation themselves.
				timer.Stop()
			case <-timer.C:
			}
		}
	}

	s.emit(ctx, event.Event{
		Type:       event.TypeBatchCompleted,
		BatchSize:  len(numbers),
		ChunkCount: chunkCount,
	})
	return results
}
