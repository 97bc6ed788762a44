// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package generation

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/metrics"
	"github.com/ManuGH/shotline/internal/runway"
	"github.com/ManuGH/shotline/internal/storyboard"
	"github.com/ManuGH/shotline/internal/telemetry"
)

// pollLoop queries the task right away and then every PollInterval until the
// task reaches a terminal status, stops owning the shot, or ctx is cancelled.
func (c *Controller) pollLoop(ctx context.Context, shotID string, p *poller) {
	defer c.wg.Done()
	defer close(p.done)
	defer metrics.PollerStarted()()

	ctx = log.ContextWithTaskID(log.ContextWithShotID(ctx, shotID), p.taskID)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if !c.PollOnce(ctx, shotID, p.taskID) {
			c.detach(shotID, p)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// detach drops the shot's entry if p is still its poller.
func (c *Controller) detach(shotID string, p *poller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.shots[shotID]; ok && st.poller == p {
		delete(c.shots, shotID)
	}
}

// permanentStatusError reports status query failures a retry cannot fix.
func permanentStatusError(err error) bool {
	return errors.Is(err, runway.ErrNotConfigured) ||
		errors.Is(err, runway.ErrUnauthorized) ||
		errors.Is(err, runway.ErrNotFound) ||
		errors.Is(err, runway.ErrInvalidRequest)
}

// PollOnce performs one status query for taskID and applies the result to
// the shot. It reports whether polling should continue.
func (c *Controller) PollOnce(ctx context.Context, shotID, taskID string) bool {
	shot, ok := c.store.Shot(shotID)
	if !ok || shot.TaskID != taskID || shot.Status.IsTerminal() {
		metrics.IncGenerationPoll("stale")
		return false
	}

	ctx, span := c.tracer.Start(ctx, "generation.poll",
		trace.WithAttributes(telemetry.ShotAttributes("", shotID, shot.Number)...),
		trace.WithAttributes(attribute.String(telemetry.GenerationTaskIDKey, taskID)))
	defer span.End()
	logger := log.WithComponentFromContext(ctx, "generation")

	attempts := 0
	status, err := backoff.Retry(ctx, func() (runway.TaskStatus, error) {
		attempts++
		st, err := c.provider.Status(ctx, taskID)
		if err != nil && ctx.Err() != nil {
			return st, backoff.Permanent(ctx.Err())
		}
		if err != nil && permanentStatusError(err) {
			return st, backoff.Permanent(err)
		}
		if err != nil {
			metrics.IncGenerationPoll("retry")
		}
		return st, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.RetryBackoff)),
		backoff.WithMaxTries(uint(c.opts.PollRetries+1)),
	)
	span.SetAttributes(attribute.Int(telemetry.GenerationAttemptsKey, attempts))

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return false
		}
		pollErr := &PollError{ShotID: shotID, TaskID: taskID, Attempts: attempts, Err: err}
		c.setPollErr(shotID, taskID, pollErr)
		metrics.IncGenerationPoll("exhausted")
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(err, "poll_exhausted")...)
		span.SetStatus(codes.Error, "status query failed")
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "generation.poll_failed").
			Int("attempts", attempts).
			Msg("status poll failed, keeping last known status")
		c.publish(ctx, shotID)
		return true
	}

	metrics.IncGenerationPoll("ok")
	c.setPollErr(shotID, taskID, nil)
	span.SetAttributes(attribute.String(telemetry.GenerationStatusKey, string(status.Status)))

	prevStatus := shot.Status
	next, cont := c.apply(ctx, shotID, taskID, status)
	if next == "" {
		return cont
	}
	if next != prevStatus {
		metrics.IncGenerationTransition(string(next))
		logger.Info().
			Str(log.FieldEvent, "generation.transition").
			Str(log.FieldOldState, prevStatus.String()).
			Str(log.FieldNewState, next.String()).
			Float64(log.FieldProgress, status.Progress).
			Msg("generation status changed")
	}
	c.publish(ctx, shotID)
	return cont
}

// apply writes status onto the shot if taskID still owns it. It returns the
// status written, or "" when nothing was written, and whether to keep polling.
func (c *Controller) apply(ctx context.Context, shotID, taskID string, status runway.TaskStatus) (storyboard.Status, bool) {
	var next storyboard.Status
	var cont bool
	switch status.Status {
	case storyboard.StatusSucceeded:
		next, cont = storyboard.StatusSucceeded, false
	case storyboard.StatusFailed, storyboard.StatusCancelled:
		next, cont = storyboard.StatusFailed, false
	case storyboard.StatusPending, storyboard.StatusRunning, storyboard.StatusThrottled:
		next, cont = status.Status, true
	default:
		c.logger.Warn().
			Str(log.FieldShotID, shotID).
			Str(log.FieldTaskID, taskID).
			Str("remote_status", string(status.Status)).
			Msg("ignoring unknown task status")
		return "", true
	}

	_, err := c.store.UpdateShot(ctx, shotID, func(s *storyboard.Shot) error {
		if s.TaskID != taskID || ctx.Err() != nil {
			return errStale
		}
		s.Status = next
		switch next {
		case storyboard.StatusSucceeded:
			s.VideoURL = status.VideoURL
			s.ProgressRatio = 1.0
			s.ProgressText = status.ProgressText
			s.GenerationError = ""
		case storyboard.StatusFailed:
			s.GenerationError = status.Error
			if s.GenerationError == "" {
				s.GenerationError = "Generation failed"
			}
		default:
			s.ProgressRatio = status.Progress
			s.ProgressText = status.ProgressText
		}
		return nil
	})
	if err != nil {
		metrics.IncGenerationPoll("stale")
		return "", false
	}
	return next, cont
}

func (c *Controller) setPollErr(shotID, taskID string, pollErr *PollError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.shots[shotID]
	if !ok || st.poller == nil || st.poller.taskID != taskID {
		return
	}
	st.pollErr = pollErr
}
