// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package generation drives per-shot video generation: it submits a task to
// the provider, then polls the task until it reaches a terminal status and
// mirrors every observed status onto the shot.
package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/shotline/internal/bus"
	"github.com/ManuGH/shotline/internal/log"
	"github.com/ManuGH/shotline/internal/metrics"
	"github.com/ManuGH/shotline/internal/runway"
	"github.com/ManuGH/shotline/internal/storyboard"
	"github.com/ManuGH/shotline/internal/store"
	"github.com/ManuGH/shotline/internal/telemetry"
)

// Provider submits and observes generation tasks. *runway.Client implements it.
type Provider interface {
	Generate(ctx context.Context, req runway.GenerateRequest) (runway.GenerateResponse, error)
	Status(ctx context.Context, taskID string) (runway.TaskStatus, error)
	Cancel(ctx context.Context, taskID string) error
}

// ShotStore is the slice of the state container the controller needs.
// *store.Store implements it.
type ShotStore interface {
	Shot(id string) (storyboard.Shot, bool)
	Shots() []storyboard.Shot
	UpdateShot(ctx context.Context, id string, fn func(*storyboard.Shot) error) (storyboard.Shot, error)
}

// Options tunes the controller. Zero values take the defaults.
type Options struct {
	PollInterval time.Duration // default 3s
	PollRetries  int           // retries after a failed status query, default 3
	RetryBackoff time.Duration // fixed delay between retries, default 1s
	Ratio        string        // aspect ratio or pixel format sent with every task
	Bus          bus.Bus
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.PollRetries < 0 {
		o.PollRetries = 0
	} else if o.PollRetries == 0 {
		o.PollRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	return o
}

// View is the generation state of one shot as presented to clients.
type View struct {
	ShotID        string            `json:"shotId"`
	TaskID        string            `json:"taskId,omitempty"`
	Status        storyboard.Status `json:"status"`
	ProgressRatio float64           `json:"progressRatio"`
	ProgressText  string            `json:"progressText,omitempty"`
	VideoURL      string            `json:"videoUrl,omitempty"`
	IsGenerating  bool              `json:"isGenerating"`
	Error         string            `json:"error,omitempty"`
}

// shotState is controller-local bookkeeping that is not part of the shot.
// An entry exists only while a start is in flight or a poll loop runs.
type shotState struct {
	epoch    uint64 // unique per start
	starting bool
	pollErr  *PollError
	poller   *poller
}

type poller struct {
	taskID string
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the poll loops for all shots.
type Controller struct {
	provider Provider
	store    ShotStore
	opts     Options
	logger   zerolog.Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	shots  map[string]*shotState
	seq    uint64
	closed bool

	root context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewController returns a controller. Call Close to stop all poll loops.
func NewController(provider Provider, shots ShotStore, opts Options) *Controller {
	root, stop := context.WithCancel(context.Background())
	return &Controller{
		provider: provider,
		store:    shots,
		opts:     opts.withDefaults(),
		logger:   log.WithComponent("generation"),
		tracer:   telemetry.Tracer("shotline/generation"),
		shots:    make(map[string]*shotState),
		root:     root,
		stop:     stop,
	}
}

func (c *Controller) stateLocked(shotID string) *shotState {
	st, ok := c.shots[shotID]
	if !ok {
		st = &shotState{}
		c.shots[shotID] = st
	}
	return st
}

// StartGeneration submits shotID to the provider. An empty prompt falls back
// to the shot's runway prompt. Any running poll loop for the shot is stopped
// first. On success a new poll loop is started; on failure the shot is marked
// FAILED and a *StartError is returned.
func (c *Controller) StartGeneration(ctx context.Context, shotID, prompt string) (err error) {
	shot, ok := c.store.Shot(shotID)
	if !ok {
		return store.ErrShotNotFound
	}
	if prompt == "" {
		prompt = shot.RunwayPrompt
	}
	duration := BucketDuration(shot.Duration)

	ctx = log.ContextWithShotID(ctx, shotID)
	ctx, span := c.tracer.Start(ctx, "generation.start",
		trace.WithAttributes(telemetry.ShotAttributes("", shotID, shot.Number)...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	logger := log.WithComponentFromContext(ctx, "generation")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	st := c.stateLocked(shotID)
	prev := st.poller
	st.poller = nil
	c.seq++
	st.epoch = c.seq
	epoch := st.epoch
	st.starting = true
	st.pollErr = nil
	c.mu.Unlock()

	c.stopPoller(prev)

	if _, err := c.store.UpdateShot(ctx, shotID, func(s *storyboard.Shot) error {
		s.Status = storyboard.StatusPending
		s.TaskID = ""
		s.GenerationError = ""
		s.VideoURL = ""
		s.ProgressRatio = 0
		s.ProgressText = ""
		return nil
	}); err != nil {
		c.abandonStart(shotID, epoch)
		return err
	}
	metrics.IncGenerationTransition(string(storyboard.StatusPending))
	c.publish(ctx, shotID)

	req := runway.GenerateRequest{Prompt: prompt, Duration: duration, Ratio: c.opts.Ratio}
	span.SetAttributes(telemetry.GenerationAttributes("", string(storyboard.StatusPending), duration, c.opts.Ratio)...)
	res, genErr := c.provider.Generate(ctx, req)

	if !c.ownsStart(shotID, epoch) {
		// Cancelled or superseded while the request was in flight.
		if genErr == nil {
			c.settleOrphan(ctx, shotID, res.TaskID)
		}
		return ErrSuperseded
	}

	if genErr != nil {
		metrics.IncGenerationStart("failed")
		msg := userMessage(genErr)
		_, _ = c.store.UpdateShot(ctx, shotID, func(s *storyboard.Shot) error {
			s.Status = storyboard.StatusFailed
			s.GenerationError = msg
			return nil
		})
		metrics.IncGenerationTransition(string(storyboard.StatusFailed))
		startErr := &StartError{ShotID: shotID, Err: genErr}
		span.SetAttributes(telemetry.ErrorAttributes(genErr, "start_failed")...)
		c.abandonStart(shotID, epoch)
		c.publish(ctx, shotID)
		logger.Warn().
			Err(genErr).
			Str(log.FieldEvent, "generation.start_failed").
			Int("duration_s", duration).
			Msg("generation start failed")
		return startErr
	}

	metrics.IncGenerationStart("accepted")
	span.SetAttributes(telemetry.GenerationAttributes(res.TaskID, string(res.Status), duration, c.opts.Ratio)...)
	if _, err := c.store.UpdateShot(ctx, shotID, func(s *storyboard.Shot) error {
		s.TaskID = res.TaskID
		s.Status = storyboard.StatusPending
		return nil
	}); err != nil {
		// The shot was removed while the task was being created.
		c.abandonStart(shotID, epoch)
		return err
	}

	c.mu.Lock()
	if cur, ok := c.shots[shotID]; c.closed || !ok || cur != st || st.epoch != epoch {
		newer, closed := ok, c.closed
		c.mu.Unlock()
		if !closed {
			// Lost the shot after the task id was stored.
			c.cancelOrphan(context.WithoutCancel(ctx), shotID, res.TaskID,
				logger.With().Str(log.FieldTaskID, res.TaskID).Logger(), !newer)
		}
		return ErrSuperseded
	}
	st.starting = false
	st.poller = c.spawnLocked(shotID, res.TaskID)
	c.mu.Unlock()

	c.publish(ctx, shotID)
	logger.Info().
		Str(log.FieldEvent, "generation.started").
		Str(log.FieldTaskID, res.TaskID).
		Int("duration_s", duration).
		Msg("generation task accepted")
	return nil
}

func (c *Controller) ownsStart(shotID string, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.shots[shotID]
	return ok && !c.closed && st.epoch == epoch
}

// abandonStart forgets a start that ended without a poll loop.
func (c *Controller) abandonStart(shotID string, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.shots[shotID]; ok && st.epoch == epoch {
		delete(c.shots, shotID)
	}
}

// settleOrphan deals with a task the provider accepted after its start lost
// the shot. When a newer start owns the shot the task is cancelled remotely
// and the shot is left alone. Otherwise the start was cancelled: the task id
// is recorded on the shot and the task is cancelled, so the shot ends
// CANCELLED, or stays PENDING with a task CancelRemote can reach.
func (c *Controller) settleOrphan(ctx context.Context, shotID, taskID string) {
	ctx = context.WithoutCancel(ctx)
	logger := log.WithComponentFromContext(ctx, "generation").With().Str(log.FieldTaskID, taskID).Logger()

	if !c.tracked(shotID) {
		_, err := c.store.UpdateShot(ctx, shotID, func(s *storyboard.Shot) error {
			// Checked under the store lock so a start that began since
			// keeps the shot.
			if c.tracked(shotID) || s.TaskID != "" || s.Status != storyboard.StatusPending {
				return errStale
			}
			s.TaskID = taskID
			return nil
		})
		if err == nil {
			c.publish(ctx, shotID)
			c.cancelOrphan(ctx, shotID, taskID, logger, true)
			return
		}
	}
	c.cancelOrphan(ctx, shotID, taskID, logger, false)
}

func (c *Controller) cancelOrphan(ctx context.Context, shotID, taskID string, logger zerolog.Logger, owned bool) {
	logger.Info().
		Str(log.FieldEvent, "generation.start_superseded").
		Bool("recorded", owned).
		Msg("cancelling task from superseded start")

	if err := c.provider.Cancel(ctx, taskID); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "generation.orphan_cancel_failed").Msg("remote cancel of superseded task failed")
		return
	}
	if !owned {
		return
	}
	_, err := c.store.UpdateShot(ctx, shotID, func(s *storyboard.Shot) error {
		if s.TaskID != taskID || s.Status.IsTerminal() {
			return errStale
		}
		s.Status = storyboard.StatusCancelled
		return nil
	})
	if err == nil {
		metrics.IncGenerationTransition(string(storyboard.StatusCancelled))
		c.publish(ctx, shotID)
	}
}

// tracked reports whether a start or poll loop currently owns the shot.
func (c *Controller) tracked(shotID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.shots[shotID]
	return ok
}

// spawnLocked starts a poll loop. Caller holds c.mu.
func (c *Controller) spawnLocked(shotID, taskID string) *poller {
	ctx, cancel := context.WithCancel(c.root)
	p := &poller{taskID: taskID, cancel: cancel, done: make(chan struct{})}
	c.wg.Add(1)
	go c.pollLoop(ctx, shotID, p)
	return p
}

// stopPoller cancels p and waits until it can no longer write.
func (c *Controller) stopPoller(p *poller) {
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Cancel stops the shot's poll loop and forgets its start state. The shot's
// stored status is left as it is.
func (c *Controller) Cancel(shotID string) {
	c.mu.Lock()
	st, ok := c.shots[shotID]
	if !ok {
		c.mu.Unlock()
		return
	}
	p := st.poller
	delete(c.shots, shotID)
	c.mu.Unlock()

	c.stopPoller(p)
	c.logger.Debug().Str(log.FieldShotID, shotID).Str(log.FieldEvent, "generation.cancelled").Msg("generation polling cancelled")
}

// CancelRemote cancels locally and then asks the provider to cancel the task.
// The shot is marked CANCELLED once the provider accepts.
func (c *Controller) CancelRemote(ctx context.Context, shotID string) error {
	shot, ok := c.store.Shot(shotID)
	if !ok {
		return store.ErrShotNotFound
	}
	c.Cancel(shotID)
	if shot.TaskID == "" {
		return ErrNoTask
	}
	if err := c.provider.Cancel(ctx, shot.TaskID); err != nil {
		return err
	}
	_, err := c.store.UpdateShot(ctx, shotID, func(s *storyboard.Shot) error {
		if s.TaskID != shot.TaskID || s.Status.IsTerminal() {
			return errStale
		}
		s.Status = storyboard.StatusCancelled
		return nil
	})
	if errors.Is(err, errStale) {
		return nil
	}
	if err == nil {
		metrics.IncGenerationTransition(string(storyboard.StatusCancelled))
		c.publish(ctx, shotID)
	}
	return err
}

// IsGenerating reports whether a start is in flight or the shot's status is
// non-terminal.
func (c *Controller) IsGenerating(shotID string) bool {
	c.mu.Lock()
	starting := false
	if st, ok := c.shots[shotID]; ok {
		starting = st.starting
	}
	c.mu.Unlock()
	if starting {
		return true
	}
	shot, ok := c.store.Shot(shotID)
	return ok && shot.Status.InFlight()
}

// View returns the generation view of a shot.
func (c *Controller) View(shotID string) (View, bool) {
	shot, ok := c.store.Shot(shotID)
	if !ok {
		return View{}, false
	}
	v := View{
		ShotID:        shotID,
		TaskID:        shot.TaskID,
		Status:        shot.Status,
		ProgressRatio: shot.ProgressRatio,
		ProgressText:  shot.ProgressText,
		VideoURL:      shot.VideoURL,
		Error:         shot.GenerationError,
		IsGenerating:  shot.Status.InFlight(),
	}

	c.mu.Lock()
	if st, ok := c.shots[shotID]; ok {
		v.IsGenerating = v.IsGenerating || st.starting
		if st.pollErr != nil {
			v.Error = st.pollErr.Error()
		}
	}
	c.mu.Unlock()
	return v, true
}

// Close stops every poll loop and waits for them to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

func (c *Controller) publish(ctx context.Context, shotID string) {
	if c.opts.Bus == nil {
		return
	}
	v, ok := c.View(shotID)
	if !ok {
		return
	}
	_ = c.opts.Bus.Publish(context.WithoutCancel(ctx), bus.TopicGeneration, bus.Message{
		Type:    bus.EventGenerationChanged,
		ShotID:  shotID,
		Payload: v,
		At:      time.Now(),
	})
}
