package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/philoflow/philoflow/internal/engine"
	"github.com/philoflow/philoflow/internal/model"
	"github.com/philoflow/philoflow/internal/text"
)

// haltedMessage is the synthetic error written to records the circuit
// breaker prevented from running.
const haltedMessage = "Queue halted: API quota exceeded"

var (
	// ErrBusy is returned when a run is requested while one is processing.
	ErrBusy = errors.New("a generation run is already processing")
	// ErrEmptyInput is returned when chunking yields no segments.
	ErrEmptyInput = errors.New("input contains no processable segments")
	// ErrNotFound is returned for operations on an unknown record.
	ErrNotFound = errors.New("record not found")
	// ErrNoConcept is returned when regeneration is requested before
	// analysis has produced a concept.
	ErrNoConcept = errors.New("record has no concept to regenerate from")
)

// RunOptions parameterize one generation run. Provider credentials live in
// the ports themselves; these are the per-run knobs the UI controls.
type RunOptions struct {
	Mode           string
	Language       string
	OCRClean       bool // run the OCR normalizer before chunking
	SkipHeaders    bool // drop segments that are markdown headers
	HD             bool
	AspectRatio    string
	DirectTemplate string
}

// Scheduler drives each result record through WAITING → ANALYZING →
// GENERATING → SUCCESS/ERROR, strictly in segment order, one remote call
// at a time. Sequential dispatch is deliberate: it is the rate-limiting
// strategy, since parallel calls would blow per-minute quota.
type Scheduler struct {
	store       *Store
	analyzer    engine.Analyzer
	illustrator engine.Illustrator
	monitor     *Monitor
	retry       engine.RetryPolicy
	interDelay  time.Duration
	pausePoll   time.Duration

	paused atomic.Bool

	mu       sync.Mutex
	state    string
	banner   string
	lastOpts RunOptions
}

// NewScheduler wires the scheduler to its collaborators. interDelay is the
// fixed wait between records; pausePoll is the pause-flag poll interval.
func NewScheduler(store *Store, analyzer engine.Analyzer, illustrator engine.Illustrator, monitor *Monitor, retry engine.RetryPolicy, interDelay, pausePoll time.Duration) *Scheduler {
	return &Scheduler{
		store:       store,
		analyzer:    analyzer,
		illustrator: illustrator,
		monitor:     monitor,
		retry:       retry,
		interDelay:  interDelay,
		pausePoll:   pausePoll,
		state:       model.RunIdle,
	}
}

// RunState is the run-level snapshot surfaced to observers.
type RunState struct {
	State   string               `json:"state"`
	Banner  string               `json:"banner,omitempty"`
	Paused  bool                 `json:"paused"`
	Results []model.ResultRecord `json:"results"`
}

// Snapshot returns the current run state and an ordered copy of all
// records.
func (s *Scheduler) Snapshot() RunState {
	s.mu.Lock()
	state, banner := s.state, s.banner
	s.mu.Unlock()
	return RunState{
		State:   state,
		Banner:  banner,
		Paused:  s.paused.Load(),
		Results: s.store.List(),
	}
}

// SetPaused toggles the cooperative pause flag. The run loop freezes
// before the next record's analysis begins; an illustration backoff wait
// notices within one poll interval.
func (s *Scheduler) SetPaused(p bool) {
	s.paused.Store(p)
}

// Paused reports the pause flag.
func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// Clear empties the store and returns the run to IDLE. Refused while a run
// is processing.
func (s *Scheduler) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == model.RunProcessing {
		return ErrBusy
	}
	s.store.Clear()
	s.state = model.RunIdle
	s.banner = ""
	return nil
}

// LoadSession replaces the store wholesale with a previously saved
// snapshot, resets the run to IDLE and clears pause.
func (s *Scheduler) LoadSession(records []model.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == model.RunProcessing {
		return ErrBusy
	}
	s.store.Reset(records)
	s.state = model.RunIdle
	s.banner = ""
	s.paused.Store(false)
	return nil
}

// Start prepares a run from raw input and launches the run loop in the
// background. It returns once the records are seeded in WAITING state.
func (s *Scheduler) Start(ctx context.Context, input string, opts RunOptions) error {
	records, err := s.begin(input, opts)
	if err != nil {
		return err
	}
	go s.run(ctx, records, opts)
	return nil
}

// Run is the blocking form of Start, used by callers that want to wait for
// the queue to drain.
func (s *Scheduler) Run(ctx context.Context, input string, opts RunOptions) error {
	records, err := s.begin(input, opts)
	if err != nil {
		return err
	}
	s.run(ctx, records, opts)
	return nil
}

// begin normalizes, chunks and seeds the store, moving the run to
// PROCESSING. The quota breaker resets here: it is run-scoped.
func (s *Scheduler) begin(input string, opts RunOptions) ([]model.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == model.RunProcessing {
		return nil, ErrBusy
	}

	prepared := input
	if opts.OCRClean {
		prepared = text.Normalize(prepared)
	}
	segments := text.Chunk(prepared)
	if opts.SkipHeaders {
		kept := segments[:0]
		for _, seg := range segments {
			if !text.IsHeader(seg) {
				kept = append(kept, seg)
			}
		}
		segments = kept
	}
	if len(segments) == 0 {
		// Valid termination: nothing to do, stay IDLE.
		s.state = model.RunIdle
		return nil, ErrEmptyInput
	}

	records := make([]model.ResultRecord, len(segments))
	for i, seg := range segments {
		records[i] = model.NewResultRecord(opts.Mode, seg)
	}
	s.store.Reset(records)
	s.state = model.RunProcessing
	s.banner = ""
	s.lastOpts = opts
	return records, nil
}

// run is the sequential queue loop. Records are processed strictly in
// order; no record begins ANALYZING before its predecessor reached a
// terminal status for this pass.
func (s *Scheduler) run(ctx context.Context, records []model.ResultRecord, opts RunOptions) {
	slog.Info("generation run started", "records", len(records), "mode", opts.Mode)
	quotaExceeded := false

	for _, rec := range records {
		if err := s.waitWhilePaused(ctx); err != nil {
			slog.Info("generation run cancelled", "record_id", rec.ID)
			return
		}

		if quotaExceeded {
			// Breaker open: resolve the rest without touching the ports.
			s.store.Patch(rec.ID, Patch{Status: str(model.StatusError), Error: str(haltedMessage)})
			continue
		}

		err := s.processOne(ctx, rec.ID, rec.SourceText, opts)
		if err != nil {
			var re *engine.RemoteError
			if errors.As(err, &re) && re.Quota {
				quotaExceeded = true
				s.setRunError(haltedMessage)
			}
		}

		if err := s.sleep(ctx, s.interDelay); err != nil {
			return
		}
	}

	if !quotaExceeded {
		s.setState(model.RunComplete)
	}
	slog.Info("generation run finished", "quota_exceeded", quotaExceeded)
}

// processOne drives a single record through both remote stages. A returned
// error is always already recorded on the record; the caller only inspects
// it for the quota classification.
func (s *Scheduler) processOne(ctx context.Context, id, source string, opts RunOptions) error {
	s.store.Patch(id, Patch{Status: str(model.StatusAnalyzing)})
	s.monitor.Track()

	var concept *model.Concept
	err := s.retry.Do(ctx, nil, func(ctx context.Context) error {
		c, aerr := s.analyzer.Analyze(ctx, engine.AnalysisRequest{
			Segment:  source,
			Mode:     opts.Mode,
			Language: opts.Language,
		})
		if aerr != nil {
			return aerr
		}
		concept = c
		return nil
	})
	if err != nil {
		slog.Error("analysis failed", "record_id", id, "error", err)
		s.store.Patch(id, Patch{Status: str(model.StatusError), Error: str(err.Error())})
		return err
	}

	s.store.Patch(id, Patch{Status: str(model.StatusGenerating), Concept: concept})
	s.monitor.Track()

	var image string
	err = s.retry.Do(ctx, s.paused.Load, func(ctx context.Context) error {
		img, ierr := s.illustrator.Illustrate(ctx, engine.IllustrationRequest{
			Prompt:         concept.VisualPrompt,
			Mode:           opts.Mode,
			HD:             opts.HD,
			AspectRatio:    opts.AspectRatio,
			DirectTemplate: opts.DirectTemplate,
		})
		if ierr != nil {
			return ierr
		}
		image = img
		return nil
	})
	if err != nil {
		msg := err.Error()
		if errors.Is(err, engine.ErrInterrupted) {
			msg = "Generation interrupted while paused"
		}
		slog.Error("illustration failed", "record_id", id, "error", err)
		s.store.Patch(id, Patch{Status: str(model.StatusError), Error: str(msg)})
		return err
	}

	s.store.Patch(id, Patch{Status: str(model.StatusSuccess), Image: str(image), Error: str("")})
	return nil
}

// Regenerate performs the single-shot re-illustration path for one record
// using its current (possibly edited) visual prompt. One attempt, no
// retry; failure marks only this record and never touches the run state.
func (s *Scheduler) Regenerate(ctx context.Context, id string) error {
	rec, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if rec.Concept == nil || rec.Concept.VisualPrompt == "" {
		return ErrNoConcept
	}

	s.mu.Lock()
	opts := s.lastOpts
	s.mu.Unlock()

	s.store.Patch(id, Patch{Status: str(model.StatusGenerating), Error: str("")})
	s.monitor.Track()

	image, err := s.illustrator.Illustrate(ctx, engine.IllustrationRequest{
		Prompt:         rec.Concept.VisualPrompt,
		Mode:           rec.Mode,
		HD:             opts.HD,
		AspectRatio:    opts.AspectRatio,
		DirectTemplate: opts.DirectTemplate,
	})
	if err != nil {
		slog.Error("regeneration failed", "record_id", id, "error", err)
		s.store.Patch(id, Patch{Status: str(model.StatusError), Error: str("Retry failed: " + err.Error())})
		return err
	}

	s.store.Patch(id, Patch{Status: str(model.StatusSuccess), Image: str(image), Error: str("")})
	return nil
}

// waitWhilePaused blocks while the pause flag is set, polling on a fixed
// interval. The flag is plain shared state toggled by the UI; no signaling
// primitive is assumed.
func (s *Scheduler) waitWhilePaused(ctx context.Context) error {
	for s.paused.Load() {
		if err := s.sleep(ctx, s.pausePoll); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (s *Scheduler) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) setRunError(banner string) {
	s.mu.Lock()
	s.state = model.RunError
	s.banner = banner
	s.mu.Unlock()
}

func str(v string) *string { return &v }
