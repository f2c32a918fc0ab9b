// Package workflow drives a single analysis from text input to classified
// result, including the usage-gate check and the delayed feedback prompt.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"truthguard/internal/detectclient"
	"truthguard/internal/errs"
	"truthguard/pkg/domain"
)

// MinWords is the minimum article length accepted for classification.
// Shorter passages give the model too little signal to be worth a call.
const MinWords = 50

// DefaultPromptDelay is how long after a successful analysis the feedback
// prompt fires, unless the workflow is cleared first.
const DefaultPromptDelay = 5 * time.Second

// State names the workflow's position in the analysis lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateBlocked    State = "blocked"
	StateFailed     State = "failed"
	StateSucceeded  State = "succeeded"
	StatePrompted   State = "prompted"
	StateAbandoned  State = "abandoned"
)

// Classifier is the remote prediction surface the workflow needs.
type Classifier interface {
	Predict(ctx context.Context, text string) (domain.AnalysisResult, error)
}

// UsageGate is consulted before each submission and recorded after each
// successful anonymous one.
type UsageGate interface {
	ShouldBlock() (bool, error)
	RecordAttempt() error
}

// SessionView exposes the only session fact the workflow cares about.
type SessionView interface {
	IsAuthenticated() bool
}

// Prompter receives the delayed feedback prompt. It is invoked outside the
// workflow lock and must not call back into the workflow synchronously.
type Prompter interface {
	Prompt(analysisID string)
}

// Workflow is the analysis state machine. One submission may be in flight
// at a time; a new analysis or an explicit Clear cancels the pending
// feedback prompt and invalidates any late-arriving completion.
type Workflow struct {
	classifier  Classifier
	gate        UsageGate
	session     SessionView
	prompter    Prompter
	promptDelay time.Duration

	mu       sync.Mutex
	state    State
	result   *domain.AnalysisResult
	inFlight bool
	gen      uint64
	timer    *time.Timer
}

// New builds a workflow. prompter may be nil when no prompt consumer exists;
// promptDelay <= 0 selects DefaultPromptDelay.
func New(classifier Classifier, gate UsageGate, session SessionView, prompter Prompter, promptDelay time.Duration) *Workflow {
	if promptDelay <= 0 {
		promptDelay = DefaultPromptDelay
	}
	return &Workflow{
		classifier:  classifier,
		gate:        gate,
		session:     session,
		prompter:    prompter,
		promptDelay: promptDelay,
		state:       StateIdle,
	}
}

// Submit runs one analysis end to end: length validation, gate check,
// classification, counter recording, and arming the feedback prompt timer.
// A second Submit while one is outstanding fails with ErrAnalysisInFlight.
func (w *Workflow) Submit(ctx context.Context, text string) (domain.AnalysisResult, error) {
	w.mu.Lock()
	if w.inFlight {
		w.mu.Unlock()
		return domain.AnalysisResult{}, errs.ErrAnalysisInFlight
	}
	if n := len(strings.Fields(text)); n < MinWords {
		w.mu.Unlock()
		return domain.AnalysisResult{}, &errs.ValidationError{
			Reason: fmt.Sprintf("please paste at least %d words of article text, got %d", MinWords, n),
		}
	}
	blocked, err := w.gate.ShouldBlock()
	if err != nil {
		w.mu.Unlock()
		return domain.AnalysisResult{}, fmt.Errorf("%w: %v", errs.ErrStateUnavailable, err)
	}
	if blocked {
		w.state = StateBlocked
		w.mu.Unlock()
		return domain.AnalysisResult{}, errs.ErrQuotaBlocked
	}
	w.cancelPromptLocked()
	w.inFlight = true
	w.state = StateSubmitting
	w.result = nil
	gen := w.gen
	w.mu.Unlock()

	result, err := w.classifier.Predict(ctx, text)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		// Cleared while the request was in flight; the completion is stale.
		return domain.AnalysisResult{}, errs.ErrAnalysisAbandoned
	}
	w.inFlight = false
	if err != nil {
		w.state = StateFailed
		return domain.AnalysisResult{}, mapClassifyFailure(err)
	}
	if result.PredictionID == "" {
		result.PredictionID = uuid.NewString()
	}
	r := result
	w.result = &r
	w.state = StateSucceeded
	if !w.session.IsAuthenticated() {
		if err := w.gate.RecordAttempt(); err != nil {
			slog.Warn("failed to record anonymous analysis", "err", err)
		}
	}
	w.armPromptLocked(result.PredictionID)
	return result, nil
}

// Clear resets the workflow to idle: the result is dropped, the pending
// prompt is truly cancelled, and any in-flight completion will be discarded
// when it lands.
func (w *Workflow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelPromptLocked()
	w.inFlight = false
	w.result = nil
	w.state = StateIdle
}

// Dismiss declines the feedback prompt. The result stays visible but no
// prompt will fire again for this analysis.
func (w *Workflow) Dismiss() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateSucceeded && w.state != StatePrompted {
		return
	}
	w.cancelPromptLocked()
	w.state = StateAbandoned
}

// State returns the current lifecycle position.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Result returns a copy of the last successful analysis, if one is held.
func (w *Workflow) Result() (domain.AnalysisResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result == nil {
		return domain.AnalysisResult{}, false
	}
	return *w.result, true
}

// armPromptLocked schedules the feedback prompt. The generation captured at
// arm time guards the fire: a Clear or a new Submit in the meantime bumps
// the generation and the fire becomes a no-op even if Stop lost the race.
func (w *Workflow) armPromptLocked(analysisID string) {
	gen := w.gen
	w.timer = time.AfterFunc(w.promptDelay, func() {
		w.onPromptFired(gen, analysisID)
	})
}

// cancelPromptLocked stops the pending timer and invalidates its generation.
func (w *Workflow) cancelPromptLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
}

func (w *Workflow) onPromptFired(gen uint64, analysisID string) {
	w.mu.Lock()
	if gen != w.gen || w.state != StateSucceeded {
		w.mu.Unlock()
		return
	}
	w.state = StatePrompted
	prompter := w.prompter
	w.mu.Unlock()
	if prompter != nil {
		prompter.Prompt(analysisID)
	}
}

// mapClassifyFailure translates a prediction failure into the error
// taxonomy: transport problems become NetworkError, a 422 becomes a
// ValidationError, and anything else with a server message surfaces
// verbatim as a ServerError.
func mapClassifyFailure(err error) error {
	var apiErr *detectclient.APIError
	if !errors.As(err, &apiErr) {
		return &errs.NetworkError{Err: err}
	}
	if apiErr.Status == 422 {
		reason := apiErr.Detail
		if reason == "" {
			reason = "the service rejected the submitted text"
		}
		return &errs.ValidationError{Reason: reason}
	}
	return &errs.ServerError{Detail: apiErr.Error()}
}
