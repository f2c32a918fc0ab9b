// Package app wires the client components together behind one facade used
// by the CLI commands.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"truthguard/internal/authclient"
	"truthguard/internal/config"
	"truthguard/internal/detectclient"
	"truthguard/internal/errs"
	"truthguard/internal/feedback"
	"truthguard/internal/gate"
	"truthguard/internal/history"
	"truthguard/internal/newsfeed"
	"truthguard/internal/session"
	"truthguard/internal/store"
	"truthguard/internal/workflow"
	"truthguard/pkg/domain"
)

// Options configures App construction. Store, when set, overrides the
// backend named in the config; tests use it to inject a memory store.
type Options struct {
	Config       config.FileConfig
	Store        store.StateStore
	Identity     session.IdentityClient
	Classifier   workflow.Classifier
	PromptNotify func(analysisID string)
}

// App is the assembled client. All CLI commands go through its methods.
type App struct {
	cfg       config.FileConfig
	store     store.StateStore
	sessions  *session.Manager
	gate      *gate.Gate
	workflow  *workflow.Workflow
	collector *feedback.Collector
	detect    *detectclient.Client
	news      *newsfeed.Aggregator
	history   *history.Store
}

type promptFunc func(string)

func (f promptFunc) Prompt(id string) { f(id) }

// New builds the app from config: state store, API clients, session
// manager, usage gate, workflow, and feedback collector, restored from
// whatever the store holds.
func New(opts Options) (*App, error) {
	cfg := opts.Config

	st := opts.Store
	if st == nil {
		var err error
		st, err = openStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	detect := detectclient.NewClient(cfg.APIBaseURL)

	identity := opts.Identity
	if identity == nil {
		identity = authclient.NewClient(cfg.APIBaseURL)
	}
	var classifier workflow.Classifier = detect
	if opts.Classifier != nil {
		classifier = opts.Classifier
	}

	sessions := session.NewManager(st, identity)
	g := gate.New(st, sessions.IsAuthenticated)
	sessions.BindUsageGate(g)
	sessions.Restore()

	collector := feedback.NewCollector(sessions, detect)

	delay, err := config.ParseFeedbackPromptDelay(cfg.FeedbackPromptDelay)
	if err != nil {
		return nil, err
	}
	notify := opts.PromptNotify
	var prompter workflow.Prompter
	if notify != nil {
		prompter = promptFunc(notify)
	}
	wf := workflow.New(classifier, g, sessions, prompter, delay)

	a := &App{
		cfg:       cfg,
		store:     st,
		sessions:  sessions,
		gate:      g,
		workflow:  wf,
		collector: collector,
		detect:    detect,
		news:      newsfeed.NewAggregator(cfg.RSSFeeds),
	}

	if cfg.HistoryDatabaseURL != "" {
		h, err := history.Open(cfg.HistoryDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		a.history = h
	}
	return a, nil
}

func openStore(cfg config.FileConfig) (store.StateStore, error) {
	switch cfg.StateBackend {
	case "file", "":
		dir, err := resolveStateDir(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		return store.NewFileStore(dir)
	case "badger":
		dir, err := resolveStateDir(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		return store.NewBadgerStore(dir)
	case "redis":
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword), nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

// resolveStateDir expands a leading ~ and defaults to ~/.truthguard.
func resolveStateDir(dir string) (string, error) {
	if dir == "" {
		dir = "~/.truthguard"
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(dir, "~"), "/")), nil
	}
	return dir, nil
}

// Session returns the current session snapshot.
func (a *App) Session() domain.Session { return a.sessions.Session() }

// IsAuthenticated reports whether a full credential pair is held.
func (a *App) IsAuthenticated() bool { return a.sessions.IsAuthenticated() }

// RemainingGuestAnalyses reports how many anonymous analyses are left.
func (a *App) RemainingGuestAnalyses() (int, error) {
	n, err := a.gate.Count()
	if err != nil {
		return 0, err
	}
	if n >= gate.GuestLimit {
		return 0, nil
	}
	return gate.GuestLimit - n, nil
}

// Login authenticates and establishes a session.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, error) {
	return a.sessions.Login(ctx, email, password)
}

// Signup registers a new account and establishes a session.
func (a *App) Signup(ctx context.Context, email, password, name string) (domain.User, error) {
	return a.sessions.Signup(ctx, email, password, name)
}

// Logout clears the session. The guest usage counter is untouched.
func (a *App) Logout() { a.sessions.Logout() }

// Refresh renews the session token.
func (a *App) Refresh(ctx context.Context) error { return a.sessions.Refresh(ctx) }

// RequestPasswordReset starts the email reset flow.
func (a *App) RequestPasswordReset(ctx context.Context, email string) error {
	return a.sessions.RequestPasswordReset(ctx, email)
}

// ResetPassword redeems a reset token with a new password.
func (a *App) ResetPassword(ctx context.Context, token, newPassword string) error {
	return a.sessions.ResetPassword(ctx, token, newPassword)
}

// TokenExpiry reports the current token's expiry when knowable.
func (a *App) TokenExpiry() (time.Time, bool) { return a.sessions.TokenExpiry() }

// Analyze runs one analysis through the workflow. For signed-in users the
// result also lands in the history store, best-effort.
func (a *App) Analyze(ctx context.Context, text string) (domain.AnalysisResult, error) {
	result, err := a.workflow.Submit(ctx, text)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	if a.history != nil {
		if sess := a.sessions.Session(); sess.IsAuthenticated() {
			raw, _ := json.Marshal(result)
			if err := a.history.SaveAnalysis(ctx, sess.User.ID, excerpt(text), result, raw); err != nil {
				slog.Warn("failed to record analysis in history", "err", err)
			}
		}
	}
	return result, nil
}

// ClearAnalysis resets the workflow and cancels any pending feedback prompt.
func (a *App) ClearAnalysis() { a.workflow.Clear() }

// DismissPrompt declines the feedback prompt for the current analysis.
func (a *App) DismissPrompt() { a.workflow.Dismiss() }

// AnalysisState returns the workflow's lifecycle position.
func (a *App) AnalysisState() workflow.State { return a.workflow.State() }

// LastResult returns the held analysis result, if any.
func (a *App) LastResult() (domain.AnalysisResult, bool) { return a.workflow.Result() }

// PromptForRating reports whether the feedback prompt can proceed to
// collecting a rating. Guests get the sign-in-required error here, before
// any rating is asked for.
func (a *App) PromptForRating(analysisID string) error {
	return a.collector.Prompt(analysisID)
}

// Rate submits a rating for an analysis and mirrors it into history.
func (a *App) Rate(ctx context.Context, analysisID string, rating int) error {
	if err := a.collector.Submit(ctx, analysisID, rating); err != nil {
		return err
	}
	if a.history != nil {
		if err := a.history.RecordRating(ctx, analysisID, rating); err != nil {
			slog.Warn("failed to record rating in history", "err", err)
		}
	}
	return nil
}

// News returns current headlines: the API's curated list when reachable,
// otherwise the configured RSS sources.
func (a *App) News(ctx context.Context) ([]domain.NewsItem, error) {
	items, err := a.detect.News(ctx)
	if err == nil && len(items) > 0 {
		return items, nil
	}
	if err != nil {
		slog.Warn("news endpoint unavailable, falling back to RSS", "err", err)
	}
	return a.news.Fetch(ctx)
}

// History lists the signed-in user's stored analyses, newest first.
func (a *App) History(ctx context.Context, limit int) ([]history.Record, error) {
	sess := a.sessions.Session()
	if !sess.IsAuthenticated() {
		return nil, &errs.AuthError{Reason: errs.AuthMissingCredential, Message: "sign in to view your history"}
	}
	if a.history == nil {
		return nil, fmt.Errorf("history is not configured")
	}
	return a.history.ListByUser(ctx, sess.User.ID, limit)
}

// Close releases the state store and, when open, the history database.
func (a *App) Close() error {
	var firstErr error
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func excerpt(text string) string {
	const max = 200
	if len(text) <= max {
		return text
	}
	return text[:max]
}
