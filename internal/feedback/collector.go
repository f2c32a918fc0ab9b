// Package feedback submits user ratings for completed analyses.
package feedback

import (
	"context"
	"errors"
	"fmt"

	"truthguard/internal/detectclient"
	"truthguard/internal/errs"
)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// TokenSource yields the current bearer token, when one exists.
type TokenSource interface {
	Token() (string, bool)
}

// Submitter is the remote feedback surface.
type Submitter interface {
	SubmitFeedback(ctx context.Context, token, analysisID string, rating int) error
}

// Collector validates and forwards analysis ratings. Rating is a registered
// users' feature: without a session token no network call is made.
type Collector struct {
	tokens TokenSource
	remote Submitter
}

// NewCollector builds a collector over the given token source and client.
func NewCollector(tokens TokenSource, remote Submitter) *Collector {
	return &Collector{tokens: tokens, remote: remote}
}

// CanRate reports whether a rating would currently be accepted.
func (c *Collector) CanRate() bool {
	_, ok := c.tokens.Token()
	return ok
}

// Prompt checks whether the feedback prompt for this analysis can proceed
// to a rating. Guests get the sign-in-required error before any UI opens.
func (c *Collector) Prompt(analysisID string) error {
	if analysisID == "" {
		return &errs.ValidationError{Reason: "no analysis to rate"}
	}
	if !c.CanRate() {
		return &errs.AuthError{Reason: errs.AuthMissingCredential, Message: "sign in to rate analyses"}
	}
	return nil
}

// Submit sends one rating for the given analysis. The rating range and the
// analysis id are checked locally; authentication is checked before any
// network traffic.
func (c *Collector) Submit(ctx context.Context, analysisID string, rating int) error {
	if analysisID == "" {
		return &errs.ValidationError{Reason: "no analysis to rate"}
	}
	if rating < MinRating || rating > MaxRating {
		return &errs.ValidationError{
			Reason: fmt.Sprintf("rating must be between %d and %d, got %d", MinRating, MaxRating, rating),
		}
	}
	token, ok := c.tokens.Token()
	if !ok {
		return &errs.AuthError{Reason: errs.AuthMissingCredential, Message: "sign in to rate analyses"}
	}
	if err := c.remote.SubmitFeedback(ctx, token, analysisID, rating); err != nil {
		return mapSubmitFailure(err)
	}
	return nil
}

// mapSubmitFailure translates a feedback service failure: a rejected
// credential and a malformed payload keep their kinds, a structured server
// message surfaces verbatim, and anything else collapses into the generic
// submission failure.
func mapSubmitFailure(err error) error {
	var apiErr *detectclient.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", errs.ErrSubmissionFailed, err)
	}
	switch {
	case apiErr.Status == 401 || apiErr.Status == 403:
		return &errs.AuthError{Reason: errs.AuthExpiredCredential, Message: "session expired, please sign in again"}
	case apiErr.Status == 422:
		reason := apiErr.Detail
		if reason == "" {
			reason = "the service rejected the rating"
		}
		return &errs.ValidationError{Reason: reason}
	case apiErr.Detail != "":
		return &errs.ServerError{Detail: apiErr.Detail}
	default:
		return fmt.Errorf("%w: status %d", errs.ErrSubmissionFailed, apiErr.Status)
	}
}
