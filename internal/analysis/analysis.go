// Package analysis obtains the one natural-language performance assessment a
// page gets: it waits for the external text-completion capability, sends a
// single prompt built from the page's timings and shows the cleaned reply, or
// a fixed fallback when anything goes wrong.
package analysis

import (
	"context"
	"errors"
)

var (
	// ErrAnalysisUnavailable means the capability never became ready within
	// the polling ceiling.
	ErrAnalysisUnavailable = errors.New("analysis capability unavailable")
	// ErrAnalysisRequestFailed means the request was rejected or returned
	// unusable output.
	ErrAnalysisRequestFailed = errors.New("analysis request failed")
)

// Capability is an asynchronous text-completion function whose availability
// is not guaranteed.
type Capability interface {
	// Available reports whether Chat can be called now.
	Available(ctx context.Context) (bool, error)
	Chat(ctx context.Context, prompt string) (string, error)
}

// Display receives the visible analysis text.
type Display interface {
	ShowAnalysisPending(ctx context.Context)
	ShowAnalysis(ctx context.Context, text string)
}

// OutcomeKind separates the ways an analysis can end.
type OutcomeKind string

const (
	// OutcomeSkipped: an analysis was already requested for this page.
	OutcomeSkipped OutcomeKind = "skipped"
	// OutcomeAnswered: the capability replied with usable text.
	OutcomeAnswered OutcomeKind = "answered"
	// OutcomeEmpty: the request succeeded but nothing was left after cleaning.
	OutcomeEmpty OutcomeKind = "empty"
	// OutcomeUnavailable: the capability never became ready.
	OutcomeUnavailable OutcomeKind = "unavailable"
	// OutcomeFailed: the request errored.
	OutcomeFailed OutcomeKind = "failed"
	// OutcomeCanceled: the page went away while waiting.
	OutcomeCanceled OutcomeKind = "canceled"
)

// Outcome is the result of one Analyze call.
type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	Attempts int         `json:"attempts"`
	Err      error       `json:"-"`
}

// Requested reports whether this call issued (or tried to issue) the request.
func (o Outcome) Requested() bool {
	return o.Kind != OutcomeSkipped
}
