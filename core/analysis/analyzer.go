// Package analysis wraps the external feature-extraction collaborator.
//
// The extractor itself is a black box that turns an audio file into a
// fixed-length feature vector plus a tempo estimate. Everything in this
// package exists to keep a misbehaving extractor from taking the indexing
// pipeline down with it: one poisoned file becomes one recoverable error.
package analysis

import (
	"context"
	"fmt"
	"time"
)

// AnalysisErrorKind classifies per-file analysis failures.
type AnalysisErrorKind int

const (
	// Timeout means the extractor exceeded the per-file time limit.
	Timeout AnalysisErrorKind = iota
	// ExtractionFailed covers every other extractor failure, including
	// panics from native decoders.
	ExtractionFailed
)

func (k AnalysisErrorKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case ExtractionFailed:
		return "extraction_failed"
	default:
		return "unknown"
	}
}

// AnalysisError is a per-file, always recoverable failure: the pipeline logs
// it, counts it, and moves on.
type AnalysisError struct {
	Kind AnalysisErrorKind
	Path string
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis %s for %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("analysis %s for %s", e.Kind, e.Path)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Result is a successful extraction.
type Result struct {
	Vector []float32
	Tempo  float64
}

// Extractor is the external analysis collaborator. Implementations must be
// safe for concurrent use; all working state is call-local.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]float32, float64, error)
}

// Gateway is a stateless, concurrency-safe front for a shared Extractor.
// It enforces a per-call timeout and converts panics and errors into
// *AnalysisError values.
type Gateway struct {
	extractor Extractor
	timeout   time.Duration
}

// NewGateway wraps the extractor with the given per-call timeout.
func NewGateway(extractor Extractor, timeout time.Duration) *Gateway {
	return &Gateway{extractor: extractor, timeout: timeout}
}

type extractOutcome struct {
	vector []float32
	tempo  float64
	err    error
}

// Analyze runs one extraction with the gateway's timeout.
//
// A timeout yields *AnalysisError{Kind: Timeout}; any extractor error or
// panic yields *AnalysisError{Kind: ExtractionFailed}. Cancellation of the
// parent context is returned as-is so callers can tell shutdown apart from
// a poisoned file.
func (g *Gateway) Analyze(ctx context.Context, path string) (Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan extractOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extractOutcome{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		vec, tempo, err := g.extractor.Extract(callCtx, path)
		done <- extractOutcome{vector: vec, tempo: tempo, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result{}, &AnalysisError{Kind: ExtractionFailed, Path: path, Err: out.err}
		}
		if len(out.vector) == 0 {
			return Result{}, &AnalysisError{Kind: ExtractionFailed, Path: path, Err: fmt.Errorf("extractor returned empty vector")}
		}
		return Result{Vector: out.vector, Tempo: out.tempo}, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// Parent cancelled: shutdown, not a per-file failure.
			return Result{}, ctx.Err()
		}
		return Result{}, &AnalysisError{Kind: Timeout, Path: path, Err: callCtx.Err()}
	}
}
