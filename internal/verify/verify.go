// Package verify filters raw sub-agent results through an external
// cross-reference check and an internal consistency check.
package verify

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/marvin-agent/marvin/internal/task"
)

// CrossReferencer checks a result against an external lookup capability.
type CrossReferencer interface {
	CrossReference(ctx context.Context, r task.Result) (bool, error)
}

// CrossReferencerFunc adapts a function to the CrossReferencer interface.
type CrossReferencerFunc func(ctx context.Context, r task.Result) (bool, error)

func (f CrossReferencerFunc) CrossReference(ctx context.Context, r task.Result) (bool, error) {
	return f(ctx, r)
}

// outlierThreshold is the z-score above which a numeric feature fails the
// consistency check.
const outlierThreshold = 3.0

// Verifier retains only results that pass both the cross-reference and the
// consistency check. Error results never pass.
type Verifier struct {
	ref     CrossReferencer
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a verifier. A nil CrossReferencer treats every result as
// externally confirmed; a non-positive timeout disables the per-item
// deadline.
func New(ref CrossReferencer, timeout time.Duration, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{ref: ref, timeout: timeout, logger: logger}
}

// Verify checks every result concurrently, one goroutine per item, and joins
// them all before returning. The output preserves input order and is always
// a subset of the input; failing items are logged and dropped, never
// surfaced as errors.
func (v *Verifier) Verify(ctx context.Context, results []task.Result) []task.Result {
	keep := make([]bool, len(results))

	var wg sync.WaitGroup
	for i, r := range results {
		wg.Add(1)
		go func(i int, r task.Result) {
			defer wg.Done()
			keep[i] = v.verifyOne(ctx, r)
		}(i, r)
	}
	wg.Wait()

	verified := make([]task.Result, 0, len(results))
	for i, ok := range keep {
		if ok {
			verified = append(verified, results[i])
		}
	}
	v.logger.Info("verification finished", "in", len(results), "out", len(verified))
	return verified
}

func (v *Verifier) verifyOne(ctx context.Context, r task.Result) bool {
	if r.Failed() {
		v.logger.Warn("result dropped: sub-agent error", "agent", r.AgentID, "error", r.Err)
		return false
	}

	callCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	if v.ref != nil {
		ok, err := v.ref.CrossReference(callCtx, r)
		if err != nil {
			v.logger.Warn("result dropped: cross-reference error", "agent", r.AgentID, "error", err)
			return false
		}
		if !ok {
			v.logger.Warn("result dropped: cross-reference rejected", "agent", r.AgentID)
			return false
		}
	}

	if !consistent(r) {
		v.logger.Warn("result dropped: consistency check failed", "agent", r.AgentID)
		return false
	}
	return true
}

// consistent runs the internal statistical check: numeric results must have
// no feature more than outlierThreshold standard deviations from the mean;
// free text passes trivially.
func consistent(r task.Result) bool {
	features := resultFeatures(r)
	if len(features) < 2 {
		return true
	}

	mean := 0.0
	for _, v := range features {
		mean += v
	}
	mean /= float64(len(features))

	variance := 0.0
	for _, v := range features {
		d := v - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(features)))
	if stddev == 0 {
		return true
	}

	for _, v := range features {
		if math.Abs(v-mean)/stddev > outlierThreshold {
			return false
		}
	}
	return true
}

func resultFeatures(r task.Result) []float64 {
	switch p := r.Payload.(type) {
	case []float64:
		return p
	case map[string]any:
		switch f := p["features"].(type) {
		case []float64:
			return f
		case []any:
			out := make([]float64, 0, len(f))
			for _, item := range f {
				v, ok := item.(float64)
				if !ok {
					return nil
				}
				out = append(out, v)
			}
			return out
		}
	}
	return nil
}
