package subagent

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/marvin-agent/marvin/internal/task"
)

// analysisAgent computes descriptive statistics over the task's numeric
// payload. Its result keeps the raw features so downstream verification can
// run consistency checks against them.
type analysisAgent struct {
	id string
}

func (a *analysisAgent) ID() string { return a.id }

func (a *analysisAgent) Kind() Kind { return KindDataAnalysis }

func (a *analysisAgent) PerformTask(ctx context.Context, t task.Task) (any, error) {
	data := t.Floats("data")
	if len(data) == 0 {
		return nil, errors.New("task payload has no numeric data")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mean := 0.0
	minV, maxV := data[0], data[0]
	for _, v := range data {
		mean += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mean /= float64(len(data))

	variance := 0.0
	for _, v := range data {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(data))
	stddev := math.Sqrt(variance)

	return map[string]any{
		"count":    float64(len(data)),
		"mean":     mean,
		"stddev":   stddev,
		"min":      minV,
		"max":      maxV,
		"features": data,
		"summary": fmt.Sprintf("Analyzed %d data points: mean %.4f, stddev %.4f, range [%.4f, %.4f].",
			len(data), mean, stddev, minV, maxV),
	}, nil
}
