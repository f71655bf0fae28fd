package task

import "errors"

var (
	// ErrTaskInFlight is returned by Submit while another task is current.
	ErrTaskInFlight = errors.New("a task is already in flight")
	// ErrUnknownRecommendation marks a recommendation whose kind has no
	// registered sub-agent variant.
	ErrUnknownRecommendation = errors.New("unknown recommendation kind")
	// ErrAccessDenied is returned by shared memory when the ACL denies an
	// operation.
	ErrAccessDenied = errors.New("access denied")
)

// NoValidResultText is the sentinel decision text used when no verified
// result survived the pipeline.
const NoValidResultText = "No valid results to decide upon."

// DisclaimerText replaces a decision the hallucination monitor flagged.
const DisclaimerText = "Result may contain inaccuracies due to detected hallucinations."
