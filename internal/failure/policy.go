package failure

type Mode string

const (
	// ModeContinue records failed items and proceeds, until the failure
	// rate trips the circuit breaker.
	ModeContinue Mode = "continue"

	// ModeAbort ends the run on the first failed item.
	ModeAbort Mode = "abort"
)

// Policy decides how a run reacts to item failures. It is applied
// uniformly to every kind of run.
type Policy struct {
	Mode           Mode
	MaxFailureRate float64
	MinSamples     int
}

func (config Config) Policy() Policy {
	return Policy{Mode: config.Mode, MaxFailureRate: config.MaxFailureRate, MinSamples: config.MinSamples}
}

// ShouldAbort returns true if the run must stop immediately.
func (policy Policy) ShouldAbort(failed int) bool {
	return policy.Mode == ModeAbort && failed > 0
}

// Exceeded returns true once enough items have been processed for the failure
// rate to be meaningful, and that rate is above the configured maximum.
func (policy Policy) Exceeded(processed int, failed int) bool {
	if processed <= 0 || processed < policy.MinSamples {
		return false
	}

	return Rate(processed, failed) > policy.MaxFailureRate
}

func Rate(processed int, failed int) float64 {
	if processed <= 0 {
		return 0
	}

	return float64(failed) / float64(processed)
}
