package attempt

// Retake is the retake-eligibility verdict shown on the certificate page.
type Retake struct {
	CanRetake         bool `json:"can_retake"`
	RemainingAttempts int  `json:"remaining_attempts"`
}

// CanAttempt never caps or truncates; starting an attempt with CanRetake false
// is rejected by the service with an AttemptLimitError.
func CanAttempt(priorAttempts, maxAttempts int) Retake {
	remaining := maxAttempts - priorAttempts
	if remaining < 0 {
		remaining = 0
	}
	return Retake{CanRetake: remaining > 0, RemainingAttempts: remaining}
}
