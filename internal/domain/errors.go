package domain

import "errors"

var (
	// ErrDataUnavailable means a market data fetch failed; the next scheduled pass retries.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrScoringFailure means a single coin could not be scored.
	ErrScoringFailure = errors.New("scoring failed")
	// ErrModelNotInitialized is returned when scoring is requested before models are loaded.
	ErrModelNotInitialized = errors.New("models not initialized")
	// ErrSubsystemCritical marks a required subsystem reported as critical.
	ErrSubsystemCritical = errors.New("subsystem critical")
	// ErrRecoveryExhausted means the recovery fuse has tripped and needs an explicit reset.
	ErrRecoveryExhausted = errors.New("maximum recovery attempts reached")
)
