package simulation

import "errors"

var (
	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid simulation config")

	// ErrFrameOutOfRange is returned for a step index outside [0, Steps).
	ErrFrameOutOfRange = errors.New("frame index out of range")

	// ErrFrameNotReady is returned for a step that has not been simulated yet.
	ErrFrameNotReady = errors.New("frame not ready")

	// ErrFrameOutOfOrder is returned when a frame is appended at the wrong index.
	ErrFrameOutOfOrder = errors.New("frame appended out of order")
)
