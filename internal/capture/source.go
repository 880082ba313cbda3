package capture

import (
	"context"
	"errors"
)

var (
	// ErrCameraUnavailable indicates no camera device could be opened
	// or the stream could not be negotiated.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrFrameNotReady indicates the stream has not produced a usable frame.
	ErrFrameNotReady = errors.New("frame not ready")
)

// Source produces still-frame snapshots from a live camera session.
// At most one session is live per Source; the workflow owns it
// exclusively and closes before reopening.
type Source interface {
	// Open acquires the camera stream and blocks until the device has
	// produced its first frame (the readiness gate). Any prior session
	// is released first.
	Open(ctx context.Context) error

	// Close stops the session and releases the device handle.
	// Idempotent: calling it with no session open is a no-op.
	Close() error

	// Frame grabs the newest frame, downsamples it proportionally so
	// width <= maxWidth, and encodes it as JPEG. Returns
	// ErrFrameNotReady if the session has not produced a frame.
	Frame(ctx context.Context, maxWidth int) ([]byte, error)

	// Ready reports whether the session has passed the readiness gate.
	Ready() bool
}
