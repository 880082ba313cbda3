package workflow

import (
	"context"

	"github.com/baydersh/markscan/internal/detect"
)

// Detector is the detection gateway port the workflow drives.
type Detector interface {
	DetectBoth(ctx context.Context, img []byte) detect.Outcome
}
