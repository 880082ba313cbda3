package detect

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Status classifies a capture-and-detect cycle for operator feedback.
type Status string

const (
	StatusFull    Status = "full"
	StatusPartial Status = "partial"
	StatusNone    Status = "none"
)

// Outcome carries both detection channels. Each is independently present
// or absent; MarkErr records why the mark channel resolved to absent
// when it failed outright (unreachable, unauthorized, timed out).
type Outcome struct {
	StudentID *string
	Mark      *string
	Raw       string
	MarkErr   error
}

// Status reports whether both, one, or neither channel resolved.
func (o Outcome) Status() Status {
	switch {
	case o.StudentID != nil && o.Mark != nil:
		return StatusFull
	case o.StudentID != nil || o.Mark != nil:
		return StatusPartial
	default:
		return StatusNone
	}
}

// Gateway runs both detection channels over one frame snapshot.
type Gateway struct {
	barcodes BarcodeDecoder
	marks    MarkDetector
	logger   *slog.Logger
}

// NewGateway creates a detection gateway.
func NewGateway(barcodes BarcodeDecoder, marks MarkDetector, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{barcodes: barcodes, marks: marks, logger: logger}
}

// DetectBoth launches barcode decode and mark detection concurrently and
// joins on both completions. This is a join, not a race: a failing
// channel resolves to absent and never suppresses the other, so total
// latency is the max of the two calls, not the sum.
func (g *Gateway) DetectBoth(ctx context.Context, img []byte) Outcome {
	var out Outcome
	var grp errgroup.Group

	grp.Go(func() error {
		code, ok, err := g.barcodes.Decode(ctx, img)
		if err != nil {
			g.logger.Warn("barcode decode error", "error", err)
			return nil
		}
		if ok && code != "" {
			out.StudentID = &code
		}
		return nil
	})

	grp.Go(func() error {
		res, err := g.marks.Detect(ctx, img)
		if err != nil {
			out.MarkErr = err
			g.logger.Warn("mark detection error", "error", err)
			return nil
		}
		out.Raw = res.Raw
		if res.OK {
			v := res.Value
			out.Mark = &v
		}
		return nil
	})

	// Goroutines never return errors; Wait is purely the join barrier.
	_ = grp.Wait()
	return out
}
