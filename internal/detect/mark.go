package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxResponseBytes = 1 << 20

// MarkDetector turns an image into a candidate mark.
type MarkDetector interface {
	Detect(ctx context.Context, img []byte) (MarkResult, error)
}

// MarkResult is the normalized detection response: either a mark value,
// or absent with an optional diagnostic raw answer from the model.
type MarkResult struct {
	Value string
	OK    bool
	Raw   string
}

// markResponse is the endpoint's wire format. Mark may arrive as a
// number or a string; raw_response carries the model's unparsed answer
// when no mark could be extracted.
type markResponse struct {
	Mark        *markValue `json:"mark"`
	RawResponse string     `json:"raw_response"`
}

type markValue string

func (v *markValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = markValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = markValue(n.String())
	return nil
}

// HTTPMarkDetector calls the remote mark inference endpoint.
type HTTPMarkDetector struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPMarkDetector creates a detector with a bounded per-call wait.
func NewHTTPMarkDetector(url, token string, timeout time.Duration, logger *slog.Logger) *HTTPMarkDetector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPMarkDetector{
		url:     url,
		token:   token,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Detect posts the frame as a base64 data URL and reads the structured
// response. 401 surfaces as ErrUnauthorized; any other non-success
// status is an absent result, logged but not an error.
func (d *HTTPMarkDetector) Detect(ctx context.Context, img []byte) (MarkResult, error) {
	body, err := json.Marshal(map[string]string{"image": DataURL(img)})
	if err != nil {
		return MarkResult{}, fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return MarkResult{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return MarkResult{}, ErrTimeout
		}
		return MarkResult{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return MarkResult{}, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Warn("mark detection failed", "status", resp.StatusCode)
		return MarkResult{}, nil
	}

	var parsed markResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		d.logger.Warn("mark detection returned malformed body", "error", err)
		return MarkResult{}, nil
	}

	if parsed.Mark == nil || *parsed.Mark == "" {
		if parsed.RawResponse != "" {
			d.logger.Warn("mark detection returned no mark", "raw", parsed.RawResponse)
		}
		return MarkResult{Raw: parsed.RawResponse}, nil
	}
	return MarkResult{Value: string(*parsed.Mark), OK: true}, nil
}

// DataURL encodes a JPEG frame the way the endpoint expects it.
func DataURL(img []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)
}
