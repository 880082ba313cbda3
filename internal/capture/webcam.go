package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/blackjack/webcam"
)

// Pixel formats negotiated with the device, in preference order.
const (
	fourccMJPEG = webcam.PixelFormat(0x47504A4D) // 'MJPG'
	fourccYUYV  = webcam.PixelFormat(0x56595559) // 'YUYV'
)

const firstFrameTimeout = 10 * time.Second

// device is the slice of *webcam.Webcam the source depends on. Tests
// substitute a fake so no hardware is needed.
type device interface {
	GetSupportedFormats() map[webcam.PixelFormat]string
	SetImageFormat(f webcam.PixelFormat, width, height uint32) (webcam.PixelFormat, uint32, uint32, error)
	StartStreaming() error
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	StopStreaming() error
	Close() error
}

// openDevice is swapped in tests.
var openDevice = func(path string) (device, error) {
	return webcam.Open(path)
}

// Webcam is a V4L2-backed Source.
type Webcam struct {
	devicePath string
	width      uint32
	height     uint32
	quality    int
	logger     *slog.Logger

	mu     sync.Mutex
	dev    device
	format webcam.PixelFormat
	frameW uint32
	frameH uint32
	ready  bool
}

// NewWebcam creates a Source over the given V4L2 device path with an
// ideal resolution; the device may negotiate a different size.
func NewWebcam(devicePath string, width, height uint32, quality int, logger *slog.Logger) *Webcam {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webcam{
		devicePath: devicePath,
		width:      width,
		height:     height,
		quality:    quality,
		logger:     logger,
	}
}

// Open acquires the camera, negotiates a pixel format, starts streaming,
// and waits for the first frame. Any prior session is released first.
func (w *Webcam) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closeLocked()

	dev, err := openDevice(w.devicePath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrCameraUnavailable, w.devicePath, err)
	}

	format, err := pickFormat(dev.GetSupportedFormats())
	if err != nil {
		_ = dev.Close()
		return err
	}

	f, fw, fh, err := dev.SetImageFormat(format, w.width, w.height)
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("%w: negotiating format: %v", ErrCameraUnavailable, err)
	}

	if err := dev.StartStreaming(); err != nil {
		_ = dev.Close()
		return fmt.Errorf("%w: starting stream: %v", ErrCameraUnavailable, err)
	}

	w.dev = dev
	w.format = f
	w.frameW = fw
	w.frameH = fh

	if err := w.waitFirstFrameLocked(ctx); err != nil {
		w.closeLocked()
		return err
	}
	w.ready = true

	w.logger.Info("camera session open",
		"device", w.devicePath, "width", fw, "height", fh)
	return nil
}

// Close stops streaming and releases the device. Safe to call twice.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
	return nil
}

// Ready reports whether the session has produced a frame.
func (w *Webcam) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dev != nil && w.ready
}

// Frame grabs the newest frame and returns it as a downsampled JPEG.
func (w *Webcam) Frame(ctx context.Context, maxWidth int) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dev == nil || !w.ready {
		return nil, ErrFrameNotReady
	}

	raw, err := w.readFrameLocked(ctx)
	if err != nil {
		return nil, err
	}

	img, err := w.decodeLocked(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	return encodeFrame(img, maxWidth, w.quality)
}

func (w *Webcam) closeLocked() {
	if w.dev == nil {
		return
	}
	_ = w.dev.StopStreaming()
	_ = w.dev.Close()
	w.dev = nil
	w.ready = false
	w.logger.Info("camera session released", "device", w.devicePath)
}

func (w *Webcam) waitFirstFrameLocked(ctx context.Context) error {
	deadline := time.Now().Add(firstFrameTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no frame within %s", ErrCameraUnavailable, firstFrameTimeout)
		}

		err := w.dev.WaitForFrame(1)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("%w: waiting for first frame: %v", ErrCameraUnavailable, err)
		}
		if _, err := w.dev.ReadFrame(); err != nil {
			return fmt.Errorf("%w: reading first frame: %v", ErrCameraUnavailable, err)
		}
		return nil
	}
}

func (w *Webcam) readFrameLocked(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := w.dev.WaitForFrame(1)
		if err != nil {
			if isTimeout(err) {
				return nil, ErrFrameNotReady
			}
			return nil, fmt.Errorf("waiting for frame: %w", err)
		}

		frame, err := w.dev.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("reading frame: %w", err)
		}
		if len(frame) == 0 {
			return nil, ErrFrameNotReady
		}
		return frame, nil
	}
}

func (w *Webcam) decodeLocked(raw []byte) (image.Image, error) {
	switch w.format {
	case fourccMJPEG:
		return jpeg.Decode(bytes.NewReader(raw))
	case fourccYUYV:
		return yuyvToImage(raw, int(w.frameW), int(w.frameH))
	default:
		return nil, fmt.Errorf("unsupported pixel format %d", w.format)
	}
}

func pickFormat(supported map[webcam.PixelFormat]string) (webcam.PixelFormat, error) {
	if _, ok := supported[fourccMJPEG]; ok {
		return fourccMJPEG, nil
	}
	if _, ok := supported[fourccYUYV]; ok {
		return fourccYUYV, nil
	}
	return 0, fmt.Errorf("%w: no MJPEG or YUYV format on device", ErrCameraUnavailable)
}

func isTimeout(err error) bool {
	_, ok := err.(*webcam.Timeout)
	return ok
}
