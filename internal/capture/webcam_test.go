package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"testing"

	"github.com/blackjack/webcam"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	mu      sync.Mutex
	formats map[webcam.PixelFormat]string
	frame   []byte
	started bool
	stops   int
	closes  int
}

func (d *fakeDevice) GetSupportedFormats() map[webcam.PixelFormat]string {
	return d.formats
}

func (d *fakeDevice) SetImageFormat(f webcam.PixelFormat, width, height uint32) (webcam.PixelFormat, uint32, uint32, error) {
	return f, width, height, nil
}

func (d *fakeDevice) StartStreaming() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *fakeDevice) WaitForFrame(uint32) error { return nil }

func (d *fakeDevice) ReadFrame() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame, nil
}

func (d *fakeDevice) StopStreaming() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func withFakeDevice(t *testing.T, open func(string) (device, error)) {
	t.Helper()
	prev := openDevice
	openDevice = open
	t.Cleanup(func() { openDevice = prev })
}

func TestWebcam_OpenAndFrame(t *testing.T) {
	dev := &fakeDevice{
		formats: map[webcam.PixelFormat]string{fourccMJPEG: "MJPEG"},
		frame:   jpegFrame(t, 200, 100),
	}
	withFakeDevice(t, func(string) (device, error) { return dev, nil })

	cam := NewWebcam("/dev/video9", 1920, 1080, 70, nil)
	require.NoError(t, cam.Open(context.Background()))
	require.True(t, cam.Ready())

	data, err := cam.Frame(context.Background(), 50)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 50, img.Bounds().Dx())
	require.Equal(t, 25, img.Bounds().Dy())
}

func TestWebcam_CloseIdempotent(t *testing.T) {
	dev := &fakeDevice{
		formats: map[webcam.PixelFormat]string{fourccMJPEG: "MJPEG"},
		frame:   jpegFrame(t, 8, 8),
	}
	withFakeDevice(t, func(string) (device, error) { return dev, nil })

	cam := NewWebcam("/dev/video9", 640, 480, 70, nil)

	// closing an unopened source is a no-op
	require.NoError(t, cam.Close())

	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Close())
	require.NoError(t, cam.Close())
	require.Equal(t, 1, dev.closes)
	require.False(t, cam.Ready())
}

func TestWebcam_FrameBeforeOpen(t *testing.T) {
	cam := NewWebcam("/dev/video9", 640, 480, 70, nil)

	_, err := cam.Frame(context.Background(), 800)
	require.ErrorIs(t, err, ErrFrameNotReady)
}

func TestWebcam_OpenFailsWhenDeviceMissing(t *testing.T) {
	withFakeDevice(t, func(string) (device, error) {
		return nil, errors.New("no such device")
	})

	cam := NewWebcam("/dev/video9", 640, 480, 70, nil)
	err := cam.Open(context.Background())
	require.ErrorIs(t, err, ErrCameraUnavailable)
	require.False(t, cam.Ready())
}

func TestWebcam_OpenFailsWithoutSupportedFormat(t *testing.T) {
	dev := &fakeDevice{formats: map[webcam.PixelFormat]string{}}
	withFakeDevice(t, func(string) (device, error) { return dev, nil })

	cam := NewWebcam("/dev/video9", 640, 480, 70, nil)
	err := cam.Open(context.Background())
	require.ErrorIs(t, err, ErrCameraUnavailable)
	require.Equal(t, 1, dev.closes)
}

func TestWebcam_ReopenReleasesPreviousSession(t *testing.T) {
	var devices []*fakeDevice
	withFakeDevice(t, func(string) (device, error) {
		dev := &fakeDevice{
			formats: map[webcam.PixelFormat]string{fourccMJPEG: "MJPEG"},
			frame:   jpegFrame(t, 8, 8),
		}
		devices = append(devices, dev)
		return dev, nil
	})

	cam := NewWebcam("/dev/video9", 640, 480, 70, nil)
	require.NoError(t, cam.Open(context.Background()))
	require.NoError(t, cam.Open(context.Background()))

	require.Len(t, devices, 2)
	require.Equal(t, 1, devices[0].closes)
	require.Equal(t, 0, devices[1].closes)
	require.True(t, cam.Ready())
}
