package testserver

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baydersh/markscan/internal/capture"
	"github.com/baydersh/markscan/internal/detect"
	"github.com/baydersh/markscan/internal/domain/entry"
	"github.com/baydersh/markscan/internal/domain/workflow"
	"github.com/baydersh/markscan/internal/sqlite"
	"github.com/baydersh/markscan/internal/transport"
)

// Options configure the stubbed detection channels.
type Options struct {
	Barcode    string // decoded symbol; "" means none detected
	MarkStatus int    // HTTP status the mark endpoint answers with
	MarkBody   string // JSON body of the mark endpoint answer
}

// TestServer assembles the whole service against an in-memory database,
// a stub camera, and a stub mark endpoint.
type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Entries  *entry.Service
	Workflow *workflow.Service
	Camera   *StubCamera
}

func New(t *testing.T, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	markSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := opts.MarkStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, opts.MarkBody)
	}))

	entries := entry.NewService(sqlite.NewEntryRepository(db), nil)
	entries.Load(context.Background())

	camera := NewStubCamera(FrameJPEG(t))
	gateway := detect.NewGateway(
		fixedDecoder{code: opts.Barcode},
		detect.NewHTTPMarkDetector(markSrv.URL, "", 5*time.Second, nil),
		nil,
	)
	wf := workflow.NewService(camera, gateway, entries, 800, nil)
	require.NoError(t, wf.Start(context.Background()))

	router := transport.NewRouter(wf, entries, nil, transport.SecureContextMiddleware)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		markSrv.Close()
		_ = wf.Close()
		_ = db.Close()
	})

	return &TestServer{
		Server:   server,
		DB:       db,
		Entries:  entries,
		Workflow: wf,
		Camera:   camera,
	}
}

// ReloadEntries builds a fresh entry service over the same database,
// simulating a process restart against the persisted log.
func ReloadEntries(t *testing.T, ts *TestServer) *entry.Service {
	t.Helper()
	svc := entry.NewService(sqlite.NewEntryRepository(ts.DB), nil)
	svc.Load(context.Background())
	return svc
}

// FrameJPEG returns a small canned JPEG frame.
func FrameJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(10, 10, color.Black)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// StubCamera is an in-memory capture.Source producing one canned frame.
type StubCamera struct {
	mu     sync.Mutex
	open   bool
	frame  []byte
	Opens  int
	Closes int
}

func NewStubCamera(frame []byte) *StubCamera {
	return &StubCamera{frame: frame}
}

func (c *StubCamera) Open(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.Opens++
	return nil
}

func (c *StubCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		c.Closes++
	}
	c.open = false
	return nil
}

func (c *StubCamera) Frame(_ context.Context, _ int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, capture.ErrFrameNotReady
	}
	return c.frame, nil
}

func (c *StubCamera) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

type fixedDecoder struct {
	code string
}

func (d fixedDecoder) Decode(context.Context, []byte) (string, bool, error) {
	if d.code == "" {
		return "", false, nil
	}
	return d.code, true, nil
}
