package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baydersh/markscan/internal/testserver"
)

func postJSON(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp.StatusCode, decoded
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp.StatusCode, decoded
}

func TestCaptureConfirmSaveExport(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		Barcode:  "12345",
		MarkBody: `{"mark": 85}`,
	})

	status, body := postJSON(t, ts.Server.URL+"/api/capture", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "full", body["status"])
	require.Equal(t, "12345", body["student_id"])
	require.Equal(t, "85", body["mark"])
	require.True(t, strings.HasPrefix(body["frame"].(string), "data:image/jpeg;base64,"))

	status, body = postJSON(t, ts.Server.URL+"/api/save", "{}")
	require.Equal(t, http.StatusOK, status)
	saved := body["entry"].(map[string]any)
	require.Equal(t, "12345", saved["studentId"])
	require.Equal(t, float64(85), saved["mark"])

	status, body = getJSON(t, ts.Server.URL+"/api/entries")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), body["count"])
	views := body["entries"].([]any)
	first := views[0].(map[string]any)
	require.Equal(t, "B", first["band"])
	require.Equal(t, float64(1), first["position"])

	resp, err := http.Get(ts.Server.URL + "/api/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), `filename="marks-`)
	csv, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(csv), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Student ID,Mark,Timestamp", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "12345,85,"))
}

func TestSaveWithOverrideMark(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		Barcode:  "12345",
		MarkBody: `{"mark": 85}`,
	})

	status, _ := postJSON(t, ts.Server.URL+"/api/capture", "")
	require.Equal(t, http.StatusOK, status)

	status, body := postJSON(t, ts.Server.URL+"/api/save", `{"mark":"92"}`)
	require.Equal(t, http.StatusOK, status)
	saved := body["entry"].(map[string]any)
	require.Equal(t, float64(92), saved["mark"])
}

func TestSaveRejectsNonStringOverrideMark(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		Barcode:  "12345",
		MarkBody: `{"mark": 85}`,
	})

	status, _ := postJSON(t, ts.Server.URL+"/api/capture", "")
	require.Equal(t, http.StatusOK, status)

	// a numeric mark must not fall back to the detected value
	status, body := postJSON(t, ts.Server.URL+"/api/save", `{"mark": 40}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "bad_request", body["error"])
	require.Equal(t, 0, ts.Entries.Count())

	// the review survives the rejection; the corrected save goes through
	status, body = postJSON(t, ts.Server.URL+"/api/save", `{"mark":"40"}`)
	require.Equal(t, http.StatusOK, status)
	saved := body["entry"].(map[string]any)
	require.Equal(t, float64(40), saved["mark"])
}

func TestUnauthorizedDetectorYieldsPartial(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		Barcode:    "98765",
		MarkStatus: http.StatusUnauthorized,
		MarkBody:   `{"error":"bad key"}`,
	})

	status, body := postJSON(t, ts.Server.URL+"/api/capture", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "partial", body["status"])
	require.Equal(t, "98765", body["student_id"])
	require.Nil(t, body["mark"])
	require.Equal(t, "detection_unauthorized", body["mark_error"])

	// the barcode alone is enough to save with a manual mark
	status, saveBody := postJSON(t, ts.Server.URL+"/api/save", `{"mark":"70"}`)
	require.Equal(t, http.StatusOK, status)
	saved := saveBody["entry"].(map[string]any)
	require.Equal(t, float64(70), saved["mark"])
}

func TestSaveWithoutBarcodeRejected(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		MarkBody: `{"mark": 85}`,
	})

	status, body := postJSON(t, ts.Server.URL+"/api/capture", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "partial", body["status"])
	require.Nil(t, body["student_id"])

	status, body = postJSON(t, ts.Server.URL+"/api/save", "{}")
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "missing_student_id", body["error"])

	// rescan recovers the workflow for the next attempt
	status, body = postJSON(t, ts.Server.URL+"/api/rescan", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "live", body["state"])
}

func TestCameraRestartsBetweenCycles(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		Barcode:  "12345",
		MarkBody: `{"mark": 85}`,
	})
	require.Equal(t, 1, ts.Camera.Opens)

	status, _ := postJSON(t, ts.Server.URL+"/api/capture", "")
	require.Equal(t, http.StatusOK, status)
	status, _ = postJSON(t, ts.Server.URL+"/api/save", "{}")
	require.Equal(t, http.StatusOK, status)

	// save tears the session down before bringing it back up
	require.Equal(t, 2, ts.Camera.Opens)
	require.Equal(t, 1, ts.Camera.Closes)

	status, _ = postJSON(t, ts.Server.URL+"/api/capture", "")
	require.Equal(t, http.StatusOK, status)
	status, _ = postJSON(t, ts.Server.URL+"/api/rescan", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 3, ts.Camera.Opens)
	require.Equal(t, 2, ts.Camera.Closes)
}

func TestEntriesPersistAcrossServiceRestart(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		Barcode:  "12345",
		MarkBody: `{"mark": 85}`,
	})

	status, _ := postJSON(t, ts.Server.URL+"/api/capture", "")
	require.Equal(t, http.StatusOK, status)
	status, _ = postJSON(t, ts.Server.URL+"/api/save", "{}")
	require.Equal(t, http.StatusOK, status)

	reloaded := testserver.ReloadEntries(t, ts)
	require.Equal(t, 1, reloaded.Count())
	require.Equal(t, "12345", reloaded.All()[0].StudentID)
}

func TestInvalidStateTransitionsRejected(t *testing.T) {
	ts := testserver.New(t, testserver.Options{
		Barcode:  "12345",
		MarkBody: `{"mark": 85}`,
	})

	// save and rescan both require a review in progress
	status, body := postJSON(t, ts.Server.URL+"/api/save", "{}")
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "invalid_state", body["error"])

	status, body = postJSON(t, ts.Server.URL+"/api/rescan", "")
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "invalid_state", body["error"])
}
