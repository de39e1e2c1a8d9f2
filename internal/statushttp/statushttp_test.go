/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package statushttp

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	core := watch.NewSupervisor(t.TempDir(), 1, logrus.NewEntry(log))
	rec := core.AddWatch(&watch.Spec{Name: "web", Start: []string{"/bin/true"}})
	rec.SetPID(4821)
	rec.SetState(watch.StateRunning)
	return New(core, Options{Addr: "127.0.0.1:0"}, logrus.NewEntry(log))
}

func TestStatusSnapshot(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/status", nil)
	rr := httptest.NewRecorder()
	srv.handleStatus(rr, req)

	require.Equal(t, 200, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var out []watchStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, watchStatus{Name: "web", State: "RUNNING", PID: 4821}, out[0])
}

func TestStatusGzipNegotiation(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	srv.handleStatus(rr, req)

	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))

	gr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gr)
	require.NoError(t, err)

	var out []watchStatus
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out, 1)
}

func TestStatusBrotliPreferred(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	rr := httptest.NewRecorder()
	srv.handleStatus(rr, req)

	assert.Equal(t, "br", rr.Header().Get("Content-Encoding"))
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)

	rr := httptest.NewRecorder()
	srv.handleHealth(rr, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}
