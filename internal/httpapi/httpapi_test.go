package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"driverstation/internal/practice"
	"driverstation/internal/station"
	"driverstation/internal/wire"
)

func newTestRouter() (*station.Station, http.Handler) {
	st := station.New(1868, wire.Alliance{Color: wire.Red, Station: 1}, false, practice.Timing{})
	return st, NewRouter(st)
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEnableDisableRoundTrip(t *testing.T) {
	st, h := newTestRouter()

	if rec := doRequest(h, http.MethodPost, "/api/v1/enable", ""); rec.Code != http.StatusOK {
		t.Fatalf("enable status = %d", rec.Code)
	}
	snap := st.BuildControlSnapshot()
	if !snap.Control.Enabled {
		t.Fatalf("expected Enabled=true after POST /enable")
	}

	if rec := doRequest(h, http.MethodPost, "/api/v1/disable", ""); rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d", rec.Code)
	}
	snap = st.BuildControlSnapshot()
	if snap.Control.Enabled {
		t.Fatalf("expected Enabled=false after POST /disable")
	}
}

func TestEStopBlocksEnableUntilCleared(t *testing.T) {
	st, h := newTestRouter()

	doRequest(h, http.MethodPost, "/api/v1/estop", "")
	doRequest(h, http.MethodPost, "/api/v1/enable", "")
	snap := st.BuildControlSnapshot()
	if snap.Control.Enabled {
		t.Fatalf("expected enable to be ignored while e-stopped")
	}

	doRequest(h, http.MethodPost, "/api/v1/clear_estop", "")
	doRequest(h, http.MethodPost, "/api/v1/enable", "")
	snap = st.BuildControlSnapshot()
	if !snap.Control.Enabled {
		t.Fatalf("expected enable to take effect after clearing e-stop")
	}
}

func TestPostModeRejectsUnknownMode(t *testing.T) {
	_, h := newTestRouter()
	rec := doRequest(h, http.MethodPost, "/api/v1/mode", `{"mode":"bogus"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", rec.Code)
	}
}

func TestPostModeAcceptsValidMode(t *testing.T) {
	st, h := newTestRouter()
	rec := doRequest(h, http.MethodPost, "/api/v1/mode", `{"mode":"autonomous"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	snap := st.BuildControlSnapshot()
	if snap.Control.Mode != wire.ModeAutonomous {
		t.Fatalf("expected mode autonomous, got %v", snap.Control.Mode)
	}
}

func TestGetStateReturns503BeforeAnyPacket(t *testing.T) {
	_, h := newTestRouter()
	rec := doRequest(h, http.MethodGet, "/api/v1/state", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before any packet ingested, got %d", rec.Code)
	}
}

func TestGetStdoutReturns204WhenEmpty(t *testing.T) {
	_, h := newTestRouter()
	rec := doRequest(h, http.MethodGet, "/api/v1/stdout", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 when nothing queued, got %d", rec.Code)
	}
}

func TestPostRebootRoborioPulsesOnce(t *testing.T) {
	st, h := newTestRouter()
	doRequest(h, http.MethodPost, "/api/v1/reboot_roborio", "")

	snap := st.BuildControlSnapshot()
	if !snap.Request.RebootRoborio {
		t.Fatalf("expected reboot pulse on first snapshot")
	}
	snap = st.BuildControlSnapshot()
	if snap.Request.RebootRoborio {
		t.Fatalf("expected reboot pulse cleared on second snapshot")
	}
}
