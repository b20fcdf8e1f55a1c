package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlasdatatech/wfsd/config"
	"github.com/atlasdatatech/wfsd/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	cfg := config.Default()
	return &Server{cfg: cfg, db: db}
}

func TestHandleWFSUnsupportedRequestIs400(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/wfs?REQUEST=Nonsense", nil)
	rec := httptest.NewRecorder()

	s.handleWFS(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an unsupported request verb", rec.Code)
	}
}

func TestHandleWFSDescribeUnknownTypenameIs404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/wfs?REQUEST=DescribeFeatureType&TYPENAMES=nonexistent", nil)
	rec := httptest.NewRecorder()

	s.handleWFS(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an unknown typename on DescribeFeatureType", rec.Code)
	}
}

func TestHandleWFSGetCapabilitiesIs200(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/wfs?REQUEST=GetCapabilities", nil)
	rec := httptest.NewRecorder()

	s.handleWFS(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
