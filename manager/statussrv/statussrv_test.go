package statussrv_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eslider/mailbox/manager"
	"github.com/eslider/mailbox/manager/statussrv"
)

func TestStatusEndpointReturnsEmptyOpenFolders(t *testing.T) {
	mgr := manager.New()
	router := statussrv.NewRouter(mgr)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body statussrv.Status
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.OpenFolders) != 0 {
		t.Errorf("got %d open folders, want 0", len(body.OpenFolders))
	}
}

func TestHealthzReturnsOK(t *testing.T) {
	mgr := manager.New()
	router := statussrv.NewRouter(mgr)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
