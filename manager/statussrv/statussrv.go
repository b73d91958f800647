// Package statussrv exposes a read-only chi HTTP endpoint reporting a
// Manager's open folders (name, modified, closed, message count) as JSON.
// Thread managers and lock state are not reported. No control-plane
// actions (open/close/write) are exposed here; this is introspection only.
package statussrv

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eslider/mailbox/folder"
	"github.com/eslider/mailbox/manager"
)

// OpenFolderStatus summarizes one open folder for the status endpoint.
type OpenFolderStatus struct {
	Name      string `json:"name"`
	Modified  bool   `json:"modified"`
	Closed    bool   `json:"closed"`
	MsgCount  int    `json:"message_count"`
}

// Status is the full JSON body served at GET /status.
type Status struct {
	OpenFolders []OpenFolderStatus `json:"open_folders"`
}

// NewRouter builds a chi.Router serving introspection endpoints over mgr.
func NewRouter(mgr *manager.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeStatus(w, mgr)
	})
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

func writeStatus(w http.ResponseWriter, mgr *manager.Manager) {
	open := mgr.OpenFolders()
	status := Status{OpenFolders: make([]OpenFolderStatus, 0, len(open))}
	for name, f := range open {
		status.OpenFolders = append(status.OpenFolders, OpenFolderStatus{
			Name:     name,
			Modified: f.Modified(),
			Closed:   f.IsClosed(),
			MsgCount: len(f.Messages(folder.All())),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
