// Package server wires the core WFS engine (store, ingest, wfs) to HTTP,
// using the collaborator-supplied config for service identity, paging
// limits and the admin credential (§6).
package server

import (
	"net/http"

	"github.com/dimfeld/httptreemux"

	"github.com/atlasdatatech/wfsd/config"
	"github.com/atlasdatatech/wfsd/internal/log"
	"github.com/atlasdatatech/wfsd/store"
	"github.com/atlasdatatech/wfsd/wfs"
)

// Server holds the running server's dependencies.
type Server struct {
	cfg config.Config
	db  *store.DB
}

// New builds a Server for cfg, opening its configured store file.
func New(cfg config.Config) (*Server, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, db: db}, nil
}

// Close releases the server's store handle.
func (s *Server) Close() error { return s.db.Close() }

// Router builds the HTTP routing tree (§4.G, §6).
func (s *Server) Router() http.Handler {
	mux := httptreemux.New()

	mux.GET("/wfs", s.handleWFS)
	mux.POST("/wfs", s.handleWFS)

	admin := mux.NewGroup("/api")
	admin.GET("/layers", s.requireAdmin(s.listLayers))
	admin.POST("/layers", s.requireAdmin(s.createLayer))
	admin.GET("/layers/:id", s.requireAdmin(s.getLayer))
	admin.POST("/layers/:id/import", s.requireAdmin(s.importLayer))
	admin.GET("/layers/:id/symbology", s.requireAdmin(s.listSymbology))
	admin.POST("/layers/:id/symbology", s.requireAdmin(s.createSymbology))
	admin.DELETE("/symbology/:id", s.requireAdmin(s.deleteSymbology))

	return mux
}

func (s *Server) serviceInfo() wfs.ServiceInfo {
	return wfs.ServiceInfo{
		Title:    s.cfg.ServiceTitle,
		Abstract: s.cfg.ServiceAbstract,
		URL:      s.cfg.ServiceURL,
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	log.Warnf("%d: %s", status, message)
	http.Error(w, message, status)
}
