package server

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dimfeld/httptreemux"

	"github.com/atlasdatatech/wfsd/ingest"
	"github.com/atlasdatatech/wfsd/internal/log"
	"github.com/atlasdatatech/wfsd/store"
)

// requireAdmin gates a handler behind HTTP Basic auth against the
// collaborator-supplied admin credential (§6). The core never interprets
// admin_user/admin_pass beyond comparing them.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.AdminUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.AdminPass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="wfsd admin"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

func pathParam(r *http.Request, name string) string {
	return httptreemux.ContextParams(r.Context())[name]
}

func pathParamID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(pathParam(r, name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("encoding JSON response: %v", err)
	}
}

func (s *Server) listLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.db.ListLayers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, layers)
}

func (s *Server) createLayer(w http.ResponseWriter, r *http.Request) {
	var l store.Layer
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if l.AttributeSchema == nil {
		l.AttributeSchema = map[string]string{}
	}
	if err := s.db.CreateLayer(r.Context(), &l); err != nil {
		if _, ok := err.(store.ErrConflict); ok {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) getLayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathParamID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid layer id")
		return
	}
	l, err := s.db.GetLayer(r.Context(), id)
	if err != nil {
		if _, ok := err.(store.ErrNotFound); ok {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// importLayer accepts a multipart upload and ingests it into the layer
// named by the path, using a scoped temp file per §5's upload lifecycle.
func (s *Server) importLayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathParamID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid layer id")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	blobPath := filepath.Join(s.cfg.UploadsDir, "layer_"+strconv.FormatInt(id, 10)+"_"+filepath.Base(header.Filename))
	defer os.Remove(blobPath)

	out, err := os.Create(blobPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out.Close()

	opts := ingest.Options{LayerID: id, SourceSRID: 4326}
	if srid := r.FormValue("source_srid"); srid != "" {
		if n, err := strconv.Atoi(srid); err == nil {
			opts.SourceSRID = n
		}
	}
	opts.LatField = r.FormValue("lat_field")
	opts.LonField = r.FormValue("lon_field")
	opts.ReplaceExisting = r.FormValue("replace_existing") == "true"

	result, err := ingest.Import(r.Context(), s.db, blobPath, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listSymbology(w http.ResponseWriter, r *http.Request) {
	id, err := pathParamID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid layer id")
		return
	}
	rules, err := s.db.ListSymbologyRules(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) createSymbology(w http.ResponseWriter, r *http.Request) {
	id, err := pathParamID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid layer id")
		return
	}
	var rule store.SymbologyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rule.LayerID = id
	if err := s.db.CreateSymbologyRule(r.Context(), &rule); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) deleteSymbology(w http.ResponseWriter, r *http.Request) {
	id, err := pathParamID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid symbology rule id")
		return
	}
	if err := s.db.DeleteSymbologyRule(r.Context(), id); err != nil {
		if _, ok := err.(store.ErrNotFound); ok {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
