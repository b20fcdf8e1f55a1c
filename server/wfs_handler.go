package server

import (
	"io"
	"net/http"

	"github.com/atlasdatatech/wfsd/internal/log"
	"github.com/atlasdatatech/wfsd/wfs"
)

const maxTransactionBodyBytes = 32 << 20 // 32MiB, generous for a WFS-T envelope

// handleWFS serves both the KVP GET front-end and the POST transaction
// envelope at the single /wfs endpoint (§4.G).
func (s *Server) handleWFS(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Method == http.MethodPost {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxTransactionBodyBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(b) > maxTransactionBodyBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		body = b
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	req, err := wfs.ParseKVP(r.Form, body, r.Header.Get("Content-Type"))
	if err != nil {
		if werr, ok := err.(wfs.Error); ok {
			writeXML(w, http.StatusBadRequest, wfs.ExceptionReport(werr.Code, werr.Message))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.MaxFeatures = s.cfg.MaxFeaturesPerRequest

	out, contentType, status := wfs.Dispatch(r.Context(), s.db, s.serviceInfo(), req)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(out)); err != nil {
		log.Warnf("writing WFS response: %v", err)
	}
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
