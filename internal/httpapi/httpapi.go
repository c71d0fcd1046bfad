// Package httpapi exposes a key-value store over HTTP: GET/POST/DELETE on
// "/{key}", mirroring the original rouille-based server's route semantics
// on top of gorilla/mux.
package httpapi

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aether-kv/aetherkv/internal/engine"
)

// maxUploadBytes bounds how much of a multipart form's file parts is held
// in memory while parsing; the remainder is spooled to temporary files.
const maxUploadBytes = 32 << 20

// Server serves one Kv store over HTTP. Every request is handled against
// a fresh clone of the root handle, so concurrent requests never contend
// on a single LogDir's internal cache.
type Server struct {
	root   *engine.Kv
	router *mux.Router
}

// NewServer builds a Server routing requests against root.
func NewServer(root *engine.Kv) *Server {
	s := &Server{root: root, router: mux.NewRouter()}
	s.router.HandleFunc("/{key}", s.handleGet).Methods(http.MethodGet)
	s.router.HandleFunc("/{key}", s.handleSet).Methods(http.MethodPost)
	s.router.HandleFunc("/{key}", s.handleDel).Methods(http.MethodDelete)
	return s
}

// ServeHTTP implements http.Handler, logging every request in the
// teacher's structured field-value style before dispatching.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("httpapi: request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
	s.router.ServeHTTP(w, r)
}

func (s *Server) kv() (*engine.Kv, error) {
	return s.root.Clone()
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	kv, err := s.kv()
	if err != nil {
		writeError(w, "httpapi: get", key, err)
		return
	}
	defer kv.Close()

	value, err := kv.Get(key)
	if err != nil {
		writeError(w, "httpapi: get", key, err)
		return
	}
	if value == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(value); err != nil {
		slog.Warn("httpapi: error writing response body", "key", key, "error", err)
	}
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, err := extractValue(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	kv, err := s.kv()
	if err != nil {
		writeError(w, "httpapi: set", key, err)
		return
	}
	defer kv.Close()

	if err := kv.Set(key, value); err != nil {
		writeError(w, "httpapi: set", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDel(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	kv, err := s.kv()
	if err != nil {
		writeError(w, "httpapi: del", key, err)
		return
	}
	defer kv.Close()

	existed, err := kv.Del(key)
	if err != nil {
		writeError(w, "httpapi: del", key, err)
		return
	}
	if !existed {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// extractValue implements the original server's "value form field XOR
// uploaded file" contract: exactly one of the two must be present.
func extractValue(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && err != http.ErrNotMultipart {
		return nil, fmt.Errorf("parse form: %w", err)
	}

	formValue := r.FormValue("value")
	file, _, fileErr := r.FormFile("file")
	hasFile := fileErr == nil
	if hasFile {
		defer file.Close()
	}
	hasValue := len(r.Form["value"]) > 0

	switch {
	case hasValue && hasFile:
		return nil, fmt.Errorf("supply exactly one of 'value' or 'file', not both")
	case hasValue:
		return []byte(formValue), nil
	case hasFile:
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read uploaded file: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("supply one of 'value' or 'file'")
	}
}

func writeError(w http.ResponseWriter, op, key string, err error) {
	slog.Error(op, "key", key, "error", err)
	http.Error(w, fmt.Sprintf("error: %v", err), http.StatusInternalServerError)
}
