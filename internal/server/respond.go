package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

var (
	errSessionNotFound = errors.New("session not found")
	errEntryNotFound   = errors.New("trash entry not found")
	errBadRequest      = errors.New("bad request")
	errSessionKeyInUse = errors.New("session key is held by an open session")
)

const maxBodyBytes = 32 << 20

// writeJSON sends v with status. The status is already on the wire when
// encoding fails, so the failure is only logged.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response not written", "status", status, "error", err)
	}
}

func (s *Server) writeCSV(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("response not written", "file", name, "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidDocumentName),
		errors.Is(err, types.ErrInvalidSnapshotName),
		errors.Is(err, types.ErrInvalidRow),
		errors.Is(err, types.ErrInvalidColumn),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrDocumentNotFound),
		errors.Is(err, types.ErrSnapshotNotFound),
		errors.Is(err, errSessionNotFound),
		errors.Is(err, errEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, errSessionKeyInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error body. Server errors are logged and their
// detail is not sent to the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, errors.Join(errBadRequest, err)
	}
	return n, nil
}
