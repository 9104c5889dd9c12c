package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

type documentView struct {
	Doc  string      `json:"doc"`
	Rows []types.Row `json:"rows"`
}

type saveRequest struct {
	Rows []types.Row `json:"rows"`
}

type saveResponse struct {
	Doc      string `json:"doc"`
	Snapshot string `json:"snapshot,omitempty"`
}

// GET /documents
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"documents": docs})
}

// GET /documents/{doc}
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc := chi.URLParam(r, "doc")
	rows, err := s.store.ReadDocument(doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documentView{Doc: doc, Rows: types.PadRows(rows)})
}

// PUT /documents/{doc}
func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	doc := chi.URLParam(r, "doc")
	var req saveRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.store.Save(doc, types.PadRows(req.Rows))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saveResponse{Doc: doc, Snapshot: id})
}

// GET /documents/{doc}/download
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	doc := chi.URLParam(r, "doc")
	data, err := s.store.ReadRaw(doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCSV(w, doc, data)
}

// GET /documents/{doc}/versions
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	doc := chi.URLParam(r, "doc")
	snaps, err := s.store.ListSnapshots(doc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"doc":          doc,
		"max_versions": s.store.MaxVersions(),
		"versions":     snaps,
	})
}

// GET /documents/{doc}/versions/{snap}
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	doc, snap := chi.URLParam(r, "doc"), chi.URLParam(r, "snap")
	data, err := s.store.ReadSnapshot(doc, snap)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCSV(w, snap, data)
}

// GET /documents/{doc}/versions/{snap}/diff
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	doc, snap := chi.URLParam(r, "doc"), chi.URLParam(r, "snap")
	res, err := s.store.Diff(doc, snap)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// POST /documents/{doc}/versions/{snap}/restore
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	doc, snap := chi.URLParam(r, "doc"), chi.URLParam(r, "snap")
	if err := s.store.Restore(doc, snap); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"doc": doc, "restored": snap})
}

// DELETE /documents/{doc}/versions/{snap}
func (s *Server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	doc, snap := chi.URLParam(r, "doc"), chi.URLParam(r, "snap")
	if err := s.store.DeleteSnapshot(doc, snap); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
