package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/tabula/internal/editor"
	"github.com/mesh-intelligence/tabula/internal/trash"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// session is an open editor guarded by its own lock. key names its
// persisted trash.
type session struct {
	mu     sync.Mutex
	id     string
	key    string
	opened time.Time
	ed     *editor.Session

	// lastUsed is guarded by the registry lock.
	lastUsed time.Time
}

type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

// add registers sess. It fails when a live session already holds its key.
func (g *registry) add(sess *session) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, other := range g.sessions {
		if other.key == sess.key {
			return errSessionKeyInUse
		}
	}
	g.sessions[sess.id] = sess
	return nil
}

// get returns the session and marks it used at now.
func (g *registry) get(id string, now time.Time) (*session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	sess.lastUsed = now
	return sess, nil
}

func (g *registry) remove(id string) (*session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	delete(g.sessions, id)
	return sess, nil
}

// expire removes and returns the sessions last used before cutoff.
func (g *registry) expire(cutoff time.Time) []*session {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*session
	for id, sess := range g.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(g.sessions, id)
			out = append(out, sess)
		}
	}
	return out
}

type trashEntryView struct {
	ID    string    `json:"id"`
	Cells types.Row `json:"cells"`
	Index int       `json:"index"`
	TS    int64     `json:"ts"`
}

func entryView(e types.TrashEntry) trashEntryView {
	cells := e.Cells
	if cells == nil {
		cells = types.Row{}
	}
	return trashEntryView{ID: e.ID, Cells: cells, Index: e.Index, TS: e.CreatedAt.UnixMilli()}
}

func entryViews(entries []types.TrashEntry) []trashEntryView {
	out := make([]trashEntryView, len(entries))
	for i, e := range entries {
		out[i] = entryView(e)
	}
	return out
}

type trashView struct {
	Capacity int              `json:"capacity"`
	Entries  []trashEntryView `json:"entries"`
	Pending  []trashEntryView `json:"pending"`
}

func newTrashView(t *trash.Stack) trashView {
	return trashView{
		Capacity: t.Capacity(),
		Entries:  entryViews(t.Entries()),
		Pending:  entryViews(t.Pending()),
	}
}

type sessionView struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Doc    string      `json:"doc"`
	Opened time.Time   `json:"opened"`
	Dirty  bool        `json:"dirty"`
	Header types.Row   `json:"header"`
	Rows   []types.Row `json:"rows"`
	Trash  trashView   `json:"trash"`
}

func (sess *session) view() sessionView {
	header := sess.ed.Header()
	if header == nil {
		header = types.Row{}
	}
	return sessionView{
		ID:     sess.id,
		Key:    sess.key,
		Doc:    sess.ed.Doc(),
		Opened: sess.opened,
		Dirty:  sess.ed.Dirty(),
		Header: header,
		Rows:   sess.ed.Rows(),
		Trash:  newTrashView(sess.ed.Trash()),
	}
}

// withSession runs fn on the session named in the URL while holding its
// lock.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(sess *session) error) {
	sess, err := s.sessions.get(chi.URLParam(r, "id"), s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := fn(sess); err != nil {
		s.fail(w, r, err)
	}
}

type openRequest struct {
	Key string `json:"key"`
}

// POST /documents/{doc}/sessions
// An optional key names the session's persisted trash; opening with the key
// of an earlier session resumes its trash. Without one the session ID is
// used.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	doc := chi.URLParam(r, "doc")
	var req openRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := uuid.NewV7()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now := s.now()
	sess := &session{id: id.String(), key: req.Key, opened: now, lastUsed: now}
	if sess.key == "" {
		sess.key = sess.id
	} else if err := types.ValidateSnapshotName(sess.key); err != nil {
		s.fail(w, r, errors.Join(errBadRequest, fmt.Errorf("invalid session key %q", sess.key)))
		return
	}

	trashOpts := append([]trash.Option{trash.WithLogger(s.logger)}, s.trashOpts...)
	if s.persister != nil {
		trashOpts = append(trashOpts, trash.WithPersister(s.persister, sess.key))
	}
	sess.ed, err = editor.Open(s.store, doc, editor.WithTrash(trashOpts...))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sessions.add(sess); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("session opened", "session", sess.id, "key", sess.key, "doc", doc,
		"trash", sess.ed.Trash().Len())
	s.writeJSON(w, http.StatusCreated, sess.view())
}

// GET /sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) error {
		s.writeJSON(w, http.StatusOK, sess.view())
		return nil
	})
}

// DELETE /sessions/{id}
// Unsaved edits are discarded along with the session's trash.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.remove(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess.mu.Lock()
	sess.ed.Trash().Clear()
	sess.mu.Unlock()
	s.logger.Info("session closed", "session", sess.id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /sessions/{id}/save
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) error {
		id, err := sess.ed.Save()
		if err != nil {
			return err
		}
		s.writeJSON(w, http.StatusOK, saveResponse{Doc: sess.ed.Doc(), Snapshot: id})
		return nil
	})
}

type insertRequest struct {
	At *int `json:"at"`
}

// POST /sessions/{id}/rows
func (s *Server) handleInsertRow(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.withSession(w, r, func(sess *session) error {
		at := sess.ed.Len()
		if req.At != nil {
			at = *req.At
		}
		index := sess.ed.InsertBlank(at)
		s.writeJSON(w, http.StatusCreated, map[string]int{"index": index})
		return nil
	})
}

// DELETE /sessions/{id}/rows/{row}
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	row, err := intParam(r, "row")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.withSession(w, r, func(sess *session) error {
		entry, err := sess.ed.DeleteRow(row)
		if err != nil {
			return err
		}
		s.writeJSON(w, http.StatusOK, entryView(entry))
		return nil
	})
}

type cellRequest struct {
	Value string `json:"value"`
}

// PUT /sessions/{id}/rows/{row}/cells/{col}
func (s *Server) handleSetCell(w http.ResponseWriter, r *http.Request) {
	row, err := intParam(r, "row")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	col, err := intParam(r, "col")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req cellRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.withSession(w, r, func(sess *session) error {
		if err := sess.ed.SetCell(row, col, req.Value); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

// GET /sessions/{id}/trash
func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) error {
		s.writeJSON(w, http.StatusOK, newTrashView(sess.ed.Trash()))
		return nil
	})
}

// DELETE /sessions/{id}/trash
func (s *Server) handleClearTrash(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) error {
		sess.ed.Trash().Clear()
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

// POST /sessions/{id}/trash/restore-all
func (s *Server) handleRestoreAll(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) error {
		n := sess.ed.Trash().RestoreAll()
		s.writeJSON(w, http.StatusOK, map[string]int{"restored": n})
		return nil
	})
}

// POST /sessions/{id}/trash/undo
// Restores the most recently deleted row still in the trash.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(sess *session) error {
		if _, ok := sess.ed.Trash().RestoreLast(); !ok {
			return errEntryNotFound
		}
		s.writeJSON(w, http.StatusOK, sess.view())
		return nil
	})
}

// POST /sessions/{id}/trash/{entry}/restore
func (s *Server) handleRestoreEntry(w http.ResponseWriter, r *http.Request) {
	entry := chi.URLParam(r, "entry")
	s.withSession(w, r, func(sess *session) error {
		if !sess.ed.Trash().RestoreByID(entry) {
			return errEntryNotFound
		}
		s.writeJSON(w, http.StatusOK, sess.view())
		return nil
	})
}

// DELETE /sessions/{id}/trash/{entry}
func (s *Server) handlePurgeEntry(w http.ResponseWriter, r *http.Request) {
	entry := chi.URLParam(r, "entry")
	s.withSession(w, r, func(sess *session) error {
		if !sess.ed.Trash().PurgeByID(entry) {
			return errEntryNotFound
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}
