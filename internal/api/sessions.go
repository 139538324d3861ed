package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/voxcmd/internal/session"
)

// defaultHistoryCount is the number of turns returned when ?count is absent.
const defaultHistoryCount = 10

type createSessionRequest struct {
	Label string `json:"label"`
}

type matchRequest struct {
	Utterance string `json:"utterance"`
}

type setContextRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := s.decode(w, r, &req, true); err != nil {
		respondError(w, r, err)
		return
	}
	sess, err := s.cfg.Sessions.Create(r.Context(), req.Label)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, http.StatusOK, s.cfg.Sessions.List())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil)
}

// handleMatch always answers 200 with the match result, including empty and
// unmatched utterances; those are outcomes, not request errors.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req matchRequest
	if err := s.decode(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, sess.Match(r.Context(), req.Utterance))
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondOK(w, http.StatusOK, sess.Context().Values())
}

func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req setContextRequest
	if err := s.decode(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		respondError(w, r, fmt.Errorf("%w: key is required", errBadRequest))
		return
	}
	sess.Context().Set(req.Key, req.Value)
	respondOK(w, http.StatusOK, sess.Context().Values())
}

func (s *Server) handleClearContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Context().Clear()
	respondOK(w, http.StatusOK, nil)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	count := defaultHistoryCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, r, fmt.Errorf("%w: count must be a non-negative integer", errBadRequest))
			return
		}
		count = n
	}
	respondOK(w, http.StatusOK, sess.Context().History(count))
}

// session resolves the {id} path value, writing a 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.cfg.Sessions.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return sess, true
}
