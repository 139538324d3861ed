package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/MrWong99/voxcmd/internal/nlu"
	"github.com/MrWong99/voxcmd/internal/training"
)

type trainRequest struct {
	Utterance string       `json:"utterance"`
	Entities  nlu.Entities `json:"entities,omitempty"`
}

type testRequest struct {
	Utterance string `json:"utterance"`

	// SessionID, when set, tests against that session's matcher so the
	// session's conversation context takes part.
	SessionID string `json:"sessionId,omitempty"`
}

type recommendationsResponse struct {
	Intent          string   `json:"intent"`
	Recommendations []string `json:"recommendations"`
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := s.decode(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := s.cfg.Trainer.TrainCommand(r.Context(), r.PathValue("intent"), req.Utterance, req.Entities)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, u)
}

func (s *Server) handleRemoveUtterance(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("utterance")
	if text == "" {
		respondError(w, r, fmt.Errorf("%w: utterance query parameter is required", errBadRequest))
		return
	}
	if err := s.cfg.Trainer.RemoveTrainingUtterance(r.Context(), r.PathValue("intent"), text); err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := s.decode(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}

	var rec training.Recognizer
	if req.SessionID != "" {
		sess, err := s.cfg.Sessions.Get(req.SessionID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		rec = sess
	} else {
		rec = s.cfg.Recognizer()
	}

	res, err := s.cfg.Trainer.TestRecognition(r.Context(), req.Utterance, rec)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	intent := r.URL.Query().Get("intent")
	if intent == "" {
		respondOK(w, http.StatusOK, s.cfg.Trainer.GetAllAccuracyStats())
		return
	}
	stats, ok := s.cfg.Trainer.GetAccuracyStats(intent)
	if !ok {
		respondError(w, r, fmt.Errorf("%w: no statistics for %q", training.ErrUnknownIntent, intent))
		return
	}
	respondOK(w, http.StatusOK, stats)
}

func (s *Server) handleTrainingData(w http.ResponseWriter, r *http.Request) {
	intent := r.URL.Query().Get("intent")
	if intent == "" {
		respondOK(w, http.StatusOK, s.cfg.Trainer.GetAllTrainingData())
		return
	}
	data, ok := s.cfg.Trainer.GetTrainingData(intent)
	if !ok {
		respondError(w, r, fmt.Errorf("%w: no training data for %q", training.ErrUnknownIntent, intent))
		return
	}
	respondOK(w, http.StatusOK, data)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	intent := r.PathValue("intent")
	recs, err := s.cfg.Trainer.GetRecommendations(intent)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, recommendationsResponse{Intent: intent, Recommendations: recs})
}

func (s *Server) handleUsage(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, http.StatusOK, s.cfg.Trainer.AnalyzeUsagePatterns())
}

// handleExport serves the bare export document so it can be posted back to
// /v1/training/import unchanged.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.cfg.Trainer.ExportJSON()
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="voice-training.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: read body: %v", errBadRequest, err))
		return
	}
	if err := s.cfg.Trainer.ImportJSON(r.Context(), data); err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, s.cfg.Trainer.AnalyzeUsagePatterns())
}

// handleClearTraining serves both DELETE /v1/training and
// DELETE /v1/training/{intent}; the former clears everything.
func (s *Server) handleClearTraining(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Trainer.ClearTrainingData(r.Context(), r.PathValue("intent")); err != nil {
		respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, nil)
}
