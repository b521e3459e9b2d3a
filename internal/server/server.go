// Package server exposes the memory engine over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/cache"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/embedding"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/engine"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/graph"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/media"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

// maxAudioBytes caps audio uploads at 25 MiB.
const maxAudioBytes = 25 << 20

// AudioStore is the subset of the media store the server needs.
type AudioStore interface {
	StoreAudio(ctx context.Context, userID, sessionID string, data []byte, filename string) (string, error)
}

// Server wires the engine into an HTTP listener.
type Server struct {
	engine *engine.Engine
	audio  AudioStore
	log    *logrus.Logger

	httpServer *http.Server
}

// New builds a server around the engine. audio may be nil when no blob store
// is configured.
func New(eng *engine.Engine, audio AudioStore, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{engine: eng, audio: audio, log: log}
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/facts", s.handleInsertFact)
	mux.HandleFunc("POST /api/facts/extract", s.handleExtractFacts)
	mux.HandleFunc("POST /api/facts/{id}/access", s.handleRecordAccess)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/users/{id}/summary", s.handleUserSummary)
	mux.HandleFunc("POST /api/graph/upsert", s.handleGraphUpsert)
	mux.HandleFunc("POST /api/graph/query", s.handleGraphQuery)
	mux.HandleFunc("POST /api/conversations", s.handleStartConversation)
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.handleAddMessage)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/audio", s.handleStoreAudio)

	return mux
}

// Start begins serving on addr. It returns the bound address, useful when
// addr requests port 0.
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}()

	s.log.WithField("addr", listener.Addr().String()).Info("http server listening")
	return listener.Addr().String(), nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type insertFactRequest struct {
	UserID          string `json:"user_id"`
	FactType        string `json:"fact_type"`
	Content         string `json:"content"`
	SourceMessageID string `json:"source_message_id"`
}

func (s *Server) handleInsertFact(w http.ResponseWriter, r *http.Request) {
	var req insertFactRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, err := s.engine.InsertFact(r.Context(), req.UserID, req.FactType, req.Content, req.SourceMessageID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"fact_id": id})
}

func (s *Server) handleExtractFacts(w http.ResponseWriter, r *http.Request) {
	var req insertFactRequest
	if !s.decode(w, r, &req) {
		return
	}

	ids, err := s.engine.ExtractAndStoreFacts(r.Context(), req.UserID, req.Content, req.SourceMessageID, req.FactType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"fact_ids": ids})
}

func (s *Server) handleRecordAccess(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RecordAccess(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queryRequest struct {
	Query     string  `json:"query"`
	UserID    string  `json:"user_id"`
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
	Uncached  bool    `json:"uncached,omitempty"`
}

type queryResponse struct {
	Results []types.ScoredFact `json:"results"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}

	var results []types.ScoredFact
	var err error
	if req.Uncached {
		results, err = s.engine.QuerySimilarUncached(r.Context(), req.Query, req.UserID, req.Threshold, req.Limit)
	} else {
		results, err = s.engine.QuerySimilar(r.Context(), req.Query, req.UserID, req.Threshold, req.Limit)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []types.ScoredFact{}
	}
	writeJSON(w, http.StatusOK, queryResponse{Results: results})
}

func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.UserSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type graphUpsertRequest struct {
	FactID        string                    `json:"fact_id"`
	Entities      []types.EntityInput       `json:"entities"`
	Relationships []types.RelationshipInput `json:"relationships"`
}

func (s *Server) handleGraphUpsert(w http.ResponseWriter, r *http.Request) {
	var req graphUpsertRequest
	if !s.decode(w, r, &req) {
		return
	}

	report, err := s.engine.UpsertEntitiesAndRelationships(r.Context(), req.FactID, req.Entities, req.Relationships)
	if err != nil {
		var partial *graph.PartialWriteError
		if errors.As(err, &partial) {
			// Committed elements stay committed; the caller gets the full
			// report to decide on compensating action.
			writeJSON(w, http.StatusMultiStatus, report)
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type graphQueryRequest struct {
	Query  string                 `json:"query"`
	Params map[string]interface{} `json:"params"`
}

func (s *Server) handleGraphQuery(w http.ResponseWriter, r *http.Request) {
	var req graphQueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	rows, err := s.engine.RunGraphQuery(r.Context(), req.Query, req.Params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rows == nil {
		rows = []graph.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

type startConversationRequest struct {
	UserID    string                 `json:"user_id"`
	SessionID string                 `json:"session_id"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, err := s.engine.StartConversation(r.Context(), req.UserID, req.SessionID, req.Metadata)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"conversation_id": id})
}

type addMessageRequest struct {
	Role     string                 `json:"role"`
	Content  string                 `json:"content"`
	AudioURL string                 `json:"audio_url"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req addMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	rec, err := s.engine.AddMessage(r.Context(), r.PathValue("id"), req.Role, req.Content, req.AudioURL, req.Metadata)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sc, err := s.engine.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sc == nil {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleStoreAudio(w http.ResponseWriter, r *http.Request) {
	if s.audio == nil {
		writeJSONError(w, http.StatusNotImplemented, "audio storage not configured")
		return
	}

	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	userID := r.FormValue("user_id")
	sessionID := r.FormValue("session_id")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read audio payload")
		return
	}

	url, err := s.audio.StoreAudio(r.Context(), userID, sessionID, data, header.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// decode parses a JSON request body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrGraphDisabled), errors.Is(err, engine.ErrConversationsDisabled):
		writeJSONError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, embedding.ErrUnavailable):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, cache.ErrUnavailable),
		errors.Is(err, graph.ErrUnavailable),
		errors.Is(err, media.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.WithError(err).Error("request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
