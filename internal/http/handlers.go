package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ragqa/internal/contextutil"
	"ragqa/internal/domain"
	"ragqa/internal/service"
)

const maxTopK = 20

// Engine is the API-facing subset of the engine.
type Engine interface {
	Query(ctx context.Context, question string, topK int, threshold float64) (domain.QueryResponse, error)
	Retrieve(ctx context.Context, question string, topK int, threshold float64) ([]domain.RetrievalResult, error)
	Rebuild(ctx context.Context) error
	Stats() service.Stats
	Defaults() (int, float64)
}

// QueryRequest is the payload of /api/query and /api/retrieve. Omitted
// parameters fall back to the configured defaults.
type QueryRequest struct {
	Question            string   `json:"question"`
	TopK                *int     `json:"top_k,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

// RetrievedChunk is one entry of a /api/retrieve response.
type RetrievedChunk struct {
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

// RetrieveResponse is the payload returned by /api/retrieve.
type RetrieveResponse struct {
	Question string           `json:"question"`
	Results  []RetrievedChunk `json:"results"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Chunks    int    `json:"chunks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	engine Engine
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, topK, threshold, ok := h.decode(w, r)
	if !ok {
		return
	}
	resp, err := h.engine.Query(ctx, req.Question, topK, threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

func (h *handler) retrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, topK, threshold, ok := h.decode(w, r)
	if !ok {
		return
	}
	results, err := h.engine.Retrieve(ctx, req.Question, topK, threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := RetrieveResponse{Question: req.Question, Results: make([]RetrievedChunk, len(results))}
	for i, res := range results {
		out.Results[i] = RetrievedChunk{
			Source:     res.Chunk.Source,
			ChunkIndex: res.Chunk.ChunkIndex,
			Similarity: res.Similarity,
			Content:    res.Chunk.Content,
		}
	}
	writeJSON(ctx, w, http.StatusOK, out)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.engine.Stats())
}

func (h *handler) rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.engine.Rebuild(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, h.engine.Stats())
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Chunks:    stats.Chunks,
	}
	status := http.StatusOK
	if stats.Fingerprint == "" {
		resp.Status = "initializing"
		status = http.StatusServiceUnavailable
	}
	writeJSON(r.Context(), w, status, resp)
}

// decode parses and validates a QueryRequest, writing a 400 on failure.
func (h *handler) decode(w http.ResponseWriter, r *http.Request) (QueryRequest, int, float64, bool) {
	ctx := r.Context()
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return req, 0, 0, false
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return req, 0, 0, false
	}
	topK, threshold := h.engine.Defaults()
	if req.TopK != nil {
		if *req.TopK < 1 || *req.TopK > maxTopK {
			writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "top_k must be between 1 and 20"})
			return req, 0, 0, false
		}
		topK = *req.TopK
	}
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	return req, topK, threshold, true
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "request failed", "error", err)
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrNotInitialized) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(ctx, w, status, errorResponse{Error: err.Error()})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
