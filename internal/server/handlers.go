package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/knowledge"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/router"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// API holds the HTTP handlers for the retrieval endpoints.
type API struct {
	router *router.Router
	logger *log.Logger
}

// NewAPI creates the handler set over a router.
func NewAPI(rt *router.Router) *API {
	return &API{router: rt, logger: log.WithPrefix("api")}
}

type queryRequest struct {
	Text      string             `json:"text"`
	UserID    string             `json:"user_id"`
	SessionID string             `json:"session_id,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	Emotion   *types.EmotionHint `json:"emotion,omitempty"`
}

func (req queryRequest) toQuery() types.Query {
	return types.Query{
		Text:          req.Text,
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Emotion:       req.Emotion,
		TurnTimestamp: time.Now(),
	}
}

// HandleClassify classifies a query without retrieving anything.
// POST /api/classify
func (a *API) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, a.router.Classify(req.toQuery()))
}

// HandleRetrieve runs the full retrieval pipeline.
// POST /api/retrieve
func (a *API) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Text == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "text and user_id are required")
		return
	}

	result, err := a.router.Retrieve(r.Context(), req.toQuery(), req.Limit)
	if err != nil {
		if errors.Is(err, router.ErrAllSourcesFailed) {
			writeError(w, http.StatusServiceUnavailable, "all retrieval sources failed")
			return
		}
		a.logger.Error("retrieve failed", "user", req.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "retrieval failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type factRequest struct {
	UserID           string  `json:"user_id"`
	EntityName       string  `json:"entity_name"`
	EntityType       string  `json:"entity_type"`
	RelationshipType string  `json:"relationship_type"`
	Confidence       float64 `json:"confidence"`
	EmotionalContext string  `json:"emotional_context,omitempty"`
}

// HandleFacts stores a fact on POST and lists the user's facts on GET.
// POST|GET /api/facts
func (a *API) HandleFacts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.storeFact(w, r)
	case http.MethodGet:
		a.listFacts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) storeFact(w http.ResponseWriter, r *http.Request) {
	var req factRequest
	if !a.decode(w, r, &req) {
		return
	}

	input := knowledge.FactInput{
		UserID:           req.UserID,
		EntityName:       req.EntityName,
		EntityType:       req.EntityType,
		RelationshipType: req.RelationshipType,
		Confidence:       req.Confidence,
		EmotionalContext: req.EmotionalContext,
	}
	if err := a.router.StoreFact(r.Context(), input); err != nil {
		if errors.Is(err, knowledge.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error("store fact failed", "user", req.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "fact storage failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}

func (a *API) listFacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	filter := knowledge.FactFilter{
		EntityType:        q.Get("entity_type"),
		IncludeSuperseded: q.Get("include_superseded") == "true",
	}
	if v := q.Get("relationship_types"); v != "" {
		filter.RelationshipTypes = strings.Split(v, ",")
	}
	if v := q.Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_confidence")
			return
		}
		filter.MinConfidence = f
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	facts, err := a.router.UserFacts(r.Context(), userID, filter)
	if err != nil {
		a.logger.Error("list facts failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "fact lookup failed")
		return
	}
	if facts == nil {
		facts = []types.Fact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": facts})
}

// HandleRelatedEntities walks similar_to edges from a named entity.
// GET /api/entities/related?name=pizza&hops=2
func (a *API) HandleRelatedEntities(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	hops := 2
	if v := r.URL.Query().Get("hops"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hops")
			return
		}
		hops = n
	}

	related, err := a.router.RelatedEntities(r.Context(), name, hops)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		a.logger.Error("related entities failed", "entity", name, "err", err)
		writeError(w, http.StatusInternalServerError, "traversal failed")
		return
	}
	if related == nil {
		related = []types.RelatedEntity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"related": related})
}

// HandleHealth reports liveness.
// GET /api/health
func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
