package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/classifier"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/config"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/fusion"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/knowledge"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/router"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

type stubMemoryStore struct{}

func (stubMemoryStore) SearchVector(_ context.Context, _, _ string, _ []float32, _ int) ([]memory.VectorHit, error) {
	return []memory.VectorHit{
		{Record: types.MemoryRecord{ID: "r1", UserID: "u1", Content: "pizza talk"}, Score: 0.8},
	}, nil
}

func (stubMemoryStore) ListChronological(_ context.Context, _, _ string, _ types.TemporalWindow) ([]types.MemoryRecord, error) {
	return []types.MemoryRecord{{ID: "r1", UserID: "u1", Content: "first turn"}}, nil
}

type stubKnowledgeStore struct {
	stored []knowledge.FactInput
}

func (s *stubKnowledgeStore) GetUserFacts(_ context.Context, _ string, _ knowledge.FactFilter) ([]types.Fact, error) {
	return []types.Fact{{UserID: "u1", EntityName: "pizza", RelationshipType: types.RelLikes, Confidence: 0.9}}, nil
}

func (s *stubKnowledgeStore) StoreFact(_ context.Context, input knowledge.FactInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	s.stored = append(s.stored, input)
	return nil
}

func (s *stubKnowledgeStore) GetRelatedEntities(_ context.Context, name string, _ int) ([]types.RelatedEntity, error) {
	if name != "pizza" {
		return nil, knowledge.ErrNotFound
	}
	return []types.RelatedEntity{{Entity: types.Entity{Name: "pizzeria"}, Hops: 1, Score: 1.0}}, nil
}

func (s *stubKnowledgeStore) Close() error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, types.EmbeddingDim), nil
}

func newTestAPI(facts *stubKnowledgeStore) *API {
	mem := stubMemoryStore{}
	cfg := config.RouterConfig{
		VectorTimeout: 150 * time.Millisecond,
		GraphTimeout:  100 * time.Millisecond,
		DefaultLimit:  10,
	}
	rt := router.New(classifier.New(config.DefaultTuning()), fusion.NewEngine(mem, stubEmbedder{}), mem, facts, cfg)
	return NewAPI(rt)
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()

	api.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleClassify(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()
	body := `{"text":"What foods do I like?","user_id":"u1"}`

	api.HandleClassify(rec, httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var cls types.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cls))
	assert.Equal(t, types.CategoryFactual, cls.Category)
}

func TestHandleClassifyRejectsGet(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()

	api.HandleClassify(rec, httptest.NewRequest(http.MethodGet, "/api/classify", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleClassifyRequiresText(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()

	api.HandleClassify(rec, httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(`{"user_id":"u1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRetrieve(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()
	body := `{"text":"What foods do I like?","user_id":"u1","limit":5}`

	api.HandleRetrieve(rec, httptest.NewRequest(http.MethodPost, "/api/retrieve", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var result router.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Memories)
	assert.NotEmpty(t, result.Facts)
}

func TestHandleRetrieveInvalidBody(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()

	api.HandleRetrieve(rec, httptest.NewRequest(http.MethodPost, "/api/retrieve", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFactsStoreAndList(t *testing.T) {
	facts := &stubKnowledgeStore{}
	api := newTestAPI(facts)

	rec := httptest.NewRecorder()
	body := `{"user_id":"u1","entity_name":"pizza","entity_type":"food","relationship_type":"likes","confidence":0.9}`
	api.HandleFacts(rec, httptest.NewRequest(http.MethodPost, "/api/facts", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, facts.stored, 1)
	assert.Equal(t, "pizza", facts.stored[0].EntityName)

	rec = httptest.NewRecorder()
	api.HandleFacts(rec, httptest.NewRequest(http.MethodGet, "/api/facts?user_id=u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pizza")
}

func TestHandleFactsStoreValidation(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()

	api.HandleFacts(rec, httptest.NewRequest(http.MethodPost, "/api/facts", strings.NewReader(`{"user_id":"u1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFactsListRequiresUser(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()

	api.HandleFacts(rec, httptest.NewRequest(http.MethodGet, "/api/facts", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRelatedEntities(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()

	api.HandleRelatedEntities(rec, httptest.NewRequest(http.MethodGet, "/api/entities/related?name=pizza", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pizzeria")
}

func TestHandleRelatedEntitiesNotFound(t *testing.T) {
	api := newTestAPI(&stubKnowledgeStore{})
	rec := httptest.NewRecorder()

	api.HandleRelatedEntities(rec, httptest.NewRequest(http.MethodGet, "/api/entities/related?name=unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequireAuthDevelopmentMode(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), config.SecurityConfig{SecurityMode: "development"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthProductionMode(t *testing.T) {
	cfg := config.SecurityConfig{SecurityMode: "production", APIToken: "secret"}
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), cfg)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1.0, 2)
	handler := RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), rl)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}
