// Package router orchestrates retrieval: it classifies the query, picks
// the retrieval path, fans out to the vector and fact stores concurrently,
// and assembles a unified result. Sub-operations run under their own
// timeouts so one slow backend degrades the answer instead of stalling it.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/classifier"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/config"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/fusion"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/knowledge"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/internal/memory"
	"github.com/whisperengine-ai/whisperengine-v2-sub000/pkg/types"
)

// ErrAllSourcesFailed indicates every retrieval sub-operation failed, so
// there is nothing to return, not even a partial result.
var ErrAllSourcesFailed = errors.New("router: all retrieval sources failed")

// Event is one activity feed entry, published to subscribers (the
// websocket feed) after each operation.
type Event struct {
	Kind     string    `json:"kind"`
	UserID   string    `json:"user_id"`
	Detail   string    `json:"detail"`
	Category string    `json:"category,omitempty"`
	At       time.Time `json:"at"`
}

// Result is the unified retrieval answer. Memories and Facts stay in
// separate typed lists; the caller decides how to weave them into a
// prompt. Warnings name the sources that failed when the result is
// partial.
type Result struct {
	Classification types.Classification `json:"classification"`
	Memories       []types.RankedMemory `json:"memories"`
	Facts          []types.Fact         `json:"facts"`
	Warnings       []string             `json:"warnings,omitempty"`
}

// Router is the retrieval orchestrator.
type Router struct {
	classifier *classifier.Classifier
	fusion     *fusion.Engine
	memories   memory.ChronoLister
	facts      knowledge.Store
	cfg        config.RouterConfig
	logger     *log.Logger

	mu      sync.RWMutex
	publish func(Event)
}

// New assembles a router over the given classifier, fusion engine, and
// stores.
func New(cls *classifier.Classifier, eng *fusion.Engine, memories memory.ChronoLister, facts knowledge.Store, cfg config.RouterConfig) *Router {
	return &Router{
		classifier: cls,
		fusion:     eng,
		memories:   memories,
		facts:      facts,
		cfg:        cfg,
		logger:     log.WithPrefix("router"),
	}
}

// OnActivity registers the activity feed publisher. A nil func disables
// publishing.
func (r *Router) OnActivity(fn func(Event)) {
	r.mu.Lock()
	r.publish = fn
	r.mu.Unlock()
}

// SetClassifier swaps the classifier, used when the tuning file reloads.
func (r *Router) SetClassifier(cls *classifier.Classifier) {
	r.mu.Lock()
	r.classifier = cls
	r.mu.Unlock()
}

// Classify classifies without retrieving.
func (r *Router) Classify(q types.Query) types.Classification {
	r.mu.RLock()
	cls := r.classifier
	r.mu.RUnlock()
	return cls.Classify(q)
}

// StoreFact writes one extracted fact through the knowledge graph.
func (r *Router) StoreFact(ctx context.Context, input knowledge.FactInput) error {
	if err := r.facts.StoreFact(ctx, input); err != nil {
		return err
	}
	r.emit(Event{
		Kind:   "fact_stored",
		UserID: input.UserID,
		Detail: fmt.Sprintf("%s %s (%s)", input.RelationshipType, input.EntityName, input.EntityType),
		At:     time.Now(),
	})
	return nil
}

// UserFacts reads the user's stored facts directly.
func (r *Router) UserFacts(ctx context.Context, userID string, filter knowledge.FactFilter) ([]types.Fact, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GraphTimeout)
	defer cancel()
	return r.facts.GetUserFacts(ctx, userID, filter)
}

// RelatedEntities exposes graph traversal from the named entity.
func (r *Router) RelatedEntities(ctx context.Context, entityName string, maxHops int) ([]types.RelatedEntity, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GraphTimeout)
	defer cancel()
	return r.facts.GetRelatedEntities(ctx, entityName, maxHops)
}

// Retrieve runs the full pipeline for one query. Temporal queries take
// the chronological path and skip vector fusion entirely; everything else
// fans out to vector search and, for factual queries, the knowledge
// graph. Partial results beat failures: a failed source becomes a warning
// and an empty list, and only all sources failing returns an error.
func (r *Router) Retrieve(ctx context.Context, q types.Query, limit int) (*Result, error) {
	if limit < 1 {
		limit = r.cfg.DefaultLimit
	}

	cls := r.Classify(q)
	result := &Result{Classification: cls}

	if cls.Category == types.CategoryTemporal && cls.Temporal != nil {
		if err := r.retrieveTemporal(ctx, q, *cls.Temporal, result); err != nil {
			return nil, err
		}
		r.emitRetrieve(q, cls, result)
		return result, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		attempts int
		failures int
	)

	fail := func(source string, err error) {
		mu.Lock()
		failures++
		result.Warnings = append(result.Warnings, source)
		mu.Unlock()
		r.logger.Warn("retrieval source failed", "source", source, "user", q.UserID, "err", err)
	}

	attempts++
	wg.Add(1)
	go func() {
		defer wg.Done()
		opCtx, cancel := context.WithTimeout(ctx, r.cfg.VectorTimeout)
		defer cancel()
		memories, err := r.fusion.Search(opCtx, q, cls.Strategy, limit)
		if err != nil {
			fail("vector_search", err)
			return
		}
		mu.Lock()
		result.Memories = memories
		mu.Unlock()
	}()

	if cls.Includes(types.CategoryFactual) {
		attempts++
		wg.Add(1)
		go func() {
			defer wg.Done()
			opCtx, cancel := context.WithTimeout(ctx, r.cfg.GraphTimeout)
			defer cancel()
			facts, err := r.facts.GetUserFacts(opCtx, q.UserID, factFilter(cls, limit))
			if err != nil {
				fail("user_facts", err)
				return
			}
			mu.Lock()
			result.Facts = facts
			mu.Unlock()
		}()
	}

	wg.Wait()

	if failures == attempts {
		return nil, ErrAllSourcesFailed
	}
	r.emitRetrieve(q, cls, result)
	return result, nil
}

// factFilter scopes the fact read to what the query asked about. A single
// named entity type narrows the read ("what foods do I like" → food);
// multiple named types fall back to the unscoped superset rather than
// guessing which one the user meant.
func factFilter(cls types.Classification, limit int) knowledge.FactFilter {
	filter := knowledge.FactFilter{
		Limit:             limit,
		RelationshipTypes: cls.RelationshipTypes,
	}
	if len(cls.EntityTypes) == 1 {
		filter.EntityType = cls.EntityTypes[0]
	}
	return filter
}

// retrieveTemporal serves "first thing we discussed" style queries
// straight from the chronological index. Ranks reflect position: the
// record best matching the requested direction scores highest.
func (r *Router) retrieveTemporal(ctx context.Context, q types.Query, window types.TemporalWindow, result *Result) error {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.VectorTimeout)
	defer cancel()

	records, err := r.memories.ListChronological(opCtx, q.UserID, q.SessionID, window)
	if err != nil {
		r.logger.Warn("chronological retrieval failed", "user", q.UserID, "err", err)
		return fmt.Errorf("%w: %v", ErrAllSourcesFailed, err)
	}

	result.Memories = make([]types.RankedMemory, 0, len(records))
	for i, rec := range records {
		result.Memories = append(result.Memories, types.RankedMemory{
			Memory: rec,
			Score:  1.0 / float64(i+1),
		})
	}
	return nil
}

func (r *Router) emitRetrieve(q types.Query, cls types.Classification, result *Result) {
	r.emit(Event{
		Kind:     "retrieve",
		UserID:   q.UserID,
		Detail:   fmt.Sprintf("%d memories, %d facts", len(result.Memories), len(result.Facts)),
		Category: string(cls.Category),
		At:       time.Now(),
	})
}

func (r *Router) emit(ev Event) {
	r.mu.RLock()
	publish := r.publish
	r.mu.RUnlock()
	if publish != nil {
		publish(ev)
	}
}
