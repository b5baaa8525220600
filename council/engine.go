package council

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/council-go/council/emit"
	"github.com/dshills/council-go/council/model"
)

// Engine orchestrates the three-stage deliberation pipeline over a fixed
// council configuration. An Engine is safe for concurrent use; Submit calls
// on distinct conversations run in parallel while calls on the same
// conversation are serialized, so each turn observes the committed context
// of the previous one.
//
// Example:
//
//	store := store.NewMemoryStore()
//	eng, err := council.New(cfg, client, store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := eng.Submit(ctx, "", "What is the CAP theorem?")
type Engine struct {
	cfg     Config
	client  model.Client
	store   ConversationStore
	emitter emit.Emitter
	metrics *Metrics
	retry   RetryPolicy

	rngMu sync.Mutex
	rng   *rand.Rand

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// SubmitResult is the outcome of one successful deliberation turn.
type SubmitResult struct {
	// ConversationID identifies the conversation the turn was committed to.
	// When Submit was called with an empty id this carries the generated one.
	ConversationID string `json:"conversation_id"`

	// Turn is the complete committed turn.
	Turn Turn `json:"turn"`
}

// New creates an Engine from a validated configuration, a model client, and
// a conversation store. Optional dependencies (emitter, metrics, random
// source, retry policy) are supplied via functional options.
func New(cfg Config, client model.Client, store ConversationStore, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid council config: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("model client is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("conversation store is nil")
	}

	var eo engineOptions
	for _, opt := range opts {
		if err := opt(&eo); err != nil {
			return nil, err
		}
	}

	cfg = cfg.withDefaults()

	emitter := eo.emitter
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	rng := eo.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(cryptoSeed())) // #nosec G404 -- label shuffling, seeded from crypto/rand
	}
	retry := defaultRetryPolicy(cfg.MaxRetries)
	if eo.retry != nil {
		retry = *eo.retry
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	return &Engine{
		cfg:     cfg,
		client:  client,
		store:   store,
		emitter: emitter,
		metrics: eo.metrics,
		retry:   retry,
		rng:     rng,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Config returns a copy of the engine's resolved configuration.
func (e *Engine) Config() Config {
	return e.cfg.withDefaults()
}

// Submit runs one complete deliberation turn: stage-1 fan-out, anonymized
// stage-2 review, stage-3 chairman synthesis, and an atomic commit of the
// resulting turn. An empty conversationID starts a new conversation with a
// generated id.
//
// Individual model failures are recorded inside the returned turn and never
// cause an error. Submit returns a *TurnError only when the turn as a whole
// failed: no member produced a stage-1 response, the chairman call failed,
// or the commit failed. In every fatal case the conversation is unchanged.
func (e *Engine) Submit(ctx context.Context, conversationID, query string) (SubmitResult, error) {
	if strings.TrimSpace(query) == "" {
		return SubmitResult{}, fmt.Errorf("query is empty")
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	lock := e.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	e.emitter.Emit(emit.Event{
		ConversationID: conversationID,
		Msg:            "turn_start",
		Meta:           map[string]interface{}{"query_len": len(query)},
	})

	turn, err := e.runTurn(ctx, conversationID, query, start)
	elapsed := time.Since(start)

	if err != nil {
		status := "error"
		var te *TurnError
		if errors.As(err, &te) {
			status = te.Code
		}
		e.metrics.turnFinished(status, elapsed)
		e.emitter.Emit(emit.Event{
			ConversationID: conversationID,
			Msg:            "turn_error",
			Meta: map[string]interface{}{
				"error":       err.Error(),
				"code":        status,
				"duration_ms": elapsed.Milliseconds(),
			},
		})
		return SubmitResult{}, err
	}

	e.metrics.turnFinished("committed", elapsed)
	e.emitter.Emit(emit.Event{
		ConversationID: conversationID,
		Msg:            "turn_commit",
		Meta:           map[string]interface{}{"duration_ms": elapsed.Milliseconds()},
	})
	return SubmitResult{ConversationID: conversationID, Turn: turn}, nil
}

// runTurn executes the three stages and commits the turn. Every error it
// returns is a *TurnError carrying one of the fatal codes.
func (e *Engine) runTurn(ctx context.Context, conversationID, query string, start time.Time) (Turn, error) {
	prior, err := e.store.LoadContext(ctx, conversationID)
	if err != nil {
		return Turn{}, turnError(CodePersistenceFailure, err, "loading conversation context")
	}
	prior = e.priorWindow(prior)

	d := &dispatcher{
		client:  e.client,
		timeout: e.cfg.CallTimeout,
		retry:   e.retry,
		emitter: e.emitter,
		metrics: e.metrics,
	}

	// Stage 1: first opinions from every member, concurrently.
	e.emitStage(conversationID, "stage1", "stage_start", nil)
	stage1 := d.dispatch(ctx, conversationID, "stage1", e.cfg.Members, func(member string) model.Request {
		return model.Request{Model: member, System: stage1System, Prompt: query}
	})
	succeeded := successfulMembers(stage1)
	e.emitStage(conversationID, "stage1", "stage_end", map[string]interface{}{
		"succeeded": len(succeeded),
		"failed":    len(stage1) - len(succeeded),
	})

	if len(succeeded) == 0 {
		return Turn{}, turnErrorf(CodeNoStage1Responses, "all %d council members failed stage 1", len(e.cfg.Members))
	}

	// Stage 2: anonymized peer review. The label permutation is drawn fresh
	// per turn so reviewers cannot correlate labels across turns.
	anon := e.anonymizeLocked(stage1)

	reviewers := e.cfg.Members
	if e.cfg.ExcludeFailedReviewers {
		reviewers = succeeded
	}

	reviewPrompt := buildReviewPrompt(query, anon, stage1)
	e.emitStage(conversationID, "stage2", "stage_start", map[string]interface{}{
		"reviewers": len(reviewers),
		"responses": anon.size(),
	})
	stage2raw := d.dispatch(ctx, conversationID, "stage2", reviewers, func(member string) model.Request {
		return model.Request{Model: member, System: reviewSystem, Prompt: reviewPrompt}
	})
	stage2 := make(map[string]ReviewResult, len(stage2raw))
	for member, res := range stage2raw {
		stage2[member] = toReviewResult(res, anon)
	}
	e.emitStage(conversationID, "stage2", "stage_end", nil)

	// Stage 3: chairman synthesis over the de-anonymized material.
	e.emitStage(conversationID, "stage3", "stage_start", nil)
	chairmanReq := model.Request{
		Model:  e.cfg.Chairman,
		System: chairmanSystem,
		Prompt: buildChairmanPrompt(query, stage1, stage2, prior, e.cfg.Members),
	}
	chairRes := d.call(ctx, conversationID, "stage3", e.cfg.Chairman, chairmanReq)
	e.emitStage(conversationID, "stage3", "stage_end", nil)

	if chairRes.Error != nil {
		return Turn{}, turnErrorf(CodeChairmanFailure, "chairman %s failed: %s", e.cfg.Chairman, chairRes.Error.Error())
	}
	if strings.TrimSpace(chairRes.Content) == "" {
		return Turn{}, turnErrorf(CodeChairmanFailure, "chairman %s returned empty output", e.cfg.Chairman)
	}

	turn := Turn{
		Query:           query,
		CreatedAt:       start.UTC(),
		Stage1:          stage1,
		Stage2:          stage2,
		Stage3:          splitSynthesis(chairRes.Content, succeeded),
		DurationSeconds: time.Since(start).Seconds(),
	}

	if _, err := e.store.Commit(ctx, conversationID, turn); err != nil {
		return Turn{}, turnError(CodePersistenceFailure, err, "committing turn")
	}
	return turn, nil
}

// ListConversations returns summaries of all stored conversations, newest
// first.
func (e *Engine) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	return e.store.List(ctx)
}

// GetConversation returns the full record of one conversation, ErrNotFound
// when the id is unknown.
func (e *Engine) GetConversation(ctx context.Context, conversationID string) (ConversationRecord, error) {
	return e.store.Get(ctx, conversationID)
}

// DeleteConversation removes a conversation and all of its turns. A
// subsequent Submit with the same id starts a fresh conversation.
func (e *Engine) DeleteConversation(ctx context.Context, conversationID string) error {
	return e.store.Delete(ctx, conversationID)
}

// priorWindow trims committed turns to the configured chairman context
// window. Negative PriorTurns disables continuation context.
func (e *Engine) priorWindow(turns []Turn) []Turn {
	if e.cfg.PriorTurns < 0 {
		return nil
	}
	if len(turns) > e.cfg.PriorTurns {
		turns = turns[len(turns)-e.cfg.PriorTurns:]
	}
	return turns
}

// anonymizeLocked draws the per-turn label permutation. rand.Rand is not
// safe for concurrent use, and turns on distinct conversations run in
// parallel.
func (e *Engine) anonymizeLocked(stage1 map[string]ModelResult) *anonymization {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return anonymize(stage1, e.rng)
}

// conversationLock returns the mutex serializing turns on one conversation,
// creating it on first use.
func (e *Engine) conversationLock(conversationID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	lock, ok := e.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[conversationID] = lock
	}
	return lock
}

func (e *Engine) emitStage(conversationID, stage, msg string, meta map[string]interface{}) {
	e.emitter.Emit(emit.Event{
		ConversationID: conversationID,
		Stage:          stage,
		Msg:            msg,
		Meta:           meta,
	})
}

// successfulMembers returns the names of members whose stage-1 call
// succeeded, sorted for deterministic downstream ordering.
func successfulMembers(stage1 map[string]ModelResult) []string {
	out := make([]string, 0, len(stage1))
	for member, res := range stage1 {
		if res.OK() {
			out = append(out, member)
		}
	}
	sort.Strings(out)
	return out
}

// cryptoSeed seeds the default label-shuffling source from the OS entropy
// pool, falling back to the clock if the read fails.
func cryptoSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
