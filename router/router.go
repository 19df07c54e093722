// Package router is the orchestration entry point: it owns sessions, runs
// the per-turn routing pipeline (compression, classification, confidence
// scoring, handoff) and drives the streaming execution engine, delivering
// one ordered chunk stream per turn.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/compress"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/handler"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/intent"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/model"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/stream"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Options holds optional router collaborators.
type Options struct {
	// Logger receives structured pipeline logs. Defaults to a no-op logger.
	Logger logging.Logger
	// Attachments resolves uploaded attachment ids. Without a resolver,
	// attachment ids are accepted as-is.
	Attachments core.AttachmentResolver
}

// Router routes conversational turns to specialized handlers. Turns within
// one session are serialized; different sessions proceed concurrently.
type Router struct {
	cfg        *config.Config
	registry   *handler.Registry
	classifier *intent.Classifier
	scorer     *intent.Scorer
	compressor *compress.Compressor
	engine     *stream.Engine
	sessions   core.SessionStore
	resolver   core.AttachmentResolver
	caches     *core.SessionCaches
	logger     logging.Logger

	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex
	activeRuns   map[string]context.CancelFunc
}

// New wires a router over the handler registry and session store. The
// classifier shares the registry's model.
func New(cfg *config.Config, reg *handler.Registry, store core.SessionStore, optFns ...func(o *Options)) *Router {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Router{
		cfg:          cfg,
		registry:     reg,
		classifier:   intent.NewClassifier(reg.Fallback().Model, reg, cfg, opts.Logger),
		scorer:       intent.NewScorer(cfg.Scoring),
		compressor:   compress.New(cfg.Compressor, opts.Logger),
		engine:       stream.New(cfg.Stream, cfg.Inference, opts.Logger),
		sessions:     store,
		resolver:     opts.Attachments,
		caches:       core.NewSessionCaches(),
		logger:       opts.Logger,
		sessionLocks: map[string]*sync.Mutex{},
		activeRuns:   map[string]context.CancelFunc{},
	}
}

// TurnOptions carries per-turn inputs beyond the text.
type TurnOptions struct {
	// Attachments are ids of documents uploaded with this turn.
	Attachments []string
}

// WithAttachments registers uploaded attachment ids for the turn.
func WithAttachments(ids ...string) func(o *TurnOptions) {
	return func(o *TurnOptions) { o.Attachments = append(o.Attachments, ids...) }
}

// RouteTurn processes one user turn. It returns immediately with the run id
// and the ordered chunk stream; the pipeline runs asynchronously and closes
// the channel when the turn completes. Turns on the same session are
// processed strictly in arrival order.
func (r *Router) RouteTurn(ctx context.Context, sessionID, text string, optFns ...func(o *TurnOptions)) (string, <-chan core.OutputChunk, error) {
	if sessionID == "" {
		return "", nil, fmt.Errorf("session id must not be empty")
	}
	if strings.TrimSpace(text) == "" {
		return "", nil, fmt.Errorf("turn text must not be empty")
	}

	var opts TurnOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	runID := core.NewID()
	runCtxBase, cancel := context.WithCancel(ctx)
	chunks := make(chan core.OutputChunk, r.cfg.Stream.ChunkBufferSize)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	go func() {
		defer close(chunks)
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
		}()

		lock := r.sessionLock(sessionID)
		lock.Lock()
		defer lock.Unlock()

		r.processTurn(runCtxBase, runID, sessionID, text, opts, chunks)
	}()

	return runID, chunks, nil
}

// Cancel aborts an in-flight run. In-flight tool executions finish on their
// detached context; their results are discarded.
func (r *Router) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()
	if !ok {
		return ErrRunNotFound
	}
	cancel()
	return nil
}

// EndSession drops the session's cached state. The stored history is kept.
func (r *Router) EndSession(sessionID string) {
	r.caches.Drop(sessionID)
	r.mu.Lock()
	delete(r.sessionLocks, sessionID)
	r.mu.Unlock()
}

func (r *Router) sessionLock(sessionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.sessionLocks[sessionID] = lock
	}
	return lock
}

// processTurn runs the full pipeline for one turn with the session lock held.
func (r *Router) processTurn(ctx context.Context, runID, sessionID, text string, opts TurnOptions, chunks chan<- core.OutputChunk) {
	emit := func(ch core.OutputChunk) bool {
		select {
		case <-ctx.Done():
			return false
		case chunks <- ch:
			return true
		}
	}

	sess, err := r.loadOrCreate(sessionID)
	if err != nil {
		r.logger.Error("session load failed", "session_id", sessionID, "error", err.Error())
		emit(core.ErrorChunk{Message: "session unavailable", Retryable: true})
		return
	}

	if len(opts.Attachments) > 0 {
		r.registerAttachments(ctx, sess, opts.Attachments)
	}

	prev, hadHandler := sess.ActiveHandlerKind()
	if !hadHandler {
		prev = r.registry.Fallback().Kind
	}

	history := sess.GetTurns()
	cc := r.compressor.Compress(history, text)
	if len(cc.References) > 0 {
		emit(core.ReferencesChunk{References: cc.References})
	}

	decision := r.decide(ctx, sess, cc, text)

	if decision.ClarificationNeeded {
		// The turn is preserved even when routing asks for clarification.
		sess.AppendTurn(core.NewUserTurn(text, opts.Attachments...))
		r.persist(sess)
		emit(core.ClarificationChunk{
			Proposed: r.registry.Fallback().Kind,
			Message:  "I am not sure which mode fits this request. Could you say a bit more about what you need?",
		})
		return
	}

	def, err := r.registry.Get(decision.Handler)
	if err != nil {
		r.logger.Error("handler resolution failed", "handler", decision.Handler.String(), "error", err.Error())
		emit(core.ErrorChunk{Message: "handler unavailable", Retryable: false})
		return
	}

	transition := ""
	if !hadHandler || prev != def.Kind {
		// Atomic switch: the new handler owns the session from this turn on
		// and sees the full shared history.
		sess.SetActiveHandler(def.Kind)
		if hadHandler && prev != def.Kind {
			transition = buildTransitionNote(prev, def.Kind, decision.Rationale)
			r.logger.Info("handler switch",
				"session_id", sessionID,
				"from", prev.String(),
				"to", def.Kind.String(),
				"forced_by_attachments", decision.ForcedByAttachments,
				"fallback", decision.Fallback,
			)
		}
	}

	if !decision.ExplicitSwitch {
		// Switch commands are control input, not conversation content.
		sess.AppendTurn(core.NewUserTurn(text, opts.Attachments...))
	}
	if def.Kind == core.HandlerAcademic {
		// The documentation handler consumes pending uploads this turn.
		sess.ClearPendingAttachments()
	}

	runCtx := core.NewRunContext(
		ctx, sessionID, runID, def.Kind, text, chunks,
		sess, r.sessions,
		core.NewModelBudget(r.cfg.Inference.MaxModelCallsPerTurn),
		r.caches.For(sessionID),
		r.logger,
	)

	// A handoff seeds the incoming handler with the full shared history,
	// not the compressed window, so nothing is lost across the switch. The
	// reference notes are redundant in that case.
	contextTurns, contextRefs := cc.Turns, cc.References
	if transition != "" {
		contextTurns, contextRefs = history, nil
	}

	result, err := r.engine.Run(runCtx, def, r.buildRequest(def, contextTurns, contextRefs, text, transition))
	if err != nil {
		if ctx.Err() != nil {
			r.logger.Info("run cancelled", "run_id", runID, "session_id", sessionID)
			r.persist(sess)
			return
		}
		r.logger.Error("generation failed", "run_id", runID, "error", err.Error())
		emit(core.ErrorChunk{Message: "the assistant is temporarily unavailable", Retryable: true})
		r.persist(sess)
		return
	}

	if len(result.ToolResults) > 0 {
		sess.AppendTurn(core.NewToolResultTurn(def.Kind, result.ToolResults...))
	}
	sess.AppendTurn(core.NewHandlerTurn(def.Kind, result.Text))
	sess.SetTokenEstimate(cc.TokenEstimate + compress.EstimateTokens(result.Text))
	r.persist(sess)
}

// decide produces the routing decision for the turn: explicit switch
// requests short-circuit classification, everything else goes through the
// combined call and the confidence scorer, degrading to the fallback handler
// on classification failure.
func (r *Router) decide(ctx context.Context, sess *core.Session, cc core.CompressedContext, text string) intent.Decision {
	if kind, ok := detectExplicitSwitch(text); ok {
		r.logger.Info("explicit switch requested", "session_id", sess.ID, "handler", kind.String())
		return intent.Decision{
			Handler:        kind,
			Combined:       1.0,
			Accepted:       true,
			ExplicitSwitch: true,
			Rationale:      "explicit switch request",
		}
	}

	res, err := r.classifier.Classify(ctx, cc, text)
	if err != nil {
		r.logger.Warn("classification degraded", "session_id", sess.ID, "error", err.Error())
		return r.scorer.FallbackDecision(r.registry.Fallback(), err.Error())
	}
	if len(res.Entities) > 0 {
		r.caches.For(sess.ID).PutEntities(res.Entities)
	}

	def, err := r.registry.Get(res.Handler)
	if err != nil {
		return r.scorer.FallbackDecision(r.registry.Fallback(), err.Error())
	}

	return r.scorer.Score(def, res, intent.Signals{
		PendingAttachments: len(sess.PendingAttachmentIDs()) > 0,
		CompressionApplied: cc.Compressed,
	})
}

func (r *Router) buildRequest(def *handler.Definition, turns []core.Turn, refs []core.ContextualReference, text, transition string) model.Request {
	instructions := def.SystemPrompt
	if transition != "" {
		instructions += "\n\n" + transition
	}

	msgs := model.FromTurns(turns)
	if len(refs) > 0 {
		var b strings.Builder
		b.WriteString("Context notes from earlier in the session:\n")
		for _, ref := range refs {
			fmt.Fprintf(&b, "- [%s] %s\n", ref.Kind, ref.Snippet)
		}
		msgs = append(msgs, model.SystemText(b.String()))
	}
	msgs = append(msgs, model.UserText(text))

	temp := def.Temperature
	return model.Request{
		Instructions: instructions,
		Messages:     msgs,
		Tools:        def.ToolDefinitions(),
		ToolChoice:   model.ToolChoiceAuto,
		Stream:       true,
		Temperature:  &temp,
		MaxTokens:    def.MaxTokens,
	}
}

// loadOrCreate fetches the session, recovering from a missing session by
// creating a fresh one under the same id.
func (r *Router) loadOrCreate(sessionID string) (*core.Session, error) {
	sess, err := r.sessions.Load(sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, core.ErrSessionNotFound) {
		return nil, err
	}
	sess = core.NewSession(sessionID)
	if err := r.sessions.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// registerAttachments validates uploaded ids through the resolver when one
// is configured and records them as pending on the session.
func (r *Router) registerAttachments(ctx context.Context, sess *core.Session, ids []string) {
	if r.resolver != nil {
		metas, err := r.resolver.ResolveByIDs(ctx, ids)
		if err != nil {
			r.logger.Warn("attachment resolution failed", "session_id", sess.ID, "error", err.Error())
		} else {
			resolved := make([]string, 0, len(metas))
			for _, m := range metas {
				resolved = append(resolved, m.ID)
			}
			ids = resolved
		}
	}
	sess.AddPendingAttachments(ids...)
}

// persist writes the session snapshot back to the store.
func (r *Router) persist(sess *core.Session) {
	if err := r.sessions.Save(sess); err != nil {
		r.logger.Error("session persist failed", "session_id", sess.ID, "error", err.Error())
	}
}
