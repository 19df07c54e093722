// Package copilot provides a high-level façade over the routing pipeline:
// session management, context compression, combined intent classification,
// confidence-scored handler routing and streaming tool-call execution. Most
// applications interact with this package by:
//  1. Creating a Copilot via New() (optionally overriding the model,
//     session store and tool set)
//  2. Sending user turns asynchronously (SendTurn) or synchronously
//     (SendTurnSync)
//
// The façade delegates orchestration to router.Router while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a real inference
// model, a durable session store and a structured logger.
package copilot

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/handler"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/model"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/router"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/session"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/tool"
)

// Options configures the Copilot instance.
type Options struct {
	// Config holds the routing, compression and streaming constants.
	// Defaults to config.DefaultConfig().
	Config *config.Config

	// Model is the inference backend shared by classification and all
	// handlers. Defaults to the deterministic stub, which is only useful
	// for tests.
	Model model.Model

	// SessionStore persists sessions (defaults to in-memory).
	SessionStore core.SessionStore

	// SearchProvider backs the literature search tool (defaults to an
	// empty static index).
	SearchProvider tool.SearchProvider

	// ExtraTools are added to the tool catalog next to the built-ins.
	ExtraTools []tool.Tool

	// Attachments resolves uploaded attachment ids (optional).
	Attachments core.AttachmentResolver

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Copilot is the high-level façade aggregating the router and its services.
type Copilot struct {
	opts   Options
	router *router.Router
}

// New creates a Copilot with optional overrides. Any unset service is
// initialized with a local default.
func New(optFns ...func(o *Options)) (*Copilot, error) {
	opts := Options{
		Config:         config.DefaultConfig(),
		Model:          model.NewStubModel(),
		SessionStore:   session.NewInMemoryStore(),
		SearchProvider: &tool.StaticSearchProvider{},
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("copilot config: %w", err)
	}

	limited := model.NewRateLimited(opts.Model, rate.NewLimiter(
		rate.Limit(opts.Config.Inference.RequestsPerSecond),
		opts.Config.Inference.Burst,
	))

	tools := append([]tool.Tool{tool.NewLiteratureSearchTool(opts.SearchProvider)}, opts.ExtraTools...)
	catalog, err := tool.Catalog(tools...)
	if err != nil {
		return nil, fmt.Errorf("copilot tools: %w", err)
	}

	registry, err := handler.NewRegistry(opts.Config, limited, catalog)
	if err != nil {
		return nil, fmt.Errorf("copilot handlers: %w", err)
	}

	r := router.New(opts.Config, registry, opts.SessionStore, func(o *router.Options) {
		o.Logger = opts.Logger
		o.Attachments = opts.Attachments
	})

	return &Copilot{opts: opts, router: r}, nil
}

// SendTurn starts asynchronous processing of a user turn, returning the run
// id and the ordered chunk stream. The channel closes when the turn is done.
func (c *Copilot) SendTurn(ctx context.Context, sessionID, text string, optFns ...func(o *router.TurnOptions)) (string, <-chan core.OutputChunk, error) {
	return c.router.RouteTurn(ctx, sessionID, text, optFns...)
}

// SendTurnSync is a synchronous helper that drains the chunk stream and
// returns all chunks along with the run id.
func (c *Copilot) SendTurnSync(ctx context.Context, sessionID, text string, optFns ...func(o *router.TurnOptions)) (string, []core.OutputChunk, error) {
	runID, chunks, err := c.router.RouteTurn(ctx, sessionID, text, optFns...)
	if err != nil {
		return "", nil, err
	}

	var collected []core.OutputChunk
	for {
		select {
		case <-ctx.Done():
			// Context cancelled; return chunks collected so far.
			return runID, collected, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return runID, collected, nil
			}
			collected = append(collected, chunk)
		}
	}
}

// Cancel aborts an in-flight run.
func (c *Copilot) Cancel(runID string) error { return c.router.Cancel(runID) }

// EndSession drops per-session cached state. The stored history is kept.
func (c *Copilot) EndSession(sessionID string) { c.router.EndSession(sessionID) }

// Session loads a session snapshot from the configured store.
func (c *Copilot) Session(sessionID string) (*core.Session, error) {
	return c.opts.SessionStore.Load(sessionID)
}
