// Package intent implements the combined entity extraction and intent
// classification call plus the confidence scoring and dynamic threshold
// engine that turns its output into a routing decision.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/config"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/handler"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/logging"
	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/model"
)

// ErrNoClassification indicates the model produced no usable routing action.
// Callers degrade to the fallback handler rather than failing the turn.
var ErrNoClassification = errors.New("no routing action in classification response")

const classifierInstructions = `You route turns of a psychotherapy support conversation to the right specialized handler.
Call exactly one route_* action for the best-fitting handler.
Additionally call tag_entity once per domain entity mentioned in the newest turn.
Base the decision on the newest user turn; use the prior turns and context notes only to resolve references.`

// efficientTurnTokens is the turn length up to which the token efficiency
// component of the derived confidence stays at its maximum.
const efficientTurnTokens = 80

// Classifier performs the single structured model call that yields both the
// routing intent and the extracted entities for a turn.
type Classifier struct {
	model    model.Model
	registry *handler.Registry
	scoring  config.ScoringConfig
	infer    config.InferenceConfig
	logger   logging.Logger
}

// NewClassifier wires a classifier against the shared model and registry.
func NewClassifier(m model.Model, reg *handler.Registry, cfg *config.Config, logger logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Classifier{
		model:    m,
		registry: reg,
		scoring:  cfg.Scoring,
		infer:    cfg.Inference,
		logger:   logger,
	}
}

// routeArgs is the argument payload of a route_* action.
type routeArgs struct {
	Rationale string `json:"rationale"`
	Focus     string `json:"focus"`
}

// entityArgs is the argument payload of a tag_entity action.
type entityArgs struct {
	Type     string  `json:"type"`
	Value    string  `json:"value"`
	Salience float64 `json:"salience"`
}

// Classify runs the combined call over the compressed context and the new
// user text. Transient failures are retried with exponential backoff before
// the error is surfaced; a response without a routing action yields
// ErrNoClassification.
func (c *Classifier) Classify(ctx context.Context, cc core.CompressedContext, text string) (*core.ClassificationResult, error) {
	req := c.buildRequest(cc, text)

	var resp *model.Response
	operation := func() error {
		r, err := c.callOnce(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.infer.RetryBaseDelay),
	), uint64(c.infer.MaxRetries))

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("classification call: %w", err)
	}

	result, err := c.parseResponse(resp, text)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("turn classified",
		"handler", result.Handler.String(),
		"confidence", result.Confidence,
		"entities", len(result.Entities),
	)
	return result, nil
}

// buildRequest assembles the non-streaming structured request: compressed
// history, context notes from the compressor and the new turn, with the
// action grammar attached and tool choice forced.
func (c *Classifier) buildRequest(cc core.CompressedContext, text string) model.Request {
	msgs := model.FromTurns(cc.Turns)
	if note := formatReferences(cc.References); note != "" {
		msgs = append(msgs, model.SystemText(note))
	}
	msgs = append(msgs, model.UserText(text))

	temp := 0.0
	return model.Request{
		Instructions: classifierInstructions,
		Messages:     msgs,
		Tools:        c.registry.IntentActions(),
		ToolChoice:   model.ToolChoiceRequired,
		Stream:       false,
		Temperature:  &temp,
		MaxTokens:    1024,
	}
}

// callOnce performs one Generate call and drains it to the final response.
func (c *Classifier) callOnce(ctx context.Context, req model.Request) (*model.Response, error) {
	respCh, errCh := c.model.Generate(ctx, req)

	var final *model.Response
	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				final = &r
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if final == nil {
		return nil, errors.New("model produced no final response")
	}
	return final, nil
}

// parseResponse extracts the routing action and tagged entities from the
// structured response and derives the intent confidence.
func (c *Classifier) parseResponse(resp *model.Response, text string) (*core.ClassificationResult, error) {
	var (
		def      *handler.Definition
		route    routeArgs
		entities []core.Entity
	)

	for _, call := range resp.ToolCalls {
		if call.Name == handler.TagEntityAction {
			var ea entityArgs
			if err := json.Unmarshal([]byte(call.Arguments), &ea); err != nil {
				c.logger.Warn("malformed entity tag skipped", "error", err.Error())
				continue
			}
			kind, err := core.ParseEntityKind(ea.Type)
			if err != nil || strings.TrimSpace(ea.Value) == "" {
				continue
			}
			entities = append(entities, core.Entity{
				Kind:       kind,
				Value:      strings.ToLower(strings.TrimSpace(ea.Value)),
				Confidence: clamp01(ea.Salience),
				Primary:    ea.Salience >= c.scoring.PrimaryCutoff,
			})
			continue
		}

		d, ok := c.registry.ByAction(call.Name)
		if !ok {
			c.logger.Warn("unknown action in classification response", "action", call.Name)
			continue
		}
		if def != nil {
			// Keep the first routing action; later ones are noise.
			continue
		}
		def = d
		if err := json.Unmarshal([]byte(call.Arguments), &route); err != nil {
			c.logger.Warn("malformed routing arguments", "action", call.Name, "error", err.Error())
		}
	}

	if def == nil {
		return nil, ErrNoClassification
	}

	return &core.ClassificationResult{
		Handler:    def.Kind,
		Confidence: c.deriveConfidence(def, route, text),
		Entities:   entities,
		Rationale:  route.Rationale,
	}, nil
}

// deriveConfidence computes the raw intent confidence from observable
// response quality rather than trusting a self-reported score:
//
//	baseline
//	+ 0.15 * argument completeness (rationale and focus filled)
//	+ 0.30 * keyword overlap between turn and handler vocabulary
//	+ 0.10 * token efficiency (short focused turns classify more reliably)
//
// A conforming response always fills rationale and focus, so completeness is
// effectively a constant; keyword overlap is the discriminating share. With
// zero overlap the sum stays below every adjusted threshold and the turn
// surfaces as a clarification request.
func (c *Classifier) deriveConfidence(def *handler.Definition, route routeArgs, text string) float64 {
	completeness := 0.0
	if strings.TrimSpace(route.Rationale) != "" {
		completeness += 0.5
	}
	if strings.TrimSpace(route.Focus) != "" {
		completeness += 0.5
	}

	overlap := keywordOverlap(text, def.Keywords)

	tokens := (len(text) + 3) / 4
	efficiency := 1.0
	if tokens > efficientTurnTokens {
		efficiency = float64(efficientTurnTokens) / float64(tokens)
	}

	conf := c.scoring.IntentBaseline +
		0.15*completeness +
		0.30*overlap +
		0.10*efficiency
	return clamp01(conf)
}

// keywordOverlap returns the matched share of the handler vocabulary,
// saturating at three hits so long keyword lists are not penalized.
func keywordOverlap(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if hits > 3 {
		hits = 3
	}
	return float64(hits) / 3
}

// formatReferences renders compressor references as a compact context note.
func formatReferences(refs []core.ContextualReference) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Context notes from earlier in the session:\n")
	for _, r := range refs {
		fmt.Fprintf(&b, "- [%s] %s\n", r.Kind, r.Snippet)
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
