package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
)

// SearchResult is a single literature hit returned to the model.
type SearchResult struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Year    int    `json:"year,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	URL     string `json:"url,omitempty"`
}

// SearchProvider abstracts the backing literature index. Implementations
// must be safe for concurrent use.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

const defaultSearchLimit = 5

// NewLiteratureSearchTool builds the search_literature tool on top of a
// SearchProvider. Results are cached per session keyed on the normalized
// query so repeated lookups within a conversation do not hit the provider
// again.
func NewLiteratureSearchTool(provider SearchProvider) *FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query for the literature index",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return",
			},
		},
		"required": []string{"query"},
	}

	fn := func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		query, _ := args["query"].(string)
		query = strings.TrimSpace(query)
		if query == "" {
			return nil, NewToolError("search_literature", "query must not be empty", CodeValidation)
		}

		limit := defaultSearchLimit
		if raw, ok := args["limit"].(float64); ok && raw > 0 {
			limit = int(raw)
		}

		cacheKey := fmt.Sprintf("search_literature:%s:%d", strings.ToLower(query), limit)
		if cached, ok := toolCtx.CachedResult(cacheKey); ok && cached.Error == "" {
			toolCtx.LogDebug("literature search cache hit", "query", query)
			return cached.Payload, nil
		}

		results, err := provider.Search(toolCtx.Context(), query, limit)
		if err != nil {
			return nil, NewToolError("search_literature", err.Error(), CodeExecution)
		}

		payload := map[string]any{
			"query":   query,
			"results": results,
			"count":   len(results),
		}
		toolCtx.CacheResult(cacheKey, core.ToolResult{
			ID:      toolCtx.CallID(),
			Name:    "search_literature",
			Payload: payload,
		})

		return payload, nil
	}

	return NewFunctionTool(
		"search_literature",
		"Search the research literature index for publications matching a query.",
		parameters,
		fn,
	)
}

// StaticSearchProvider serves a fixed result set filtered by naive substring
// match. It backs local development and tests.
type StaticSearchProvider struct {
	Results []SearchResult
}

// Search implements SearchProvider.
func (p *StaticSearchProvider) Search(_ context.Context, query string, limit int) ([]SearchResult, error) {
	q := strings.ToLower(query)
	var hits []SearchResult
	for _, r := range p.Results {
		if strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.Snippet), q) {
			hits = append(hits, r)
			if len(hits) >= limit {
				break
			}
		}
	}
	return hits, nil
}
