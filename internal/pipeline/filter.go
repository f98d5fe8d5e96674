package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/zakupai/supplier-search/internal/model"
	"github.com/zakupai/supplier-search/pkg/anthropic"
)

// verdict is a single relevance decision with its model-provided reason.
type verdict struct {
	Relevant bool
	Reason   string
}

type filterResponse struct {
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason"`
}

// filterResult asks the model whether one search result looks like a direct
// supplier for the purchase. Fails closed: any model or parse error rejects
// the result so noise never reaches the crawl stage.
func (p *Pipeline) filterResult(ctx context.Context, validationSpec string, r model.SearchResult) verdict {
	completion, err := p.complete(ctx, anthropic.CompletionRequest{
		Model:       p.cfg.Model,
		System:      filterSystemPrompt,
		Prompt:      filterPrompt(validationSpec, r.URL, r.Title, r.Snippet),
		Temperature: floatPtr(0),
		MaxTokens:   300,
	})
	if err != nil {
		zap.L().Warn("filter: model call failed", zap.String("url", r.URL), zap.Error(err))
		return verdict{Relevant: false, Reason: "Ошибка проверки результата поиска: " + err.Error()}
	}

	var resp filterResponse
	if err := decodeModelJSON(completion.Text, &resp); err != nil {
		zap.L().Warn("filter: unparseable verdict", zap.String("url", r.URL), zap.Error(err))
		return verdict{Relevant: false, Reason: "Ошибка проверки результата поиска: " + err.Error()}
	}

	return verdict{Relevant: resp.IsRelevant, Reason: strings.TrimSpace(resp.Reason)}
}
