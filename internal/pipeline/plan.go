package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/zakupai/supplier-search/internal/contact"
	"github.com/zakupai/supplier-search/pkg/anthropic"
)

// fallbackNote explains a plan built without the language model.
const fallbackNote = "Запросы построены по резервной схеме без обращения к языковой модели."

// fallbackKeywords seed the deterministic query plan.
var fallbackKeywords = []string{"поставщик", "опт", "официальный дилер"}

const (
	maxQueries       = 3
	fallbackBaseLen  = 80
	defaultQueryBase = "закупка оборудования"
)

// ProductGroup is one product family from the summarized technical task.
type ProductGroup struct {
	GroupName        string `json:"group_name"`
	ShortDescription string `json:"short_description"`
}

// SearchPlan is the stage output: ranked search queries plus the compact
// validation spec the later model calls judge candidates against.
type SearchPlan struct {
	Item           string
	SummarySpec    string
	ProductGroups  []ProductGroup
	Queries        []string
	ValidationSpec string
	Note           string
}

type planResponse struct {
	Item          string         `json:"item"`
	SummarySpec   string         `json:"summary_spec"`
	ProductGroups []ProductGroup `json:"product_groups"`
	SearchQueries []string       `json:"search_queries"`
}

// PlanQueries summarizes the technical task into search queries. Any model or
// parse failure degrades to the deterministic fallback plan so a job never
// fails at the planning stage.
func (p *Pipeline) PlanQueries(ctx context.Context, termsText string, hints []string) *SearchPlan {
	log := zap.L()

	completion, err := p.complete(ctx, anthropic.CompletionRequest{
		Model:       p.cfg.Model,
		System:      planSystemPrompt,
		Prompt:      planPrompt(termsText),
		Temperature: floatPtr(0.2),
		MaxTokens:   2500,
	})
	if err != nil {
		log.Warn("plan: model call failed, using fallback", zap.Error(err))
		return FallbackPlan(termsText, hints)
	}

	var resp planResponse
	if err := decodeModelJSON(completion.Text, &resp); err != nil {
		log.Warn("plan: unparseable model output, using fallback", zap.Error(err))
		return FallbackPlan(termsText, hints)
	}

	var queries []string
	for _, q := range resp.SearchQueries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		log.Warn("plan: model returned no queries, using fallback")
		return FallbackPlan(termsText, hints)
	}
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}

	plan := &SearchPlan{
		Item:          strings.TrimSpace(resp.Item),
		SummarySpec:   strings.TrimSpace(resp.SummarySpec),
		ProductGroups: resp.ProductGroups,
		Queries:       queries,
	}
	plan.ValidationSpec = buildValidationSpec(plan)
	return plan
}

// FallbackPlan builds queries without the model: the first line of the task,
// capped at 80 characters, combined with stock procurement keywords and any
// caller hints.
func FallbackPlan(termsText string, hints []string) *SearchPlan {
	base := defaultQueryBase
	if trimmed := strings.TrimSpace(termsText); trimmed != "" {
		firstLine, _, _ := strings.Cut(trimmed, "\n")
		base = contact.TruncateRunes(firstLine, fallbackBaseLen)
	}

	keywords := make([]string, 0, len(fallbackKeywords)+len(hints))
	keywords = append(keywords, fallbackKeywords...)
	for _, h := range hints {
		if h = strings.TrimSpace(h); h != "" {
			keywords = append(keywords, h)
		}
	}

	queries := make([]string, 0, maxQueries)
	for _, kw := range keywords {
		queries = append(queries, base+" "+kw)
		if len(queries) == maxQueries {
			break
		}
	}

	plan := &SearchPlan{
		Item:    base,
		Queries: queries,
		Note:    fallbackNote,
	}
	plan.ValidationSpec = buildValidationSpec(plan)
	return plan
}

// buildValidationSpec renders the plan as the compact technical-task text the
// filter and validation prompts embed.
func buildValidationSpec(plan *SearchPlan) string {
	var lines []string

	if plan.Item != "" {
		lines = append(lines, "Наименование закупки: "+plan.Item)
	}
	if plan.SummarySpec != "" {
		lines = append(lines, "\nКраткое описание и требования:", plan.SummarySpec)
	}
	if len(plan.ProductGroups) > 0 {
		lines = append(lines, "\nОсновные группы продукции:")
		for _, g := range plan.ProductGroups {
			name := strings.TrimSpace(g.GroupName)
			desc := strings.TrimSpace(g.ShortDescription)

			var groupLines []string
			if name != "" {
				groupLines = append(groupLines, "- Группа: "+name)
			}
			if desc != "" {
				groupLines = append(groupLines, "  Описание: "+desc)
			}
			if len(groupLines) > 0 {
				lines = append(lines, strings.Join(groupLines, "\n"))
			}
		}
	}

	return strings.Join(lines, "\n")
}

func floatPtr(f float64) *float64 { return &f }
