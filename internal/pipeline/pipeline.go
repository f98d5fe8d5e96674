// Package pipeline implements the supplier enrichment pipeline: query
// planning, web search, relevance filtering, site crawling with contact
// extraction, company validation and the final contact merge.
package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zakupai/supplier-search/internal/contact"
	"github.com/zakupai/supplier-search/internal/model"
	"github.com/zakupai/supplier-search/internal/registry"
	"github.com/zakupai/supplier-search/internal/resilience"
	"github.com/zakupai/supplier-search/pkg/anthropic"
	"github.com/zakupai/supplier-search/pkg/browser"
	"github.com/zakupai/supplier-search/pkg/yandex"
)

// completedNote is stored in the job output when a run finishes.
const completedNote = "Поиск поставщиков завершён"

const techTaskExcerptLen = 160

// Config tunes pipeline behavior. Zero values fall back to defaults in New.
type Config struct {
	Model          string  `yaml:"model" mapstructure:"model"`
	QueryDocsLimit int     `yaml:"query_docs_limit" mapstructure:"query_docs_limit"`
	FuzzyRatio     float64 `yaml:"fuzzy_ratio" mapstructure:"fuzzy_ratio"`
	MaxConcurrency int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	ModelRPS       float64 `yaml:"model_rps" mapstructure:"model_rps"`
	PageRuneLimit  int     `yaml:"page_rune_limit" mapstructure:"page_rune_limit"`
}

// SessionFactory opens a fresh browsing session. Each pipeline run acquires
// one session and closes it when the run ends.
type SessionFactory func() browser.Session

// Pipeline orchestrates the enrichment stages for one supplier search job.
// It performs no storage access; persistence belongs to the caller.
type Pipeline struct {
	cfg      Config
	llm      anthropic.Client
	search   yandex.Client
	sessions SessionFactory
	labels   *registry.Labels
	limiter  *rate.Limiter
}

// New creates a Pipeline with all collaborators.
func New(cfg Config, llm anthropic.Client, search yandex.Client, sessions SessionFactory, labels *registry.Labels) *Pipeline {
	if cfg.QueryDocsLimit <= 0 {
		cfg.QueryDocsLimit = 3
	}
	if cfg.FuzzyRatio <= 0 {
		cfg.FuzzyRatio = contact.DefaultFuzzyRatio
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.ModelRPS <= 0 {
		cfg.ModelRPS = 2
	}
	if cfg.PageRuneLimit <= 0 {
		cfg.PageRuneLimit = 10000
	}

	return &Pipeline{
		cfg:      cfg,
		llm:      llm,
		search:   search,
		sessions: sessions,
		labels:   labels,
		limiter:  rate.NewLimiter(rate.Limit(cfg.ModelRPS), 1),
	}
}

// Run executes the full pipeline for one technical task. It returns an error
// only on context cancellation; provider and navigation failures degrade
// per stage instead of aborting the run.
func (p *Pipeline) Run(ctx context.Context, termsText string, hints []string) (*model.SearchOutput, error) {
	log := zap.L()
	log.Info("pipeline: starting supplier search")

	plan := p.PlanQueries(ctx, termsText, hints)
	log.Info("pipeline: queries planned", zap.Strings("queries", plan.Queries))

	sess := p.sessions()
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("pipeline: close session", zap.Error(err))
		}
	}()

	found, skipped, err := p.collectCandidates(ctx, plan, sess)
	if err != nil {
		return nil, err
	}
	log.Info("pipeline: candidates collected",
		zap.Int("found", len(found)), zap.Int("skipped", len(skipped)))

	processed, err := p.validateCompanies(ctx, plan, sess, found)
	if err != nil {
		return nil, err
	}

	return &model.SearchOutput{
		Queries:           plan.Queries,
		Note:              completedNote,
		TechTaskExcerpt:   contact.TruncateRunes(termsText, techTaskExcerptLen),
		SearchOutput:      found,
		ProcessedContacts: processed,
		SkippedURLs:       skipped,
	}, nil
}

// complete issues one rate-limited model call, tagging failures with the
// provider so stage fallbacks can classify them.
func (p *Pipeline) complete(ctx context.Context, req anthropic.CompletionRequest) (*anthropic.Completion, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	completion, err := p.llm.Complete(ctx, req)
	if err != nil {
		return nil, resilience.NewProviderError("anthropic", err)
	}
	return completion, nil
}
