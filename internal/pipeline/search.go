package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zakupai/supplier-search/internal/contact"
	"github.com/zakupai/supplier-search/internal/model"
	"github.com/zakupai/supplier-search/internal/resilience"
	"github.com/zakupai/supplier-search/pkg/browser"
)

// collectCandidates runs the planned queries and keeps, per query, up to
// QueryDocsLimit relevant sites a buyer has not seen under an earlier query.
// Marketplaces and aggregators are rejected before any model call and
// reported as skipped.
func (p *Pipeline) collectCandidates(ctx context.Context, plan *SearchPlan, sess browser.Session) ([]model.SiteContacts, []string, error) {
	log := zap.L()

	var (
		found   []model.SiteContacts
		skipped []string
	)
	seen := make(map[string]bool)

	for _, query := range plan.Queries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		results, err := p.search.Search(ctx, query)
		if err != nil {
			log.Warn("search: query failed",
				zap.String("query", query),
				zap.Error(err),
				zap.Bool("transient", resilience.IsTransient(err)))
			continue
		}

		var candidates []model.SearchResult
		for _, r := range results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			if contact.IsAggregator(r.URL, p.labels.AggregatorKeywords) {
				skipped = append(skipped, r.URL)
				continue
			}
			candidates = append(candidates, model.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
		}

		verdicts, err := p.filterResults(ctx, plan.ValidationSpec, candidates)
		if err != nil {
			return nil, nil, err
		}

		accepted := 0
		for i, r := range candidates {
			if !verdicts[i].Relevant {
				continue
			}

			emails, phones := p.extractSiteContacts(ctx, sess, r.URL)
			found = append(found, model.SiteContacts{
				Website: r.URL,
				Emails:  emails,
				Phones:  phones,
				Reason:  verdicts[i].Reason,
			})

			accepted++
			if accepted >= p.cfg.QueryDocsLimit {
				break
			}
		}
	}

	return found, skipped, nil
}

// filterResults fans the relevance check over a query's candidates, bounded
// by MaxConcurrency. Verdict order matches the candidate order so ranking
// survives the fan-out.
func (p *Pipeline) filterResults(ctx context.Context, validationSpec string, candidates []model.SearchResult) ([]verdict, error) {
	verdicts := make([]verdict, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrency)
	for i, r := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			verdicts[i] = p.filterResult(gctx, validationSpec, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}
