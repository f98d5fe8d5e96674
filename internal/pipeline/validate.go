package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zakupai/supplier-search/internal/model"
	"github.com/zakupai/supplier-search/pkg/anthropic"
	"github.com/zakupai/supplier-search/pkg/browser"
)

type validateResponse struct {
	IsRelevant bool    `json:"is_relevant"`
	Reason     string  `json:"reason"`
	Name       *string `json:"name"`
}

// validateCompanies crawls each accepted site's main, about and catalog
// sections and asks the model whether the company fits the purchase. Crawling
// is serial because runs hold a single browser session; the model calls fan
// out afterwards. Every input site produces a candidate: unreachable or
// rejected sites come back with IsRelevant=false and a reason.
func (p *Pipeline) validateCompanies(ctx context.Context, plan *SearchPlan, sess browser.Session, found []model.SiteContacts) ([]model.SupplierCandidate, error) {
	log := zap.L()

	type crawled struct {
		site  model.SiteContacts
		texts *siteTexts
		err   error
	}

	var pages []crawled
	seen := make(map[string]bool)
	for _, site := range found {
		if seen[site.Website] {
			continue
		}
		seen[site.Website] = true

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		texts, err := p.crawlSections(ctx, sess, site.Website)
		if err != nil {
			log.Warn("validate: site crawl failed", zap.String("website", site.Website), zap.Error(err))
		}
		pages = append(pages, crawled{site: site, texts: texts, err: err})
	}

	candidates := make([]model.SupplierCandidate, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrency)
	for i, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if page.err != nil {
				candidates[i] = model.SupplierCandidate{
					Website:    page.site.Website,
					IsRelevant: false,
					Reason:     "Ошибка при анализе сайта: " + page.err.Error(),
					Emails:     page.site.Emails,
				}
				return nil
			}
			candidates[i] = p.validateCompany(gctx, plan.ValidationSpec, page.site, page.texts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return candidates, nil
}

// validateCompany runs one company-fit model call. Fails closed on model or
// parse errors so a broken response never admits a supplier.
func (p *Pipeline) validateCompany(ctx context.Context, validationSpec string, site model.SiteContacts, texts *siteTexts) model.SupplierCandidate {
	candidate := model.SupplierCandidate{
		Website: site.Website,
		Emails:  site.Emails,
	}

	block := buildSiteTextBlock(texts.Main, texts.About, texts.Catalog)
	completion, err := p.complete(ctx, anthropic.CompletionRequest{
		Model:       p.cfg.Model,
		System:      validateSystemPrompt,
		Prompt:      validatePrompt(validationSpec, block),
		Temperature: floatPtr(0),
		MaxTokens:   400,
	})
	if err != nil {
		zap.L().Warn("validate: model call failed", zap.String("website", site.Website), zap.Error(err))
		candidate.Reason = "Ошибка при анализе сайта: " + err.Error()
		return candidate
	}

	var resp validateResponse
	if err := decodeModelJSON(completion.Text, &resp); err != nil {
		zap.L().Warn("validate: unparseable verdict", zap.String("website", site.Website), zap.Error(err))
		candidate.Reason = "Ошибка при анализе сайта: " + err.Error()
		return candidate
	}

	candidate.IsRelevant = resp.IsRelevant
	candidate.Reason = strings.TrimSpace(resp.Reason)
	if candidate.Reason == "" {
		candidate.Reason = "Нет детального пояснения."
	}
	if resp.Name != nil {
		if name := strings.TrimSpace(*resp.Name); name != "" {
			candidate.Name = &name
		}
	}
	return candidate
}
