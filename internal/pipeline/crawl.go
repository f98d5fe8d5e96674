package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/zakupai/supplier-search/internal/contact"
	"github.com/zakupai/supplier-search/pkg/browser"
)

// extractSiteContacts loads the candidate's main page and pulls emails and
// phones from it. When the main page yields no emails, the first link that
// fuzzy-matches a contacts label is followed once. Navigation failures
// return empty contacts; the site still proceeds to validation.
func (p *Pipeline) extractSiteContacts(ctx context.Context, sess browser.Session, website string) ([]string, []string) {
	log := zap.L().With(zap.String("website", website))

	if err := sess.Navigate(ctx, website); err != nil {
		log.Warn("crawl: main page unreachable", zap.Error(err))
		return nil, nil
	}

	emails := contact.ExtractEmailsFromHTML(sess.CurrentHTML())
	phones := extractPagePhones(sess.CurrentHTML())
	if len(emails) > 0 {
		return emails, phones
	}

	if !p.openSection(ctx, sess, p.labels.ContactLabels) {
		return emails, phones
	}

	emails = append(emails, contact.ExtractEmailsFromHTML(sess.CurrentHTML())...)
	phones = append(phones, extractPagePhones(sess.CurrentHTML())...)
	return dedupe(emails), dedupe(phones)
}

// siteTexts carries the page texts gathered for one candidate site.
type siteTexts struct {
	Main    string
	About   string
	Catalog string
}

// crawlSections collects text from the main page and, when present, the
// about and catalog sections. The catalog link is searched from wherever the
// about click landed; supplier sites keep these links in a shared nav.
func (p *Pipeline) crawlSections(ctx context.Context, sess browser.Session, website string) (*siteTexts, error) {
	if err := sess.Navigate(ctx, website); err != nil {
		return nil, err
	}

	texts := &siteTexts{
		Main: contact.TruncateRunes(contact.HTMLToText(sess.CurrentHTML()), p.cfg.PageRuneLimit),
	}

	if p.openSection(ctx, sess, p.labels.AboutLabels) {
		texts.About = contact.TruncateRunes(contact.HTMLToText(sess.CurrentHTML()), p.cfg.PageRuneLimit)
	}
	if p.openSection(ctx, sess, p.labels.CatalogLabels) {
		texts.Catalog = contact.TruncateRunes(contact.HTMLToText(sess.CurrentHTML()), p.cfg.PageRuneLimit)
	}

	return texts, nil
}

// openSection tries each label in order and clicks the first link on the
// current page whose text fuzzy-matches it.
func (p *Pipeline) openSection(ctx context.Context, sess browser.Session, labels []string) bool {
	for _, label := range labels {
		for _, link := range sess.FindLinks() {
			if !contact.FuzzyMatch(label, link.Text, p.cfg.FuzzyRatio) {
				continue
			}
			if err := sess.Click(ctx, link); err != nil {
				zap.L().Debug("crawl: section click failed",
					zap.String("label", label), zap.String("url", link.URL), zap.Error(err))
				continue
			}
			return true
		}
	}
	return false
}

func extractPagePhones(html string) []string {
	return contact.ExtractPhones(contact.HTMLToText(html))
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
