package pipeline

import (
	"github.com/zakupai/supplier-search/internal/model"
)

// MergeContacts joins validation verdicts with the emails collected at search
// time, keyed by normalized website. Sites that only produced emails and were
// never validated are kept and treated as relevant, so a collected contact is
// never silently lost.
func MergeContacts(processed []model.SupplierCandidate, searchOutput []model.SiteContacts) []model.SupplierCandidate {
	emailsBySite := make(map[string][]string)
	siteOrder := make([]string, 0, len(searchOutput))
	for _, item := range searchOutput {
		site := model.NormalizeWebsite(item.Website)
		if site == "" {
			continue
		}
		if _, ok := emailsBySite[site]; !ok {
			siteOrder = append(siteOrder, site)
		}
		emails := item.Emails
		if emails == nil {
			emails = []string{}
		}
		emailsBySite[site] = emails
	}

	var merged []model.SupplierCandidate
	seen := make(map[string]bool)
	for _, c := range processed {
		site := model.NormalizeWebsite(c.Website)
		if site == "" || seen[site] {
			continue
		}
		seen[site] = true

		// Sites validated without collected emails still serialize with an
		// empty array, not null.
		emails := emailsBySite[site]
		if emails == nil {
			emails = []string{}
		}
		merged = append(merged, model.SupplierCandidate{
			Website:    site,
			IsRelevant: c.IsRelevant,
			Reason:     c.Reason,
			Name:       c.Name,
			Emails:     emails,
		})
	}

	for _, site := range siteOrder {
		if seen[site] {
			continue
		}
		merged = append(merged, model.SupplierCandidate{
			Website:    site,
			IsRelevant: true,
			Emails:     emailsBySite[site],
		})
	}

	return merged
}
