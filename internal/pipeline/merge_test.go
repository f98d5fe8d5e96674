package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zakupai/supplier-search/internal/model"
)

func strPtr(s string) *string { return &s }

func TestMergeContacts(t *testing.T) {
	processed := []model.SupplierCandidate{
		{Website: "https://bolt-factory.ru/", IsRelevant: true, Reason: "завод", Name: strPtr("Завод крепежа")},
		{Website: "https://metiz-opt.ru", IsRelevant: false, Reason: "другая отрасль"},
	}
	searchOutput := []model.SiteContacts{
		// Trailing slash differs from the processed entry; both key to one site.
		{Website: "https://bolt-factory.ru", Emails: []string{"sales@bolt-factory.ru"}},
		{Website: "https://metiz-opt.ru/", Emails: nil},
		{Website: "https://only-emails.ru/", Emails: []string{"info@only-emails.ru"}},
	}

	merged := MergeContacts(processed, searchOutput)
	require.Len(t, merged, 3)

	assert.Equal(t, "https://bolt-factory.ru", merged[0].Website)
	assert.True(t, merged[0].IsRelevant)
	assert.Equal(t, []string{"sales@bolt-factory.ru"}, merged[0].Emails)
	require.NotNil(t, merged[0].Name)

	assert.Equal(t, "https://metiz-opt.ru", merged[1].Website)
	assert.False(t, merged[1].IsRelevant)

	// A site seen only at search time defaults to relevant so its contacts
	// are not dropped.
	assert.Equal(t, "https://only-emails.ru", merged[2].Website)
	assert.True(t, merged[2].IsRelevant)
	assert.Equal(t, []string{"info@only-emails.ru"}, merged[2].Emails)
}

func TestMergeContacts_DuplicateProcessedEntries(t *testing.T) {
	processed := []model.SupplierCandidate{
		{Website: "https://bolt-factory.ru/", IsRelevant: true, Reason: "первый вердикт"},
		{Website: "https://bolt-factory.ru", IsRelevant: false, Reason: "повтор"},
	}

	merged := MergeContacts(processed, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, "первый вердикт", merged[0].Reason)
}

func TestMergeContacts_Idempotent(t *testing.T) {
	processed := []model.SupplierCandidate{
		{Website: "https://bolt-factory.ru", IsRelevant: true, Reason: "ок"},
	}
	searchOutput := []model.SiteContacts{
		{Website: "https://bolt-factory.ru/", Emails: []string{"sales@bolt-factory.ru"}},
	}

	first := MergeContacts(processed, searchOutput)
	second := MergeContacts(first, searchOutput)
	assert.Equal(t, first, second)
}

func TestMergeContacts_NoEmailsYieldsEmptyArray(t *testing.T) {
	// A validated site with no collected emails must carry an empty list,
	// not nil, so the JSON output is "emails":[] rather than null.
	processed := []model.SupplierCandidate{
		{Website: "https://bolt-factory.ru", IsRelevant: true, Reason: "завод"},
	}

	merged := MergeContacts(processed, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, []string{}, merged[0].Emails)

	raw, err := json.Marshal(merged[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"emails":[]`)

	// Same guarantee when the site appears in the search output without
	// any emails attached.
	searchOutput := []model.SiteContacts{
		{Website: "https://bolt-factory.ru/", Emails: nil},
	}
	merged = MergeContacts(processed, searchOutput)
	require.Len(t, merged, 1)
	assert.Equal(t, []string{}, merged[0].Emails)
}

func TestMergeContacts_Empty(t *testing.T) {
	assert.Empty(t, MergeContacts(nil, nil))
}
