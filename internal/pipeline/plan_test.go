package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zakupai/supplier-search/internal/registry"
	"github.com/zakupai/supplier-search/pkg/anthropic"
	"github.com/zakupai/supplier-search/pkg/browser"
)

func newTestPipeline(t *testing.T, llm *mockAnthropicClient, search *mockSearchClient, sess *mockSession) *Pipeline {
	t.Helper()
	labels, err := registry.Default()
	require.NoError(t, err)

	return New(Config{
		Model:    "claude-sonnet-4-5",
		ModelRPS: 1000,
	}, llm, search, func() browser.Session { return sess }, labels)
}

func TestFallbackPlan(t *testing.T) {
	plan := FallbackPlan("Need 500 steel bolts\nDIN 933, M10x40", nil)

	assert.Equal(t, []string{
		"Need 500 steel bolts поставщик",
		"Need 500 steel bolts опт",
		"Need 500 steel bolts официальный дилер",
	}, plan.Queries)
	assert.Equal(t, fallbackNote, plan.Note)
}

func TestFallbackPlan_HintsAndCap(t *testing.T) {
	plan := FallbackPlan("Автошины для грузового транспорта", []string{"производитель", ""})

	// Hints extend the keyword list but the plan still caps at three queries.
	require.Len(t, plan.Queries, 3)
	assert.Equal(t, "Автошины для грузового транспорта поставщик", plan.Queries[0])
}

func TestFallbackPlan_LongFirstLine(t *testing.T) {
	long := strings.Repeat("болт ", 40)
	plan := FallbackPlan(long, nil)

	base := strings.TrimSuffix(plan.Queries[0], " поставщик")
	assert.Len(t, []rune(base), 80)
}

func TestFallbackPlan_EmptyTask(t *testing.T) {
	plan := FallbackPlan("   ", nil)
	assert.Equal(t, "закупка оборудования поставщик", plan.Queries[0])
}

func TestPlanQueries_ModelPlan(t *testing.T) {
	llm := &mockAnthropicClient{}
	p := newTestPipeline(t, llm, &mockSearchClient{}, &mockSession{})

	llm.On("Complete", mock.Anything, mock.MatchedBy(func(req anthropic.CompletionRequest) bool {
		return req.MaxTokens == 2500
	})).Return(&anthropic.Completion{Text: `{
		"item": "Поставка крепежа",
		"product_groups": [{"group_name": "Болты", "short_description": "DIN 933, оцинкованные"}],
		"search_queries": ["болты DIN 933 поставщик", "крепёж опт", "", "метизы производитель", "лишний запрос"]
	}`}, nil)

	plan := p.PlanQueries(context.Background(), "Нужно 500 болтов DIN 933", nil)

	assert.Equal(t, []string{"болты DIN 933 поставщик", "крепёж опт", "метизы производитель"}, plan.Queries)
	assert.Equal(t, "Поставка крепежа", plan.Item)
	assert.Contains(t, plan.ValidationSpec, "Наименование закупки: Поставка крепежа")
	assert.Contains(t, plan.ValidationSpec, "- Группа: Болты")
	assert.Empty(t, plan.Note)
}

func TestPlanQueries_ModelFailureFallsBack(t *testing.T) {
	llm := &mockAnthropicClient{}
	p := newTestPipeline(t, llm, &mockSearchClient{}, &mockSession{})

	llm.On("Complete", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	plan := p.PlanQueries(context.Background(), "Need 500 steel bolts", nil)
	assert.Equal(t, "Need 500 steel bolts поставщик", plan.Queries[0])
	assert.Equal(t, fallbackNote, plan.Note)
}

func TestPlanQueries_MalformedOutputFallsBack(t *testing.T) {
	llm := &mockAnthropicClient{}
	p := newTestPipeline(t, llm, &mockSearchClient{}, &mockSession{})

	llm.On("Complete", mock.Anything, mock.Anything).
		Return(&anthropic.Completion{Text: "не могу помочь с этим"}, nil)

	plan := p.PlanQueries(context.Background(), "Закупка ламп", nil)
	assert.Equal(t, fallbackNote, plan.Note)
	require.Len(t, plan.Queries, 3)
}
