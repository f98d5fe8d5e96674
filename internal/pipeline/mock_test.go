package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zakupai/supplier-search/pkg/anthropic"
	"github.com/zakupai/supplier-search/pkg/browser"
	"github.com/zakupai/supplier-search/pkg/yandex"
)

// --- Anthropic mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) Complete(ctx context.Context, req anthropic.CompletionRequest) (*anthropic.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.Completion), args.Error(1)
}

// --- Yandex mock ---

type mockSearchClient struct {
	mock.Mock
}

func (m *mockSearchClient) Search(ctx context.Context, query string) ([]yandex.Result, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]yandex.Result), args.Error(1)
}

// --- Browser session mock ---

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Navigate(ctx context.Context, rawURL string) error {
	return m.Called(ctx, rawURL).Error(0)
}

func (m *mockSession) CurrentHTML() string {
	return m.Called().String(0)
}

func (m *mockSession) CurrentURL() string {
	return m.Called().String(0)
}

func (m *mockSession) FindLinks() []browser.Link {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]browser.Link)
}

func (m *mockSession) Click(ctx context.Context, link browser.Link) error {
	return m.Called(ctx, link).Error(0)
}

func (m *mockSession) Close() error {
	return m.Called().Error(0)
}
