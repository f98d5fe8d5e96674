package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/zakupai/supplier-search/internal/resilience"
)

func TestNavigateAndFindLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body>
			<a href="/contacts">Контакты</a>
			<a href="/catalog">Каталог</a>
			<a href="mailto:sales@example.ru">Почта</a>
			<a href="#top">Наверх</a>
			<a href="https://other.example/">Партнёр</a>
		</body></html>`))
	})
	mux.HandleFunc("/contacts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body>Телефон: +7 (495) 123-45-67</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewSession()
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Navigate(context.Background(), server.URL))

	links := s.FindLinks()
	require.Len(t, links, 3)
	assert.Equal(t, "Контакты", links[0].Text)
	assert.Equal(t, server.URL+"/contacts", links[0].URL)
	assert.Equal(t, "Каталог", links[1].Text)
	assert.Equal(t, "Партнёр", links[2].Text)

	require.NoError(t, s.Click(context.Background(), links[0]))
	assert.Contains(t, s.CurrentHTML(), "+7 (495) 123-45-67")
	assert.Equal(t, server.URL+"/contacts", s.CurrentURL())
}

func TestNavigateWindows1251(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().Bytes([]byte(`<html><body>О компании</body></html>`))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		_, _ = w.Write(encoded)
	}))
	defer server.Close()

	s := NewSession()
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Navigate(context.Background(), server.URL))
	assert.Contains(t, s.CurrentHTML(), "О компании")
}

func TestNavigateStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewSession()
	defer func() { _ = s.Close() }()

	err := s.Navigate(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsNavigationError(err))
}

func TestNavigateUnreachable(t *testing.T) {
	s := NewSession()
	defer func() { _ = s.Close() }()

	// Port 0 is never listening.
	err := s.Navigate(context.Background(), "http://127.0.0.1:0/")
	require.Error(t, err)
	assert.True(t, resilience.IsNavigationError(err))
}
