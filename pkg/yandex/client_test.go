package yandex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serpFixture = `<html><body><ul>
<li class="serp-item">
  <a class="Link organic-link" href="https://bolt-factory.ru/catalog/din933">Завод крепежа — болты оптом</a>
  <div class="TextContainer">Производим болты DIN 933 от 500 шт.</div>
  <div class="TextContainer">Доставка по всей России.</div>
</li>
<li class="serp-item">
  <a class="Link" href="https://images.example/"> Картинки </a>
</li>
<li class="serp-item">
  <a class="Link" href="https://metiz-opt.ru/">Метизы оптом</a>
</li>
<li class="serp-item">
  <div class="TextContainer">Блок без ссылки.</div>
</li>
</ul></body></html>`

func TestParseSERP(t *testing.T) {
	results, err := ParseSERP([]byte(serpFixture))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Завод крепежа — болты оптом", results[0].Title)
	assert.Equal(t, "https://bolt-factory.ru/", results[0].URL)
	assert.Equal(t, "Производим болты DIN 933 от 500 шт.\nДоставка по всей России.", results[0].Snippet)

	assert.Equal(t, "Метизы оптом", results[1].Title)
	assert.Equal(t, "https://metiz-opt.ru/", results[1].URL)
	assert.Empty(t, results[1].Snippet)
}

func TestParseSERPEmpty(t *testing.T) {
	results, err := ParseSERP([]byte(`<html><body><p>ничего не найдено</p></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch(t *testing.T) {
	var gotAuth string
	var gotBody searchRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/web/search", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		resp := searchResponse{RawData: base64.StdEncoding.EncodeToString([]byte(serpFixture))}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewClient("test-key", "folder-1", WithBaseURL(server.URL))

	results, err := client.Search(context.Background(), "болты DIN 933 поставщик")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Api-Key test-key", gotAuth)
	assert.Equal(t, "болты DIN 933 поставщик", gotBody.Query.QueryText)
	assert.Equal(t, "folder-1", gotBody.FolderID)
	assert.Equal(t, "FORMAT_HTML", gotBody.ResponseFormat)
}

func TestSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("test-key", "folder-1", WithBaseURL(server.URL))

	_, err := client.Search(context.Background(), "болты")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestSearchMissingRawData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "folder-1", WithBaseURL(server.URL))

	_, err := client.Search(context.Background(), "болты")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rawData")
}
