package aicategorization

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompatClient_Categorize_ParsesSuggestionsAndDropsUnknownIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":` +
			`"Sure, here you go:\n{\"suggestions\":[` +
			`{\"transaction_id\":1,\"category_id\":5,\"confidence\":1.5,\"reasoning\":\"groceries\"},` +
			`{\"transaction_id\":999,\"category_id\":null,\"confidence\":0.2,\"reasoning\":\"unknown id\"}` +
			`]}\nhope that helps"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAICompatClient(server.URL, "test-key", "test-model")
	batch := []TransactionCandidate{{TransactionID: 1, Description: "Groceries", AmountCents: -4200, Currency: "EUR"}}
	categories := []CategoryOption{{ID: 5, Path: "Food > Groceries"}}

	suggestions, err := client.Categorize(batch, categories)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, int64(1), suggestions[0].TransactionID)
	require.NotNil(t, suggestions[0].CategoryID)
	assert.Equal(t, int64(5), *suggestions[0].CategoryID)
	assert.Equal(t, 1.0, suggestions[0].Confidence) // clamped from 1.5
}

func TestOpenAICompatClient_Categorize_EmptyBatchShortCircuits(t *testing.T) {
	client := NewOpenAICompatClient("http://unused.invalid", "", "m")
	suggestions, err := client.Categorize(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestOpenAICompatClient_Categorize_NonSuccessStatusReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOpenAICompatClient(server.URL, "", "m")
	_, err := client.Categorize([]TransactionCandidate{{TransactionID: 1}}, nil)
	require.Error(t, err)
}
