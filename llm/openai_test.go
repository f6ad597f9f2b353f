package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/webpeel/webpeel/models"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"content": content}},
				},
			})
		} else {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "nope"},
			})
		}
	}))
}

func TestExtract(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"price": "$99", "inStock": true}`)
	defer srv.Close()

	c := NewClient(nil)
	fields, err := c.Extract(context.Background(), "Product page content", &models.ExtractConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Prompt:  "Extract price and stock status.",
		Schema:  map[string]any{"price": "string", "inStock": "boolean"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if fields["price"] != "$99" || fields["inStock"] != true {
		t.Errorf("fields = %+v", fields)
	}
}

func TestExtract_AuthError(t *testing.T) {
	srv := chatServer(t, http.StatusUnauthorized, "")
	defer srv.Close()

	c := NewClient(nil)
	_, err := c.Extract(context.Background(), "content", &models.ExtractConfig{
		APIKey: "sk-test", BaseURL: srv.URL,
	})
	pe, ok := err.(*models.PeelError)
	if !ok || pe.Code != models.ErrCodeLLMAuthFailure {
		t.Fatalf("err = %v", err)
	}
}

func TestExtract_MissingKey(t *testing.T) {
	c := NewClient(nil)
	_, err := c.Extract(context.Background(), "content", &models.ExtractConfig{})
	pe, ok := err.(*models.PeelError)
	if !ok || pe.Code != models.ErrCodeLLMAuthFailure {
		t.Fatalf("err = %v", err)
	}
}

func TestExtract_InvalidJSONFromModel(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "not json at all")
	defer srv.Close()

	c := NewClient(nil)
	_, err := c.Extract(context.Background(), "content", &models.ExtractConfig{
		APIKey: "sk-test", BaseURL: srv.URL,
	})
	pe, ok := err.(*models.PeelError)
	if !ok || pe.Code != models.ErrCodeLLMFailure {
		t.Fatalf("err = %v", err)
	}
}
