package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const productPage = `<!DOCTYPE html>
<html><head><title>  Amazon.com: Acme Widget Pro, Black :
  Electronics </title></head>
<body>
<div id="centerCol"><h1><span id="productTitle">
        Acme Widget Pro (2nd Gen)
</span></h1></div>
</body></html>`

func TestParseTitles(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantDoc     string
		wantProduct string
		wantBest    string
	}{
		{
			name:        "marketplace page",
			body:        productPage,
			wantDoc:     "Amazon.com: Acme Widget Pro, Black : Electronics",
			wantProduct: "Acme Widget Pro (2nd Gen)",
			wantBest:    "Acme Widget Pro (2nd Gen)",
		},
		{
			name:     "plain page",
			body:     `<html><head><title>Widget | Shop</title></head><body></body></html>`,
			wantDoc:  "Widget | Shop",
			wantBest: "Widget | Shop",
		},
		{
			name: "no title",
			body: `<html><body><p>nothing here</p></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTitles([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Document != tt.wantDoc {
				t.Errorf("Document = %q, want %q", got.Document, tt.wantDoc)
			}
			if got.Product != tt.wantProduct {
				t.Errorf("Product = %q, want %q", got.Product, tt.wantProduct)
			}
			if got.Best() != tt.wantBest {
				t.Errorf("Best() = %q, want %q", got.Best(), tt.wantBest)
			}
		})
	}
}

func TestFetch_SendsBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept-Language") != "en-US,en;q=0.9" {
			t.Errorf("unexpected accept-language %q", r.Header.Get("Accept-Language"))
		}
		w.Write([]byte(productPage))
	}))
	defer server.Close()

	f := NewFetcher(time.Second, "")
	page, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.OK() {
		t.Fatalf("expected 200, got %d", page.StatusCode)
	}
	if len(page.Body) != len(productPage) {
		t.Errorf("expected full body, got %d bytes", len(page.Body))
	}
}

func TestFetch_NonSuccessIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	page, err := NewFetcher(time.Second, "").Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.OK() || page.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected a 503 page, got %+v", page)
	}
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	if _, err := NewFetcher(20*time.Millisecond, "").Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("expected a timeout error")
	}
}
