package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRestyClientSendsHeadersAndReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "UA" {
			t.Errorf("expected User-Agent UA, got %q", got)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer srv.Close()

	resp, err := NewRestyClient(0).Get(context.Background(), srv.URL, map[string]string{"User-Agent": "UA"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		t.Fatalf("unexpected status %d", resp.StatusCode())
	}
	if string(resp.Body()) != "<rss/>" {
		t.Fatalf("unexpected body %q", resp.Body())
	}
	if resp.Header("Content-Type") != "application/rss+xml" {
		t.Fatalf("unexpected content type %q", resp.Header("Content-Type"))
	}
}

func TestRestyClientHonoursContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewRestyClient(0).Get(ctx, srv.URL, nil); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
