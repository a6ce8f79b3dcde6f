package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"dossier/internal/types"
)

func TestFetchAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent/1.0" {
			t.Errorf("missing user agent on feed request, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(sampleRSS))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer http.DefaultTransport.(*http.Transport).CloseIdleConnections()

	var mu sync.Mutex
	health := map[string]bool{}
	f := New("test-agent/1.0", "edgar test agent",
		WithHealthFunc(func(name string, ok bool, latency time.Duration, items int) {
			mu.Lock()
			health[name] = ok
			mu.Unlock()
		}))

	cfg := types.SourcesConfig{
		Feeds:    []string{srv.URL + "/feed.xml", srv.URL + "/broken"},
		WebPages: []string{srv.URL + "/page"},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	items := f.FetchAll(ctx, cfg, nil)
	if len(items) != 3 {
		t.Fatalf("got %d items, want 2 feed entries + 1 page", len(items))
	}

	kinds := map[types.SourceKind]int{}
	for _, item := range items {
		kinds[item.SourceKind]++
		if item.ContentHash == "" {
			t.Errorf("item %q missing content hash", item.Title)
		}
	}
	if kinds[types.KindFeed] != 2 || kinds[types.KindWebPage] != 1 {
		t.Errorf("kind distribution = %v", kinds)
	}

	mu.Lock()
	defer mu.Unlock()
	if !health[srv.URL+"/feed.xml"] {
		t.Error("healthy feed should report ok")
	}
	if ok, seen := health[srv.URL+"/broken"]; !seen || ok {
		t.Error("broken feed should report a failure")
	}
}

func TestFetchAllDedupAcrossSources(t *testing.T) {
	defer goleak.VerifyNone(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/a.xml", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(sampleRSS)) })
	mux.HandleFunc("/b.xml", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(sampleRSS)) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer http.DefaultTransport.(*http.Transport).CloseIdleConnections()

	f := New("test-agent/1.0", "edgar test agent")
	items := f.FetchAll(context.Background(), types.SourcesConfig{
		Feeds: []string{srv.URL + "/a.xml", srv.URL + "/b.xml"},
	}, nil)

	// Both feeds serve the same two entries; hash dedup keeps one copy each.
	if len(items) != 2 {
		t.Errorf("got %d items, want 2 after dedup", len(items))
	}
}

func TestFetchAllEmptyConfig(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := New("test-agent/1.0", "edgar test agent")
	if items := f.FetchAll(context.Background(), types.SourcesConfig{}, nil); len(items) != 0 {
		t.Errorf("empty config should fetch nothing, got %d items", len(items))
	}
}
