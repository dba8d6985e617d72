package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Amrkhafagii/mealverse-backend/pkg/logger"
)

type memoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemoryStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{entries: map[string]string{}}
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], nil
}

func (m *memoryIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; exists {
		return false, nil
	}
	m.entries[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func newIdempotentRouter(store *memoryIdempotencyStore, hits *int) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test"})
	r := chi.NewRouter()
	r.Use(Idempotency(store, logg))
	r.Post("/api/v1/orders", func(w http.ResponseWriter, req *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"hit":%d}}`, *hits)
	})
	return r
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	hits := 0
	router := newIdempotentRouter(store, &hits)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"a":1}`))
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()

	if hits != 1 {
		t.Fatalf("expected handler to run once, ran %d times", hits)
	}
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected replayed status, got %d and %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected identical bodies, got %q and %q", first.Body.String(), second.Body.String())
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newMemoryStore()
	hits := 0
	router := newIdempotentRouter(store, &hits)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"a":1}`))
	req.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	reused := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"a":2}`))
	reused.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, reused)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if hits != 1 {
		t.Fatalf("expected handler to run once, ran %d times", hits)
	}
}

// Mirrors the production mounting: the middleware sits on the /api/v1 group
// while handlers live in nested subrouters, so chi's RoutePattern is partial
// at match time and only the URL path identifies the endpoint.
func TestIdempotencyEngagesWhenMountedOnParentRouter(t *testing.T) {
	store := newMemoryStore()
	hits := 0
	logg := logger.New(logger.Options{ServiceName: "test"})

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, logg))
		r.Route("/deliveries", func(r chi.Router) {
			r.Post("/{deliveryId}/accept", func(w http.ResponseWriter, req *http.Request) {
				hits++
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `{"data":{"status":"assigned"}}`)
			})
		})
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/8b5f57a2-9f5e-4a41-a4a5-2f8b43f3f3aa/accept", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "key-accept")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()

	if hits != 1 {
		t.Fatalf("expected handler to run once, ran %d times", hits)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected replayed body, got %q and %q", first.Body.String(), second.Body.String())
	}
}

func TestIdempotencyRequiresHeaderOnMatchedRoutes(t *testing.T) {
	store := newMemoryStore()
	hits := 0
	router := newIdempotentRouter(store, &hits)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if hits != 0 {
		t.Fatalf("expected handler not to run, ran %d times", hits)
	}
}
