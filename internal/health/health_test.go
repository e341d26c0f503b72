package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quorumhq/quorum/pkg/provider/embeddings/mock"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "corpus", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "embeddings", Check: func(_ context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Checks["corpus"] != "ok" || body.Checks["embeddings"] != "ok" {
		t.Errorf("checks = %v, want both ok", body.Checks)
	}
}

func TestReadyz_CheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "corpus", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "embeddings", Check: func(_ context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["corpus"] != "fail: connection refused" {
		t.Errorf("corpus check = %q", body.Checks["corpus"])
	}
	if body.Checks["embeddings"] != "ok" {
		t.Errorf("embeddings check = %q, want ok", body.Checks["embeddings"])
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCorpusCheck_UsesPing(t *testing.T) {
	good := pingerFunc(func(context.Context) error { return nil })
	if err := CorpusCheck(good).Check(context.Background()); err != nil {
		t.Errorf("healthy corpus: %v", err)
	}

	bad := pingerFunc(func(context.Context) error { return errors.New("pool closed") })
	if err := CorpusCheck(bad).Check(context.Background()); err == nil {
		t.Error("unhealthy corpus: expected error")
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestEmbeddingsCheck_ProbesModel(t *testing.T) {
	if err := EmbeddingsCheck(mock.New(4)).Check(context.Background()); err != nil {
		t.Errorf("healthy provider: %v", err)
	}

	failing := mock.New(4)
	failing.Err = errors.New("model not loaded")
	if err := EmbeddingsCheck(failing).Check(context.Background()); err == nil {
		t.Error("failing provider: expected error")
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New(Checker{Name: "corpus", Check: func(_ context.Context) error { return nil }})

	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
