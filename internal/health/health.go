// Package health serves liveness and readiness probes for the admin
// listener.
//
//   - /healthz — liveness; a process that answers HTTP is alive.
//   - /readyz  — readiness; passes only when every registered [Checker]
//     (corpus store, embedding provider) reports healthy.
//
// Both respond with a JSON body carrying a top-level "status" and, for
// readiness, a per-check "checks" map.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quorumhq/quorum/pkg/provider/embeddings"
)

// checkTimeout caps how long one readiness check may probe its dependency.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the
// dependency is usable and must respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is the slice of the corpus store the readiness probe needs.
// Implemented by the postgres store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CorpusCheck reports whether the corpus store answers a ping.
func CorpusCheck(p Pinger) Checker {
	return Checker{
		Name: "corpus",
		Check: func(ctx context.Context) error {
			return p.Ping(ctx)
		},
	}
}

// EmbeddingsCheck reports whether the embedding provider can embed a probe
// string. This exercises the real model path, so a wrong base URL or a
// missing local model fails readiness instead of the first ingest.
func EmbeddingsCheck(e embeddings.Provider) Checker {
	return Checker{
		Name: "embeddings",
		Check: func(ctx context.Context) error {
			vec, err := e.Embed(ctx, "readiness probe")
			if err != nil {
				return err
			}
			if len(vec) == 0 {
				return fmt.Errorf("model %s returned an empty vector", e.ModelID())
			}
			return nil
		},
	}
}

// result is the JSON body of both probe responses.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction; safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating the given checkers, in order, on each
// readiness request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every checker passes; otherwise 503 with
// the failing checks named in the body. Each check runs under its own
// [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
			continue
		}
		checks[c.Name] = "ok"
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
