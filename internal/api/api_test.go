package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/reconcile"
	"github.com/starford/marksync/internal/syncservice"
	"github.com/starford/marksync/internal/testutil"
	"github.com/starford/marksync/internal/trigger"
	"github.com/starford/marksync/internal/vault"
)

type recordingQueue struct {
	mu   sync.Mutex
	reqs []trigger.Request
}

func (q *recordingQueue) Request(req trigger.Request) {
	q.mu.Lock()
	q.reqs = append(q.reqs, req)
	q.mu.Unlock()
}

type env struct {
	svc    *syncservice.Service
	queue  *recordingQueue
	router http.Handler
}

// testEnv sets up a temp vault with one note, a journal, the service and the router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string, limiter *rate.Limiter, sseHandler http.Handler) env {
	t.Helper()
	_, store := testutil.TestVault(t)
	testutil.WriteFile(t, store, "notes/Kickoff.md", "---\ndate: 2024-01-01\nendDate: 2024-01-05\n---\n")

	ts := vault.NewTimelineStore(store)
	rec := reconcile.New(vault.NewSource(store), ts, reconcile.Paths{Scope: "notes", Timeline: "timeline.md"}, testutil.Logger())
	svc := syncservice.New(rec, ts, models.DefaultSyncOptions(), testutil.Logger(),
		syncservice.WithJournal(testutil.TestJournal(t), 10),
	)
	q := &recordingQueue{}
	return env{
		svc:    svc,
		queue:  q,
		router: NewRouter(svc, q, limiter, authToken != "", authToken, sseHandler),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSync_Queued(t *testing.T) {
	e := testEnv(t, "", nil, nil)

	w := do(t, e.router, http.MethodPost, "/sync", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SyncQueuedResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Queued {
		t.Error("queued = false")
	}
	if len(e.queue.reqs) != 1 || e.queue.reqs[0].Source != "manual" {
		t.Errorf("queue = %+v", e.queue.reqs)
	}
}

func TestSync_Wait(t *testing.T) {
	e := testEnv(t, "", nil, nil)

	w := do(t, e.router, http.MethodPost, "/sync", `{"wait":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res CycleResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.WroteTimeline || res.Direction != models.Bidirectional {
		t.Errorf("result = %+v", res)
	}
	if len(e.queue.reqs) != 0 {
		t.Errorf("synchronous run should not queue, got %+v", e.queue.reqs)
	}
}

func TestSync_DryRunWritesNothing(t *testing.T) {
	e := testEnv(t, "", nil, nil)

	w := do(t, e.router, http.MethodPost, "/sync", `{"dry_run":true,"direction":"toTimeline"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, e.router, http.MethodGet, "/timeline", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("timeline after dry run = %d, want 404", w.Code)
	}
}

func TestSync_BadRequests(t *testing.T) {
	e := testEnv(t, "", nil, nil)

	if w := do(t, e.router, http.MethodPost, "/sync", `{"direction":"sideways"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad direction = %d, want 400", w.Code)
	}
	if w := do(t, e.router, http.MethodPost, "/sync", `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}
}

func TestSync_RateLimited(t *testing.T) {
	e := testEnv(t, "", rate.NewLimiter(rate.Every(time.Hour), 1), nil)

	if w := do(t, e.router, http.MethodPost, "/sync", ""); w.Code != http.StatusAccepted {
		t.Fatalf("first = %d, want 202", w.Code)
	}
	w := do(t, e.router, http.MethodPost, "/sync", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	// Read endpoints are not limited.
	if w := do(t, e.router, http.MethodGet, "/status", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestTimelineAndCycles(t *testing.T) {
	e := testEnv(t, "", nil, nil)

	if w := do(t, e.router, http.MethodGet, "/timeline", ""); w.Code != http.StatusNotFound {
		t.Errorf("timeline before sync = %d, want 404", w.Code)
	}
	if _, err := e.svc.RunNow(context.Background(), "manual", "", false); err != nil {
		t.Fatal(err)
	}

	w := do(t, e.router, http.MethodGet, "/timeline", "")
	if w.Code != http.StatusOK {
		t.Fatalf("timeline = %d", w.Code)
	}
	var view syncservice.TimelineView
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.Events) != 1 || view.Events[0].NoteName != "Kickoff" {
		t.Errorf("events = %+v", view.Events)
	}

	w = do(t, e.router, http.MethodGet, "/cycles?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cycles = %d", w.Code)
	}
	var list CycleListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Cycles) != 1 {
		t.Fatalf("cycles = %+v", list.Cycles)
	}

	id := list.Cycles[0].ID
	w = do(t, e.router, http.MethodGet, "/cycles/"+strconv.FormatInt(id, 10), "")
	if w.Code != http.StatusOK {
		t.Errorf("get cycle = %d", w.Code)
	}
	if w := do(t, e.router, http.MethodGet, "/cycles/9999", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing cycle = %d, want 404", w.Code)
	}
	if w := do(t, e.router, http.MethodGet, "/cycles/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestStatus(t *testing.T) {
	e := testEnv(t, "", nil, nil)

	w := do(t, e.router, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st syncservice.Status
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.TimelinePath != "timeline.md" || st.Direction != string(models.Bidirectional) {
		t.Errorf("status = %+v", st)
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := testEnv(t, "secret123", nil, nil)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer wrong", http.StatusUnauthorized},
		{"not bearer", "Basic secret123", http.StatusUnauthorized},
		{"valid", "Bearer secret123", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			e.router.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("code = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "", nil, nil)
	if w := do(t, e.router, http.MethodGet, "/status", ""); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// Minimal SSE handler stub that writes headers and blocks until the request ends.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnv(t, "secret", nil, blockingSSE)
	if w := do(t, e.router, http.MethodGet, "/events", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnv(t, "tok", nil, blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
