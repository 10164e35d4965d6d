package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/framecut/timeline/internal/db"
	"github.com/framecut/timeline/internal/gateway"
	"github.com/framecut/timeline/internal/logging"
	"github.com/framecut/timeline/internal/store"
	"github.com/framecut/timeline/internal/timeline"
)

func testConfig(t *testing.T) ServerConfig {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := logging.Discard()
	s := store.New(database.Conn())
	hub := NewHub(logger)
	return ServerConfig{
		Store:     s,
		Gateway:   gateway.New(s, hub, logger),
		Feed:      hub,
		Logger:    logger,
		StartTime: time.Now(),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rr.Body.String(), err)
	}
	return body
}

func insertAction(id string, index int, clientRevision *int64, key string) ActionRequest {
	return ActionRequest{
		Direction: timeline.DirectionForward,
		Payload: timeline.Payload{Ops: []timeline.Op{{
			Kind:  timeline.OpInsert,
			Index: index,
			Scene: &timeline.Scene{ID: id, DurationFrames: 30, Name: id},
		}}},
		ClientRevision: clientRevision,
		IdempotencyKey: key,
	}
}

func createProject(t *testing.T, h http.Handler, id string) {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/projects", CreateProjectRequest{ID: id, Name: "Demo Cut"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create project status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func revisionPtr(n int64) *int64 { return &n }

func TestHealthHandler(t *testing.T) {
	h := NewRouter(testConfig(t))

	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Fatalf("status = %v, want ok", body["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestCreateProject(t *testing.T) {
	h := NewRouter(testConfig(t))

	rr := doJSON(t, h, http.MethodPost, "/projects", CreateProjectRequest{Name: "Untitled"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var p timeline.Project
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ID == "" || p.FPS != timeline.DefaultFPS || p.Revision != 0 {
		t.Fatalf("unexpected project %+v", p)
	}

	rr = doJSON(t, h, http.MethodPost, "/projects", CreateProjectRequest{ID: p.ID, Name: "again"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/projects", CreateProjectRequest{Name: "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want 400", rr.Code)
	}
}

func TestActionLifecycle(t *testing.T) {
	h := NewRouter(testConfig(t))
	createProject(t, h, "p1")

	rr := doJSON(t, h, http.MethodPost, "/projects/p1/actions/insert", insertAction("a", 0, revisionPtr(0), "k1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("insert status = %d, body %s", rr.Code, rr.Body.String())
	}
	var res gateway.WriteResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.NewRevision != 1 || res.Replayed || len(res.Scenes) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	// Same key again: replayed, revision unchanged.
	rr = doJSON(t, h, http.MethodPost, "/projects/p1/actions/insert", insertAction("a", 0, revisionPtr(0), "k1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("replay status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["replayed"] != true || body["newRevision"] != float64(1) {
		t.Fatalf("replay body = %v", body)
	}

	rr = doJSON(t, h, http.MethodGet, "/projects/p1/scenes", nil)
	var scenes ScenesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &scenes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if scenes.Revision != 1 || len(scenes.Scenes) != 1 || scenes.Scenes[0].ProjectID != "p1" {
		t.Fatalf("unexpected scenes %+v", scenes)
	}

	rr = doJSON(t, h, http.MethodGet, "/projects/p1/ledger", nil)
	var ledger LedgerResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &ledger); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ledger.Entries) != 1 || ledger.Entries[0].ResultRevision != 1 {
		t.Fatalf("unexpected ledger %+v", ledger)
	}
}

func TestActionHandler_IdempotencyKeyHeader(t *testing.T) {
	h := NewRouter(testConfig(t))
	createProject(t, h, "p1")

	req := insertAction("a", 0, nil, "")
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(req)
	r := httptest.NewRequest(http.MethodPost, "/projects/p1/actions/insert", &buf)
	r.Header.Set(IdempotencyKeyHeader, "from-header")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestActionHandler_ErrorMapping(t *testing.T) {
	h := NewRouter(testConfig(t))
	createProject(t, h, "p1")

	rr := doJSON(t, h, http.MethodPost, "/projects/p1/actions/insert", insertAction("a", 0, revisionPtr(0), "k1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("seed status = %d", rr.Code)
	}

	tests := []struct {
		name     string
		path     string
		body     any
		status   int
		code     string
		revision float64
	}{
		{
			name:   "stale revision",
			path:   "/projects/p1/actions/insert",
			body:   insertAction("b", 1, revisionPtr(0), "k2"),
			status: http.StatusConflict, code: "CONFLICT", revision: 1,
		},
		{
			name:   "missing key",
			path:   "/projects/p1/actions/insert",
			body:   insertAction("b", 1, nil, ""),
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name:   "unknown action type",
			path:   "/projects/p1/actions/explode",
			body:   insertAction("b", 1, nil, "k3"),
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name: "delete missing scene",
			path: "/projects/p1/actions/delete",
			body: ActionRequest{
				Payload:        timeline.Payload{Ops: []timeline.Op{{Kind: timeline.OpDelete, SceneID: "zzz"}}},
				IdempotencyKey: "k4",
			},
			status: http.StatusBadRequest, code: "VALIDATION_ERROR",
		},
		{
			name:   "unknown project",
			path:   "/projects/nope/actions/insert",
			body:   insertAction("b", 0, nil, "k5"),
			status: http.StatusNotFound, code: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.status, rr.Body.String())
			}
			body := decodeJSONBody(t, rr)
			if body["code"] != tt.code {
				t.Fatalf("code = %v, want %s", body["code"], tt.code)
			}
			if tt.revision != 0 && body["currentRevision"] != tt.revision {
				t.Fatalf("currentRevision = %v, want %v", body["currentRevision"], tt.revision)
			}
		})
	}
}

func TestGetScenes_NotFound(t *testing.T) {
	h := NewRouter(testConfig(t))

	rr := doJSON(t, h, http.MethodGet, "/projects/missing/scenes", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig(t)
	cfg.RequireAuth = true
	if err := cfg.Store.SetConfig(context.Background(), AuthTokenKey, "secret-token-1234"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	h := NewRouter(cfg)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer secret-token-1234", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/projects", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, r)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
		})
	}

	// health stays public
	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
}

func TestExportEDL(t *testing.T) {
	h := NewRouter(testConfig(t))
	createProject(t, h, "p1")
	doJSON(t, h, http.MethodPost, "/projects/p1/actions/insert", insertAction("intro", 0, nil, "k1"))
	doJSON(t, h, http.MethodPost, "/projects/p1/actions/insert", insertAction("outro", 1, nil, "k2"))

	rr := doJSON(t, h, http.MethodGet, "/projects/p1/export.edl", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	edl := rr.Body.String()
	if !strings.Contains(edl, "TITLE: Demo Cut") {
		t.Fatalf("missing title: %q", edl)
	}
	if !strings.Contains(edl, "002  AX       V     C        00:00:00:00 00:00:01:00 00:00:01:00 00:00:02:00") {
		t.Fatalf("second event mismatch: %q", edl)
	}
	if rr.Header().Get("X-Timeline-Revision") != "2" {
		t.Fatalf("revision header = %q", rr.Header().Get("X-Timeline-Revision"))
	}
}

func TestFeed_StreamsCommittedRevisions(t *testing.T) {
	cfg := testConfig(t)
	srv := httptest.NewServer(NewRouter(cfg))
	defer srv.Close()

	createProject(t, srv.Config.Handler, "p1")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/projects/p1/feed"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev FeedEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read initial event: %v", err)
	}
	if ev.Revision != 0 || ev.ProjectID != "p1" {
		t.Fatalf("initial event = %+v", ev)
	}

	body, _ := json.Marshal(insertAction("a", 0, nil, "k1"))
	res, err := http.Post(srv.URL+"/projects/p1/actions/insert", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post action: %v", err)
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()

	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read commit event: %v", err)
	}
	if ev.Revision != 1 {
		t.Fatalf("commit event revision = %d, want 1", ev.Revision)
	}
}

func TestHub_KeepsLatestRevision(t *testing.T) {
	hub := NewHub(logging.Discard())
	events, unsubscribe := hub.Subscribe("p1")

	hub.Publish("p1", 1)
	hub.Publish("p1", 2)
	hub.Publish("other", 9)

	select {
	case ev := <-events:
		if ev.Revision != 2 {
			t.Fatalf("revision = %d, want 2", ev.Revision)
		}
	default:
		t.Fatal("expected a pending event")
	}

	if hub.Subscribers("p1") != 1 {
		t.Fatalf("subscribers = %d, want 1", hub.Subscribers("p1"))
	}
	unsubscribe()
	if hub.Subscribers("p1") != 0 {
		t.Fatalf("subscribers after unsubscribe = %d", hub.Subscribers("p1"))
	}
}
