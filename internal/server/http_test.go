package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/parser"
	"github.com/alfredjeanlab/gitterbridge/internal/relay"
	"github.com/alfredjeanlab/gitterbridge/internal/store"
	"github.com/alfredjeanlab/gitterbridge/internal/store/memory"
)

const testServiceID = "svc-test"

var testNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer returns a server over a fresh memory store with
// deterministic ids and clocks.
func newTestServer() (*NormalizerServer, *memory.Store, http.Handler) {
	return newTestServerWithStore(memory.New())
}

func newTestServerWithStore[S store.Store](st S) (*NormalizerServer, S, http.Handler) {
	logger := discardLogger()
	p, err := parser.New(testServiceID, "error",
		parser.WithLogger(logger),
		parser.WithClock(func() time.Time { return testNow }),
		parser.WithIDGenerator(func() string { return "generated-object" }),
	)
	if err != nil {
		panic(err)
	}
	n := 0
	srv := NewNormalizerServer(p, st, nil, logger,
		relay.WithClock(func() time.Time { return testNow }),
		relay.WithIDGenerator(func(prefix string) string {
			n++
			return fmt.Sprintf("%s%d", prefix, n)
		}),
	)
	return srv, st, srv.NewHTTPHandler("")
}

func gitterEvent(oneToOne bool) map[string]any {
	return map[string]any{
		"type": "message",
		"data": map[string]any{
			"id":   "m1",
			"text": "hello",
			"sent": "2020-01-01T00:00:00.000Z",
			"fromUser": map[string]any{
				"id":       "u1",
				"username": "bob",
			},
		},
		"room": map[string]any{
			"id":       "r1",
			"name":     "general",
			"oneToOne": oneToOne,
		},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestHandleParse(t *testing.T) {
	_, _, h := newTestServer()

	rec := doJSON(t, h, http.MethodPost, "/v1/parse", gitterEvent(false))
	requireStatus(t, rec, http.StatusOK)

	var act model.Activity
	decodeJSON(t, rec, &act)
	if act.Published != 1577836800 {
		t.Errorf("published = %d, want 1577836800", act.Published)
	}
	if act.Generator.ID != testServiceID || act.Generator.Name != model.GeneratorGitter {
		t.Errorf("generator = %+v", act.Generator)
	}
	if act.Target.Type != model.TypeGroup || act.Target.ID != "r1" {
		t.Errorf("target = %+v", act.Target)
	}
	if act.Actor.ID != "u1" || act.Actor.Name != "bob" {
		t.Errorf("actor = %+v", act.Actor)
	}
	if act.Object.ID != "m1" || act.Object.Content != "hello" {
		t.Errorf("object = %+v", act.Object)
	}
}

func TestHandleParse_OneToOne(t *testing.T) {
	_, _, h := newTestServer()

	rec := doJSON(t, h, http.MethodPost, "/v1/parse", gitterEvent(true))
	requireStatus(t, rec, http.StatusOK)

	var act model.Activity
	decodeJSON(t, rec, &act)
	if act.Target.Type != model.TypePerson {
		t.Errorf("target.type = %q, want Person", act.Target.Type)
	}
}

func TestHandleParse_Absent(t *testing.T) {
	_, _, h := newTestServer()

	rec := doJSON(t, h, http.MethodPost, "/v1/parse", map[string]any{"data": nil})
	requireStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestHandleValidate(t *testing.T) {
	srv, _, h := newTestServer()

	act, ok := srv.normalizer.Parse(context.Background(), gitterEvent(false))
	if !ok {
		t.Fatal("Parse reported absence")
	}
	m, err := act.ToMap()
	if err != nil {
		t.Fatal(err)
	}
	m["extra"] = nil

	rec := doJSON(t, h, http.MethodPost, "/v1/validate", m)
	requireStatus(t, rec, http.StatusOK)

	var out map[string]any
	decodeJSON(t, rec, &out)
	if _, ok := out["extra"]; ok {
		t.Error("expected null field to be pruned")
	}
	if out["type"] != "Create" {
		t.Errorf("type = %v", out["type"])
	}
}

func TestHandleValidate_Category(t *testing.T) {
	_, _, h := newTestServer()

	rec := doJSON(t, h, http.MethodPost, "/v1/validate?category=message", gitterEvent(false))
	requireStatus(t, rec, http.StatusOK)

	rec = doJSON(t, h, http.MethodPost, "/v1/validate?category=bogus", gitterEvent(false))
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestHandleValidate_Rejected(t *testing.T) {
	_, _, h := newTestServer()

	// A raw Gitter event is not an activity.
	rec := doJSON(t, h, http.MethodPost, "/v1/validate", gitterEvent(false))
	requireStatus(t, rec, http.StatusUnprocessableEntity)

	rec = doJSON(t, h, http.MethodPost, "/v1/validate", map[string]any{"actor": map[string]any{}})
	requireStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestHandleIngest_Accepted(t *testing.T) {
	_, st, h := newTestServer()

	rec := doJSON(t, h, http.MethodPost, "/v1/events", gitterEvent(false))
	requireStatus(t, rec, http.StatusCreated)

	var out relay.Outcome
	decodeJSON(t, rec, &out)
	if !out.Accepted || out.Record == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Record.ID != "act-1" {
		t.Errorf("record id = %q", out.Record.ID)
	}

	got, err := st.GetActivity(context.Background(), "act-1")
	if err != nil {
		t.Fatalf("GetActivity: %v", err)
	}
	if got.Activity.Object.ID != "m1" {
		t.Errorf("stored object id = %q", got.Activity.Object.ID)
	}
}

func TestHandleIngest_Rejected(t *testing.T) {
	_, st, h := newTestServer()

	rec := doJSON(t, h, http.MethodPost, "/v1/events", map[string]any{"type": "message"})
	requireStatus(t, rec, http.StatusOK)

	var out relay.Outcome
	decodeJSON(t, rec, &out)
	if out.Accepted || out.Rejection == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Rejection.Stage != model.StageValidate {
		t.Errorf("stage = %q, want validate", out.Rejection.Stage)
	}

	rejs, err := st.ListRejections(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejs) != 1 {
		t.Fatalf("expected 1 rejection, got %d", len(rejs))
	}
}

func TestHandleListActivities(t *testing.T) {
	_, _, h := newTestServer()

	for range 3 {
		requireStatus(t, doJSON(t, h, http.MethodPost, "/v1/events", gitterEvent(false)), http.StatusCreated)
	}
	other := gitterEvent(false)
	other["room"] = map[string]any{"id": "r2"}
	requireStatus(t, doJSON(t, h, http.MethodPost, "/v1/events", other), http.StatusCreated)

	rec := doJSON(t, h, http.MethodGet, "/v1/activities?target=r1&limit=2", nil)
	requireStatus(t, rec, http.StatusOK)
	var resp ListActivitiesResponse
	decodeJSON(t, rec, &resp)
	if resp.Total != 3 || len(resp.Activities) != 2 {
		t.Fatalf("total=%d len=%d, want 3 and 2", resp.Total, len(resp.Activities))
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/activities?since="+testNow.Add(time.Hour).Format(time.RFC3339), nil)
	requireStatus(t, rec, http.StatusOK)
	resp = ListActivitiesResponse{}
	decodeJSON(t, rec, &resp)
	if resp.Total != 0 || resp.Activities == nil {
		t.Fatalf("expected empty non-nil page, got %+v", resp)
	}
}

func TestHandleGetActivity(t *testing.T) {
	_, _, h := newTestServer()
	requireStatus(t, doJSON(t, h, http.MethodPost, "/v1/events", gitterEvent(false)), http.StatusCreated)

	rec := doJSON(t, h, http.MethodGet, "/v1/activities/act-1", nil)
	requireStatus(t, rec, http.StatusOK)
	var got model.ActivityRecord
	decodeJSON(t, rec, &got)
	if got.ID != "act-1" || !got.ReceivedAt.Equal(testNow) {
		t.Errorf("record = %+v", got)
	}

	requireStatus(t, doJSON(t, h, http.MethodGet, "/v1/activities/act-404", nil), http.StatusNotFound)
}

func TestHandleListRejections(t *testing.T) {
	_, _, h := newTestServer()
	requireStatus(t, doJSON(t, h, http.MethodPost, "/v1/events", map[string]any{"x": nil, "type": "message"}), http.StatusOK)

	rec := doJSON(t, h, http.MethodGet, "/v1/rejections", nil)
	requireStatus(t, rec, http.StatusOK)
	var resp struct {
		Rejections []*model.Rejection `json:"rejections"`
	}
	decodeJSON(t, rec, &resp)
	if len(resp.Rejections) != 1 || resp.Rejections[0].ID != "rej-1" {
		t.Fatalf("rejections = %+v", resp.Rejections)
	}
}

func TestHandleHealth(t *testing.T) {
	_, _, h := newTestServer()

	rec := doJSON(t, h, http.MethodGet, "/v1/health", nil)
	requireStatus(t, rec, http.StatusOK)
	var resp HealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "ok" || resp.ServiceID != testServiceID {
		t.Fatalf("health = %+v", resp)
	}
}

// failingStore fails every call.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) RecordActivity(context.Context, *model.ActivityRecord) error { return errStoreDown }
func (failingStore) GetActivity(context.Context, string) (*model.ActivityRecord, error) {
	return nil, errStoreDown
}
func (failingStore) ListActivities(context.Context, model.ActivityFilter) ([]*model.ActivityRecord, int, error) {
	return nil, 0, errStoreDown
}
func (failingStore) RecordRejection(context.Context, *model.Rejection) error { return errStoreDown }
func (failingStore) ListRejections(context.Context, int) ([]*model.Rejection, error) {
	return nil, errStoreDown
}
func (failingStore) Close() error { return nil }

func TestHandleHTTPErrors(t *testing.T) {
	_, _, h := newTestServer()
	_, _, broken := newTestServerWithStore(failingStore{})

	for _, tc := range []struct {
		name    string
		handler http.Handler
		method  string
		path    string
		body    any
		code    int
	}{
		{"ParseInvalidJSON", h, http.MethodPost, "/v1/parse", "{not json", http.StatusBadRequest},
		{"ParseNotObject", h, http.MethodPost, "/v1/parse", "null", http.StatusBadRequest},
		{"ParseArray", h, http.MethodPost, "/v1/parse", "[1,2]", http.StatusBadRequest},
		{"ValidateInvalidJSON", h, http.MethodPost, "/v1/validate", "oops", http.StatusBadRequest},
		{"IngestInvalidJSON", h, http.MethodPost, "/v1/events", "", http.StatusBadRequest},
		{"ListBadSince", h, http.MethodGet, "/v1/activities?since=yesterday", nil, http.StatusBadRequest},
		{"ListBadLimit", h, http.MethodGet, "/v1/activities?limit=abc", nil, http.StatusBadRequest},
		{"ListLimitTooLarge", h, http.MethodGet, "/v1/activities?limit=100000", nil, http.StatusBadRequest},
		{"ListNegativeOffset", h, http.MethodGet, "/v1/activities?offset=-1", nil, http.StatusBadRequest},
		{"RejectionsBadLimit", h, http.MethodGet, "/v1/rejections?limit=-3", nil, http.StatusBadRequest},
		{"ListStoreDown", broken, http.MethodGet, "/v1/activities", nil, http.StatusInternalServerError},
		{"GetStoreDown", broken, http.MethodGet, "/v1/activities/act-1", nil, http.StatusInternalServerError},
		{"RejectionsStoreDown", broken, http.MethodGet, "/v1/rejections", nil, http.StatusInternalServerError},
		{"MethodNotAllowed", h, http.MethodDelete, "/v1/activities/act-1", nil, http.StatusMethodNotAllowed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, tc.handler, tc.method, tc.path, tc.body)
			requireStatus(t, rec, tc.code)
		})
	}
}

func TestHandleIngest_StoreFailureStillAnswers(t *testing.T) {
	_, _, h := newTestServerWithStore(failingStore{})

	rec := doJSON(t, h, http.MethodPost, "/v1/events", gitterEvent(false))
	requireStatus(t, rec, http.StatusCreated)
}

func TestNewHTTPHandler_Auth(t *testing.T) {
	srv, _, _ := newTestServer()
	h := srv.NewHTTPHandler("secret")

	requireStatus(t, doJSON(t, h, http.MethodPost, "/v1/parse", gitterEvent(false)), http.StatusUnauthorized)
	requireStatus(t, doJSON(t, h, http.MethodGet, "/v1/health", nil), http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusOK)
}
