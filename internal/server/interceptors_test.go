package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/gitterbridge/internal/rpc"
)

func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func TestAuthInterceptor(t *testing.T) {
	for _, tc := range []struct {
		name     string
		token    string
		method   string
		md       metadata.MD
		wantCode codes.Code
	}{
		{name: "Disabled", token: "", method: rpc.MethodParse, wantCode: codes.OK},
		{name: "HealthExempt", token: "secret", method: rpc.MethodHealth, wantCode: codes.OK},
		{name: "MissingMetadata", token: "secret", method: rpc.MethodParse, wantCode: codes.Unauthenticated},
		{name: "MissingHeader", token: "secret", method: rpc.MethodIngest, md: metadata.Pairs("other", "value"), wantCode: codes.Unauthenticated},
		{name: "WrongToken", token: "secret", method: rpc.MethodParse, md: metadata.Pairs("authorization", "Bearer wrong"), wantCode: codes.Unauthenticated},
		{name: "InvalidScheme", token: "secret", method: rpc.MethodParse, md: metadata.Pairs("authorization", "Basic secret"), wantCode: codes.Unauthenticated},
		{name: "CorrectToken", token: "secret", method: rpc.MethodValidate, md: metadata.Pairs("authorization", "Bearer secret"), wantCode: codes.OK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}
			resp, err := AuthInterceptor(tc.token)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, stubHandler)
			if got := status.Code(err); got != tc.wantCode {
				t.Fatalf("code = %v, want %v (err=%v)", got, tc.wantCode, err)
			}
			if tc.wantCode == codes.OK && resp != "ok" {
				t.Fatalf("expected 'ok', got %v", resp)
			}
		})
	}
}

// logRecords returns a server whose component logger writes JSON records to
// the returned buffer.
func logRecords(t *testing.T) (*NormalizerServer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &NormalizerServer{logger: logger}, &buf
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var recs []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decoding log record: %v", err)
		}
		recs = append(recs, rec)
	}
	return recs
}

func TestRecoveryInterceptor(t *testing.T) {
	s, buf := logRecords(t)
	panicky := func(context.Context, any) (any, error) { panic("boom") }
	_, err := s.recoveryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: rpc.MethodParse}, panicky)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
	recs := decodeRecords(t, buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["level"] != "ERROR" || recs[0]["method"] != "Parse" || recs[0]["panic"] != "boom" {
		t.Errorf("record = %v", recs[0])
	}
}

func TestRPCOutcome(t *testing.T) {
	accepted, _ := structpb.NewStruct(map[string]any{"accepted": true})
	deadLettered, _ := structpb.NewStruct(map[string]any{"accepted": false})
	for _, tc := range []struct {
		name   string
		method string
		resp   any
		err    error
		want   string
	}{
		{"Parsed", rpc.MethodParse, &structpb.Struct{}, nil, outcomeOK},
		{"Absent", rpc.MethodParse, nil, status.Error(codes.FailedPrecondition, "no activity"), outcomeAbsent},
		{"BadInput", rpc.MethodValidate, nil, status.Error(codes.InvalidArgument, "unknown category"), outcomeRefused},
		{"Unauthenticated", rpc.MethodIngest, nil, status.Error(codes.Unauthenticated, "invalid token"), outcomeRefused},
		{"Canceled", rpc.MethodIngest, nil, status.Error(codes.Canceled, "gone"), outcomeCanceled},
		{"Internal", rpc.MethodIngest, nil, status.Error(codes.Internal, "db down"), outcomeFailed},
		{"IngestAccepted", rpc.MethodIngest, accepted, nil, outcomeAccepted},
		{"IngestDeadLettered", rpc.MethodIngest, deadLettered, nil, outcomeDeadLettered},
		{"ValidateEchoesAcceptedField", rpc.MethodValidate, deadLettered, nil, outcomeOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := rpcOutcome(tc.method, tc.resp, tc.err); got != tc.want {
				t.Errorf("outcome = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoggingInterceptor_AbsentIsNotAnError(t *testing.T) {
	s, buf := logRecords(t)
	absent := func(context.Context, any) (any, error) {
		return nil, status.Error(codes.FailedPrecondition, "no activity")
	}
	_, err := s.loggingInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: rpc.MethodParse}, absent)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
	recs := decodeRecords(t, buf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec["level"] != "DEBUG" || rec["outcome"] != outcomeAbsent || rec["method"] != "Parse" {
		t.Errorf("record = %v", rec)
	}
	if _, ok := rec["err"]; ok {
		t.Errorf("absent outcome logged an error: %v", rec)
	}
}

func TestLoggingInterceptor_RecordsCategory(t *testing.T) {
	s, buf := logRecords(t)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(rpc.CategoryMetadataKey, "message"))
	resp, err := s.loggingInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: rpc.MethodValidate}, stubHandler)
	if err != nil || resp != "ok" {
		t.Fatalf("got %v, %v", resp, err)
	}
	recs := decodeRecords(t, buf)
	if len(recs) != 1 || recs[0]["category"] != "message" || recs[0]["outcome"] != outcomeOK {
		t.Fatalf("records = %v", recs)
	}
}

func TestLoggingInterceptor_IngestDeadLettered(t *testing.T) {
	s, buf := logRecords(t)
	out, _ := structpb.NewStruct(map[string]any{"accepted": false})
	ingest := func(context.Context, any) (any, error) { return out, nil }
	if _, err := s.loggingInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: rpc.MethodIngest}, ingest); err != nil {
		t.Fatal(err)
	}
	recs := decodeRecords(t, buf)
	if len(recs) != 1 || recs[0]["outcome"] != outcomeDeadLettered || recs[0]["method"] != "Ingest" {
		t.Fatalf("records = %v", recs)
	}
}

func TestLoggingInterceptor_Levels(t *testing.T) {
	for _, tc := range []struct {
		name      string
		err       error
		wantLevel string
		wantErr   bool
	}{
		{"Refused", status.Error(codes.InvalidArgument, "unknown category"), "WARN", false},
		{"Failed", status.Error(codes.Internal, "db down"), "ERROR", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, buf := logRecords(t)
			handler := func(context.Context, any) (any, error) { return nil, tc.err }
			_, _ = s.loggingInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: rpc.MethodValidate}, handler)
			recs := decodeRecords(t, buf)
			if len(recs) != 1 {
				t.Fatalf("expected 1 record, got %d", len(recs))
			}
			if recs[0]["level"] != tc.wantLevel {
				t.Errorf("level = %v, want %s", recs[0]["level"], tc.wantLevel)
			}
			if _, ok := recs[0]["err"]; ok != tc.wantErr {
				t.Errorf("err attr present = %v, want %v", ok, tc.wantErr)
			}
		})
	}
}

func TestCheckBearer(t *testing.T) {
	for _, tc := range []struct {
		header string
		want   error
	}{
		{"", errMissingAuth},
		{"Basic secret", errInvalidScheme},
		{"Bearer wrong", errInvalidToken},
		{"Bearer secret", nil},
	} {
		if got := checkBearer(tc.header, "secret"); got != tc.want {
			t.Errorf("checkBearer(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, tc := range []struct {
		name   string
		token  string
		method string
		path   string
		header string
		want   int
	}{
		{name: "NoHeader", token: "secret", method: http.MethodGet, path: "/v1/activities", want: http.StatusUnauthorized},
		{name: "WrongToken", token: "secret", method: http.MethodPost, path: "/v1/parse", header: "Bearer wrong", want: http.StatusUnauthorized},
		{name: "InvalidScheme", token: "secret", method: http.MethodPost, path: "/v1/parse", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "CorrectToken", token: "secret", method: http.MethodPost, path: "/v1/events", header: "Bearer secret", want: http.StatusOK},
		{name: "HealthExempt", token: "secret", method: http.MethodGet, path: "/v1/health", want: http.StatusOK},
		{name: "Disabled", token: "", method: http.MethodGet, path: "/v1/activities", want: http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tc.token, ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d; body: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
