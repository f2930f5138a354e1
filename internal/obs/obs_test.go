package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		out = append(out, entry)
	}
	return out
}

func TestFrom_AddsCorrelationAttributes(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	ctx := WithTest(context.Background(), "TestBrowser_Login_Support")
	ctx = WithRole(ctx, "support")
	From(ctx).Info("token_acquired")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "token_acquired", lines[0]["msg"])
	require.Equal(t, "TestBrowser_Login_Support", lines[0]["test"])
	require.Equal(t, "support", lines[0]["role"])
	require.Equal(t, RunID(), lines[0]["run_id"])
}

func TestWithCorrelation_KeepsExistingFieldsWhenEmpty(t *testing.T) {
	ctx := WithCorrelation(context.Background(), Correlation{Test: "A", Role: "support"})
	ctx = WithCorrelation(ctx, Correlation{RequestID: "req-1"})

	corr := CorrelationFromContext(ctx)
	require.Equal(t, "A", corr.Test)
	require.Equal(t, "support", corr.Role)
	require.Equal(t, "req-1", corr.RequestID)
}

func TestRequestContextMiddleware_EchoesOrMintsRequestID(t *testing.T) {
	var seen Correlation
	handler := RequestContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/hubs", nil)
	req.Header.Set("X-Request-Id", "req-fixed")
	req.Header.Set("X-Plextera-Run-Id", "run-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "req-fixed", seen.RequestID)
	require.Equal(t, "run-abc", seen.RunID)
	require.Equal(t, "req-fixed", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, strings.HasPrefix(seen.RequestID, "req-"))
	require.Equal(t, seen.RequestID, rec.Header().Get("X-Request-Id"))
}

func TestAccessLogMiddleware_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	handler := AccessLogMiddleware("studiofake", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/hubs/create", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "http_access", lines[0]["msg"])
	require.EqualValues(t, http.StatusCreated, lines[0]["status"])
	require.EqualValues(t, 10, lines[0]["resp_bytes"])
	require.Equal(t, "/api/hubs/create", lines[0]["path"])
}
