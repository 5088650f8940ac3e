package eventstream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthHandler(t *testing.T) {
	reg := NewRegistry()
	h := NewHealthHandler(reg)

	code, body := serve(t, h, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disconnected", body["state"])
	assert.Equal(t, float64(0), body["totalCount"])

	reg.Update("a", "logs", true, nil)
	code, body = serve(t, h, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Connected", body["label"])
	assert.NotContains(t, body, "streams")

	reg.Update("b", "diffs", false, newStreamError(KindTransport, msgConnectionLost, errBoom))
	code, body = serve(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "reconnecting", body["state"])
	assert.Equal(t, true, body["hasErrors"])
	assert.Equal(t, msgConnectionLost, body["firstError"])

	code, body = serve(t, h, "/streams")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body["streams"], 2)

	code, body = serve(t, h, "/streams/b")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "diffs", body["name"])
	assert.Equal(t, false, body["isConnected"])
	assert.Equal(t, msgConnectionLost, body["error"])

	code, _ = serve(t, h, "/streams/missing")
	assert.Equal(t, http.StatusNotFound, code)
}
