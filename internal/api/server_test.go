package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronkwan/synced-object/pkg/object"
	"github.com/aaronkwan/synced-object/pkg/registry"
)

func testServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	srv := httptest.NewServer(NewServer(reg))
	t.Cleanup(srv.Close)
	return srv, reg
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url) // #nosec G107 -- test server URL
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv, _ := testServer(t)
	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestListObjects(t *testing.T) {
	t.Parallel()

	srv, reg := testServer(t)
	_, err := reg.Create("b-key", object.ModeNone, object.Options{})
	require.NoError(t, err)
	_, err = reg.Create("a-key", object.ModeNone, object.Options{})
	require.NoError(t, err)

	var body struct {
		Objects []struct {
			Key         string `json:"key"`
			Mode        string `json:"mode"`
			LastOutcome string `json:"lastOutcome"`
		} `json:"objects"`
	}
	code := getJSON(t, srv.URL+"/api/v0/objects", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Objects, 2)
	// Listing is sorted by key.
	assert.Equal(t, "a-key", body.Objects[0].Key)
	assert.Equal(t, "b-key", body.Objects[1].Key)
	assert.Equal(t, "none", body.Objects[0].Mode)
	assert.Equal(t, "unknown", body.Objects[0].LastOutcome)
}

func TestListObjects_Empty(t *testing.T) {
	t.Parallel()

	srv, _ := testServer(t)
	var body struct {
		Objects []any `json:"objects"`
	}
	code := getJSON(t, srv.URL+"/api/v0/objects", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Objects)
}

func TestGetObject(t *testing.T) {
	t.Parallel()

	srv, reg := testServer(t)
	obj, err := reg.Create("counter", object.ModeNone, object.Options{
		DefaultValue: map[string]any{"value": float64(3)},
		UnloadPolicy: object.UnloadFlush,
	})
	require.NoError(t, err)
	obj.AddPendingProperties("value")

	var body struct {
		Key               string   `json:"key"`
		Data              any      `json:"data"`
		UnloadPolicy      string   `json:"unloadPolicy"`
		PendingProperties []string `json:"pendingProperties"`
	}
	code := getJSON(t, srv.URL+"/api/v0/objects/counter", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "counter", body.Key)
	assert.Equal(t, map[string]any{"value": float64(3)}, body.Data)
	assert.Equal(t, "flush", body.UnloadPolicy)
	assert.Equal(t, []string{"value"}, body.PendingProperties)
}

func TestGetObject_NotFound(t *testing.T) {
	t.Parallel()

	srv, _ := testServer(t)
	var body map[string]string
	code := getJSON(t, srv.URL+"/api/v0/objects/ghost", &body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])
}

func TestMiddlewareOption(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}
	srv := httptest.NewServer(NewServer(reg, WithMiddlewares(mw)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.True(t, called)
}
