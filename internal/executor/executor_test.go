package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactquery/agent/internal/registry"
)

func newStoreWithFunction(t *testing.T, endpoint string, method registry.Method) *registry.Store {
	t.Helper()
	store := registry.New()
	require.NoError(t, store.Upsert(context.Background(), &registry.Record{
		FunctionID: "get_energy_kpi",
		Name:       "get_energy_kpi",
		Description: "fetch kpi",
		Domain:     "energy",
		Endpoint:   endpoint,
		Method:     method,
		ParameterSchema: map[string]registry.ParamSpec{
			"region": {Type: registry.ParamString, Required: true},
		},
	}))
	return store
}

func fastConfig() Config {
	return Config{MaxRetries: 2, PerCallTimeout: 2 * time.Second, RecentTTL: 5 * time.Second}
}

func TestExecute_SuccessParsesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	store := newStoreWithFunction(t, srv.URL, registry.MethodGET)
	exec := New(store, fastConfig())

	rec := exec.Execute(context.Background(), "conv1", "get_energy_kpi", map[string]interface{}{"region": "North"})
	require.Equal(t, OutcomeSuccess, rec.Outcome)
	assert.Equal(t, 1, rec.Attempts)
	body, ok := rec.Response.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), body["value"])
}

func TestExecute_FunctionNotFound(t *testing.T) {
	store := registry.New()
	exec := New(store, fastConfig())
	rec := exec.Execute(context.Background(), "", "missing_fn", nil)
	assert.Equal(t, OutcomeFailure, rec.Outcome)
	assert.Equal(t, ErrorKindNotFound, rec.ErrorKind)
}

func TestExecute_DeprecatedFunctionFailsFast(t *testing.T) {
	store := registry.New()
	require.NoError(t, store.Upsert(context.Background(), &registry.Record{
		FunctionID: "old_fn", Name: "old_fn", Domain: "x", Endpoint: "http://unused", Method: registry.MethodGET,
		ParameterSchema: map[string]registry.ParamSpec{}, Deprecated: true,
	}))
	exec := New(store, fastConfig())
	rec := exec.Execute(context.Background(), "", "old_fn", nil)
	assert.Equal(t, OutcomeFailure, rec.Outcome)
	assert.Equal(t, ErrorKindNotFound, rec.ErrorKind)
}

func TestExecute_NonRetryable4xxFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := newStoreWithFunction(t, srv.URL, registry.MethodGET)
	exec := New(store, fastConfig())
	rec := exec.Execute(context.Background(), "", "get_energy_kpi", map[string]interface{}{"region": "North"})
	assert.Equal(t, OutcomeFailure, rec.Outcome)
	assert.Equal(t, ErrorKindNotFound, rec.ErrorKind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecute_BadRequestStatusFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	store := newStoreWithFunction(t, srv.URL, registry.MethodGET)
	exec := New(store, fastConfig())
	rec := exec.Execute(context.Background(), "", "get_energy_kpi", map[string]interface{}{"region": "North"})
	assert.Equal(t, OutcomeFailure, rec.Outcome)
	assert.Equal(t, ErrorKindBadRequest, rec.ErrorKind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecute_RetryableStatusRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	store := newStoreWithFunction(t, srv.URL, registry.MethodGET)
	exec := New(store, fastConfig())

	rec := exec.Execute(context.Background(), "", "get_energy_kpi", map[string]interface{}{"region": "North"})
	assert.Equal(t, OutcomeSuccess, rec.Outcome)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, rec.Attempts)
}

func TestExecute_RetryableStatusExhaustsMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := newStoreWithFunction(t, srv.URL, registry.MethodGET)
	exec := New(store, Config{MaxRetries: 1, PerCallTimeout: 2 * time.Second, RecentTTL: 0})

	rec := exec.Execute(context.Background(), "", "get_energy_kpi", map[string]interface{}{"region": "North"})
	assert.Equal(t, OutcomeFailure, rec.Outcome)
	assert.Equal(t, ErrorKindRetryable, rec.ErrorKind)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls)) // initial + 1 retry
	assert.Equal(t, 2, rec.Attempts)
}

func TestExecute_MemoizationReturnsCachedSuccessWithinTTL(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"v": 1}`))
	}))
	defer srv.Close()

	store := newStoreWithFunction(t, srv.URL, registry.MethodGET)
	exec := New(store, fastConfig())

	params := map[string]interface{}{"region": "North"}
	first := exec.Execute(context.Background(), "conv1", "get_energy_kpi", params)
	second := exec.Execute(context.Background(), "conv1", "get_energy_kpi", params)

	assert.Equal(t, OutcomeSuccess, first.Outcome)
	assert.Equal(t, OutcomeSuccess, second.Outcome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecute_POSTSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"created": true}`))
	}))
	defer srv.Close()

	store := newStoreWithFunction(t, srv.URL, registry.MethodPOST)
	exec := New(store, fastConfig())
	rec := exec.Execute(context.Background(), "", "get_energy_kpi", map[string]interface{}{"region": "North"})
	assert.Equal(t, OutcomeSuccess, rec.Outcome)
}
