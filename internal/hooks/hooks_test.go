package hooks_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/hooks"
	"github.com/protogate/protogate/internal/monitoring"
	"github.com/protogate/protogate/internal/plugin"
	"github.com/protogate/protogate/internal/registry"
	"github.com/protogate/protogate/internal/store"
)

// =============================================================================
// TRACE
// =============================================================================

func TestTrace_AssignsRequestID(t *testing.T) {
	out, err := hooks.Trace{}.HandleRequest(context.Background(), &core.Request{Method: "GET"})

	require.NoError(t, err)
	assert.NotEmpty(t, out.Header(hooks.TraceHeader))
}

func TestTrace_KeepsCallerID(t *testing.T) {
	req := &core.Request{Headers: map[string]string{hooks.TraceHeader: "caller-id"}}

	out, err := hooks.Trace{}.HandleRequest(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "caller-id", out.Header(hooks.TraceHeader))
}

// =============================================================================
// STATIC HEADERS
// =============================================================================

func TestStaticHeaders_ExistingWins(t *testing.T) {
	hook := hooks.StaticHeaders{Headers: map[string]string{
		"X-Env":  "prod",
		"X-Team": "core",
	}}
	req := &core.Request{Headers: map[string]string{"X-Env": "staging"}}

	out, err := hook.HandleRequest(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "staging", out.Header("X-Env"))
	assert.Equal(t, "core", out.Header("X-Team"))
}

// =============================================================================
// FALLBACK
// =============================================================================

func callCtx(method, target string) context.Context {
	return monitoring.WithCallInfo(context.Background(), method, target)
}

func TestFallback_RecoversTransportError(t *testing.T) {
	cache := store.NewMemoryStore(time.Minute)
	defer cache.Close()
	hook := hooks.NewFallback(cache, 100)

	// A good response populates the cache.
	_, err := hook.HandleResponse(callCtx("GET", "/things"),
		&core.Response{Success: true, Data: []byte(`{"items":[1]}`)})
	require.NoError(t, err)

	// A later transport failure on the same call serves the copy.
	resp, err := hook.HandleError(context.Background(),
		core.NewTransportError("GET", "/things", errors.New("connection refused")))

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "true", resp.Meta["fallback"])
	assert.True(t, gjson.GetBytes(resp.Data, "_fallback.served_from_cache").Bool(),
		"cached JSON must carry the stale-response stamp")
	assert.Equal(t, int64(1), gjson.GetBytes(resp.Data, "items.0").Int())
}

func TestFallback_NonJSONServedVerbatim(t *testing.T) {
	cache := store.NewMemoryStore(time.Minute)
	defer cache.Close()
	hook := hooks.NewFallback(cache, 100)

	_, err := hook.HandleResponse(callCtx("GET", "/blob"),
		&core.Response{Success: true, Data: []byte("raw bytes")})
	require.NoError(t, err)

	resp, err := hook.HandleError(context.Background(),
		core.NewTransportError("GET", "/blob", errors.New("down")))

	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), resp.Data)
}

func TestFallback_ColdCacheReraises(t *testing.T) {
	cache := store.NewMemoryStore(time.Minute)
	defer cache.Close()
	hook := hooks.NewFallback(cache, 100)

	cause := core.NewTransportError("GET", "/nothing", errors.New("down"))
	resp, err := hook.HandleError(context.Background(), cause)

	assert.Nil(t, resp)
	assert.Equal(t, cause, err)
}

func TestFallback_NonTransportReraises(t *testing.T) {
	cache := store.NewMemoryStore(time.Minute)
	defer cache.Close()
	hook := hooks.NewFallback(cache, 100)

	_, err := hook.HandleResponse(callCtx("GET", "/things"),
		&core.Response{Success: true, Data: []byte(`{}`)})
	require.NoError(t, err)

	internal := &core.Error{Kind: core.KindInternal, Message: "bug", Method: "GET", Target: "/things"}
	resp, err := hook.HandleError(context.Background(), internal)

	assert.Nil(t, resp, "the cache only covers transport failures")
	assert.Equal(t, internal, err)
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := hooks.NewMetrics(reg, 0)
	require.NoError(t, err)

	_, err = m.HandleResponse(context.Background(), &core.Response{Success: true})
	require.NoError(t, err)
	_, err = m.HandleResponse(context.Background(), &core.Response{Success: false})
	require.NoError(t, err)

	cause := core.NewTransportError("GET", "/x", errors.New("down"))
	_, err = m.HandleError(context.Background(), cause)
	assert.Equal(t, cause, err, "metrics must re-raise, never recover")

	expected := strings.NewReader(`
# HELP protogate_request_errors_total Failed requests by error kind.
# TYPE protogate_request_errors_total counter
protogate_request_errors_total{kind="transport"} 1
# HELP protogate_requests_total Completed requests by success flag.
# TYPE protogate_requests_total counter
protogate_requests_total{success="false"} 1
protogate_requests_total{success="true"} 1
`)
	require.NoError(t, testutil.GatherAndCompare(reg, expected,
		"protogate_requests_total", "protogate_request_errors_total"))
}

func TestNewMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := hooks.NewMetrics(reg, 0)
	require.NoError(t, err)

	_, err = hooks.NewMetrics(reg, 0)
	assert.Error(t, err)
}

// =============================================================================
// PLUGIN REGISTRATION
// =============================================================================

func TestStd_RegistersDefaultHooks(t *testing.T) {
	set := registry.NewSet()
	view := &plugin.HookView{
		Request:  set.RequestHooks,
		Response: set.ResponseHooks,
		Error:    set.ErrorHooks,
	}

	require.NoError(t, hooks.Std().RegisterHooks(view))

	assert.Equal(t, []string{"timing-start", "trace"}, set.RequestHooks.Names())
	assert.Equal(t, []string{"timing-end"}, set.ResponseHooks.Names())
}
