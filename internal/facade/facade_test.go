package facade_test

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/facade"
	"github.com/protogate/protogate/internal/paginate"
	"github.com/protogate/protogate/internal/pipeline"
	"github.com/protogate/protogate/internal/registry"
)

// fakeAdapter records requests and replies from a scripted handler.
type fakeAdapter struct {
	mu      sync.Mutex
	name    string
	handler func(*core.Request) (*core.Response, error)
	seen    []*core.Request
	closed  int
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Request(_ context.Context, req *core.Request, _ core.Options) (*core.Response, error) {
	a.mu.Lock()
	a.seen = append(a.seen, req)
	a.mu.Unlock()
	if a.handler != nil {
		return a.handler(req)
	}
	return &core.Response{Success: true, Status: 200}, nil
}

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	a.closed++
	a.mu.Unlock()
	return nil
}

type tagAuth struct{ token string }

func (t tagAuth) Name() string { return "tag" }
func (t tagAuth) Inject(_ context.Context, req *core.Request) (*core.Request, error) {
	out := req.Clone()
	out.SetHeader("Authorization", "Bearer "+t.token)
	return out, nil
}

type markHook struct{ prio int }

func (h markHook) Priority() int { return h.prio }
func (h markHook) HandleRequest(_ context.Context, req *core.Request) (*core.Request, error) {
	out := req.Clone()
	out.SetHeader("X-Hooked", "1")
	return out, nil
}

func emptyPipeline() *pipeline.Pipeline {
	return pipeline.New(nil, nil, nil)
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNew_AdapterNotFound(t *testing.T) {
	set := registry.NewSet()

	_, err := facade.New(set, emptyPipeline(), facade.Config{Adapter: "oracle_db", Target: "dsn"})
	require.ErrorIs(t, err, facade.ErrAdapterNotFound)

	// Register the factory F and retry: the same construction succeeds
	// and calls go through F's adapter.
	adapter := &fakeAdapter{name: "oracle_db"}
	require.NoError(t, set.Adapters.Register("oracle_db",
		func(target string, _ core.Options) (core.Adapter, error) {
			assert.Equal(t, "dsn", target)
			return adapter, nil
		}))

	client, err := facade.New(set, emptyPipeline(), facade.Config{Adapter: "oracle_db", Target: "dsn"})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Get(context.Background(), "/thing")
	require.NoError(t, err)
	require.Len(t, adapter.seen, 1)
}

func TestNew_NoAdapterConfigured(t *testing.T) {
	_, err := facade.New(registry.NewSet(), emptyPipeline(), facade.Config{})
	assert.Error(t, err)
}

func TestNew_UnknownAuthClosesAdapter(t *testing.T) {
	adapter := &fakeAdapter{name: "a"}

	_, err := facade.New(registry.NewSet(), emptyPipeline(), facade.Config{
		AdapterInstance: adapter,
		Auth:            "ghost",
	})

	require.Error(t, err)
	assert.Equal(t, 1, adapter.closed, "a failed construction must not leak the adapter")
}

// =============================================================================
// DISPATCH ORDER
// =============================================================================

func TestDo_AuthRunsAfterRequestHooks(t *testing.T) {
	adapter := &fakeAdapter{name: "a"}

	client, err := facade.New(registry.NewSet(),
		pipeline.New([]core.RequestHook{markHook{prio: 1}}, nil, nil),
		facade.Config{AdapterInstance: adapter, AuthInstance: tagAuth{token: "t0k"}})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Get(context.Background(), "/x")
	require.NoError(t, err)

	require.Len(t, adapter.seen, 1)
	got := adapter.seen[0]
	assert.Equal(t, "1", got.Header("X-Hooked"), "request hooks run before dispatch")
	assert.Equal(t, "Bearer t0k", got.Header("Authorization"), "credentials injected inside dispatch")
}

func TestVerbHelpers(t *testing.T) {
	adapter := &fakeAdapter{name: "a"}
	client, err := facade.New(registry.NewSet(), emptyPipeline(), facade.Config{AdapterInstance: adapter})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	_, _ = client.Get(ctx, "/g")
	_, _ = client.Post(ctx, "/p", []byte("body"))
	_, _ = client.Put(ctx, "/u", nil)
	_, _ = client.Delete(ctx, "/d")
	_, _ = client.Query(ctx, "SELECT 1", map[string]string{"arg1": "x"})
	_, _ = client.Search(ctx, "idx", nil)

	require.Len(t, adapter.seen, 6)
	assert.Equal(t, "GET", adapter.seen[0].Method)
	assert.Equal(t, []byte("body"), adapter.seen[1].Body)
	assert.Equal(t, "query", adapter.seen[4].Method)
	assert.Equal(t, "x", adapter.seen[4].Meta["arg1"])
	assert.Equal(t, "search", adapter.seen[5].Method)
}

// =============================================================================
// PAGINATION
// =============================================================================

func TestPages_RunsThroughPipeline(t *testing.T) {
	// 5 items, page size 2 → 3 pages; every page carries the hook header.
	adapter := &fakeAdapter{name: "a"}
	adapter.handler = func(req *core.Request) (*core.Response, error) {
		offset, _ := strconv.Atoi(req.Meta[paginate.MetaPosition])
		items := []int{}
		for i := offset; i < 5 && i < offset+2; i++ {
			items = append(items, i)
		}
		data, _ := json.Marshal(items)
		return &core.Response{Success: true, Data: data}, nil
	}

	client, err := facade.New(registry.NewSet(),
		pipeline.New([]core.RequestHook{markHook{prio: 1}}, nil, nil),
		facade.Config{AdapterInstance: adapter})
	require.NoError(t, err)
	defer client.Close()

	pager, err := client.Pages(paginate.Config{
		Style:    paginate.StyleOffset,
		PageSize: 2,
	}, &core.Request{Method: "GET", Target: "/items"})
	require.NoError(t, err)

	pages := 0
	for {
		resp, err := pager.Next(context.Background())
		require.NoError(t, err)
		if resp == nil {
			break
		}
		pages++
	}

	assert.Equal(t, 3, pages)
	for _, req := range adapter.seen {
		assert.Equal(t, "1", req.Header("X-Hooked"))
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestClose_Idempotent(t *testing.T) {
	adapter := &fakeAdapter{name: "a"}
	client, err := facade.New(registry.NewSet(), emptyPipeline(), facade.Config{AdapterInstance: adapter})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.Equal(t, "a", client.Adapter())
}
