package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/paginate"
	"github.com/protogate/protogate/internal/registry"
)

// RedisAdapter speaks the Redis key-value protocol. Target is either a
// redis:// URL or a plain host:port.
type RedisAdapter struct {
	client    *redis.Client
	closeOnce sync.Once
	closeErr  error
}

// NewRedis builds a Redis adapter for the given address.
func NewRedis(target string, _ core.Options) (core.Adapter, error) {
	if target == "" {
		return nil, fmt.Errorf("redis adapter: target address required")
	}

	var client *redis.Client
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		opts, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("redis adapter: parse %q: %w", target, err)
		}
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: target})
	}
	return &RedisAdapter{client: client}, nil
}

// Name returns "redis".
func (a *RedisAdapter) Name() string { return "redis" }

// Request maps the envelope onto Redis commands. Envelope mapping:
//   - GET:    Target is the key, value returned in Data
//   - POST/PUT: SET Target ← Body
//   - DELETE: DEL Target, Status = keys removed
//   - search: SCAN with Target as the MATCH pattern; the next SCAN
//     cursor lands in Meta["cursor"], which lines up with the cursor
//     pagination style
func (a *RedisAdapter) Request(ctx context.Context, req *core.Request, _ core.Options) (*core.Response, error) {
	switch strings.ToLower(req.Method) {
	case "get", "":
		value, err := a.client.Get(ctx, req.Target).Result()
		if err == redis.Nil {
			return nil, core.NewTransportError(req.Method, req.Target, fmt.Errorf("key not found"))
		}
		if err != nil {
			return nil, core.NewTransportError(req.Method, req.Target, err)
		}
		return &core.Response{Success: true, Data: []byte(value)}, nil

	case "post", "put", "set":
		if err := a.client.Set(ctx, req.Target, req.Body, 0).Err(); err != nil {
			return nil, core.NewTransportError(req.Method, req.Target, err)
		}
		return &core.Response{Success: true, Status: 1}, nil

	case "delete", "del":
		removed, err := a.client.Del(ctx, req.Target).Result()
		if err != nil {
			return nil, core.NewTransportError(req.Method, req.Target, err)
		}
		return &core.Response{Success: true, Status: int(removed)}, nil

	case "search", "query", "scan":
		return a.scan(ctx, req)

	default:
		return nil, core.NewTransportError(req.Method, req.Target,
			fmt.Errorf("unsupported method %q", req.Method))
	}
}

func (a *RedisAdapter) scan(ctx context.Context, req *core.Request) (*core.Response, error) {
	var cursor uint64
	if pos := req.Meta[paginate.MetaPosition]; pos != "" {
		parsed, err := strconv.ParseUint(pos, 10, 64)
		if err != nil {
			return nil, core.NewTransportError(req.Method, req.Target,
				fmt.Errorf("invalid scan cursor %q", pos))
		}
		cursor = parsed
	}
	count := int64(100)
	if size := req.Meta[paginate.MetaPageSize]; size != "" {
		if parsed, err := strconv.ParseInt(size, 10, 64); err == nil && parsed > 0 {
			count = parsed
		}
	}

	keys, next, err := a.client.Scan(ctx, cursor, req.Target, count).Result()
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}

	meta := map[string]string{}
	if next != 0 {
		meta["cursor"] = strconv.FormatUint(next, 10)
	}
	return &core.Response{Success: true, Status: len(keys), Data: data, Meta: meta}, nil
}

// Close shuts the connection pool down. Idempotent.
func (a *RedisAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.client.Close()
	})
	return a.closeErr
}

// RedisPlugin registers the redis adapter.
type RedisPlugin struct{}

// RegisterAdapters registers the "redis" adapter factory.
func (RedisPlugin) RegisterAdapters(adapters *registry.Registry[registry.AdapterFactory]) error {
	return adapters.Register("redis", NewRedis)
}
