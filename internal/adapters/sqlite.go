package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/protogate/protogate/internal/core"
	"github.com/protogate/protogate/internal/paginate"
	"github.com/protogate/protogate/internal/registry"
)

// SQLAdapter speaks SQL against one sqlite database. Target is the DSN
// (a file path, or ":memory:").
type SQLAdapter struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// NewSQL opens the database for the given DSN.
func NewSQL(target string, _ core.Options) (core.Adapter, error) {
	if target == "" {
		return nil, fmt.Errorf("sql adapter: target DSN required")
	}
	db, err := sql.Open("sqlite", target)
	if err != nil {
		return nil, fmt.Errorf("sql adapter: open %q: %w", target, err)
	}
	return &SQLAdapter{db: db}, nil
}

// Name returns "sqlite".
func (a *SQLAdapter) Name() string { return "sqlite" }

// Request maps the envelope onto a statement. Envelope mapping:
//   - Target: the SQL text
//   - Method "query"/"GET"/"search": read statement, rows serialized to
//     a JSON array of objects in Data, Status = row count
//   - anything else: exec statement, Status = rows affected
//   - Meta "arg1".."argN": positional bind arguments
//   - pagination position/size meta appends LIMIT/OFFSET
func (a *SQLAdapter) Request(ctx context.Context, req *core.Request, _ core.Options) (*core.Response, error) {
	stmt := req.Target
	args := bindArgs(req.Meta)

	if limit, offset, ok := pageBounds(req.Meta); ok {
		stmt = fmt.Sprintf("%s LIMIT %d OFFSET %d", stmt, limit, offset)
	}

	switch strings.ToLower(req.Method) {
	case "query", "get", "search", "":
		return a.query(ctx, req, stmt, args)
	default:
		return a.exec(ctx, req, stmt, args)
	}
}

func (a *SQLAdapter) query(ctx context.Context, req *core.Request, stmt string, args []any) (*core.Response, error) {
	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, core.NewTransportError(req.Method, req.Target, err)
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}
	return &core.Response{Success: true, Status: len(records), Data: data}, nil
}

func (a *SQLAdapter) exec(ctx context.Context, req *core.Request, stmt string, args []any) (*core.Response, error) {
	result, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, core.NewTransportError(req.Method, req.Target, err)
	}
	affected, _ := result.RowsAffected()
	return &core.Response{Success: true, Status: int(affected)}, nil
}

// Close closes the pool. Idempotent.
func (a *SQLAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.db.Close()
	})
	return a.closeErr
}

// bindArgs collects Meta keys arg1..argN in order.
func bindArgs(meta map[string]string) []any {
	var args []any
	for i := 1; ; i++ {
		v, ok := meta["arg"+strconv.Itoa(i)]
		if !ok {
			return args
		}
		args = append(args, v)
	}
}

// pageBounds reads the pagination engine's position/size meta.
func pageBounds(meta map[string]string) (limit, offset int, ok bool) {
	size, hasSize := meta[paginate.MetaPageSize]
	if !hasSize {
		return 0, 0, false
	}
	limit, err := strconv.Atoi(size)
	if err != nil || limit <= 0 {
		return 0, 0, false
	}
	if pos, hasPos := meta[paginate.MetaPosition]; hasPos {
		offset, _ = strconv.Atoi(pos)
	}
	return limit, offset, true
}

// SQLPlugin registers the sqlite adapter.
type SQLPlugin struct{}

// RegisterAdapters registers the "sqlite" adapter factory.
func (SQLPlugin) RegisterAdapters(adapters *registry.Registry[registry.AdapterFactory]) error {
	return adapters.Register("sqlite", NewSQL)
}
