// Package postgres is the people query engine on PostgreSQL (pgx pool, squirrel).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unkn0wn-root/filtercache"
	"github.com/unkn0wn-root/filtercache/people"
)

const DefaultTable = "people"

var ErrNilPool = errors.New("postgres: pool is required")

type Options struct {
	Table  string             // "" => "people"
	Logger filtercache.Logger // nil => NopLogger
}

// Engine runs the people listing queries. Rows are always ordered by id.
type Engine struct {
	pool  *pgxpool.Pool
	table string
	log   filtercache.Logger
}

var _ filtercache.Query[people.Person] = (*Engine)(nil)

func New(pool *pgxpool.Pool, opts Options) (*Engine, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	e := &Engine{pool: pool, table: opts.Table, log: opts.Logger}
	if e.table == "" {
		e.table = DefaultTable
	}
	if e.log == nil {
		e.log = filtercache.NopLogger{}
	}
	return e, nil
}

// Open parses dsn, connects a pool and pings it.
func Open(ctx context.Context, dsn string, opts Options) (*Engine, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return New(pool, opts)
}

func (e *Engine) Close() { e.pool.Close() }

func (e *Engine) Ping(ctx context.Context) error { return e.pool.Ping(ctx) }

func qb() sq.StatementBuilderType { return sq.StatementBuilder.PlaceholderFormat(sq.Dollar) }

// where turns the applied filters into birthday predicates.
func where(f people.Filter) sq.And {
	and := sq.And{}
	if f.Month != nil {
		and = append(and, sq.Expr("EXTRACT(MONTH FROM birthday) = ?", *f.Month))
	}
	if f.Year != nil {
		and = append(and, sq.Expr("EXTRACT(YEAR FROM birthday) = ?", *f.Year))
	}
	return and
}

func filtered(b sq.SelectBuilder, f people.Filter) sq.SelectBuilder {
	if w := where(f); len(w) > 0 {
		return b.Where(w)
	}
	return b
}

func (e *Engine) selectRows(f people.Filter) sq.SelectBuilder {
	return filtered(qb().Select(people.Columns...).From(e.table), f).OrderBy("id")
}

func (e *Engine) countRows(f people.Filter) sq.SelectBuilder {
	return filtered(qb().Select("COUNT(*)").From(e.table), f)
}

func (e *Engine) All(ctx context.Context, fc filtercache.FilterContext) ([]people.Person, error) {
	f, err := people.AsFilter(fc)
	if err != nil {
		return nil, err
	}
	return e.query(ctx, "all", e.selectRows(f))
}

func (e *Engine) Page(ctx context.Context, fc filtercache.FilterContext, offset, limit int) ([]people.Person, int, error) {
	f, err := people.AsFilter(fc)
	if err != nil {
		return nil, 0, err
	}

	sqlStr, args, err := e.countRows(f).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := e.pool.QueryRow(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}
	if offset >= total {
		return []people.Person{}, total, nil
	}

	rows, err := e.query(ctx, "page", e.selectRows(f).Offset(uint64(offset)).Limit(uint64(limit)))
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (e *Engine) query(ctx context.Context, op string, b sq.SelectBuilder) ([]people.Person, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	start := time.Now()
	rows, err := e.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[people.Person])
	if err != nil {
		return nil, fmt.Errorf("%s: scan: %w", op, err)
	}
	e.log.Debug("query", filtercache.Fields{"op": op, "sql": sqlStr, "rows": len(out), "took": time.Since(start)})
	return out, nil
}

// insertBatch rows per statement keeps 7 parameters per row well below the
// 65535 bind parameter limit of the Postgres protocol.
const insertBatch = 1000

// insertStatements splits ps into multi-row INSERTs of at most insertBatch rows.
func (e *Engine) insertStatements(ps []people.Person) []sq.InsertBuilder {
	var out []sq.InsertBuilder
	for lo := 0; lo < len(ps); lo += insertBatch {
		b := qb().Insert(e.table).Columns(people.Columns...).Suffix("ON CONFLICT (id) DO NOTHING")
		for _, p := range ps[lo:min(lo+insertBatch, len(ps))] {
			b = b.Values(p.ID, p.Email, p.FullName, p.Country, p.Birthday, p.Phone, p.IP)
		}
		out = append(out, b)
	}
	return out
}

// Insert writes ps keeping their ids, in one transaction. Used for seeding.
func (e *Engine) Insert(ctx context.Context, ps []people.Person) error {
	if len(ps) == 0 {
		return nil
	}
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, b := range e.insertStatements(ps) {
		sqlStr, args, err := b.ToSql()
		if err != nil {
			return fmt.Errorf("build insert batch %d: %w", i, err)
		}
		if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert batch %d: %w", i, err)
		}
	}
	// keep BIGSERIAL ahead of explicit ids
	seq := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), (SELECT MAX(id) FROM %s))", e.table, e.table)
	if _, err := tx.Exec(ctx, seq); err != nil {
		return fmt.Errorf("advance id sequence: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	e.log.Info("people inserted", filtercache.Fields{"rows": len(ps)})
	return nil
}
