package people

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/filtercache"
)

// Table is an in-memory query engine over a fixed slice, ordered by ID.
// It backs local runs without a database.
type Table struct {
	rows []Person
}

var _ filtercache.Query[Person] = (*Table)(nil)

func NewTable(rows []Person) *Table { return &Table{rows: rows} }

func (t *Table) All(ctx context.Context, fc filtercache.FilterContext) ([]Person, error) {
	f, err := AsFilter(fc)
	if err != nil {
		return nil, err
	}
	out := []Person{}
	for _, p := range t.rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *Table) Page(ctx context.Context, fc filtercache.FilterContext, offset, limit int) ([]Person, int, error) {
	all, err := t.All(ctx, fc)
	if err != nil {
		return nil, 0, err
	}
	if offset >= len(all) {
		return []Person{}, len(all), nil
	}
	return all[offset:min(offset+limit, len(all))], len(all), nil
}

// AsFilter accepts Filter and *Filter and validates it. Any other FilterContext
// is a programming error.
func AsFilter(fc filtercache.FilterContext) (Filter, error) {
	switch f := fc.(type) {
	case Filter:
		return f, f.Validate()
	case *Filter:
		if f == nil {
			return Filter{}, nil
		}
		return *f, f.Validate()
	default:
		return Filter{}, fmt.Errorf("people: unsupported filter context %T", fc)
	}
}
