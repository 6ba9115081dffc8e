package source

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/regionmap/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultQuery selects the four billing columns, in the order
// region, category, MRC, NRC.
const DefaultQuery = `SELECT state, product_type, mrc, nrc FROM billing_lines`

// Querier is the subset of *pgxpool.Pool used by Postgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres loads billing rows with a query. The query must return exactly
// four columns: region and category as text, MRC and NRC as numeric.
// Rows are keyed by Columns so the aggregator reads them like file rows.
type Postgres struct {
	db      Querier
	query   string
	columns core.Columns
}

func NewPostgres(db Querier, query string, columns core.Columns) *Postgres {
	if query == "" {
		query = DefaultQuery
	}
	return &Postgres{db: db, query: query, columns: columns}
}

func (p *Postgres) Name() string {
	return "postgres"
}

func (p *Postgres) LoadRows(ctx context.Context, opts ...core.Option) ([]core.Row, error) {
	rows, err := p.db.Query(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("query billing rows: %w", err)
	}
	defer rows.Close()

	out := []core.Row{}
	for rows.Next() {
		var (
			region, category pgtype.Text
			mrc, nrc         pgtype.Numeric
		)
		if err := rows.Scan(&region, &category, &mrc, &nrc); err != nil {
			return nil, fmt.Errorf("query billing rows: scan row %d: %w", len(out)+1, err)
		}

		out = append(out, core.Row{
			Line: len(out) + 1,
			Fields: map[string]string{
				p.columns.Region:   region.String,
				p.columns.Category: category.String,
				p.columns.FieldA:   numericString(mrc),
				p.columns.FieldB:   numericString(nrc),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query billing rows: %w", err)
	}
	return out, nil
}

// numericString renders a numeric as text for core.ParseAmount.
// NULL renders as "" and so counts as zero without a warning.
func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return ""
	}
	v, err := n.Value()
	if err != nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
