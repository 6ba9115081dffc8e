package core

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Aggregate folds rows into an AggregateIndex keyed by region then category,
// and returns the categories in first-seen order.
//
// Amounts that fail numeric coercion count as zero and raise a
// WarnNonNumeric warning; the row is still counted. Rows with an empty
// region or category are folded under the empty key and raise WarnEmptyKey.
func Aggregate(rows []Row, cols Columns, opts ...Option) (*AggregateIndex, *CategorySet) {
	o := newOptions(opts)
	b := newIndexBuilder()
	for _, row := range rows {
		b.fold(row, cols, o)
	}
	return b.freeze()
}

// AggregateParallel produces the same result as Aggregate using up to
// workers goroutines. Rows are partitioned by (region, category) so each
// bucket is owned by exactly one worker, and the partial indexes are merged
// pointwise. The returned CategorySet follows input order.
//
// Warnings may be delivered from several goroutines; they are serialized
// before reaching the WarnFunc.
func AggregateParallel(ctx context.Context, rows []Row, cols Columns, workers int, opts ...Option) (*AggregateIndex, *CategorySet, error) {
	if workers <= 1 || len(rows) < workers {
		index, cats := Aggregate(rows, cols, opts...)
		return index, cats, nil
	}

	o := newOptions(opts)
	if o.warn != nil {
		var mu sync.Mutex
		warn := o.warn
		o.warn = func(w Warning) {
			mu.Lock()
			defer mu.Unlock()
			warn(w)
		}
	}

	buckets := make([][]Row, workers)
	categories := NewCategorySet()
	for _, row := range rows {
		region, category := rowKeys(row, cols, o)
		categories.add(category)
		i := partition(region, category, workers)
		buckets[i] = append(buckets[i], row)
	}

	partials := make([]*AggregateIndex, workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range buckets {
		g.Go(func() error {
			b := newIndexBuilder()
			for n, row := range buckets[i] {
				if n%ContextCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return fmt.Errorf("aggregate cancelled: %w", err)
					}
				}
				b.fold(row, cols, o)
			}
			partials[i], _ = b.freeze()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return Merge(partials...), categories, nil
}

// ContextCheckInterval is how often (in rows) a parallel fold checks for
// cancellation.
var ContextCheckInterval = 1000

// Merge combines indexes by pointwise addition of their aggregates.
// Inputs are not modified.
func Merge(parts ...*AggregateIndex) *AggregateIndex {
	b := newIndexBuilder()
	for _, part := range parts {
		if part == nil {
			continue
		}
		for region, aggs := range part.regions {
			for category, agg := range aggs {
				b.add(region, category, agg)
			}
		}
	}
	index, _ := b.freeze()
	return index
}

// MergeCategories unions category sets, keeping the order of first appearance
// across the inputs in argument order.
func MergeCategories(sets ...*CategorySet) *CategorySet {
	out := NewCategorySet()
	for _, s := range sets {
		for _, c := range s.Values() {
			out.add(c)
		}
	}
	return out
}

// indexBuilder is the mutable form of an AggregateIndex. It is discarded
// once frozen.
type indexBuilder struct {
	regions    map[string]map[string]*CategoryAggregate
	categories *CategorySet
}

func newIndexBuilder() *indexBuilder {
	return &indexBuilder{
		regions:    make(map[string]map[string]*CategoryAggregate),
		categories: NewCategorySet(),
	}
}

func (b *indexBuilder) fold(row Row, cols Columns, o options) {
	region, category := rowKeys(row, cols, o)
	b.categories.add(category)

	if region == "" || category == "" {
		o.emit(Warning{
			Kind:    WarnEmptyKey,
			Line:    row.Line,
			Message: fmt.Sprintf("empty region or category (region=%q, category=%q)", region, category),
		})
	}

	b.add(region, category, CategoryAggregate{
		Count: 1,
		SumA:  coerce(row, cols.FieldA, o),
		SumB:  coerce(row, cols.FieldB, o),
	})
}

func (b *indexBuilder) add(region, category string, agg CategoryAggregate) {
	cats, ok := b.regions[region]
	if !ok {
		cats = make(map[string]*CategoryAggregate)
		b.regions[region] = cats
	}
	cur, ok := cats[category]
	if !ok {
		cur = &CategoryAggregate{}
		cats[category] = cur
	}
	*cur = cur.Add(agg)
}

func (b *indexBuilder) freeze() (*AggregateIndex, *CategorySet) {
	regions := make(map[string]RegionAggregates, len(b.regions))
	for region, cats := range b.regions {
		aggs := make(RegionAggregates, len(cats))
		for category, agg := range cats {
			aggs[category] = *agg
		}
		regions[region] = aggs
	}
	return &AggregateIndex{regions: regions}, b.categories
}

func rowKeys(row Row, cols Columns, o options) (region, category string) {
	region = strings.TrimSpace(row.Get(cols.Region))
	if o.normalize != nil {
		region = o.normalize(region)
	}
	category = strings.TrimSpace(row.Get(cols.Category))
	return region, category
}

func coerce(row Row, col string, o options) decimal.Decimal {
	raw := row.Get(col)
	d, ok := ParseAmount(raw)
	if !ok {
		o.emit(Warning{
			Kind:    WarnNonNumeric,
			Line:    row.Line,
			Column:  col,
			Value:   raw,
			Message: "non-numeric amount treated as 0",
		})
	}
	return d
}

func partition(region, category string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(region))
	h.Write([]byte{0})
	h.Write([]byte(category))
	return int(h.Sum32() % uint32(n))
}
