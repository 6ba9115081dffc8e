package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Columns names the header columns that carry the aggregation keys and the
// two monetary fields.
type Columns struct {
	Region   string // Region identifier, matched against boundary records
	Category string // Product type
	FieldA   string // Monthly recurring charge (MRC)
	FieldB   string // Non-recurring charge (NRC)
}

// DefaultColumns returns the column names used by the billing export.
func DefaultColumns() Columns {
	return Columns{
		Region:   "state",
		Category: "ProductType",
		FieldA:   "MRC",
		FieldB:   "NRC",
	}
}

// Row is one parsed source line. Fields maps header names to raw values.
type Row struct {
	Line   int // 1-indexed line number in the source, 0 if unknown
	Fields map[string]string
}

// Get returns the raw value for a column, or "" if the column is absent.
func (r Row) Get(col string) string {
	return r.Fields[col]
}

// CategoryAggregate holds the running totals for one (region, category) pair.
// Count is the number of rows observed for the pair.
type CategoryAggregate struct {
	Count int
	SumA  decimal.Decimal
	SumB  decimal.Decimal
}

// Add returns the pointwise sum of two aggregates.
func (a CategoryAggregate) Add(b CategoryAggregate) CategoryAggregate {
	return CategoryAggregate{
		Count: a.Count + b.Count,
		SumA:  a.SumA.Add(b.SumA),
		SumB:  a.SumB.Add(b.SumB),
	}
}

// Equal reports whether two aggregates hold the same count and amounts.
// Amounts compare numerically, so 30 and 30.00 are equal.
func (a CategoryAggregate) Equal(b CategoryAggregate) bool {
	return a.Count == b.Count && a.SumA.Equal(b.SumA) && a.SumB.Equal(b.SumB)
}

// RegionAggregates maps category to its aggregate for a single region.
// Keys exist only for categories observed in that region.
type RegionAggregates map[string]CategoryAggregate

// AggregateIndex maps region to its RegionAggregates.
// It is immutable once returned by Aggregate or Merge.
type AggregateIndex struct {
	regions map[string]RegionAggregates
}

// Len returns the number of regions with data.
func (x *AggregateIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.regions)
}

// Has reports whether the region has any aggregated data.
func (x *AggregateIndex) Has(region string) bool {
	if x == nil {
		return false
	}
	_, ok := x.regions[region]
	return ok
}

// Region returns a copy of the aggregates for a region.
func (x *AggregateIndex) Region(region string) (RegionAggregates, bool) {
	if x == nil {
		return nil, false
	}
	aggs, ok := x.regions[region]
	if !ok {
		return nil, false
	}
	out := make(RegionAggregates, len(aggs))
	for k, v := range aggs {
		out[k] = v
	}
	return out, true
}

// Category returns the aggregate for one (region, category) pair.
func (x *AggregateIndex) Category(region, category string) (CategoryAggregate, bool) {
	if x == nil {
		return CategoryAggregate{}, false
	}
	agg, ok := x.regions[region][category]
	return agg, ok
}

// Regions returns all regions with data, sorted.
func (x *AggregateIndex) Regions() []string {
	if x == nil {
		return nil
	}
	out := make([]string, 0, len(x.regions))
	for r := range x.regions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two indexes hold the same regions, categories and
// totals.
func (x *AggregateIndex) Equal(y *AggregateIndex) bool {
	if x.Len() != y.Len() {
		return false
	}
	if x == nil || y == nil {
		return true
	}
	for region, aggs := range x.regions {
		other, ok := y.regions[region]
		if !ok || len(other) != len(aggs) {
			return false
		}
		for cat, agg := range aggs {
			o, ok := other[cat]
			if !ok || !agg.Equal(o) {
				return false
			}
		}
	}
	return true
}

// CategorySet is the ordered set of distinct categories seen across all rows.
// Order is first appearance in the input.
type CategorySet struct {
	order []string
	index map[string]int
}

// NewCategorySet builds a set from values, keeping the first occurrence of each.
func NewCategorySet(values ...string) *CategorySet {
	s := &CategorySet{index: make(map[string]int, len(values))}
	for _, v := range values {
		s.add(v)
	}
	return s
}

func (s *CategorySet) add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = len(s.order)
	s.order = append(s.order, v)
}

// Values returns the categories in first-seen order.
func (s *CategorySet) Values() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of categories.
func (s *CategorySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Contains reports whether the category was observed.
func (s *CategorySet) Contains(category string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[category]
	return ok
}
