package core

// AnnotatedBoundary is a boundary record joined with its region's aggregates.
//
// HasData is the presence flag. Categories lists, in CategorySet order, only
// the categories with at least one row in the region; a category absent here
// has no data, which is different from a category with zero spend.
// TotalPresentCategories counts those categories, not their rows.
type AnnotatedBoundary struct {
	BoundaryRecord
	HasData                bool
	TotalPresentCategories int
	Categories             []CategoryTotals
}

// Category returns the injected totals for a category, if present.
func (a AnnotatedBoundary) Category(name string) (CategoryTotals, bool) {
	for _, c := range a.Categories {
		if c.Category == name {
			return c, true
		}
	}
	return CategoryTotals{}, false
}

// Join annotates each boundary record with its region's aggregates.
// Output order matches boundaries. Records whose region is not in the index
// pass through with HasData false and no categories.
func Join(index *AggregateIndex, categories *CategorySet, boundaries []BoundaryRecord) []AnnotatedBoundary {
	out := make([]AnnotatedBoundary, 0, len(boundaries))
	order := categories.Values()

	for _, b := range boundaries {
		a := AnnotatedBoundary{BoundaryRecord: b}

		if aggs, ok := index.Region(b.Region); ok {
			a.HasData = true
			for _, category := range order {
				agg, ok := aggs[category]
				if !ok {
					continue
				}
				a.Categories = append(a.Categories, CategoryTotals{
					Category: category,
					Present:  true,
					Count:    agg.Count,
					MRC:      agg.SumA,
					NRC:      agg.SumB,
				})
				a.TotalPresentCategories++
			}
		}

		out = append(out, a)
	}
	return out
}
