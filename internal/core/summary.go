package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SummaryLine is one category's totals within a region summary.
type SummaryLine struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	MRC      decimal.Decimal `json:"mrc"`
	NRC      decimal.Decimal `json:"nrc"`
}

// Summary is the on-demand popup content for one region.
type Summary struct {
	Region   string          `json:"region"`
	Lines    []SummaryLine   `json:"lines"`
	TotalMRC decimal.Decimal `json:"totalMrc"`
	TotalNRC decimal.Decimal `json:"totalNrc"`
}

// Summarize lists each category present in the region, in CategorySet order,
// followed by grand totals. Categories without rows in the region are
// skipped, matching Join. An unknown region yields no lines and zero totals.
func Summarize(index *AggregateIndex, categories *CategorySet, region string) Summary {
	s := Summary{
		Region:   region,
		Lines:    []SummaryLine{},
		TotalMRC: decimal.Zero,
		TotalNRC: decimal.Zero,
	}

	for _, category := range categories.Values() {
		agg, ok := index.Category(region, category)
		if !ok {
			continue
		}
		s.Lines = append(s.Lines, SummaryLine{
			Category: category,
			Count:    agg.Count,
			MRC:      agg.SumA,
			NRC:      agg.SumB,
		})
		s.TotalMRC = s.TotalMRC.Add(agg.SumA)
		s.TotalNRC = s.TotalNRC.Add(agg.SumB)
	}
	return s
}

// HasData reports whether any category contributed to the summary.
func (s Summary) HasData() bool {
	return len(s.Lines) > 0
}

// String renders the summary as plain text, one line per category then the
// two grand totals. Amounts use two decimal places.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Region: %s\n", s.Region)
	if !s.HasData() {
		b.WriteString("No categories\n")
	}
	for _, l := range s.Lines {
		fmt.Fprintf(&b, "%s: Count: %d, MRC: %s, NRC: %s\n",
			l.Category, l.Count, l.MRC.StringFixed(2), l.NRC.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total MRC Sum: %s\n", s.TotalMRC.StringFixed(2))
	fmt.Fprintf(&b, "Total NRC Sum: %s\n", s.TotalNRC.StringFixed(2))
	return b.String()
}
