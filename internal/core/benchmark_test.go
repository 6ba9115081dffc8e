package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func benchmarkCSV(rows int) string {
	var b strings.Builder
	b.WriteString("state,ProductType,MRC,NRC\n")
	regions := []string{"TX", "CA", "NM", "OH", "NY", "WA", "FL", "GA"}
	categories := []string{"Fiber", "Voice", "Data", "Video"}
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%s,%s,\"$%d,%03d.%02d\",%d.50\n",
			regions[i%len(regions)], categories[i%len(categories)], i%9, i%1000, i%100, i%40)
	}
	return b.String()
}

func BenchmarkParse(b *testing.B) {
	for _, size := range []int{1000, 10000} {
		input := benchmarkCSV(size)
		b.Run(fmt.Sprintf("rows=%d", size), func(b *testing.B) {
			b.SetBytes(int64(len(input)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Parse(input)
			}
		})
	}
}

func BenchmarkAggregate(b *testing.B) {
	rows := Parse(benchmarkCSV(50000))
	cols := DefaultColumns()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Aggregate(rows, cols)
	}
}

func BenchmarkAggregateParallel(b *testing.B) {
	rows := Parse(benchmarkCSV(50000))
	cols := DefaultColumns()
	for _, workers := range []int{2, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := AggregateParallel(context.Background(), rows, cols, workers); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkParseAmount(b *testing.B) {
	inputs := []string{"123.45", "$1,234.56", "(99.00)", "", "n/a"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ParseAmount(inputs[i%len(inputs)])
	}
}
