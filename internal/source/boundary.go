package source

import (
	"context"
	"fmt"
	"os"

	"github.com/JonMunkholm/regionmap/internal/core"
)

// BoundaryFile reads region shapes from a GeoJSON file.
type BoundaryFile struct {
	Path       string
	RegionPath string // gjson path to the region id; empty means core.DefaultRegionPath

	// BillingProperty names the property the annotation is written to;
	// empty means core.BillingProperty.
	BillingProperty string
}

func NewBoundaryFile(path, regionPath, billingProperty string) *BoundaryFile {
	return &BoundaryFile{Path: path, RegionPath: regionPath, BillingProperty: billingProperty}
}

func (b *BoundaryFile) LoadBoundaries(ctx context.Context, opts ...core.Option) ([]core.BoundaryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return nil, fmt.Errorf("read boundary file: %w", err)
	}
	if b.BillingProperty != "" {
		opts = append(opts, core.WithBillingProperty(b.BillingProperty))
	}
	return core.LoadBoundaries(data, b.RegionPath, opts...), nil
}
