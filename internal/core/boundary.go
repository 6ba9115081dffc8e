package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultRegionPath is where GeoJSON state features keep their name.
const DefaultRegionPath = "properties.name"

// BillingProperty is the default feature property the joiner writes to.
const BillingProperty = "billing"

// BoundaryRecord is one externally supplied region shape. Feature holds the
// original GeoJSON feature bytes; the core only reads the region identifier.
// BillingKey is the property billing data is added under; empty means
// BillingProperty, or the first free variant of it.
type BoundaryRecord struct {
	Region     string
	Feature    json.RawMessage
	BillingKey string
}

// billingKey returns base if props has no such key, otherwise the first of
// base_2, base_3, ... that is free. Existing properties are never replaced.
func billingKey(props gjson.Result, base string) string {
	if !props.Get(base).Exists() {
		return base
	}
	for n := 2; ; n++ {
		key := fmt.Sprintf("%s_%d", base, n)
		if !props.Get(key).Exists() {
			return key
		}
	}
}

// LoadBoundaries reads a GeoJSON FeatureCollection (or a bare array of
// features) and returns one record per feature in document order.
// regionPath is a gjson path evaluated against each feature; an empty path
// means DefaultRegionPath.
//
// Features without a region identifier are kept with an empty Region, so they
// render but never match, and raise WarnMissingRegionID. A feature that
// already carries the billing property (see WithBillingProperty) gets a free
// variant of the key and raises WarnPropertyClash. Input that is not valid
// JSON returns an empty slice and WarnUnreadable.
func LoadBoundaries(data []byte, regionPath string, opts ...Option) []BoundaryRecord {
	o := newOptions(opts)
	records := []BoundaryRecord{}
	if regionPath == "" {
		regionPath = DefaultRegionPath
	}

	if !gjson.ValidBytes(data) {
		o.emit(Warning{Kind: WarnUnreadable, Message: "boundary data is not valid JSON"})
		return records
	}

	doc := gjson.ParseBytes(data)
	features := doc.Get("features")
	if doc.IsArray() {
		features = doc
	}
	if !features.IsArray() {
		o.emit(Warning{Kind: WarnUnreadable, Message: "boundary data has no features array"})
		return records
	}

	base := o.billingProperty
	if base == "" {
		base = BillingProperty
	}

	n := 0
	features.ForEach(func(_, feature gjson.Result) bool {
		n++
		id := feature.Get(regionPath)
		if !id.Exists() || id.String() == "" {
			o.emit(Warning{
				Kind:    WarnMissingRegionID,
				Line:    n,
				Column:  regionPath,
				Message: fmt.Sprintf("feature %d has no region identifier", n),
			})
		}
		key := billingKey(feature.Get("properties"), base)
		if key != base {
			o.emit(Warning{
				Kind:    WarnPropertyClash,
				Line:    n,
				Column:  "properties." + base,
				Message: fmt.Sprintf("feature %q already has %q; billing written to %q", id.String(), base, key),
			})
		}
		records = append(records, BoundaryRecord{
			Region:     id.String(),
			Feature:    json.RawMessage(feature.Raw),
			BillingKey: key,
		})
		return true
	})
	return records
}

// CategoryTotals is the per-category record injected into a joined region.
type CategoryTotals struct {
	Category string          `json:"category"`
	Present  bool            `json:"present"`
	Count    int             `json:"count"`
	MRC      decimal.Decimal `json:"mrc"`
	NRC      decimal.Decimal `json:"nrc"`
}

// billingProperties is the object written under properties.billing.
// Amounts are rendered as JSON numbers for the map renderer.
type billingProperties struct {
	HasData                bool           `json:"hasData"`
	TotalPresentCategories int            `json:"totalPresentCategories,omitempty"`
	Categories             []categoryJSON `json:"categories,omitempty"`
}

type categoryJSON struct {
	Category string      `json:"category"`
	Present  bool        `json:"present"`
	Count    int         `json:"count"`
	MRC      json.Number `json:"mrc"`
	NRC      json.Number `json:"nrc"`
}

var emptyFeature = []byte(`{"type":"Feature","properties":{},"geometry":null}`)

// Feature returns the boundary's GeoJSON feature with a billing object added
// under properties.<BillingKey>. Existing properties are left untouched; if
// the key is already taken a free variant is used.
func (a AnnotatedBoundary) Feature() ([]byte, error) {
	raw := bytes.Clone([]byte(a.BoundaryRecord.Feature))
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = bytes.Clone(emptyFeature)
	}

	if !gjson.GetBytes(raw, "properties").IsObject() {
		var err error
		raw, err = sjson.SetRawBytes(raw, "properties", []byte("{}"))
		if err != nil {
			return nil, fmt.Errorf("feature %q: set properties: %w", a.Region, err)
		}
	}

	props := billingProperties{HasData: a.HasData}
	if a.HasData {
		props.TotalPresentCategories = a.TotalPresentCategories
		for _, c := range a.Categories {
			props.Categories = append(props.Categories, categoryJSON{
				Category: c.Category,
				Present:  c.Present,
				Count:    c.Count,
				MRC:      json.Number(c.MRC.String()),
				NRC:      json.Number(c.NRC.String()),
			})
		}
	}

	key := a.BillingKey
	if key == "" {
		key = BillingProperty
	}
	key = billingKey(gjson.GetBytes(raw, "properties"), key)

	out, err := sjson.SetBytes(raw, "properties."+key, props)
	if err != nil {
		return nil, fmt.Errorf("feature %q: set billing: %w", a.Region, err)
	}
	return out, nil
}

// FeatureCollection renders annotated boundaries as a GeoJSON
// FeatureCollection in input order.
func FeatureCollection(annotated []AnnotatedBoundary) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"FeatureCollection","features":[`)
	for i, a := range annotated {
		if i > 0 {
			buf.WriteByte(',')
		}
		f, err := a.Feature()
		if err != nil {
			return nil, err
		}
		buf.Write(f)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}
