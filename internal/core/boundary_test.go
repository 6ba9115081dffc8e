package core

import (
	"testing"

	"github.com/tidwall/gjson"
)

const statesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type":"Feature","id":"48","properties":{"name":"TX","density":98.07},"geometry":{"type":"Point","coordinates":[-99,31]}},
    {"type":"Feature","id":"06","properties":{"name":"CA","density":241.7},"geometry":{"type":"Point","coordinates":[-119,37]}},
    {"type":"Feature","id":"35","properties":{"name":"NM"},"geometry":null}
  ]
}`

func TestLoadBoundaries(t *testing.T) {
	var warnings []Warning
	records := LoadBoundaries([]byte(statesGeoJSON), "", collectWarnings(&warnings))

	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	want := []string{"TX", "CA", "NM"}
	for i, r := range records {
		if r.Region != want[i] {
			t.Errorf("records[%d].Region = %q, want %q", i, r.Region, want[i])
		}
	}
	if got := gjson.GetBytes(records[1].Feature, "properties.density").Float(); got != 241.7 {
		t.Errorf("feature bytes not preserved, density = %v", got)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestLoadBoundaries_Variants(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		regionPath  string
		wantRegions []string
		wantWarn    WarningKind
	}{
		{
			name:        "bare feature array",
			data:        `[{"properties":{"name":"Ohio"}},{"properties":{"name":"Iowa"}}]`,
			wantRegions: []string{"Ohio", "Iowa"},
		},
		{
			name:        "custom region path",
			data:        `{"features":[{"id":"48","properties":{}},{"id":"06","properties":{}}]}`,
			regionPath:  "id",
			wantRegions: []string{"48", "06"},
		},
		{
			name:        "missing region id kept with warning",
			data:        `{"features":[{"properties":{"name":"TX"}},{"properties":{}}]}`,
			wantRegions: []string{"TX", ""},
			wantWarn:    WarnMissingRegionID,
		},
		{
			name:        "invalid JSON",
			data:        `{"features":[`,
			wantRegions: []string{},
			wantWarn:    WarnUnreadable,
		},
		{
			name:        "no features array",
			data:        `{"type":"Feature","properties":{"name":"TX"}}`,
			wantRegions: []string{},
			wantWarn:    WarnUnreadable,
		},
		{
			name:        "empty collection",
			data:        `{"type":"FeatureCollection","features":[]}`,
			wantRegions: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var warnings []Warning
			records := LoadBoundaries([]byte(tt.data), tt.regionPath, collectWarnings(&warnings))

			if records == nil {
				t.Fatal("LoadBoundaries returned nil, want empty slice")
			}
			if len(records) != len(tt.wantRegions) {
				t.Fatalf("len(records) = %d, want %d", len(records), len(tt.wantRegions))
			}
			for i, r := range records {
				if r.Region != tt.wantRegions[i] {
					t.Errorf("records[%d].Region = %q, want %q", i, r.Region, tt.wantRegions[i])
				}
			}

			if tt.wantWarn == "" {
				if len(warnings) != 0 {
					t.Errorf("unexpected warnings: %v", warnings)
				}
				return
			}
			if countKind(warnings, tt.wantWarn) != 1 {
				t.Errorf("warnings = %v, want one %s", warnings, tt.wantWarn)
			}
		})
	}
}

func TestAnnotatedBoundary_Feature(t *testing.T) {
	rows := []Row{
		billingRow(2, "TX", "Fiber", "10", "5"),
		billingRow(3, "TX", "Fiber", "20", "0"),
		billingRow(4, "TX", "Voice", "7.5", "1"),
	}
	index, categories := Aggregate(rows, DefaultColumns())
	boundaries := LoadBoundaries([]byte(statesGeoJSON), "")
	annotated := Join(index, categories, boundaries)

	tx, err := annotated[0].Feature()
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	doc := gjson.ParseBytes(tx)

	if doc.Get("properties.name").String() != "TX" || doc.Get("properties.density").Float() != 98.07 {
		t.Errorf("original properties changed: %s", doc.Get("properties").Raw)
	}
	if doc.Get("geometry.type").String() != "Point" || doc.Get("id").String() != "48" {
		t.Errorf("feature fields changed: %s", tx)
	}

	billing := doc.Get("properties.billing")
	if !billing.Get("hasData").Bool() {
		t.Error("hasData = false, want true")
	}
	if got := billing.Get("totalPresentCategories").Int(); got != 2 {
		t.Errorf("totalPresentCategories = %d, want 2", got)
	}
	fiber := billing.Get(`categories.#(category=="Fiber")`)
	if fiber.Get("count").Int() != 2 || fiber.Get("mrc").Float() != 30 || fiber.Get("nrc").Float() != 5 {
		t.Errorf("Fiber = %s", fiber.Raw)
	}
	if fiber.Get("mrc").Type != gjson.Number {
		t.Errorf("mrc should be a JSON number, got %s", fiber.Get("mrc").Raw)
	}

	ca, err := annotated[1].Feature()
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	caBilling := gjson.GetBytes(ca, "properties.billing")
	if caBilling.Raw != `{"hasData":false}` {
		t.Errorf("CA billing = %s, want {\"hasData\":false}", caBilling.Raw)
	}
}

func TestAnnotatedBoundary_FeatureWithoutProperties(t *testing.T) {
	tests := []struct {
		name    string
		feature string
	}{
		{"null properties", `{"type":"Feature","properties":null,"geometry":null}`},
		{"missing properties", `{"type":"Feature","geometry":null}`},
		{"empty feature", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnnotatedBoundary{BoundaryRecord: BoundaryRecord{Region: "X", Feature: []byte(tt.feature)}}
			out, err := a.Feature()
			if err != nil {
				t.Fatalf("Feature: %v", err)
			}
			if !gjson.GetBytes(out, "properties.billing.hasData").Exists() {
				t.Errorf("billing not written: %s", out)
			}
		})
	}
}

func TestFeatureCollection(t *testing.T) {
	boundaries := LoadBoundaries([]byte(statesGeoJSON), "")
	index, categories := Aggregate([]Row{billingRow(2, "NM", "Voice", "1", "2")}, DefaultColumns())

	out, err := FeatureCollection(Join(index, categories, boundaries))
	if err != nil {
		t.Fatalf("FeatureCollection: %v", err)
	}
	if !gjson.ValidBytes(out) {
		t.Fatalf("invalid JSON: %s", out)
	}

	doc := gjson.ParseBytes(out)
	if doc.Get("type").String() != "FeatureCollection" {
		t.Errorf("type = %s", doc.Get("type").String())
	}
	names := doc.Get("features.#.properties.name").Array()
	if len(names) != 3 || names[2].String() != "NM" {
		t.Errorf("feature order = %v", names)
	}
	if !doc.Get("features.2.properties.billing.hasData").Bool() {
		t.Error("NM should have data")
	}

	empty, err := FeatureCollection(nil)
	if err != nil || string(empty) != `{"type":"FeatureCollection","features":[]}` {
		t.Errorf("empty collection = %s, %v", empty, err)
	}
}

func TestLoadBoundaries_ExistingBillingProperty(t *testing.T) {
	data := `{"features":[
		{"type":"Feature","properties":{"name":"Texas","billing":"net-30"},"geometry":null},
		{"type":"Feature","properties":{"name":"Ohio","billing":"net-60","billing_2":true},"geometry":null},
		{"type":"Feature","properties":{"name":"Iowa"},"geometry":null}
	]}`

	var warnings []Warning
	records := LoadBoundaries([]byte(data), "", collectWarnings(&warnings))
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	wantKeys := []string{"billing_2", "billing_3", "billing"}
	for i, r := range records {
		if r.BillingKey != wantKeys[i] {
			t.Errorf("records[%d].BillingKey = %q, want %q", i, r.BillingKey, wantKeys[i])
		}
	}
	if got := countKind(warnings, WarnPropertyClash); got != 2 {
		t.Fatalf("property clash warnings = %d, want 2 (%v)", got, warnings)
	}
	if warnings[0].Line != 1 || warnings[0].Column != "properties.billing" {
		t.Errorf("first warning = %+v", warnings[0])
	}

	index, categories := Aggregate([]Row{billingRow(2, "Texas", "Fiber", "10", "5")}, DefaultColumns())
	annotated := Join(index, categories, records)

	tx, err := annotated[0].Feature()
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	doc := gjson.ParseBytes(tx)
	if got := doc.Get("properties.billing").String(); got != "net-30" {
		t.Errorf("properties.billing = %q, want net-30 preserved", got)
	}
	if !doc.Get("properties.billing_2.hasData").Bool() {
		t.Errorf("billing_2 not annotated: %s", doc.Get("properties").Raw)
	}

	oh, err := annotated[1].Feature()
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	ohProps := gjson.GetBytes(oh, "properties")
	if ohProps.Get("billing").String() != "net-60" || !ohProps.Get("billing_2").Bool() {
		t.Errorf("existing Ohio properties changed: %s", ohProps.Raw)
	}
	if ohProps.Get("billing_3.hasData").Raw != "false" {
		t.Errorf("billing_3 = %s, want hasData false", ohProps.Get("billing_3").Raw)
	}
}

func TestLoadBoundaries_CustomBillingProperty(t *testing.T) {
	data := `[{"properties":{"name":"Texas","billing":"net-30"}}]`

	var warnings []Warning
	records := LoadBoundaries([]byte(data), "", WithBillingProperty("invoice"), collectWarnings(&warnings))
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if records[0].BillingKey != "invoice" {
		t.Fatalf("BillingKey = %q, want invoice", records[0].BillingKey)
	}

	out, err := AnnotatedBoundary{BoundaryRecord: records[0]}.Feature()
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	props := gjson.GetBytes(out, "properties")
	if props.Get("billing").String() != "net-30" || !props.Get("invoice.hasData").Exists() {
		t.Errorf("properties = %s", props.Raw)
	}
}

func TestAnnotatedBoundary_FeatureKeepsExistingBilling(t *testing.T) {
	// Records built by hand carry no BillingKey; the free key is found at render time.
	a := AnnotatedBoundary{BoundaryRecord: BoundaryRecord{
		Region:  "Texas",
		Feature: []byte(`{"type":"Feature","properties":{"name":"Texas","billing":"net-30"},"geometry":null}`),
	}}

	out, err := a.Feature()
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	props := gjson.GetBytes(out, "properties")
	if got := props.Get("billing").String(); got != "net-30" {
		t.Errorf("properties.billing = %q, want net-30", got)
	}
	if props.Get("billing_2.hasData").Raw != "false" {
		t.Errorf("billing_2 = %s", props.Get("billing_2").Raw)
	}
}
