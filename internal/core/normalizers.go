package core

import (
	"fmt"
	"strings"
)

// usStateNames maps US state and territory abbreviations to the full names
// used by common state boundary datasets.
var usStateNames = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"DC": "District of Columbia",
	"FL": "Florida",
	"GA": "Georgia",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"PR": "Puerto Rico",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
}

// Region normalizer names accepted by RegionNormalizer.
const (
	NormalizerNone        = "none"
	NormalizerUSStateName = "us-state-name"
)

// ExpandUSState converts a two-letter US state code to its full name.
// Anything else, including full names, is returned unchanged.
func ExpandUSState(s string) string {
	if name, ok := usStateNames[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return name
	}
	return s
}

// RegionNormalizer returns the normalizer registered under name.
// "none" and "" return nil.
func RegionNormalizer(name string) (func(string) string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NormalizerNone:
		return nil, nil
	case NormalizerUSStateName:
		return ExpandUSState, nil
	default:
		return nil, fmt.Errorf("unknown region normalizer %q", name)
	}
}
