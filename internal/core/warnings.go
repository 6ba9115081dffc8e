package core

import (
	"fmt"
	"strings"
)

// WarningKind classifies a degraded-data condition.
type WarningKind string

const (
	WarnMalformedLine   WarningKind = "malformed_line"
	WarnNonNumeric      WarningKind = "non_numeric_amount"
	WarnEmptyKey        WarningKind = "empty_key"
	WarnMissingRegionID WarningKind = "missing_region_id"
	WarnUnreadable      WarningKind = "unreadable_input"
	WarnPropertyClash   WarningKind = "property_clash"
)

// Warning describes input that was accepted in degraded form.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Line    int         `json:"line,omitempty"`
	Column  string      `json:"column,omitempty"`
	Value   string      `json:"value,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	var b strings.Builder
	b.WriteString(string(w.Kind))
	if w.Line > 0 {
		fmt.Fprintf(&b, " line %d", w.Line)
	}
	if w.Column != "" {
		fmt.Fprintf(&b, " column %q", w.Column)
	}
	b.WriteString(": ")
	b.WriteString(w.Message)
	return b.String()
}

// WarnFunc receives warnings as they are produced.
type WarnFunc func(Warning)

// Option configures parsing, aggregation and boundary loading.
type Option func(*options)

type options struct {
	warn            WarnFunc
	normalize       func(string) string
	bytesRead       func(int64)
	billingProperty string
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o options) emit(w Warning) {
	if o.warn != nil {
		o.warn(w)
	}
}

// WithWarnFunc routes warnings to fn.
func WithWarnFunc(fn WarnFunc) Option {
	return func(o *options) { o.warn = fn }
}

// WithRegionNormalizer rewrites region values before grouping.
func WithRegionNormalizer(fn func(string) string) Option {
	return func(o *options) { o.normalize = fn }
}

// WithByteCount reports the number of source bytes a parse consumed.
func WithByteCount(fn func(n int64)) Option {
	return func(o *options) { o.bytesRead = fn }
}

// WithBillingProperty sets the feature property billing data is written to.
// Empty means BillingProperty.
func WithBillingProperty(name string) Option {
	return func(o *options) { o.billingProperty = name }
}

// WarningLog collects warnings up to a limit and counts the rest.
// It is not safe for concurrent use; Service serializes access.
type WarningLog struct {
	Limit   int
	Entries []Warning
	Total   int
	ByKind  map[WarningKind]int
}

// Add records a warning.
func (l *WarningLog) Add(w Warning) {
	l.Total++
	if l.ByKind == nil {
		l.ByKind = make(map[WarningKind]int)
	}
	l.ByKind[w.Kind]++
	if l.Limit <= 0 || len(l.Entries) < l.Limit {
		l.Entries = append(l.Entries, w)
	}
}
