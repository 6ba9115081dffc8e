// Package core provides the aggregation and join engine behind the regional
// billing map.
//
// This package contains all domain logic independent of any UI or transport
// layer. It turns a billing export into per-region property sets that a map
// renderer can consume, and it can be used by web handlers, CLI tools, or
// tests without modification.
//
// # Pipeline
//
// A snapshot is built in three stages, each fully consuming its input before
// the next begins:
//
//  1. [Parse] (or [ParseReader], [ParseWorkbook]) turns delimited text into
//     an ordered slice of [Row] values keyed by the header line.
//  2. [Aggregate] folds rows into an [AggregateIndex] (region -> category ->
//     [CategoryAggregate]) and a [CategorySet] holding categories in
//     first-seen order.
//  3. [Join] merges the index onto boundary records, producing one
//     [AnnotatedBoundary] per region with a presence flag and per-category
//     totals.
//
// [Summarize] produces the per-region popup text on demand from the same
// frozen index.
//
// # Degraded data
//
// Nothing in the pipeline fails on bad data. Undecodable lines are skipped,
// non-numeric amounts count as zero, and boundary features without a region
// identifier never match. Each of these conditions is reported as a
// [Warning] through the [WarnFunc] passed with [WithWarnFunc].
//
// # Snapshots
//
// [Service] owns the current [Snapshot]. A reload builds a new snapshot from
// scratch and swaps it in atomically; readers never observe a partially
// built index.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - SRC001-SRC004: Source errors (missing file, permissions, database)
//   - BND001-BND002: Boundary errors
//   - SNP001-SNP003: Snapshot errors (not loaded, reload busy, timeout)
package core
