// Package audit records who moved the timeline, and how.
//
// Entries are written off the request path by a Writer that drains a
// bounded channel serially, which suits SQLite's single writer.
package audit
