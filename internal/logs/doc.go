// Package logs reads back the files the logging package writes.
//
// The helpers keep memory bounded: trailing reads use a fixed ring of lines
// and incremental reads resume from a byte offset, so `kiln logs --follow`
// can poll without rescanning the whole file. A missing file is not an
// error; it reads as empty at offset zero so callers can start following
// before the first cook ever logs.
package logs
