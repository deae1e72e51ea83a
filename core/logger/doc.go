// Package logger records shell job lifecycle events as newline delimited JSON
// and summarizes them into reports.
package logger
