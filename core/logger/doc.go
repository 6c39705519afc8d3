// Package logger holds the interpreter's diagnostic logger and its event log.
//
// Diagnostics go through zap. The event log is a newline delimited JSON
// record of what the interpreter ran, one protobuf Struct per line.
package logger
