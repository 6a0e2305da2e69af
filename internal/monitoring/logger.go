// Package monitoring holds the package-level diagnostic logger shared by the
// store, pipeline and ingest code.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// DataQualityf logs a non-fatal problem with stored or incoming data, such as
// a malformed history row or a timestamp that went backwards.
func DataQualityf(format string, v ...interface{}) {
	Logf("[data-quality] "+format, v...)
}
