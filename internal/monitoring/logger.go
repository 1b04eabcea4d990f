package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf carries per-detection decisions (size filter skips, empty crops, low
// confidence readings, format rejections). It is a no-op unless verbose mode is
// enabled, so the main log stays quiet under normal traffic.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose routes Debugf to the main logger when on, or back to a no-op.
func SetVerbose(on bool) {
	if on {
		Debugf = func(format string, v ...interface{}) {
			Logf("[debug] "+format, v...)
		}
		return
	}
	Debugf = func(string, ...interface{}) {}
}
