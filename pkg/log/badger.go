package log

import "strings"

// BadgerLogger adapts this package to badger.Logger. Badger is chatty at
// info level, so its info output is demoted to debug.
type BadgerLogger struct{}

func (BadgerLogger) Errorf(format string, args ...any) {
	logf(ErrorLevel, "[badger] "+strings.TrimSuffix(format, "\n"), args...)
}

func (BadgerLogger) Warningf(format string, args ...any) {
	logf(WarnLevel, "[badger] "+strings.TrimSuffix(format, "\n"), args...)
}

func (BadgerLogger) Infof(format string, args ...any) {
	logf(DebugLevel, "[badger] "+strings.TrimSuffix(format, "\n"), args...)
}

func (BadgerLogger) Debugf(format string, args ...any) {
	logf(DebugLevel, "[badger] "+strings.TrimSuffix(format, "\n"), args...)
}
