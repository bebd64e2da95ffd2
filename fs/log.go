package fs

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is the package-wide logrus instance. Components never call
// logrus directly; they go through Debugf/Infof/Logf/Errorf so the object
// being logged about is always attached as a field.
var Logger = logrus.StandardLogger()

// logObject formats o the way rclone's fs package does: nil logs with no
// "object" field, everything else gets a %v.
func logObject(o interface{}) *logrus.Entry {
	if o == nil {
		return logrus.NewEntry(Logger)
	}
	return Logger.WithField("object", fmt.Sprintf("%v", o))
}

// Debugf logs a debug level message about object o.
func Debugf(o interface{}, format string, args ...interface{}) {
	logObject(o).Debugf(format, args...)
}

// Infof logs an info level message about object o.
func Infof(o interface{}, format string, args ...interface{}) {
	logObject(o).Infof(format, args...)
}

// Logf logs a message about object o at the package's configured default
// level (info), matching rclone's Logf which is always shown.
func Logf(o interface{}, format string, args ...interface{}) {
	logObject(o).Infof(format, args...)
}

// Errorf logs an error level message about object o.
func Errorf(o interface{}, format string, args ...interface{}) {
	logObject(o).Errorf(format, args...)
}

// Fatalf logs an error message then terminates the process, mirroring
// rclone's fs.Fatalf used for unrecoverable startup failures.
func Fatalf(o interface{}, format string, args ...interface{}) {
	logObject(o).Fatalf(format, args...)
}
