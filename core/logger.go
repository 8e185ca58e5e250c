package core

// Logger is any service that can report messages and errors.
// Besides the message, implementations accept errors and item keys
// (eg. marks.TotalKey) as extra arguments.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
