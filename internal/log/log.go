// Package log is a minimal leveled logger in the spirit of tegola's
// internal/log package: a handful of package-level functions gated by
// an atomic level, writing to a standard *log.Logger.
package log

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level describes a logging severity.
type Level int32

const (
	ERROR Level = iota
	WARN
	INFO
	DEBUG
	TRACE
)

var current int32 = int32(INFO)

var std = log.New(os.Stderr, "", log.LstdFlags)

// SetLevel sets the minimum level that will be emitted.
func SetLevel(l Level) { atomic.StoreInt32(&current, int32(l)) }

func enabled(l Level) bool { return l <= Level(atomic.LoadInt32(&current)) }

func output(lvl, prefix string, args ...interface{}) {
	std.Output(3, lvl+" "+prefix+fmt.Sprintln(args...))
}

func outputf(lvl, format string, args ...interface{}) {
	std.Output(3, lvl+" "+fmt.Sprintf(format, args...))
}

func Error(args ...interface{}) {
	if enabled(ERROR) {
		output("[error]", "", args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if enabled(ERROR) {
		outputf("[error]", format, args...)
	}
}

func Warn(args ...interface{}) {
	if enabled(WARN) {
		output("[warn]", "", args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if enabled(WARN) {
		outputf("[warn]", format, args...)
	}
}

func Info(args ...interface{}) {
	if enabled(INFO) {
		output("[info]", "", args...)
	}
}

func Infof(format string, args ...interface{}) {
	if enabled(INFO) {
		outputf("[info]", format, args...)
	}
}

func Debug(args ...interface{}) {
	if enabled(DEBUG) {
		output("[debug]", "", args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if enabled(DEBUG) {
		outputf("[debug]", format, args...)
	}
}
