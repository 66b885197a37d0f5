// Package klog provides the leveled, structured logging used throughout
// the kernel core. The retrieval pack did not carry gVisor's own pkg/log,
// so this wraps logrus directly rather than reinventing a bespoke leveled
// logger.
package klog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts the package logger's verbosity. Accepts logrus level
// names ("debug", "info", "warning", ...).
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

// Proc returns a logger scoped to a pid, mirroring the "pid %d" prefix xv6
// sprinkles through proc.c's printf calls.
func Proc(pid int32) *logrus.Entry {
	return log.WithField("pid", pid)
}

// Thread returns a logger scoped to a pid/tid pair.
func Thread(pid int32, tid int32) *logrus.Entry {
	return log.WithFields(logrus.Fields{"pid": pid, "tid": tid})
}

// CPU returns a logger scoped to a simulated CPU id.
func CPU(id int) *logrus.Entry {
	return log.WithField("cpu", id)
}

func Infof(format string, args ...interface{})    { log.Infof(format, args...) }
func Warnf(format string, args ...interface{})    { log.Warnf(format, args...) }
func Debugf(format string, args ...interface{})   { log.Debugf(format, args...) }
func Errorf(format string, args ...interface{})   { log.Errorf(format, args...) }
