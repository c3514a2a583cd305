package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// Init 初始化全局日志
func Init(level, format string) error {
	l := logrus.New()

	if err := apply(l, level, format); err != nil {
		return err
	}
	l.SetOutput(os.Stdout)

	log = l
	return nil
}

func apply(l *logrus.Logger, level, format string) error {
	switch level {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info", "":
		l.SetLevel(logrus.InfoLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// Reconfigure 配置热更新时修改日志级别和格式
func Reconfigure(level, format string) error {
	if log == nil {
		return Init(level, format)
	}
	return apply(log, level, format)
}

// SetOutput 设置日志输出
func SetOutput(w io.Writer) {
	current().SetOutput(w)
}

func current() *logrus.Logger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}

// WithFields 返回带结构化字段的日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return current().WithFields(fields)
}

func Debug(args ...interface{}) {
	current().Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

func Info(args ...interface{}) {
	current().Info(args...)
}

func Infof(format string, args ...interface{}) {
	current().Infof(format, args...)
}

func Warn(args ...interface{}) {
	current().Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

func Error(args ...interface{}) {
	current().Error(args...)
}

func Errorf(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

func Fatal(args ...interface{}) {
	current().Fatal(args...)
}

func Fatalf(format string, args ...interface{}) {
	current().Fatalf(format, args...)
}
