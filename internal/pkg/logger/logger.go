// Package logger 基于 logrus 的日志初始化
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/subhub/config"
)

// Setup 按配置初始化全局 logrus
func Setup(cfg config.LogConfig) {
	Configure(logrus.StandardLogger(), cfg, os.Stdout)
}

// Configure 配置指定的 logger，便于测试
func Configure(l *logrus.Logger, cfg config.LogConfig, out io.Writer) {
	l.SetOutput(out)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
}

// WithComponent 带组件名的日志条目
func WithComponent(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
