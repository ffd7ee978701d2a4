package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *logrus.Logger

// Config 日志配置
type Config struct {
	Level      string `json:"level"`
	Format     string `json:"format"`      // text | json
	Output     string `json:"output"`      // console | file | both
	FilePath   string `json:"file_path"`   // Output 含 file 时必填
	MaxSize    int    `json:"max_size"`    // 单文件上限（MB）
	MaxBackups int    `json:"max_backups"` // 保留的轮转文件数
	MaxAge     int    `json:"max_age"`     // 保留天数
	Compress   bool   `json:"compress"`
}

// Init 初始化全局日志器，文件输出经 lumberjack 轮转
func Init(config Config) error {
	log = logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if config.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   "2006-01-02 15:04:05",
			DisableHTMLEscape: true, // 设备回显里 <> 很常见
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	var writers []io.Writer
	if config.Output == "console" || config.Output == "stdout" || config.Output == "both" {
		writers = append(writers, os.Stdout)
	}
	if config.Output == "file" || config.Output == "both" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}
	if len(writers) > 0 {
		log.SetOutput(io.MultiWriter(writers...))
	}
	return nil
}

// GetLogger 获取日志实例，未初始化时返回默认配置的实例
func GetLogger() *logrus.Logger {
	if log == nil {
		log = logrus.New()
	}
	return log
}

// SetLevel 运行时调整日志级别（供管理接口使用）
func SetLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	GetLogger().SetLevel(lv)
	return nil
}

// GetLevel 返回当前日志级别名称
func GetLevel() string {
	return GetLogger().GetLevel().String()
}

// entry 将消息之后的变长参数按 key-value 对转换为结构化字段
// 奇数个参数时最后一个落入 "extra" 字段而不是丢弃
func entry(kv []interface{}) *logrus.Entry {
	if len(kv) == 0 {
		return logrus.NewEntry(GetLogger())
	}
	fields := make(logrus.Fields, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		fields[key] = kv[i+1]
	}
	if len(kv)%2 != 0 {
		fields["extra"] = kv[len(kv)-1]
	}
	return GetLogger().WithFields(fields)
}

// Debug 调试日志，消息后跟 key-value 对
func Debug(msg string, kv ...interface{}) {
	entry(kv).Debug(msg)
}

// Debugf 格式化调试日志
func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Info 信息日志，消息后跟 key-value 对
func Info(msg string, kv ...interface{}) {
	entry(kv).Info(msg)
}

// Infof 格式化信息日志
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warn 警告日志，消息后跟 key-value 对
func Warn(msg string, kv ...interface{}) {
	entry(kv).Warn(msg)
}

// Warnf 格式化警告日志
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Error 错误日志，消息后跟 key-value 对
func Error(msg string, kv ...interface{}) {
	entry(kv).Error(msg)
}

// Errorf 格式化错误日志
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// Fatal 致命错误日志，输出后退出
func Fatal(msg string, kv ...interface{}) {
	entry(kv).Fatal(msg)
}

// Fatalf 格式化致命错误日志
func Fatalf(format string, args ...interface{}) {
	GetLogger().Fatalf(format, args...)
}

// WithField 添加单个字段
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 添加多个字段
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
