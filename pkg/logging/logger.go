// Copyright (c) 2023 The Filecast Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging is the logging layer of filecast, built on go.uber.org/zap.
//
// Every line is prefixed with "[filecast]". Two environment variables tune
// the default logger:
//
//	FILECAST_LOGGING_LEVEL  zap level, by name ("debug", "warn") or number (-1..5)
//	FILECAST_LOGGING_FILE   write to this file, rotated by lumberjack, instead of stdout
//
// Anything implementing Logger can replace it through filecast.WithLogger.
package logging

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is used for logging formatted messages.
type Logger interface {
	// Debugf logs messages at DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs messages at INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs messages at WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs messages at ERROR level.
	Errorf(format string, args ...interface{})
	// Fatalf logs messages at FATAL level.
	Fatalf(format string, args ...interface{})
}

// Flusher flushes buffered log entries and releases the underlying writer.
type Flusher = func() error

// Level is the alias of zapcore.Level.
type Level = zapcore.Level

// Levels filecast logs at.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

const (
	prefix = "[filecast]"

	envLevel = "FILECAST_LOGGING_LEVEL"
	envFile  = "FILECAST_LOGGING_FILE"

	maxLogFileSizeMB  = 100
	maxLogFileBackups = 2
	maxLogFileAgeDays = 15
)

var (
	mu             sync.RWMutex
	defaultLogger  Logger
	defaultFlusher Flusher
	defaultLevel   Level
	setupOnce      sync.Once
)

func init() {
	var err error
	if defaultLevel, err = parseLevel(os.Getenv(envLevel)); err != nil {
		panic("invalid " + envLevel + ", " + err.Error())
	}

	if path := os.Getenv(envFile); path != "" {
		if defaultLogger, defaultFlusher, err = CreateLoggerAsLocalFile(path, defaultLevel); err != nil {
			panic("invalid " + envFile + ", " + err.Error())
		}
		return
	}

	zapLogger := zap.New(
		zapcore.NewCore(newEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stdout), defaultLevel),
		zap.Development(),
		zap.AddCaller(),
		zap.AddStacktrace(ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	defaultLogger, defaultFlusher = zapLogger.Sugar(), zapLogger.Sync
}

// parseLevel accepts both zap level names and their numeric values,
// an empty string means INFO.
func parseLevel(s string) (lvl Level, err error) {
	if s == "" {
		return InfoLevel, nil
	}
	if n, err := strconv.ParseInt(s, 10, 8); err == nil {
		if lvl = Level(n); lvl < DebugLevel || lvl > FatalLevel {
			return InfoLevel, fmt.Errorf("level %d out of range", n)
		}
		return lvl, nil
	}
	err = lvl.UnmarshalText([]byte(s))
	return
}

// prefixEncoder writes the filecast prefix in front of every entry.
type prefixEncoder struct {
	zapcore.Encoder

	bufPool buffer.Pool
}

func newEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return &prefixEncoder{Encoder: zapcore.NewConsoleEncoder(cfg), bufPool: buffer.NewPool()}
}

func (e *prefixEncoder) Clone() zapcore.Encoder {
	return &prefixEncoder{Encoder: e.Encoder.Clone(), bufPool: e.bufPool}
}

func (e *prefixEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}
	defer line.Free()

	buf := e.bufPool.Get()
	buf.AppendString(prefix)
	buf.AppendByte(' ')
	_, _ = buf.Write(line.Bytes())
	return buf, nil
}

// CreateLoggerAsLocalFile creates a logger writing entries at or above logLevel
// to localFilePath, the file is rotated once it grows past 100MB.
// The returned flush must be called when the logger is no longer used.
func CreateLoggerAsLocalFile(localFilePath string, logLevel Level) (logger Logger, flush Flusher, err error) {
	if localFilePath == "" {
		return nil, nil, errors.New("invalid local logger path")
	}

	file := &lumberjack.Logger{
		Filename:   localFilePath,
		MaxSize:    maxLogFileSizeMB,
		MaxBackups: maxLogFileBackups,
		MaxAge:     maxLogFileAgeDays,
	}
	core := zapcore.NewCore(newEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(file), zap.NewAtomicLevelAt(logLevel))
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(ErrorLevel))

	flush = func() error {
		_ = zapLogger.Sync()
		return file.Close()
	}
	return zapLogger.Sugar(), flush, nil
}

// GetDefaultLogger returns the default logger.
func GetDefaultLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// GetDefaultFlusher returns the default flusher.
func GetDefaultFlusher() Flusher {
	mu.RLock()
	defer mu.RUnlock()
	return defaultFlusher
}

// SetDefaultLoggerAndFlusher replaces the default logger and its flusher,
// only the first call has any effect.
func SetDefaultLoggerAndFlusher(logger Logger, flusher Flusher) {
	setupOnce.Do(func() {
		mu.Lock()
		defaultLogger, defaultFlusher = logger, flusher
		mu.Unlock()
	})
}

// LogLevel tells what the default logging level is.
func LogLevel() string {
	return defaultLevel.String()
}

// Cleanup flushes the default logger.
func Cleanup() {
	if flush := GetDefaultFlusher(); flush != nil {
		_ = flush()
	}
}

// Error logs err at ERROR level unless it is nil.
func Error(err error) {
	if err != nil {
		GetDefaultLogger().Errorf("error occurs during runtime, %v", err)
	}
}

func Debugf(format string, args ...interface{}) { GetDefaultLogger().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetDefaultLogger().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetDefaultLogger().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetDefaultLogger().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { GetDefaultLogger().Fatalf(format, args...) }
