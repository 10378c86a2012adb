// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Loggers log events of the server.

package hemi

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hexinfra/minirox/hemi/library/logger"
)

// Logger
type Logger interface {
	Log(v ...any)
	Logln(v ...any)
	Logf(f string, v ...any)
	Close()
}

// LogConfig
type LogConfig struct {
	Target string // "/path/to/file.log", ...
	Rotate string // "", "day", "hour"
}

var (
	loggersLock    sync.RWMutex
	loggerCreators = make(map[string]func(config *LogConfig) Logger) // indexed by loggerSign
)

func RegisterLogger(loggerSign string, create func(config *LogConfig) Logger) {
	loggersLock.Lock()
	defer loggersLock.Unlock()

	if _, ok := loggerCreators[loggerSign]; ok {
		BugExitln("logger conflicts")
	}
	loggerCreators[loggerSign] = create
}
func loggerRegistered(loggerSign string) bool {
	loggersLock.RLock()
	_, ok := loggerCreators[loggerSign]
	loggersLock.RUnlock()
	return ok
}

// NewLogger creates a logger of the given sign.
func NewLogger(loggerSign string, config *LogConfig) (Logger, error) {
	loggersLock.RLock()
	create := loggerCreators[loggerSign]
	loggersLock.RUnlock()

	if create == nil {
		return nil, fmt.Errorf("unknown logger '%s'", loggerSign)
	}
	return create(config), nil
}

func init() {
	RegisterLogger("noop", func(config *LogConfig) Logger {
		return noopLogger{}
	})
	RegisterLogger("stderr", func(config *LogConfig) Logger {
		return new(stderrLogger)
	})
	RegisterLogger("file", func(config *LogConfig) Logger {
		return logger.New(config.Target, config.Rotate)
	})
}

// noopLogger
type noopLogger struct{}

func (noopLogger) Log(v ...any)            {}
func (noopLogger) Logln(v ...any)          {}
func (noopLogger) Logf(f string, v ...any) {}
func (noopLogger) Close()                  {}

// stderrLogger writes timestamped lines to standard error.
type stderrLogger struct {
	mutex sync.Mutex
}

const stderrTimeFormat = "[2006-01-02 15:04:05.000] "

func (l *stderrLogger) Log(v ...any)            { l.write(fmt.Sprint(v...)) }
func (l *stderrLogger) Logln(v ...any)          { l.write(fmt.Sprintln(v...)) }
func (l *stderrLogger) Logf(f string, v ...any) { l.write(fmt.Sprintf(f, v...)) }
func (l *stderrLogger) Close()                  {}

func (l *stderrLogger) write(s string) {
	l.mutex.Lock()
	os.Stderr.WriteString(time.Now().Format(stderrTimeFormat) + s)
	l.mutex.Unlock()
}
