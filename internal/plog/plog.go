// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package plog is a small structured, leveled logger in the log15 style:
// a Logger carries a fixed set of key/value context pairs, terminal output
// is colorized when writing to a tty, and every record line is assembled
// by hand rather than through a general-purpose formatter.
package plog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a log severity level, ordered from most to least severe.
type Lvl int

const (
	LvlError Lvl = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlError:
		return "EROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DBUG"
	case LvlTrace:
		return "TRCE"
	default:
		return "????"
	}
}

var levelColor = map[Lvl]int{
	LvlError: 31, // red
	LvlWarn:  33, // yellow
	LvlInfo:  32, // green
	LvlDebug: 36, // cyan
	LvlTrace: 90, // bright black
}

// Logger writes leveled, key/value records, carrying a fixed logging
// context set by New.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
}

var (
	mu       sync.Mutex
	out      io.Writer = colorable.NewColorableStdout()
	useColor           = isatty.IsTerminal(os.Stdout.Fd())
	minLvl             = LvlInfo
)

// SetLevel sets the minimum level that gets written out. It is typically
// called once, from the CLI's --verbosity flag handling.
func SetLevel(l Lvl) {
	mu.Lock()
	defer mu.Unlock()
	minLvl = l
}

// SetOutput redirects log output, e.g. to a file in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	useColor = false
}

// Root returns the base logger with no context.
func Root() Logger { return logger{} }

// New returns a child logger with ctx appended to the current context.
func (l logger) New(ctx ...interface{}) Logger {
	next := make([]interface{}, 0, len(l.ctx)+len(ctx))
	next = append(next, l.ctx...)
	next = append(next, ctx...)
	return logger{ctx: next}
}

func (l logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

func (l logger) write(lvl Lvl, msg string, extra []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > minLvl {
		return
	}
	var b strings.Builder
	ts := time.Now().Format("01-02|15:04:05.000")
	if useColor {
		fmt.Fprintf(&b, "\x1b[%dm%s\x1b[0m[%s] %s", levelColor[lvl], lvl, ts, msg)
	} else {
		fmt.Fprintf(&b, "%s[%s] %s", lvl, ts, msg)
	}
	all := append(append([]interface{}{}, l.ctx...), extra...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], all[i+1])
	}
	b.WriteByte('\n')
	io.WriteString(out, b.String())
}

// CallerInfo returns "path/file.go:line" for the caller at the given skip
// depth, with the source path as go-stack's %+v prints it.
func CallerInfo(skip int) string {
	c := stack.Caller(skip + 1)
	return fmt.Sprintf("%+v", c)
}

func New(ctx ...interface{}) Logger { return Root().New(ctx...) }
