// Package mlog is a small contextual logger in the shape of go-ethereum's
// log package: a Logger carries a fixed set of key/value context pairs and
// every call site adds its own on top. The original package lives inside
// the go-ethereum module itself, so it can't be imported here; this is a
// minimal reimplementation of its call shape, backed by the standard
// library's log package for output.
package mlog

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger writes contextual, key/value structured lines.
type Logger struct {
	ctx []interface{}
	out *log.Logger
}

var std = log.New(os.Stderr, "", log.LstdFlags)

// New returns a Logger carrying ctx as a fixed prefix of key/value pairs.
func New(ctx ...interface{}) Logger {
	return Logger{ctx: ctx, out: std}
}

// With returns a derived Logger with additional fixed context appended.
func (l Logger) With(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return Logger{ctx: merged, out: l.out}
}

func (l Logger) log(level, msg string, ctx []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	writePairs(&b, l.ctx)
	writePairs(&b, ctx)
	l.out.Print(b.String())
}

func writePairs(b *strings.Builder, pairs []interface{}) {
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(b, " %v=%v", pairs[i], pairs[i+1])
	}
}

// Debug logs a debug-level line.
func (l Logger) Debug(msg string, ctx ...interface{}) { l.log("DEBUG", msg, ctx) }

// Warn logs a warn-level line.
func (l Logger) Warn(msg string, ctx ...interface{}) { l.log("WARN", msg, ctx) }

// Error logs an error-level line.
func (l Logger) Error(msg string, ctx ...interface{}) { l.log("ERROR", msg, ctx) }
