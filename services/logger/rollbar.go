package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/somo/core"
)

// RollbarLogger writes every entry to a std logger and reports it to Rollbar (when enabled).
type RollbarLogger struct {
	std     *log.Logger
	appName string
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, appName: conf.AppName}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Wait blocks until queued Rollbar items are sent.
func (l RollbarLogger) Wait() {
	rollbar.Wait()
}

// entry splits the args of a log call: the first error is reported as such,
// every map is merged into a single set of extras.
type entry struct {
	msg    string
	err    error
	extras map[string]interface{}
	rest   []interface{}
}

// expected fmt: msg | error, map[string]interface{} (eg: {"kind": "course", "op": "update"})
func (l RollbarLogger) prepare(msg string, args []interface{}) entry {
	e := entry{msg: msg, extras: map[string]interface{}{"app": l.appName}}
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			if e.err == nil {
				e.err = v
				continue
			}
			e.rest = append(e.rest, v)
		case map[string]interface{}:
			for key, val := range v {
				e.extras[key] = val
			}
		default:
			e.rest = append(e.rest, v)
		}
	}
	return e
}

func (e entry) rollbarArgs() []interface{} {
	args := make([]interface{}, 0, 3)
	if e.err != nil {
		args = append(args, e.err)
	}
	args = append(args, e.msg, e.extras)
	return args
}

// line renders the entry as `msg key=val ...: err`, keys sorted.
func (e entry) line() string {
	var b strings.Builder
	b.WriteString(e.msg)

	keys := make([]string, 0, len(e.extras))
	for key := range e.extras {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.extras[key])
	}
	for _, arg := range e.rest {
		fmt.Fprintf(&b, " %v", arg)
	}
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	return b.String()
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Debug(e.rollbarArgs()...)
	l.std.Println("DEBUG " + e.line())
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Info(e.rollbarArgs()...)
	l.std.Println("INFO " + e.line())
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Warning(e.rollbarArgs()...)
	l.std.Println("WARN " + e.line())
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Error(e.rollbarArgs()...)
	l.std.Println("ERROR " + e.line())
}

// Fatal reports the entry, waits for Rollbar to send it, then exits.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Critical(e.rollbarArgs()...)
	rollbar.Wait()
	l.std.Fatal("FATAL " + e.line())
}
