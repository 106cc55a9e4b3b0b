package logsvc

import (
	"fmt"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/elimu/core"
)

// RollbarLogger reports to Rollbar and prints to a zap logger.
type RollbarLogger struct {
	zl *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(zl *zap.SugaredLogger, conf *core.Config) *RollbarLogger {
	host, _ := os.Hostname()
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{zl: zl}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes both the zap buffers and the pending Rollbar items.
func (l RollbarLogger) Sync() {
	_ = l.zl.Sync()
	rollbar.Wait()
}

// split turns the variadic args into Rollbar extras and zap fields.
// Expected args: error, map[string]interface{}, core.LogUser. Only the first LogUser counts.
func (l RollbarLogger) split(msg string, args []interface{}) (extras []interface{}, fields []interface{}) {
	extras = append(make([]interface{}, 0, len(args)+1), msg)
	var person *core.LogUser
	for i, arg := range args {
		switch a := arg.(type) {
		case core.LogUser:
			if person == nil {
				a := a
				person = &a
				fields = append(fields, "user_id", a.ID)
			}
		case error:
			extras = append(extras, a)
			fields = append(fields, "error", fmt.Sprintf("%+v", a))
		default:
			extras = append(extras, a)
			fields = append(fields, fmt.Sprintf("arg%d", i), a)
		}
	}
	if person != nil {
		rollbar.SetPerson(person.ID, person.Email, person.Email)
	} else {
		rollbar.ClearPerson()
	}
	return extras, fields
}

func (l RollbarLogger) log(level string, msg string, args []interface{}) {
	extras, fields := l.split(msg, args)
	rollbar.Log(level, extras...)
	switch level {
	case rollbar.DEBUG:
		l.zl.Debugw(msg, fields...)
	case rollbar.INFO:
		l.zl.Infow(msg, fields...)
	case rollbar.WARN:
		l.zl.Warnw(msg, fields...)
	case rollbar.ERR:
		l.zl.Errorw(msg, fields...)
	case rollbar.CRIT:
		rollbar.Wait()
		l.zl.Fatalw(msg, fields...)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

// Fatal reports, flushes Rollbar and exits.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) { l.log(rollbar.CRIT, msg, args) }
