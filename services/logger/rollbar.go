package logsvc

import (
	"fmt"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/smkgaleri/galeri/core"
	"github.com/smkgaleri/galeri/core/user"
)

// RollbarLogger writes every entry to std and reports it to Rollbar when enabled.
type RollbarLogger struct {
	std     *log.Logger
	enabled bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger configures the rollbar client; reporting is off in debug and test mode or without a token.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	l := &RollbarLogger{std: std}
	l.Enable(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	return l
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.enabled = enabled
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usr *user.User
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if usr == nil { // only set one User
				usr = &a
			}
		case *user.User:
			if usr == nil && a != nil {
				usr = a
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}

	if usr != nil {
		rollbar.SetPerson(usr.ID, usr.Name, usr.Email)
		newArgs = append(newArgs, map[string]interface{}{"role": string(usr.Role)})
	} else {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			l.std.Printf("user: %s (%s, %s)", a.ID, a.Name, a.Role)
		case error:
			l.std.Printf("%+v", a)
		default:
			l.std.Println(fmt.Sprintf("%+v", a))
		}
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Debug(l.prepare(msg, args)...)
	}
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Info(l.prepare(msg, args)...)
	}
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Warning(l.prepare(msg, args)...)
	}
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Error(l.prepare(msg, args)...)
	}
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	if l.enabled {
		rollbar.Critical(l.prepare(msg, args)...)
		rollbar.Wait()
	}
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}
