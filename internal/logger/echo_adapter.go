package logger

import (
	"fmt"
	"io"
	"os"

	echo_log "github.com/labstack/gommon/log"
)

// EchoLoggerAdapter lets Echo write through a Logger so HTTP server
// messages share the service's format and module scoping.
//
//	e := echo.New()
//	e.Logger = logger.NewEchoLoggerAdapter(log.Module("echo"))
type EchoLoggerAdapter struct {
	logger Logger
	level  echo_log.Lvl
}

// NewEchoLoggerAdapter creates a new Echo logger adapter
func NewEchoLoggerAdapter(l Logger) *EchoLoggerAdapter {
	if l == nil {
		l = Global().Module("echo")
	}
	return &EchoLoggerAdapter{logger: l, level: echo_log.INFO}
}

// Output is unused; the wrapped logger owns its writer.
func (a *EchoLoggerAdapter) Output() io.Writer   { return io.Discard }
func (a *EchoLoggerAdapter) SetOutput(io.Writer) {}
func (a *EchoLoggerAdapter) Prefix() string      { return "" }
func (a *EchoLoggerAdapter) SetPrefix(string)    {}
func (a *EchoLoggerAdapter) SetHeader(string)    {}

func (a *EchoLoggerAdapter) Level() echo_log.Lvl { return a.level }

// SetLevel records the level Echo asks for; filtering still happens in
// the wrapped logger.
func (a *EchoLoggerAdapter) SetLevel(v echo_log.Lvl) { a.level = v }

func (a *EchoLoggerAdapter) Print(i ...any) { a.logger.Info(fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Printf(format string, args ...any) {
	a.logger.Info(fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Printj(j echo_log.JSON) { a.logger.Info("echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Debug(i ...any) { a.logger.Debug(fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Debugj(j echo_log.JSON) { a.logger.Debug("echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Info(i ...any) { a.logger.Info(fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Infof(format string, args ...any) {
	a.logger.Info(fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Infoj(j echo_log.JSON) { a.logger.Info("echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Warn(i ...any) { a.logger.Warn(fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Warnf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Warnj(j echo_log.JSON) { a.logger.Warn("echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Error(i ...any) { a.logger.Error(fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Errorj(j echo_log.JSON) { a.logger.Error("echo", Any("data", j)) }

// Fatal logs and exits, matching Echo's contract.
func (a *EchoLoggerAdapter) Fatal(i ...any) {
	a.logger.Error(fmt.Sprint(i...))
	_ = a.logger.Flush()
	os.Exit(1)
}

func (a *EchoLoggerAdapter) Fatalf(format string, args ...any) {
	a.Fatal(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Fatalj(j echo_log.JSON) {
	a.logger.Error("echo fatal", Any("data", j))
	_ = a.logger.Flush()
	os.Exit(1)
}

func (a *EchoLoggerAdapter) Panic(i ...any) {
	msg := fmt.Sprint(i...)
	a.logger.Error(msg)
	panic(msg)
}

func (a *EchoLoggerAdapter) Panicf(format string, args ...any) {
	a.Panic(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Panicj(j echo_log.JSON) {
	a.logger.Error("echo panic", Any("data", j))
	panic(fmt.Sprint(j))
}
