package main

import (
	"fmt"
	"log/slog"
	"os"
)

// asynqLogger routes asynq's own logging through slog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { slog.Debug(fmt.Sprint(args...), "component", "asynq") }
func (asynqLogger) Info(args ...interface{}) { slog.Info(fmt.Sprint(args...), "component", "asynq") }
func (asynqLogger) Warn(args ...interface{}) { slog.Warn(fmt.Sprint(args...), "component", "asynq") }
func (asynqLogger) Error(args ...interface{}) { slog.Error(fmt.Sprint(args...), "component", "asynq") }

func (asynqLogger) Fatal(args ...interface{}) {
	slog.Error(fmt.Sprint(args...), "component", "asynq")
	os.Exit(1)
}
