// Package logging wraps zap with domain helpers for the events this
// engine emits: quotes, fills, risk transitions, and errors.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the underlying zap core.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// DefaultConfig returns the spec's ambient logging default.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// Logger embeds *zap.Logger and adds domain-specific structured helpers.
type Logger struct {
	*zap.Logger
}

// New builds a Logger writing to stdout in the configured level/format.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level)
	zl := zap.New(core, zap.AddCaller())
	return &Logger{Logger: zl}, nil
}

// LogQuote records a quote emission.
func (l *Logger) LogQuote(symbol string, bid, ask, spreadBps float64) {
	l.Info("quote",
		zap.String("symbol", symbol),
		zap.Float64("bid", bid),
		zap.Float64("ask", ask),
		zap.Float64("spread_bps", spreadBps),
	)
}

// LogFill records a simulated fill.
func (l *Logger) LogFill(symbol, side string, price, size, fee float64) {
	l.Info("fill",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("price", price),
		zap.Float64("size", size),
		zap.Float64("fee", fee),
	)
}

// LogHalt records a kill-switch transition.
func (l *Logger) LogHalt(symbol string, totalPnL, killFloor float64) {
	l.Warn("halt",
		zap.String("symbol", symbol),
		zap.Float64("total_pnl", totalPnL),
		zap.Float64("kill_floor", killFloor),
	)
}

// LogError records a non-fatal error with context.
func (l *Logger) LogError(event string, err error) {
	l.Error(event, zap.Error(err))
}

// Close flushes buffered log entries.
func (l *Logger) Close() error {
	return l.Sync()
}
