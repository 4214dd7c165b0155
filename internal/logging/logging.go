// Package logging builds the zap logger used by the CLI.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/phobologic/docreflect/internal/config"
)

// New returns a logger writing to w. Verbose forces debug level with the
// development console encoder; otherwise cfg.Level applies and
// cfg.Development selects the console encoder over JSON.
func New(cfg config.LogConfig, verbose bool, w io.Writer) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, config.Errorf("log.level", "%v", err)
		}
	}

	development := cfg.Development
	if verbose {
		level = zapcore.DebugLevel
		development = true
	}

	var encoder zapcore.Encoder
	if development {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	opts := []zap.Option{zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(w)))}
	if development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}
	return zap.New(core, opts...).Named("docreflect"), nil
}
