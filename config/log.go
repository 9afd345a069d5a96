package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

/*
Builds the logger described by the configuration: JSON lines into a rotating
file when "log.file" is set, console output on stderr otherwise.
*/
func (self LogConfig) Logger() (*zap.Logger, error) {
	level, err := parseLevel(self.Level)
	if err != nil {
		return nil, err
	}

	if self.File == "" {
		encoder := zap.NewDevelopmentEncoderConfig()
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoder), zapcore.AddSync(os.Stderr), level)
		return zap.New(core), nil
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   self.File,
		MaxSize:    self.MaxSizeMb,
		MaxBackups: self.MaxBackups,
		Compress:   true,
	})
	encoder := zap.NewProductionEncoderConfig()
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoder), writer, level)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(input string) (zap.AtomicLevel, error) {
	if input == "" {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}
	level, err := zap.ParseAtomicLevel(input)
	if err != nil {
		return level, errors.Wrapf(err, "configuration: invalid log level %q", input)
	}
	return level, nil
}
