package common

import (
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerService struct {
	Logger *zap.Logger
}

func NewLoggerService(i do.Injector) (*LoggerService, error) {
	level := do.MustInvokeNamed[string](i, "log-level")
	file := do.MustInvokeNamed[string](i, "log-file")

	return &LoggerService{
		Logger: NewLogger(level, file),
	}, nil
}

// NewLogger writes colored console lines to stderr and, when file is set,
// JSON lines to a rotated file.
func NewLogger(level string, file string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zapcore.InfoLevel
	}

	atomicLevel := zap.NewAtomicLevelAt(lvl)

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleCfg := encoderCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), atomicLevel)

	if file != "" {
		fileCfg := encoderCfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		//nolint:exhaustruct,mnd
		fileWriter := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}

		core = zapcore.NewTee(
			core,
			zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(fileWriter), atomicLevel),
		)
	}

	return zap.New(core, zap.AddCaller()).Named("horde")
}

func (s *LoggerService) Shutdown() error {
	// stderr cannot be synced on every platform
	_ = s.Logger.Sync()

	return nil
}
