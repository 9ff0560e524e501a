package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	logger     *zap.SugaredLogger
	minLevel   zap.AtomicLevel
	loggerOnce sync.Once
)

// initLogger builds the global logger: console encoding to stderr with
// timestamps. Default minimum level is INFO.
func initLogger() {
	loggerOnce.Do(func() {
		minLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			minLevel,
		)
		logger = zap.New(core).Sugar()
	})
}

// SetLevel changes the minimum level. Unknown levels enable everything.
func SetLevel(l Level) {
	initLogger()
	switch l {
	case LevelDebug:
		minLevel.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		minLevel.SetLevel(zapcore.InfoLevel)
	case LevelError:
		minLevel.SetLevel(zapcore.ErrorLevel)
	default:
		minLevel.SetLevel(zapcore.DebugLevel)
	}
}

// Enabled reports whether messages at level l are currently written.
func Enabled(l Level) bool {
	initLogger()
	switch l {
	case LevelDebug:
		return minLevel.Enabled(zapcore.DebugLevel)
	case LevelInfo:
		return minLevel.Enabled(zapcore.InfoLevel)
	default:
		return minLevel.Enabled(zapcore.ErrorLevel)
	}
}

func Debug(msg string, kv ...any) {
	initLogger()
	logger.Debugw(msg, sanitizeKVs(kv)...)
}

func Info(msg string, kv ...any) {
	initLogger()
	logger.Infow(msg, sanitizeKVs(kv)...)
}

func Error(msg string, err error, kv ...any) {
	initLogger()
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logger.Errorw(msg, sanitizeKVs(extended)...)
}

// Sync flushes buffered entries. Call once before exit.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// sanitizeKVs drops pairs whose key is not a string and a trailing odd value,
// so malformed call sites never turn into zap DPanic entries.
func sanitizeKVs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}
