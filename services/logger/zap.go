package logsvc

import (
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/user"
)

// ZapLogger adapts a zap logger to core.Logger.
type ZapLogger struct {
	*zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger builds a development (console) logger in debug mode, a production (JSON) one otherwise.
func NewZapLogger(conf *core.Config) (*ZapLogger, error) {
	var zconf zap.Config
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
	} else {
		zconf = zap.NewProductionConfig()
		zconf.EncoderConfig.TimeKey = "time"
		zconf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zl, err := zconf.Build(zap.AddCallerSkip(1), zap.Fields(
		zap.String("app", conf.AppName),
		zap.String("env", conf.Env),
		zap.String("build", conf.Build),
	))
	if err != nil {
		return nil, err
	}
	return &ZapLogger{Logger: zl}, nil
}

// NewNopLogger discards everything; used in tests.
func NewNopLogger() *ZapLogger {
	return &ZapLogger{Logger: zap.NewNop()}
}

// fields turns the core.Logger args into zap fields:
// errors, map[string]interface{} & user.User are recognized, anything else is kept as-is.
func fields(args []interface{}) []zap.Field {
	flds := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			flds = append(flds, zap.Error(v))
		case map[string]interface{}:
			for key, val := range v {
				flds = append(flds, zap.Any(key, val))
			}
		case user.User:
			flds = append(flds, zap.Int64("user_id", v.ID))
		default:
			flds = append(flds, zap.Any("arg"+strconv.Itoa(i), v))
		}
	}
	return flds
}

func (l ZapLogger) Debug(msg string, args ...interface{}) { l.Logger.Debug(msg, fields(args)...) }
func (l ZapLogger) Info(msg string, args ...interface{})  { l.Logger.Info(msg, fields(args)...) }
func (l ZapLogger) Warn(msg string, args ...interface{})  { l.Logger.Warn(msg, fields(args)...) }
func (l ZapLogger) Error(msg string, args ...interface{}) { l.Logger.Error(msg, fields(args)...) }
func (l ZapLogger) Fatal(msg string, args ...interface{}) { l.Logger.Fatal(msg, fields(args)...) }

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
