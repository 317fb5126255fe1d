package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

type Fields = logrus.Fields

type Config struct {
	Debug  bool
	Format string // "json" or "text"
	Output io.Writer
}

func Init(cfg Config) {
	switch cfg.Format {
	case "text":
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	if cfg.Output != nil {
		Log.SetOutput(cfg.Output)
	} else {
		Log.SetOutput(os.Stdout)
	}

	if cfg.Debug {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

func WithFeed(name string) *logrus.Entry {
	return Log.WithField("feed", name)
}
