package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

func GetLogger() *logrus.Logger {
	return logg
}

// SetLevel accepts logrus level names; unknown names keep the current level.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logg.WithField("level", level).Warn("unknown log level, keeping " + logg.GetLevel().String())
		return
	}
	logg.SetLevel(lvl)
}

func SetOutput(w io.Writer) {
	logg.SetOutput(w)
}

func Module(name string) *logrus.Entry {
	return logg.WithField("module", name)
}

func LogError(moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logg.WithFields(fields).Error(err.Error())
}
