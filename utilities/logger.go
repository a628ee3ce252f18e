package utilities

import (
	"fmt"
	"path"
	"runtime"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// InitLogger configures the process-wide logger. Timestamps are always
// full; debug level additionally reports the calling file and line.
func InitLogger(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("invalid log level %s, defaulting to INFO log level", logLevel)
		level = log.InfoLevel
	}

	formatter := &log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	}
	if level == log.DebugLevel {
		log.SetReportCaller(true)
		formatter.CallerPrettyfier = func(frame *runtime.Frame) (string, string) {
			return "", path.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
	}

	log.SetFormatter(formatter)
	log.SetLevel(level)
}

// NewLogger returns an entry tagged with the calling function's name.
func NewLogger(fName string) *log.Entry {
	return log.WithFields(log.Fields{
		"fn": fmt.Sprintf("%s()", fName),
	})
}

func NewLoggerWithFields(fName string, fields map[string]interface{}) *log.Entry {
	f := log.Fields(fields)
	f["fn"] = fmt.Sprintf("%s()", fName)
	return log.WithFields(f)
}
