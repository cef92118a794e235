package utils

import (
	"strings"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// SetLogFormat switches between logrus' text and JSON formatters.
func SetLogFormat(format string) {
	switch strings.ToLower(format) {
	case "json":
		Log.SetFormatter(&log.JSONFormatter{})
	default:
		Log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// ShortAddress abbreviates a base58 address to its first and last four
// characters, e.g. "bido…TaHy".
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}
