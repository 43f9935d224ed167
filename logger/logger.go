package logger

import (
	"net/http"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Configure sets up the standard logrus logger. level is one of the values
// accepted by LOG_LEVEL, format is either "text" or "json".
func Configure(level, format string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stdout)
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func ForRequest(r *http.Request) *log.Entry {
	return log.WithContext(r.Context()).WithFields(log.Fields{
		"ip":     getUserIP(r),
		"host":   r.Host,
		"path":   r.URL.String(),
		"method": r.Method,
	})
}

func getUserIP(r *http.Request) string {
	headerIP := r.Header.Get("X-Forwarded-For")
	if headerIP != "" {
		return headerIP
	}

	return strings.Split(r.RemoteAddr, ":")[0]
}
