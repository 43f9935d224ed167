package logger

import (
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, Configure("DEBUG", "json"))
	require.Equal(t, log.DebugLevel, log.GetLevel())
	require.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	require.NoError(t, Configure("WARN", "text"))
	require.Equal(t, log.WarnLevel, log.GetLevel())

	require.Error(t, Configure("LOUD", "text"))
}

func TestForRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "http://menu.local/drinks", nil)
	r.RemoteAddr = "10.0.0.7:51234"

	entry := ForRequest(r)
	require.Equal(t, "10.0.0.7", entry.Data["ip"])
	require.Equal(t, "GET", entry.Data["method"])
	require.Equal(t, "menu.local", entry.Data["host"])

	r.Header.Set("X-Forwarded-For", "192.168.1.1")
	require.Equal(t, "192.168.1.1", ForRequest(r).Data["ip"])
}
