package common

import (
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	StoreTypeBoltDB = "boltdb"
	StoreTypeRedis  = "redis"

	jwksWellKnownPath = "/.well-known/jwks.json"
)

type Config struct {
	// Identity provider
	IssuerURL        *url.URL      `required:"true" split_words:"true" envconfig:"ISSUER_URL"`
	Audience         string        `required:"true" envconfig:"API_AUDIENCE"`
	JWKSURL          *url.URL      `envconfig:"JWKS_URL"`
	SigningAlgorithm string        `split_words:"true" default:"RS256"`
	AuthHeader       string        `split_words:"true" default:"Authorization"`
	JWKSFetchTimeout time.Duration `envconfig:"JWKS_FETCH_TIMEOUT" default:"30s"`
	CABundlePath     string        `split_words:"true" envconfig:"CA_BUNDLE"`

	// Infra
	Hostname           string   `split_words:"true" envconfig:"SERVER_HOSTNAME"`
	Port               int      `split_words:"true" default:"8080" envconfig:"SERVER_PORT"`
	ReadinessProbePort int      `split_words:"true" default:"8081"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	LogLevel           string   `split_words:"true" default:"INFO"`
	LogFormat          string   `split_words:"true" default:"text"`

	// Drink store
	StoreType      string           `split_words:"true" default:"boltdb"`
	StorePath      string           `split_words:"true" default:"/var/lib/menu-service/drinks.db"`
	StoreRedisAddr string           `split_words:"true" default:"127.0.0.1:6379"`
	StoreRedisPWD  *ProtectedString `split_words:"true" default:"" envconfig:"STORE_REDIS_PWD"`
	StoreRedisDB   int              `split_words:"true" default:"0" envconfig:"STORE_REDIS_DB"`
	StoreReset     bool             `split_words:"true" default:"false"`
	SeedPath       string           `split_words:"true"`

	// Verified token cache
	CacheEnabled           bool `split_words:"true" default:"false" envconfig:"CACHE_ENABLED"`
	CacheExpirationMinutes int  `split_words:"true" default:"5" envconfig:"CACHE_EXPIRATION_MINUTES"`
}

func ParseConfig() (*Config, error) {

	var c Config
	err := envconfig.Process("", &c)
	if err != nil {
		return nil, err
	}

	if c.JWKSURL == nil || len(c.JWKSURL.String()) == 0 {
		c.JWKSURL = ResolvePathReference(c.IssuerURL, jwksWellKnownPath)
	}
	if !validSigningAlgorithm(c.SigningAlgorithm) {
		return nil, errors.Errorf("unsupported value for the signing algorithm: "+
			"SIGNING_ALGORITHM=%s", c.SigningAlgorithm)
	}
	if !validStoreType(c.StoreType) {
		return nil, errors.Errorf("unsupported value for the type of the drink store: "+
			"STORE_TYPE=%s", c.StoreType)
	}
	if !validLogLevel(c.LogLevel) {
		return nil, errors.Errorf("unsupported value for the log level messages: "+
			"LOG_LEVEL=%s", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return nil, errors.Errorf("unsupported value for the log format: "+
			"LOG_FORMAT=%s", c.LogFormat)
	}
	if c.CacheEnabled && c.CacheExpirationMinutes <= 0 {
		return nil, errors.Errorf("CACHE_EXPIRATION_MINUTES must be positive, got %d",
			c.CacheExpirationMinutes)
	}

	c.CORSAllowedOrigins = trimSpaceFromStringSliceElements(c.CORSAllowedOrigins)

	return &c, nil
}

// Issuer returns the issuer as it appears in the `iss` claim. Auth0-style
// providers keep the trailing slash, so the configured value is used as is.
func (c *Config) Issuer() string {
	return c.IssuerURL.String()
}

func trimSpaceFromStringSliceElements(slice []string) []string {
	ret := []string{}
	for _, elem := range slice {
		elem = strings.TrimSpace(elem)
		if len(elem) > 0 {
			ret = append(ret, elem)
		}
	}
	return ret
}

// validSigningAlgorithm only admits asymmetric algorithms, since the keys come
// from a public JWKS document.
func validSigningAlgorithm(alg string) bool {
	switch alg {
	case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512":
		return true
	}
	log.Warn("Please select an asymmetric signing algorithm, e.g. RS256")
	return false
}

func validStoreType(storeType string) bool {
	if storeType == StoreTypeBoltDB {
		return true
	}
	if storeType == StoreTypeRedis {
		return true
	}

	log.Warn("Please select exactly one of the options: " +
		"i) boltdb: to keep drinks in a local BoltDB file, " +
		"ii) redis: to keep drinks in Redis")

	return false
}

// validLogLevel() examines if the admins have configured a valid value for the
// LOG_LEVEL envvar.
func validLogLevel(level string) bool {
	switch level {
	case "FATAL", "ERROR", "WARN", "INFO", "DEBUG":
		return true
	}

	log.Warn("Please select exactly one of the options for the LOG_LEVEL: " +
		"FATAL, ERROR, WARN, INFO or DEBUG")

	return false
}
