// Copyright © 2019 Arrikto Inc.  All Rights Reserved.

package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/coffeeshop/menu-service/authenticators"
	"github.com/coffeeshop/menu-service/authorizer"
	"github.com/coffeeshop/menu-service/common"
	"github.com/coffeeshop/menu-service/drinks"
	"github.com/coffeeshop/menu-service/keyset"
	"github.com/coffeeshop/menu-service/logger"
	"github.com/coffeeshop/menu-service/middleware"
)

func newDrinkStore(ctx context.Context, c *common.Config) (drinks.Store, error) {
	switch c.StoreType {
	case common.StoreTypeRedis:
		log.Infof("Using Redis drink store at %s", c.StoreRedisAddr)
		return drinks.NewRedisStore(ctx, c.StoreRedisAddr, c.StoreRedisPWD.Reveal(), c.StoreRedisDB)
	default:
		log.Infof("Using BoltDB drink store at %s", c.StorePath)
		return drinks.NewBoltDBStore(c.StorePath)
	}
}

func seedDrinkStore(ctx context.Context, c *common.Config, store drinks.Store) error {
	seed := drinks.DefaultSeed
	if c.SeedPath != "" {
		var err error
		seed, err = drinks.LoadSeed(c.SeedPath)
		if err != nil {
			return err
		}
	}
	log.Infof("Resetting drink store with %d drinks", len(seed))
	return drinks.Seed(ctx, store, seed)
}

func main() {

	c, err := common.ParseConfig()
	if err != nil {
		log.Fatalf("Failed to parse configuration: %+v", err)
	}
	if err := logger.Configure(c.LogLevel, c.LogFormat); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	log.Infof("Config: %+v", c)

	// Start readiness probe immediately
	log.Infof("Starting readiness probe at %v", c.ReadinessProbePort)
	isReady := abool.New()
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", c.ReadinessProbePort), readiness(isReady)))
	}()

	ctx := context.Background()

	// Read custom CA bundle
	var caBundle []byte
	if c.CABundlePath != "" {
		caBundle, err = ioutil.ReadFile(c.CABundlePath)
		if err != nil {
			log.Fatalf("Could not read CA bundle path %s: %v", c.CABundlePath, err)
		}
	}
	tlsCfg := common.TlsConfig(caBundle)

	// The key set is fetched once and never refreshed.
	log.Infof("Fetching signing keys from %s", c.JWKSURL)
	keySet, err := keyset.FetchWithRetry(tlsCfg.Context(ctx), c.JWKSURL.String(), c.JWKSFetchTimeout)
	if err != nil {
		log.Fatalf("Failed to fetch signing keys: %v", err)
	}
	log.Infof("Loaded signing keys: %v", keySet.KeyIDs())

	store, err := newDrinkStore(ctx, c)
	if err != nil {
		log.Fatalf("Error creating drink store: %v", err)
	}
	defer store.Close()

	if c.StoreReset {
		if err := seedDrinkStore(ctx, c, store); err != nil {
			log.Fatalf("Error seeding drink store: %v", err)
		}
	}

	var opts []authenticators.Option
	if c.CacheEnabled {
		ttl := time.Duration(c.CacheExpirationMinutes) * time.Minute
		log.Infof("Caching verified tokens for up to %v", ttl)
		opts = append(opts, authenticators.WithCache(ttl))
	}
	jwtAuthenticator := authenticators.NewJWTTokenAuthenticator(
		c.AuthHeader,
		c.Audience,
		c.Issuer(),
		c.SigningAlgorithm,
		keySet,
		opts...,
	)

	s := &server{
		store:    store,
		enforcer: middleware.NewEnforcer(jwtAuthenticator, authorizer.NewPermissionsAuthorizer()),
	}

	// Setup complete, mark server ready
	isReady.Set()

	log.Infof("Starting server at %v:%v", c.Hostname, c.Port)
	err = http.ListenAndServe(fmt.Sprintf("%s:%d", c.Hostname, c.Port), s.router(c.CORSAllowedOrigins))
	log.Fatal(err)
}
