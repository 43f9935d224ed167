// Copyright © 2019 Arrikto Inc.  All Rights Reserved.

package main

import (
	"net/http"
	"runtime/debug"

	"github.com/tevino/abool"

	"github.com/coffeeshop/menu-service/common"
	"github.com/coffeeshop/menu-service/logger"
)

// readiness is the handler that checks if the service is ready for serving
// requests. It reports ready once the signing keys are loaded and the drink
// store is open.
func readiness(isReady *abool.AtomicBool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := http.StatusOK
		if !isReady.IsSet() {
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	common.ReturnJSONError(w, http.StatusNotFound)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	common.ReturnJSONError(w, http.StatusMethodNotAllowed)
}

// recoverMiddleware turns a handler panic into a JSON 500 response.
func recoverMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ForRequest(r).Errorf("Handler panicked: %v\n%s", rec, debug.Stack())
				common.ReturnJSONError(w, http.StatusInternalServerError)
			}
		}()
		handler.ServeHTTP(w, r)
	})
}
