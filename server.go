// Copyright © 2019 Arrikto Inc.  All Rights Reserved.

package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/coffeeshop/menu-service/common"
	"github.com/coffeeshop/menu-service/drinks"
	"github.com/coffeeshop/menu-service/logger"
	"github.com/coffeeshop/menu-service/middleware"
)

const (
	DrinksPath       = "/drinks"
	DrinkPath        = "/drinks/{id}"
	DrinksDetailPath = "/drinks-detail"

	PermissionGetDrinksDetail = "get:drinks-detail"
	PermissionPostDrinks      = "post:drinks"
	PermissionPatchDrinks     = "patch:drinks"
	PermissionDeleteDrinks    = "delete:drinks"
)

type server struct {
	store    drinks.Store
	enforcer *middleware.Enforcer
}

type drinksResponse struct {
	Success bool        `json:"success"`
	Drinks  interface{} `json:"drinks"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Delete  string `json:"delete"`
}

// drinkRequest is the body of POST and PATCH. Absent fields stay nil.
type drinkRequest struct {
	Title  *string        `json:"title"`
	Recipe *drinks.Recipe `json:"recipe"`
}

// router registers the drink routes. Public routes are served directly, every
// other route goes through the enforcer with its own permission.
func (s *server) router(allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	router.HandleFunc(DrinksPath, s.listDrinks).Methods(http.MethodGet)
	router.Handle(DrinksDetailPath,
		s.enforcer.Require(PermissionGetDrinksDetail, s.listDrinksDetail)).Methods(http.MethodGet)
	router.Handle(DrinksPath,
		s.enforcer.Require(PermissionPostDrinks, s.createDrink)).Methods(http.MethodPost)
	router.Handle(DrinkPath,
		s.enforcer.Require(PermissionPatchDrinks, s.updateDrink)).Methods(http.MethodPatch)
	router.Handle(DrinkPath,
		s.enforcer.Require(PermissionDeleteDrinks, s.deleteDrink)).Methods(http.MethodDelete)

	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.CombinedLoggingHandler(log.StandardLogger().Writer(),
		recoverMiddleware(cors(router)))
}

func (s *server) listDrinks(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.List(r.Context())
	if err != nil {
		logger.ForRequest(r).Errorf("Failed to list drinks: %v", err)
		common.ReturnJSONError(w, http.StatusInternalServerError)
		return
	}
	short := make([]drinks.ShortDrink, 0, len(all))
	for _, d := range all {
		short = append(short, d.Short())
	}
	common.ReturnJSONMessage(w, http.StatusOK, drinksResponse{Success: true, Drinks: short})
}

func (s *server) listDrinksDetail(w http.ResponseWriter, r *http.Request, claims *common.Claims) {
	all, err := s.store.List(r.Context())
	if err != nil {
		logger.ForRequest(r).Errorf("Failed to list drinks: %v", err)
		common.ReturnJSONError(w, http.StatusInternalServerError)
		return
	}
	long := make([]drinks.Drink, 0, len(all))
	for _, d := range all {
		long = append(long, d.Long())
	}
	common.ReturnJSONMessage(w, http.StatusOK, drinksResponse{Success: true, Drinks: long})
}

func (s *server) createDrink(w http.ResponseWriter, r *http.Request, claims *common.Claims) {
	logger := logger.ForRequest(r).WithField("sub", claims.Subject)

	var req drinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Infof("Failed to decode drink: %v", err)
		common.ReturnJSONError(w, http.StatusBadRequest)
		return
	}
	if req.Title == nil || req.Recipe == nil {
		logger.Info("Drink must have a title and a recipe")
		common.ReturnJSONError(w, http.StatusUnprocessableEntity)
		return
	}

	d, err := s.store.Create(r.Context(), drinks.Drink{Title: *req.Title, Recipe: *req.Recipe})
	if err != nil {
		logger.Infof("Failed to create drink: %v", err)
		common.ReturnJSONError(w, storeErrorStatus(err))
		return
	}
	logger.WithField("drink", d.ID).Info("Created drink")
	common.ReturnJSONMessage(w, http.StatusOK, drinksResponse{Success: true, Drinks: []drinks.Drink{d.Long()}})
}

func (s *server) updateDrink(w http.ResponseWriter, r *http.Request, claims *common.Claims) {
	logger := logger.ForRequest(r).WithField("sub", claims.Subject)

	id, ok := drinkID(r)
	if !ok {
		common.ReturnJSONError(w, http.StatusNotFound)
		return
	}
	d, err := s.store.Get(r.Context(), id)
	if err != nil {
		logger.Infof("Failed to get drink %d: %v", id, err)
		common.ReturnJSONError(w, storeErrorStatus(err))
		return
	}

	var req drinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Infof("Failed to decode drink: %v", err)
		common.ReturnJSONError(w, http.StatusBadRequest)
		return
	}
	if req.Title == nil && req.Recipe == nil {
		logger.Info("Nothing to update")
		common.ReturnJSONError(w, http.StatusUnprocessableEntity)
		return
	}
	if req.Title != nil {
		d.Title = *req.Title
	}
	if req.Recipe != nil {
		d.Recipe = *req.Recipe
	}

	d, err = s.store.Update(r.Context(), d)
	if err != nil {
		logger.Infof("Failed to update drink %d: %v", id, err)
		common.ReturnJSONError(w, storeErrorStatus(err))
		return
	}
	logger.WithField("drink", d.ID).Info("Updated drink")
	common.ReturnJSONMessage(w, http.StatusOK, drinksResponse{Success: true, Drinks: []drinks.Drink{d.Long()}})
}

func (s *server) deleteDrink(w http.ResponseWriter, r *http.Request, claims *common.Claims) {
	logger := logger.ForRequest(r).WithField("sub", claims.Subject)

	id, ok := drinkID(r)
	if !ok {
		common.ReturnJSONError(w, http.StatusNotFound)
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		logger.Infof("Failed to delete drink %d: %v", id, err)
		common.ReturnJSONError(w, storeErrorStatus(err))
		return
	}
	logger.WithField("drink", id).Info("Deleted drink")
	common.ReturnJSONMessage(w, http.StatusOK, deleteResponse{Success: true, Delete: strconv.Itoa(id)})
}

func drinkID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func storeErrorStatus(err error) int {
	switch errors.Cause(err) {
	case drinks.ErrNotFound:
		return http.StatusNotFound
	case drinks.ErrTitleExists, drinks.ErrInvalid:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
