package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// Caller identity headers installed by the authentication layer fronting this
// service
const (
	CallerUsernameHeader = "X-Caller-Username"
	CallerAdminHeader    = "X-Caller-Admin"
)

// methodHandlers DICT of method-endpoint handler
type methodHandlers map[string]http.HandlerFunc

// registerPathPrefix registers new method handler for a path prefix
func registerPathPrefix(parent *mux.Router, prefix string, handler methodHandlers) *mux.Router {
	router := parent.PathPrefix(prefix).Subrouter()
	for method, handler := range handler {
		router.Methods(method).Path("").HandlerFunc(handler)
	}
	return router
}

// callerIdentity the authenticated caller of a request
type callerIdentity struct {
	// Username caller email
	Username string
	// Admin whether the caller holds the admin role
	Admin bool
}

// getCallerIdentity read the caller identity headers of a request
func getCallerIdentity(r *http.Request) (callerIdentity, error) {
	username := r.Header.Get(CallerUsernameHeader)
	if username == "" {
		return callerIdentity{}, fmt.Errorf("request carries no caller identity")
	}
	return callerIdentity{
		Username: username,
		Admin:    r.Header.Get(CallerAdminHeader) == "true",
	}, nil
}
