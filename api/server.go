package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/alwitt/takbridge/media"
	"github.com/alwitt/takbridge/tak"
	"github.com/alwitt/takbridge/utils"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ====================================================================================
// Bridge API Server

/*
BuildBridgeAPIServer create the TAK bridge REST API server

	@param httpCfg common.APIServerConfig - HTTP server configuration
	@param dbClient db.PersistenceManager - data access layer
	@param controller media.Controller - video lease controller
	@param marti tak.MartiClient - TAK server Marti API client
	@param store utils.PackageStore - mission package payload store
	@param metrics goutils.HTTPRequestMetricHelper - metric collection agent
	@returns HTTP server instance
*/
func BuildBridgeAPIServer(
	httpCfg common.APIServerConfig,
	dbClient db.PersistenceManager,
	controller media.Controller,
	marti tak.MartiClient,
	store utils.PackageStore,
	metrics goutils.HTTPRequestMetricHelper,
) (*http.Server, error) {
	healthHandler, err := NewHealthCheckHandler(dbClient, httpCfg.APIs.RequestLogging)
	if err != nil {
		return nil, err
	}
	leaseHandler, err := NewVideoLeaseHandler(
		dbClient, controller, httpCfg.APIs.RequestLogging, metrics,
	)
	if err != nil {
		return nil, err
	}
	mediaHandler, err := NewMediaAdminHandler(
		dbClient, controller, httpCfg.APIs.RequestLogging, metrics,
	)
	if err != nil {
		return nil, err
	}
	connectionHandler, err := NewConnectionHandler(dbClient, httpCfg.APIs.RequestLogging, metrics)
	if err != nil {
		return nil, err
	}
	packageHandler, err := NewPackageHandler(marti, store, httpCfg.APIs.RequestLogging, metrics)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	mainRouter := registerPathPrefix(router, httpCfg.APIs.Endpoint.PathPrefix, nil)
	v1Router := registerPathPrefix(mainRouter, "/v1", nil)

	// --------------------------------------------------------------------------------
	// Health check
	_ = registerPathPrefix(v1Router, "/alive", map[string]http.HandlerFunc{
		"get": healthHandler.AliveHandler(),
	})
	_ = registerPathPrefix(v1Router, "/ready", map[string]http.HandlerFunc{
		"get": healthHandler.ReadyHandler(),
	})

	// --------------------------------------------------------------------------------
	// Video lease
	leaseRouter := registerPathPrefix(v1Router, "/lease", map[string]http.HandlerFunc{
		"get":  leaseHandler.ListVideoLeasesHandler(),
		"post": leaseHandler.CreateVideoLeaseHandler(),
	})

	_ = registerPathPrefix(leaseRouter, "/{leaseID}", map[string]http.HandlerFunc{
		"get":    leaseHandler.GetVideoLeaseHandler(),
		"patch":  leaseHandler.UpdateVideoLeaseHandler(),
		"delete": leaseHandler.DeleteVideoLeaseHandler(),
	})

	// --------------------------------------------------------------------------------
	// Media service administration
	mediaRouter := registerPathPrefix(v1Router, "/media", nil)

	_ = registerPathPrefix(mediaRouter, "/configuration", map[string]http.HandlerFunc{
		"get":   mediaHandler.GetMediaConfigurationHandler(),
		"patch": mediaHandler.PatchMediaConfigurationHandler(),
	})

	_ = registerPathPrefix(mediaRouter, "/settings", map[string]http.HandlerFunc{
		"put": mediaHandler.SetMediaSettingsHandler(),
	})

	_ = registerPathPrefix(mediaRouter, "/path/{pathID}", map[string]http.HandlerFunc{
		"get": mediaHandler.GetMediaPathHandler(),
	})

	// --------------------------------------------------------------------------------
	// Connection identity
	connectionRouter := registerPathPrefix(v1Router, "/connection", map[string]http.HandlerFunc{
		"get": connectionHandler.ListConnectionsHandler(),
	})

	perConnectionRouter := registerPathPrefix(connectionRouter, "/{connectionID}", nil)

	subscriptionRouter := registerPathPrefix(
		perConnectionRouter, "/subscription", map[string]http.HandlerFunc{
			"get": connectionHandler.ListConnectionSubscriptionsHandler(),
		},
	)

	_ = registerPathPrefix(subscriptionRouter, "/{mission}", map[string]http.HandlerFunc{
		"get": connectionHandler.GetConnectionSubscriptionHandler(),
	})

	_ = registerPathPrefix(v1Router, "/profile/subscription", map[string]http.HandlerFunc{
		"get": connectionHandler.ListProfileSubscriptionsHandler(),
	})

	// --------------------------------------------------------------------------------
	// Mission packages
	packageRouter := registerPathPrefix(v1Router, "/package", map[string]http.HandlerFunc{
		"get": packageHandler.SearchPackagesHandler(),
	})

	_ = registerPathPrefix(packageRouter, "/{hash}/content", map[string]http.HandlerFunc{
		"get": packageHandler.GetPackageContentHandler(),
	})

	// --------------------------------------------------------------------------------
	// Middleware

	router.Use(func(next http.Handler) http.Handler {
		return leaseHandler.LoggingMiddleware(next.ServeHTTP)
	})

	corsWrapper := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"*"},
	})

	// --------------------------------------------------------------------------------
	// HTTP Server

	serverListen := fmt.Sprintf(
		"%s:%d", httpCfg.Server.ListenOn, httpCfg.Server.Port,
	)
	httpSrv := &http.Server{
		Addr:         serverListen,
		WriteTimeout: time.Second * time.Duration(httpCfg.Server.Timeouts.WriteTimeout),
		ReadTimeout:  time.Second * time.Duration(httpCfg.Server.Timeouts.ReadTimeout),
		IdleTimeout:  time.Second * time.Duration(httpCfg.Server.Timeouts.IdleTimeout),
		Handler:      h2c.NewHandler(corsWrapper.Handler(router), &http2.Server{}),
	}

	return httpSrv, nil
}
