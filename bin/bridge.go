package bin

import (
	"context"
	"net/http"
	"net/url"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/api"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/alwitt/takbridge/media"
	"github.com/alwitt/takbridge/tak"
	"github.com/alwitt/takbridge/utils"
	"github.com/apex/log"
	"github.com/go-resty/resty/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BridgeNode TAK bridge node
type BridgeNode struct {
	APIServer     *http.Server
	MetricsServer *http.Server
}

/*
Cleanup stop and clean up the bridge node

	@param ctxt context.Context - execution context
*/
func (n BridgeNode) Cleanup(ctxt context.Context) error {
	return nil
}

// buildHTTPClient helper function to define a resty client from config
func buildHTTPClient(config common.HTTPClientConfig) *resty.Client {
	return resty.New().
		SetRetryCount(config.Retry.MaxAttempts).
		SetRetryWaitTime(config.Retry.InitWaitTime()).
		SetRetryMaxWaitTime(config.Retry.MaxWaitTime())
}

/*
DefineBridgeNode setup new TAK bridge node

	@param parentCtxt context.Context - parent execution context
	@param nodeName string - bridge node name
	@param config common.BridgeNodeConfig - bridge node configuration
	@param psqlPassword string - Postgres SQL user password
	@returns new bridge node
*/
func DefineBridgeNode(
	parentCtxt context.Context,
	nodeName string,
	config common.BridgeNodeConfig,
	psqlPassword string,
) (BridgeNode, error) {
	/*
		Steps for preparing the bridge node are

		* Prepare database
		* Prepare metrics collection framework
		* Prepare TAK server Marti API client
		* Prepare video lease controller
		* Prepare mission package store
		* Prepare HTTP servers
	*/

	theNode := BridgeNode{}

	// Define the persistence manager
	var sqlDialector gorm.Dialector
	if config.Sqlite != nil {
		sqlDialector = db.GetSqliteDialector(config.Sqlite.DBFile)
	} else {
		sqlDialector = db.GetPostgresDialector(*config.Postgres, psqlPassword)
	}
	dbManager, err := db.NewManager(sqlDialector, logger.Error)
	if err != nil {
		log.WithError(err).Error("Failed to define persistence manager")
		return theNode, err
	}

	// Define metrics collection framework
	metrics, err := goutils.GetNewMetricsCollector(
		log.Fields{"module": "goutils", "component": "metrics-core", "instance": nodeName},
		[]goutils.LogMetadataModifier{goutils.ModifyLogMetadataByRestRequestParam},
	)
	if err != nil {
		log.WithError(err).Error("Failed to define metrics collection framework")
		return theNode, err
	}
	if config.Metrics.Features.EnableAppMetrics {
		metrics.InstallApplicationMetrics()
	}
	var httpMetricsAgent goutils.HTTPRequestMetricHelper
	if config.Metrics.Features.EnableHTTPMetrics {
		httpMetricsAgent = metrics.InstallHTTPMetrics()
	}

	// Define TAK server Marti API client
	takBaseURL, err := url.Parse(config.TAKServer.APIBaseURL)
	if err != nil {
		log.WithError(err).Error("TAK server API base URL is not a valid URL")
		return theNode, err
	}
	martiClient, err := tak.NewRestMartiClient(
		parentCtxt, takBaseURL, config.TAKServer.RequestIDHeader, buildHTTPClient(config.TAKServer.Client),
	)
	if err != nil {
		log.WithError(err).Error("Failed to define TAK server Marti API client")
		return theNode, err
	}

	// Define video lease controller
	leaseController, err := media.NewController(
		parentCtxt,
		dbManager,
		config.APIServer.APIs.RequestLogging.RequestIDHeader,
		buildHTTPClient(config.MediaControl.Client),
		metrics,
	)
	if err != nil {
		log.WithError(err).Error("Failed to define video lease controller")
		return theNode, err
	}

	// Define mission package store
	packageStore, err := utils.NewS3PackageStore(config.PackageStorage)
	if err != nil {
		log.WithError(err).Error("Failed to define mission package store")
		return theNode, err
	}

	// Define bridge API HTTP server
	apiServer, err := api.BuildBridgeAPIServer(
		config.APIServer, dbManager, leaseController, martiClient, packageStore, httpMetricsAgent,
	)
	if err != nil {
		log.WithError(err).Error("Failed to create bridge API HTTP server")
		return theNode, err
	}
	theNode.APIServer = apiServer

	// Define metrics collection HTTP server
	metricsServer, err := goutils.BuildMetricsCollectionServer(
		config.Metrics.Server, metrics, config.Metrics.MetricsEndpoint, config.Metrics.MaxRequests,
	)
	if err != nil {
		log.WithError(err).Error("Failed to create metrics collection HTTP server")
		return theNode, err
	}
	theNode.MetricsServer = metricsServer

	return theNode, nil
}
