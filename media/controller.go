package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/alwitt/takbridge/utils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// controlPlanePort media server REST control plane port
const controlPlanePort = "9997"

// GenerateParams video lease creation parameters
type GenerateParams struct {
	// Name human readable lease name
	Name string `validate:"required"`
	// Ephemeral whether the lease is hidden from the user facing streaming list
	Ephemeral bool
	// Expiration when the lease lapses
	Expiration time.Time `validate:"required"`
	// Path stream path to claim. A random path is assigned when empty
	Path string
	// Username owning user email
	Username string `validate:"required"`
	// Proxy optionally, upstream source URL the media server pulls from on demand
	Proxy *string
	// StreamUser optionally, publish user embedded in RTMP connection URLs
	StreamUser *string
	// StreamPass optionally, publish password embedded in RTMP connection URLs
	StreamPass *string
}

// Controller video lease controller. Owns the lease plus media server path
// lifecycle and assembles per protocol connection URLs.
type Controller interface {
	/*
		Settings read the media service integration parameters from the settings store.

		Missing settings yield `Configured == false` rather than an error.

			@param ctxt context.Context - execution context
			@returns integration parameters
	*/
	Settings(ctxt context.Context) (ServiceSettings, error)

	/*
		Configuration fetch the media server global config and path list

			@param ctxt context.Context - execution context
			@returns media service state snapshot
	*/
	Configuration(ctxt context.Context) (Configuration, error)

	/*
		Configure apply a partial media server global config patch

			@param ctxt context.Context - execution context
			@param patch map[string]interface{} - config fields to change
			@returns refreshed media service state snapshot
	*/
	Configure(ctxt context.Context, patch map[string]interface{}) (Configuration, error)

	/*
		Protocols derive the per protocol connection URLs of a lease.

		Only protocols enabled in the media server config appear in the result. An
		unconfigured media service yields an empty map, not an error.

			@param ctxt context.Context - execution context
			@param lease common.VideoLease - the lease
			@returns protocol name to connection URL
	*/
	Protocols(ctxt context.Context, lease common.VideoLease) (map[string]string, error)

	/*
		Generate create a new video lease and the matching media server path.

		The lease record is written before the media server path. A path creation
		failure leaves the record in place.

			@param ctxt context.Context - execution context
			@param params GenerateParams - lease parameters
			@returns the new lease record
	*/
	Generate(ctxt context.Context, params GenerateParams) (common.VideoLease, error)

	/*
		Commit update the name and expiration of an existing lease

			@param ctxt context.Context - execution context
			@param leaseID string - lease entry ID
			@param name *string - if set, new lease name
			@param expiration *time.Time - if set, new expiration
			@returns the updated lease record
	*/
	Commit(
		ctxt context.Context, leaseID string, name *string, expiration *time.Time,
	) (common.VideoLease, error)

	/*
		Path fetch the stored configuration of one media server path

			@param ctxt context.Context - execution context
			@param pathID string - media server path name
			@returns path configuration
	*/
	Path(ctxt context.Context, pathID string) (PathConfig, error)

	/*
		Delete remove a video lease.

		The lease record is deleted first. The media server path delete which
		follows is fire-and-forget; its result is not checked.

			@param ctxt context.Context - execution context
			@param leaseID string - lease entry ID
	*/
	Delete(ctxt context.Context, leaseID string) error
}

// videoControllerImpl implements Controller
type videoControllerImpl struct {
	goutils.Component
	db              db.PersistenceManager
	requestIDHeader string
	client          *resty.Client
	validator       *validator.Validate

	/* Metrics Collection Agents */
	leaseOpMetrics *prometheus.CounterVec
}

/*
NewController define a new video lease controller

	@param ctxt context.Context - execution context
	@param dbClient db.PersistenceManager - data access layer
	@param requestIDHeader string - HTTP header to set for the request ID
	@param httpClient *resty.Client - HTTP client to use
	@param metrics goutils.MetricsCollector - metrics framework client
	@return new controller
*/
func NewController(
	ctxt context.Context,
	dbClient db.PersistenceManager,
	requestIDHeader string,
	httpClient *resty.Client,
	metrics goutils.MetricsCollector,
) (Controller, error) {
	logTags := log.Fields{"module": "media", "component": "video-lease-controller"}

	instance := &videoControllerImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:              dbClient,
		requestIDHeader: requestIDHeader,
		client:          httpClient,
		validator:       validator.New(),
		leaseOpMetrics:  nil,
	}

	// Install metrics
	if metrics != nil {
		var err error
		instance.leaseOpMetrics, err = metrics.InstallCustomCounterVecMetrics(
			ctxt,
			utils.MetricsNameVideoLeaseOperationCount,
			"Tracking number of video lease operations",
			[]string{"operation"},
		)
		if err != nil {
			log.
				WithError(err).
				WithFields(logTags).
				Error("Unable to define video lease operation tracking metrics")
			return nil, err
		}
	}
	return instance, nil
}

// recordLeaseOp count one completed lease operation
func (c *videoControllerImpl) recordLeaseOp(operation string) {
	if c.leaseOpMetrics != nil {
		c.leaseOpMetrics.With(prometheus.Labels{"operation": operation}).Inc()
	}
}

// controlEndpoint build a control plane URL from the service URL. The control
// plane listens on a fixed port regardless of the public service port.
func controlEndpoint(settings ServiceSettings, subPath string) (*url.URL, error) {
	parsed, err := url.Parse(settings.URL)
	if err != nil {
		return nil, err
	}
	parsed.Host = fmt.Sprintf("%s:%s", parsed.Hostname(), controlPlanePort)
	parsed.Path = subPath
	return parsed, nil
}

// addressPort extract the port of a bound address of the ":8554" form
func addressPort(address string) string {
	if idx := strings.LastIndex(address, ":"); idx >= 0 {
		return address[idx+1:]
	}
	return address
}

func (c *videoControllerImpl) Settings(ctxt context.Context) (ServiceSettings, error) {
	result := ServiceSettings{}

	for _, read := range []struct {
		key    string
		target *string
	}{
		{key: SettingMediaURL, target: &result.URL},
		{key: SettingMediaUsername, target: &result.Username},
		{key: SettingMediaPassword, target: &result.Password},
	} {
		value, err := c.db.GetSetting(ctxt, read.key)
		if err != nil {
			if errors.Is(err, db.ErrSettingNotFound) {
				return ServiceSettings{Configured: false}, nil
			}
			return ServiceSettings{}, NewConditionWithCause(
				http.StatusInternalServerError, "settings store lookup failed", err,
			)
		}
		*read.target = value
	}

	result.Configured = true
	return result, nil
}

func (c *videoControllerImpl) Configuration(ctxt context.Context) (Configuration, error) {
	settings, err := c.Settings(ctxt)
	if err != nil {
		return Configuration{}, err
	}
	if !settings.Configured {
		return Configuration{Configured: false}, nil
	}

	config, err := c.fetchGlobalConfig(ctxt, settings)
	if err != nil {
		return Configuration{}, err
	}
	paths, err := c.fetchPathList(ctxt, settings)
	if err != nil {
		return Configuration{}, err
	}

	return Configuration{Configured: true, URL: settings.URL, Config: config, Paths: paths}, nil
}

func (c *videoControllerImpl) fetchGlobalConfig(
	ctxt context.Context, settings ServiceSettings,
) (*GlobalConfig, error) {
	logTags := c.GetLogTagsForContext(ctxt)

	requestURL, err := controlEndpoint(settings, "/v3/config/global/get")
	if err != nil {
		return nil, NewConditionWithCause(
			http.StatusInternalServerError, "invalid media service URL", err,
		)
	}

	resp, err := c.controlRequest(settings).
		SetResult(&GlobalConfig{}).
		Get(requestURL.String())
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Media server global config fetch failed on call")
		return nil, NewConditionWithCause(
			http.StatusInternalServerError, "media server unreachable", err,
		)
	}
	if !resp.IsSuccess() {
		return nil, NewCondition(http.StatusInternalServerError, string(resp.Body()))
	}

	config, ok := resp.Result().(*GlobalConfig)
	if !ok {
		return nil, NewCondition(
			http.StatusInternalServerError, "failed to parse media server global config",
		)
	}
	return config, nil
}

func (c *videoControllerImpl) fetchPathList(
	ctxt context.Context, settings ServiceSettings,
) ([]PathStatus, error) {
	logTags := c.GetLogTagsForContext(ctxt)

	requestURL, err := controlEndpoint(settings, "/v3/paths/list")
	if err != nil {
		return nil, NewConditionWithCause(
			http.StatusInternalServerError, "invalid media service URL", err,
		)
	}

	resp, err := c.controlRequest(settings).
		SetResult(&pathListResponse{}).
		Get(requestURL.String())
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Media server path listing failed on call")
		return nil, NewConditionWithCause(
			http.StatusInternalServerError, "media server unreachable", err,
		)
	}
	if !resp.IsSuccess() {
		return nil, NewCondition(http.StatusInternalServerError, string(resp.Body()))
	}

	pathList, ok := resp.Result().(*pathListResponse)
	if !ok {
		return nil, NewCondition(
			http.StatusInternalServerError, "failed to parse media server path listing",
		)
	}
	return pathList.Items, nil
}

// controlRequest prepare an authenticated control plane request
func (c *videoControllerImpl) controlRequest(settings ServiceSettings) *resty.Request {
	request := c.client.R().SetHeader(c.requestIDHeader, ulid.Make().String())
	if settings.Username != "" {
		request = request.SetBasicAuth(settings.Username, settings.Password)
	}
	return request
}

func (c *videoControllerImpl) Configure(
	ctxt context.Context, patch map[string]interface{},
) (Configuration, error) {
	logTags := c.GetLogTagsForContext(ctxt)

	settings, err := c.Settings(ctxt)
	if err != nil {
		return Configuration{}, err
	}
	if !settings.Configured {
		return Configuration{}, NewCondition(
			http.StatusBadRequest, "media service integration is not configured",
		)
	}

	requestURL, err := controlEndpoint(settings, "/v3/config/global/patch")
	if err != nil {
		return Configuration{}, NewConditionWithCause(
			http.StatusInternalServerError, "invalid media service URL", err,
		)
	}

	resp, err := c.controlRequest(settings).
		SetBody(patch).
		Patch(requestURL.String())
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Media server config patch failed on call")
		return Configuration{}, NewConditionWithCause(
			http.StatusInternalServerError, "media server unreachable", err,
		)
	}
	if !resp.IsSuccess() {
		return Configuration{}, NewCondition(http.StatusInternalServerError, string(resp.Body()))
	}

	log.WithFields(logTags).Info("Patched media server global config")
	return c.Configuration(ctxt)
}

func (c *videoControllerImpl) Protocols(
	ctxt context.Context, lease common.VideoLease,
) (map[string]string, error) {
	config, err := c.Configuration(ctxt)
	if err != nil {
		return nil, err
	}

	results := map[string]string{}
	if !config.Configured || config.Config == nil {
		return results, nil
	}

	base, err := url.Parse(config.URL)
	if err != nil {
		return nil, NewConditionWithCause(
			http.StatusInternalServerError, "invalid media service URL", err,
		)
	}
	host := base.Hostname()

	if config.Config.RTSP {
		results[ProtocolRTSP] = fmt.Sprintf(
			"rtsp://%s:%s/%s", host, addressPort(config.Config.RTSPAddress), lease.Path,
		)
	}
	if config.Config.RTMP {
		streamURL := fmt.Sprintf(
			"rtmp://%s:%s/%s", host, addressPort(config.Config.RTMPAddress), lease.Path,
		)
		if lease.StreamUser != nil && lease.StreamPass != nil {
			query := url.Values{}
			query.Set("user", *lease.StreamUser)
			query.Set("pass", *lease.StreamPass)
			streamURL = fmt.Sprintf("%s?%s", streamURL, query.Encode())
		}
		results[ProtocolRTMP] = streamURL
	}
	if config.Config.HLS {
		results[ProtocolHLS] = fmt.Sprintf(
			"%s://%s:%s/%s/index.m3u8",
			base.Scheme, host, addressPort(config.Config.HLSAddress), lease.Path,
		)
	}
	if config.Config.WebRTC {
		results[ProtocolWebRTC] = fmt.Sprintf(
			"%s://%s:%s/%s",
			base.Scheme, host, addressPort(config.Config.WebRTCAddress), lease.Path,
		)
	}

	return results, nil
}

func (c *videoControllerImpl) Generate(
	ctxt context.Context, params GenerateParams,
) (common.VideoLease, error) {
	logTags := c.GetLogTagsForContext(ctxt)

	if err := c.validator.Struct(&params); err != nil {
		return common.VideoLease{}, NewConditionWithCause(
			http.StatusBadRequest, "invalid lease parameters", err,
		)
	}

	settings, err := c.Settings(ctxt)
	if err != nil {
		return common.VideoLease{}, err
	}
	if !settings.Configured {
		return common.VideoLease{}, NewCondition(
			http.StatusBadRequest, "media service integration is not configured",
		)
	}

	if params.Path == "" {
		params.Path = uuid.NewString()
	}

	// The lease record is written before the media server path. There is no
	// rollback when path creation fails below.
	lease, err := c.db.DefineVideoLease(ctxt, common.VideoLease{
		Name:       params.Name,
		Path:       params.Path,
		Ephemeral:  params.Ephemeral,
		Expiration: params.Expiration,
		Username:   params.Username,
		Proxy:      params.Proxy,
		StreamUser: params.StreamUser,
		StreamPass: params.StreamPass,
	})
	if err != nil {
		return common.VideoLease{}, NewConditionWithCause(
			http.StatusInternalServerError, "failed to record video lease", err,
		)
	}

	pathRequest := pathAddRequest{}
	if params.Proxy != nil {
		if err := c.validateProxySource(ctxt, *params.Proxy); err != nil {
			return common.VideoLease{}, err
		}
		pathRequest.Source = *params.Proxy
		pathRequest.SourceOnDemand = true
	}

	requestURL, err := controlEndpoint(
		settings, fmt.Sprintf("/v3/config/paths/add/%s", params.Path),
	)
	if err != nil {
		return common.VideoLease{}, NewConditionWithCause(
			http.StatusInternalServerError, "invalid media service URL", err,
		)
	}

	resp, err := c.controlRequest(settings).
		SetBody(pathRequest).
		Post(requestURL.String())
	if err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			WithField("path", params.Path).
			Error("Media server path creation failed on call")
		return common.VideoLease{}, NewConditionWithCause(
			http.StatusInternalServerError, "media server unreachable", err,
		)
	}
	if !resp.IsSuccess() {
		return common.VideoLease{}, NewCondition(
			http.StatusInternalServerError, string(resp.Body()),
		)
	}

	log.
		WithFields(logTags).
		WithField("path", params.Path).
		WithField("id", lease.ID).
		Info("Created video lease")
	c.recordLeaseOp("generate")
	return lease, nil
}

// validateProxySource check a proxy source URL before creating a media server
// path with it as upstream. Only http/https sources are probed.
func (c *videoControllerImpl) validateProxySource(ctxt context.Context, proxy string) error {
	logTags := c.GetLogTagsForContext(ctxt)

	parsed, err := url.Parse(proxy)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return NewCondition(http.StatusBadRequest, "invalid proxy URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil
	}

	resp, err := c.client.R().
		SetHeader(c.requestIDHeader, ulid.Make().String()).
		SetDoNotParseResponse(true).
		Get(proxy)
	if err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			WithField("proxy", proxy).
			Error("Proxy source probe failed on call")
		return NewConditionWithCause(
			http.StatusInternalServerError, "proxy source unreachable", err,
		)
	}
	defer func() { _ = resp.RawBody().Close() }()

	if resp.StatusCode() == http.StatusNotFound {
		return NewCondition(http.StatusBadRequest, "stream not found")
	}
	if !resp.IsSuccess() {
		return NewCondition(
			resp.StatusCode(), fmt.Sprintf("proxy source returned status %d", resp.StatusCode()),
		)
	}
	return nil
}

func (c *videoControllerImpl) Commit(
	ctxt context.Context, leaseID string, name *string, expiration *time.Time,
) (common.VideoLease, error) {
	lease, err := c.db.GetVideoLease(ctxt, leaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.VideoLease{}, NewCondition(http.StatusNotFound, "lease not found")
		}
		return common.VideoLease{}, NewConditionWithCause(
			http.StatusInternalServerError, "lease lookup failed", err,
		)
	}

	newName := lease.Name
	if name != nil {
		newName = *name
	}
	newExpiration := lease.Expiration
	if expiration != nil {
		newExpiration = *expiration
	}

	updated, err := c.db.UpdateVideoLease(ctxt, leaseID, newName, newExpiration)
	if err != nil {
		return common.VideoLease{}, NewConditionWithCause(
			http.StatusInternalServerError, "lease update failed", err,
		)
	}
	c.recordLeaseOp("commit")
	return updated, nil
}

func (c *videoControllerImpl) Path(ctxt context.Context, pathID string) (PathConfig, error) {
	logTags := c.GetLogTagsForContext(ctxt)

	settings, err := c.Settings(ctxt)
	if err != nil {
		return PathConfig{}, err
	}
	if !settings.Configured {
		return PathConfig{}, NewCondition(
			http.StatusBadRequest, "media service integration is not configured",
		)
	}

	requestURL, err := controlEndpoint(
		settings, fmt.Sprintf("/v3/config/paths/get/%s", pathID),
	)
	if err != nil {
		return PathConfig{}, NewConditionWithCause(
			http.StatusInternalServerError, "invalid media service URL", err,
		)
	}

	resp, err := c.controlRequest(settings).
		SetResult(&PathConfig{}).
		Get(requestURL.String())
	if err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			WithField("path", pathID).
			Error("Media server path fetch failed on call")
		return PathConfig{}, NewConditionWithCause(
			http.StatusInternalServerError, "media server unreachable", err,
		)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return PathConfig{}, NewCondition(http.StatusNotFound, "path not found")
	}
	if !resp.IsSuccess() {
		return PathConfig{}, NewCondition(http.StatusInternalServerError, string(resp.Body()))
	}

	config, ok := resp.Result().(*PathConfig)
	if !ok {
		return PathConfig{}, NewCondition(
			http.StatusInternalServerError, "failed to parse media server path config",
		)
	}
	return *config, nil
}

func (c *videoControllerImpl) Delete(ctxt context.Context, leaseID string) error {
	logTags := c.GetLogTagsForContext(ctxt)

	settings, err := c.Settings(ctxt)
	if err != nil {
		return err
	}
	if !settings.Configured {
		return NewCondition(
			http.StatusBadRequest, "media service integration is not configured",
		)
	}

	lease, err := c.db.GetVideoLease(ctxt, leaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewCondition(http.StatusNotFound, "lease not found")
		}
		return NewConditionWithCause(
			http.StatusInternalServerError, "lease lookup failed", err,
		)
	}

	if err := c.db.DeleteVideoLease(ctxt, leaseID); err != nil {
		return NewConditionWithCause(
			http.StatusInternalServerError, "lease delete failed", err,
		)
	}

	// Best effort. The lease record is already gone; the path delete result is
	// not checked.
	requestURL, err := controlEndpoint(
		settings, fmt.Sprintf("/v3/config/paths/delete/%s", lease.Path),
	)
	if err == nil {
		if _, err := c.controlRequest(settings).Delete(requestURL.String()); err != nil {
			log.
				WithError(err).
				WithFields(logTags).
				WithField("path", lease.Path).
				Warn("Media server path delete failed; leaving stranded path")
		}
	}

	log.
		WithFields(logTags).
		WithField("id", leaseID).
		WithField("path", lease.Path).
		Info("Deleted video lease")
	c.recordLeaseOp("delete")
	return nil
}
