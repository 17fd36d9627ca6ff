package api

import (
	"encoding/json"
	"net/http"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/alwitt/takbridge/media"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// MediaAdminHandler REST API interface for media service administration
type MediaAdminHandler struct {
	goutils.RestAPIHandler
	validate   *validator.Validate
	db         db.PersistenceManager
	controller media.Controller
}

/*
NewMediaAdminHandler define a new media administration REST API handler

	@param dbClient db.PersistenceManager - data access layer
	@param controller media.Controller - video lease controller
	@param logConfig common.HTTPRequestLogging - handler log settings
	@param metrics goutils.HTTPRequestMetricHelper - metric collection agent
	@returns new MediaAdminHandler
*/
func NewMediaAdminHandler(
	dbClient db.PersistenceManager,
	controller media.Controller,
	logConfig common.HTTPRequestLogging,
	metrics goutils.HTTPRequestMetricHelper,
) (MediaAdminHandler, error) {
	return MediaAdminHandler{
		RestAPIHandler: goutils.RestAPIHandler{
			Component: goutils.Component{
				LogTags: log.Fields{"module": "api", "component": "media-admin-handler"},
				LogTagModifiers: []goutils.LogMetadataModifier{
					goutils.ModifyLogMetadataByRestRequestParam,
				},
			},
			CallRequestIDHeaderField: &logConfig.RequestIDHeader,
			DoNotLogHeaders: func() map[string]bool {
				result := map[string]bool{}
				for _, v := range logConfig.DoNotLogHeaders {
					result[v] = true
				}
				return result
			}(),
			LogLevel:      logConfig.LogLevel,
			MetricsHelper: metrics,
		}, validate: validator.New(), db: dbClient, controller: controller,
	}, nil
}

// requireAdmin read the caller identity and verify the admin role
func (h MediaAdminHandler) requireAdmin(r *http.Request) (callerIdentity, int, string) {
	caller, err := getCallerIdentity(r)
	if err != nil {
		return callerIdentity{}, http.StatusUnauthorized, "unauthorized"
	}
	if !caller.Admin {
		return callerIdentity{}, http.StatusForbidden, "admin role required"
	}
	return caller, http.StatusOK, ""
}

// ====================================================================================
// Media service configuration

// MediaSettingsRequest media service integration parameters
type MediaSettingsRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// MediaConfigurationResponse response containing the media service state
type MediaConfigurationResponse struct {
	goutils.RestAPIBaseResponse
	// Configuration media service state snapshot
	Configuration media.Configuration `json:"configuration"`
}

// MediaPathResponse response containing one media server path config
type MediaPathResponse struct {
	goutils.RestAPIBaseResponse
	// Path the media server path config
	Path media.PathConfig `json:"path"`
}

// GetMediaConfiguration godoc
// @Summary Fetch the media service state
// @Description Fetch the media server global config and path list. Admin only.
// @tags media,admin
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Success 200 {object} MediaConfigurationResponse "success"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/media/configuration [get]
func (h MediaAdminHandler) GetMediaConfiguration(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	if _, status, msg := h.requireAdmin(r); status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	config, err := h.controller.Configuration(r.Context())
	if err != nil {
		msg := "failed to fetch media service configuration"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = conditionStatus(err)
		response = h.GetStdRESTErrorMsg(r.Context(), respCode, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = MediaConfigurationResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Configuration: config,
	}
}

// GetMediaConfigurationHandler Wrapper around GetMediaConfiguration
func (h MediaAdminHandler) GetMediaConfigurationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetMediaConfiguration(w, r)
	}
}

// ------------------------------------------------------------------------------------

// PatchMediaConfiguration godoc
// @Summary Patch the media server global config
// @Description Apply a partial media server global config patch and return
// the refreshed state. Admin only.
// @tags media,admin
// @Accept json
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param param body object true "Config fields to change"
// @Success 200 {object} MediaConfigurationResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/media/configuration [patch]
func (h MediaAdminHandler) PatchMediaConfiguration(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	if _, status, msg := h.requireAdmin(r); status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	if r.Body == nil {
		msg := "no payload provided to patch media configuration"
		log.WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		msg := "unable to parse media configuration patch from request"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.WithError(err).WithFields(logTags).Error("Request body close error")
		}
	}()

	config, err := h.controller.Configure(r.Context(), patch)
	if err != nil {
		msg := "failed to patch media server config"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = conditionStatus(err)
		response = h.GetStdRESTErrorMsg(r.Context(), respCode, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = MediaConfigurationResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Configuration: config,
	}
}

// PatchMediaConfigurationHandler Wrapper around PatchMediaConfiguration
func (h MediaAdminHandler) PatchMediaConfigurationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.PatchMediaConfiguration(w, r)
	}
}

// ------------------------------------------------------------------------------------

// SetMediaSettings godoc
// @Summary Store the media service integration parameters
// @Description Store the media service URL and control plane credentials in
// the settings store. Admin only.
// @tags media,admin
// @Accept json
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param param body MediaSettingsRequest true "Integration parameters"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/media/settings [put]
func (h MediaAdminHandler) SetMediaSettings(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	if _, status, msg := h.requireAdmin(r); status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	if r.Body == nil {
		msg := "no payload provided to store media settings"
		log.WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	var params MediaSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		msg := "unable to parse media settings from request"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.WithError(err).WithFields(logTags).Error("Request body close error")
		}
	}()

	if err := h.validate.Struct(&params); err != nil {
		msg := "missing required values to store media settings"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	for key, value := range map[string]string{
		media.SettingMediaURL:      params.URL,
		media.SettingMediaUsername: params.Username,
		media.SettingMediaPassword: params.Password,
	} {
		if err := h.db.SetSetting(r.Context(), key, value); err != nil {
			msg := "failed to store media settings"
			log.WithError(err).WithFields(logTags).Error(msg)
			respCode = http.StatusInternalServerError
			response = h.GetStdRESTErrorMsg(
				r.Context(), http.StatusInternalServerError, msg, err.Error(),
			)
			return
		}
	}

	respCode = http.StatusOK
	response = h.GetStdRESTSuccessMsg(r.Context())
}

// SetMediaSettingsHandler Wrapper around SetMediaSettings
func (h MediaAdminHandler) SetMediaSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.SetMediaSettings(w, r)
	}
}

// ------------------------------------------------------------------------------------

// GetMediaPath godoc
// @Summary Fetch one media server path config
// @Description Fetch the stored configuration of one media server path. Admin only.
// @tags media,admin
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param pathID path string true "Media server path name"
// @Success 200 {object} MediaPathResponse "success"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/media/path/{pathID} [get]
func (h MediaAdminHandler) GetMediaPath(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	if _, status, msg := h.requireAdmin(r); status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	pathID, ok := mux.Vars(r)["pathID"]
	if !ok {
		msg := "no path ID provided"
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	pathConfig, err := h.controller.Path(r.Context(), pathID)
	if err != nil {
		msg := "failed to fetch media server path"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = conditionStatus(err)
		response = h.GetStdRESTErrorMsg(r.Context(), respCode, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = MediaPathResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Path: pathConfig,
	}
}

// GetMediaPathHandler Wrapper around GetMediaPath
func (h MediaAdminHandler) GetMediaPathHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetMediaPath(w, r)
	}
}
