package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/alwitt/takbridge/media"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// maxLeaseDurationSecs longest lease a non-admin caller may request: 16 hours
const maxLeaseDurationSecs = int64(57600)

// conditionStatus map a controller failure to a response status
func conditionStatus(err error) int {
	var condition media.Condition
	if errors.As(err, &condition) {
		return condition.Status
	}
	return http.StatusInternalServerError
}

// VideoLeaseHandler REST API interface to the video lease controller
type VideoLeaseHandler struct {
	goutils.RestAPIHandler
	validate   *validator.Validate
	db         db.PersistenceManager
	controller media.Controller
}

/*
NewVideoLeaseHandler define a new video lease REST API handler

	@param dbClient db.PersistenceManager - data access layer
	@param controller media.Controller - video lease controller
	@param logConfig common.HTTPRequestLogging - handler log settings
	@param metrics goutils.HTTPRequestMetricHelper - metric collection agent
	@returns new VideoLeaseHandler
*/
func NewVideoLeaseHandler(
	dbClient db.PersistenceManager,
	controller media.Controller,
	logConfig common.HTTPRequestLogging,
	metrics goutils.HTTPRequestMetricHelper,
) (VideoLeaseHandler, error) {
	return VideoLeaseHandler{
		RestAPIHandler: goutils.RestAPIHandler{
			Component: goutils.Component{
				LogTags: log.Fields{"module": "api", "component": "video-lease-handler"},
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

// ====================================================================================
// Video Lease CRUD

// NewVideoLeaseRequest parameters to define a new video lease
type NewVideoLeaseRequest struct {
	Name       string  `json:"name" validate:"required"`
	Ephemeral  bool    `json:"ephemeral"`
	Duration   int64   `json:"duration" validate:"required,gt=0"`
	Path       string  `json:"path,omitempty"`
	Proxy      *string `json:"proxy,omitempty"`
	StreamUser *string `json:"stream_user,omitempty"`
	StreamPass *string `json:"stream_pass,omitempty"`
}

// UpdateVideoLeaseRequest parameters to update a video lease
type UpdateVideoLeaseRequest struct {
	Name     *string `json:"name,omitempty"`
	Duration *int64  `json:"duration,omitempty" validate:"omitempty,gt=0"`
}

// VideoLeaseResponse response containing one video lease
type VideoLeaseResponse struct {
	goutils.RestAPIBaseResponse
	// Lease the video lease
	Lease common.VideoLease `json:"lease"`
	// Protocols per protocol stream connection URLs
	Protocols map[string]string `json:"protocols,omitempty"`
}

// VideoLeaseListResponse response containing a list of video leases
type VideoLeaseListResponse struct {
	goutils.RestAPIBaseResponse
	// Leases the video leases
	Leases []common.VideoLease `json:"leases"`
}

// ListVideoLeases godoc
// @Summary List video leases
// @Description List video leases. Non-admin callers only see their own. Admin
// callers may request all leases with `all=true`. Ephemeral leases appear only
// when `ephemeral=true`.
// @tags media
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param all query string false "List all users' leases (admin only)"
// @Param ephemeral query string false "Include ephemeral leases"
// @Success 200 {object} VideoLeaseListResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/lease [get]
func (h VideoLeaseHandler) ListVideoLeases(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	caller, err := getCallerIdentity(r)
	if err != nil {
		respCode = http.StatusUnauthorized
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusUnauthorized, "unauthorized", err.Error(),
		)
		return
	}

	username := &caller.Username
	if caller.Admin && r.URL.Query().Get("all") == "true" {
		username = nil
	}
	includeEphemeral := r.URL.Query().Get("ephemeral") == "true"

	entries, err := h.db.ListVideoLeases(r.Context(), username, includeEphemeral)
	if err != nil {
		msg := "failed to list video leases"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusInternalServerError
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = VideoLeaseListResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Leases: entries,
	}
}

// ListVideoLeasesHandler Wrapper around ListVideoLeases
func (h VideoLeaseHandler) ListVideoLeasesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ListVideoLeases(w, r)
	}
}

// ------------------------------------------------------------------------------------

// loadGuardedLease fetch a lease and verify the caller may act on it
func (h VideoLeaseHandler) loadGuardedLease(
	r *http.Request, caller callerIdentity,
) (common.VideoLease, int, string) {
	leaseID, ok := mux.Vars(r)["leaseID"]
	if !ok {
		return common.VideoLease{}, http.StatusBadRequest, "no lease ID provided"
	}
	lease, err := h.db.GetVideoLease(r.Context(), leaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.VideoLease{}, http.StatusNotFound, "lease not found"
		}
		return common.VideoLease{}, http.StatusInternalServerError, "lease lookup failed"
	}
	if !caller.Admin && lease.Username != caller.Username {
		return common.VideoLease{}, http.StatusForbidden, "lease belongs to another user"
	}
	return lease, http.StatusOK, ""
}

// GetVideoLease godoc
// @Summary Fetch one video lease
// @Description Fetch one video lease along with its per protocol stream
// connection URLs. Non-admin callers may only fetch their own leases.
// @tags media
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param leaseID path string true "Lease ID"
// @Success 200 {object} VideoLeaseResponse "success"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/lease/{leaseID} [get]
func (h VideoLeaseHandler) GetVideoLease(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	caller, err := getCallerIdentity(r)
	if err != nil {
		respCode = http.StatusUnauthorized
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusUnauthorized, "unauthorized", err.Error(),
		)
		return
	}

	lease, status, msg := h.loadGuardedLease(r, caller)
	if status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	protocols, err := h.controller.Protocols(r.Context(), lease)
	if err != nil {
		msg := "failed to derive lease protocol URLs"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = conditionStatus(err)
		response = h.GetStdRESTErrorMsg(r.Context(), respCode, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = VideoLeaseResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()),
		Lease:               lease,
		Protocols:           protocols,
	}
}

// GetVideoLeaseHandler Wrapper around GetVideoLease
func (h VideoLeaseHandler) GetVideoLeaseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetVideoLease(w, r)
	}
}

// ------------------------------------------------------------------------------------

// CreateVideoLease godoc
// @Summary Create a new video lease
// @Description Create a new video lease and the matching media server path.
// Non-admin callers may not request a duration beyond 16 hours.
// @tags media
// @Accept json
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param param body NewVideoLeaseRequest true "Video lease parameters"
// @Success 200 {object} VideoLeaseResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/lease [post]
func (h VideoLeaseHandler) CreateVideoLease(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	caller, err := getCallerIdentity(r)
	if err != nil {
		respCode = http.StatusUnauthorized
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusUnauthorized, "unauthorized", err.Error(),
		)
		return
	}

	if r.Body == nil {
		msg := "no payload provided to create video lease"
		log.WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	// Parse the create parameters
	var params NewVideoLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		msg := "unable to parse video lease parameters from request"
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

	// Validate parameters
	if err := h.validate.Struct(&params); err != nil {
		msg := "missing required values to create video lease"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	// The duration ceiling applies before anything is persisted
	if !caller.Admin && params.Duration > maxLeaseDurationSecs {
		msg := "lease duration exceeds the 16 hour limit"
		log.WithFields(logTags).WithField("duration", params.Duration).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	lease, err := h.controller.Generate(r.Context(), media.GenerateParams{
		Name:       params.Name,
		Ephemeral:  params.Ephemeral,
		Expiration: time.Now().UTC().Add(time.Second * time.Duration(params.Duration)),
		Path:       params.Path,
		Username:   caller.Username,
		Proxy:      params.Proxy,
		StreamUser: params.StreamUser,
		StreamPass: params.StreamPass,
	})
	if err != nil {
		msg := "failed to create video lease"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = conditionStatus(err)
		response = h.GetStdRESTErrorMsg(r.Context(), respCode, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = VideoLeaseResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Lease: lease,
	}
}

// CreateVideoLeaseHandler Wrapper around CreateVideoLease
func (h VideoLeaseHandler) CreateVideoLeaseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.CreateVideoLease(w, r)
	}
}

// ------------------------------------------------------------------------------------

// UpdateVideoLease godoc
// @Summary Update a video lease
// @Description Update the name or duration of a video lease. Path and proxy
// are immutable. Non-admin callers may only update their own leases, and may
// not extend beyond 16 hours.
// @tags media
// @Accept json
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param leaseID path string true "Lease ID"
// @Param param body UpdateVideoLeaseRequest true "Fields to update"
// @Success 200 {object} VideoLeaseResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/lease/{leaseID} [patch]
func (h VideoLeaseHandler) UpdateVideoLease(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	caller, err := getCallerIdentity(r)
	if err != nil {
		respCode = http.StatusUnauthorized
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusUnauthorized, "unauthorized", err.Error(),
		)
		return
	}

	lease, status, msg := h.loadGuardedLease(r, caller)
	if status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	if r.Body == nil {
		msg := "no payload provided to update video lease"
		log.WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	var params UpdateVideoLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		msg := "unable to parse video lease update from request"
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
		msg := "invalid video lease update parameters"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusBadRequest
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	var newExpiration *time.Time
	if params.Duration != nil {
		if !caller.Admin && *params.Duration > maxLeaseDurationSecs {
			msg := "lease duration exceeds the 16 hour limit"
			log.WithFields(logTags).WithField("duration", *params.Duration).Error(msg)
			respCode = http.StatusBadRequest
			response = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
			return
		}
		expiresAt := time.Now().UTC().Add(time.Second * time.Duration(*params.Duration))
		newExpiration = &expiresAt
	}

	updated, err := h.controller.Commit(r.Context(), lease.ID, params.Name, newExpiration)
	if err != nil {
		msg := "failed to update video lease"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = conditionStatus(err)
		response = h.GetStdRESTErrorMsg(r.Context(), respCode, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = VideoLeaseResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Lease: updated,
	}
}

// UpdateVideoLeaseHandler Wrapper around UpdateVideoLease
func (h VideoLeaseHandler) UpdateVideoLeaseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.UpdateVideoLease(w, r)
	}
}

// ------------------------------------------------------------------------------------

// DeleteVideoLease godoc
// @Summary Delete a video lease
// @Description Delete a video lease and best-effort remove the matching media
// server path. Non-admin callers may only delete their own leases.
// @tags media
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param leaseID path string true "Lease ID"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/lease/{leaseID} [delete]
func (h VideoLeaseHandler) DeleteVideoLease(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	caller, err := getCallerIdentity(r)
	if err != nil {
		respCode = http.StatusUnauthorized
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusUnauthorized, "unauthorized", err.Error(),
		)
		return
	}

	lease, status, msg := h.loadGuardedLease(r, caller)
	if status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	if err := h.controller.Delete(r.Context(), lease.ID); err != nil {
		msg := "failed to delete video lease"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = conditionStatus(err)
		response = h.GetStdRESTErrorMsg(r.Context(), respCode, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = h.GetStdRESTSuccessMsg(r.Context())
}

// DeleteVideoLeaseHandler Wrapper around DeleteVideoLease
func (h VideoLeaseHandler) DeleteVideoLeaseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.DeleteVideoLease(w, r)
	}
}
