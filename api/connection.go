package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/alwitt/takbridge/tak"
	"github.com/apex/log"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// ConnectionHandler REST API interface to TAK identity resolution
type ConnectionHandler struct {
	goutils.RestAPIHandler
	db db.PersistenceManager
}

/*
NewConnectionHandler define a new connection REST API handler

	@param dbClient db.PersistenceManager - data access layer
	@param logConfig common.HTTPRequestLogging - handler log settings
	@param metrics goutils.HTTPRequestMetricHelper - metric collection agent
	@returns new ConnectionHandler
*/
func NewConnectionHandler(
	dbClient db.PersistenceManager,
	logConfig common.HTTPRequestLogging,
	metrics goutils.HTTPRequestMetricHelper,
) (ConnectionHandler, error) {
	return ConnectionHandler{
		RestAPIHandler: goutils.RestAPIHandler{
			Component: goutils.Component{
				LogTags: log.Fields{"module": "api", "component": "connection-handler"},
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
		}, db: dbClient,
	}, nil
}

// ====================================================================================
// Connection identity and subscriptions

// ConnectionInfo wire rendering of one machine connection identity
type ConnectionInfo struct {
	// ID connection entry ID
	ID int `json:"id"`
	// Name human readable connection name
	Name string `json:"name"`
	// Enabled whether the connection actively maintains a TAK server session
	Enabled bool `json:"enabled"`
	// UID the TAK identity string
	UID string `json:"uid"`
}

// ConnectionListResponse response containing a list of machine connections
type ConnectionListResponse struct {
	goutils.RestAPIBaseResponse
	// Connections the connection identities
	Connections []ConnectionInfo `json:"connections"`
}

// SubscriptionListResponse response containing mission subscriptions
type SubscriptionListResponse struct {
	goutils.RestAPIBaseResponse
	// Subscriptions the mission subscriptions
	Subscriptions []common.MissionSubscription `json:"subscriptions"`
}

// SubscriptionResponse response containing one mission subscription
type SubscriptionResponse struct {
	goutils.RestAPIBaseResponse
	// Subscription the mission subscription
	Subscription common.MissionSubscription `json:"subscription"`
}

// ListConnections godoc
// @Summary List machine connections
// @Description List the machine connections with their resolved TAK identity
// strings. Admin only.
// @tags connection,admin
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Success 200 {object} ConnectionListResponse "success"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/connection [get]
func (h ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	caller, err := getCallerIdentity(r)
	if err != nil || !caller.Admin {
		respCode = http.StatusForbidden
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusForbidden, "admin role required", "admin role required",
		)
		return
	}

	entries, err := h.db.ListConnections(r.Context())
	if err != nil {
		msg := "failed to list connections"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusInternalServerError
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	infos := make([]ConnectionInfo, len(entries))
	for idx, entry := range entries {
		resolved := tak.NewMachineConnection(h.db, entry)
		infos[idx] = ConnectionInfo{
			ID: entry.ID, Name: entry.Name, Enabled: entry.Enabled, UID: resolved.UID(),
		}
	}

	respCode = http.StatusOK
	response = ConnectionListResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Connections: infos,
	}
}

// ListConnectionsHandler Wrapper around ListConnections
func (h ConnectionHandler) ListConnectionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ListConnections(w, r)
	}
}

// ------------------------------------------------------------------------------------

// resolveConnection load a connection record and build its identity
func (h ConnectionHandler) resolveConnection(
	r *http.Request,
) (tak.ConnectionConfig, int, string) {
	connectionID, err := strconv.Atoi(mux.Vars(r)["connectionID"])
	if err != nil {
		return nil, http.StatusBadRequest, "connection ID must be numeric"
	}
	record, err := h.db.GetConnection(r.Context(), connectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, http.StatusNotFound, "connection not found"
		}
		return nil, http.StatusInternalServerError, "connection lookup failed"
	}
	return tak.NewMachineConnection(h.db, record), http.StatusOK, ""
}

// ListConnectionSubscriptions godoc
// @Summary List a connection's mission subscriptions
// @Description List the mission subscriptions of one machine connection. Admin only.
// @tags connection,admin
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param connectionID path int true "Connection ID"
// @Success 200 {object} SubscriptionListResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/connection/{connectionID}/subscription [get]
func (h ConnectionHandler) ListConnectionSubscriptions(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	caller, err := getCallerIdentity(r)
	if err != nil || !caller.Admin {
		respCode = http.StatusForbidden
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusForbidden, "admin role required", "admin role required",
		)
		return
	}

	resolved, status, msg := h.resolveConnection(r)
	if status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	subscriptions, err := resolved.Subscriptions(r.Context())
	if err != nil {
		msg := "failed to list connection subscriptions"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusInternalServerError
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = SubscriptionListResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Subscriptions: subscriptions,
	}
}

// ListConnectionSubscriptionsHandler Wrapper around ListConnectionSubscriptions
func (h ConnectionHandler) ListConnectionSubscriptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ListConnectionSubscriptions(w, r)
	}
}

// ------------------------------------------------------------------------------------

// GetConnectionSubscription godoc
// @Summary Fetch a connection's subscription to one mission
// @Description Fetch the mission subscription of one machine connection by
// exact mission name. Admin only.
// @tags connection,admin
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param connectionID path int true "Connection ID"
// @Param mission path string true "Mission name"
// @Success 200 {object} SubscriptionResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 403 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/connection/{connectionID}/subscription/{mission} [get]
func (h ConnectionHandler) GetConnectionSubscription(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	caller, err := getCallerIdentity(r)
	if err != nil || !caller.Admin {
		respCode = http.StatusForbidden
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusForbidden, "admin role required", "admin role required",
		)
		return
	}

	resolved, status, msg := h.resolveConnection(r)
	if status != http.StatusOK {
		respCode = status
		response = h.GetStdRESTErrorMsg(r.Context(), status, msg, msg)
		return
	}

	mission := mux.Vars(r)["mission"]
	subscription, err := resolved.Subscription(r.Context(), mission)
	if err != nil {
		msg := "failed to look up connection subscription"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusInternalServerError
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}
	if subscription == nil {
		msg := "no subscription for mission"
		respCode = http.StatusNotFound
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusNotFound, msg, msg)
		return
	}

	respCode = http.StatusOK
	response = SubscriptionResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Subscription: *subscription,
	}
}

// GetConnectionSubscriptionHandler Wrapper around GetConnectionSubscription
func (h ConnectionHandler) GetConnectionSubscriptionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetConnectionSubscription(w, r)
	}
}

// ------------------------------------------------------------------------------------

// ListProfileSubscriptions godoc
// @Summary List the caller's mission subscriptions
// @Description List the mission subscriptions of the calling user's profile.
// @tags connection
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Success 200 {object} SubscriptionListResponse "success"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/profile/subscription [get]
func (h ConnectionHandler) ListProfileSubscriptions(w http.ResponseWriter, r *http.Request) {
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

	resolved := tak.NewProfileConnection(h.db, caller.Username, "", "")
	subscriptions, err := resolved.Subscriptions(r.Context())
	if err != nil {
		msg := "failed to list profile subscriptions"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusInternalServerError
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = SubscriptionListResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Subscriptions: subscriptions,
	}
}

// ListProfileSubscriptionsHandler Wrapper around ListProfileSubscriptions
func (h ConnectionHandler) ListProfileSubscriptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ListProfileSubscriptions(w, r)
	}
}
