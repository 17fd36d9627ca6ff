package api

import (
	"net/http"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/apex/log"
)

// HealthCheckHandler REST API interface for liveness and readiness probes
type HealthCheckHandler struct {
	goutils.RestAPIHandler
	db db.PersistenceManager
}

/*
NewHealthCheckHandler define a new health check REST API handler

	@param dbClient db.PersistenceManager - data access layer
	@param logConfig common.HTTPRequestLogging - handler log settings
	@returns new HealthCheckHandler
*/
func NewHealthCheckHandler(
	dbClient db.PersistenceManager, logConfig common.HTTPRequestLogging,
) (HealthCheckHandler, error) {
	return HealthCheckHandler{
		RestAPIHandler: goutils.RestAPIHandler{
			Component: goutils.Component{
				LogTags: log.Fields{"module": "api", "component": "health-check-handler"},
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
			LogLevel: logConfig.HealthLogLevel,
		}, db: dbClient,
	}, nil
}

// Alive godoc
// @Summary Liveness check
// @Description Will return success to indicate the process is still running
// @tags util
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/alive [get]
func (h HealthCheckHandler) Alive(w http.ResponseWriter, r *http.Request) {
	logTags := h.GetLogTagsForContext(r.Context())
	if err := h.WriteRESTResponse(
		w, http.StatusOK, h.GetStdRESTSuccessMsg(r.Context()), nil,
	); err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to form response")
	}
}

// AliveHandler Wrapper around Alive
func (h HealthCheckHandler) AliveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Alive(w, r)
	}
}

// Ready godoc
// @Summary Readiness check
// @Description Will return success if the node is ready to serve requests
// @tags util
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/ready [get]
func (h HealthCheckHandler) Ready(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	if err := h.db.Ready(r.Context()); err != nil {
		msg := "not ready"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusInternalServerError
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = h.GetStdRESTSuccessMsg(r.Context())
}

// ReadyHandler Wrapper around Ready
func (h HealthCheckHandler) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Ready(w, r)
	}
}
