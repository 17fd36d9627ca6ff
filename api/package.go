package api

import (
	"net/http"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/tak"
	"github.com/alwitt/takbridge/utils"
	"github.com/apex/log"
	"github.com/gorilla/mux"
)

// PackageHandler REST API interface to mission package search and content
type PackageHandler struct {
	goutils.RestAPIHandler
	marti tak.MartiClient
	store utils.PackageStore
}

/*
NewPackageHandler define a new mission package REST API handler

	@param marti tak.MartiClient - TAK server Marti API client
	@param store utils.PackageStore - package payload store
	@param logConfig common.HTTPRequestLogging - handler log settings
	@param metrics goutils.HTTPRequestMetricHelper - metric collection agent
	@returns new PackageHandler
*/
func NewPackageHandler(
	marti tak.MartiClient,
	store utils.PackageStore,
	logConfig common.HTTPRequestLogging,
	metrics goutils.HTTPRequestMetricHelper,
) (PackageHandler, error) {
	return PackageHandler{
		RestAPIHandler: goutils.RestAPIHandler{
			Component: goutils.Component{
				LogTags: log.Fields{"module": "api", "component": "package-handler"},
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
		}, marti: marti, store: store,
	}, nil
}

// PackageListResponse response containing mission packages
type PackageListResponse struct {
	goutils.RestAPIBaseResponse
	// Packages the matching mission packages
	Packages []tak.Package `json:"packages"`
}

// SearchPackages godoc
// @Summary Search mission packages
// @Description Search mission packages on the TAK server.
// @tags package
// @Produce json
// @Param X-Request-ID header string false "Request ID"
// @Param keywords query string false "Keyword filter"
// @Param tool query string false "Tool filter"
// @Success 200 {object} PackageListResponse "success"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/package [get]
func (h PackageHandler) SearchPackages(w http.ResponseWriter, r *http.Request) {
	var respCode int
	var response interface{}
	logTags := h.GetLogTagsForContext(r.Context())
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, response, nil); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to form response")
		}
	}()

	if _, err := getCallerIdentity(r); err != nil {
		respCode = http.StatusUnauthorized
		response = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusUnauthorized, "unauthorized", err.Error(),
		)
		return
	}

	var keywords, tool *string
	if value := r.URL.Query().Get("keywords"); value != "" {
		keywords = &value
	}
	if value := r.URL.Query().Get("tool"); value != "" {
		tool = &value
	}

	packages, err := h.marti.SearchPackages(r.Context(), keywords, tool)
	if err != nil {
		msg := "mission package search failed"
		log.WithError(err).WithFields(logTags).Error(msg)
		respCode = http.StatusInternalServerError
		response = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	response = PackageListResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Packages: packages,
	}
}

// SearchPackagesHandler Wrapper around SearchPackages
func (h PackageHandler) SearchPackagesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.SearchPackages(w, r)
	}
}

// ------------------------------------------------------------------------------------

// GetPackageContent godoc
// @Summary Fetch a mission package payload
// @Description Fetch a stored mission package payload by content hash.
// @tags package
// @Produce application/zip
// @Param X-Request-ID header string false "Request ID"
// @Param hash path string true "Package content hash"
// @Success 200 {string} binary "package payload"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {string} string "error"
// @Failure 500 {string} string "error"
// @Router /v1/package/{hash}/content [get]
func (h PackageHandler) GetPackageContent(w http.ResponseWriter, r *http.Request) {
	logTags := h.GetLogTagsForContext(r.Context())

	if _, err := getCallerIdentity(r); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	hash, ok := mux.Vars(r)["hash"]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	content, err := h.store.GetPackage(r.Context(), hash)
	if err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			WithField("hash", hash).
			Error("Mission package payload fetch failed")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to send package payload")
	}
}

// GetPackageContentHandler Wrapper around GetPackageContent
func (h PackageHandler) GetPackageContentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetPackageContent(w, r)
	}
}
