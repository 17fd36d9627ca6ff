package tak

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
)

// Package one mission package known to the TAK server
type Package struct {
	UID                string `json:"UID"`
	Name               string `json:"Name"`
	Hash               string `json:"Hash"`
	PrimaryKey         string `json:"PrimaryKey"`
	SubmissionUser     string `json:"SubmissionUser"`
	SubmissionDateTime string `json:"SubmissionDateTime"`
	CreatorUID         string `json:"CreatorUid"`
	Keywords           string `json:"Keywords"`
	MIMEType           string `json:"MIMEType"`
	Size               string `json:"Size"`
	Tool               string `json:"Tool"`
}

// packageSearchResponse TAK server package search response
type packageSearchResponse struct {
	ResultCount int       `json:"resultCount"`
	Results     []Package `json:"results"`
}

// MissionLog one log entry recorded against a TAK mission
type MissionLog struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	CreatorUID   string    `json:"creatorUid"`
	MissionNames []string  `json:"missionNames"`
	ServerTime   time.Time `json:"servertime"`
	Created      time.Time `json:"created"`
	Keywords     []string  `json:"keywords"`
}

// missionLogListResponse TAK server mission log listing response
type missionLogListResponse struct {
	Version string       `json:"version"`
	Type    string       `json:"type"`
	Data    []MissionLog `json:"data"`
	NodeID  string       `json:"nodeId"`
}

// MartiClient client for the TAK server Marti REST API
type MartiClient interface {
	/*
		SearchPackages search mission packages on the TAK server

			@param ctxt context.Context - execution context
			@param keywords *string - optionally, keyword filter
			@param tool *string - optionally, tool filter
			@returns matching packages
	*/
	SearchPackages(ctxt context.Context, keywords, tool *string) ([]Package, error)

	/*
		ListMissionLogs list the log entries of one TAK mission

			@param ctxt context.Context - execution context
			@param mission string - TAK mission name
			@param token *string - optionally, mission subscription token
			@returns mission log entries
	*/
	ListMissionLogs(ctxt context.Context, mission string, token *string) ([]MissionLog, error)
}

// restMartiClientImpl implements MartiClient
type restMartiClientImpl struct {
	goutils.Component
	baseURI         *url.URL
	requestIDHeader string
	client          *resty.Client
}

/*
NewRestMartiClient define a new TAK server Marti REST API client

	@param ctxt context.Context - execution context
	@param baseURI *url.URL - TAK server API base URL
	@param requestIDHeader string - HTTP header to set for the request ID
	@param httpClient *resty.Client - HTTP client to use
	@return new client
*/
func NewRestMartiClient(
	ctxt context.Context, baseURI *url.URL, requestIDHeader string, httpClient *resty.Client,
) (MartiClient, error) {
	logTags := log.Fields{
		"module": "tak", "component": "marti-rest-client", "instance": baseURI.String(),
	}

	return &restMartiClientImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		baseURI:         baseURI,
		requestIDHeader: requestIDHeader,
		client:          httpClient,
	}, nil
}

func (c *restMartiClientImpl) SearchPackages(
	ctxt context.Context, keywords, tool *string,
) ([]Package, error) {
	logTags := c.GetLogTagsForContext(ctxt)

	reqID := ulid.Make().String()

	requestURL := c.baseURI.JoinPath("/Marti/sync/search")
	request := c.client.R().
		// Set request ID
		SetHeader(c.requestIDHeader, reqID).
		// Set response payload
		SetResult(&packageSearchResponse{})
	if keywords != nil {
		request = request.SetQueryParam("keywords", *keywords)
	}
	if tool != nil {
		request = request.SetQueryParam("tool", *tool)
	}
	resp, err := request.Get(requestURL.String())

	if err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			Error("Package search request failed on call")
		return nil, err
	}

	if !resp.IsSuccess() {
		err := fmt.Errorf("status code %d", resp.StatusCode())
		log.
			WithError(err).
			WithFields(logTags).
			WithField("outbound-request-id", reqID).
			Error("Package search failed")
		return nil, err
	}

	// Process the response
	searchResult, ok := resp.Result().(*packageSearchResponse)
	if !ok {
		rawResp := string(resp.Body())
		err := fmt.Errorf("failed to parse package search response")
		log.
			WithError(err).
			WithFields(logTags).
			WithField("outbound-request-id", reqID).
			WithField("response", rawResp).
			Error("Package search failed")
		return nil, err
	}

	return searchResult.Results, nil
}

func (c *restMartiClientImpl) ListMissionLogs(
	ctxt context.Context, mission string, token *string,
) ([]MissionLog, error) {
	logTags := c.GetLogTagsForContext(ctxt)

	reqID := ulid.Make().String()

	requestURL := c.baseURI.JoinPath(fmt.Sprintf("/Marti/api/missions/%s/log", mission))
	request := c.client.R().
		// Set request ID
		SetHeader(c.requestIDHeader, reqID).
		// Set response payload
		SetResult(&missionLogListResponse{})
	if token != nil {
		request = request.SetAuthToken(*token)
	}
	resp, err := request.Get(requestURL.String())

	if err != nil {
		log.
			WithError(err).
			WithFields(logTags).
			WithField("mission", mission).
			Error("Mission log listing request failed on call")
		return nil, err
	}

	if !resp.IsSuccess() {
		err := fmt.Errorf("status code %d", resp.StatusCode())
		log.
			WithError(err).
			WithFields(logTags).
			WithField("mission", mission).
			WithField("outbound-request-id", reqID).
			Error("Mission log listing failed")
		return nil, err
	}

	// Process the response
	logList, ok := resp.Result().(*missionLogListResponse)
	if !ok {
		rawResp := string(resp.Body())
		err := fmt.Errorf("failed to parse mission log listing response")
		log.
			WithError(err).
			WithFields(logTags).
			WithField("mission", mission).
			WithField("outbound-request-id", reqID).
			WithField("response", rawResp).
			Error("Mission log listing failed")
		return nil, err
	}

	return logList.Data, nil
}
