package tak_test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/alwitt/takbridge/tak"
	"github.com/apex/log"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func TestMartiPackageSearch(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	testClient := resty.New()
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()

	baseURL, err := url.Parse("https://tak-server.testing.dev:8443")
	assert.Nil(err)
	uut, err := tak.NewRestMartiClient(utCtxt, baseURL, "X-Request-ID", testClient)
	assert.Nil(err)

	// Case 0: search with keyword filter
	keyword := uuid.NewString()
	httpmock.RegisterResponder(
		"GET",
		"https://tak-server.testing.dev:8443/Marti/sync/search",
		func(r *http.Request) (*http.Response, error) {
			assert.Equal(keyword, r.URL.Query().Get("keywords"))
			assert.NotEmpty(r.Header.Get("X-Request-ID"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"resultCount": 1,
				"results": []map[string]interface{}{{
					"UID":  "pkg-uid-1",
					"Name": "overlay.zip",
					"Hash": "abcd1234",
					"Tool": "public",
				}},
			})
		},
	)
	{
		entries, err := uut.SearchPackages(utCtxt, &keyword, nil)
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.Equal("pkg-uid-1", entries[0].UID)
		assert.Equal("overlay.zip", entries[0].Name)
	}

	// Case 1: server side failure
	httpmock.RegisterResponder(
		"GET",
		"https://tak-server.testing.dev:8443/Marti/sync/search",
		httpmock.NewStringResponder(http.StatusInternalServerError, "upstream exploded"),
	)
	{
		_, err := uut.SearchPackages(utCtxt, nil, nil)
		assert.NotNil(err)
	}
}

func TestMartiMissionLogListing(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	testClient := resty.New()
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()

	baseURL, err := url.Parse("https://tak-server.testing.dev:8443")
	assert.Nil(err)
	uut, err := tak.NewRestMartiClient(utCtxt, baseURL, "X-Request-ID", testClient)
	assert.Nil(err)

	mission := fmt.Sprintf("mission-%s", uuid.NewString())
	token := uuid.NewString()

	httpmock.RegisterResponder(
		"GET",
		fmt.Sprintf("https://tak-server.testing.dev:8443/Marti/api/missions/%s/log", mission),
		func(r *http.Request) (*http.Response, error) {
			assert.Equal(fmt.Sprintf("Bearer %s", token), r.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"version": "3",
				"type":    "com.bbn.marti.sync.model.LogEntry",
				"data": []map[string]interface{}{{
					"id":           "log-1",
					"content":      "checkpoint reached",
					"creatorUid":   "ANDROID-CloudTAK-operator@example.com",
					"missionNames": []string{mission},
				}},
				"nodeId": "node-1",
			})
		},
	)

	entries, err := uut.ListMissionLogs(utCtxt, mission, &token)
	assert.Nil(err)
	assert.Len(entries, 1)
	assert.Equal("log-1", entries[0].ID)
	assert.Equal("checkpoint reached", entries[0].Content)
	assert.Contains(entries[0].MissionNames, mission)
}
