package media_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/alwitt/takbridge/media"
	"github.com/apex/log"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

const testMediaURL = "https://media.testing.dev"

func newTestController(t *testing.T) (media.Controller, db.PersistenceManager, *resty.Client) {
	assert := assert.New(t)

	testInstance := fmt.Sprintf("ut-%s", uuid.NewString())
	dbClient, err := db.NewManager(db.GetInMemSqliteDialector(testInstance), logger.Info)
	assert.Nil(err)

	testClient := resty.New()
	uut, err := media.NewController(context.Background(), dbClient, "X-Request-ID", testClient, nil)
	assert.Nil(err)

	return uut, dbClient, testClient
}

func installMediaSettings(t *testing.T, dbClient db.PersistenceManager) {
	assert := assert.New(t)
	utCtxt := context.Background()
	assert.Nil(dbClient.SetSetting(utCtxt, media.SettingMediaURL, testMediaURL))
	assert.Nil(dbClient.SetSetting(utCtxt, media.SettingMediaUsername, "management"))
	assert.Nil(dbClient.SetSetting(utCtxt, media.SettingMediaPassword, "super-secret"))
}

func registerGlobalConfig(config map[string]interface{}) {
	httpmock.RegisterResponder(
		"GET",
		testMediaURL+":9997/v3/config/global/get",
		func(r *http.Request) (*http.Response, error) {
			if user, pass, ok := r.BasicAuth(); !ok || user != "management" || pass != "super-secret" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, "bad credentials"), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, config)
		},
	)
	httpmock.RegisterResponder(
		"GET",
		testMediaURL+":9997/v3/paths/list",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"itemCount": 0, "pageCount": 0, "items": []interface{}{},
		}),
	)
}

func TestVideoControllerSettings(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, _ := newTestController(t)
	utCtxt := context.Background()

	// Case 0: nothing stored
	{
		settings, err := uut.Settings(utCtxt)
		assert.Nil(err)
		assert.False(settings.Configured)
	}

	// Case 1: partial settings are still unconfigured
	assert.Nil(dbClient.SetSetting(utCtxt, media.SettingMediaURL, testMediaURL))
	{
		settings, err := uut.Settings(utCtxt)
		assert.Nil(err)
		assert.False(settings.Configured)
	}

	// Case 2: all three present
	assert.Nil(dbClient.SetSetting(utCtxt, media.SettingMediaUsername, "management"))
	assert.Nil(dbClient.SetSetting(utCtxt, media.SettingMediaPassword, "super-secret"))
	{
		settings, err := uut.Settings(utCtxt)
		assert.Nil(err)
		assert.True(settings.Configured)
		assert.Equal(testMediaURL, settings.URL)
		assert.Equal("management", settings.Username)
	}
}

func TestVideoControllerConfiguration(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, testClient := newTestController(t)
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()

	// Case 0: unconfigured short-circuits without touching the media server
	{
		config, err := uut.Configuration(utCtxt)
		assert.Nil(err)
		assert.False(config.Configured)
		assert.Equal(0, httpmock.GetTotalCallCount())
	}

	installMediaSettings(t, dbClient)

	// Case 1: configured
	registerGlobalConfig(map[string]interface{}{
		"rtsp": true, "rtspAddress": ":8554", "hls": true, "hlsAddress": ":8888",
	})
	{
		config, err := uut.Configuration(utCtxt)
		assert.Nil(err)
		assert.True(config.Configured)
		assert.Equal(testMediaURL, config.URL)
		assert.NotNil(config.Config)
		assert.True(config.Config.RTSP)
		assert.Equal(":8554", config.Config.RTSPAddress)
		assert.Len(config.Paths, 0)
	}

	// Case 2: media server rejects the config fetch
	httpmock.RegisterResponder(
		"GET",
		testMediaURL+":9997/v3/config/global/get",
		httpmock.NewStringResponder(http.StatusBadGateway, "media server down"),
	)
	{
		_, err := uut.Configuration(utCtxt)
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusInternalServerError, condition.Status)
		assert.Contains(condition.Message, "media server down")
	}
}

func TestVideoControllerConfigure(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, testClient := newTestController(t)
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()

	// Case 0: unconfigured is a user facing failure
	{
		_, err := uut.Configure(utCtxt, map[string]interface{}{"hls": true})
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusBadRequest, condition.Status)
	}

	installMediaSettings(t, dbClient)

	// Case 1: patch applied, refreshed configuration returned
	httpmock.RegisterResponder(
		"PATCH",
		testMediaURL+":9997/v3/config/global/patch",
		httpmock.NewStringResponder(http.StatusOK, ""),
	)
	registerGlobalConfig(map[string]interface{}{"hls": true, "hlsAddress": ":8888"})
	{
		config, err := uut.Configure(utCtxt, map[string]interface{}{"hls": true})
		assert.Nil(err)
		assert.True(config.Configured)
		assert.True(config.Config.HLS)
	}

	// Case 2: media server rejects the patch
	httpmock.RegisterResponder(
		"PATCH",
		testMediaURL+":9997/v3/config/global/patch",
		httpmock.NewStringResponder(http.StatusBadRequest, "unknown config key"),
	)
	{
		_, err := uut.Configure(utCtxt, map[string]interface{}{"bogus": true})
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Contains(condition.Message, "unknown config key")
	}
}

func TestVideoControllerProtocols(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, testClient := newTestController(t)
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()

	lease := common.VideoLease{Path: "p1"}

	// Case 0: unconfigured yields an empty map, not an error
	{
		protocols, err := uut.Protocols(utCtxt, lease)
		assert.Nil(err)
		assert.Len(protocols, 0)
	}

	installMediaSettings(t, dbClient)

	// Case 1: only enabled protocols appear
	registerGlobalConfig(map[string]interface{}{
		"rtsp": true, "rtspAddress": ":8554",
		"rtmp": false, "rtmpAddress": ":1935",
		"hls": true, "hlsAddress": ":8888",
		"webrtc": false, "webrtcAddress": ":8889",
	})
	{
		protocols, err := uut.Protocols(utCtxt, lease)
		assert.Nil(err)
		assert.Len(protocols, 2)
		assert.Equal("rtsp://media.testing.dev:8554/p1", protocols[media.ProtocolRTSP])
		assert.Equal("https://media.testing.dev:8888/p1/index.m3u8", protocols[media.ProtocolHLS])
	}

	// Case 2: RTMP carries stream credentials when the lease has them
	registerGlobalConfig(map[string]interface{}{
		"rtmp": true, "rtmpAddress": "0.0.0.0:1935",
		"webrtc": true, "webrtcAddress": ":8889",
	})
	{
		streamUser := "publisher"
		streamPass := "letmein"
		withCreds := common.VideoLease{Path: "p1", StreamUser: &streamUser, StreamPass: &streamPass}
		protocols, err := uut.Protocols(utCtxt, withCreds)
		assert.Nil(err)
		assert.Len(protocols, 2)
		assert.Equal(
			"rtmp://media.testing.dev:1935/p1?pass=letmein&user=publisher",
			protocols[media.ProtocolRTMP],
		)
		assert.Equal("https://media.testing.dev:8889/p1", protocols[media.ProtocolWebRTC])
	}

	// Case 3: without credentials the RTMP URL has no query parameters
	{
		protocols, err := uut.Protocols(utCtxt, lease)
		assert.Nil(err)
		assert.Equal("rtmp://media.testing.dev:1935/p1", protocols[media.ProtocolRTMP])
	}
}

func TestVideoControllerGenerate(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, testClient := newTestController(t)
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()

	expiration := time.Now().UTC().Add(time.Hour)

	// Case 0: unconfigured fails before any persistence
	{
		_, err := uut.Generate(utCtxt, media.GenerateParams{
			Name: "cam1", Expiration: expiration, Path: "p1", Username: "user@example.com",
		})
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusBadRequest, condition.Status)
		entries, err := dbClient.ListVideoLeases(utCtxt, nil, true)
		assert.Nil(err)
		assert.Len(entries, 0)
	}

	installMediaSettings(t, dbClient)

	// Case 1: plain path, no proxy
	httpmock.RegisterResponder(
		"POST",
		testMediaURL+":9997/v3/config/paths/add/p1",
		func(r *http.Request) (*http.Response, error) {
			if _, _, ok := r.BasicAuth(); !ok {
				return httpmock.NewStringResponse(http.StatusUnauthorized, "bad credentials"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		},
	)
	lease1, err := uut.Generate(utCtxt, media.GenerateParams{
		Name: "cam1", Expiration: expiration, Path: "p1", Username: "user@example.com",
	})
	assert.Nil(err)
	assert.Equal("p1", lease1.Path)
	assert.Nil(lease1.Proxy)
	{
		entry, err := dbClient.GetVideoLease(utCtxt, lease1.ID)
		assert.Nil(err)
		assert.Equal("cam1", entry.Name)
		assert.Equal("p1", entry.Path)
		assert.False(entry.Ephemeral)
	}
	assert.Equal(
		1, httpmock.GetCallCountInfo()["POST "+testMediaURL+":9997/v3/config/paths/add/p1"],
	)

	// Case 2: empty path gets a random assignment
	httpmock.RegisterResponder(
		"POST",
		`=~^https://media\.testing\.dev:9997/v3/config/paths/add/.+`,
		httpmock.NewStringResponder(http.StatusOK, ""),
	)
	{
		lease, err := uut.Generate(utCtxt, media.GenerateParams{
			Name: "cam2", Expiration: expiration, Username: "user@example.com",
		})
		assert.Nil(err)
		assert.NotEmpty(lease.Path)
	}
}

func TestVideoControllerGenerateProxyValidation(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, testClient := newTestController(t)
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()
	installMediaSettings(t, dbClient)

	expiration := time.Now().UTC().Add(time.Hour)

	// Case 0: malformed proxy URL
	{
		proxy := "::not a url::"
		_, err := uut.Generate(utCtxt, media.GenerateParams{
			Name: "bad-proxy", Expiration: expiration, Path: uuid.NewString(),
			Username: "user@example.com", Proxy: &proxy,
		})
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusBadRequest, condition.Status)
		assert.Contains(condition.Message, "invalid proxy URL")
	}

	// Case 1: proxy probe 404. The lease record survives and no media server
	// path is created
	path1 := uuid.NewString()
	proxy404 := "https://upstream.testing.dev/missing/stream.m3u8"
	httpmock.RegisterResponder(
		"GET", proxy404, httpmock.NewStringResponder(http.StatusNotFound, "no such stream"),
	)
	{
		_, err := uut.Generate(utCtxt, media.GenerateParams{
			Name: "dangling", Expiration: expiration, Path: path1,
			Username: "user@example.com", Proxy: &proxy404,
		})
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusBadRequest, condition.Status)
		assert.Contains(condition.Message, "stream not found")

		// Dangling record: written before path creation, not rolled back
		entry, err := dbClient.GetVideoLeaseByPath(utCtxt, path1)
		assert.Nil(err)
		assert.Equal("dangling", entry.Name)
		assert.Equal(
			0,
			httpmock.GetCallCountInfo()[fmt.Sprintf(
				"POST %s:9997/v3/config/paths/add/%s", testMediaURL, path1,
			)],
		)
	}

	// Case 2: proxy probe non-2xx other than 404 carries the upstream status
	proxy503 := "https://upstream.testing.dev/busy/stream.m3u8"
	httpmock.RegisterResponder(
		"GET", proxy503, httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"),
	)
	{
		_, err := uut.Generate(utCtxt, media.GenerateParams{
			Name: "busy-proxy", Expiration: expiration, Path: uuid.NewString(),
			Username: "user@example.com", Proxy: &proxy503,
		})
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusServiceUnavailable, condition.Status)
	}

	// Case 3: healthy proxy creates an on-demand path with the proxy as source
	path2 := uuid.NewString()
	proxyOK := "https://upstream.testing.dev/live/stream.m3u8"
	httpmock.RegisterResponder(
		"GET", proxyOK, httpmock.NewStringResponder(http.StatusOK, "#EXTM3U"),
	)
	httpmock.RegisterResponder(
		"POST",
		fmt.Sprintf("%s:9997/v3/config/paths/add/%s", testMediaURL, path2),
		func(r *http.Request) (*http.Response, error) {
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, "bad body"), nil
			}
			assert.Equal(proxyOK, body["source"])
			assert.Equal(true, body["sourceOnDemand"])
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		},
	)
	{
		lease, err := uut.Generate(utCtxt, media.GenerateParams{
			Name: "proxied", Expiration: expiration, Path: path2,
			Username: "user@example.com", Proxy: &proxyOK,
		})
		assert.Nil(err)
		assert.NotNil(lease.Proxy)
		assert.Equal(proxyOK, *lease.Proxy)
	}

	// Case 4: non http(s) proxy schemes skip the probe
	path3 := uuid.NewString()
	proxyRTSP := "rtsp://camera.testing.dev:8554/live"
	httpmock.RegisterResponder(
		"POST",
		fmt.Sprintf("%s:9997/v3/config/paths/add/%s", testMediaURL, path3),
		httpmock.NewStringResponder(http.StatusOK, ""),
	)
	{
		lease, err := uut.Generate(utCtxt, media.GenerateParams{
			Name: "rtsp-proxy", Expiration: expiration, Path: path3,
			Username: "user@example.com", Proxy: &proxyRTSP,
		})
		assert.Nil(err)
		assert.Equal(path3, lease.Path)
	}

	// Case 5: path creation rejected leaves the lease record dangling
	path4 := uuid.NewString()
	httpmock.RegisterResponder(
		"POST",
		fmt.Sprintf("%s:9997/v3/config/paths/add/%s", testMediaURL, path4),
		httpmock.NewStringResponder(http.StatusConflict, "path already exists"),
	)
	{
		_, err := uut.Generate(utCtxt, media.GenerateParams{
			Name: "rejected", Expiration: expiration, Path: path4,
			Username: "user@example.com",
		})
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusInternalServerError, condition.Status)
		assert.Contains(condition.Message, "path already exists")

		entry, err := dbClient.GetVideoLeaseByPath(utCtxt, path4)
		assert.Nil(err)
		assert.Equal("rejected", entry.Name)
	}
}

func TestVideoControllerCommit(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, testClient := newTestController(t)
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()
	installMediaSettings(t, dbClient)

	expiration := time.Now().UTC().Add(time.Hour).Round(time.Second)
	path := uuid.NewString()
	httpmock.RegisterResponder(
		"POST",
		fmt.Sprintf("%s:9997/v3/config/paths/add/%s", testMediaURL, path),
		httpmock.NewStringResponder(http.StatusOK, ""),
	)
	lease, err := uut.Generate(utCtxt, media.GenerateParams{
		Name: "cam1", Expiration: expiration, Path: path, Username: "user@example.com",
	})
	assert.Nil(err)

	// Case 0: unknown lease
	{
		_, err := uut.Commit(utCtxt, uuid.NewString(), nil, nil)
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusNotFound, condition.Status)
	}

	// Case 1: rename only
	newName := "cam1-renamed"
	{
		updated, err := uut.Commit(utCtxt, lease.ID, &newName, nil)
		assert.Nil(err)
		assert.Equal(newName, updated.Name)
		assert.Equal(expiration.Unix(), updated.Expiration.Unix())
	}

	// Case 2: extend expiration. Path stays immutable
	newExpiration := expiration.Add(time.Hour)
	{
		updated, err := uut.Commit(utCtxt, lease.ID, nil, &newExpiration)
		assert.Nil(err)
		assert.Equal(newName, updated.Name)
		assert.Equal(newExpiration.Unix(), updated.Expiration.Unix())
		assert.Equal(path, updated.Path)
	}
}

func TestVideoControllerPath(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, testClient := newTestController(t)
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()

	// Case 0: unconfigured
	{
		_, err := uut.Path(utCtxt, "p1")
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusBadRequest, condition.Status)
	}

	installMediaSettings(t, dbClient)

	// Case 1: known path
	httpmock.RegisterResponder(
		"GET",
		testMediaURL+":9997/v3/config/paths/get/p1",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"name": "p1", "source": "rtsp://camera.testing.dev:8554/live", "sourceOnDemand": true,
		}),
	)
	{
		config, err := uut.Path(utCtxt, "p1")
		assert.Nil(err)
		assert.Equal("p1", config.Name)
		assert.True(config.SourceOnDemand)
	}

	// Case 2: unknown path
	httpmock.RegisterResponder(
		"GET",
		testMediaURL+":9997/v3/config/paths/get/p2",
		httpmock.NewStringResponder(http.StatusNotFound, "path not found"),
	)
	{
		_, err := uut.Path(utCtxt, "p2")
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusNotFound, condition.Status)
	}
}

func TestVideoControllerDelete(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, dbClient, testClient := newTestController(t)
	httpmock.ActivateNonDefault(testClient.GetClient())
	defer httpmock.DeactivateAndReset()

	utCtxt := context.Background()
	installMediaSettings(t, dbClient)

	expiration := time.Now().UTC().Add(time.Hour)
	path := uuid.NewString()
	httpmock.RegisterResponder(
		"POST",
		fmt.Sprintf("%s:9997/v3/config/paths/add/%s", testMediaURL, path),
		httpmock.NewStringResponder(http.StatusOK, ""),
	)
	lease, err := uut.Generate(utCtxt, media.GenerateParams{
		Name: "cam1", Expiration: expiration, Path: path, Username: "user@example.com",
	})
	assert.Nil(err)

	// Case 0: unknown lease
	{
		err := uut.Delete(utCtxt, uuid.NewString())
		assert.NotNil(err)
		condition, ok := err.(media.Condition)
		assert.True(ok)
		assert.Equal(http.StatusNotFound, condition.Status)
	}

	// Case 1: the media server path delete is fire-and-forget. A failure there
	// does not fail the lease delete
	httpmock.RegisterResponder(
		"DELETE",
		fmt.Sprintf("%s:9997/v3/config/paths/delete/%s", testMediaURL, path),
		httpmock.NewStringResponder(http.StatusNotFound, "path not found"),
	)
	assert.Nil(uut.Delete(utCtxt, lease.ID))
	{
		_, err := dbClient.GetVideoLease(utCtxt, lease.ID)
		assert.NotNil(err)
	}
	assert.Equal(
		1,
		httpmock.GetCallCountInfo()[fmt.Sprintf(
			"DELETE %s:9997/v3/config/paths/delete/%s", testMediaURL, path,
		)],
	)
}
