package db_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestDBManagerConnections(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	testInstance := fmt.Sprintf("ut-%s", uuid.NewString())
	uut, err := db.NewManager(db.GetInMemSqliteDialector(testInstance), logger.Info)
	assert.Nil(err)

	utCtxt := context.Background()

	assert.Nil(uut.Ready(utCtxt))

	// Case 0: no connections
	{
		_, err := uut.GetConnection(utCtxt, 42)
		assert.NotNil(err)
		result, err := uut.ListConnections(utCtxt)
		assert.Nil(err)
		assert.Len(result, 0)
	}

	// Case 1: create connection
	conn1 := fmt.Sprintf("conn-1-%s", uuid.NewString())
	connID1, err := uut.DefineConnection(utCtxt, conn1, "cert-pem", "key-pem")
	assert.Nil(err)
	{
		entry, err := uut.GetConnection(utCtxt, connID1)
		assert.Nil(err)
		assert.Equal(conn1, entry.Name)
		assert.True(entry.Enabled)
		assert.Equal("cert-pem", entry.CertPEM)
	}

	// Case 2: create another with same name
	{
		_, err := uut.DefineConnection(utCtxt, conn1, "cert-pem", "key-pem")
		assert.NotNil(err)
	}

	// Case 3: create another connection
	conn2 := fmt.Sprintf("conn-2-%s", uuid.NewString())
	connID2, err := uut.DefineConnection(utCtxt, conn2, "cert-pem-2", "key-pem-2")
	assert.Nil(err)
	{
		entries, err := uut.ListConnections(utCtxt)
		assert.Nil(err)
		asMap := map[int]common.Connection{}
		for _, entry := range entries {
			asMap[entry.ID] = entry
		}
		assert.Len(asMap, 2)
		assert.Contains(asMap, connID1)
		assert.Contains(asMap, connID2)
	}

	// Case 4: disable connection
	assert.Nil(uut.ChangeConnectionEnabledState(utCtxt, connID1, false))
	{
		entry, err := uut.GetConnection(utCtxt, connID1)
		assert.Nil(err)
		assert.False(entry.Enabled)
	}

	// Case 5: delete connection
	assert.Nil(uut.DeleteConnection(utCtxt, connID1))
	{
		_, err := uut.GetConnection(utCtxt, connID1)
		assert.NotNil(err)
		entries, err := uut.ListConnections(utCtxt)
		assert.Nil(err)
		assert.Len(entries, 1)
	}
}

func TestDBManagerDataFeeds(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	testInstance := fmt.Sprintf("ut-%s", uuid.NewString())
	uut, err := db.NewManager(db.GetInMemSqliteDialector(testInstance), logger.Info)
	assert.Nil(err)

	utCtxt := context.Background()

	connID, err := uut.DefineConnection(
		utCtxt, fmt.Sprintf("conn-%s", uuid.NewString()), "cert-pem", "key-pem",
	)
	assert.Nil(err)

	// Case 0: no feeds
	{
		entries, err := uut.ListMissionDataFeeds(utCtxt, connID)
		assert.Nil(err)
		assert.Len(entries, 0)
	}

	// Case 1: feed without mission sync is invisible
	mission1 := fmt.Sprintf("mission-1-%s", uuid.NewString())
	_, err = uut.DefineDataFeed(utCtxt, connID, mission1, false, nil)
	assert.Nil(err)
	{
		entries, err := uut.ListMissionDataFeeds(utCtxt, connID)
		assert.Nil(err)
		assert.Len(entries, 0)
		entries, err = uut.FindMissionDataFeeds(utCtxt, connID, mission1)
		assert.Nil(err)
		assert.Len(entries, 0)
	}

	// Case 2: feed with mission sync
	mission2 := fmt.Sprintf("mission-2-%s", uuid.NewString())
	token := uuid.NewString()
	feedID2, err := uut.DefineDataFeed(utCtxt, connID, mission2, true, &token)
	assert.Nil(err)
	{
		entries, err := uut.ListMissionDataFeeds(utCtxt, connID)
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.Equal(feedID2, entries[0].ID)
		assert.Equal(mission2, entries[0].Name)
		assert.NotNil(entries[0].MissionToken)
		assert.Equal(token, *entries[0].MissionToken)
	}
	{
		entries, err := uut.FindMissionDataFeeds(utCtxt, connID, mission2)
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.Equal(mission2, entries[0].Name)
	}

	// Case 3: feeds of another connection are not visible
	otherConnID, err := uut.DefineConnection(
		utCtxt, fmt.Sprintf("conn-other-%s", uuid.NewString()), "cert-pem", "key-pem",
	)
	assert.Nil(err)
	_, err = uut.DefineDataFeed(utCtxt, otherConnID, mission2, true, nil)
	assert.Nil(err)
	{
		entries, err := uut.ListMissionDataFeeds(utCtxt, connID)
		assert.Nil(err)
		assert.Len(entries, 1)
	}

	// Case 4: deleting the connection removes its feeds
	assert.Nil(uut.DeleteConnection(utCtxt, otherConnID))
	{
		entries, err := uut.ListMissionDataFeeds(utCtxt, otherConnID)
		assert.Nil(err)
		assert.Len(entries, 0)
	}
}

func TestDBManagerProfileOverlays(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	testInstance := fmt.Sprintf("ut-%s", uuid.NewString())
	uut, err := db.NewManager(db.GetInMemSqliteDialector(testInstance), logger.Info)
	assert.Nil(err)

	utCtxt := context.Background()

	user1 := fmt.Sprintf("user-1-%s@example.com", uuid.NewString())
	user2 := fmt.Sprintf("user-2-%s@example.com", uuid.NewString())

	// Case 0: no overlays
	{
		entries, err := uut.ListMissionOverlays(utCtxt, user1)
		assert.Nil(err)
		assert.Len(entries, 0)
	}

	// Case 1: non-mission overlay is invisible
	mission1 := fmt.Sprintf("mission-1-%s", uuid.NewString())
	_, err = uut.DefineProfileOverlay(utCtxt, user1, mission1, "basemap", nil)
	assert.Nil(err)
	{
		entries, err := uut.ListMissionOverlays(utCtxt, user1)
		assert.Nil(err)
		assert.Len(entries, 0)
	}

	// Case 2: mission overlay
	token := uuid.NewString()
	_, err = uut.DefineProfileOverlay(utCtxt, user1, mission1, common.OverlayModeMission, &token)
	assert.Nil(err)
	{
		entries, err := uut.ListMissionOverlays(utCtxt, user1)
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.Equal(mission1, entries[0].Name)
	}
	{
		entries, err := uut.FindMissionOverlays(utCtxt, user1, mission1)
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.NotNil(entries[0].Token)
		assert.Equal(token, *entries[0].Token)
	}

	// Case 3: another user's overlays are not visible
	_, err = uut.DefineProfileOverlay(utCtxt, user2, mission1, common.OverlayModeMission, nil)
	assert.Nil(err)
	{
		entries, err := uut.ListMissionOverlays(utCtxt, user1)
		assert.Nil(err)
		assert.Len(entries, 1)
		entries, err = uut.FindMissionOverlays(utCtxt, user2, mission1)
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.Equal(user2, entries[0].Username)
	}
}

func TestDBManagerVideoLeases(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	testInstance := fmt.Sprintf("ut-%s", uuid.NewString())
	uut, err := db.NewManager(db.GetInMemSqliteDialector(testInstance), logger.Info)
	assert.Nil(err)

	utCtxt := context.Background()

	user1 := fmt.Sprintf("user-1-%s@example.com", uuid.NewString())
	user2 := fmt.Sprintf("user-2-%s@example.com", uuid.NewString())
	expiration := time.Now().UTC().Add(time.Hour).Round(time.Second)

	// Case 0: no leases
	{
		_, err := uut.GetVideoLease(utCtxt, uuid.NewString())
		assert.NotNil(err)
		entries, err := uut.ListVideoLeases(utCtxt, nil, true)
		assert.Nil(err)
		assert.Len(entries, 0)
	}

	// Case 1: create lease
	path1 := uuid.NewString()
	lease1, err := uut.DefineVideoLease(utCtxt, common.VideoLease{
		Name:       "drone feed",
		Path:       path1,
		Expiration: expiration,
		Username:   user1,
	})
	assert.Nil(err)
	assert.NotEmpty(lease1.ID)
	{
		entry, err := uut.GetVideoLease(utCtxt, lease1.ID)
		assert.Nil(err)
		assert.Equal("drone feed", entry.Name)
		assert.Equal(path1, entry.Path)
		assert.Equal(user1, entry.Username)
	}
	{
		entry, err := uut.GetVideoLeaseByPath(utCtxt, path1)
		assert.Nil(err)
		assert.Equal(lease1.ID, entry.ID)
	}

	// Case 2: path is unique while the lease exists
	{
		_, err := uut.DefineVideoLease(utCtxt, common.VideoLease{
			Name:       "duplicate path",
			Path:       path1,
			Expiration: expiration,
			Username:   user2,
		})
		assert.NotNil(err)
	}

	// Case 3: ephemeral lease filtering
	lease2, err := uut.DefineVideoLease(utCtxt, common.VideoLease{
		Name:       "ephemeral feed",
		Path:       uuid.NewString(),
		Ephemeral:  true,
		Expiration: expiration,
		Username:   user1,
	})
	assert.Nil(err)
	{
		entries, err := uut.ListVideoLeases(utCtxt, nil, false)
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.Equal(lease1.ID, entries[0].ID)
	}
	{
		entries, err := uut.ListVideoLeases(utCtxt, nil, true)
		assert.Nil(err)
		assert.Len(entries, 2)
	}

	// Case 4: username filtering
	lease3, err := uut.DefineVideoLease(utCtxt, common.VideoLease{
		Name:       "other user feed",
		Path:       uuid.NewString(),
		Expiration: expiration,
		Username:   user2,
	})
	assert.Nil(err)
	{
		entries, err := uut.ListVideoLeases(utCtxt, &user2, true)
		assert.Nil(err)
		assert.Len(entries, 1)
		assert.Equal(lease3.ID, entries[0].ID)
	}

	// Case 5: update name and expiration only
	newExpiration := expiration.Add(time.Hour)
	updated, err := uut.UpdateVideoLease(utCtxt, lease1.ID, "renamed feed", newExpiration)
	assert.Nil(err)
	assert.Equal("renamed feed", updated.Name)
	{
		entry, err := uut.GetVideoLease(utCtxt, lease1.ID)
		assert.Nil(err)
		assert.Equal("renamed feed", entry.Name)
		assert.Equal(newExpiration.Unix(), entry.Expiration.Unix())
		assert.Equal(path1, entry.Path)
	}

	// Case 6: update of unknown lease fails
	{
		_, err := uut.UpdateVideoLease(utCtxt, uuid.NewString(), "ghost", newExpiration)
		assert.NotNil(err)
	}

	// Case 7: delete lease frees the path
	assert.Nil(uut.DeleteVideoLease(utCtxt, lease1.ID))
	{
		_, err := uut.GetVideoLease(utCtxt, lease1.ID)
		assert.NotNil(err)
	}
	{
		relisted, err := uut.DefineVideoLease(utCtxt, common.VideoLease{
			Name:       "path reclaimed",
			Path:       path1,
			Expiration: expiration,
			Username:   user2,
		})
		assert.Nil(err)
		assert.NotEqual(lease1.ID, relisted.ID)
	}

	// Lease expiry helper
	assert.False(lease2.Expired(expiration.Add(-time.Minute)))
	assert.True(lease2.Expired(expiration.Add(time.Minute)))
}

func TestDBManagerSettings(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	testInstance := fmt.Sprintf("ut-%s", uuid.NewString())
	uut, err := db.NewManager(db.GetInMemSqliteDialector(testInstance), logger.Info)
	assert.Nil(err)

	utCtxt := context.Background()

	// Case 0: unknown key
	{
		_, err := uut.GetSetting(utCtxt, "media::url")
		assert.NotNil(err)
		assert.True(errors.Is(err, db.ErrSettingNotFound))
	}

	// Case 1: store and read back
	assert.Nil(uut.SetSetting(utCtxt, "media::url", "https://media.example.com"))
	{
		value, err := uut.GetSetting(utCtxt, "media::url")
		assert.Nil(err)
		assert.Equal("https://media.example.com", value)
	}

	// Case 2: overwrite
	assert.Nil(uut.SetSetting(utCtxt, "media::url", "https://media2.example.com"))
	{
		value, err := uut.GetSetting(utCtxt, "media::url")
		assert.Nil(err)
		assert.Equal("https://media2.example.com", value)
	}
}
