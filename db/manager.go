package db

import (
	"context"
	"errors"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrSettingNotFound returned when a setting key has no stored value
var ErrSettingNotFound = errors.New("setting not found")

// PersistenceManager database access layer
type PersistenceManager interface {
	/*
		Ready check whether the DB connection is working

			@param ctxt context.Context - execution context
	*/
	Ready(ctxt context.Context) error

	// =====================================================================================
	// TAK server connections

	/*
		DefineConnection create new machine connection

			@param ctxt context.Context - execution context
			@param name string - connection name
			@param certPEM string - PEM encoded client certificate
			@param keyPEM string - PEM encoded private key
			@returns new connection entry ID
	*/
	DefineConnection(ctxt context.Context, name, certPEM, keyPEM string) (int, error)

	/*
		GetConnection retrieve a machine connection

			@param ctxt context.Context - execution context
			@param id int - connection entry ID
			@returns connection entry
	*/
	GetConnection(ctxt context.Context, id int) (common.Connection, error)

	/*
		ListConnections list all machine connections

			@param ctxt context.Context - execution context
			@returns all connection entries
	*/
	ListConnections(ctxt context.Context) ([]common.Connection, error)

	/*
		ChangeConnectionEnabledState change whether a connection actively maintains
		a TAK server session

			@param ctxt context.Context - execution context
			@param id int - connection entry ID
			@param enabled bool - new state
	*/
	ChangeConnectionEnabledState(ctxt context.Context, id int, enabled bool) error

	/*
		DeleteConnection delete a machine connection along with its data feeds

			@param ctxt context.Context - execution context
			@param id int - connection entry ID
	*/
	DeleteConnection(ctxt context.Context, id int) error

	// =====================================================================================
	// Data sync feeds

	/*
		DefineDataFeed create new data sync feed under a connection

			@param ctxt context.Context - execution context
			@param connectionID int - owning connection entry ID
			@param mission string - TAK mission name the feed synchronizes against
			@param missionSync bool - whether mission sync is active
			@param missionToken *string - optionally, mission subscription token
			@returns new feed entry ID
	*/
	DefineDataFeed(
		ctxt context.Context, connectionID int, mission string, missionSync bool, missionToken *string,
	) (int, error)

	/*
		ListMissionDataFeeds list a connection's data feeds with active mission sync

			@param ctxt context.Context - execution context
			@param connectionID int - owning connection entry ID
			@returns matching feed entries
	*/
	ListMissionDataFeeds(ctxt context.Context, connectionID int) ([]common.DataFeed, error)

	/*
		FindMissionDataFeeds list a connection's data feeds with active mission sync
		against one specific mission

			@param ctxt context.Context - execution context
			@param connectionID int - owning connection entry ID
			@param mission string - TAK mission name
			@returns matching feed entries
	*/
	FindMissionDataFeeds(
		ctxt context.Context, connectionID int, mission string,
	) ([]common.DataFeed, error)

	// =====================================================================================
	// Profile overlays

	/*
		DefineProfileOverlay create new profile overlay entry

			@param ctxt context.Context - execution context
			@param username string - owning user email
			@param name string - overlay name
			@param mode string - overlay mode
			@param token *string - optionally, mission subscription token
			@returns new overlay entry ID
	*/
	DefineProfileOverlay(
		ctxt context.Context, username, name, mode string, token *string,
	) (int, error)

	/*
		ListMissionOverlays list a user's mission mode overlays

			@param ctxt context.Context - execution context
			@param username string - owning user email
			@returns matching overlay entries
	*/
	ListMissionOverlays(ctxt context.Context, username string) ([]common.ProfileOverlay, error)

	/*
		FindMissionOverlays list a user's mission mode overlays against one specific mission

			@param ctxt context.Context - execution context
			@param username string - owning user email
			@param mission string - TAK mission name
			@returns matching overlay entries
	*/
	FindMissionOverlays(
		ctxt context.Context, username, mission string,
	) ([]common.ProfileOverlay, error)

	// =====================================================================================
	// Video leases

	/*
		DefineVideoLease create new video lease record

			@param ctxt context.Context - execution context
			@param params common.VideoLease - lease parameters. ID is assigned here
			@returns the stored lease record
	*/
	DefineVideoLease(ctxt context.Context, params common.VideoLease) (common.VideoLease, error)

	/*
		GetVideoLease retrieve a video lease

			@param ctxt context.Context - execution context
			@param id string - lease entry ID
			@returns lease entry
	*/
	GetVideoLease(ctxt context.Context, id string) (common.VideoLease, error)

	/*
		GetVideoLeaseByPath retrieve a video lease claiming a stream path

			@param ctxt context.Context - execution context
			@param path string - media server stream path
			@returns lease entry
	*/
	GetVideoLeaseByPath(ctxt context.Context, path string) (common.VideoLease, error)

	/*
		ListVideoLeases list video leases

			@param ctxt context.Context - execution context
			@param username *string - if set, only this user's leases
			@param includeEphemeral bool - whether to include ephemeral leases
			@returns matching lease entries
	*/
	ListVideoLeases(
		ctxt context.Context, username *string, includeEphemeral bool,
	) ([]common.VideoLease, error)

	/*
		UpdateVideoLease update the name and expiration of a video lease.

		Only the following can be updated:
		  * Name
		  * Expiration

			@param ctxt context.Context - execution context
			@param id string - lease entry ID
			@param name string - new lease name
			@param expiration time.Time - new expiration
			@returns the updated lease record
	*/
	UpdateVideoLease(
		ctxt context.Context, id, name string, expiration time.Time,
	) (common.VideoLease, error)

	/*
		DeleteVideoLease delete a video lease

			@param ctxt context.Context - execution context
			@param id string - lease entry ID
	*/
	DeleteVideoLease(ctxt context.Context, id string) error

	// =====================================================================================
	// Application settings

	/*
		GetSetting read one application setting.

		Returns ErrSettingNotFound when the key has no stored value.

			@param ctxt context.Context - execution context
			@param key string - setting key
			@returns setting value
	*/
	GetSetting(ctxt context.Context, key string) (string, error)

	/*
		SetSetting store one application setting, overwriting any previous value

			@param ctxt context.Context - execution context
			@param key string - setting key
			@param value string - setting value
	*/
	SetSetting(ctxt context.Context, key, value string) error
}

// persistenceManagerImpl implements PersistenceManager
type persistenceManagerImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

/*
NewManager define a new DB access manager

	@param dbDialector gorm.Dialector - GORM SQL dialector
	@param logLevel logger.LogLevel - SQL log level
	@returns new manager
*/
func NewManager(dbDialector gorm.Dialector, logLevel logger.LogLevel) (PersistenceManager, error) {
	db, err := gorm.Open(dbDialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	// Prepare the databases
	if err := db.AutoMigrate(&takConnection{}); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&dataFeed{}); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&profileOverlay{}); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&videoLease{}); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&setting{}); err != nil {
		return nil, err
	}

	logTags := log.Fields{"module": "db", "component": "manager", "instance": dbDialector.Name()}
	return &persistenceManagerImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        db,
		validator: validator.New(),
	}, nil
}

func (m *persistenceManagerImpl) Ready(ctxt context.Context) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		tmp := tx.Find(&[]takConnection{}).Limit(1)
		return tmp.Error
	})
}

// =====================================================================================
// TAK server connections

func (m *persistenceManagerImpl) DefineConnection(
	ctxt context.Context, name, certPEM, keyPEM string,
) (int, error) {
	newEntryID := 0
	return newEntryID, m.db.Transaction(func(tx *gorm.DB) error {
		logTags := m.GetLogTagsForContext(ctxt)

		newEntry := takConnection{
			Connection: common.Connection{
				Name:    name,
				Enabled: true,
				CertPEM: certPEM,
				KeyPEM:  keyPEM,
			},
		}

		// Insert entry
		if tmp := tx.Create(&newEntry); tmp.Error != nil {
			return tmp.Error
		}
		newEntryID = newEntry.ID

		log.
			WithFields(logTags).
			WithField("name", name).
			WithField("id", newEntryID).
			Info("Defined new TAK server connection")
		return nil
	})
}

func (m *persistenceManagerImpl) GetConnection(
	ctxt context.Context, id int,
) (common.Connection, error) {
	var result common.Connection
	return result, m.db.Transaction(func(tx *gorm.DB) error {
		var entry takConnection
		if tmp := tx.First(&entry, "id = ?", id); tmp.Error != nil {
			return tmp.Error
		}
		result = entry.Connection
		return nil
	})
}

func (m *persistenceManagerImpl) ListConnections(
	ctxt context.Context,
) ([]common.Connection, error) {
	var result []common.Connection
	return result, m.db.Transaction(func(tx *gorm.DB) error {
		var entries []takConnection
		if tmp := tx.Find(&entries); tmp.Error != nil {
			return tmp.Error
		}
		for _, entry := range entries {
			result = append(result, entry.Connection)
		}
		return nil
	})
}

func (m *persistenceManagerImpl) ChangeConnectionEnabledState(
	ctxt context.Context, id int, enabled bool,
) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		if tmp := tx.
			Model(&takConnection{}).
			Where("id = ?", id).
			Update("enabled", enabled); tmp.Error != nil {
			return tmp.Error
		}
		return nil
	})
}

func (m *persistenceManagerImpl) DeleteConnection(ctxt context.Context, id int) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		logTags := m.GetLogTagsForContext(ctxt)
		if tmp := tx.Where("connection = ?", id).Delete(&dataFeed{}); tmp.Error != nil {
			return tmp.Error
		}
		if tmp := tx.Delete(&takConnection{
			Connection: common.Connection{ID: id},
		}); tmp.Error != nil {
			return tmp.Error
		}
		log.WithFields(logTags).WithField("id", id).Info("Deleted TAK server connection")
		return nil
	})
}

// =====================================================================================
// Data sync feeds

func (m *persistenceManagerImpl) DefineDataFeed(
	ctxt context.Context, connectionID int, mission string, missionSync bool, missionToken *string,
) (int, error) {
	newEntryID := 0
	return newEntryID, m.db.Transaction(func(tx *gorm.DB) error {
		logTags := m.GetLogTagsForContext(ctxt)

		newEntry := dataFeed{
			DataFeed: common.DataFeed{
				Name:         mission,
				ConnectionID: connectionID,
				MissionSync:  missionSync,
				MissionToken: missionToken,
			},
		}

		if tmp := tx.Create(&newEntry); tmp.Error != nil {
			return tmp.Error
		}
		newEntryID = newEntry.ID

		log.
			WithFields(logTags).
			WithField("connection", connectionID).
			WithField("mission", mission).
			WithField("id", newEntryID).
			Info("Defined new data sync feed")
		return nil
	})
}

func (m *persistenceManagerImpl) ListMissionDataFeeds(
	ctxt context.Context, connectionID int,
) ([]common.DataFeed, error) {
	var results []common.DataFeed
	return results, m.db.Transaction(func(tx *gorm.DB) error {
		var entries []dataFeed
		if tmp := tx.
			Where("connection = ?", connectionID).
			Where("mission_sync = ?", true).
			Find(&entries); tmp.Error != nil {
			return tmp.Error
		}
		for _, entry := range entries {
			results = append(results, entry.DataFeed)
		}
		return nil
	})
}

func (m *persistenceManagerImpl) FindMissionDataFeeds(
	ctxt context.Context, connectionID int, mission string,
) ([]common.DataFeed, error) {
	var results []common.DataFeed
	return results, m.db.Transaction(func(tx *gorm.DB) error {
		var entries []dataFeed
		if tmp := tx.
			Where("connection = ?", connectionID).
			Where("name = ?", mission).
			Where("mission_sync = ?", true).
			Find(&entries); tmp.Error != nil {
			return tmp.Error
		}
		for _, entry := range entries {
			results = append(results, entry.DataFeed)
		}
		return nil
	})
}

// =====================================================================================
// Profile overlays

func (m *persistenceManagerImpl) DefineProfileOverlay(
	ctxt context.Context, username, name, mode string, token *string,
) (int, error) {
	newEntryID := 0
	return newEntryID, m.db.Transaction(func(tx *gorm.DB) error {
		logTags := m.GetLogTagsForContext(ctxt)

		newEntry := profileOverlay{
			ProfileOverlay: common.ProfileOverlay{
				Name:     name,
				Username: username,
				Mode:     mode,
				Token:    token,
			},
		}

		if tmp := tx.Create(&newEntry); tmp.Error != nil {
			return tmp.Error
		}
		newEntryID = newEntry.ID

		log.
			WithFields(logTags).
			WithField("username", username).
			WithField("name", name).
			WithField("mode", mode).
			WithField("id", newEntryID).
			Info("Defined new profile overlay")
		return nil
	})
}

func (m *persistenceManagerImpl) ListMissionOverlays(
	ctxt context.Context, username string,
) ([]common.ProfileOverlay, error) {
	var results []common.ProfileOverlay
	return results, m.db.Transaction(func(tx *gorm.DB) error {
		var entries []profileOverlay
		if tmp := tx.
			Where("username = ?", username).
			Where("mode = ?", common.OverlayModeMission).
			Find(&entries); tmp.Error != nil {
			return tmp.Error
		}
		for _, entry := range entries {
			results = append(results, entry.ProfileOverlay)
		}
		return nil
	})
}

func (m *persistenceManagerImpl) FindMissionOverlays(
	ctxt context.Context, username, mission string,
) ([]common.ProfileOverlay, error) {
	var results []common.ProfileOverlay
	return results, m.db.Transaction(func(tx *gorm.DB) error {
		var entries []profileOverlay
		if tmp := tx.
			Where("username = ?", username).
			Where("name = ?", mission).
			Where("mode = ?", common.OverlayModeMission).
			Find(&entries); tmp.Error != nil {
			return tmp.Error
		}
		for _, entry := range entries {
			results = append(results, entry.ProfileOverlay)
		}
		return nil
	})
}

// =====================================================================================
// Video leases

func (m *persistenceManagerImpl) DefineVideoLease(
	ctxt context.Context, params common.VideoLease,
) (common.VideoLease, error) {
	var result common.VideoLease
	return result, m.db.Transaction(func(tx *gorm.DB) error {
		logTags := m.GetLogTagsForContext(ctxt)

		params.ID = ulid.Make().String()
		newEntry := videoLease{VideoLease: params}

		// Verify data
		if err := m.validator.Struct(&newEntry); err != nil {
			return err
		}

		// Insert entry
		if tmp := tx.Create(&newEntry); tmp.Error != nil {
			return tmp.Error
		}
		result = newEntry.VideoLease

		log.
			WithFields(logTags).
			WithField("name", params.Name).
			WithField("path", params.Path).
			WithField("username", params.Username).
			WithField("id", params.ID).
			Info("Defined new video lease")
		return nil
	})
}

func (m *persistenceManagerImpl) GetVideoLease(
	ctxt context.Context, id string,
) (common.VideoLease, error) {
	var result common.VideoLease
	return result, m.db.Transaction(func(tx *gorm.DB) error {
		var entry videoLease
		if tmp := tx.First(&entry, "id = ?", id); tmp.Error != nil {
			return tmp.Error
		}
		result = entry.VideoLease
		return nil
	})
}

func (m *persistenceManagerImpl) GetVideoLeaseByPath(
	ctxt context.Context, path string,
) (common.VideoLease, error) {
	var result common.VideoLease
	return result, m.db.Transaction(func(tx *gorm.DB) error {
		var entry videoLease
		if tmp := tx.First(&entry, "path = ?", path); tmp.Error != nil {
			return tmp.Error
		}
		result = entry.VideoLease
		return nil
	})
}

func (m *persistenceManagerImpl) ListVideoLeases(
	ctxt context.Context, username *string, includeEphemeral bool,
) ([]common.VideoLease, error) {
	var results []common.VideoLease
	return results, m.db.Transaction(func(tx *gorm.DB) error {
		var entries []videoLease
		query := tx.Order("created_at desc")
		if username != nil {
			query = query.Where("username = ?", *username)
		}
		if !includeEphemeral {
			query = query.Where("ephemeral = ?", false)
		}
		if tmp := query.Find(&entries); tmp.Error != nil {
			return tmp.Error
		}
		for _, entry := range entries {
			results = append(results, entry.VideoLease)
		}
		return nil
	})
}

func (m *persistenceManagerImpl) UpdateVideoLease(
	ctxt context.Context, id, name string, expiration time.Time,
) (common.VideoLease, error) {
	var result common.VideoLease
	return result, m.db.Transaction(func(tx *gorm.DB) error {
		logTags := m.GetLogTagsForContext(ctxt)

		var entry videoLease
		if tmp := tx.First(&entry, "id = ?", id); tmp.Error != nil {
			return tmp.Error
		}
		if tmp := tx.
			Model(&videoLease{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"name":       name,
				"expiration": expiration,
			}); tmp.Error != nil {
			return tmp.Error
		}
		entry.Name = name
		entry.Expiration = expiration
		result = entry.VideoLease

		log.
			WithFields(logTags).
			WithField("name", name).
			WithField("expiration", expiration).
			WithField("id", id).
			Info("Updated video lease")
		return nil
	})
}

func (m *persistenceManagerImpl) DeleteVideoLease(ctxt context.Context, id string) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		logTags := m.GetLogTagsForContext(ctxt)
		if tmp := tx.Where("id = ?", id).Delete(&videoLease{}); tmp.Error != nil {
			return tmp.Error
		}
		log.WithFields(logTags).WithField("id", id).Info("Deleted video lease")
		return nil
	})
}

// =====================================================================================
// Application settings

func (m *persistenceManagerImpl) GetSetting(ctxt context.Context, key string) (string, error) {
	var result string
	return result, m.db.Transaction(func(tx *gorm.DB) error {
		var entry setting
		if tmp := tx.First(&entry, "key = ?", key); tmp.Error != nil {
			if errors.Is(tmp.Error, gorm.ErrRecordNotFound) {
				return ErrSettingNotFound
			}
			return tmp.Error
		}
		result = entry.Value
		return nil
	})
}

func (m *persistenceManagerImpl) SetSetting(ctxt context.Context, key, value string) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		logTags := m.GetLogTagsForContext(ctxt)
		entry := setting{Setting: common.Setting{Key: key, Value: value}}
		if tmp := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&entry); tmp.Error != nil {
			return tmp.Error
		}
		log.WithFields(logTags).WithField("key", key).Info("Stored application setting")
		return nil
	})
}
