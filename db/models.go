package db

import (
	"github.com/alwitt/takbridge/common"
)

// takConnection a machine-to-machine TAK server connection
type takConnection struct {
	common.Connection
	// Feeds data sync feeds owned by this connection
	Feeds []dataFeed `gorm:"foreignKey:ConnectionID"`
}

// TableName hard code table name
func (takConnection) TableName() string {
	return "connections"
}

// dataFeed a data sync feed owned by a connection
type dataFeed struct {
	common.DataFeed
	Connection takConnection `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConnectionID"`
}

// TableName hard code table name
func (dataFeed) TableName() string {
	return "data_feeds"
}

// profileOverlay a per-user overlay entry
type profileOverlay struct {
	common.ProfileOverlay
}

// TableName hard code table name
func (profileOverlay) TableName() string {
	return "profile_overlays"
}

// videoLease a claim on a media server stream path
type videoLease struct {
	common.VideoLease
}

// TableName hard code table name
func (videoLease) TableName() string {
	return "video_leases"
}

// setting one application setting
type setting struct {
	common.Setting
}

// TableName hard code table name
func (setting) TableName() string {
	return "settings"
}
