package common

import (
	"time"
)

// Connection a machine-to-machine TAK server connection
type Connection struct {
	// ID connection ID
	ID int `json:"id" gorm:"column:id;primaryKey" validate:"required"`
	// Name human readable connection name
	Name string `json:"name" gorm:"column:name;not null;uniqueIndex:connection_name_index" validate:"required"`
	// Enabled whether the connection actively maintains a TAK server session
	Enabled bool `json:"enabled" gorm:"column:enabled;default:true"`
	// CertPEM PEM encoded client certificate presented to the TAK server
	CertPEM string `json:"cert" gorm:"column:auth_cert;not null" validate:"required"`
	// KeyPEM PEM encoded private key for the client certificate
	KeyPEM    string    `json:"-" gorm:"column:auth_key;not null" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DataFeed a data sync feed linking a machine connection to a TAK mission
type DataFeed struct {
	// ID feed entry ID
	ID int `json:"id" gorm:"column:id;primaryKey" validate:"required"`
	// Name TAK mission name the feed synchronizes against
	Name string `json:"name" gorm:"column:name;not null;index:data_feed_name_index" validate:"required"`
	// ConnectionID owning machine connection
	ConnectionID int `json:"connection" gorm:"column:connection;not null;index:data_feed_connection_index" validate:"required"`
	// MissionSync whether mission sync is active for this feed
	MissionSync bool `json:"mission_sync" gorm:"column:mission_sync;default:false"`
	// MissionToken mission subscription token granted by the TAK server
	MissionToken *string   `json:"mission_token,omitempty" gorm:"column:mission_token;default:null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileOverlay a per-user overlay; mode "mission" marks a mission subscription
type ProfileOverlay struct {
	// ID overlay entry ID
	ID int `json:"id" gorm:"column:id;primaryKey" validate:"required"`
	// Name overlay name. For mission overlays this is the TAK mission name
	Name string `json:"name" gorm:"column:name;not null;index:profile_overlay_name_index" validate:"required"`
	// Username owning user email
	Username string `json:"username" gorm:"column:username;not null;index:profile_overlay_username_index" validate:"required,email"`
	// Mode overlay mode
	Mode string `json:"mode" gorm:"column:mode;not null" validate:"required"`
	// Token mission subscription token granted by the TAK server
	Token     *string   `json:"token,omitempty" gorm:"column:token;default:null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OverlayModeMission marks a profile overlay holding a mission subscription
const OverlayModeMission = "mission"

// MissionSubscription a caller's authorization to act against a named TAK mission
type MissionSubscription struct {
	// Name TAK mission name
	Name string `json:"name" validate:"required"`
	// Token mission subscription token, when one was granted
	Token *string `json:"token,omitempty"`
}

// VideoLease a time-boxed claim on a named stream path on the media server
type VideoLease struct {
	// ID lease entry ID
	ID string `json:"id" gorm:"column:id;primaryKey" validate:"required"`
	// Name human readable lease name
	Name string `json:"name" gorm:"column:name;not null" validate:"required"`
	// Path stream path claimed on the media server. Globally unique while the lease exists
	Path string `json:"path" gorm:"column:path;not null;uniqueIndex:video_lease_path_index" validate:"required"`
	// Ephemeral whether the lease is hidden from the user facing streaming list
	Ephemeral bool `json:"ephemeral" gorm:"column:ephemeral;default:false"`
	// Expiration when the lease lapses
	Expiration time.Time `json:"expiration" gorm:"column:expiration;not null" validate:"required"`
	// Username owning user email
	Username string `json:"username" gorm:"column:username;not null;index:video_lease_username_index" validate:"required"`
	// Proxy upstream source URL the media server pulls from on demand
	Proxy *string `json:"proxy,omitempty" gorm:"column:proxy;default:null"`
	// StreamUser publish user embedded in RTMP connection URLs
	StreamUser *string `json:"stream_user,omitempty" gorm:"column:stream_user;default:null"`
	// StreamPass publish password embedded in RTMP connection URLs
	StreamPass *string   `json:"stream_pass,omitempty" gorm:"column:stream_pass;default:null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Expired whether the lease expiration has lapsed relative to a reference time
func (l VideoLease) Expired(ref time.Time) bool {
	return l.Expiration.Before(ref)
}

// Setting one application setting as a key-value pair
type Setting struct {
	// Key setting key
	Key string `json:"key" gorm:"column:key;primaryKey" validate:"required"`
	// Value setting value
	Value     string    `json:"value" gorm:"column:value;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
