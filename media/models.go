package media

import "time"

// Protocol names for the stream connection URLs a lease supports
const (
	ProtocolRTSP   = "rtsp"
	ProtocolRTMP   = "rtmp"
	ProtocolHLS    = "hls"
	ProtocolWebRTC = "webrtc"
)

// Setting store keys holding the media service integration parameters
const (
	SettingMediaURL      = "media::url"
	SettingMediaUsername = "media::username"
	SettingMediaPassword = "media::password"
)

// ServiceSettings media service integration parameters from the settings store
type ServiceSettings struct {
	// Configured whether all integration parameters are present
	Configured bool `json:"configured"`
	// URL media service base URL
	URL string `json:"url,omitempty"`
	// Username control plane Basic auth user
	Username string `json:"-"`
	// Password control plane Basic auth password
	Password string `json:"-"`
}

// GlobalConfig media server global configuration snapshot
type GlobalConfig struct {
	API           bool   `json:"api"`
	APIAddress    string `json:"apiAddress"`
	Metrics       bool   `json:"metrics"`
	RTSP          bool   `json:"rtsp"`
	RTSPAddress   string `json:"rtspAddress"`
	RTMP          bool   `json:"rtmp"`
	RTMPAddress   string `json:"rtmpAddress"`
	HLS           bool   `json:"hls"`
	HLSAddress    string `json:"hlsAddress"`
	WebRTC        bool   `json:"webrtc"`
	WebRTCAddress string `json:"webrtcAddress"`
	SRT           bool   `json:"srt"`
	SRTAddress    string `json:"srtAddress"`
}

// PathSource the active source feeding a media server path
type PathSource struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PathStatus runtime state of one media server path
type PathStatus struct {
	Name          string      `json:"name"`
	ConfName      string      `json:"confName"`
	Source        *PathSource `json:"source,omitempty"`
	Ready         bool        `json:"ready"`
	ReadyTime     *time.Time  `json:"readyTime,omitempty"`
	Tracks        []string    `json:"tracks"`
	BytesReceived int64       `json:"bytesReceived"`
	BytesSent     int64       `json:"bytesSent"`
}

// pathListResponse media server path listing response
type pathListResponse struct {
	ItemCount int          `json:"itemCount"`
	PageCount int          `json:"pageCount"`
	Items     []PathStatus `json:"items"`
}

// PathConfig stored configuration of one media server path
type PathConfig struct {
	Name           string `json:"name"`
	Source         string `json:"source,omitempty"`
	SourceOnDemand bool   `json:"sourceOnDemand,omitempty"`
	Record         bool   `json:"record,omitempty"`
}

// pathAddRequest media server path creation request
type pathAddRequest struct {
	Source         string `json:"source,omitempty"`
	SourceOnDemand bool   `json:"sourceOnDemand,omitempty"`
}

// Configuration media service state snapshot. Fetched fresh per call, never cached
type Configuration struct {
	// Configured whether the media service integration is configured
	Configured bool `json:"configured"`
	// URL media service base URL
	URL string `json:"url,omitempty"`
	// Config media server global configuration
	Config *GlobalConfig `json:"config,omitempty"`
	// Paths currently known media server paths
	Paths []PathStatus `json:"paths,omitempty"`
}
