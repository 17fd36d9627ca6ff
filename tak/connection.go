package tak

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strconv"

	"github.com/alwitt/goutils"
	"github.com/alwitt/takbridge/common"
	"github.com/alwitt/takbridge/db"
	"github.com/apex/log"
)

// profileUIDPrefix uid prefix ATAK clients expect for per-user identities
const profileUIDPrefix = "ANDROID-CloudTAK-"

// ConnectionConfig a resolved TAK identity. Exposes the identity string presented
// to the TAK server and the mission subscriptions the caller may act with.
type ConnectionConfig interface {
	/*
		ID identity ID. Numeric record ID for machine connections, user email for profiles
	*/
	ID() string

	/*
		Name human readable identity name
	*/
	Name() string

	/*
		Enabled whether the identity actively maintains a TAK server session
	*/
	Enabled() bool

	/*
		Auth client certificate material presented to the TAK server

			@returns PEM encoded certificate and private key
	*/
	Auth() (string, string)

	/*
		UID the TAK identity string. Pure function of the identity fields; performs no I/O
	*/
	UID() string

	/*
		Subscription look up the mission subscription for one mission by exact name

			@param ctxt context.Context - execution context
			@param mission string - TAK mission name
			@returns the subscription, or nil when no matching record exists
	*/
	Subscription(ctxt context.Context, mission string) (*common.MissionSubscription, error)

	/*
		Subscriptions list all mission subscriptions of this identity

			@param ctxt context.Context - execution context
			@returns fully materialized subscription list
	*/
	Subscriptions(ctxt context.Context) ([]common.MissionSubscription, error)
}

// certSubjectCN extract the subject common name from a PEM encoded certificate.
// Returns empty string when the PEM or certificate cannot be parsed.
func certSubjectCN(certPEM string) string {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return ""
	}
	parsed, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return ""
	}
	return parsed.Subject.CommonName
}

// =====================================================================================
// Machine connection identity

// machineConnection ConnectionConfig backed by a stored connection record
type machineConnection struct {
	goutils.Component
	record common.Connection
	db     db.PersistenceManager
}

/*
NewMachineConnection define a ConnectionConfig for a stored machine connection

	@param dbClient db.PersistenceManager - data access layer
	@param record common.Connection - the connection record
	@returns new ConnectionConfig
*/
func NewMachineConnection(
	dbClient db.PersistenceManager, record common.Connection,
) ConnectionConfig {
	logTags := log.Fields{
		"module": "tak", "component": "machine-connection", "connection": record.ID,
	}
	return &machineConnection{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		record: record,
		db:     dbClient,
	}
}

func (c *machineConnection) ID() string {
	return strconv.Itoa(c.record.ID)
}

func (c *machineConnection) Name() string {
	return c.record.Name
}

func (c *machineConnection) Enabled() bool {
	return c.record.Enabled
}

func (c *machineConnection) Auth() (string, string) {
	return c.record.CertPEM, c.record.KeyPEM
}

func (c *machineConnection) UID() string {
	// The TAK server knows this connection by the certificate subject CN. A
	// certificate without a CN, or one which does not parse, falls back to the
	// record ID.
	if cn := certSubjectCN(c.record.CertPEM); cn != "" {
		return cn
	}
	return strconv.Itoa(c.record.ID)
}

func (c *machineConnection) Subscription(
	ctxt context.Context, mission string,
) (*common.MissionSubscription, error) {
	feeds, err := c.db.FindMissionDataFeeds(ctxt, c.record.ID, mission)
	if err != nil {
		return nil, err
	}
	if len(feeds) == 0 {
		return nil, nil
	}
	return &common.MissionSubscription{Name: feeds[0].Name, Token: feeds[0].MissionToken}, nil
}

func (c *machineConnection) Subscriptions(
	ctxt context.Context,
) ([]common.MissionSubscription, error) {
	feeds, err := c.db.ListMissionDataFeeds(ctxt, c.record.ID)
	if err != nil {
		return nil, err
	}
	results := make([]common.MissionSubscription, len(feeds))
	for idx, feed := range feeds {
		results[idx] = common.MissionSubscription{Name: feed.Name, Token: feed.MissionToken}
	}
	return results, nil
}

// =====================================================================================
// Per-user profile identity

// profileConnection ConnectionConfig for a per-user profile. Always enabled; the
// auth material is supplied by the caller.
type profileConnection struct {
	goutils.Component
	email   string
	certPEM string
	keyPEM  string
	db      db.PersistenceManager
}

/*
NewProfileConnection define a ConnectionConfig for a per-user profile

	@param dbClient db.PersistenceManager - data access layer
	@param email string - user email
	@param certPEM string - PEM encoded client certificate
	@param keyPEM string - PEM encoded private key
	@returns new ConnectionConfig
*/
func NewProfileConnection(
	dbClient db.PersistenceManager, email, certPEM, keyPEM string,
) ConnectionConfig {
	logTags := log.Fields{
		"module": "tak", "component": "profile-connection", "user": email,
	}
	return &profileConnection{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		email:   email,
		certPEM: certPEM,
		keyPEM:  keyPEM,
		db:      dbClient,
	}
}

func (c *profileConnection) ID() string {
	return c.email
}

func (c *profileConnection) Name() string {
	return c.email
}

func (c *profileConnection) Enabled() bool {
	return true
}

func (c *profileConnection) Auth() (string, string) {
	return c.certPEM, c.keyPEM
}

func (c *profileConnection) UID() string {
	return fmt.Sprintf("%s%s", profileUIDPrefix, c.email)
}

func (c *profileConnection) Subscription(
	ctxt context.Context, mission string,
) (*common.MissionSubscription, error) {
	overlays, err := c.db.FindMissionOverlays(ctxt, c.email, mission)
	if err != nil {
		return nil, err
	}
	if len(overlays) == 0 {
		return nil, nil
	}
	return &common.MissionSubscription{Name: overlays[0].Name, Token: overlays[0].Token}, nil
}

func (c *profileConnection) Subscriptions(
	ctxt context.Context,
) ([]common.MissionSubscription, error) {
	overlays, err := c.db.ListMissionOverlays(ctxt, c.email)
	if err != nil {
		return nil, err
	}
	results := make([]common.MissionSubscription, len(overlays))
	for idx, overlay := range overlays {
		results[idx] = common.MissionSubscription{Name: overlay.Name, Token: overlay.Token}
	}
	return results, nil
}
