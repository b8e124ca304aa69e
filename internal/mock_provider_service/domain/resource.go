package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ProviderTwilio = "twilio"
	APIVersion     = "2010-04-01"
	// DirectionOutboundAPI is the only direction this provider produces.
	DirectionOutboundAPI = "outbound-api"
)

// Resource is an SMS message or an outbound call accepted by the mock provider.
type Resource struct {
	SID         string
	Kind        ResourceKind
	AccountSID  string
	Provider    string
	From        string
	To          string
	Body        string // messages only
	NumSegments int    // messages only
	TwimlURL    string // calls only
	CallbackURL string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewMessage builds a queued message with a fresh SID.
func NewMessage(accountSID, from, to, body, callbackURL string, now time.Time) *Resource {
	return &Resource{
		SID:         NewSID(ResourceKindMessage),
		Kind:        ResourceKindMessage,
		AccountSID:  accountSID,
		Provider:    ProviderTwilio,
		From:        from,
		To:          to,
		Body:        body,
		NumSegments: SegmentCount(body),
		CallbackURL: callbackURL,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewCall builds a queued outbound call with a fresh SID.
func NewCall(accountSID, from, to, twimlURL, callbackURL string, now time.Time) *Resource {
	return &Resource{
		SID:         NewSID(ResourceKindCall),
		Kind:        ResourceKindCall,
		AccountSID:  accountSID,
		Provider:    ProviderTwilio,
		From:        from,
		To:          to,
		TwimlURL:    twimlURL,
		CallbackURL: callbackURL,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewSID returns the kind prefix followed by 32 lowercase hex characters.
func NewSID(kind ResourceKind) string {
	return kind.SIDPrefix() + strings.ReplaceAll(uuid.NewString(), "-", "")
}
