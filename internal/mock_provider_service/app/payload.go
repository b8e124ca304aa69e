package app

import (
	"encoding/json"
	"net/url"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

// CallbackPayload is the set of form fields posted to a status callback URL.
type CallbackPayload map[string]string

// Form encodes the payload as application/x-www-form-urlencoded values.
func (p CallbackPayload) Form() url.Values {
	values := make(url.Values, len(p))
	for k, v := range p {
		values.Set(k, v)
	}
	return values
}

// JSON renders the payload as a JSON object with sorted keys.
func (p CallbackPayload) JSON() string {
	b, err := json.Marshal(map[string]string(p))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BuildCallbackPayload returns the webhook fields for res entering status.
func BuildCallbackPayload(res *domain.Resource, accountSID string, status domain.Status) CallbackPayload {
	switch res.Kind {
	case domain.ResourceKindCall:
		return CallbackPayload{
			"CallSid":    res.SID,
			"AccountSid": accountSID,
			"From":       res.From,
			"To":         res.To,
			"CallStatus": status.String(),
			"ApiVersion": domain.APIVersion,
			"Direction":  domain.DirectionOutboundAPI,
		}
	default:
		return CallbackPayload{
			"MessageSid":    res.SID,
			"AccountSid":    accountSID,
			"From":          res.From,
			"To":            res.To,
			"MessageStatus": status.String(),
			"ApiVersion":    domain.APIVersion,
		}
	}
}
