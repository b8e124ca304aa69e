package http

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

// twilioTimeLayout is the RFC 2822 form Twilio uses for date_* fields.
const twilioTimeLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

const priceUnitUSD = "USD"

// MessageResponse mirrors Twilio's Message resource.
type MessageResponse struct {
	SID                 string            `json:"sid"`
	AccountSID          string            `json:"account_sid"`
	From                string            `json:"from"`
	To                  string            `json:"to"`
	Body                string            `json:"body"`
	Status              string            `json:"status"`
	NumSegments         string            `json:"num_segments"`
	NumMedia            string            `json:"num_media"`
	Direction           string            `json:"direction"`
	APIVersion          string            `json:"api_version"`
	DateCreated         string            `json:"date_created"`
	DateUpdated         string            `json:"date_updated"`
	DateSent            *string           `json:"date_sent"`
	Price               *string           `json:"price"`
	PriceUnit           string            `json:"price_unit"`
	ErrorCode           *int              `json:"error_code"`
	ErrorMessage        *string           `json:"error_message"`
	MessagingServiceSID *string           `json:"messaging_service_sid"`
	URI                 string            `json:"uri"`
	SubresourceURIs     map[string]string `json:"subresource_uris"`
}

// CallResponse mirrors Twilio's Call resource.
type CallResponse struct {
	SID             string            `json:"sid"`
	AccountSID      string            `json:"account_sid"`
	From            string            `json:"from"`
	FromFormatted   string            `json:"from_formatted"`
	To              string            `json:"to"`
	ToFormatted     string            `json:"to_formatted"`
	Status          string            `json:"status"`
	Direction       string            `json:"direction"`
	APIVersion      string            `json:"api_version"`
	DateCreated     string            `json:"date_created"`
	DateUpdated     string            `json:"date_updated"`
	StartTime       *string           `json:"start_time"`
	EndTime         *string           `json:"end_time"`
	Duration        *string           `json:"duration"`
	Price           *string           `json:"price"`
	PriceUnit       string            `json:"price_unit"`
	AnsweredBy      *string           `json:"answered_by"`
	ParentCallSID   *string           `json:"parent_call_sid"`
	URI             string            `json:"uri"`
	SubresourceURIs map[string]string `json:"subresource_uris"`
}

func twilioTime(t time.Time) string {
	return t.UTC().Format(twilioTimeLayout)
}

func resourceURI(res *domain.Resource) string {
	collection := "Messages"
	if res.Kind == domain.ResourceKindCall {
		collection = "Calls"
	}
	return fmt.Sprintf("/%s/Accounts/%s/%s/%s.json", domain.APIVersion, res.AccountSID, collection, res.SID)
}

func subresourceURI(res *domain.Resource, name string) string {
	collection := "Messages"
	if res.Kind == domain.ResourceKindCall {
		collection = "Calls"
	}
	return fmt.Sprintf("/%s/Accounts/%s/%s/%s/%s.json", domain.APIVersion, res.AccountSID, collection, res.SID, name)
}

func toMessageResponse(res *domain.Resource) MessageResponse {
	return MessageResponse{
		SID:         res.SID,
		AccountSID:  res.AccountSID,
		From:        res.From,
		To:          res.To,
		Body:        res.Body,
		Status:      res.Status.String(),
		NumSegments: fmt.Sprint(res.NumSegments),
		NumMedia:    "0",
		Direction:   domain.DirectionOutboundAPI,
		APIVersion:  domain.APIVersion,
		DateCreated: twilioTime(res.CreatedAt),
		DateUpdated: twilioTime(res.UpdatedAt),
		PriceUnit:   priceUnitUSD,
		URI:         resourceURI(res),
		SubresourceURIs: map[string]string{
			"media": subresourceURI(res, "Media"),
		},
	}
}

func toCallResponse(res *domain.Resource) CallResponse {
	return CallResponse{
		SID:           res.SID,
		AccountSID:    res.AccountSID,
		From:          res.From,
		FromFormatted: res.From,
		To:            res.To,
		ToFormatted:   res.To,
		Status:        res.Status.String(),
		Direction:     domain.DirectionOutboundAPI,
		APIVersion:    domain.APIVersion,
		DateCreated:   twilioTime(res.CreatedAt),
		DateUpdated:   twilioTime(res.UpdatedAt),
		PriceUnit:     priceUnitUSD,
		URI:           resourceURI(res),
		SubresourceURIs: map[string]string{
			"notifications": subresourceURI(res, "Notifications"),
			"recordings":    subresourceURI(res, "Recordings"),
		},
	}
}

// TwilioErrorResponse is Twilio's REST error body.
type TwilioErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// Admin API views. Timestamps are rendered in the configured display timezone.

type ResourceView struct {
	SID         string `json:"sid"`
	Kind        string `json:"kind"`
	AccountSID  string `json:"account_sid"`
	Provider    string `json:"provider"`
	From        string `json:"from"`
	To          string `json:"to"`
	Body        string `json:"body,omitempty"`
	NumSegments int    `json:"num_segments,omitempty"`
	TwimlURL    string `json:"twiml_url,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type DeliveryEventView struct {
	ID           int64  `json:"id"`
	ResourceSID  string `json:"resource_sid"`
	EventType    string `json:"event_type"`
	Status       string `json:"status"`
	CallbackSent bool   `json:"callback_sent"`
	CreatedAt    string `json:"created_at"`
}

type CallbackLogView struct {
	ID            int64           `json:"id"`
	TargetURL     string          `json:"target_url"`
	Payload       json.RawMessage `json:"payload"`
	StatusCode    *int            `json:"status_code"`
	ResponseBody  string          `json:"response_body"`
	AttemptNumber int             `json:"attempt_number"`
	CreatedAt     string          `json:"created_at"`
}

func toResourceView(res *domain.Resource, loc *time.Location) ResourceView {
	return ResourceView{
		SID:         res.SID,
		Kind:        res.Kind.String(),
		AccountSID:  res.AccountSID,
		Provider:    res.Provider,
		From:        res.From,
		To:          res.To,
		Body:        res.Body,
		NumSegments: res.NumSegments,
		TwimlURL:    res.TwimlURL,
		CallbackURL: res.CallbackURL,
		Status:      res.Status.String(),
		CreatedAt:   res.CreatedAt.In(loc).Format(time.RFC3339),
		UpdatedAt:   res.UpdatedAt.In(loc).Format(time.RFC3339),
	}
}

func toDeliveryEventView(e *domain.DeliveryEvent, loc *time.Location) DeliveryEventView {
	return DeliveryEventView{
		ID:           e.ID,
		ResourceSID:  e.ResourceSID,
		EventType:    e.EventType,
		Status:       e.Status.String(),
		CallbackSent: e.CallbackSent,
		CreatedAt:    e.CreatedAt.In(loc).Format(time.RFC3339),
	}
}

func toCallbackLogView(l *domain.CallbackLog, loc *time.Location) CallbackLogView {
	payload := json.RawMessage(l.Payload)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(l.Payload)
		payload = quoted
	}
	return CallbackLogView{
		ID:            l.ID,
		TargetURL:     l.TargetURL,
		Payload:       payload,
		StatusCode:    l.StatusCode,
		ResponseBody:  l.ResponseBody,
		AttemptNumber: l.AttemptNumber,
		CreatedAt:     l.CreatedAt.In(loc).Format(time.RFC3339),
	}
}
