package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/app"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

const MaxRequestBodySize = 1 << 20 // 1 MB

// ProviderAPI is implemented by app.ProviderService.
type ProviderAPI interface {
	SendMessage(ctx context.Context, in app.SendMessageInput) (*domain.Resource, error)
	MakeCall(ctx context.Context, in app.MakeCallInput) (*domain.Resource, error)
	GetResource(ctx context.Context, kind domain.ResourceKind, sid string) (*domain.Resource, error)
}

// TwilioHandler serves the Twilio-compatible REST API.
type TwilioHandler struct {
	service ProviderAPI
	auth    AuthSettings
	logger  *slog.Logger
}

func NewTwilioHandler(service ProviderAPI, auth AuthSettings, logger *slog.Logger) *TwilioHandler {
	return &TwilioHandler{
		service: service,
		auth:    auth,
		logger:  logger.With("handler", "twilio_api"),
	}
}

func (h *TwilioHandler) RegisterRoutes(r chi.Router) {
	r.Route("/2010-04-01/Accounts/{accountSid}", func(r chi.Router) {
		r.Use(BasicAuth(h.auth, h.logger))
		r.Post("/Messages.json", h.handleSendMessage)
		r.Get("/Messages/{sid}.json", h.handleFetch(domain.ResourceKindMessage))
		r.Post("/Calls.json", h.handleMakeCall)
		r.Get("/Calls/{sid}.json", h.handleFetch(domain.ResourceKindCall))
	})
}

func (h *TwilioHandler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(r.Context(), "Invalid form body", "error", err)
		jsonError(w, h.logger, "Invalid form body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *TwilioHandler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	msg, err := h.service.SendMessage(r.Context(), app.SendMessageInput{
		From:           r.PostForm.Get("From"),
		To:             r.PostForm.Get("To"),
		Body:           r.PostForm.Get("Body"),
		StatusCallback: r.PostForm.Get("StatusCallback"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, toMessageResponse(msg))
}

func (h *TwilioHandler) handleMakeCall(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	call, err := h.service.MakeCall(r.Context(), app.MakeCallInput{
		From:           r.PostForm.Get("From"),
		To:             r.PostForm.Get("To"),
		URL:            r.PostForm.Get("Url"),
		StatusCallback: r.PostForm.Get("StatusCallback"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, toCallResponse(call))
}

func (h *TwilioHandler) handleFetch(kind domain.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.service.GetResource(r.Context(), kind, chi.URLParam(r, "sid"))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		if kind == domain.ResourceKindCall {
			writeJSON(w, h.logger, http.StatusOK, toCallResponse(res))
			return
		}
		writeJSON(w, h.logger, http.StatusOK, toMessageResponse(res))
	}
}

func (h *TwilioHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var rerr *app.RequestError
	switch {
	case errors.As(err, &rerr):
		writeTwilioError(w, h.logger, http.StatusBadRequest, rerr.Code, rerr.Message)
	case errors.Is(err, domain.ErrNotFound):
		writeTwilioError(w, h.logger, http.StatusNotFound, app.CodeNotFound,
			"The requested resource "+r.URL.Path+" was not found")
	case errors.Is(err, app.ErrSchedulerClosed):
		logger.WarnContext(ctx, "Request refused during shutdown", "error", err)
		jsonError(w, h.logger, "Service is shutting down", http.StatusServiceUnavailable)
	default:
		logger.ErrorContext(ctx, "Provider request failed", "error", err)
		jsonError(w, h.logger, "Internal server error", http.StatusInternalServerError)
	}
}
