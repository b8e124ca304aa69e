package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/app"
	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mock_provider",
			Name:      "http_requests_total",
			Help:      "HTTP requests by API surface, resource kind and status class.",
		},
		[]string{"surface", "resource", "method", "status_class"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mock_provider",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by API surface and resource kind.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"surface", "resource"},
	)

	twilioErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mock_provider",
			Name:      "twilio_errors_total",
			Help:      "Twilio-style error responses by error code.",
		},
		[]string{"code"},
	)
)

// routeLabels maps a chi route pattern to the API surface it belongs to and
// the resource kind it serves.
func routeLabels(pattern string) (surface, resource string) {
	switch {
	case pattern == "":
		return "unmatched", "none"
	case strings.HasPrefix(pattern, "/"+domain.APIVersion+"/"):
		surface = "twilio"
	case strings.HasPrefix(pattern, "/api/"):
		surface = "admin"
	case pattern == "/metrics":
		return "metrics", "none"
	default:
		return "utility", "none"
	}

	lower := strings.ToLower(pattern)
	switch {
	case strings.Contains(lower, "/messages"):
		resource = domain.ResourceKindMessage.String()
	case strings.Contains(lower, "/calls"):
		resource = domain.ResourceKindCall.String()
	case strings.Contains(lower, "/callbacks"):
		resource = "callback_log"
	case strings.Contains(lower, "{kind}"):
		resource = "any"
	default:
		resource = "none"
	}
	return surface, resource
}

func statusClass(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	return strconv.Itoa(code/100) + "xx"
}

// PrometheusMetricsMiddleware records request count and latency per API
// surface and resource kind.
func PrometheusMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		var pattern string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			pattern = rctx.RoutePattern()
		}
		surface, resource := routeLabels(pattern)

		httpRequestDurationSeconds.WithLabelValues(surface, resource).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(surface, resource, r.Method, statusClass(ww.Status())).Inc()
	})
}

// AuthSettings configures HTTP Basic authentication of the provider API.
type AuthSettings struct {
	Required   bool
	AccountSID string
	AuthToken  string
}

// BasicAuth checks the account SID and auth token the way Twilio clients send
// them. It is a no-op when authentication is not required.
func BasicAuth(settings AuthSettings, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !settings.Required {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(settings.AccountSID)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(settings.AuthToken)) != 1 {
				logger.WarnContext(r.Context(), "Authentication failed",
					"request_id", middleware.GetReqID(r.Context()), "credentials_present", ok)
				w.Header().Set("WWW-Authenticate", `Basic realm="Twilio API"`)
				writeTwilioError(w, logger, http.StatusUnauthorized, app.CodeAuthenticationFailed, "Authenticate")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
