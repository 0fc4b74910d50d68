package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/zatekoja/localservices/internal/adapters/providers/geolocation"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
)

const (
	UserIDHeader         = "X-User-ID"
	UserRoleHeader       = "X-User-Role"
	DeviceLocationHeader = "X-Device-Location"
	RequestIDHeader      = "X-Request-ID"
)

type callerKey struct{}

// Caller is the identity attached to a request. Authentication happens
// upstream; the gateway forwards the resolved user id and role.
type Caller struct {
	UserID string
	Role   entities.Role
}

// CallerFromContext returns the caller attached by IdentityMiddleware
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.UserID != ""
}

// WithCaller attaches a caller to ctx
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// IdentityMiddleware reads the caller identity headers and tags the request
// with a request id. Requests without X-User-ID pass through anonymous.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		// EventSource cannot set headers, so streams may pass the id in the query.
		if userID == "" && strings.HasPrefix(r.URL.Path, "/api/stream/") {
			userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
		}
		if userID != "" {
			rawRole := r.Header.Get(UserRoleHeader)
			if rawRole == "" {
				rawRole = r.URL.Query().Get("role")
			}
			role := entities.Role(strings.ToLower(strings.TrimSpace(rawRole)))
			if role != entities.RoleProvider {
				role = entities.RoleClient
			}
			ctx = WithCaller(ctx, Caller{UserID: userID, Role: role})
			ctx = observability.WithUserID(ctx, userID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceLocationMiddleware attaches the device position sent as
// "X-Device-Location: lat,lon" or as lat/lon query parameters. Malformed
// positions are ignored, which downstream reads as a denied permission.
func DeviceLocationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(DeviceLocationHeader)
		if raw == "" {
			q := r.URL.Query()
			if lat, lon := q.Get("lat"), q.Get("lon"); lat != "" && lon != "" {
				raw = lat + "," + lon
			}
		}
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		coord, err := entities.ParseCoordinate(raw)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Debug().Err(err).Msg("ignoring malformed device location")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(geolocation.WithDeviceLocation(r.Context(), coord)))
	})
}
