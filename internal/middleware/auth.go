package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-portal/internal/auth"
	"clinic-portal/internal/session"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// CookieName carries the portal token for browser sessions.
const CookieName = "portal_token"

func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

func bearer(h string) string {
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// wrapped stream so handlers see the authenticated context
type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authStream) Context() context.Context { return s.ctx }

// Auth checks the bearer token on every gRPC call except the open methods.
func Auth(secret string, open ...string) grpc.StreamServerInterceptor {
	skip := make(map[string]bool, len(open))
	for _, m := range open {
		skip[m] = true
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		if skip[info.FullMethod] {
			return next(srv, ss)
		}

		md, ok := metadata.FromIncomingContext(ss.Context())
		if !ok {
			return status.Error(codes.Unauthenticated, "missing metadata")
		}

		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = bearer(vals[0])
		}
		if raw == "" {
			return status.Error(codes.Unauthenticated, "no token")
		}

		claims, err := auth.ParseToken(raw, secret)
		if err != nil {
			return status.Error(codes.Unauthenticated, "bad token")
		}
		return next(srv, &authStream{ServerStream: ss, ctx: WithClaims(ss.Context(), claims)})
	}
}

// Session authenticates browser and API requests from the Authorization
// header or the portal cookie, and attaches the user's session.
func Session(secret string, st *session.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			raw := bearer(req.Header.Get("Authorization"))
			if raw == "" {
				if ck, err := c.Cookie(CookieName); err == nil {
					raw = ck.Value
				}
			}
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue.")
			}
			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Your session has expired. Please log in again.")
			}

			s := st.Get(claims)
			ctx := session.NewContext(WithClaims(req.Context(), claims), s)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// RequireDoctor rejects sessions that don't belong to a doctor.
func RequireDoctor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, ok := session.FromContext(c.Request().Context())
		if !ok || !s.IsDoctor() {
			return echo.NewHTTPError(http.StatusForbidden, "This page is only available to doctors.")
		}
		return next(c)
	}
}
