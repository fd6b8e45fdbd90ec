package httpapi

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
	platformi18n "github.com/louisbranch/gathering.space/internal/platform/i18n"
	"github.com/louisbranch/gathering.space/internal/platform/requestctx"
	"github.com/louisbranch/gathering.space/internal/services/shared/authctx"
)

const (
	contextKeyUserID   = "user_id"
	contextKeyLanguage = "language"

	// AccessTokenParam carries the bearer token on websocket upgrades,
	// where browsers cannot set an Authorization header.
	AccessTokenParam = "access_token"

	tracerName = "github.com/louisbranch/gathering.space/internal/services/shared/httpapi"
)

// Recovery converts handler panics into a 500 error response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				WriteError(c, apperrors.New(apperrors.CodeUnknown, fmt.Sprintf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// AccessLog writes one log line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

// Tracing opens a server span per request, continuing any inbound trace.
func Tracing(service string) gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("service.name", service),
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetAttributes(attribute.Bool("error", true))
		}
	}
}

// Language resolves the response language from ?lang= or Accept-Language.
func Language() gin.HandlerFunc {
	return func(c *gin.Context) {
		tag, ok := platformi18n.ParseTag(c.Query("lang"))
		if !ok {
			tag = platformi18n.FromAcceptLanguage(c.GetHeader("Accept-Language"))
		}
		c.Set(contextKeyLanguage, tag)
		c.Next()
	}
}

// LanguageTag returns the tag chosen by Language, or the default.
func LanguageTag(c *gin.Context) language.Tag {
	if c != nil {
		if value, ok := c.Get(contextKeyLanguage); ok {
			if tag, ok := value.(language.Tag); ok {
				return tag
			}
		}
	}
	return platformi18n.DefaultTag()
}

// Printer returns a message printer for the request language.
func Printer(c *gin.Context) *message.Printer {
	return message.NewPrinter(LanguageTag(c))
}

// Authenticate requires a valid bearer token and stores the caller identity
// on both the gin context and the request context.
func Authenticate(verifier authctx.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			WriteError(c, apperrors.New(apperrors.CodeUnknown, "token verifier is not configured"))
			c.Abort()
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			WriteError(c, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required"))
			c.Abort()
			return
		}
		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			WriteError(c, apperrors.Wrap(apperrors.CodeUnauthenticated, "token is invalid", err))
			c.Abort()
			return
		}

		ctx := requestctx.WithUserID(c.Request.Context(), identity.UserID)
		ctx = requestctx.WithRoles(ctx, identity.Roles)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextKeyUserID, identity.UserID)
		c.Next()
	}
}

// UserID returns the authenticated caller set by Authenticate.
func UserID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get(contextKeyUserID); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return requestctx.UserIDFromContext(c.Request.Context())
}

// RequireRole rejects callers that lack role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requestctx.HasRole(c.Request.Context(), role) {
			WriteError(c, apperrors.New(apperrors.CodeForbidden, "role "+role+" is required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		return token, found && token != ""
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		token := strings.TrimSpace(c.Query(AccessTokenParam))
		return token, token != ""
	}
	return "", false
}
