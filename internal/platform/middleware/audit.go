package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/opd/opd/internal/platform/auth"
)

// AuditEntry records one operator action against the queue: who did what,
// when, from where, and how it ended.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Action     string // create, update, call-next, ...
	Path       string
	Method     string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries. Tests and alternative sinks provide
// their own implementation; the default falls back to structured logging.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

func actionForMethod(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}

// Audit returns middleware that records every mutating operator action.
// Reads are not audited; the queue has no confidential read paths beyond
// what the role gate already covers.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			action := actionForMethod(c.Request().Method)
			if action == "" {
				return err
			}

			ctx := c.Request().Context()
			rid, _ := c.Get("request_id").(string)
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Action:     action,
				Path:       c.Request().URL.Path,
				Method:     c.Request().Method,
				IPAddress:  c.RealIP(),
				RequestID:  rid,
				StatusCode: c.Response().Status,
				Timestamp:  time.Now(),
			}

			if len(recorders) > 0 {
				for _, r := range recorders {
					if recErr := r.RecordAccess(entry); recErr != nil {
						logger.Warn().Err(recErr).Msg("audit recorder failed")
					}
				}
				return err
			}

			logger.Info().
				Str("user_id", entry.UserID).
				Strs("roles", entry.UserRoles).
				Str("action", entry.Action).
				Str("path", entry.Path).
				Str("request_id", entry.RequestID).
				Int("status", entry.StatusCode).
				Msg("operator action")

			return err
		}
	}
}
