package ingestion

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	httperr "github.com/swooby/alfredd/internal/core/errors"
	"github.com/swooby/alfredd/internal/core/ingest"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgInvalidQuery   = "Invalid query parameters"
	msgListFailed     = "Failed to list events"

	defaultListLimit   = 500
	defaultDigestHours = 1
)

// ingestionError carries the structured HTTP error shape from a helper
// back to the handler. Helpers return this instead of writing to
// gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// SubmitHandler accepts a RawEvent and hands it to the ingest engine.
// Submission is fire-and-forget: a 202 means "enqueued or dropped",
// never "emitted" — overload drops are silent by contract.
func (s *Service) SubmitHandler(c *gin.Context) {
	raw, payloadSize, err := s.parseRawEvent(c)
	if err != nil {
		writeError(c, err)
		return
	}

	slog.Info("Received Event",
		"event_id", raw.Event.EventID,
		"user_id", raw.Event.UserID,
		"event_type", raw.Event.EventType,
		"coalesce_key", raw.CoalesceKey,
		"payload_size", payloadSize)

	s.engine.Submit(*raw)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// parseRawEvent reads the raw request body and binds it into a
// RawEvent. A missing event id is assigned server-side.
func (s *Service) parseRawEvent(c *gin.Context) (*ingest.RawEvent, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var raw ingest.RawEvent
	if err := c.ShouldBindJSON(&raw); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	if raw.Event.EventID == "" {
		raw.Event.EventID = uuid.NewString()
	}

	if err := raw.Event.Validate(); err != nil {
		slog.Warn("Envelope validation failed", "error", err, "event_id", raw.Event.EventID)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    err.Error(),
		}
	}

	return &raw, len(bodyBytes), nil
}

// ListEventsHandler returns a user's events inside a time range,
// newest first. Defaults: the last 24 hours, capped at 500.
func (s *Service) ListEventsHandler(c *gin.Context) {
	userID := c.Param("user_id")

	now := time.Now().UTC()
	from, to, limit, err := parseListQuery(c, now)
	if err != nil {
		writeError(c, err)
		return
	}

	events, listErr := s.store.ListByTime(c.Request.Context(), userID, from, to, limit)
	if listErr != nil {
		slog.Error("Failed to list events", "error", listErr, "user_id", userID)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgListFailed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"from":    from,
		"to":      to,
		"events":  events,
	})
}

// DigestHandler renders an on-demand digest over the trailing window.
func (s *Service) DigestHandler(c *gin.Context) {
	userID := c.Param("user_id")

	hours := defaultDigestHours
	if v := c.Query("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(c, &ingestionError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidQueryError,
				message:    msgInvalidQuery,
				details:    map[string]interface{}{"hours": v},
			})
			return
		}
		hours = parsed
	}

	now := time.Now().UTC()
	from := now.Add(-time.Duration(hours) * time.Hour)

	events, err := s.store.ListByTime(c.Request.Context(), userID, from, now, 5000)
	if err != nil {
		slog.Error("Failed to load events for digest", "error", err, "user_id", userID)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgListFailed,
		})
		return
	}

	title := "Last hour"
	if hours != 1 {
		title = "Last " + strconv.Itoa(hours) + " hours"
	}

	c.JSON(http.StatusOK, s.summarizer.Digest(title, events))
}

func parseListQuery(c *gin.Context, now time.Time) (from, to time.Time, limit int, err *ingestionError) {
	from = now.Add(-24 * time.Hour)
	to = now
	limit = defaultListLimit

	badQuery := func(key, value string) *ingestionError {
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidQueryError,
			message:    msgInvalidQuery,
			details:    map[string]interface{}{key: value},
		}
	}

	if v := c.Query("from"); v != "" {
		parsed, parseErr := time.Parse(time.RFC3339, v)
		if parseErr != nil {
			return from, to, limit, badQuery("from", v)
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, parseErr := time.Parse(time.RFC3339, v)
		if parseErr != nil {
			return from, to, limit, badQuery("to", v)
		}
		to = parsed
	}
	if v := c.Query("limit"); v != "" {
		parsed, parseErr := strconv.Atoi(v)
		if parseErr != nil || parsed <= 0 {
			return from, to, limit, badQuery("limit", v)
		}
		limit = parsed
	}

	return from, to, limit, nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
