package api

import (
	"net/http"

	"github.com/skychatorg/skyplayer/internal/playback"
)

// ErrorResponse is the uniform error envelope for API failures
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps playback errors onto HTTP status codes following the
// validation / conflict / permission / state taxonomy.
func statusFor(err error) (int, string) {
	switch {
	case playback.IsChannelNotFound(err):
		return http.StatusNotFound, "channel_not_found"
	case playback.IsDuplicateItem(err):
		return http.StatusConflict, "duplicate_item"
	case playback.IsScheduleConflict(err):
		return http.StatusConflict, "schedule_conflict"
	case playback.IsInvalidTimeRange(err):
		return http.StatusBadRequest, "invalid_time_range"
	case playback.IsNothingPlaying(err):
		return http.StatusConflict, "nothing_playing"
	case playback.IsNotAllowed(err):
		return http.StatusForbidden, "not_allowed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
