package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"roombooker/internal/dto"
	"roombooker/pkg/validator"
)

// Accepted query time layouts. The zoneless one is read as UTC.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05"}

func pathID(c *ginext.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		dto.FieldIncorrectError(c, name)
		return 0, false
	}
	return id, true
}

func queryID(c *ginext.Context, name string, required bool) (*int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		if required {
			dto.BadResponseError(c, dto.FieldIncorrect, "Query parameter '"+name+"' is required")
			return nil, false
		}
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		dto.FieldIncorrectError(c, name)
		return nil, false
	}
	return &id, true
}

func queryTime(c *ginext.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	dto.FieldBadFormatError(c, name)
	return time.Time{}, false
}

// bind decodes and validates the JSON body into req, answering 400 on failure.
func bind(c *ginext.Context, log *zerolog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("failed to parse request body")
		dto.BadResponseError(c, dto.FieldIncorrect, "Invalid JSON format")
		return false
	}
	if verr := validator.Validate(c, req); verr != nil {
		log.Error().Msgf("validation failed: %v", verr)
		dto.BadResponseError(c, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return false
	}
	return true
}

func bindQuery(c *ginext.Context, log *zerolog.Logger, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("failed to parse query")
		dto.BadResponseError(c, dto.FieldIncorrect, "Invalid query parameters")
		return false
	}
	if verr := validator.Validate(c, req); verr != nil {
		log.Warn().Msgf("validation failed: %v", verr)
		dto.BadResponseError(c, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return false
	}
	return true
}

func nopIfNil(log *zerolog.Logger) *zerolog.Logger {
	if log == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return log
}
