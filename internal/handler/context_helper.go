package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-manager-reports/internal/middleware"
	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/response"
)

const dateLayout = "2006-01-02"

// Upper bounds for paging and window query parameters.
const (
	maxPage       = 1000000
	maxWindowDays = 3650
)

// managerFromContext returns the gate's manager context or writes a 401.
func managerFromContext(c *gin.Context) (*models.ManagerContext, bool) {
	manager := middleware.Manager(c)
	if manager == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return manager, true
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
	}
	return id, nil
}

func parseOptionalID(raw, name string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(raw, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parsePositive returns 0 for an empty value so the service fallback applies.
func parsePositive(raw, name string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
	}
	return v, nil
}

func parseBounded(raw, name string, limit int) (int, error) {
	v, err := parsePositive(raw, name)
	if err != nil {
		return 0, err
	}
	if v > limit {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must not exceed %d", name, limit))
	}
	return v, nil
}

// parseDate reads YYYY-MM-DD in loc as unix seconds. endOfDay moves to the last second of that day.
func parseDate(raw, name string, loc *time.Location, endOfDay bool) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a date formatted YYYY-MM-DD")
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Unix() - 1, nil
	}
	return day.Unix(), nil
}

func parseFormat(raw string) (models.ReportFormat, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return models.ReportFormatHTML, nil
	}
	format := models.ReportFormat(raw)
	if !format.Valid() {
		return "", appErrors.ErrUnsupportedFormat
	}
	return format, nil
}

// parseFlag accepts the HTML checkbox "on" next to the strconv boolean spellings.
func parseFlag(raw, name string, fallback bool) (bool, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return fallback, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, name+" must be a boolean")
	}
	return v, nil
}
