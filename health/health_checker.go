// Package health reports whether the served product set is fresh.
package health

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/giygas/dpd-api/interfaces"
)

// The registry publishes a new extract at most once a day, and an unchanged
// source does not reload the data, so the thresholds are in days.
const (
	degradedAge  = 3 * 24 * time.Hour
	unhealthyAge = 7 * 24 * time.Hour
	stuckUpdate  = 6 * time.Hour
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	schedule  []time.Duration
}

// NewHealthChecker creates a health checker. updateTimes uses the scheduler
// format, e.g. "06:00;18:00". An invalid value falls back to 06:00.
func NewHealthChecker(dataStore interfaces.DataStore, updateTimes string) interfaces.HealthChecker {
	schedule, err := ParseUpdateTimes(updateTimes)
	if err != nil {
		schedule = []time.Duration{6 * time.Hour}
	}
	return &HealthCheckerImpl{
		dataStore: dataStore,
		schedule:  schedule,
	}
}

// HealthCheck returns the health status of the data with the HTTP status
// the /health endpoint should use.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	products := h.dataStore.GetProducts()
	clusters := h.dataStore.GetClusters()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := time.Since(lastUpdate)

	switch {
	case len(products) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > unhealthyAge:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > degradedAge:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > stuckUpdate:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"next_update":    h.CalculateNextUpdate().Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"products":       len(products),
		"trademarks":     len(clusters),
		"is_updating":    isUpdating,
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled update time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return NextUpdate(h.schedule, time.Now())
}

// ParseUpdateTimes parses a semicolon separated list of HH:MM times into
// sorted offsets from midnight.
func ParseUpdateTimes(times string) ([]time.Duration, error) {
	var offsets []time.Duration
	for _, raw := range strings.Split(times, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, err := time.Parse("15:04", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid update time %q: %w", raw, err)
		}
		offsets = append(offsets, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("no update time in %q", times)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, nil
}

// NextUpdate returns the first scheduled time strictly after now, in now's
// location.
func NextUpdate(schedule []time.Duration, now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, offset := range schedule {
		if at := midnight.Add(offset); at.After(now) {
			return at
		}
	}
	if len(schedule) == 0 {
		return midnight.AddDate(0, 0, 1)
	}
	return midnight.AddDate(0, 0, 1).Add(schedule[0])
}
