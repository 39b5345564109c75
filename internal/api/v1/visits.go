package api

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/TheCacophonyProject/Full-Noise/internal/observability"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
	"github.com/TheCacophonyProject/Full-Noise/internal/visits"
)

// initVisitRoutes registers the visit query endpoints.
func (c *Controller) initVisitRoutes() {
	c.Group.GET("/visits", c.GetVisits)
	c.Group.GET("/visits/report", c.GetVisitsReport)
}

func visitsMetricsFrom(m *observability.Metrics) *metrics.VisitsMetrics {
	if m == nil {
		return nil
	}
	return m.Visits
}

// visitQuery is a parsed, normalized visit request.
type visitQuery struct {
	params visits.Params
	key    string
}

// parseVisitQuery reads the query parameters shared by the visit endpoints.
// Device, group and station lists are comma separated ids; from/until accept
// RFC3339 or a plain date.
func (c *Controller) parseVisitQuery(ctx echo.Context) (*visitQuery, error) {
	var q visitQuery
	var err error

	if q.params.Filter.DeviceIDs, err = parseUintList(ctx.QueryParam("devices")); err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	if q.params.Filter.GroupIDs, err = parseUintList(ctx.QueryParam("groups")); err != nil {
		return nil, fmt.Errorf("groups: %w", err)
	}
	if q.params.Filter.StationIDs, err = parseUintList(ctx.QueryParam("stations")); err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	q.params.Filter.Type = ctx.QueryParam("type")

	if q.params.Filter.From, err = parseTimeParam(ctx.QueryParam("from")); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if q.params.Filter.Until, err = parseTimeParam(ctx.QueryParam("until")); err != nil {
		return nil, fmt.Errorf("until: %w", err)
	}

	if q.params.RequestVisits, err = parseIntParam(ctx.QueryParam("limit")); err != nil {
		return nil, fmt.Errorf("limit: %w", err)
	}
	if q.params.Offset, err = parseIntParam(ctx.QueryParam("offset")); err != nil {
		return nil, fmt.Errorf("offset: %w", err)
	}

	q.key = cacheKey(&q.params)
	return &q, nil
}

func parseUintList(raw string) ([]uint, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, uint(id))
	}
	// Sorted ids keep the cache key stable across parameter orderings.
	slices.Sort(ids)
	return ids, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want RFC3339 or YYYY-MM-DD", raw)
	}
	return t, nil
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return n, nil
}

// cacheKey flattens params into a stable string. The id lists arrive sorted
// from the parser.
func cacheKey(p *visits.Params) string {
	var b strings.Builder
	writeIDs := func(prefix string, ids []uint) {
		b.WriteString(prefix)
		for i, id := range ids {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatUint(uint64(id), 10))
		}
		b.WriteByte('|')
	}
	writeIDs("d=", p.Filter.DeviceIDs)
	writeIDs("g=", p.Filter.GroupIDs)
	writeIDs("s=", p.Filter.StationIDs)
	fmt.Fprintf(&b, "t=%s|f=%d|u=%d|l=%d|o=%d",
		p.Filter.Type, p.Filter.From.UnixNano(), p.Filter.Until.UnixNano(),
		p.RequestVisits, p.Offset)
	return b.String()
}

// GetVisits runs one visit aggregation query and returns the engine result
// as JSON. Identical queries within the cache TTL are served from memory.
func (c *Controller) GetVisits(ctx echo.Context) error {
	start := time.Now()

	q, err := c.parseVisitQuery(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid query parameters", http.StatusBadRequest)
	}

	if cached, found := c.visitCache.Get(q.key); found {
		c.recordOp("visits", metrics.OpGenerateVisits, metrics.LabelHit, start)
		return ctx.JSON(http.StatusOK, cached)
	}

	result, err := c.engine.Run(ctx.Request().Context(), q.params)
	if err != nil {
		c.recordOpError("visits", metrics.OpGenerateVisits, err, start)
		return c.HandleError(ctx, err, "Failed to generate visits", http.StatusInternalServerError)
	}

	c.visitCache.Set(q.key, result, cache.DefaultExpiration)
	c.recordOp("visits", metrics.OpGenerateVisits, metrics.LabelMiss, start)
	return ctx.JSON(http.StatusOK, result)
}
