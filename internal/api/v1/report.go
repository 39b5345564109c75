package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
)

// GetVisitsReport streams the CSV export, paginating the aggregation until
// the recording stream is exhausted. The limit parameter is ignored here;
// an export always covers the whole filtered range.
func (c *Controller) GetVisitsReport(ctx echo.Context) error {
	start := time.Now()

	q, err := c.parseVisitQuery(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid query parameters", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()
	params := q.params
	params.RequestVisits = 0
	params.Limit = 0

	// The first page is fetched before any bytes are written so an early
	// failure still produces a clean JSON error.
	result, err := c.engine.Run(reqCtx, params)
	if err != nil {
		c.recordOpError("report", metrics.OpRenderReport, err, start)
		return c.HandleError(ctx, err, "Failed to generate report", http.StatusInternalServerError)
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", reportFileName(time.Now())))
	res.WriteHeader(http.StatusOK)

	w := c.assembler.NewCSVWriter(res)
	for {
		if err := w.Append(result.Visits); err != nil {
			c.recordOpError("report", metrics.OpRenderReport, err, start)
			return err
		}
		if err := w.Flush(); err != nil {
			c.recordOpError("report", metrics.OpRenderReport, err, start)
			return err
		}
		res.Flush()

		if !result.HasMoreVisits {
			break
		}
		if result.QueryOffset <= params.Offset {
			// A stalled offset would page forever.
			err := fmt.Errorf("report pagination stalled at offset %d", result.QueryOffset)
			c.recordOpError("report", metrics.OpRenderReport, err, start)
			return err
		}
		params.Offset = result.QueryOffset

		result, err = c.engine.Run(reqCtx, params)
		if err != nil {
			// The response is already streaming; abort the connection.
			c.recordOpError("report", metrics.OpRenderReport, err, start)
			return err
		}
	}

	c.recordOp("report", metrics.OpRenderReport, metrics.LabelSuccess, start)
	return nil
}

func reportFileName(now time.Time) string {
	return "visits-" + now.Format("20060102-150405") + ".csv"
}
