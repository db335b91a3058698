package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "ledgerly/internal/errors"
	"ledgerly/internal/services"
)

// AnalyticsHandler handles read-only aggregation requests over the ledger.
type AnalyticsHandler struct {
	analyticsService services.AnalyticsServicer
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService services.AnalyticsServicer) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// parseDateRange reads the required from_date/to_date query parameters.
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	fromStr := c.Query("from_date")
	toStr := c.Query("to_date")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_date and to_date are required")
	}

	from, err := parseFlexibleTime(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from_date format, use RFC3339 or YYYY-MM-DD")
	}

	to, err := parseFlexibleTime(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to_date format, use RFC3339 or YYYY-MM-DD")
	}

	return from, to, nil
}

// parseIDList parses a comma-separated list of uint IDs from a query parameter.
func parseIDList(c *gin.Context, param string) ([]uint, error) {
	v := c.Query(param)
	if v == "" {
		return nil, nil
	}

	parts := strings.Split(v, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid "+param)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// Aggregate handles time-bucketed aggregation of the user's ledger.
// @Summary     Aggregate transactions by time bucket
// @Description Roll up the user's transactions into day, week, or month buckets with net signed totals and per-category breakdowns. Credits count positive, debits negative.
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       from_date    query string true  "Range start (RFC3339 or YYYY-MM-DD, inclusive)"
// @Param       to_date      query string true  "Range end (RFC3339 or YYYY-MM-DD, inclusive)"
// @Param       bucket       query string false "Bucket size (day, week, month; default day)"
// @Param       account_ids  query string false "Comma-separated account IDs to include"
// @Param       category_ids query string false "Comma-separated category IDs to include"
// @Success     200 {array} services.BucketTotal "Bucket totals in ascending order"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/aggregate [get]
func (h *AnalyticsHandler) Aggregate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	bucket := services.BucketDay
	if v := c.Query("bucket"); v != "" {
		b := services.BucketSize(v)
		switch b {
		case services.BucketDay, services.BucketWeek, services.BucketMonth:
			bucket = b
		default:
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "bucket must be day, week, or month"))
			return
		}
	}

	accountIDs, err := parseIDList(c, "account_ids")
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryIDs, err := parseIDList(c, "category_ids")
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter := services.AnalyticsFilter{AccountIDs: accountIDs, CategoryIDs: categoryIDs}
	buckets, err := h.analyticsService.Aggregate(userID, filter, from, to, bucket)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

// CategorySummary handles per-category totals over a date range.
// @Summary     Summarize transactions by category
// @Description Total signed flow and transaction count per category over a date range. Uncategorized transactions are omitted.
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       from_date query string true "Range start (RFC3339 or YYYY-MM-DD, inclusive)"
// @Param       to_date   query string true "Range end (RFC3339 or YYYY-MM-DD, inclusive)"
// @Success     200 {array} services.CategoryTotal "Category totals sorted by name"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/categories [get]
func (h *AnalyticsHandler) CategorySummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	totals, err := h.analyticsService.CategorySummary(userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": totals})
}
