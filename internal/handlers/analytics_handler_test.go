package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ledgerly/internal/services"
)

// --- mock analytics service ---

type mockAnalyticsService struct {
	aggregateFn       func(userID uint, filter services.AnalyticsFilter, startDate, endDate time.Time, bucket services.BucketSize) ([]services.BucketTotal, error)
	categorySummaryFn func(userID uint, startDate, endDate time.Time) ([]services.CategoryTotal, error)
}

func (m *mockAnalyticsService) Aggregate(userID uint, filter services.AnalyticsFilter, startDate, endDate time.Time, bucket services.BucketSize) ([]services.BucketTotal, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(userID, filter, startDate, endDate, bucket)
	}
	return []services.BucketTotal{}, nil
}

func (m *mockAnalyticsService) CategorySummary(userID uint, startDate, endDate time.Time) ([]services.CategoryTotal, error) {
	if m.categorySummaryFn != nil {
		return m.categorySummaryFn(userID, startDate, endDate)
	}
	return []services.CategoryTotal{}, nil
}

var _ services.AnalyticsServicer = (*mockAnalyticsService)(nil)

func setupAnalyticsRouter(handler *AnalyticsHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(1))
	auth.GET("/analytics/aggregate", handler.Aggregate)
	auth.GET("/analytics/categories", handler.CategorySummary)
	return r
}

func TestAnalyticsHandler_Aggregate(t *testing.T) {
	t.Run("returns 200 with buckets", func(t *testing.T) {
		svc := &mockAnalyticsService{
			aggregateFn: func(_ uint, _ services.AnalyticsFilter, _, _ time.Time, _ services.BucketSize) ([]services.BucketTotal, error) {
				return []services.BucketTotal{
					{BucketStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Net: -12000, ByCategory: map[uint]int64{3: -12000}},
					{BucketStart: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Net: 500000, ByCategory: map[uint]int64{1: 500000}},
				}, nil
			},
		}
		handler := NewAnalyticsHandler(svc)
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET", "/analytics/aggregate?from_date=2025-01-01&to_date=2025-01-31", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		buckets := result["buckets"].([]interface{})
		if len(buckets) != 2 {
			t.Fatalf("expected 2 buckets, got %d", len(buckets))
		}
		first := buckets[0].(map[string]interface{})
		if first["net"].(float64) != -12000 {
			t.Errorf("expected net -12000, got %v", first["net"])
		}
	})

	t.Run("passes bucket size and filters through", func(t *testing.T) {
		var gotBucket services.BucketSize
		var gotFilter services.AnalyticsFilter
		svc := &mockAnalyticsService{
			aggregateFn: func(_ uint, filter services.AnalyticsFilter, _, _ time.Time, bucket services.BucketSize) ([]services.BucketTotal, error) {
				gotBucket = bucket
				gotFilter = filter
				return []services.BucketTotal{}, nil
			},
		}
		handler := NewAnalyticsHandler(svc)
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET",
			"/analytics/aggregate?from_date=2025-01-01&to_date=2025-03-31&bucket=month&account_ids=1,2&category_ids=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotBucket != services.BucketMonth {
			t.Errorf("expected month bucket, got %v", gotBucket)
		}
		if len(gotFilter.AccountIDs) != 2 || gotFilter.AccountIDs[0] != 1 || gotFilter.AccountIDs[1] != 2 {
			t.Errorf("expected account IDs [1 2], got %v", gotFilter.AccountIDs)
		}
		if len(gotFilter.CategoryIDs) != 1 || gotFilter.CategoryIDs[0] != 5 {
			t.Errorf("expected category IDs [5], got %v", gotFilter.CategoryIDs)
		}
	})

	t.Run("defaults to day bucket", func(t *testing.T) {
		var gotBucket services.BucketSize
		svc := &mockAnalyticsService{
			aggregateFn: func(_ uint, _ services.AnalyticsFilter, _, _ time.Time, bucket services.BucketSize) ([]services.BucketTotal, error) {
				gotBucket = bucket
				return []services.BucketTotal{}, nil
			},
		}
		handler := NewAnalyticsHandler(svc)
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET", "/analytics/aggregate?from_date=2025-01-01&to_date=2025-01-31", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotBucket != services.BucketDay {
			t.Errorf("expected day bucket, got %v", gotBucket)
		}
	})

	t.Run("returns 400 on invalid bucket", func(t *testing.T) {
		handler := NewAnalyticsHandler(&mockAnalyticsService{})
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET", "/analytics/aggregate?from_date=2025-01-01&to_date=2025-01-31&bucket=year", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 when dates missing", func(t *testing.T) {
		handler := NewAnalyticsHandler(&mockAnalyticsService{})
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET", "/analytics/aggregate?from_date=2025-01-01", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on bad id list", func(t *testing.T) {
		handler := NewAnalyticsHandler(&mockAnalyticsService{})
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET", "/analytics/aggregate?from_date=2025-01-01&to_date=2025-01-31&account_ids=1,x", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAnalyticsHandler_CategorySummary(t *testing.T) {
	t.Run("returns 200 with category totals", func(t *testing.T) {
		svc := &mockAnalyticsService{
			categorySummaryFn: func(_ uint, _, _ time.Time) ([]services.CategoryTotal, error) {
				return []services.CategoryTotal{
					{CategoryID: 3, CategoryName: "Groceries", Total: -42000, Count: 7},
					{CategoryID: 1, CategoryName: "Salary", Total: 500000, Count: 1},
				}, nil
			},
		}
		handler := NewAnalyticsHandler(svc)
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET", "/analytics/categories?from_date=2025-01-01&to_date=2025-01-31", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		categories := result["categories"].([]interface{})
		if len(categories) != 2 {
			t.Fatalf("expected 2 categories, got %d", len(categories))
		}
		first := categories[0].(map[string]interface{})
		if first["category_name"] != "Groceries" {
			t.Errorf("expected Groceries, got %v", first["category_name"])
		}
		if first["count"].(float64) != 7 {
			t.Errorf("expected count 7, got %v", first["count"])
		}
	})

	t.Run("returns 400 when dates missing", func(t *testing.T) {
		handler := NewAnalyticsHandler(&mockAnalyticsService{})
		r := setupAnalyticsRouter(handler)

		rec := doRequest(r, "GET", "/analytics/categories", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
