package services

import (
	"testing"
	"time"

	"ledgerly/internal/models"
	"ledgerly/internal/testutil"
)

func TestAggregate(t *testing.T) {
	t.Run("day_buckets_with_signed_net", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		svc := NewAnalyticsService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		_, err := ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeCredit, 5000, "", day(0))
		testutil.AssertNoError(t, err)
		_, err = ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeDebit, 2000, "", day(0))
		testutil.AssertNoError(t, err)
		_, err = ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeDebit, 1000, "", day(1))
		testutil.AssertNoError(t, err)

		buckets, err := svc.Aggregate(user.ID, AnalyticsFilter{}, day(0), day(5), BucketDay)
		testutil.AssertNoError(t, err)
		if len(buckets) != 2 {
			t.Fatalf("expected 2 buckets, got %d", len(buckets))
		}
		if buckets[0].Net != 3000 {
			t.Errorf("expected day-0 net 3000, got %d", buckets[0].Net)
		}
		if buckets[1].Net != -1000 {
			t.Errorf("expected day-1 net -1000, got %d", buckets[1].Net)
		}
		if !buckets[0].BucketStart.Before(buckets[1].BucketStart) {
			t.Error("expected buckets ordered by start ascending")
		}
	})

	t.Run("week_buckets_start_monday", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		svc := NewAnalyticsService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		// 2025-01-01 is a Wednesday; its week starts Monday 2024-12-30.
		_, err := ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeCredit, 100, "", day(0))
		testutil.AssertNoError(t, err)

		buckets, err := svc.Aggregate(user.ID, AnalyticsFilter{}, day(-7), day(7), BucketWeek)
		testutil.AssertNoError(t, err)
		if len(buckets) != 1 {
			t.Fatalf("expected 1 bucket, got %d", len(buckets))
		}
		want := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
		if !buckets[0].BucketStart.Equal(want) {
			t.Errorf("expected week bucket start %v, got %v", want, buckets[0].BucketStart)
		}
	})

	t.Run("month_buckets", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		svc := NewAnalyticsService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		_, err := ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeDebit, 100, "", day(5))
		testutil.AssertNoError(t, err)
		_, err = ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeDebit, 200, "", day(40))
		testutil.AssertNoError(t, err)

		buckets, err := svc.Aggregate(user.ID, AnalyticsFilter{}, day(0), day(60), BucketMonth)
		testutil.AssertNoError(t, err)
		if len(buckets) != 2 {
			t.Fatalf("expected 2 month buckets, got %d", len(buckets))
		}
	})

	t.Run("per_category_breakdown", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		svc := NewAnalyticsService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		food := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		_, err := ledger.CreateTransaction(user.ID, account.ID, &food.ID, models.EntryTypeDebit, 1500, "", day(0))
		testutil.AssertNoError(t, err)
		_, err = ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeCredit, 5000, "", day(0))
		testutil.AssertNoError(t, err)

		buckets, err := svc.Aggregate(user.ID, AnalyticsFilter{}, day(0), day(1), BucketDay)
		testutil.AssertNoError(t, err)
		if len(buckets) != 1 {
			t.Fatalf("expected 1 bucket, got %d", len(buckets))
		}
		if buckets[0].ByCategory[food.ID] != -1500 {
			t.Errorf("expected category breakdown -1500, got %d", buckets[0].ByCategory[food.ID])
		}
	})

	t.Run("account_filter", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		svc := NewAnalyticsService(db)
		user := testutil.CreateTestUser(t, db)
		a := testutil.CreateTestAccount(t, db, user.ID)
		b := testutil.CreateTestAccount(t, db, user.ID)

		_, err := ledger.CreateTransaction(user.ID, a.ID, nil, models.EntryTypeCredit, 1000, "", day(0))
		testutil.AssertNoError(t, err)
		_, err = ledger.CreateTransaction(user.ID, b.ID, nil, models.EntryTypeCredit, 2000, "", day(0))
		testutil.AssertNoError(t, err)

		buckets, err := svc.Aggregate(user.ID, AnalyticsFilter{AccountIDs: []uint{a.ID}}, day(0), day(1), BucketDay)
		testutil.AssertNoError(t, err)
		if len(buckets) != 1 || buckets[0].Net != 1000 {
			t.Errorf("expected only account-a flow of 1000, got %+v", buckets)
		}
	})

	t.Run("deleted_excluded", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		svc := NewAnalyticsService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		txn, err := ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeCredit, 1000, "", day(0))
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, ledger.DeleteTransaction(user.ID, txn.ID))

		buckets, err := svc.Aggregate(user.ID, AnalyticsFilter{}, day(0), day(1), BucketDay)
		testutil.AssertNoError(t, err)
		if len(buckets) != 0 {
			t.Errorf("expected no buckets after delete, got %d", len(buckets))
		}
	})

	t.Run("invalid_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAnalyticsService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.Aggregate(user.ID, AnalyticsFilter{}, day(5), day(0), BucketDay)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestCategorySummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := NewLedgerService(db)
	svc := NewAnalyticsService(db)
	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccount(t, db, user.ID)
	food := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
	salary := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeIncome)

	_, err := ledger.CreateTransaction(user.ID, account.ID, &food.ID, models.EntryTypeDebit, 1500, "", day(0))
	testutil.AssertNoError(t, err)
	_, err = ledger.CreateTransaction(user.ID, account.ID, &food.ID, models.EntryTypeDebit, 500, "", day(1))
	testutil.AssertNoError(t, err)
	_, err = ledger.CreateTransaction(user.ID, account.ID, &salary.ID, models.EntryTypeCredit, 90000, "", day(1))
	testutil.AssertNoError(t, err)
	// Uncategorized flow does not appear in the summary.
	_, err = ledger.CreateTransaction(user.ID, account.ID, nil, models.EntryTypeDebit, 9999, "", day(1))
	testutil.AssertNoError(t, err)

	totals, err := svc.CategorySummary(user.ID, day(0), day(5))
	testutil.AssertNoError(t, err)
	if len(totals) != 2 {
		t.Fatalf("expected 2 category totals, got %d", len(totals))
	}

	byID := make(map[uint]CategoryTotal)
	for _, total := range totals {
		byID[total.CategoryID] = total
	}
	if byID[food.ID].Total != -2000 || byID[food.ID].Count != 2 {
		t.Errorf("expected food total -2000 over 2 entries, got %+v", byID[food.ID])
	}
	if byID[salary.ID].Total != 90000 || byID[salary.ID].Count != 1 {
		t.Errorf("expected salary total 90000 over 1 entry, got %+v", byID[salary.ID])
	}
}
