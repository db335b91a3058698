package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestBudgetFlow_CreateAndCheckProgress(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "budget@test.com", "password123")

	categoryID := app.createCategory(t, token, "Groceries", "expense")
	accountID := app.createAccount(t, token, "Checking", 50000)

	// Create a monthly budget of $200 for the category
	now := time.Now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	rec := app.request("POST", "/api/v1/budgets",
		fmt.Sprintf(`{"category_id":%.0f,"name":"Grocery Budget","amount":20000,"period":"monthly","start_date":%q}`,
			categoryID, startDate.Format(time.RFC3339)), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating budget, got %d: %s", rec.Code, rec.Body.String())
	}
	budgetResult := parseJSON(t, rec)
	budget := budgetResult["budget"].(map[string]interface{})
	budgetID := budget["id"].(float64)

	// Check progress before any spending
	rec = app.request("GET", fmt.Sprintf("/api/v1/budgets/%.0f/progress", budgetID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progressResult := parseJSON(t, rec)
	progress := progressResult["progress"].(map[string]interface{})
	if progress["spent"].(float64) != 0 {
		t.Errorf("expected 0 spent before transactions, got %.0f", progress["spent"].(float64))
	}
	if progress["remaining"].(float64) != 20000 {
		t.Errorf("expected 20000 remaining, got %.0f", progress["remaining"].(float64))
	}
	if progress["status"] != "on_track" {
		t.Errorf("expected on_track, got %v", progress["status"])
	}

	// Debit $80 and $50 in the current month against this category
	for _, amount := range []int{8000, 5000} {
		rec = app.request("POST", "/api/v1/transactions",
			fmt.Sprintf(`{"account_id":%.0f,"type":"debit","amount":%d,"category_id":%.0f,"description":"Groceries","date":%q}`,
				accountID, amount, categoryID, now.Format(time.RFC3339)), token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	// Check progress: $130 spent out of $200
	rec = app.request("GET", fmt.Sprintf("/api/v1/budgets/%.0f/progress", budgetID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progressResult = parseJSON(t, rec)
	progress = progressResult["progress"].(map[string]interface{})
	if progress["spent"].(float64) != 13000 {
		t.Errorf("expected 13000 spent (8000+5000), got %.0f", progress["spent"].(float64))
	}
	if progress["remaining"].(float64) != 7000 {
		t.Errorf("expected 7000 remaining (20000-13000), got %.0f", progress["remaining"].(float64))
	}
	if progress["percentage"].(float64) != 0.65 {
		t.Errorf("expected percentage 0.65, got %v", progress["percentage"])
	}
}

func TestBudgetFlow_OverBudget(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "overbudget@test.com", "password123")

	catID := app.createCategory(t, token, "Dining", "expense")
	acctID := app.createAccount(t, token, "Wallet", 100000)

	now := time.Now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	rec := app.request("POST", "/api/v1/budgets",
		fmt.Sprintf(`{"category_id":%.0f,"name":"Dining Budget","amount":5000,"period":"monthly","start_date":%q}`,
			catID, startDate.Format(time.RFC3339)), token)
	budgetID := parseJSON(t, rec)["budget"].(map[string]interface{})["id"].(float64)

	// Spend $75 on a $50 budget
	app.request("POST", "/api/v1/transactions",
		fmt.Sprintf(`{"account_id":%.0f,"type":"debit","amount":7500,"category_id":%.0f,"date":%q}`,
			acctID, catID, now.Format(time.RFC3339)), token)

	rec = app.request("GET", fmt.Sprintf("/api/v1/budgets/%.0f/progress", budgetID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progress := parseJSON(t, rec)["progress"].(map[string]interface{})
	if progress["spent"].(float64) != 7500 {
		t.Errorf("expected 7500 spent, got %.0f", progress["spent"].(float64))
	}
	if progress["remaining"].(float64) != -2500 {
		t.Errorf("expected -2500 remaining, got %.0f", progress["remaining"].(float64))
	}
	if progress["status"] != "exceeded" {
		t.Errorf("expected exceeded, got %v", progress["status"])
	}
}

func TestBudgetFlow_SubtreeRollUp(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "subtree@test.com", "password123")

	parentID := app.createCategory(t, token, "Food", "expense")
	rec := app.request("POST", "/api/v1/categories",
		fmt.Sprintf(`{"name":"Restaurants","type":"expense","parent_id":%.0f}`, parentID), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating child, got %d: %s", rec.Code, rec.Body.String())
	}
	childID := parseJSON(t, rec)["category"].(map[string]interface{})["id"].(float64)

	acctID := app.createAccount(t, token, "Checking", 100000)

	now := time.Now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	rec = app.request("POST", "/api/v1/budgets",
		fmt.Sprintf(`{"category_id":%.0f,"name":"Food Budget","amount":30000,"period":"monthly","start_date":%q}`,
			parentID, startDate.Format(time.RFC3339)), token)
	budgetID := parseJSON(t, rec)["budget"].(map[string]interface{})["id"].(float64)

	// Spend against both the parent and the child category
	app.request("POST", "/api/v1/transactions",
		fmt.Sprintf(`{"account_id":%.0f,"type":"debit","amount":4000,"category_id":%.0f,"date":%q}`,
			acctID, parentID, now.Format(time.RFC3339)), token)
	app.request("POST", "/api/v1/transactions",
		fmt.Sprintf(`{"account_id":%.0f,"type":"debit","amount":6000,"category_id":%.0f,"date":%q}`,
			acctID, childID, now.Format(time.RFC3339)), token)

	// Parent budget rolls up the child's spending
	rec = app.request("GET", fmt.Sprintf("/api/v1/budgets/%.0f/progress", budgetID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progress := parseJSON(t, rec)["progress"].(map[string]interface{})
	if progress["spent"].(float64) != 10000 {
		t.Errorf("expected 10000 spent across subtree, got %.0f", progress["spent"].(float64))
	}
}

func TestBudgetFlow_CRUDOperations(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "budgetcrud@test.com", "password123")

	catID := app.createCategory(t, token, "Utilities", "expense")

	now := time.Now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	// Create budget
	rec := app.request("POST", "/api/v1/budgets",
		fmt.Sprintf(`{"category_id":%.0f,"name":"Utility Budget","amount":15000,"period":"monthly","start_date":%q}`,
			catID, startDate.Format(time.RFC3339)), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	budgetID := parseJSON(t, rec)["budget"].(map[string]interface{})["id"].(float64)

	// Get budget
	rec = app.request("GET", fmt.Sprintf("/api/v1/budgets/%.0f", budgetID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	budget := parseJSON(t, rec)["budget"].(map[string]interface{})
	if budget["name"] != "Utility Budget" {
		t.Errorf("expected name 'Utility Budget', got %v", budget["name"])
	}

	// Update budget name and amount
	rec = app.request("PUT", fmt.Sprintf("/api/v1/budgets/%.0f", budgetID),
		`{"name":"Updated Utilities","amount":20000}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := parseJSON(t, rec)["budget"].(map[string]interface{})
	if updated["name"] != "Updated Utilities" {
		t.Errorf("expected name 'Updated Utilities', got %v", updated["name"])
	}
	if updated["amount"].(float64) != 20000 {
		t.Errorf("expected amount 20000, got %.0f", updated["amount"].(float64))
	}

	// List budgets
	rec = app.request("GET", "/api/v1/budgets", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	listResult := parseJSON(t, rec)
	if listResult["total_items"].(float64) != 1 {
		t.Errorf("expected 1 budget in list, got %.0f", listResult["total_items"].(float64))
	}

	// Delete budget
	rec = app.request("DELETE", fmt.Sprintf("/api/v1/budgets/%.0f", budgetID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Verify deleted (should 404)
	rec = app.request("GET", fmt.Sprintf("/api/v1/budgets/%.0f", budgetID), "", token)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after deletion, got %d", rec.Code)
	}
}

func TestBudgetFlow_CreditsIgnoredForExpenseBudget(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "budgetcredit@test.com", "password123")

	catID := app.createCategory(t, token, "Refunds", "expense")
	acctID := app.createAccount(t, token, "Cash", 50000)

	now := time.Now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	rec := app.request("POST", "/api/v1/budgets",
		fmt.Sprintf(`{"category_id":%.0f,"name":"Refund Budget","amount":10000,"period":"monthly","start_date":%q}`,
			catID, startDate.Format(time.RFC3339)), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating budget, got %d: %s", rec.Code, rec.Body.String())
	}
	budgetID := parseJSON(t, rec)["budget"].(map[string]interface{})["id"].(float64)

	// A refund credited against an expense category must not count as spending
	app.request("POST", "/api/v1/transactions",
		fmt.Sprintf(`{"account_id":%.0f,"type":"credit","amount":5000,"category_id":%.0f,"date":%q}`,
			acctID, catID, now.Format(time.RFC3339)), token)

	rec = app.request("GET", fmt.Sprintf("/api/v1/budgets/%.0f/progress", budgetID), "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progress := parseJSON(t, rec)["progress"].(map[string]interface{})
	if progress["spent"].(float64) != 0 {
		t.Errorf("expected 0 spent (credits ignored), got %.0f", progress["spent"].(float64))
	}
}
