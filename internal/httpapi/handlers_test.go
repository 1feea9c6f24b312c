package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"billdesk/backend/internal/domain"
	"billdesk/backend/internal/httpapi"
	"billdesk/backend/internal/service"
	"billdesk/backend/internal/store/memory"
)

const testSecret = "unit-test-secret-0123456789abcdef"

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	repo := memory.NewSeeded()
	svc := service.New(repo, nil, 1, time.UTC)
	auth := httpapi.NewAuthManager(testSecret, time.Hour, repo)
	return httpapi.New(svc, auth, "http://127.0.0.1:3000").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func loginAdmin(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return resp.AccessToken
}

func TestHealthz(t *testing.T) {
	handler := newTestAPI(t)
	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler := newTestAPI(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	handler := newTestAPI(t)
	var last int
	for i := 0; i < 6; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
			Username: "admin",
			Password: "wrong",
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt status = %d, want 429", last)
	}
}

func TestAuthRequired(t *testing.T) {
	handler := newTestAPI(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestBillLifecycle(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAdmin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token, domain.CustomerCreateRequest{
		Name:  "Meera",
		Phone: "9000000001",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var customerResp struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &customerResp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name:           "Tea 250g",
		Category:       "Grocery",
		CostPriceCents: 8000,
		PriceCents:     12000,
		TaxPercent:     5,
		Stock:          10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var productResp struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &productResp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/bills", token, domain.BillCreateRequest{
		CustomerID:  customerResp.Customer.ID,
		PaymentMode: domain.PaymentModeCash,
		Items: []domain.CartLine{{
			ProductID:      productResp.Product.ID,
			ProductName:    productResp.Product.Name,
			PriceCents:     productResp.Product.PriceCents,
			TaxPercent:     productResp.Product.TaxPercent,
			Quantity:       2,
			CostPriceCents: productResp.Product.CostPriceCents,
		}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bill status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var billResp struct {
		Bill domain.Bill `json:"bill"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &billResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 24000 subtotal + 1200 tax.
	if billResp.Bill.TotalCents != 25200 {
		t.Fatalf("bill total = %d, want 25200", billResp.Bill.TotalCents)
	}

	billPath := fmt.Sprintf("/api/v1/bills/%d", billResp.Bill.ID)
	rec = doJSON(t, handler, http.MethodGet, billPath, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get bill status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, billPath, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete bill status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, billPath, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted bill status = %d, want 404", rec.Code)
	}
}

func TestBillValidationStatusMapping(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAdmin(t, handler)

	// Empty cart -> 400.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bills", token, domain.BillCreateRequest{
		CustomerID:  1,
		PaymentMode: domain.PaymentModeCash,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty cart status = %d, want 400", rec.Code)
	}

	// Unknown customer -> 409.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/bills", token, domain.BillCreateRequest{
		CustomerID:  9999,
		PaymentMode: domain.PaymentModeCash,
		Items: []domain.CartLine{{
			ProductID: 1, ProductName: "Rice 5kg", PriceCents: 34900, Quantity: 1,
		}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("unknown customer status = %d, want 409", rec.Code)
	}
}

func TestPointsAdjustEndpoint(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAdmin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers/1/points", token, domain.PointsAdjustRequest{
		Action: domain.PointsActionAdd,
		Amount: 120,
		Reason: "goodwill",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Customer.LoyaltyPoints != 120 {
		t.Fatalf("balance = %d, want 120", resp.Customer.LoyaltyPoints)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/1/loyalty", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("loyalty status = %d", rec.Code)
	}
	var loyaltyResp struct {
		Loyalty domain.CustomerLoyaltyInfo `json:"loyalty"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &loyaltyResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if loyaltyResp.Loyalty.Tier != domain.TierBronze {
		t.Fatalf("tier = %q, want bronze", loyaltyResp.Loyalty.Tier)
	}
}

func TestDashboardStatsEndpoint(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAdmin(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Stats domain.DashboardStats `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Stats.SalesSeries) != 7 {
		t.Fatalf("series length = %d, want 7", len(resp.Stats.SalesSeries))
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAdmin(t, handler)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/settings", token, domain.Settings{
		BusinessName:      "Corner Mart",
		EnableDefaultTax:  true,
		DefaultTaxPercent: 12,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put settings status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/settings", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get settings status = %d", rec.Code)
	}
	var resp struct {
		Settings domain.Settings `json:"settings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Settings.BusinessName != "Corner Mart" || resp.Settings.DefaultTaxPercent != 12 {
		t.Fatalf("settings did not persist: %+v", resp.Settings)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t)
	token := loginAdmin(t, handler)

	rec := doJSON(t, handler, http.MethodPut, "/api/v1/bills", token, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
