package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"billdesk/backend/internal/domain"
	"billdesk/backend/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCustomer(t *testing.T, s *Store) domain.Customer {
	t.Helper()
	customer, err := s.CreateCustomer(context.Background(), domain.Customer{Name: "Asha", Phone: "9876543210"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return *customer
}

func mustProduct(t *testing.T, s *Store, name string, stock int) domain.Product {
	t.Helper()
	product, err := s.CreateProduct(context.Background(), domain.Product{
		Name:           name,
		CostPriceCents: 5000,
		PriceCents:     10000,
		TaxPercent:     5,
		Stock:          stock,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return *product
}

func billFor(customer domain.Customer, product domain.Product, qty int) domain.Bill {
	lineTotal := product.PriceCents * int64(qty)
	return domain.Bill{
		CustomerID:    customer.ID,
		Date:          time.Now().UTC(),
		SubtotalCents: lineTotal,
		TotalCents:    lineTotal,
		PaymentMode:   domain.PaymentModeCash,
		PointsEarned:  lineTotal / 100,
		Items: []domain.BillItem{{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       qty,
			CostPriceCents: product.CostPriceCents,
			PriceCents:     product.PriceCents,
			TaxPercent:     product.TaxPercent,
			TotalCents:     lineTotal,
		}},
	}
}

func TestMigrateSeedsAdminOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := New(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	admin, err := s.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("admin not seeded: %v", err)
	}
	if admin.Password == "admin123" {
		t.Fatal("admin password stored in plaintext")
	}
	_ = s.Close()

	// Reopening must be idempotent and must not duplicate the seed.
	s2, err := New(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	users, err := s2.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1", len(users))
	}
}

func TestCustomerCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := mustCustomer(t, s)

	customer.Email = "asha@example.com"
	updated, err := s.UpdateCustomer(ctx, customer)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Email != "asha@example.com" {
		t.Fatalf("email = %q", updated.Email)
	}

	matches, err := s.SearchCustomers(ctx, "ash")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}

	if err := s.DeleteCustomer(ctx, customer.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetCustomerByID(ctx, customer.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateBillCommitsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := mustCustomer(t, s)
	product := mustProduct(t, s, "Rice 5kg", 5)

	created, err := s.CreateBill(ctx, billFor(customer, product, 2))
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if created.ID < 1 || created.Items[0].ID < 1 {
		t.Fatalf("ids not assigned: %+v", created)
	}

	stocked, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if stocked.Stock != 3 {
		t.Fatalf("stock = %d, want 3", stocked.Stock)
	}

	after, err := s.GetCustomerByID(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if after.LoyaltyPoints != created.PointsEarned {
		t.Fatalf("balance = %d, want %d", after.LoyaltyPoints, created.PointsEarned)
	}

	entries, err := s.ListLoyaltyAdjustments(ctx, customer.ID, 10)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].BillID != created.ID {
		t.Fatalf("ledger wrong: %+v", entries)
	}
}

func TestCreateBillRollsBackOnInsufficientStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := mustCustomer(t, s)
	plenty := mustProduct(t, s, "Rice 5kg", 10)
	scarce := mustProduct(t, s, "Oil 1L", 1)

	bill := billFor(customer, plenty, 2)
	bill.Items = append(bill.Items, domain.BillItem{
		ProductID:   scarce.ID,
		ProductName: scarce.Name,
		Quantity:    5,
		PriceCents:  scarce.PriceCents,
		TotalCents:  scarce.PriceCents * 5,
	})

	if _, err := s.CreateBill(ctx, bill); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	// The first line's decrement must have rolled back.
	unchanged, err := s.GetProductByID(ctx, plenty.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if unchanged.Stock != 10 {
		t.Fatalf("stock = %d, want 10", unchanged.Stock)
	}

	bills, err := s.ListBills(ctx, nil, nil)
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(bills) != 0 {
		t.Fatalf("bills = %d, want 0", len(bills))
	}

	after, err := s.GetCustomerByID(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if after.LoyaltyPoints != 0 {
		t.Fatalf("balance = %d, want 0", after.LoyaltyPoints)
	}
}

func TestDeleteBillCascadesItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := mustCustomer(t, s)
	product := mustProduct(t, s, "Rice 5kg", 5)

	created, err := s.CreateBill(ctx, billFor(customer, product, 1))
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if err := s.DeleteBill(ctx, created.ID); err != nil {
		t.Fatalf("delete bill: %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bill_items WHERE bill_id = ?`, created.ID).Scan(&count); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 0 {
		t.Fatalf("orphaned items = %d, want 0", count)
	}
}

func TestDeleteCustomerWithBillsFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := mustCustomer(t, s)
	product := mustProduct(t, s, "Rice 5kg", 5)

	if _, err := s.CreateBill(ctx, billFor(customer, product, 1)); err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if err := s.DeleteCustomer(ctx, customer.ID); !errors.Is(err, store.ErrReferential) {
		t.Fatalf("err = %v, want ErrReferential", err)
	}
}

func TestAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	customer := mustCustomer(t, s)
	product := mustProduct(t, s, "Rice 5kg", 20)

	for i := 0; i < 3; i++ {
		if _, err := s.CreateBill(ctx, billFor(customer, product, 1)); err != nil {
			t.Fatalf("create bill %d: %v", i, err)
		}
	}

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)

	summary, err := s.SalesSummary(ctx, from, to)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalBills != 3 || summary.TotalSalesCents != 30000 {
		t.Fatalf("summary = %+v", summary)
	}

	top, err := s.TopProducts(ctx, from, to, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 || top[0].QuantitySold != 3 || top[0].RevenueCents != 30000 {
		t.Fatalf("top = %+v", top)
	}

	modes, err := s.PaymentBreakdown(ctx, from, to)
	if err != nil {
		t.Fatalf("modes: %v", err)
	}
	if len(modes) != 1 || modes[0].Count != 3 {
		t.Fatalf("modes = %+v", modes)
	}

	profit, err := s.TotalProfitCents(ctx)
	if err != nil {
		t.Fatalf("profit: %v", err)
	}
	// (10000 - 5000) * 3 items.
	if profit != 15000 {
		t.Fatalf("profit = %d, want 15000", profit)
	}

	count, spent, err := s.CustomerPurchaseTotals(ctx, customer.ID)
	if err != nil {
		t.Fatalf("purchase totals: %v", err)
	}
	if count != 3 || spent != 30000 {
		t.Fatalf("totals = %d / %d", count, spent)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	initial, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !initial.EnableAllTaxes {
		t.Fatal("EnableAllTaxes should default to true")
	}

	initial.BusinessName = "Corner Mart"
	initial.EnableDefaultTax = true
	initial.DefaultTaxPercent = 12
	if err := s.SaveSettings(ctx, initial); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.BusinessName != "Corner Mart" || loaded.DefaultTaxPercent != 12 {
		t.Fatalf("settings = %+v", loaded)
	}
}

func TestCategoryUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateCategory(ctx, "Grocery"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateCategory(ctx, "Grocery"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("duplicate err = %v, want ErrValidation", err)
	}
}
