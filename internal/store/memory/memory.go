package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"billdesk/backend/internal/domain"
	"billdesk/backend/internal/store"
)

// Store is the in-memory Repository implementation used by tests and by
// MEMORY_STORE=true dev runs. A single mutex guards every map, which makes
// bill creation trivially atomic.
type Store struct {
	mu sync.RWMutex

	users       map[string]domain.UserAccount
	customers   map[int64]domain.Customer
	products    map[int64]domain.Product
	bills       map[int64]domain.Bill
	adjustments map[int64][]domain.LoyaltyAdjustment
	categories  map[int64]domain.Category
	settings    domain.Settings

	nextUserID       int64
	nextCustomerID   int64
	nextProductID    int64
	nextBillID       int64
	nextItemID       int64
	nextAdjustmentID int64
	nextCategoryID   int64
}

func New() *Store {
	return &Store{
		users:       make(map[string]domain.UserAccount),
		customers:   make(map[int64]domain.Customer),
		products:    make(map[int64]domain.Product),
		bills:       make(map[int64]domain.Bill),
		adjustments: make(map[int64][]domain.LoyaltyAdjustment),
		categories:  make(map[int64]domain.Category),
		settings:    domain.Settings{EnableAllTaxes: true},
	}
}

// NewSeeded returns a store preloaded with the default admin account and a
// small catalog so a dev server is usable immediately.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err == nil {
		_ = s.CreateUser(ctx, domain.UserAccount{Username: "admin", Password: string(hash), Role: "admin"})
	}

	customers := []domain.Customer{
		{Name: "Walk-in", Phone: "0000000000"},
		{Name: "Asha Nair", Phone: "9876543210", Email: "asha@example.com"},
		{Name: "Ravi Kumar", Phone: "9123456780", Address: "12 Market Road"},
	}
	for _, c := range customers {
		_, _ = s.CreateCustomer(ctx, c)
	}

	products := []domain.Product{
		{Name: "Rice 5kg", Category: "Grocery", CostPriceCents: 28000, PriceCents: 34900, TaxPercent: 5, Stock: 40},
		{Name: "Sunflower Oil 1L", Category: "Grocery", CostPriceCents: 11000, PriceCents: 14500, TaxPercent: 5, Stock: 25},
		{Name: "Detergent 1kg", Category: "Household", CostPriceCents: 9000, PriceCents: 12900, TaxPercent: 18, Stock: 8},
		{Name: "Notebook A5", Category: "Stationery", CostPriceCents: 3000, PriceCents: 4500, TaxPercent: 12, Stock: 60},
	}
	for _, p := range products {
		_, _ = s.CreateProduct(ctx, p)
	}

	for _, name := range []string{"Grocery", "Household", "Stationery", "Others"} {
		_, _ = s.CreateCategory(ctx, name)
	}
	return s
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if user.Role == "" {
		user.Role = "admin"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Username]; exists {
		return store.ErrValidation
	}
	s.nextUserID++
	user.ID = s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" || customer.Phone == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCustomerID++
	customer.ID = s.nextCustomerID
	customer.LoyaltyPoints = 0
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" || customer.Phone == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Name = customer.Name
	existing.Phone = customer.Phone
	existing.Email = customer.Email
	existing.Address = customer.Address
	s.customers[customer.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	for _, bill := range s.bills {
		if bill.CustomerID == id {
			return store.ErrReferential
		}
	}
	delete(s.customers, id)
	delete(s.adjustments, id)
	return nil
}

func (s *Store) GetCustomerByID(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customers := make([]domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		customers = append(customers, customer)
	}
	sort.Slice(customers, func(i, j int) bool {
		if customers[i].CreatedAt.Equal(customers[j].CreatedAt) {
			return customers[i].ID > customers[j].ID
		}
		return customers[i].CreatedAt.After(customers[j].CreatedAt)
	})
	return customers, nil
}

func (s *Store) SearchCustomers(_ context.Context, query string) ([]domain.Customer, error) {
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domain.Customer, 0, 8)
	for _, customer := range s.customers {
		if strings.Contains(strings.ToLower(customer.Name), needle) ||
			strings.Contains(strings.ToLower(customer.Phone), needle) ||
			strings.Contains(strings.ToLower(customer.Email), needle) {
			matches = append(matches, customer)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return matches, nil
}

func (s *Store) CustomerPurchaseTotals(_ context.Context, customerID int64) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count, spent int64
	for _, bill := range s.bills {
		if bill.CustomerID == customerID {
			count++
			spent += bill.TotalCents
		}
	}
	return count, spent, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.Category == "" {
		product.Category = "Others"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProductID++
	product.ID = s.nextProductID
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.Category == "" {
		product.Category = "Others"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) SearchProducts(_ context.Context, query string) ([]domain.Product, error) {
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domain.Product, 0, 8)
	for _, product := range s.products {
		if strings.Contains(strings.ToLower(product.Name), needle) {
			matches = append(matches, product)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return matches, nil
}

// CreateBill holds the write lock for the whole operation, so the stock
// checks, the decrements and the balance update are atomic. All stock is
// verified before anything mutates.
func (s *Store) CreateBill(_ context.Context, bill domain.Bill) (*domain.Bill, error) {
	if len(bill.Items) == 0 {
		return nil, store.ErrValidation
	}
	if bill.Date.IsZero() {
		bill.Date = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[bill.CustomerID]
	if !ok {
		return nil, store.ErrReferential
	}
	if bill.PointsRedeemed > customer.LoyaltyPoints {
		return nil, store.ErrValidation
	}
	// Quantities are summed per product so a cart listing the same product
	// twice cannot slip past the stock check.
	needed := make(map[int64]int, len(bill.Items))
	for i := range bill.Items {
		needed[bill.Items[i].ProductID] += bill.Items[i].Quantity
	}
	for productID, qty := range needed {
		product, ok := s.products[productID]
		if !ok {
			return nil, store.ErrReferential
		}
		if product.Stock < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	s.nextBillID++
	bill.ID = s.nextBillID
	items := make([]domain.BillItem, len(bill.Items))
	copy(items, bill.Items)
	for i := range items {
		s.nextItemID++
		items[i].ID = s.nextItemID
		items[i].BillID = bill.ID

		product := s.products[items[i].ProductID]
		product.Stock -= items[i].Quantity
		s.products[product.ID] = product
	}
	bill.Items = items
	s.bills[bill.ID] = bill

	customer.LoyaltyPoints += bill.PointsEarned - bill.PointsRedeemed
	s.customers[customer.ID] = customer

	if bill.PointsEarned > 0 {
		s.appendAdjustmentLocked(domain.LoyaltyAdjustment{
			CustomerID: bill.CustomerID,
			Delta:      bill.PointsEarned,
			Reason:     "points earned on purchase",
			Source:     domain.AdjustmentSourceBill,
			BillID:     bill.ID,
			CreatedAt:  bill.Date,
		})
	}
	if bill.PointsRedeemed > 0 {
		s.appendAdjustmentLocked(domain.LoyaltyAdjustment{
			CustomerID: bill.CustomerID,
			Delta:      -bill.PointsRedeemed,
			Reason:     "points redeemed on purchase",
			Source:     domain.AdjustmentSourceBill,
			BillID:     bill.ID,
			CreatedAt:  bill.Date,
		})
	}

	created := bill
	created.Items = make([]domain.BillItem, len(items))
	copy(created.Items, items)
	return &created, nil
}

func (s *Store) appendAdjustmentLocked(entry domain.LoyaltyAdjustment) {
	s.nextAdjustmentID++
	entry.ID = s.nextAdjustmentID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.adjustments[entry.CustomerID] = append(s.adjustments[entry.CustomerID], entry)
}

func (s *Store) ListBills(_ context.Context, from *time.Time, to *time.Time) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bills := make([]domain.Bill, 0, len(s.bills))
	for _, bill := range s.bills {
		if from != nil && to != nil {
			if bill.Date.Before(*from) || !bill.Date.Before(*to) {
				continue
			}
		}
		summary := bill
		summary.Items = nil
		if customer, ok := s.customers[bill.CustomerID]; ok {
			summary.CustomerName = customer.Name
			summary.CustomerPhone = customer.Phone
		}
		bills = append(bills, summary)
	}
	sort.Slice(bills, func(i, j int) bool {
		if bills[i].Date.Equal(bills[j].Date) {
			return bills[i].ID > bills[j].ID
		}
		return bills[i].Date.After(bills[j].Date)
	})
	return bills, nil
}

func (s *Store) GetBillByID(_ context.Context, id int64) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bill, ok := s.bills[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	detail := bill
	detail.Items = make([]domain.BillItem, len(bill.Items))
	copy(detail.Items, bill.Items)
	detail.ItemCount = len(detail.Items)
	if customer, ok := s.customers[bill.CustomerID]; ok {
		detail.CustomerName = customer.Name
		detail.CustomerPhone = customer.Phone
		detail.CustomerEmail = customer.Email
		detail.CustomerAddress = customer.Address
	}
	return &detail, nil
}

func (s *Store) DeleteBill(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bills[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.bills, id)
	return nil
}

func (s *Store) CustomerBills(_ context.Context, customerID int64) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bills := make([]domain.Bill, 0, 8)
	for _, bill := range s.bills {
		if bill.CustomerID != customerID {
			continue
		}
		summary := bill
		summary.ItemCount = len(bill.Items)
		summary.Items = nil
		bills = append(bills, summary)
	}
	sort.Slice(bills, func(i, j int) bool {
		if bills[i].Date.Equal(bills[j].Date) {
			return bills[i].ID > bills[j].ID
		}
		return bills[i].Date.After(bills[j].Date)
	})
	return bills, nil
}

func (s *Store) ApplyLoyaltyAdjustment(_ context.Context, customerID int64, newBalance int64, entry domain.LoyaltyAdjustment) error {
	if newBalance < 0 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[customerID]
	if !ok {
		return store.ErrNotFound
	}
	customer.LoyaltyPoints = newBalance
	s.customers[customerID] = customer
	s.appendAdjustmentLocked(entry)
	return nil
}

func (s *Store) ListLoyaltyAdjustments(_ context.Context, customerID int64, limit int) ([]domain.LoyaltyAdjustment, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.adjustments[customerID]
	out := make([]domain.LoyaltyAdjustment, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *Store) SalesSummary(_ context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var summary domain.SalesSummary
	for _, bill := range s.bills {
		if inRange(bill.Date, from, to) {
			summary.TotalBills++
			summary.TotalSalesCents += bill.TotalCents
		}
	}
	return summary, nil
}

func (s *Store) TopProducts(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error) {
	if limit < 1 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	type key struct {
		id   int64
		name string
	}
	byProduct := make(map[key]*domain.ProductSales)
	for _, bill := range s.bills {
		if !inRange(bill.Date, from, to) {
			continue
		}
		for _, item := range bill.Items {
			k := key{item.ProductID, item.ProductName}
			row, ok := byProduct[k]
			if !ok {
				row = &domain.ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
				byProduct[k] = row
			}
			row.QuantitySold += int64(item.Quantity)
			row.RevenueCents += item.TotalCents
		}
	}
	top := make([]domain.ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		top = append(top, *row)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].RevenueCents == top[j].RevenueCents {
			return top[i].ProductID < top[j].ProductID
		}
		return top[i].RevenueCents > top[j].RevenueCents
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (s *Store) PaymentBreakdown(_ context.Context, from time.Time, to time.Time) ([]domain.PaymentModeSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byMode := make(map[string]*domain.PaymentModeSales)
	for _, bill := range s.bills {
		if !inRange(bill.Date, from, to) {
			continue
		}
		row, ok := byMode[bill.PaymentMode]
		if !ok {
			row = &domain.PaymentModeSales{PaymentMode: bill.PaymentMode}
			byMode[bill.PaymentMode] = row
		}
		row.Count++
		row.TotalCents += bill.TotalCents
	}
	modes := make([]domain.PaymentModeSales, 0, len(byMode))
	for _, row := range byMode {
		modes = append(modes, *row)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i].PaymentMode < modes[j].PaymentMode })
	return modes, nil
}

func (s *Store) TotalProfitCents(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var profit int64
	for _, bill := range s.bills {
		for _, item := range bill.Items {
			profit += (item.PriceCents - item.CostPriceCents) * int64(item.Quantity)
		}
	}
	return profit, nil
}

func (s *Store) RevenuePoints(_ context.Context, from time.Time, to time.Time) ([]domain.RevenuePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points := make([]domain.RevenuePoint, 0, len(s.bills))
	for _, bill := range s.bills {
		if inRange(bill.Date, from, to) {
			points = append(points, domain.RevenuePoint{At: bill.Date, TotalCents: bill.TotalCents})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points, nil
}

func (s *Store) CountCustomers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.customers)), nil
}

func (s *Store) CountProducts(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

func (s *Store) CountLowStock(_ context.Context, threshold int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, product := range s.products {
		if product.Stock <= threshold {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories := make([]domain.Category, 0, len(s.categories))
	for _, category := range s.categories {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *Store) CreateCategory(_ context.Context, name string) (*domain.Category, error) {
	if name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range s.categories {
		if category.Name == name {
			return nil, store.ErrValidation
		}
	}
	s.nextCategoryID++
	category := domain.Category{ID: s.nextCategoryID, Name: name}
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func inRange(t time.Time, from time.Time, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
