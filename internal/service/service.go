package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"billdesk/backend/internal/cache"
	"billdesk/backend/internal/domain"
	"billdesk/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const statsCacheKey = "dashboard:stats"

type Service struct {
	repo     store.Repository
	stats    cache.StatsCache
	statsTTL time.Duration
	loc      *time.Location
}

func New(repo store.Repository, stats cache.StatsCache, statsTTLSeconds int, loc *time.Location) *Service {
	if stats == nil {
		stats = cache.NewNoop()
	}
	if statsTTLSeconds < 1 {
		statsTTLSeconds = 15
	}
	if loc == nil {
		loc = time.Local
	}

	return &Service{
		repo:     repo,
		stats:    stats,
		statsTTL: time.Duration(statsTTLSeconds) * time.Second,
		loc:      loc,
	}
}

func (s *Service) ListCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	query = strings.TrimSpace(query)
	if query != "" {
		return s.repo.SearchCustomers(ctx, query)
	}
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)

	if req.Name == "" || req.Phone == "" {
		return domain.Customer{}, store.ErrValidation
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.invalidateStats(ctx)
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			return domain.Customer{}, store.ErrValidation
		}
		updated.Phone = phone
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *Service) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query != "" {
		return s.repo.SearchProducts(ctx, query)
	}
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.Name == "" || req.PriceCents < 1 {
		return domain.Product{}, store.ErrValidation
	}
	if req.CostPriceCents < 0 || req.TaxPercent < 0 || req.TaxPercent > 100 || req.Stock < 0 {
		return domain.Product{}, store.ErrValidation
	}
	if req.Category == "" {
		req.Category = "Others"
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:           req.Name,
		Category:       req.Category,
		CostPriceCents: req.CostPriceCents,
		PriceCents:     req.PriceCents,
		TaxPercent:     req.TaxPercent,
		Stock:          req.Stock,
		Image:          req.Image,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateStats(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			category = "Others"
		}
		updated.Category = category
	}
	if req.CostPriceCents != nil {
		if *req.CostPriceCents < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.CostPriceCents = *req.CostPriceCents
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrValidation
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.TaxPercent != nil {
		if *req.TaxPercent < 0 || *req.TaxPercent > 100 {
			return domain.Product{}, store.ErrValidation
		}
		updated.TaxPercent = *req.TaxPercent
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.Stock = *req.Stock
	}
	if req.Image != nil {
		updated.Image = *req.Image
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateStats(ctx)
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// ComputeBillTotals prices a cart without touching storage. Per line the
// subtotal is price*qty and the tax is rounded once; summing rounded line
// totals keeps the bill total equal to the sum of its items. Caller-supplied
// subtotal and tax override the computed sums when both are present, so a
// till applying shop tax toggles bills exactly what it displayed.
func ComputeBillTotals(req domain.BillCreateRequest) (domain.BillTotals, error) {
	if len(req.Items) == 0 {
		return domain.BillTotals{}, store.ErrValidation
	}
	if req.DiscountCents < 0 || req.PointsRedeemed < 0 {
		return domain.BillTotals{}, store.ErrValidation
	}

	var totals domain.BillTotals
	for _, line := range req.Items {
		if line.Quantity < 1 || line.PriceCents < 0 || line.TaxPercent < 0 {
			return domain.BillTotals{}, store.ErrValidation
		}
		lineSubtotal := line.PriceCents * int64(line.Quantity)
		lineTax := int64(math.Round(float64(lineSubtotal) * line.TaxPercent / 100))
		totals.SubtotalCents += lineSubtotal
		totals.TaxCents += lineTax
		totals.TotalCostCents += line.CostPriceCents * int64(line.Quantity)
	}

	if req.SubtotalCents != nil && req.TaxCents != nil {
		if *req.SubtotalCents < 0 || *req.TaxCents < 0 {
			return domain.BillTotals{}, store.ErrValidation
		}
		totals.SubtotalCents = *req.SubtotalCents
		totals.TaxCents = *req.TaxCents
	}

	totals.DiscountCents = req.DiscountCents
	totals.PointsDiscountCents = req.PointsRedeemed * domain.RedeemCentsPerPoint
	totals.TotalCents = totals.SubtotalCents + totals.TaxCents - totals.DiscountCents - totals.PointsDiscountCents
	if totals.TotalCents < 0 {
		return domain.BillTotals{}, store.ErrValidation
	}
	totals.PointsEarned = totals.TotalCents / 100
	return totals, nil
}

// CreateBill validates the cart, prices it, and persists the sale
// atomically. Points redeemed are checked against the live balance before
// the write; the store re-checks inside its transaction.
func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (domain.Bill, error) {
	if !domain.IsValidPaymentMode(req.PaymentMode) {
		return domain.Bill{}, store.ErrValidation
	}

	totals, err := ComputeBillTotals(req)
	if err != nil {
		return domain.Bill{}, err
	}

	customer, err := s.repo.GetCustomerByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Bill{}, store.ErrReferential
		}
		return domain.Bill{}, err
	}
	if req.PointsRedeemed > customer.LoyaltyPoints {
		return domain.Bill{}, store.ErrValidation
	}

	bill := domain.Bill{
		CustomerID:     customer.ID,
		Date:           time.Now().UTC(),
		SubtotalCents:  totals.SubtotalCents,
		DiscountCents:  totals.DiscountCents + totals.PointsDiscountCents,
		TaxCents:       totals.TaxCents,
		TotalCents:     totals.TotalCents,
		PaymentMode:    req.PaymentMode,
		PointsEarned:   totals.PointsEarned,
		PointsRedeemed: req.PointsRedeemed,
	}
	for _, line := range req.Items {
		lineSubtotal := line.PriceCents * int64(line.Quantity)
		lineTax := int64(math.Round(float64(lineSubtotal) * line.TaxPercent / 100))
		bill.Items = append(bill.Items, domain.BillItem{
			ProductID:      line.ProductID,
			ProductName:    strings.TrimSpace(line.ProductName),
			Quantity:       line.Quantity,
			CostPriceCents: line.CostPriceCents,
			PriceCents:     line.PriceCents,
			TaxPercent:     line.TaxPercent,
			TotalCents:     lineSubtotal + lineTax,
		})
	}

	created, err := s.repo.CreateBill(ctx, bill)
	if err != nil {
		return domain.Bill{}, err
	}
	s.invalidateStats(ctx)
	return *created, nil
}

// ListBills accepts optional start/end dates in YYYY-MM-DD form, resolved
// in the configured business timezone. Both must be given or neither.
func (s *Service) ListBills(ctx context.Context, startDate string, endDate string) ([]domain.Bill, error) {
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)
	if startDate == "" && endDate == "" {
		return s.repo.ListBills(ctx, nil, nil)
	}
	if startDate == "" || endDate == "" {
		return nil, store.ErrValidation
	}

	from, to, err := s.customRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBills(ctx, &from, &to)
}

func (s *Service) GetBill(ctx context.Context, id int64) (domain.Bill, error) {
	bill, err := s.repo.GetBillByID(ctx, id)
	if err != nil {
		return domain.Bill{}, err
	}
	return *bill, nil
}

func (s *Service) DeleteBill(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	if err := s.repo.DeleteBill(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *Service) CustomerHistory(ctx context.Context, customerID int64) ([]domain.Bill, error) {
	if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.CustomerBills(ctx, customerID)
}

func (s *Service) LoyaltyInfo(ctx context.Context, customerID int64) (domain.CustomerLoyaltyInfo, error) {
	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.CustomerLoyaltyInfo{}, err
	}
	count, spent, err := s.repo.CustomerPurchaseTotals(ctx, customerID)
	if err != nil {
		return domain.CustomerLoyaltyInfo{}, err
	}
	return domain.CustomerLoyaltyInfo{
		Customer:         *customer,
		TotalPurchases:   count,
		TotalSpentCents:  spent,
		PointsValueCents: customer.LoyaltyPoints * domain.RedeemCentsPerPoint,
		Tier:             domain.TierForPoints(customer.LoyaltyPoints),
	}, nil
}

// AdjustPoints applies a manual ledger adjustment. Subtracting clamps the
// balance at zero rather than failing, matching the behavior of a clerk
// draining leftover points.
func (s *Service) AdjustPoints(ctx context.Context, customerID int64, req domain.PointsAdjustRequest) (domain.Customer, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" || req.Amount < 0 {
		return domain.Customer{}, store.ErrValidation
	}

	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}

	var newBalance int64
	switch req.Action {
	case domain.PointsActionAdd:
		newBalance = customer.LoyaltyPoints + req.Amount
	case domain.PointsActionSubtract:
		newBalance = customer.LoyaltyPoints - req.Amount
		if newBalance < 0 {
			newBalance = 0
		}
	case domain.PointsActionSet:
		newBalance = req.Amount
	default:
		return domain.Customer{}, store.ErrValidation
	}

	entry := domain.LoyaltyAdjustment{
		CustomerID: customerID,
		Delta:      newBalance - customer.LoyaltyPoints,
		Reason:     req.Reason,
		Source:     domain.AdjustmentSourceManual,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.ApplyLoyaltyAdjustment(ctx, customerID, newBalance, entry); err != nil {
		return domain.Customer{}, err
	}

	updated, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return *updated, nil
}

func (s *Service) LoyaltyLedger(ctx context.Context, customerID int64, limit int) ([]domain.LoyaltyAdjustment, error) {
	if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListLoyaltyAdjustments(ctx, customerID, limit)
}

// DashboardStats assembles the landing-page snapshot: today's takings,
// all-time profit from item snapshots, entity counts, low-stock count and a
// zero-filled trailing 7-day revenue series. The result is cached briefly
// and invalidated by any bill mutation.
func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if cached, ok, err := s.stats.Get(ctx, statsCacheKey); err != nil {
		log.Printf("[service] WARN: stats cache read failed: %v", err)
	} else if ok {
		return *cached, nil
	}

	now := time.Now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	today, err := s.repo.SalesSummary(ctx, dayStart, dayEnd)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	profit, err := s.repo.TotalProfitCents(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	customers, err := s.repo.CountCustomers(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	products, err := s.repo.CountProducts(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	lowStock, err := s.repo.CountLowStock(ctx, domain.LowStockThreshold)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	series, err := s.revenueSeries(ctx, dayStart, 7)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	stats := domain.DashboardStats{
		TodaySalesCents:  today.TotalSalesCents,
		TodayBills:       today.TotalBills,
		TotalProfitCents: profit,
		TotalCustomers:   customers,
		TotalProducts:    products,
		LowStockCount:    lowStock,
		SalesSeries:      series,
	}

	if err := s.stats.Set(ctx, statsCacheKey, &stats, s.statsTTL); err != nil {
		log.Printf("[service] WARN: stats cache write failed: %v", err)
	}
	return stats, nil
}

// revenueSeries buckets committed bills into the trailing days ending at
// dayStart's date, zero-filling days with no sales.
func (s *Service) revenueSeries(ctx context.Context, dayStart time.Time, days int) ([]domain.DailyRevenue, error) {
	from := dayStart.AddDate(0, 0, -(days - 1))
	to := dayStart.Add(24 * time.Hour)

	points, err := s.repo.RevenuePoints(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]int64, days)
	for _, p := range points {
		byDay[p.At.In(s.loc).Format("2006-01-02")] += p.TotalCents
	}

	series := make([]domain.DailyRevenue, 0, days)
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		series = append(series, domain.DailyRevenue{
			Date:       key,
			Label:      day.Format("Mon"),
			TotalCents: byDay[key],
		})
	}
	return series, nil
}

// SalesReport aggregates the period's takings, the top products by revenue
// and the payment-mode breakdown. period is today, week, month or custom;
// custom requires start and end dates (YYYY-MM-DD, inclusive).
func (s *Service) SalesReport(ctx context.Context, period string, startDate string, endDate string) (domain.SalesReport, error) {
	from, to, err := s.resolvePeriod(period, startDate, endDate)
	if err != nil {
		return domain.SalesReport{}, err
	}

	summary, err := s.repo.SalesSummary(ctx, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	top, err := s.repo.TopProducts(ctx, from, to, 10)
	if err != nil {
		return domain.SalesReport{}, err
	}
	modes, err := s.repo.PaymentBreakdown(ctx, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		Period:          period,
		TotalBills:      summary.TotalBills,
		TotalSalesCents: summary.TotalSalesCents,
		TopProducts:     top,
		PaymentModes:    modes,
	}
	if summary.TotalBills > 0 {
		report.AvgBillCents = summary.TotalSalesCents / summary.TotalBills
	}
	return report, nil
}

func (s *Service) resolvePeriod(period string, startDate string, endDate string) (time.Time, time.Time, error) {
	now := time.Now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	switch period {
	case "", "today":
		return dayStart, dayEnd, nil
	case "week":
		return now.AddDate(0, 0, -7), dayEnd, nil
	case "month":
		return now.AddDate(0, -1, 0), dayEnd, nil
	case "custom":
		return s.customRange(startDate, endDate)
	}
	return time.Time{}, time.Time{}, store.ErrValidation
}

// customRange parses an inclusive date pair into a half-open interval in
// the business timezone.
func (s *Service) customRange(startDate string, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(startDate), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, store.ErrValidation
	}
	end, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(endDate), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, store.ErrValidation
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, store.ErrValidation
	}
	return start, end.Add(24 * time.Hour), nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, store.ErrValidation
	}
	created, err := s.repo.CreateCategory(ctx, name)
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return s.repo.DeleteCategory(ctx, id)
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *Service) SaveSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Settings{}, fmt.Errorf("admin role required")
	}
	if settings.DefaultTaxPercent < 0 || settings.DefaultTaxPercent > 100 {
		return domain.Settings{}, store.ErrValidation
	}
	settings.BusinessName = strings.TrimSpace(settings.BusinessName)
	settings.BusinessPhone = strings.TrimSpace(settings.BusinessPhone)
	settings.BusinessAddress = strings.TrimSpace(settings.BusinessAddress)

	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.stats.Invalidate(ctx, statsCacheKey); err != nil {
		log.Printf("[service] WARN: stats cache invalidate failed: %v", err)
	}
}
