package domain

import "time"

type Customer struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	LoyaltyPoints int64     `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
}

// CustomerLoyaltyInfo is the CRM read model: the customer record annotated
// with purchase totals and the tier derived from the current balance.
type CustomerLoyaltyInfo struct {
	Customer         Customer `json:"customer"`
	TotalPurchases   int64    `json:"total_purchases"`
	TotalSpentCents  int64    `json:"total_spent_cents"`
	PointsValueCents int64    `json:"points_value_cents"`
	Tier             string   `json:"tier"`
}

type Product struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	CostPriceCents int64     `json:"cost_price_cents"`
	PriceCents     int64     `json:"price_cents"`
	TaxPercent     float64   `json:"tax_percent"`
	Stock          int       `json:"stock"`
	Image          string    `json:"image,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	CostPriceCents int64   `json:"cost_price_cents"`
	PriceCents     int64   `json:"price_cents"`
	TaxPercent     float64 `json:"tax_percent"`
	Stock          int     `json:"stock"`
	Image          string  `json:"image,omitempty"`
}

type ProductUpdateRequest struct {
	Name           *string  `json:"name,omitempty"`
	Category       *string  `json:"category,omitempty"`
	CostPriceCents *int64   `json:"cost_price_cents,omitempty"`
	PriceCents     *int64   `json:"price_cents,omitempty"`
	TaxPercent     *float64 `json:"tax_percent,omitempty"`
	Stock          *int     `json:"stock,omitempty"`
	Image          *string  `json:"image,omitempty"`
}

// CartLine is a caller-supplied snapshot of one product line at sale time.
// The billing engine trusts these values verbatim so that shop-level tax
// toggle settings applied by the caller are billed exactly as displayed.
type CartLine struct {
	ProductID      int64   `json:"product_id"`
	ProductName    string  `json:"product_name"`
	PriceCents     int64   `json:"price_cents"`
	TaxPercent     float64 `json:"tax_percent"`
	Quantity       int     `json:"quantity"`
	CostPriceCents int64   `json:"cost_price_cents"`
}

type BillCreateRequest struct {
	CustomerID     int64      `json:"customer_id"`
	PaymentMode    string     `json:"payment_mode"`
	DiscountCents  int64      `json:"discount_cents"`
	PointsRedeemed int64      `json:"points_redeemed"`
	SubtotalCents  *int64     `json:"subtotal_cents,omitempty"`
	TaxCents       *int64     `json:"tax_cents,omitempty"`
	Items          []CartLine `json:"items"`
}

type Bill struct {
	ID              int64      `json:"id"`
	CustomerID      int64      `json:"customer_id"`
	CustomerName    string     `json:"customer_name,omitempty"`
	CustomerPhone   string     `json:"customer_phone,omitempty"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	CustomerAddress string     `json:"customer_address,omitempty"`
	Date            time.Time  `json:"date"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	DiscountCents   int64      `json:"discount_cents"`
	TaxCents        int64      `json:"tax_cents"`
	TotalCents      int64      `json:"total_cents"`
	PaymentMode     string     `json:"payment_mode"`
	PointsEarned    int64      `json:"points_earned"`
	PointsRedeemed  int64      `json:"points_redeemed"`
	ItemCount       int        `json:"item_count,omitempty"`
	Items           []BillItem `json:"items,omitempty"`
}

// BillItem snapshots name, price, cost and tax as of sale time so reports
// keep reflecting the economics of the sale even after catalog edits.
type BillItem struct {
	ID             int64   `json:"id"`
	BillID         int64   `json:"bill_id"`
	ProductID      int64   `json:"product_id"`
	ProductName    string  `json:"product_name"`
	Quantity       int     `json:"quantity"`
	CostPriceCents int64   `json:"cost_price_cents"`
	PriceCents     int64   `json:"price_cents"`
	TaxPercent     float64 `json:"tax_percent"`
	TotalCents     int64   `json:"total_cents"`
}

// BillTotals is the output of the pricing calculation, before persistence.
type BillTotals struct {
	SubtotalCents       int64
	TaxCents            int64
	DiscountCents       int64
	PointsDiscountCents int64
	TotalCents          int64
	TotalCostCents      int64
	PointsEarned        int64
}

// LoyaltyAdjustment is one signed entry in the append-only points ledger.
// The customer's loyalty_points balance equals the sum of all entries.
type LoyaltyAdjustment struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Delta      int64     `json:"delta"`
	Reason     string    `json:"reason"`
	Source     string    `json:"source"`
	BillID     int64     `json:"bill_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type PointsAdjustRequest struct {
	Action string `json:"action"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CategoryCreateRequest struct {
	Name string `json:"name"`
}

// Settings holds shop identity and the tax toggle flags the UI applies
// before submitting a cart. The billing engine never consults them.
type Settings struct {
	BusinessName      string  `json:"business_name"`
	BusinessPhone     string  `json:"business_phone"`
	BusinessAddress   string  `json:"business_address"`
	EnableAllTaxes    bool    `json:"enable_all_taxes"`
	EnableDefaultTax  bool    `json:"enable_default_tax"`
	DefaultTaxPercent float64 `json:"default_tax_percent"`
}

type DailyRevenue struct {
	Date       string `json:"date"`
	Label      string `json:"label"`
	TotalCents int64  `json:"total_cents"`
}

type DashboardStats struct {
	TodaySalesCents  int64          `json:"today_sales_cents"`
	TodayBills       int64          `json:"today_bills"`
	TotalProfitCents int64          `json:"total_profit_cents"`
	TotalCustomers   int64          `json:"total_customers"`
	TotalProducts    int64          `json:"total_products"`
	LowStockCount    int64          `json:"low_stock_count"`
	SalesSeries      []DailyRevenue `json:"sales_series"`
}

type SalesSummary struct {
	TotalBills      int64 `json:"total_bills"`
	TotalSalesCents int64 `json:"total_sales_cents"`
}

type ProductSales struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	QuantitySold int64  `json:"quantity_sold"`
	RevenueCents int64  `json:"revenue_cents"`
}

type PaymentModeSales struct {
	PaymentMode string `json:"payment_mode"`
	Count       int64  `json:"count"`
	TotalCents  int64  `json:"total_cents"`
}

type SalesReport struct {
	Period          string             `json:"period"`
	TotalBills      int64              `json:"total_bills"`
	TotalSalesCents int64              `json:"total_sales_cents"`
	AvgBillCents    int64              `json:"avg_bill_cents"`
	TopProducts     []ProductSales     `json:"top_products"`
	PaymentModes    []PaymentModeSales `json:"payment_modes"`
}

// RevenuePoint is one committed bill's timestamp and total, used to build
// the trailing daily revenue series.
type RevenuePoint struct {
	At         time.Time
	TotalCents int64
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        int64
	Username  string
	Password  string
	Role      string
	CreatedAt time.Time
}

const (
	PaymentModeCash   = "cash"
	PaymentModeUPI    = "upi"
	PaymentModeCard   = "card"
	PaymentModeCheque = "cheque"
)

const (
	TierGold   = "gold"
	TierSilver = "silver"
	TierBronze = "bronze"
	TierNone   = "none"
)

const (
	AdjustmentSourceBill   = "bill"
	AdjustmentSourceManual = "manual"
)

const (
	PointsActionAdd      = "add"
	PointsActionSubtract = "subtract"
	PointsActionSet      = "set"
)

// LowStockThreshold is the read-time boundary at or below which a product
// counts as low stock on the dashboard.
const LowStockThreshold = 10

// RedeemCentsPerPoint fixes the points exchange rate at 10 points per
// currency unit, i.e. 10 cents of discount per redeemed point.
const RedeemCentsPerPoint = 10

// IsValidPaymentMode reports whether mode is one of the accepted payment
// mode values.
func IsValidPaymentMode(mode string) bool {
	switch mode {
	case PaymentModeCash, PaymentModeUPI, PaymentModeCard, PaymentModeCheque:
		return true
	}
	return false
}

// TierForPoints classifies a loyalty balance into its tier band.
func TierForPoints(points int64) string {
	switch {
	case points >= 500:
		return TierGold
	case points >= 200:
		return TierSilver
	case points >= 1:
		return TierBronze
	default:
		return TierNone
	}
}
