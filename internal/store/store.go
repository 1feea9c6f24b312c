package store

import (
	"context"
	"errors"
	"time"

	"billdesk/backend/internal/domain"
)

var (
	// ErrNotFound is returned by id lookups with no matching row.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed or missing required input.
	ErrValidation = errors.New("invalid input")
	// ErrReferential is returned when a referenced row is missing or when a
	// delete would orphan dependent rows.
	ErrReferential = errors.New("referential integrity violation")
	// ErrInsufficientStock is returned when a sale would drive a product's
	// stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the storage contract shared by the embedded sqlite backend
// and the in-memory backend. All write-returning calls are durable before
// they return. Bill creation is atomic: the bill row, its items, the stock
// decrements and the loyalty balance update commit together or not at all.
type Repository interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error)
	CustomerPurchaseTotals(ctx context.Context, customerID int64) (count int64, spentCents int64, err error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)

	CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
	ListBills(ctx context.Context, from *time.Time, to *time.Time) ([]domain.Bill, error)
	GetBillByID(ctx context.Context, id int64) (*domain.Bill, error)
	DeleteBill(ctx context.Context, id int64) error
	CustomerBills(ctx context.Context, customerID int64) ([]domain.Bill, error)

	ApplyLoyaltyAdjustment(ctx context.Context, customerID int64, newBalance int64, entry domain.LoyaltyAdjustment) error
	ListLoyaltyAdjustments(ctx context.Context, customerID int64, limit int) ([]domain.LoyaltyAdjustment, error)

	SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error)
	TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error)
	PaymentBreakdown(ctx context.Context, from time.Time, to time.Time) ([]domain.PaymentModeSales, error)
	TotalProfitCents(ctx context.Context) (int64, error)
	RevenuePoints(ctx context.Context, from time.Time, to time.Time) ([]domain.RevenuePoint, error)
	CountCustomers(ctx context.Context) (int64, error)
	CountProducts(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context, threshold int) (int64, error)

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	GetSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error
}
