package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"billdesk/backend/internal/domain"
	"billdesk/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the embedded database at path, applies the schema
// and additive migrations, and seeds the default admin credential on first
// run. The connection pool is capped at one connection: the store is
// single-writer by design and sqlite serializes writers anyway.
func New(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_loc=UTC", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.seedDefaultAdmin(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		role TEXT DEFAULT 'admin',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT,
		address TEXT,
		loyalty_points INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		category TEXT DEFAULT 'Others',
		cost_price_cents INTEGER DEFAULT 0,
		price_cents INTEGER NOT NULL,
		tax_percent REAL DEFAULT 0,
		stock INTEGER DEFAULT 0,
		image TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		date DATETIME NOT NULL,
		subtotal_cents INTEGER NOT NULL,
		discount_cents INTEGER DEFAULT 0,
		tax_cents INTEGER NOT NULL,
		total_cents INTEGER NOT NULL,
		payment_mode TEXT NOT NULL,
		points_earned INTEGER DEFAULT 0,
		points_redeemed INTEGER DEFAULT 0,
		FOREIGN KEY (customer_id) REFERENCES customers(id)
	)`,
	// product_id carries no FOREIGN KEY on purpose: bill items snapshot the
	// product name/price/cost/tax, so the catalog row may be deleted later
	// without breaking historical bills.
	`CREATE TABLE IF NOT EXISTS bill_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bill_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		cost_price_cents INTEGER DEFAULT 0,
		price_cents INTEGER NOT NULL,
		tax_percent REAL NOT NULL,
		total_cents INTEGER NOT NULL,
		FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS loyalty_adjustments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		delta INTEGER NOT NULL,
		reason TEXT NOT NULL,
		source TEXT NOT NULL,
		bill_id INTEGER,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		business_name TEXT DEFAULT '',
		business_phone TEXT DEFAULT '',
		business_address TEXT DEFAULT '',
		enable_all_taxes INTEGER DEFAULT 1,
		enable_default_tax INTEGER DEFAULT 0,
		default_tax_percent REAL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bills_date ON bills(date)`,
	`CREATE INDEX IF NOT EXISTS idx_bills_customer ON bills(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bill_items_bill ON bill_items(bill_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loyalty_adjustments_customer ON loyalty_adjustments(customer_id)`,
}

// additiveMigrations are applied best-effort so an older on-disk database
// gains new columns without a rewrite. Schema evolution is additive only:
// new columns must be nullable or defaulted.
var additiveMigrations = []string{
	`ALTER TABLE products ADD COLUMN image TEXT`,
	`ALTER TABLE products ADD COLUMN cost_price_cents INTEGER DEFAULT 0`,
	`ALTER TABLE products ADD COLUMN category TEXT DEFAULT 'Others'`,
	`ALTER TABLE customers ADD COLUMN loyalty_points INTEGER DEFAULT 0`,
	`ALTER TABLE bills ADD COLUMN discount_cents INTEGER DEFAULT 0`,
	`ALTER TABLE bills ADD COLUMN points_earned INTEGER DEFAULT 0`,
	`ALTER TABLE bills ADD COLUMN points_redeemed INTEGER DEFAULT 0`,
	`ALTER TABLE bill_items ADD COLUMN cost_price_cents INTEGER DEFAULT 0`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	for _, stmt := range additiveMigrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO settings (id) VALUES (1)`)
	return err
}

// seedDefaultAdmin provisions admin/admin123 on first run so the shop can
// log in before creating real accounts. The password is stored as a bcrypt
// hash, never plaintext.
func (s *Store) seedDefaultAdmin(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = 'admin'`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, created_at)
		VALUES ('admin', ?, 'admin', ?)
	`, string(hash), time.Now().UTC())
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if user.Role == "" {
		user.Role = "admin"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, created_at)
		VALUES (?,?,?,?)
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrValidation
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, role, created_at
		FROM users
		WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, role, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 4)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = ? WHERE username = ?
	`, password, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" || customer.Phone == "" {
		return nil, store.ErrValidation
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (name, phone, email, address, loyalty_points, created_at)
		VALUES (?,?,?,?,0,?)
	`, customer.Name, customer.Phone, nullIfEmpty(customer.Email), nullIfEmpty(customer.Address), customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	customer.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	customer.LoyaltyPoints = 0
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" || customer.Phone == "" {
		return nil, store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = ?, phone = ?, email = ?, address = ?
		WHERE id = ?
	`, customer.Name, customer.Phone, nullIfEmpty(customer.Email), nullIfEmpty(customer.Address), customer.ID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomerByID(ctx, customer.ID)
}

// DeleteCustomer refuses to delete a customer with bills on record: bills
// join the customer row for contact details, so deletion would orphan
// history.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	var billCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills WHERE customer_id = ?`, id).Scan(&billCount); err != nil {
		return err
	}
	if billCount > 0 {
		return store.ErrReferential
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	var email, address sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, address, loyalty_points, created_at
		FROM customers
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &email, &address, &c.LoyaltyPoints, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.Email = email.String
	c.Address = address.String
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.queryCustomers(ctx, `
		SELECT id, name, phone, email, address, loyalty_points, created_at
		FROM customers
		ORDER BY created_at DESC, id DESC
	`)
}

func (s *Store) SearchCustomers(ctx context.Context, query string) ([]domain.Customer, error) {
	like := "%" + query + "%"
	return s.queryCustomers(ctx, `
		SELECT id, name, phone, email, address, loyalty_points, created_at
		FROM customers
		WHERE name LIKE ? OR phone LIKE ? OR email LIKE ?
		ORDER BY name
	`, like, like, like)
}

func (s *Store) queryCustomers(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		var email, address sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &email, &address, &c.LoyaltyPoints, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Email = email.String
		c.Address = address.String
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) CustomerPurchaseTotals(ctx context.Context, customerID int64) (int64, int64, error) {
	var count, spent int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_cents), 0)
		FROM bills
		WHERE customer_id = ?
	`, customerID).Scan(&count, &spent)
	return count, spent, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.Category == "" {
		product.Category = "Others"
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (name, category, cost_price_cents, price_cents, tax_percent, stock, image, created_at)
		VALUES (?,?,?,?,?,?,?,?)
	`, product.Name, product.Category, product.CostPriceCents, product.PriceCents, product.TaxPercent, product.Stock, nullIfEmpty(product.Image), product.CreatedAt)
	if err != nil {
		return nil, err
	}
	product.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if product.Category == "" {
		product.Category = "Others"
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, category = ?, cost_price_cents = ?, price_cents = ?, tax_percent = ?, stock = ?, image = ?
		WHERE id = ?
	`, product.Name, product.Category, product.CostPriceCents, product.PriceCents, product.TaxPercent, product.Stock, nullIfEmpty(product.Image), product.ID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	var image sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, cost_price_cents, price_cents, tax_percent, stock, image, created_at
		FROM products
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.CostPriceCents, &p.PriceCents, &p.TaxPercent, &p.Stock, &image, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.Image = image.String
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, name, category, cost_price_cents, price_cents, tax_percent, stock, image, created_at
		FROM products
		ORDER BY name
	`)
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, name, category, cost_price_cents, price_cents, tax_percent, stock, image, created_at
		FROM products
		WHERE name LIKE ?
		ORDER BY name
	`, "%"+query+"%")
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		var image sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.CostPriceCents, &p.PriceCents, &p.TaxPercent, &p.Stock, &image, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Image = image.String
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateBill persists the bill, its line items, the stock decrements, the
// customer's loyalty balance update and the ledger entries in one
// transaction. Any failure rolls back the whole attempt.
func (s *Store) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	if len(bill.Items) == 0 {
		return nil, store.ErrValidation
	}
	if bill.Date.IsZero() {
		bill.Date = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var currentPoints int64
	err = tx.QueryRowContext(ctx, `SELECT loyalty_points FROM customers WHERE id = ?`, bill.CustomerID).Scan(&currentPoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReferential
		}
		return nil, err
	}
	if bill.PointsRedeemed > currentPoints {
		return nil, store.ErrValidation
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bills (customer_id, date, subtotal_cents, discount_cents, tax_cents, total_cents, payment_mode, points_earned, points_redeemed)
		VALUES (?,?,?,?,?,?,?,?,?)
	`, bill.CustomerID, bill.Date, bill.SubtotalCents, bill.DiscountCents, bill.TaxCents, bill.TotalCents, bill.PaymentMode, bill.PointsEarned, bill.PointsRedeemed)
	if err != nil {
		return nil, err
	}
	bill.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for i := range bill.Items {
		item := &bill.Items[i]
		item.BillID = bill.ID

		var stock int
		err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, item.ProductID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrReferential
			}
			return nil, err
		}
		if stock < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - ? WHERE id = ?
		`, item.Quantity, item.ProductID); err != nil {
			return nil, err
		}

		itemRes, err := tx.ExecContext(ctx, `
			INSERT INTO bill_items (bill_id, product_id, product_name, quantity, cost_price_cents, price_cents, tax_percent, total_cents)
			VALUES (?,?,?,?,?,?,?,?)
		`, bill.ID, item.ProductID, item.ProductName, item.Quantity, item.CostPriceCents, item.PriceCents, item.TaxPercent, item.TotalCents)
		if err != nil {
			return nil, err
		}
		item.ID, err = itemRes.LastInsertId()
		if err != nil {
			return nil, err
		}
	}

	newBalance := currentPoints + bill.PointsEarned - bill.PointsRedeemed
	if _, err := tx.ExecContext(ctx, `
		UPDATE customers SET loyalty_points = ? WHERE id = ?
	`, newBalance, bill.CustomerID); err != nil {
		return nil, err
	}

	if bill.PointsEarned > 0 {
		if err := insertAdjustment(ctx, tx, domain.LoyaltyAdjustment{
			CustomerID: bill.CustomerID,
			Delta:      bill.PointsEarned,
			Reason:     "points earned on purchase",
			Source:     domain.AdjustmentSourceBill,
			BillID:     bill.ID,
			CreatedAt:  bill.Date,
		}); err != nil {
			return nil, err
		}
	}
	if bill.PointsRedeemed > 0 {
		if err := insertAdjustment(ctx, tx, domain.LoyaltyAdjustment{
			CustomerID: bill.CustomerID,
			Delta:      -bill.PointsRedeemed,
			Reason:     "points redeemed on purchase",
			Source:     domain.AdjustmentSourceBill,
			BillID:     bill.ID,
			CreatedAt:  bill.Date,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := bill
	return &created, nil
}

func insertAdjustment(ctx context.Context, tx *sql.Tx, entry domain.LoyaltyAdjustment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loyalty_adjustments (customer_id, delta, reason, source, bill_id, created_at)
		VALUES (?,?,?,?,?,?)
	`, entry.CustomerID, entry.Delta, entry.Reason, entry.Source, nullIfZero(entry.BillID), entry.CreatedAt)
	return err
}

func (s *Store) ListBills(ctx context.Context, from *time.Time, to *time.Time) ([]domain.Bill, error) {
	query := `
		SELECT b.id, b.customer_id, c.name, c.phone, b.date, b.subtotal_cents,
			b.discount_cents, b.tax_cents, b.total_cents, b.payment_mode,
			b.points_earned, b.points_redeemed
		FROM bills b
		JOIN customers c ON b.customer_id = c.id
	`
	args := make([]any, 0, 2)
	if from != nil && to != nil {
		query += ` WHERE b.date >= ? AND b.date < ?`
		args = append(args, from.UTC(), to.UTC())
	}
	query += ` ORDER BY b.date DESC, b.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 64)
	for rows.Next() {
		var b domain.Bill
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.CustomerName, &b.CustomerPhone, &b.Date, &b.SubtotalCents, &b.DiscountCents, &b.TaxCents, &b.TotalCents, &b.PaymentMode, &b.PointsEarned, &b.PointsRedeemed); err != nil {
			return nil, err
		}
		b.Date = b.Date.UTC()
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *Store) GetBillByID(ctx context.Context, id int64) (*domain.Bill, error) {
	var b domain.Bill
	var email, address sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.customer_id, c.name, c.phone, c.email, c.address,
			b.date, b.subtotal_cents, b.discount_cents, b.tax_cents, b.total_cents,
			b.payment_mode, b.points_earned, b.points_redeemed
		FROM bills b
		JOIN customers c ON b.customer_id = c.id
		WHERE b.id = ?
	`, id).Scan(&b.ID, &b.CustomerID, &b.CustomerName, &b.CustomerPhone, &email, &address, &b.Date, &b.SubtotalCents, &b.DiscountCents, &b.TaxCents, &b.TotalCents, &b.PaymentMode, &b.PointsEarned, &b.PointsRedeemed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	b.CustomerEmail = email.String
	b.CustomerAddress = address.String
	b.Date = b.Date.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, product_id, product_name, quantity, cost_price_cents, price_cents, tax_percent, total_cents
		FROM bill_items
		WHERE bill_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.BillItem, 0, 8)
	for rows.Next() {
		var item domain.BillItem
		if err := rows.Scan(&item.ID, &item.BillID, &item.ProductID, &item.ProductName, &item.Quantity, &item.CostPriceCents, &item.PriceCents, &item.TaxPercent, &item.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	b.Items = items
	b.ItemCount = len(items)
	return &b, nil
}

func (s *Store) DeleteBill(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CustomerBills(ctx context.Context, customerID int64) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.customer_id, b.date, b.subtotal_cents, b.discount_cents,
			b.tax_cents, b.total_cents, b.payment_mode, b.points_earned, b.points_redeemed,
			(SELECT COUNT(*) FROM bill_items WHERE bill_id = b.id)
		FROM bills b
		WHERE b.customer_id = ?
		ORDER BY b.date DESC, b.id DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 16)
	for rows.Next() {
		var b domain.Bill
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.Date, &b.SubtotalCents, &b.DiscountCents, &b.TaxCents, &b.TotalCents, &b.PaymentMode, &b.PointsEarned, &b.PointsRedeemed, &b.ItemCount); err != nil {
			return nil, err
		}
		b.Date = b.Date.UTC()
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *Store) ApplyLoyaltyAdjustment(ctx context.Context, customerID int64, newBalance int64, entry domain.LoyaltyAdjustment) error {
	if newBalance < 0 {
		return store.ErrValidation
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE customers SET loyalty_points = ? WHERE id = ?`, newBalance, customerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	if err := insertAdjustment(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListLoyaltyAdjustments(ctx context.Context, customerID int64, limit int) ([]domain.LoyaltyAdjustment, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, delta, reason, source, bill_id, created_at
		FROM loyalty_adjustments
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LoyaltyAdjustment, 0, limit)
	for rows.Next() {
		var entry domain.LoyaltyAdjustment
		var billID sql.NullInt64
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.Delta, &entry.Reason, &entry.Source, &billID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.BillID = billID.Int64
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_cents), 0)
		FROM bills
		WHERE date >= ? AND date < ?
	`, from.UTC(), to.UTC()).Scan(&summary.TotalBills, &summary.TotalSalesCents)
	return summary, err
}

func (s *Store) TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT bi.product_id, bi.product_name, SUM(bi.quantity), SUM(bi.total_cents)
		FROM bill_items bi
		JOIN bills b ON bi.bill_id = b.id
		WHERE b.date >= ? AND b.date < ?
		GROUP BY bi.product_id, bi.product_name
		ORDER BY SUM(bi.total_cents) DESC, MIN(bi.id) ASC
		LIMIT ?
	`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	top := make([]domain.ProductSales, 0, limit)
	for rows.Next() {
		var row domain.ProductSales
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.QuantitySold, &row.RevenueCents); err != nil {
			return nil, err
		}
		top = append(top, row)
	}
	return top, rows.Err()
}

func (s *Store) PaymentBreakdown(ctx context.Context, from time.Time, to time.Time) ([]domain.PaymentModeSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_mode, COUNT(*), COALESCE(SUM(total_cents), 0)
		FROM bills
		WHERE date >= ? AND date < ?
		GROUP BY payment_mode
		ORDER BY payment_mode
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modes := make([]domain.PaymentModeSales, 0, 4)
	for rows.Next() {
		var row domain.PaymentModeSales
		if err := rows.Scan(&row.PaymentMode, &row.Count, &row.TotalCents); err != nil {
			return nil, err
		}
		modes = append(modes, row)
	}
	return modes, rows.Err()
}

// TotalProfitCents sums (price - cost) * quantity over every bill item ever
// recorded, using the snapshots taken at sale time.
func (s *Store) TotalProfitCents(ctx context.Context) (int64, error) {
	var profit int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM((price_cents - cost_price_cents) * quantity), 0)
		FROM bill_items
	`).Scan(&profit)
	return profit, err
}

func (s *Store) RevenuePoints(ctx context.Context, from time.Time, to time.Time) ([]domain.RevenuePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, total_cents
		FROM bills
		WHERE date >= ? AND date < ?
		ORDER BY date ASC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.RevenuePoint, 0, 64)
	for rows.Next() {
		var p domain.RevenuePoint
		if err := rows.Scan(&p.At, &p.TotalCents); err != nil {
			return nil, err
		}
		p.At = p.At.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) CountCustomers(ctx context.Context) (int64, error) {
	return s.countRows(ctx, `SELECT COUNT(*) FROM customers`)
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	return s.countRows(ctx, `SELECT COUNT(*) FROM products`)
}

func (s *Store) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	return s.countRows(ctx, `SELECT COUNT(*) FROM products WHERE stock <= ?`, threshold)
}

func (s *Store) countRows(ctx context.Context, query string, args ...any) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if name == "" {
		return nil, store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Category{ID: id, Name: name}, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT business_name, business_phone, business_address,
			enable_all_taxes, enable_default_tax, default_tax_percent
		FROM settings
		WHERE id = 1
	`).Scan(&settings.BusinessName, &settings.BusinessPhone, &settings.BusinessAddress, &settings.EnableAllTaxes, &settings.EnableDefaultTax, &settings.DefaultTaxPercent)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{EnableAllTaxes: true}, nil
	}
	return settings, err
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, business_name, business_phone, business_address, enable_all_taxes, enable_default_tax, default_tax_percent)
		VALUES (1,?,?,?,?,?,?)
		ON CONFLICT (id)
		DO UPDATE SET business_name = excluded.business_name,
			business_phone = excluded.business_phone,
			business_address = excluded.business_address,
			enable_all_taxes = excluded.enable_all_taxes,
			enable_default_tax = excluded.enable_default_tax,
			default_tax_percent = excluded.default_tax_percent
	`, settings.BusinessName, settings.BusinessPhone, settings.BusinessAddress, settings.EnableAllTaxes, settings.EnableDefaultTax, settings.DefaultTaxPercent)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullIfZero(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
