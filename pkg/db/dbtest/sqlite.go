// Package dbtest opens throwaway sqlite databases carrying the full schema.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/grocer-backend/pkg/db/models"
)

// Open returns an isolated in-memory database with every table migrated. The
// pool is capped at one connection so transactions from concurrent goroutines
// run one after another, which is how sqlite behaves anyway.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.User{},
		&models.Supplier{},
		&models.Product{},
		&models.Stock{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.StockMovement{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	// sqlite has no sequences; cart.seq follows rowid like bigserial would.
	if err := conn.Exec(cartSeqTrigger).Error; err != nil {
		t.Fatalf("cart seq trigger: %v", err)
	}
	return conn
}

const cartSeqTrigger = `
CREATE TRIGGER IF NOT EXISTS cart_assign_seq AFTER INSERT ON cart
FOR EACH ROW WHEN NEW.seq IS NULL
BEGIN
	UPDATE cart SET seq = NEW.rowid WHERE rowid = NEW.rowid;
END`

// SeedUser inserts a customer.
func SeedUser(t testing.TB, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{Email: uuid.NewString() + "@example.com", Name: "Test Shopper", Role: "customer"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedProduct inserts a product with a stock row holding qty units.
func SeedProduct(t testing.TB, db *gorm.DB, name, price string, qty int) models.Product {
	t.Helper()
	product := models.Product{Name: name, Category: "grocery", Price: decimal.RequireFromString(price)}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	if err := db.Create(&models.Stock{ProductID: product.ID, Quantity: qty}).Error; err != nil {
		t.Fatalf("seed stock %s: %v", name, err)
	}
	return product
}

// AddToCart inserts a cart line.
func AddToCart(t testing.TB, db *gorm.DB, userID, productID uuid.UUID, qty int) models.CartItem {
	t.Helper()
	item := models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}
	return item
}

// StockOf reads the current quantity for a product.
func StockOf(t testing.TB, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var row models.Stock
	if err := db.First(&row, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return row.Quantity
}

// Count returns the row count of a model's table matching the optional filter.
func Count(t testing.TB, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
