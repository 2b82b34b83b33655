package credits

import (
	"context"
	"math"
	"testing"

	"github.com/polydev-ai/quotaengine/internal/db"
	"github.com/polydev-ai/quotaengine/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBalanceCreatesZeroRow(t *testing.T) {
	ledger := NewLedger(openTestDB(t))

	row, errBalance := ledger.Balance(context.Background(), "user-1")
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if row.Balance != 0 || row.PromotionalBalance != 0 || row.TotalSpent != 0 {
		t.Fatalf("new account not zeroed: %+v", row)
	}

	if _, errEmpty := ledger.Balance(context.Background(), "  "); errEmpty != ErrInvalidUser {
		t.Fatalf("blank user: got %v, want ErrInvalidUser", errEmpty)
	}
}

func TestDeductDrainsPromotionalFirst(t *testing.T) {
	conn := openTestDB(t)
	ledger := NewLedger(conn)
	ctx := context.Background()

	if errCreate := conn.Create(&models.UserCredits{
		UserID:             "user-1",
		Balance:            10,
		PromotionalBalance: 5,
	}).Error; errCreate != nil {
		t.Fatalf("seed credits: %v", errCreate)
	}

	if errDeduct := ledger.Deduct(ctx, "user-1", 7); errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}

	row, errBalance := ledger.Balance(ctx, "user-1")
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if !almostEqual(row.PromotionalBalance, 0) {
		t.Fatalf("promotional = %v, want 0", row.PromotionalBalance)
	}
	if !almostEqual(row.Balance, 8) {
		t.Fatalf("balance = %v, want 8", row.Balance)
	}
	if !almostEqual(row.TotalSpent, 7) {
		t.Fatalf("total_spent = %v, want 7", row.TotalSpent)
	}
}

func TestDeductFloorsAtZeroButRecordsFullSpend(t *testing.T) {
	conn := openTestDB(t)
	ledger := NewLedger(conn)
	ctx := context.Background()

	if errCreate := conn.Create(&models.UserCredits{
		UserID:  "user-1",
		Balance: 10,
	}).Error; errCreate != nil {
		t.Fatalf("seed credits: %v", errCreate)
	}

	if errDeduct := ledger.Deduct(ctx, "user-1", 20); errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}

	row, errBalance := ledger.Balance(ctx, "user-1")
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if !almostEqual(row.Balance, 0) || !almostEqual(row.PromotionalBalance, 0) {
		t.Fatalf("balances not floored: %+v", row)
	}
	if !almostEqual(row.TotalSpent, 20) {
		t.Fatalf("total_spent = %v, want 20", row.TotalSpent)
	}
}

func TestDeductFromAbsentAccount(t *testing.T) {
	ledger := NewLedger(openTestDB(t))
	ctx := context.Background()

	if errDeduct := ledger.Deduct(ctx, "user-1", 4); errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}

	row, errBalance := ledger.Balance(ctx, "user-1")
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if !almostEqual(row.TotalSpent, 4) {
		t.Fatalf("total_spent = %v, want 4", row.TotalSpent)
	}
	if !almostEqual(row.Balance, 0) {
		t.Fatalf("balance = %v, want 0", row.Balance)
	}
}

func TestAddSeparatesPromotionalAndPurchased(t *testing.T) {
	ledger := NewLedger(openTestDB(t))
	ctx := context.Background()

	if errAdd := ledger.Add(ctx, "user-1", 50, false); errAdd != nil {
		t.Fatalf("add purchased: %v", errAdd)
	}
	if errAdd := ledger.Add(ctx, "user-1", 5, true); errAdd != nil {
		t.Fatalf("add promotional: %v", errAdd)
	}

	row, errBalance := ledger.Balance(ctx, "user-1")
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if !almostEqual(row.Balance, 50) || !almostEqual(row.TotalPurchased, 50) {
		t.Fatalf("purchased not recorded: %+v", row)
	}
	if !almostEqual(row.PromotionalBalance, 5) {
		t.Fatalf("promotional = %v, want 5", row.PromotionalBalance)
	}
}
