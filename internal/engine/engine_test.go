package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/polydev-ai/quotaengine/internal/bonus"
	"github.com/polydev-ai/quotaengine/internal/db"
	"github.com/polydev-ai/quotaengine/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestEngine(t *testing.T) (*gorm.DB, *Engine) {
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
	return conn, New(conn)
}

func provisionUser(t *testing.T, eng *Engine, userID string) {
	t.Helper()
	if _, errEnsure := eng.Quotas().EnsureQuota(context.Background(), userID); errEnsure != nil {
		t.Fatalf("provision %s: %v", userID, errEnsure)
	}
}

func loadQuota(t *testing.T, conn *gorm.DB, userID string) models.PerspectiveQuota {
	t.Helper()
	var row models.PerspectiveQuota
	if errFind := conn.Where("user_id = ?", userID).Take(&row).Error; errFind != nil {
		t.Fatalf("load quota for %s: %v", userID, errFind)
	}
	return row
}

func TestDeductUsageUserKeySource(t *testing.T) {
	conn, eng := newTestEngine(t)
	provisionUser(t, eng, "user-1")
	ctx := context.Background()

	result, errDeduct := eng.DeductUsage(ctx, DeductParams{
		UserID:       "user-1",
		SessionID:    "session-1",
		ModelID:      "gemini-2.5-flash",
		InputTokens:  1200,
		OutputTokens: 300,
		SourceType:   models.SourceUserKey,
	})
	if errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}
	if result.ModelTier != models.TierEco {
		t.Fatalf("tier = %q, want eco", result.ModelTier)
	}
	if result.CreditsDeducted != 0 {
		t.Fatalf("user key source must not charge credits, got %d", result.CreditsDeducted)
	}
	if result.UsedBonus {
		t.Fatal("no bonus granted, UsedBonus must be false")
	}

	row := loadQuota(t, conn, "user-1")
	if row.EcoPerspectivesUsed != 1 {
		t.Fatalf("eco used = %d, want 1", row.EcoPerspectivesUsed)
	}
	if row.MessagesUsed != 1 {
		t.Fatalf("messages used = %d, want 1", row.MessagesUsed)
	}

	var usage models.PerspectiveUsage
	if errFind := conn.Where("user_id = ?", "user-1").Take(&usage).Error; errFind != nil {
		t.Fatalf("load usage row: %v", errFind)
	}
	if usage.TotalTokens != 1500 {
		t.Fatalf("total tokens = %d, want 1500", usage.TotalTokens)
	}
	if usage.SessionID != "session-1" {
		t.Fatalf("session id = %q", usage.SessionID)
	}

	var summary models.MonthlyUsageSummary
	if errFind := conn.Where("user_id = ?", "user-1").Take(&summary).Error; errFind != nil {
		t.Fatalf("load summary: %v", errFind)
	}
	if summary.TotalMessages != 1 || summary.EcoPerspectivesUsed != 1 {
		t.Fatalf("summary not updated: %+v", summary)
	}
}

func TestDeductUsageAdminCreditsCharged(t *testing.T) {
	conn, eng := newTestEngine(t)
	provisionUser(t, eng, "user-1")
	ctx := context.Background()

	if errAdd := eng.Credits().Add(ctx, "user-1", 100, false); errAdd != nil {
		t.Fatalf("add credits: %v", errAdd)
	}

	result, errDeduct := eng.DeductUsage(ctx, DeductParams{
		UserID:     "user-1",
		ModelID:    "gpt-5",
		SourceType: models.SourceAdminCredits,
	})
	if errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}
	if result.CreditsDeducted != 20 {
		t.Fatalf("premium credits = %d, want 20", result.CreditsDeducted)
	}

	var account models.UserCredits
	if errFind := conn.Where("user_id = ?", "user-1").Take(&account).Error; errFind != nil {
		t.Fatalf("load credits: %v", errFind)
	}
	if account.Balance != 80 {
		t.Fatalf("balance = %v, want 80", account.Balance)
	}
	if account.TotalSpent != 20 {
		t.Fatalf("total spent = %v, want 20", account.TotalSpent)
	}
}

func TestDeductUsageBonusCoversMessageCounter(t *testing.T) {
	conn, eng := newTestEngine(t)
	provisionUser(t, eng, "user-1")
	ctx := context.Background()

	if _, errGrant := eng.GrantBonus(ctx, bonus.GrantParams{
		UserID:        "user-1",
		BonusMessages: 1,
		BonusType:     models.BonusTypeAdminGrant,
	}); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}

	first, errDeduct := eng.DeductUsage(ctx, DeductParams{
		UserID:     "user-1",
		ModelID:    "claude-sonnet-4",
		SourceType: models.SourceUserCLI,
	})
	if errDeduct != nil {
		t.Fatalf("first deduct: %v", errDeduct)
	}
	if !first.UsedBonus {
		t.Fatal("first request should consume the bonus message")
	}

	second, errDeduct := eng.DeductUsage(ctx, DeductParams{
		UserID:     "user-1",
		ModelID:    "claude-sonnet-4",
		SourceType: models.SourceUserCLI,
	})
	if errDeduct != nil {
		t.Fatalf("second deduct: %v", errDeduct)
	}
	if second.UsedBonus {
		t.Fatal("bonus is exhausted, second request must be metered")
	}

	row := loadQuota(t, conn, "user-1")
	if row.NormalPerspectivesUsed != 2 {
		t.Fatalf("normal used = %d, want 2", row.NormalPerspectivesUsed)
	}
	if row.MessagesUsed != 1 {
		t.Fatalf("messages used = %d, want 1 (bonus covered the first)", row.MessagesUsed)
	}
}

func TestDeductUsageUnknownModelMetersAsNormal(t *testing.T) {
	conn, eng := newTestEngine(t)
	provisionUser(t, eng, "user-1")

	result, errDeduct := eng.DeductUsage(context.Background(), DeductParams{
		UserID:     "user-1",
		ModelID:    "mystery-model-9000",
		SourceType: models.SourceUserKey,
	})
	if errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}
	if result.ModelTier != models.TierNormal {
		t.Fatalf("tier = %q, want normal", result.ModelTier)
	}

	row := loadQuota(t, conn, "user-1")
	if row.NormalPerspectivesUsed != 1 {
		t.Fatalf("normal used = %d, want 1", row.NormalPerspectivesUsed)
	}
}

func TestDeductUsageUnknownUserFails(t *testing.T) {
	_, eng := newTestEngine(t)

	if _, errDeduct := eng.DeductUsage(context.Background(), DeductParams{
		UserID:  "ghost",
		ModelID: "gpt-5",
	}); errDeduct == nil {
		t.Fatal("deduction without a quota row must fail")
	}
}

func TestDeductUsageGeneratesSessionID(t *testing.T) {
	conn, eng := newTestEngine(t)
	provisionUser(t, eng, "user-1")

	if _, errDeduct := eng.DeductUsage(context.Background(), DeductParams{
		UserID:     "user-1",
		ModelID:    "glm-4.7",
		SourceType: models.SourceUserKey,
	}); errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}

	var usage models.PerspectiveUsage
	if errFind := conn.Where("user_id = ?", "user-1").Take(&usage).Error; errFind != nil {
		t.Fatalf("load usage row: %v", errFind)
	}
	if usage.SessionID == "" {
		t.Fatal("session id must be generated when absent")
	}
}

func TestConcurrentDeductionsNeverLoseIncrements(t *testing.T) {
	conn, eng := newTestEngine(t)
	provisionUser(t, eng, "user-1")

	const workers = 20
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errDeduct := eng.DeductUsage(context.Background(), DeductParams{
				UserID:     "user-1",
				ModelID:    "gemini-2.5-flash",
				SourceType: models.SourceUserKey,
			})
			errCh <- errDeduct
		}()
	}
	wg.Wait()
	close(errCh)
	for errDeduct := range errCh {
		if errDeduct != nil {
			t.Fatalf("concurrent deduct: %v", errDeduct)
		}
	}

	row := loadQuota(t, conn, "user-1")
	if row.EcoPerspectivesUsed != workers {
		t.Fatalf("eco used = %d, want %d", row.EcoPerspectivesUsed, workers)
	}
	if row.MessagesUsed != workers {
		t.Fatalf("messages used = %d, want %d", row.MessagesUsed, workers)
	}
}

func TestStatusSnapshot(t *testing.T) {
	_, eng := newTestEngine(t)
	ctx := context.Background()

	if errAdd := eng.Credits().Add(ctx, "user-1", 12.5, true); errAdd != nil {
		t.Fatalf("add credits: %v", errAdd)
	}
	if _, errGrant := eng.GrantBonus(ctx, bonus.GrantParams{
		UserID:        "user-1",
		BonusMessages: 30,
		BonusType:     models.BonusTypePromotion,
	}); errGrant != nil {
		t.Fatalf("grant: %v", errGrant)
	}

	status, errStatus := eng.Status(ctx, "user-1")
	if errStatus != nil {
		t.Fatalf("status: %v", errStatus)
	}
	if status.PlanTier != models.PlanFree {
		t.Fatalf("plan = %q, want free", status.PlanTier)
	}
	if status.Remaining.BonusMessages != 30 {
		t.Fatalf("bonus = %d, want 30", status.Remaining.BonusMessages)
	}
	if status.PromotionalBalance != 12.5 {
		t.Fatalf("promotional = %v, want 12.5", status.PromotionalBalance)
	}
	if status.Remaining.Messages == nil || *status.Remaining.Messages != 200 {
		t.Fatalf("remaining messages = %v, want 200", status.Remaining.Messages)
	}
}

func TestDeductUsageSurvivesAccountingTableLoss(t *testing.T) {
	conn, eng := newTestEngine(t)
	provisionUser(t, eng, "user-1")
	ctx := context.Background()

	// Knock out every best-effort accounting table. Only the quota counter
	// update is allowed to abort a deduction.
	if errDrop := conn.Migrator().DropTable(
		&models.UserCredits{},
		&models.PerspectiveUsage{},
		&models.MonthlyUsageSummary{},
		&models.BonusQuota{},
	); errDrop != nil {
		t.Fatalf("drop tables: %v", errDrop)
	}

	result, errDeduct := eng.DeductUsage(ctx, DeductParams{
		UserID:     "user-1",
		ModelID:    "gemini-2.5-flash",
		SourceType: models.SourceAdminCredits,
	})
	if errDeduct != nil {
		t.Fatalf("deduct must succeed without accounting tables: %v", errDeduct)
	}
	if result.UsedBonus {
		t.Fatal("bonus store gone, UsedBonus must be false")
	}

	row := loadQuota(t, conn, "user-1")
	if row.EcoPerspectivesUsed != 1 {
		t.Fatalf("eco used = %d, want 1", row.EcoPerspectivesUsed)
	}
	if row.MessagesUsed != 1 {
		t.Fatalf("messages used = %d, want 1", row.MessagesUsed)
	}
}

func TestCheckAvailabilityFailsClosedOnStoreError(t *testing.T) {
	conn, eng := newTestEngine(t)
	provisionUser(t, eng, "user-1")
	ctx := context.Background()

	if errDrop := conn.Migrator().DropTable(&models.PerspectiveQuota{}); errDrop != nil {
		t.Fatalf("drop quota table: %v", errDrop)
	}

	if _, errCheck := eng.CheckAvailability(ctx, "user-1", "gemini-2.5-flash"); errCheck == nil {
		t.Fatal("quota store gone, availability check must fail")
	}
}
