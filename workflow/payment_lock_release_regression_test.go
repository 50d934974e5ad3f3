package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/models"
	"github.com/zayar/retailops_backend/utils"
	"github.com/zayar/retailops_backend/workflow"
)

// Regression: the per-payment advisory lock must not survive a committed
// adjustment. RELEASE_LOCK on a finished transaction fails silently, so a
// release deferred past commit leaves the lock on the pooled session and the
// next adjustment blocks for the full GET_LOCK timeout.
func TestAdjustmentReleasesAdvisoryLock(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "retailops_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	record := models.ReceivingRecord{
		BillNumber: "BILL-LOCK-1",
		VendorId:   1,
		BranchId:   1,
		BillAmount: decimal.RequireFromString("1000.00"),
		BillDate:   time.Now().UTC(),
		Status:     models.ReceivingRecordStatusActive,
		ReceivedBy: 1,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("create record: %v", err)
	}
	schedule := models.VendorPaymentSchedule{
		ReceivingRecordId: record.ID,
		VendorId:          record.VendorId,
		BillAmount:        record.BillAmount,
		FinalBillAmount:   record.BillAmount,
		PaymentStatus:     models.PaymentStatusPending,
	}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	discount := decimal.RequireFromString("100.00")
	if _, err := workflow.ApplyAdjustment(ctx, schedule.ID, workflow.AdjustmentInput{DiscountAmount: &discount}); err != nil {
		t.Fatalf("first adjustment: %v", err)
	}

	// The lock must be free on every session once the adjustment commits.
	lockName := fmt.Sprintf("vendor_payment:%d", schedule.ID)
	var free int
	if err := db.Raw("SELECT IS_FREE_LOCK(?)", lockName).Scan(&free).Error; err != nil {
		t.Fatalf("IS_FREE_LOCK: %v", err)
	}
	if free != 1 {
		t.Fatalf("advisory lock %s still held after commit", lockName)
	}

	// A follow-up adjustment acquires the lock immediately instead of waiting
	// out the GET_LOCK timeout against a leaked holder.
	grr := decimal.RequireFromString("50.00")
	start := time.Now()
	updated, err := workflow.ApplyAdjustment(ctx, schedule.ID, workflow.AdjustmentInput{GrrAmount: &grr})
	if err != nil {
		t.Fatalf("second adjustment: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("second adjustment took %s; lock was not released", elapsed)
	}
	if got := updated.FinalBillAmount.StringFixed(2); got != "850.00" {
		t.Fatalf("expected final amount 850.00, got %s", got)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("retailops-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=retailops_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
