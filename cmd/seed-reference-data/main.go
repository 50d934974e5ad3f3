// seed-reference-data loads the baseline configuration a fresh environment
// needs before receiving records can be processed: one task template per role,
// the shelving-proof dependency rules for the supervisory roles, engine
// settings, an admin user, and a demo branch with role assignments.
//
// Safe to rerun; every step checks for an existing row first.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-reference-data
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/models"
	"gorm.io/gorm"
)

const (
	adminEmail    = "admin@retailops.local"
	adminPassword = "Ret@ilOpsAdmin1"
	adminName     = "RetailOps Admin"

	demoBranchName = "Main Branch"
)

type templateSeed struct {
	role        models.Role
	title       string
	description string
	priority    models.TaskPriority
	dueInHours  int
}

var templateSeeds = []templateSeed{
	{
		role:        models.RoleInventoryManager,
		title:       "Post ERP invoice for bill {bill_number}",
		description: "Enter the purchase invoice in the ERP, attach the PR excel and the original bill for receiving record {bill_number} ({bill_amount}).",
		priority:    models.TaskPriorityHigh,
		dueInHours:  24,
	},
	{
		role:        models.RolePurchaseManager,
		title:       "Verify PR excel for bill {bill_number}",
		description: "Cross-check the PR excel against vendor {vendor_id} pricing for bill {bill_number}.",
		priority:    models.TaskPriorityHigh,
		dueInHours:  24,
	},
	{
		role:        models.RoleAccountant,
		title:       "Reconcile payment for bill {bill_number}",
		description: "Review deductions and schedule payment for bill {bill_number} ({bill_amount}).",
		priority:    models.TaskPriorityMedium,
		dueInHours:  48,
	},
	{
		role:        models.RoleShelfStocker,
		title:       "Shelve goods for bill {bill_number}",
		description: "Move received goods to the sales floor at branch {branch_id} and photograph the shelved stock.",
		priority:    models.TaskPriorityMedium,
		dueInHours:  12,
	},
	{
		role:        models.RoleBranchManager,
		title:       "Sign off receiving {bill_number}",
		description: "Confirm shelving is complete and attach the clearance certificate for bill {bill_number}.",
		priority:    models.TaskPriorityMedium,
		dueInHours:  48,
	},
	{
		role:        models.RoleNightSupervisor,
		title:       "Night sign-off for receiving {bill_number}",
		description: "Confirm overnight shelving is complete and attach the clearance certificate for bill {bill_number}.",
		priority:    models.TaskPriorityMedium,
		dueInHours:  48,
	},
}

type ruleSeed struct {
	role             models.Role
	dependsOn        models.Role
	requiredArtifact models.RequiredArtifact
}

var ruleSeeds = []ruleSeed{
	{models.RoleBranchManager, models.RoleShelfStocker, models.ArtifactCompletedWithPhoto},
	{models.RoleNightSupervisor, models.RoleShelfStocker, models.ArtifactCompletedWithPhoto},
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	seedTemplates(ctx, db)
	seedDependencyRules(ctx, db)
	seedEngineSettings(ctx, db)
	admin := seedAdminUser(ctx, db)
	branch := seedDemoBranch(ctx, db)
	seedRoleAssignments(ctx, db, branch, admin)

	fmt.Println("Reference data seeded.")
}

func seedTemplates(ctx context.Context, db *gorm.DB) {
	for _, seed := range templateSeeds {
		var existing models.TaskTemplate
		err := db.WithContext(ctx).Where("role = ?", seed.role).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			fatalf("failed to lookup template for %s: %v", seed.role, err)
		}
		_, err = models.CreateTaskTemplate(ctx, models.NewTaskTemplate{
			Role:                seed.role,
			TitleTemplate:       seed.title,
			DescriptionTemplate: seed.description,
			Priority:            seed.priority,
			DueInHours:          seed.dueInHours,
		})
		if err != nil {
			fatalf("failed to create template for %s: %v", seed.role, err)
		}
		fmt.Printf("Created task template: %s\n", seed.role)
	}
}

func seedDependencyRules(ctx context.Context, db *gorm.DB) {
	for _, seed := range ruleSeeds {
		var existing models.DependencyRule
		err := db.WithContext(ctx).
			Where("role = ? AND depends_on_role = ?", seed.role, seed.dependsOn).
			First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			fatalf("failed to lookup rule %s -> %s: %v", seed.role, seed.dependsOn, err)
		}
		_, err = models.CreateDependencyRule(ctx, models.NewDependencyRule{
			Role:             seed.role,
			DependsOnRole:    seed.dependsOn,
			RequiredArtifact: seed.requiredArtifact,
		})
		if err != nil {
			fatalf("failed to create rule %s -> %s: %v", seed.role, seed.dependsOn, err)
		}
		fmt.Printf("Created dependency rule: %s depends on %s (%s)\n", seed.role, seed.dependsOn, seed.requiredArtifact)
	}
}

func seedEngineSettings(ctx context.Context, db *gorm.DB) {
	var existing models.EngineSettings
	err := db.WithContext(ctx).First(&existing).Error
	if err == nil {
		return
	}
	if err != gorm.ErrRecordNotFound {
		fatalf("failed to lookup engine settings: %v", err)
	}
	settings := models.EngineSettings{OutboxMaxAttempts: 8}
	if err := db.WithContext(ctx).Create(&settings).Error; err != nil {
		fatalf("failed to create engine settings: %v", err)
	}
	fmt.Println("Created engine settings")
}

func seedAdminUser(ctx context.Context, db *gorm.DB) *models.User {
	var existing models.User
	err := db.WithContext(ctx).Where("email = ?", adminEmail).First(&existing).Error
	if err == nil {
		return &existing
	}
	if err != gorm.ErrRecordNotFound {
		fatalf("failed to lookup admin user: %v", err)
	}
	user, err := models.CreateUser(ctx, models.NewUser{
		Name:     adminName,
		Email:    adminEmail,
		Password: adminPassword,
	})
	if err != nil {
		fatalf("failed to create admin user: %v", err)
	}
	fmt.Printf("Created admin user: %s\n", adminEmail)
	return user
}

func seedDemoBranch(ctx context.Context, db *gorm.DB) *models.Branch {
	var existing models.Branch
	err := db.WithContext(ctx).Where("name = ?", demoBranchName).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		fatalf("failed to lookup branch: %v", err)
	}
	if err == gorm.ErrRecordNotFound {
		existing = models.Branch{Name: demoBranchName, IsActive: true}
		if err := db.WithContext(ctx).Create(&existing).Error; err != nil {
			fatalf("failed to create branch: %v", err)
		}
		fmt.Printf("Created branch: %s\n", demoBranchName)
	}

	var cfg models.BranchShiftConfig
	err = db.WithContext(ctx).Where("branch_id = ?", existing.ID).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		// Night window 21:00 to 06:00 branch-local, wrapping midnight.
		cfg = models.BranchShiftConfig{
			BranchId:         existing.ID,
			Timezone:         "Asia/Yangon",
			NightStartMinute: 21 * 60,
			NightEndMinute:   6 * 60,
		}
		if err := db.WithContext(ctx).Create(&cfg).Error; err != nil {
			fatalf("failed to create branch shift config: %v", err)
		}
		fmt.Printf("Created shift config for branch %d\n", existing.ID)
	} else if err != nil {
		fatalf("failed to lookup branch shift config: %v", err)
	}
	return &existing
}

func seedRoleAssignments(ctx context.Context, db *gorm.DB, branch *models.Branch, admin *models.User) {
	roles := append(append([]models.Role{}, models.BaseRoles...), models.RoleBranchManager, models.RoleNightSupervisor)
	for _, role := range roles {
		var existing models.RoleAssignment
		err := db.WithContext(ctx).
			Where("branch_id = ? AND role = ? AND user_id = ?", branch.ID, role, admin.ID).
			First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			fatalf("failed to lookup role assignment %s: %v", role, err)
		}
		_, err = models.CreateRoleAssignment(ctx, models.NewRoleAssignment{
			UserId:   admin.ID,
			Role:     role,
			BranchId: branch.ID,
			Rank:     1,
		})
		if err != nil {
			fatalf("failed to create role assignment %s: %v", role, err)
		}
		fmt.Printf("Assigned %s at branch %d to user %d\n", role, branch.ID, admin.ID)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
