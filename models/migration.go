package models

import (
	"log"

	"github.com/zayar/retailops_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Branch{}, &BranchShiftConfig{},
		&Vendor{}, &User{}, &RoleAssignment{},
		&ReceivingRecord{}, &ReceivingTask{},
		&TaskTemplate{}, &DependencyRule{},
		&VendorPaymentSchedule{}, &PaymentAdjustment{},
		&EngineSettings{},
		&NotificationRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
