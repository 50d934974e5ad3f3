package models

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm/clause"
)

const mysqlErrDuplicateEntry = 1062

// IsDuplicateKeyErr reports whether err is a MySQL unique-key violation. The
// unique indexes act as the last line of defense against concurrent inserts
// that slipped past the application-level existence checks.
func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return false
}

func forUpdateClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}
