package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const postgresDialect = "postgres"

// SetLockTimeout bounds how long statements in tx wait for row locks. The
// setting is scoped to the transaction. Dialects without lock_timeout are left
// untouched.
func SetLockTimeout(tx *gorm.DB, timeout time.Duration) error {
	if tx == nil || timeout <= 0 {
		return nil
	}
	if tx.Dialector == nil || tx.Dialector.Name() != postgresDialect {
		return nil
	}
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error
}
