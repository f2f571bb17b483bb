package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the primary key was left empty so rows
// can be inserted the same way on Postgres and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
