package model

import "github.com/google/uuid"

// assignID fills an empty primary key before insert so rows get the same
// identifiers on every dialect.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
