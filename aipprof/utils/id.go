package utils

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewProfileID tags one profile collection. It is the hex form of a random uuid.
func NewProfileID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(id[:])
}
