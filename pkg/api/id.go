package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	unitIDPrefix  = "unit_"
	batchIDPrefix = "batch_"
)

var unitIDPattern = regexp.MustCompile(`^unit_[a-zA-Z0-9]{24}$`)

// NewUnitID generates a new unit-of-work ID with the "unit_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewUnitID() string {
	return unitIDPrefix + randomAlphanumeric(idLength)
}

// ValidateUnitID checks whether the given string is a valid unit ID
// (matches "unit_" + 24 alphanumeric characters).
func ValidateUnitID(id string) bool {
	return unitIDPattern.MatchString(id)
}

// NewBatchID generates a new batch run ID with the "batch_" prefix.
func NewBatchID() string {
	return batchIDPrefix + randomAlphanumeric(idLength)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
