package user

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	resetCodeMin   = 100000
	resetCodeRange = 900000

	maxResetCodeAttempts = 5
)

var (
	NowFunc      = time.Now     // mockable
	resetCodeGen = newResetCode // mockable
)

// newResetCode returns a random 6-digit numeric code.
func newResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(resetCodeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", resetCodeMin+n.Int64()), nil
}
