package catalog

import "math/rand"

const (
	skuAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	skuLength   = 8
)

// GenerateSKU returns a random 8-character uppercase-alphanumeric SKU.
// Uniqueness is enforced by the database, not here: creation retries with a
// fresh candidate when the store reports a SKU collision, so a concurrent
// writer grabbing the same candidate is handled without a check-then-act
// race.
func GenerateSKU() string {
	b := make([]byte, skuLength)
	for i := range b {
		b[i] = skuAlphabet[rand.Intn(len(skuAlphabet))]
	}
	return string(b)
}
