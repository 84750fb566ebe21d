//go:build !race

package auth

// passwordHashCost is deliberately above the bcrypt default. Login latency is
// dominated by this; lower it only with a migration plan for stored hashes.
func passwordHashCost() int {
	return 14
}
