//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	return bcrypt.DefaultCost
}

// clampHashCost caps configured costs at the default in race-enabled builds
// so test suites can run with strict timeouts.
func clampHashCost(cost int) int {
	if cost > bcrypt.DefaultCost {
		return bcrypt.DefaultCost
	}
	return cost
}
