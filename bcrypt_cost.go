//go:build !race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	return bcrypt.DefaultCost
}

func clampHashCost(cost int) int {
	return cost
}
