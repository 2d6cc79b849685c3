package auth

// Authorize decides whether a requester may access a resource owned by
// ownerID: admins always may, anyone else only their own resources.
func Authorize(requesterRole Role, requesterID, ownerID string) error {
	switch requesterRole {
	case RoleAdmin:
		return nil
	case RoleUser:
		if requesterID != "" && requesterID == ownerID {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// AuthorizeClaims runs Authorize with the requester taken from claims
func AuthorizeClaims(claims *JWTClaims, ownerID string) error {
	if claims == nil {
		return ErrUnauthenticated
	}
	return Authorize(claims.Role(), claims.UserID(), ownerID)
}

// RequireRoles checks a route level role allow list
func RequireRoles(role Role, allowed ...Role) error {
	if !role.IsValid() {
		return ErrForbidden
	}
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return ErrForbidden
}
