package middleware

import (
	"github.com/golang-jwt/jwt/v4"

	notifier "github.com/branchpulse/notifier"
)

type UserToken struct {
	RealmAccess RealmAccess         `json:"realm_access"`
	Roles       []notifier.UserRole `json:"role"`
	Email       string              `json:"email"`
	ClientID    string              `json:"azp"`
	UserID      string              `json:"sub"`
	Scopes      string              `json:"scope"`
	jwt.RegisteredClaims
}

type RealmAccess struct {
	Roles []notifier.UserRole `json:"roles"`
}

// AllRoles merges realm roles and directly assigned roles; either claim
// may be absent depending on the identity provider mapping.
func (t UserToken) AllRoles() []notifier.UserRole {
	roles := make([]notifier.UserRole, 0, len(t.RealmAccess.Roles)+len(t.Roles))
	roles = append(roles, t.RealmAccess.Roles...)
	for _, role := range t.Roles {
		found := false
		for _, existing := range roles {
			if existing == role {
				found = true
				break
			}
		}
		if !found {
			roles = append(roles, role)
		}
	}
	return roles
}
