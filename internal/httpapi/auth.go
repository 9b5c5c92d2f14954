package httpapi

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/Farhaan-Ali/trade-stream/internal/access"
	"github.com/Farhaan-Ali/trade-stream/internal/models"
	"github.com/Farhaan-Ali/trade-stream/internal/store"
	"github.com/Farhaan-Ali/trade-stream/internal/token"
)

type identityContextKey struct{}

// identity is the per-request view of the caller: the token claims plus the
// role record and profile resolved from the store. Role and Profile are nil
// when the lookup found nothing or failed; the gate treats both as "loading".
type identity struct {
	UserID  string
	Email   string
	Role    *models.RoleRecord
	Profile *models.Profile
	State   access.State
}

// AuthMiddleware validates the bearer access token and resolves the caller's
// role record and profile. Resolution happens on every request, so an
// approval decision is visible immediately and no stale role state can leak
// across identity changes.
func AuthMiddleware(tokens *token.Manager, st store.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}

		raw := bearerToken(r.Header.Get("Authorization"))
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing access token")
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
			return
		}

		ident := identity{UserID: claims.UserID, Email: claims.Email}
		if rec, found, err := st.GetRoleRecord(r.Context(), claims.UserID); err != nil {
			log.Printf("role lookup failed user=%s: %v", claims.UserID, err)
		} else if found {
			ident.Role = &rec
		}
		if profile, found, err := st.GetProfile(r.Context(), claims.UserID); err != nil {
			log.Printf("profile lookup failed user=%s: %v", claims.UserID, err)
		} else if found {
			ident.Profile = &profile
		}
		ident.State = access.Evaluate(true, ident.Role)

		ctx := context.WithValue(r.Context(), identityContextKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) (identity, bool) {
	value := ctx.Value(identityContextKey{})
	if value == nil {
		return identity{}, false
	}
	ident, ok := value.(identity)
	return ident, ok
}

// requireIdentity admits every gate state. Only /me and /logout use it:
// a pending supplier must still see their status and be able to sign out.
func requireIdentity(w http.ResponseWriter, r *http.Request) (identity, bool) {
	ident, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing access token")
		return identity{}, false
	}
	return ident, true
}

// requireAllowed admits only callers whose gate state is Allowed.
func requireAllowed(w http.ResponseWriter, r *http.Request) (identity, bool) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return identity{}, false
	}
	switch ident.State {
	case access.StateAllowed:
		return ident, true
	case access.StatePendingApproval:
		writeError(w, http.StatusForbidden, "pending_approval", "account is awaiting approval")
	default:
		writeError(w, http.StatusServiceUnavailable, "resolving", "role resolution incomplete, retry")
	}
	return identity{}, false
}

func requireRole(w http.ResponseWriter, r *http.Request, role models.Role) (identity, bool) {
	ident, ok := requireAllowed(w, r)
	if !ok {
		return identity{}, false
	}
	if ident.Role == nil || ident.Role.Role != role {
		writeError(w, http.StatusForbidden, "access_denied", "insufficient role")
		return identity{}, false
	}
	return ident, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/auth/register", "/api/auth/login", "/api/auth/refresh":
		return true
	default:
		return r.Method == http.MethodOptions
	}
}
