package store

import (
	"context"
	"time"

	"github.com/Farhaan-Ali/trade-stream/internal/models"
)

type RegisterInput struct {
	Email    string
	Password string
	Role     models.Role
	Profile  models.Profile

	// ForceSuperadmin is set by the bootstrap override: the resulting role
	// record is superadmin/approved regardless of the requested role.
	ForceSuperadmin bool
}

type RegisterResult struct {
	User    models.User
	Role    models.RoleRecord
	Profile models.Profile
}

// PendingSupplier is a pending role record joined with the owner's profile.
// Profile may be zero-valued when the profile row is missing.
type PendingSupplier struct {
	Role    models.RoleRecord `json:"role"`
	Profile models.Profile    `json:"profile"`
}

type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

type Store interface {
	Register(ctx context.Context, input RegisterInput) (RegisterResult, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, bool, error)

	GetRoleRecord(ctx context.Context, userID string) (models.RoleRecord, bool, error)
	GetProfile(ctx context.Context, userID string) (models.Profile, bool, error)
	UpdateProfile(ctx context.Context, profile models.Profile) (models.Profile, error)

	SetApprovalStatus(ctx context.Context, userID string, status models.ApprovalStatus) error
	ListPendingSuppliers(ctx context.Context) ([]PendingSupplier, error)
	GetPlatformStats(ctx context.Context) (models.PlatformStats, error)

	GetSupplierStats(ctx context.Context, userID string) (models.SupplierStats, error)
	ListSupplierRecentOrders(ctx context.Context, userID string, limit int) ([]models.Order, error)
	ListLowStockProducts(ctx context.Context, userID string, limit int) ([]models.Product, error)
	GetVendorStats(ctx context.Context, userID string) (models.VendorStats, error)
	ListVendorRecentOrders(ctx context.Context, userID string, limit int) ([]models.Order, error)
	ListActiveSuppliers(ctx context.Context, limit int) ([]models.SupplierListing, error)

	CreateRefreshToken(ctx context.Context, userID string, token string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error

	InsertAudit(ctx context.Context, audit models.AuditLog) error
}
