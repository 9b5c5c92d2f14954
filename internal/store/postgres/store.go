package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/Farhaan-Ali/trade-stream/internal/models"
	"github.com/Farhaan-Ali/trade-stream/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Register creates the user, role record, and profile in one transaction so
// an identity can never exist without a role record.
func (s *Store) Register(ctx context.Context, input store.RegisterInput) (store.RegisterResult, error) {
	if len(input.Password) < minPasswordLength {
		return store.RegisterResult{}, store.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.RegisterResult{}, err
	}

	finalRole := input.Role
	status := models.StatusApproved
	profile := input.Profile
	if input.ForceSuperadmin {
		// Bootstrap override: always an approved superadmin with a pinned
		// display name, whatever the caller asked for.
		finalRole = models.RoleSuperadmin
		profile.FullName = "Admin"
	} else if finalRole == models.RoleSupplier {
		status = models.StatusPending
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.RegisterResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	userID := uuid.NewString()
	var user models.User
	row := tx.QueryRow(ctx, `
		INSERT INTO users (user_id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING user_id, email, created_at
	`, userID, input.Email, string(hash))
	if err = row.Scan(&user.UserID, &user.Email, &user.Created); err != nil {
		if isUniqueViolation(err) {
			err = store.ErrEmailTaken
		}
		return store.RegisterResult{}, err
	}

	var roleRecord models.RoleRecord
	row = tx.QueryRow(ctx, `
		INSERT INTO user_roles (role_id, user_id, role, approval_status)
		VALUES ($1, $2, $3, $4)
		RETURNING role_id, user_id, role, approval_status, created_at, updated_at
	`, uuid.NewString(), userID, finalRole, status)
	if err = row.Scan(&roleRecord.RoleID, &roleRecord.UserID, &roleRecord.Role, &roleRecord.ApprovalStatus, &roleRecord.Created, &roleRecord.Updated); err != nil {
		return store.RegisterResult{}, err
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO profiles (user_id, full_name, company_name, business_name, business_type,
		                      business_address, contact_number, fssai_license, other_certifications)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING user_id, full_name, company_name, business_name, business_type,
		          business_address, contact_number, fssai_license, other_certifications,
		          avatar_url, created_at, updated_at
	`, userID, profile.FullName, profile.CompanyName, profile.BusinessName, profile.BusinessType,
		profile.BusinessAddress, profile.ContactNumber, profile.FSSAILicense, certifications(profile.OtherCertifications))
	if err = scanProfile(row, &profile); err != nil {
		return store.RegisterResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.RegisterResult{}, err
	}

	return store.RegisterResult{User: user, Role: roleRecord, Profile: profile}, nil
}

func (s *Store) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	var user models.User
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, email, password_hash, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	if err := row.Scan(&user.UserID, &user.Email, &passwordHash, &user.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return models.User{}, store.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, bool, error) {
	var user models.User
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, email, created_at
		FROM users
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&user.UserID, &user.Email, &user.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, false, nil
		}
		return models.User{}, false, err
	}
	return user, true, nil
}

func (s *Store) GetRoleRecord(ctx context.Context, userID string) (models.RoleRecord, bool, error) {
	var rec models.RoleRecord
	row := s.pool.QueryRow(ctx, `
		SELECT role_id, user_id, role, approval_status, created_at, updated_at
		FROM user_roles
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&rec.RoleID, &rec.UserID, &rec.Role, &rec.ApprovalStatus, &rec.Created, &rec.Updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RoleRecord{}, false, nil
		}
		return models.RoleRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (models.Profile, bool, error) {
	var profile models.Profile
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, full_name, company_name, business_name, business_type,
		       business_address, contact_number, fssai_license, other_certifications,
		       avatar_url, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID)
	if err := scanProfile(row, &profile); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, false, nil
		}
		return models.Profile{}, false, err
	}
	return profile, true, nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile models.Profile) (models.Profile, error) {
	var updated models.Profile
	row := s.pool.QueryRow(ctx, `
		UPDATE profiles
		SET full_name = $2, company_name = $3, business_name = $4, business_type = $5,
		    business_address = $6, contact_number = $7, fssai_license = $8,
		    other_certifications = $9, avatar_url = $10, updated_at = NOW()
		WHERE user_id = $1
		RETURNING user_id, full_name, company_name, business_name, business_type,
		          business_address, contact_number, fssai_license, other_certifications,
		          avatar_url, created_at, updated_at
	`, profile.UserID, profile.FullName, profile.CompanyName, profile.BusinessName, profile.BusinessType,
		profile.BusinessAddress, profile.ContactNumber, profile.FSSAILicense,
		certifications(profile.OtherCertifications), profile.AvatarURL)
	if err := scanProfile(row, &updated); err != nil {
		return models.Profile{}, err
	}
	return updated, nil
}

// SetApprovalStatus is a single-field last-write-wins update; setting the
// same status twice is a no-op.
func (s *Store) SetApprovalStatus(ctx context.Context, userID string, status models.ApprovalStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE user_roles
		SET approval_status = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrRoleNotFound
	}
	return nil
}

func (s *Store) ListPendingSuppliers(ctx context.Context) ([]store.PendingSupplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.role_id, r.user_id, r.role, r.approval_status, r.created_at, r.updated_at,
		       COALESCE(p.full_name, ''), COALESCE(p.company_name, ''), COALESCE(p.business_name, ''),
		       COALESCE(p.business_type, ''), COALESCE(p.business_address, ''), COALESCE(p.contact_number, ''),
		       COALESCE(p.fssai_license, ''), COALESCE(p.other_certifications, '{}'), COALESCE(p.avatar_url, '')
		FROM user_roles r
		LEFT JOIN profiles p ON p.user_id = r.user_id
		WHERE r.role = 'supplier' AND r.approval_status = 'pending'
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []store.PendingSupplier
	for rows.Next() {
		var item store.PendingSupplier
		var certs []string
		if err := rows.Scan(
			&item.Role.RoleID, &item.Role.UserID, &item.Role.Role, &item.Role.ApprovalStatus,
			&item.Role.Created, &item.Role.Updated,
			&item.Profile.FullName, &item.Profile.CompanyName, &item.Profile.BusinessName,
			&item.Profile.BusinessType, &item.Profile.BusinessAddress, &item.Profile.ContactNumber,
			&item.Profile.FSSAILicense, &certs, &item.Profile.AvatarURL,
		); err != nil {
			return nil, err
		}
		item.Profile.UserID = item.Role.UserID
		item.Profile.OtherCertifications = certs
		pending = append(pending, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

func (s *Store) GetPlatformStats(ctx context.Context) (models.PlatformStats, error) {
	var stats models.PlatformStats
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE role = 'supplier'),
		       COUNT(*) FILTER (WHERE role = 'vendor'),
		       COUNT(*) FILTER (WHERE role = 'supplier' AND approval_status = 'pending'),
		       (SELECT COUNT(*) FROM products),
		       (SELECT COUNT(*) FROM orders)
		FROM user_roles
	`)
	if err := row.Scan(&stats.TotalUsers, &stats.TotalSuppliers, &stats.TotalVendors,
		&stats.PendingApprovals, &stats.TotalProducts, &stats.TotalOrders); err != nil {
		return models.PlatformStats{}, err
	}
	return stats, nil
}

func (s *Store) GetSupplierStats(ctx context.Context, userID string) (models.SupplierStats, error) {
	var stats models.SupplierStats
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active'),
		       COUNT(*) FILTER (WHERE stock_quantity <= min_stock_level)
		FROM products
		WHERE supplier_id = $1
	`, userID)
	if err := row.Scan(&stats.TotalProducts, &stats.ActiveProducts, &stats.LowStockProducts); err != nil {
		return models.SupplierStats{}, err
	}

	row = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE supplier_id = $1
	`, userID)
	if err := row.Scan(&stats.TotalOrders, &stats.PendingOrders, &stats.TotalRevenue); err != nil {
		return models.SupplierStats{}, err
	}
	return stats, nil
}

func (s *Store) ListSupplierRecentOrders(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	return s.listOrders(ctx, `o.supplier_id = $1`, userID, limit)
}

func (s *Store) ListLowStockProducts(ctx context.Context, userID string, limit int) ([]models.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, supplier_id, name, status, price, stock_quantity, min_stock_level, created_at
		FROM products
		WHERE supplier_id = $1 AND stock_quantity <= min_stock_level
		ORDER BY stock_quantity ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ProductID, &p.SupplierID, &p.Name, &p.Status, &p.Price,
			&p.StockQuantity, &p.MinStockLevel, &p.Created); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetVendorStats(ctx context.Context, userID string) (models.VendorStats, error) {
	var stats models.VendorStats
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'delivered'),
		       COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE vendor_user_id = $1
	`, userID)
	if err := row.Scan(&stats.TotalOrders, &stats.PendingOrders, &stats.CompletedOrders, &stats.TotalSpent); err != nil {
		return models.VendorStats{}, err
	}

	row = s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM user_roles WHERE role = 'supplier' AND approval_status = 'approved'),
		       (SELECT COUNT(*) FROM products WHERE status = 'active')
	`)
	if err := row.Scan(&stats.ActiveSuppliers, &stats.AvailableProducts); err != nil {
		return models.VendorStats{}, err
	}
	return stats, nil
}

func (s *Store) ListVendorRecentOrders(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	return s.listOrders(ctx, `o.vendor_user_id = $1`, userID, limit)
}

func (s *Store) ListActiveSuppliers(ctx context.Context, limit int) ([]models.SupplierListing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.user_id, COALESCE(p.business_name, ''), COALESCE(p.business_type, ''), COALESCE(p.fssai_license, '')
		FROM user_roles r
		LEFT JOIN profiles p ON p.user_id = r.user_id
		WHERE r.role = 'supplier' AND r.approval_status = 'approved'
		ORDER BY r.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []models.SupplierListing
	for rows.Next() {
		var listing models.SupplierListing
		if err := rows.Scan(&listing.UserID, &listing.BusinessName, &listing.BusinessType, &listing.FSSAILicense); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	return err
}

func (s *Store) GetRefreshToken(ctx context.Context, token string) (store.RefreshToken, error) {
	var rt store.RefreshToken
	row := s.pool.QueryRow(ctx, `
		SELECT token, user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND expires_at > NOW()
	`, token)
	if err := row.Scan(&rt.Token, &rt.UserID, &rt.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.RefreshToken{}, store.ErrSessionNotFound
		}
		return store.RefreshToken{}, err
	}
	return rt, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`, token)
	return err
}

func (s *Store) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`, userID)
	return err
}

func (s *Store) InsertAudit(ctx context.Context, audit models.AuditLog) error {
	if audit.AuditID == "" {
		audit.AuditID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (audit_id, actor_user_id, action_type, target_type, target_id, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, audit.AuditID, nullIfEmpty(audit.ActorUserID), audit.ActionType, audit.TargetType, audit.TargetID, audit.IP, audit.UserAgent)
	return err
}

func (s *Store) listOrders(ctx context.Context, where string, userID string, limit int) ([]models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.order_id, o.supplier_id, o.vendor_user_id, COALESCE(pr.name, ''), o.status, o.total_amount, o.created_at
		FROM orders o
		LEFT JOIN products pr ON pr.product_id = o.product_id
		WHERE `+where+`
		ORDER BY o.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.OrderID, &o.SupplierID, &o.VendorUserID, &o.ProductName, &o.Status, &o.TotalAmount, &o.Created); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

type profileRow interface {
	Scan(dest ...any) error
}

func scanProfile(row profileRow, profile *models.Profile) error {
	var certs []string
	if err := row.Scan(&profile.UserID, &profile.FullName, &profile.CompanyName, &profile.BusinessName,
		&profile.BusinessType, &profile.BusinessAddress, &profile.ContactNumber, &profile.FSSAILicense,
		&certs, &profile.AvatarURL, &profile.Created, &profile.Updated); err != nil {
		return err
	}
	profile.OtherCertifications = certs
	return nil
}

// certifications keeps the stored array non-null so scans stay simple.
func certifications(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
