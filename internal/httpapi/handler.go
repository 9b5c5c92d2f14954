package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"expvar"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Farhaan-Ali/trade-stream/internal/access"
	"github.com/Farhaan-Ali/trade-stream/internal/models"
	"github.com/Farhaan-Ali/trade-stream/internal/notify"
	"github.com/Farhaan-Ali/trade-stream/internal/store"
	"github.com/Farhaan-Ali/trade-stream/internal/token"

	"github.com/google/uuid"
)

const recentOrdersLimit = 5
const featuredSuppliersLimit = 4

type Handler struct {
	store    store.Store
	tokens   *token.Manager
	notifier notify.Publisher
	opts     Options
}

type Options struct {
	// BootstrapAdminEmail forces registration with this address into an
	// approved superadmin. Empty disables the override.
	BootstrapAdminEmail string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(st store.Store, tokens *token.Manager, notifier notify.Publisher, opts Options) *Handler {
	if notifier == nil {
		notifier = notify.NopPublisher{}
	}
	return &Handler{store: st, tokens: tokens, notifier: notifier, opts: opts}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	mux.HandleFunc("/api/profile", h.handleProfile)
	mux.HandleFunc("/api/dashboard/supplier", h.handleSupplierDashboard)
	mux.HandleFunc("/api/dashboard/vendor", h.handleVendorDashboard)
	mux.HandleFunc("/api/admin/stats", h.handleAdminStats)
	mux.HandleFunc("/api/admin/suppliers/pending", h.handlePendingSuppliers)
	mux.HandleFunc("/api/admin/suppliers/", h.handleApproval)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type registerRequest struct {
	Email               string   `json:"email"`
	Password            string   `json:"password"`
	Role                string   `json:"role"`
	FullName            string   `json:"full_name"`
	CompanyName         string   `json:"company_name"`
	BusinessName        string   `json:"business_name"`
	BusinessType        string   `json:"business_type"`
	BusinessAddress     string   `json:"business_address"`
	ContactNumber       string   `json:"contact_number"`
	FSSAILicense        string   `json:"fssai_license"`
	OtherCertifications []string `json:"other_certifications"`
}

type userInfo struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type authResponse struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	ExpiresAt    string             `json:"expires_at"`
	User         userInfo           `json:"user"`
	Role         *models.RoleRecord `json:"role"`
	Profile      *models.Profile    `json:"profile"`
	AccessState  access.State       `json:"access_state"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	role := models.Role(strings.TrimSpace(req.Role))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	// Superadmin cannot be requested; it only exists via the bootstrap override.
	if role != models.RoleSupplier && role != models.RoleVendor {
		writeError(w, http.StatusBadRequest, "invalid_request", "role must be supplier or vendor")
		return
	}

	override := h.opts.BootstrapAdminEmail != "" &&
		strings.ToLower(req.Email) == h.opts.BootstrapAdminEmail

	result, err := h.store.Register(r.Context(), store.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		Profile: models.Profile{
			FullName:            req.FullName,
			CompanyName:         req.CompanyName,
			BusinessName:        req.BusinessName,
			BusinessType:        req.BusinessType,
			BusinessAddress:     req.BusinessAddress,
			ContactNumber:       req.ContactNumber,
			FSSAILicense:        req.FSSAILicense,
			OtherCertifications: req.OtherCertifications,
		},
		ForceSuperadmin: override,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email_taken", "email is already registered")
		case errors.Is(err, store.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "weak_password", "password must be at least 8 characters")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
		return
	}

	h.writeAuthResponse(w, r, result.User, &result.Role, &result.Profile)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, err := h.store.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	role, profile := h.resolve(r, user.UserID)
	h.writeAuthResponse(w, r, user, role, profile)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	rt, err := h.store.GetRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	user, found, err := h.store.GetUser(r.Context(), rt.UserID)
	if err != nil || !found {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
		return
	}

	// Rotate: the old token is single-use.
	if err := h.store.DeleteRefreshToken(r.Context(), rt.Token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	role, profile := h.resolve(r, user.UserID)
	h.writeAuthResponse(w, r, user, role, profile)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// Body is optional: without a token every session for the user is dropped.
	_ = json.NewDecoder(r.Body).Decode(&req)

	var err error
	if req.RefreshToken != "" {
		err = h.store.DeleteRefreshToken(r.Context(), req.RefreshToken)
	} else {
		err = h.store.DeleteUserRefreshTokens(r.Context(), ident.UserID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, struct {
		User        userInfo           `json:"user"`
		Role        *models.RoleRecord `json:"role"`
		Profile     *models.Profile    `json:"profile"`
		AccessState access.State       `json:"access_state"`
	}{
		User:        userInfo{UserID: ident.UserID, Email: ident.Email},
		Role:        ident.Role,
		Profile:     ident.Profile,
		AccessState: ident.State,
	})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ident, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		if ident.Profile == nil {
			writeError(w, http.StatusNotFound, "not_found", "profile not found")
			return
		}
		writeJSON(w, http.StatusOK, ident.Profile)
	case http.MethodPut:
		ident, ok := requireAllowed(w, r)
		if !ok {
			return
		}
		var profile models.Profile
		if !decodeRequest(w, r, &profile) {
			return
		}
		profile.UserID = ident.UserID
		updated, err := h.store.UpdateProfile(r.Context(), profile)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSupplierDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ident, ok := requireRole(w, r, models.RoleSupplier)
	if !ok {
		return
	}

	stats, err := h.store.GetSupplierStats(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	recent, err := h.store.ListSupplierRecentOrders(r.Context(), ident.UserID, recentOrdersLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	lowStock, err := h.store.ListLowStockProducts(r.Context(), ident.UserID, recentOrdersLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Stats        models.SupplierStats `json:"stats"`
		RecentOrders []models.Order       `json:"recent_orders"`
		LowStock     []models.Product     `json:"low_stock_products"`
	}{Stats: stats, RecentOrders: recent, LowStock: lowStock})
}

func (h *Handler) handleVendorDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ident, ok := requireRole(w, r, models.RoleVendor)
	if !ok {
		return
	}

	stats, err := h.store.GetVendorStats(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	recent, err := h.store.ListVendorRecentOrders(r.Context(), ident.UserID, recentOrdersLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	featured, err := h.store.ListActiveSuppliers(r.Context(), featuredSuppliersLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Stats             models.VendorStats       `json:"stats"`
		RecentOrders      []models.Order           `json:"recent_orders"`
		FeaturedSuppliers []models.SupplierListing `json:"featured_suppliers"`
	}{Stats: stats, RecentOrders: recent, FeaturedSuppliers: featured})
}

func (h *Handler) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireRole(w, r, models.RoleSuperadmin); !ok {
		return
	}

	stats, err := h.store.GetPlatformStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handlePendingSuppliers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireRole(w, r, models.RoleSuperadmin); !ok {
		return
	}

	pending, err := h.store.ListPendingSuppliers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if pending == nil {
		pending = []store.PendingSupplier{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *Handler) handleApproval(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireRole(w, r, models.RoleSuperadmin)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/admin/suppliers/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "approval" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	targetUserID := parts[0]
	if !isValidUUID(targetUserID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id must be a UUID")
		return
	}
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if !decodeRequest(w, r, &req) {
		return
	}
	status := models.ApprovalStatus(strings.TrimSpace(req.Status))
	if status != models.StatusApproved && status != models.StatusRejected {
		writeError(w, http.StatusBadRequest, "invalid_request", "status must be approved or rejected")
		return
	}

	if err := h.store.SetApprovalStatus(r.Context(), targetUserID, status); err != nil {
		if errors.Is(err, store.ErrRoleNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no role record for user")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	h.recordAudit(r, ident.UserID, "supplier."+string(status), "user_role", targetUserID)

	// Out-of-band notification is best effort; the mutation already happened.
	event := notify.ApprovalEvent{
		UserID:     targetUserID,
		Status:     string(status),
		DecidedBy:  ident.UserID,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.notifier.Publish(r.Context(), "supplier."+string(status), event); err != nil {
		log.Printf("approval event publish failed user=%s: %v", targetUserID, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolve loads the caller's role record and profile, tolerating absence and
// lookup failures: either comes back nil and the gate reports Loading.
func (h *Handler) resolve(r *http.Request, userID string) (*models.RoleRecord, *models.Profile) {
	var rolePtr *models.RoleRecord
	var profilePtr *models.Profile
	if rec, found, err := h.store.GetRoleRecord(r.Context(), userID); err != nil {
		log.Printf("role lookup failed user=%s: %v", userID, err)
	} else if found {
		rolePtr = &rec
	}
	if profile, found, err := h.store.GetProfile(r.Context(), userID); err != nil {
		log.Printf("profile lookup failed user=%s: %v", userID, err)
	} else if found {
		profilePtr = &profile
	}
	return rolePtr, profilePtr
}

func (h *Handler) writeAuthResponse(w http.ResponseWriter, r *http.Request, user models.User, role *models.RoleRecord, profile *models.Profile) {
	accessToken, err := h.tokens.Generate(user.UserID, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	refreshToken := newRefreshToken()
	expiresAt := time.Now().UTC().Add(h.opts.RefreshTokenTTL)
	if err := h.store.CreateRefreshToken(r.Context(), user.UserID, refreshToken, expiresAt); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().UTC().Add(h.opts.AccessTokenTTL).Format(time.RFC3339),
		User:         userInfo{UserID: user.UserID, Email: user.Email},
		Role:         role,
		Profile:      profile,
		AccessState:  access.Evaluate(true, role),
	})
}

func (h *Handler) recordAudit(r *http.Request, actorID, action, targetType, targetID string) {
	audit := models.AuditLog{
		ActorUserID: actorID,
		ActionType:  action,
		TargetType:  targetType,
		TargetID:    targetID,
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
	}
	if err := h.store.InsertAudit(r.Context(), audit); err != nil {
		log.Printf("audit insert failed action=%s target=%s: %v", action, targetID, err)
	}
}

func newRefreshToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
