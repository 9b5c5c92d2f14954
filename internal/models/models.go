package models

import "time"

type Role string

const (
	RoleSupplier   Role = "supplier"
	RoleVendor     Role = "vendor"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSupplier, RoleVendor, RoleSuperadmin:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type User struct {
	UserID  string    `json:"user_id"`
	Email   string    `json:"email"`
	Created time.Time `json:"created_at"`
}

// RoleRecord is the row gating a user's access. ApprovalStatus is only
// meaningful for suppliers; vendors and superadmins are approved at creation.
type RoleRecord struct {
	RoleID         string         `json:"role_id"`
	UserID         string         `json:"user_id"`
	Role           Role           `json:"role"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	Created        time.Time      `json:"created_at"`
	Updated        time.Time      `json:"updated_at"`
}

type Profile struct {
	UserID              string    `json:"user_id"`
	FullName            string    `json:"full_name"`
	CompanyName         string    `json:"company_name"`
	BusinessName        string    `json:"business_name"`
	BusinessType        string    `json:"business_type"`
	BusinessAddress     string    `json:"business_address"`
	ContactNumber       string    `json:"contact_number"`
	FSSAILicense        string    `json:"fssai_license"`
	OtherCertifications []string  `json:"other_certifications"`
	AvatarURL           string    `json:"avatar_url"`
	Created             time.Time `json:"created_at"`
	Updated             time.Time `json:"updated_at"`
}

// PlatformStats is derived by scanning role records plus the products and
// orders tables; it is never stored.
type PlatformStats struct {
	TotalUsers       int `json:"total_users"`
	TotalSuppliers   int `json:"total_suppliers"`
	TotalVendors     int `json:"total_vendors"`
	PendingApprovals int `json:"pending_approvals"`
	TotalProducts    int `json:"total_products"`
	TotalOrders      int `json:"total_orders"`
}

type Product struct {
	ProductID     string    `json:"product_id"`
	SupplierID    string    `json:"supplier_id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	Price         float64   `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	MinStockLevel int       `json:"min_stock_level"`
	Created       time.Time `json:"created_at"`
}

type Order struct {
	OrderID      string    `json:"order_id"`
	SupplierID   string    `json:"supplier_id"`
	VendorUserID string    `json:"vendor_user_id"`
	ProductName  string    `json:"product_name"`
	Status       string    `json:"status"`
	TotalAmount  float64   `json:"total_amount"`
	Created      time.Time `json:"created_at"`
}

type SupplierStats struct {
	TotalProducts    int     `json:"total_products"`
	ActiveProducts   int     `json:"active_products"`
	LowStockProducts int     `json:"low_stock_products"`
	TotalOrders      int     `json:"total_orders"`
	PendingOrders    int     `json:"pending_orders"`
	TotalRevenue     float64 `json:"total_revenue"`
}

type VendorStats struct {
	TotalOrders       int     `json:"total_orders"`
	PendingOrders     int     `json:"pending_orders"`
	CompletedOrders   int     `json:"completed_orders"`
	TotalSpent        float64 `json:"total_spent"`
	ActiveSuppliers   int     `json:"active_suppliers"`
	AvailableProducts int     `json:"available_products"`
}

// SupplierListing is the vendor-facing view of an approved supplier.
type SupplierListing struct {
	UserID       string `json:"user_id"`
	BusinessName string `json:"business_name"`
	BusinessType string `json:"business_type"`
	FSSAILicense string `json:"fssai_license"`
}

type AuditLog struct {
	AuditID     string    `json:"audit_id"`
	ActorUserID string    `json:"actor_user_id"`
	ActionType  string    `json:"action_type"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id"`
	Created     time.Time `json:"created_at"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
}
