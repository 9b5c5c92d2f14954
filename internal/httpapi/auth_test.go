package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Farhaan-Ali/trade-stream/internal/models"
	"github.com/Farhaan-Ali/trade-stream/internal/notify"
	"github.com/Farhaan-Ali/trade-stream/internal/store"
)

func roleStore(role models.Role, status models.ApprovalStatus) *fakeStore {
	return &fakeStore{
		roleFn: func(ctx context.Context, userID string) (models.RoleRecord, bool, error) {
			return models.RoleRecord{UserID: userID, Role: role, ApprovalStatus: status}, true, nil
		},
	}
}

func get(t *testing.T, handler http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return body.Error.Code
}

func TestPendingSupplierBlockedFromDashboard(t *testing.T) {
	handler := newTestHandler(roleStore(models.RoleSupplier, models.StatusPending), nil, "")

	resp := get(t, handler, "/api/dashboard/supplier", authHeader(t, "u-1", "a@x.com"))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "pending_approval" {
		t.Fatalf("expected code pending_approval, got %q", code)
	}
}

func TestRejectedSupplierBlockedLikePending(t *testing.T) {
	handler := newTestHandler(roleStore(models.RoleSupplier, models.StatusRejected), nil, "")

	resp := get(t, handler, "/api/dashboard/supplier", authHeader(t, "u-1", "a@x.com"))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "pending_approval" {
		t.Fatalf("expected code pending_approval, got %q", code)
	}
}

func TestApprovedSupplierReachesDashboard(t *testing.T) {
	handler := newTestHandler(roleStore(models.RoleSupplier, models.StatusApproved), nil, "")

	resp := get(t, handler, "/api/dashboard/supplier", authHeader(t, "u-1", "a@x.com"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPendingSupplierCanSeeMeAndSignOut(t *testing.T) {
	st := roleStore(models.RoleSupplier, models.StatusPending)
	handler := newTestHandler(st, nil, "")
	headers := authHeader(t, "u-1", "a@x.com")

	resp := get(t, handler, "/api/auth/me", headers)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 from /me, got %d", resp.Code)
	}
	var me struct {
		AccessState string `json:"access_state"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode /me response: %v", err)
	}
	if me.AccessState != "pending_approval" {
		t.Fatalf("expected access_state pending_approval, got %q", me.AccessState)
	}

	logout := postJSON(t, handler, "/api/auth/logout", map[string]any{}, headers)
	if logout.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 from logout, got %d", logout.Code)
	}
	if st.deletedUserToken != "u-1" {
		t.Fatalf("expected refresh tokens dropped for u-1, got %q", st.deletedUserToken)
	}
}

func TestVendorCannotReachAdmin(t *testing.T) {
	handler := newTestHandler(roleStore(models.RoleVendor, models.StatusApproved), nil, "")

	resp := get(t, handler, "/api/admin/stats", authHeader(t, "u-1", "v@x.com"))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "access_denied" {
		t.Fatalf("expected code access_denied, got %q", code)
	}
}

func TestMissingRoleRecordResolvesToLoading(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil, "")
	headers := authHeader(t, "u-1", "a@x.com")

	me := get(t, handler, "/api/auth/me", headers)
	if me.Code != http.StatusOK {
		t.Fatalf("expected status 200 from /me, got %d", me.Code)
	}
	var body struct {
		AccessState string `json:"access_state"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode /me response: %v", err)
	}
	if body.AccessState != "loading" {
		t.Fatalf("expected access_state loading, got %q", body.AccessState)
	}

	dash := get(t, handler, "/api/dashboard/vendor", headers)
	if dash.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 from protected route, got %d", dash.Code)
	}
}

func TestApproveSupplier(t *testing.T) {
	var gotUser string
	var gotStatus models.ApprovalStatus
	var audited []models.AuditLog
	st := roleStore(models.RoleSuperadmin, models.StatusApproved)
	st.setApprovalFn = func(ctx context.Context, userID string, status models.ApprovalStatus) error {
		gotUser = userID
		gotStatus = status
		return nil
	}
	st.insertAuditFn = func(ctx context.Context, audit models.AuditLog) error {
		audited = append(audited, audit)
		return nil
	}
	pub := &fakePublisher{}
	handler := newTestHandler(st, pub, "")

	target := "11111111-1111-1111-1111-111111111111"
	body, _ := json.Marshal(map[string]string{"status": "approved"})
	req := httptest.NewRequest(http.MethodPut, "/api/admin/suppliers/"+target+"/approval", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range authHeader(t, "admin-1", "root@x.com") {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotUser != target || gotStatus != models.StatusApproved {
		t.Fatalf("expected approval of %s, got user=%s status=%s", target, gotUser, gotStatus)
	}
	if len(audited) != 1 || audited[0].ActionType != "supplier.approved" || audited[0].ActorUserID != "admin-1" {
		t.Fatalf("expected one supplier.approved audit entry, got %+v", audited)
	}
	if len(pub.keys) != 1 || pub.keys[0] != "supplier.approved" {
		t.Fatalf("expected supplier.approved event, got %v", pub.keys)
	}
	event, ok := pub.events[0].(notify.ApprovalEvent)
	if !ok || event.UserID != target || event.DecidedBy != "admin-1" {
		t.Fatalf("unexpected event payload: %+v", pub.events[0])
	}
}

func TestApprovalInvalidStatus(t *testing.T) {
	handler := newTestHandler(roleStore(models.RoleSuperadmin, models.StatusApproved), nil, "")

	target := "11111111-1111-1111-1111-111111111111"
	body, _ := json.Marshal(map[string]string{"status": "maybe"})
	req := httptest.NewRequest(http.MethodPut, "/api/admin/suppliers/"+target+"/approval", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range authHeader(t, "admin-1", "root@x.com") {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestApprovalUnknownUser(t *testing.T) {
	st := roleStore(models.RoleSuperadmin, models.StatusApproved)
	st.setApprovalFn = func(ctx context.Context, userID string, status models.ApprovalStatus) error {
		return store.ErrRoleNotFound
	}
	handler := newTestHandler(st, nil, "")

	target := "11111111-1111-1111-1111-111111111111"
	body, _ := json.Marshal(map[string]string{"status": "rejected"})
	req := httptest.NewRequest(http.MethodPut, "/api/admin/suppliers/"+target+"/approval", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range authHeader(t, "admin-1", "root@x.com") {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestPendingSuppliersList(t *testing.T) {
	st := roleStore(models.RoleSuperadmin, models.StatusApproved)
	st.pendingFn = func(ctx context.Context) ([]store.PendingSupplier, error) {
		return []store.PendingSupplier{{
			Role:    models.RoleRecord{UserID: "u-2", Role: models.RoleSupplier, ApprovalStatus: models.StatusPending},
			Profile: models.Profile{UserID: "u-2", BusinessName: "Fresh Farms"},
		}}, nil
	}
	handler := newTestHandler(st, nil, "")

	resp := get(t, handler, "/api/admin/suppliers/pending", authHeader(t, "admin-1", "root@x.com"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var pending []store.PendingSupplier
	if err := json.Unmarshal(resp.Body.Bytes(), &pending); err != nil {
		t.Fatalf("decode pending list: %v", err)
	}
	if len(pending) != 1 || pending[0].Profile.BusinessName != "Fresh Farms" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
}

func TestAdminStats(t *testing.T) {
	st := roleStore(models.RoleSuperadmin, models.StatusApproved)
	st.platformStatsFn = func(ctx context.Context) (models.PlatformStats, error) {
		return models.PlatformStats{TotalUsers: 12, TotalSuppliers: 5, TotalVendors: 6, PendingApprovals: 2}, nil
	}
	handler := newTestHandler(st, nil, "")

	resp := get(t, handler, "/api/admin/stats", authHeader(t, "admin-1", "root@x.com"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var stats models.PlatformStats
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.PendingApprovals != 2 {
		t.Fatalf("expected 2 pending approvals, got %d", stats.PendingApprovals)
	}
}

func TestInvalidBearerToken(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, nil, "")
	resp := get(t, handler, "/api/auth/me", map[string]string{"Authorization": "Bearer garbage"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}
