package service

import (
	"context"
	"fmt"
	"sort"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/repository"
)

// --- DTOs ---

type UpdateRolePermissionsRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, name string) (*RoleResponse, error)
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleName string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	tx    repository.TransactionManager
	roles repository.RoleRepository
}

func NewRoleService(tx repository.TransactionManager, roles repository.RoleRepository) RoleService {
	return &roleService{tx: tx, roles: roles}
}

var defaultPermissions = []model.Permission{
	{Code: model.PermRequestsRead, Name: "View purchase requests", Group: "requests"},
	{Code: model.PermRequestsCreate, Name: "Raise purchase requests", Group: "requests"},
	{Code: model.PermRequestsDelete, Name: "Delete purchase requests", Group: "requests"},
	{Code: model.PermApprovalsRead, Name: "View approval steps", Group: "approvals"},
	{Code: model.PermApprovalsDecide, Name: "Approve or reject steps", Group: "approvals"},
	{Code: model.PermApprovalsManage, Name: "Manage the approval chain", Group: "approvals"},
	{Code: model.PermBudgetsRead, Name: "View monthly budgets", Group: "budgets"},
	{Code: model.PermBudgetsWrite, Name: "Set monthly budgets", Group: "budgets"},
	{Code: model.PermProcurementRead, Name: "View the procurement queue", Group: "procurement"},
	{Code: model.PermOrdersRead, Name: "View purchase orders", Group: "orders"},
	{Code: model.PermOrdersWrite, Name: "Raise and cancel purchase orders", Group: "orders"},
	{Code: model.PermReceiptsWrite, Name: "Record goods receipts", Group: "orders"},
	{Code: model.PermVendorsRead, Name: "View vendors", Group: "vendors"},
	{Code: model.PermVendorsWrite, Name: "Manage vendors", Group: "vendors"},
	{Code: model.PermCatalogRead, Name: "View the catalog", Group: "catalog"},
	{Code: model.PermCatalogWrite, Name: "Manage the catalog", Group: "catalog"},
	{Code: model.PermUsersRead, Name: "View users", Group: "users"},
	{Code: model.PermUsersWrite, Name: "Manage users", Group: "users"},
	{Code: model.PermUsersDelete, Name: "Delete users", Group: "users"},
	{Code: model.PermAuditRead, Name: "View the audit log", Group: "audit"},
	{Code: model.PermRolesManage, Name: "Manage role permissions", Group: "roles"},
}

type roleDefinition struct {
	Description string
	PermCodes   []string
}

var defaultRoles = map[string]roleDefinition{
	model.RoleAdmin: {
		Description: "Administrator with full access",
	},
	model.RoleManager: {
		Description: "Approves requests and oversees spending",
		PermCodes: []string{
			model.PermRequestsRead, model.PermRequestsCreate, model.PermRequestsDelete,
			model.PermApprovalsRead, model.PermApprovalsDecide,
			model.PermBudgetsRead, model.PermProcurementRead, model.PermOrdersRead,
			model.PermVendorsRead, model.PermCatalogRead,
			model.PermUsersRead, model.PermAuditRead,
		},
	},
	model.RoleFinance: {
		Description: "Sets budgets and approves spending",
		PermCodes: []string{
			model.PermRequestsRead, model.PermRequestsCreate,
			model.PermApprovalsRead, model.PermApprovalsDecide,
			model.PermBudgetsRead, model.PermBudgetsWrite,
			model.PermOrdersRead, model.PermAuditRead,
		},
	},
	model.RolePurchaser: {
		Description: "Turns approved requests into purchase orders",
		PermCodes: []string{
			model.PermRequestsRead, model.PermRequestsCreate,
			model.PermProcurementRead, model.PermOrdersRead, model.PermOrdersWrite, model.PermReceiptsWrite,
			model.PermVendorsRead, model.PermVendorsWrite,
			model.PermCatalogRead, model.PermCatalogWrite,
		},
	},
	model.RoleStaff: {
		Description: "Raises purchase requests",
		PermCodes: []string{
			model.PermRequestsRead, model.PermRequestsCreate,
			model.PermApprovalsRead, model.PermCatalogRead,
		},
	},
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, name string) (*RoleResponse, error) {
	role, err := s.roles.FindByName(ctx, name)
	if err != nil {
		return nil, lookupErr(err, "role", name)
	}
	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.roles.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleName string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	if roleName == model.RoleAdmin {
		return nil, apperror.Forbidden("the admin role always holds every permission")
	}
	if _, err := s.roles.FindByName(ctx, roleName); err != nil {
		return nil, lookupErr(err, "role", roleName)
	}

	known := make(map[string]bool, len(defaultPermissions))
	for _, p := range defaultPermissions {
		known[p.Code] = true
	}
	for _, code := range req.Codes {
		if !known[code] {
			return nil, apperror.Validation("unknown permission %q", code)
		}
	}

	if err := s.roles.ReplacePermissions(ctx, roleName, req.Codes); err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}
	return s.GetRole(ctx, roleName)
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.roles.PermissionCodes(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions of role %q: %w", roleName, err)
	}
	return codes, nil
}

// SeedDefaultRolesAndPermissions creates the built-in roles and permissions
// and resets each built-in role to its default permission set.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		all := make([]string, 0, len(defaultPermissions))
		for i := range defaultPermissions {
			p := defaultPermissions[i]
			if err := s.roles.EnsurePermission(txCtx, &p); err != nil {
				return fmt.Errorf("failed to seed permission %q: %w", p.Code, err)
			}
			all = append(all, p.Code)
		}

		names := make([]string, 0, len(defaultRoles))
		for name := range defaultRoles {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			def := defaultRoles[name]
			role := model.Role{Name: name, Description: def.Description, IsSystem: true}
			if err := s.roles.EnsureRole(txCtx, &role); err != nil {
				return fmt.Errorf("failed to seed role %q: %w", name, err)
			}
			codes := def.PermCodes
			if name == model.RoleAdmin {
				codes = all
			}
			if err := s.roles.ReplacePermissions(txCtx, name, codes); err != nil {
				return fmt.Errorf("failed to assign permissions to role %q: %w", name, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
