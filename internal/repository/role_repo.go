package repository

import (
	"context"

	"procurement/internal/model"

	"gorm.io/gorm"
)

type RoleRepository interface {
	FindByName(ctx context.Context, name string) (*model.Role, error)
	ListAll(ctx context.Context) ([]model.Role, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	EnsureRole(ctx context.Context, role *model.Role) error
	EnsurePermission(ctx context.Context, perm *model.Permission) error
	ReplacePermissions(ctx context.Context, roleName string, codes []string) error
	PermissionCodes(ctx context.Context, roleName string) ([]string, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Preload("Permissions").Order("name asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := GetDB(ctx, r.db).Order("code asc").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// EnsureRole loads the role by name, creating it when missing.
func (r *roleRepository) EnsureRole(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Where("name = ?", role.Name).FirstOrCreate(role).Error
}

// EnsurePermission loads the permission by code, creating it when missing.
func (r *roleRepository) EnsurePermission(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Where("code = ?", perm.Code).FirstOrCreate(perm).Error
}

func (r *roleRepository) ReplacePermissions(ctx context.Context, roleName string, codes []string) error {
	db := GetDB(ctx, r.db)
	var role model.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		return err
	}

	var perms []model.Permission
	if len(codes) > 0 {
		if err := db.Where("code IN ?", codes).Find(&perms).Error; err != nil {
			return err
		}
	}
	return db.Model(&role).Association("Permissions").Replace(perms)
}

func (r *roleRepository) PermissionCodes(ctx context.Context, roleName string) ([]string, error) {
	var codes []string
	err := GetDB(ctx, r.db).Table("permissions").
		Select("permissions.code").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN roles ON roles.id = role_permissions.role_id").
		Where("roles.name = ?", roleName).
		Pluck("permissions.code", &codes).Error
	return codes, err
}
