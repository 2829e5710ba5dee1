package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"procurement/internal/apperror"
	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateVendorRequest struct {
	Name          string `json:"name" binding:"required"`
	TaxCode       string `json:"tax_code"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
}

// UpdateVendorRequest uses pointers so that nil means "not sent".
type UpdateVendorRequest struct {
	Name          *string `json:"name"`
	TaxCode       *string `json:"tax_code"`
	ContactPerson *string `json:"contact_person"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	Address       *string `json:"address"`
	IsActive      *bool   `json:"is_active"`
}

type VendorResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	TaxCode       string    `json:"tax_code"`
	ContactPerson string    `json:"contact_person"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	Address       string    `json:"address"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// --- Interface ---

type VendorService interface {
	CreateVendor(ctx context.Context, actor Actor, req CreateVendorRequest) (VendorResponse, error)
	UpdateVendor(ctx context.Context, actor Actor, id uuid.UUID, req UpdateVendorRequest) (VendorResponse, error)
	DeleteVendor(ctx context.Context, actor Actor, id uuid.UUID) error
	GetVendor(ctx context.Context, id uuid.UUID) (VendorResponse, error)
	ListVendors(ctx context.Context, search string, page, limit int) ([]VendorResponse, int64, error)
}

// --- Implementation ---

type vendorService struct {
	vendorRepo repository.VendorRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
}

func NewVendorService(vendorRepo repository.VendorRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) VendorService {
	return &vendorService{vendorRepo: vendorRepo, auditRepo: auditRepo, txManager: txManager}
}

func validateVendorEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperror.Validation("invalid vendor email %q", email)
	}
	return nil
}

func (s *vendorService) CreateVendor(ctx context.Context, actor Actor, req CreateVendorRequest) (VendorResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return VendorResponse{}, apperror.Validation("name is required")
	}
	if err := validateVendorEmail(req.Email); err != nil {
		return VendorResponse{}, err
	}

	vendor := model.Vendor{
		Name:          name,
		TaxCode:       strings.TrimSpace(req.TaxCode),
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		IsActive:      true,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.vendorRepo.Create(txCtx, &vendor); err != nil {
			return fmt.Errorf("failed to create vendor: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor.ID, model.ActionCreateVendor, vendor.ID.String(), vendor.Name, map[string]any{
			"tax_code": vendor.TaxCode,
		})
	})
	if err != nil {
		return VendorResponse{}, err
	}
	return toVendorResponse(vendor), nil
}

func (s *vendorService) UpdateVendor(ctx context.Context, actor Actor, id uuid.UUID, req UpdateVendorRequest) (VendorResponse, error) {
	var vendor *model.Vendor
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		vendor, err = s.vendorRepo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "vendor", id.String())
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperror.Validation("name must not be empty")
			}
			vendor.Name = name
		}
		if req.TaxCode != nil {
			vendor.TaxCode = strings.TrimSpace(*req.TaxCode)
		}
		if req.ContactPerson != nil {
			vendor.ContactPerson = *req.ContactPerson
		}
		if req.Phone != nil {
			vendor.Phone = *req.Phone
		}
		if req.Email != nil {
			if err := validateVendorEmail(*req.Email); err != nil {
				return err
			}
			vendor.Email = *req.Email
		}
		if req.Address != nil {
			vendor.Address = *req.Address
		}
		if req.IsActive != nil {
			vendor.IsActive = *req.IsActive
		}

		if err := s.vendorRepo.Update(txCtx, vendor); err != nil {
			return fmt.Errorf("failed to update vendor: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor.ID, model.ActionUpdateVendor, vendor.ID.String(), vendor.Name, map[string]any{
			"is_active": vendor.IsActive,
		})
	})
	if err != nil {
		return VendorResponse{}, err
	}
	return toVendorResponse(*vendor), nil
}

func (s *vendorService) DeleteVendor(ctx context.Context, actor Actor, id uuid.UUID) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		vendor, err := s.vendorRepo.FindByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "vendor", id.String())
		}
		if err := s.vendorRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete vendor: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor.ID, model.ActionDeleteVendor, vendor.ID.String(), vendor.Name, nil)
	})
}

func (s *vendorService) GetVendor(ctx context.Context, id uuid.UUID) (VendorResponse, error) {
	vendor, err := s.vendorRepo.FindByID(ctx, id)
	if err != nil {
		return VendorResponse{}, lookupErr(err, "vendor", id.String())
	}
	return toVendorResponse(*vendor), nil
}

func (s *vendorService) ListVendors(ctx context.Context, search string, page, limit int) ([]VendorResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	vendors, total, err := s.vendorRepo.List(ctx, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vendors: %w", err)
	}

	res := make([]VendorResponse, 0, len(vendors))
	for _, v := range vendors {
		res = append(res, toVendorResponse(v))
	}
	return res, total, nil
}

func toVendorResponse(v model.Vendor) VendorResponse {
	return VendorResponse{
		ID:            v.ID,
		Name:          v.Name,
		TaxCode:       v.TaxCode,
		ContactPerson: v.ContactPerson,
		Phone:         v.Phone,
		Email:         v.Email,
		Address:       v.Address,
		IsActive:      v.IsActive,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}
