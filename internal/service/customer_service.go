package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/mapper"
	"github.com/procost/enquiry-api/internal/repository"
	"go.uber.org/zap"
)

var signOffPattern = regexp.MustCompile(`(?i)(?:thanks|regards|best|from),\s*([a-z]+(?:[ \t]+[a-z]+)?)`)

type CustomerService struct {
	customerRepo *repository.CustomerRepository
	logger       *zap.Logger
}

func NewCustomerService(customerRepo *repository.CustomerRepository, logger *zap.Logger) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
		logger:       logger,
	}
}

// FindOrCreate returns the customer for fromEmail, creating one from the
// sender domain and the body's sign-off when none exists
func (s *CustomerService) FindOrCreate(ctx context.Context, fromEmail, body string) (*domain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(fromEmail))
	if email == "" {
		return nil, fmt.Errorf("%w: sender email is required", ErrInvalidInput)
	}

	customer, err := s.customerRepo.GetByEmail(ctx, email)
	if err == nil {
		return customer, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	customer = &domain.Customer{
		CompanyName:   CompanyNameFromEmail(email),
		ContactPerson: ContactPersonFrom(email, body),
		Email:         email,
		Address:       "Not provided",
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		if repository.IsDuplicateKey(err) {
			// Created concurrently by another delivery
			return s.customerRepo.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("Customer created from inbound email",
		zap.String("customer_id", customer.ID.String()),
		zap.String("company_name", customer.CompanyName))
	return customer, nil
}

func (s *CustomerService) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerDTO, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	dto := mapper.ToCustomerDTO(customer)
	return &dto, nil
}

func (s *CustomerService) List(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	customers, total, err := s.customerRepo.List(ctx, page, pageSize, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	dtos := make([]domain.CustomerDTO, 0, len(customers))
	for i := range customers {
		dtos = append(dtos, mapper.ToCustomerDTO(&customers[i]))
	}
	return paginated(dtos, total, page, pageSize), nil
}

// CompanyNameFromEmail turns "buyer@nordicfish.no" into "Nordicfish Corp"
func CompanyNameFromEmail(email string) string {
	domainPart := "unknown.com"
	if at := strings.Index(email, "@"); at >= 0 {
		domainPart = email[at+1:]
	}
	name := domainPart
	if dot := strings.Index(name, "."); dot >= 0 {
		name = name[:dot]
	}
	if name == "" {
		return "Unknown Corp"
	}
	name = strings.ToLower(name)
	return strings.ToUpper(name[:1]) + name[1:] + " Corp"
}

// ContactPersonFrom returns the name after a sign-off such as "Regards,"
// in body, falling back to the local part of the email address
func ContactPersonFrom(email, body string) string {
	if m := signOffPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "Unknown"
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}

func paginated(data interface{}, total int64, page, pageSize int) *domain.PaginatedResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
