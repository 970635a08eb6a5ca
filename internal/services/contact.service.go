package services

import (
	"context"
	"errors"
	"strings"

	"github.com/waveline/campaign-engine/internal/model"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")
)

type ContactRepository interface {
	Upsert(ctx context.Context, c *model.Contact) (*model.Contact, error)
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
	GetByPhone(ctx context.Context, tenantID int64, phone string) (*model.Contact, error)
}

// ContactService resolves raw recipient descriptors into tenant-scoped
// contacts. Resolution is idempotent: the (tenant, normalized phone)
// uniqueness of the contact table guarantees two calls with the same input
// return the same contact.
type ContactService struct {
	contactRepo ContactRepository
}

func NewContactService(contactRepo ContactRepository) *ContactService {
	return &ContactService{
		contactRepo: contactRepo,
	}
}

// NormalizePhone reduces a raw phone to E.164: every non-digit is stripped
// (a leading + survives), and a + is prefixed when absent.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	normalized := b.String()
	if !strings.HasPrefix(normalized, "+") {
		normalized = "+" + normalized
	}

	if len(normalized) < 8 {
		return "", ErrInvalidPhone
	}

	return normalized, nil
}

// Resolve upserts the contact for (tenant, phone), merging non-empty profile
// hints into existing fields. No side effects beyond the upsert.
func (s *ContactService) Resolve(ctx context.Context, tenantID int64, rawPhone string, hints model.ProfileHints) (*model.Contact, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	return s.contactRepo.Upsert(ctx, &model.Contact{
		TenantID: tenantID,
		Phone:    phone,
		Name:     hints.Name,
		Tags:     hints.Tags,
		Source:   model.ContactSourceManual,
	})
}
