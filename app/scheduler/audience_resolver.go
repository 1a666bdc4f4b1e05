package scheduler

import (
	"context"
	"errors"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
)

// Resolver turns a campaign's audience spec into concrete recipients
type Resolver interface {
	Resolve(ctx context.Context, campaign *models.WhatsappCampaign) ([]models.Recipient, error)
}

// AudienceResolver resolves audiences against the contact directory. Every recipient
// has a non-empty source id on the campaign inbox and appears once.
type AudienceResolver struct {
	repo repository.ContactRepository
}

func NewAudienceResolver(repo repository.ContactRepository) *AudienceResolver {
	return &AudienceResolver{repo: repo}
}

// Resolve returns the campaign's recipients ordered by contact id
func (r *AudienceResolver) Resolve(ctx context.Context, campaign *models.WhatsappCampaign) ([]models.Recipient, error) {
	if r == nil || r.repo == nil {
		return nil, errors.New("audience resolver repository not configured")
	}
	if campaign == nil {
		return nil, errors.New("campaign is nil")
	}
	if campaign.Audience.IsBlank() {
		return []models.Recipient{}, nil
	}

	rows, err := r.repo.Recipients(ctx, campaign.AccountID, campaign.InboxID, campaign.Audience)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(rows))
	out := make([]models.Recipient, 0, len(rows))
	for _, row := range rows {
		if row.SourceID == "" {
			continue
		}
		if _, ok := seen[row.ContactID]; ok {
			continue
		}
		seen[row.ContactID] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}
