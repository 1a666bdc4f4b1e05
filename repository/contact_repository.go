package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, any]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{BaseRepository: NewBaseRepository[models.Contact, any](db)}
}

// Recipients resolves an audience to the account's contacts that are addressable on the inbox.
// Explicit contact ids win over labels and custom attributes. Each contact appears once.
func (r *ContactRepositoryImpl) Recipients(ctx context.Context, accountID, inboxID uint, audience models.AudienceSpec) ([]models.Recipient, error) {
	if audience.IsBlank() {
		return []models.Recipient{}, nil
	}

	db := r.getDB(ctx)
	query := db.Table("contacts").
		Select("DISTINCT ON (contacts.id) contacts.id AS contact_id, contact_inboxes.source_id AS source_id").
		Joins("JOIN contact_inboxes ON contact_inboxes.contact_id = contacts.id AND contact_inboxes.inbox_id = ?", inboxID).
		Where("contacts.account_id = ?", accountID).
		Where("contact_inboxes.source_id IS NOT NULL AND contact_inboxes.source_id <> ''")

	if audience.HasExplicitIDs() {
		query = query.Where("contacts.id IN ?", audience.ContactIDs)
	} else {
		var ok bool
		query, ok = applyAudienceFilter(query, audience)
		if !ok {
			return []models.Recipient{}, nil
		}
	}

	var recipients []models.Recipient
	if err := query.Order("contacts.id ASC, contact_inboxes.id ASC").Scan(&recipients).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve audience for inbox %d: %w", inboxID, err)
	}
	if recipients == nil {
		recipients = []models.Recipient{}
	}

	return recipients, nil
}

// applyAudienceFilter narrows by labels (any-of) and by custom attribute equality.
// It returns false when the filter cannot match anything.
func applyAudienceFilter(query *gorm.DB, audience models.AudienceSpec) (*gorm.DB, bool) {
	if len(audience.Labels) > 0 {
		labels := make([]string, 0, len(audience.Labels))
		for _, l := range audience.Labels {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
		if len(labels) == 0 {
			return query, false
		}
		query = query.Where("contacts.labels && ?", pq.StringArray(labels))
	}

	predicates := audience.AttributePredicates()
	keys := make([]string, 0, len(predicates))
	for k := range predicates {
		if strings.TrimSpace(k) == "" {
			return query, false
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		query = query.Where("contacts.custom_attributes ->> ? = ?", k, predicates[k])
	}

	return query, true
}

// SourceID returns the contact's address on the inbox, or "" when it has none
func (r *ContactRepositoryImpl) SourceID(ctx context.Context, contactID, inboxID uint) (string, error) {
	db := r.getDB(ctx)

	var row models.ContactInbox
	err := db.Where("contact_id = ? AND inbox_id = ? AND source_id IS NOT NULL AND source_id <> ''", contactID, inboxID).
		Order("id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load source id of contact %d: %w", contactID, err)
	}
	if row.SourceID == nil {
		return "", nil
	}

	return *row.SourceID, nil
}
