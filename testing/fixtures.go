package testing

import (
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAccount creates an account with the given feature flags and one member
func (tf *TestFixtures) CreateTestAccount(memberID uint, features ...string) (*models.Account, error) {
	if features == nil {
		features = []string{}
	}
	account := &models.Account{
		Name:     "Test Account",
		Features: pq.StringArray(features),
	}
	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if memberID != 0 {
		member := &models.AccountUser{AccountID: account.ID, UserID: memberID}
		if err := tf.DB.DB.Create(member).Error; err != nil {
			return nil, fmt.Errorf("failed to create account user: %w", err)
		}
	}

	return account, nil
}

// CreateTestInbox creates an API inbox with gateway credentials
func (tf *TestFixtures) CreateTestInbox(accountID uint, whatsappEnabled bool) (*models.Inbox, error) {
	inbox := &models.Inbox{
		AccountID:          accountID,
		Name:               "WhatsApp",
		ChannelType:        models.ChannelTypeAPI,
		WhatsappAPIEnabled: whatsappEnabled,
		Credentials: models.GatewayCredentials{
			BaseURL:      "https://gateway.example.com",
			Token:        "test-token",
			InstanceName: "main",
		},
	}
	if err := tf.DB.DB.Create(inbox).Error; err != nil {
		return nil, fmt.Errorf("failed to create inbox: %w", err)
	}
	return inbox, nil
}

// CreateTestContact creates a contact and, when sourceID is not empty, its address on the inbox
func (tf *TestFixtures) CreateTestContact(accountID, inboxID uint, sourceID string, labels []string, attributes map[string]any) (*models.Contact, error) {
	if labels == nil {
		labels = []string{}
	}
	if attributes == nil {
		attributes = map[string]any{}
	}
	raw, err := json.Marshal(attributes)
	if err != nil {
		return nil, err
	}

	contact := &models.Contact{
		AccountID:        accountID,
		Name:             "Contact " + sourceID,
		Labels:           pq.StringArray(labels),
		CustomAttributes: raw,
	}
	if err := tf.DB.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	if sourceID != "" {
		ci := &models.ContactInbox{ContactID: contact.ID, InboxID: inboxID, SourceID: utils.ToPtr(sourceID)}
		if err := tf.DB.DB.Create(ci).Error; err != nil {
			return nil, fmt.Errorf("failed to create contact inbox: %w", err)
		}
	}

	return contact, nil
}

// CreateTestCampaign creates a campaign in the given status targeting the audience
func (tf *TestFixtures) CreateTestCampaign(accountID, inboxID, displayID uint, status models.WhatsappCampaignStatus, audience models.AudienceSpec) (*models.WhatsappCampaign, error) {
	now := utils.UTCNow()
	campaign := &models.WhatsappCampaign{
		AccountID:   accountID,
		InboxID:     inboxID,
		DisplayID:   displayID,
		Title:       fmt.Sprintf("Campaign %d", displayID),
		Message:     "Hello",
		Audience:    audience,
		ScheduledAt: now,
		Status:      status,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}
