package repository

import (
	"fmt"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables owned by this service
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Account{},
		&models.AccountUser{},
		&models.Inbox{},
		&models.Contact{},
		&models.ContactInbox{},
		&models.Conversation{},
		&models.Message{},
		&models.Attachment{},
		&models.WhatsappCampaign{},
		&models.CampaignDelivery{},
		&models.Notification{},
		&models.SequenceCounter{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
