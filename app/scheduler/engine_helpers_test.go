package scheduler

import (
	"io"
	"log"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/config"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		SendInterval:        5 * time.Second,
		CompletionGrace:     30 * time.Second,
		RecheckInterval:     time.Minute,
		MaxCompletionChecks: 20,
		MaxSendAttempts:     3,
		RetryBackoff:        30 * time.Second,
	}
}

func runningCampaign(id uint) *models.WhatsappCampaign {
	return &models.WhatsappCampaign{
		ID:          id,
		AccountID:   1,
		InboxID:     10,
		DisplayID:   id,
		Title:       "Spring sale",
		Message:     "Hello there",
		Audience:    models.AudienceSpec{Labels: []string{"vip"}},
		ScheduledAt: utils.UTCNow().Add(-time.Minute),
		Status:      models.WhatsappCampaignStatusRunning,
		SenderID:    utils.ToPtr(uint(7)),
		Enabled:     true,
	}
}

func recipients(n int) []models.Recipient {
	out := make([]models.Recipient, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Recipient{ContactID: uint(100 + i), SourceID: "5511999990" + string(rune('0'+i%10))})
	}
	return out
}
