// Package businessflow contains the core business logic and use cases for WhatsApp campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Account-related errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrFeatureDisabled      = errors.New("whatsapp api campaigns feature is not enabled")
	ErrSenderNotAccountUser = errors.New("sender does not belong to the account")
	ErrUserIdentityRequired = errors.New("user identity is required")

	// Inbox-related errors
	ErrInboxNotFound            = errors.New("inbox not found")
	ErrInboxNotAPIChannel       = errors.New("inbox must be an API channel")
	ErrInboxWhatsappAPIDisabled = errors.New("api inbox is not enabled for whatsapp api campaigns")

	// Campaign-related errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignUpdateNotAllowed = errors.New("campaign update not allowed")
	ErrCampaignDeleteNotAllowed = errors.New("campaign delete not allowed")
	ErrCampaignNotPending       = errors.New("campaign can only be triggered when pending")
	ErrCampaignNotDue           = errors.New("campaign is scheduled in the future")
	ErrCampaignTitleRequired    = errors.New("campaign title is required")
	ErrCampaignMessageRequired  = errors.New("campaign message is required")
	ErrScheduleTimeInPast       = errors.New("schedule time is in the past")
	ErrMultimediaURLRequired    = errors.New("multimedia url is required")
	ErrMultimediaTypeInvalid    = errors.New("multimedia type is invalid")
	ErrCampaignUpdateRequired   = errors.New("at least one field must be provided for update")

	// Filter errors
	ErrInvalidLimit = errors.New("limit must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsFeatureDisabled(err error) bool {
	return errors.Is(err, ErrFeatureDisabled)
}

func IsSenderNotAccountUser(err error) bool {
	return errors.Is(err, ErrSenderNotAccountUser)
}

func IsUserIdentityRequired(err error) bool {
	return errors.Is(err, ErrUserIdentityRequired)
}

func IsInboxNotFound(err error) bool {
	return errors.Is(err, ErrInboxNotFound)
}

func IsInboxNotAPIChannel(err error) bool {
	return errors.Is(err, ErrInboxNotAPIChannel)
}

func IsInboxWhatsappAPIDisabled(err error) bool {
	return errors.Is(err, ErrInboxWhatsappAPIDisabled)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignUpdateNotAllowed(err error) bool {
	return errors.Is(err, ErrCampaignUpdateNotAllowed)
}

func IsCampaignDeleteNotAllowed(err error) bool {
	return errors.Is(err, ErrCampaignDeleteNotAllowed)
}

func IsCampaignNotPending(err error) bool {
	return errors.Is(err, ErrCampaignNotPending)
}

func IsCampaignNotDue(err error) bool {
	return errors.Is(err, ErrCampaignNotDue)
}

func IsCampaignTitleRequired(err error) bool {
	return errors.Is(err, ErrCampaignTitleRequired)
}

func IsCampaignMessageRequired(err error) bool {
	return errors.Is(err, ErrCampaignMessageRequired)
}

func IsScheduleTimeInPast(err error) bool {
	return errors.Is(err, ErrScheduleTimeInPast)
}

func IsMultimediaURLRequired(err error) bool {
	return errors.Is(err, ErrMultimediaURLRequired)
}

func IsMultimediaTypeInvalid(err error) bool {
	return errors.Is(err, ErrMultimediaTypeInvalid)
}

func IsCampaignUpdateRequired(err error) bool {
	return errors.Is(err, ErrCampaignUpdateRequired)
}

func IsInvalidLimit(err error) bool {
	return errors.Is(err, ErrInvalidLimit)
}
