package domain

import "errors"

var (
	ErrCorruptState           = errors.New("corrupt account state")
	ErrAccountNotFound        = errors.New("account not found")
	ErrUnknownTier            = errors.New("unknown tier")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrInvalidAccessCode      = errors.New("invalid access code")
	ErrAccessCodesDisabled    = errors.New("access codes disabled")
	ErrInvalidUserID          = errors.New("invalid user id")
	ErrProviderUnavailable    = errors.New("completion provider unavailable")
	ErrInvalidPaymentEvent    = errors.New("invalid payment event")
)
