package services

import (
	"complywatch/internal/models"
	"context"
	"errors"
)

var (
	ErrWebsiteNotFound = errors.New("website not found")
	ErrInvalidScore    = errors.New("score must be between 0 and 100")
	ErrInvalidWindow   = errors.New("window start must be before its end")
	// ErrCooldownContention is returned when the cooldown compare-and-set kept
	// losing against concurrent writers.
	ErrCooldownContention = errors.New("cooldown gate contention")
)

// ScanExecutorInterface hands a website to the scanner. Dispatch only enqueues
// the scan; the score arrives later through the snapshot callback.
type ScanExecutorInterface interface {
	Dispatch(ctx context.Context, website models.Website) error
}

type MailerInterface interface {
	Send(ctx context.Context, msg models.MailMessage) error
}
