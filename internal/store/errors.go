package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrAuthCodeAlreadyUsed is returned by MarkAuthorizationCodeUsed when the
	// code was already consumed by a concurrent request (0 rows updated).
	ErrAuthCodeAlreadyUsed = errors.New("authorization code already used")

	// ErrTicketAlreadyConsumed is returned by RemoveTicket when the ticket was
	// already removed by a concurrent request (0 rows deleted).
	ErrTicketAlreadyConsumed = errors.New("ticket already consumed")
)
