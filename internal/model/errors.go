package model

import "errors"

// Ошибки бизнес-логики. Все, кроме ErrTransientSend, окончательны для операции.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrExpired       = errors.New("expired")
	ErrUnavailable   = errors.New("unavailable")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrTransientSend = errors.New("notification delivery failed")
)
