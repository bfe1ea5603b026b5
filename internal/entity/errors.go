package entity

import (
	"errors"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrRender          = errors.New("render error")
	ErrDelivery        = errors.New("delivery error")
	ErrConfiguration   = errors.New("configuration error")
	ErrUnauthenticated = errors.New("unauthenticated")
)
