package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrNotActive             = errors.New("item is not in the active set")
	ErrAlreadyPurchased      = errors.New("item already purchased this rotation")
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrEmptyPool             = errors.New("item pool is empty")
	ErrPersist               = errors.New("persist failed")
	ErrMalformedRecord       = errors.New("malformed record")
)
