package service

import "errors"

// ErrInvalidDays is returned when a subscription length is not a positive integer
var ErrInvalidDays = errors.New("days must be a positive integer")
