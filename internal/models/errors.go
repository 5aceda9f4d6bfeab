package models

import "errors"

// ErrInvalidTransition is returned for registration state changes outside
// none -> REGISTERED|WAITLIST, WAITLIST -> REGISTERED and * -> dropped.
var ErrInvalidTransition = errors.New("invalid registration transition")
