package perfcnt

import (
	"github.com/pkg/errors"
)

var (
	ErrNotAvailable = errors.New("hardware performance counters not available")
	ErrUnknownEvent = errors.New("unknown counter event")
)
