//go:build !linux

package perfcnt

import (
	"github.com/pkg/errors"
)

func openHardware(event Event) (Counter, error) {
	return nil, errors.Wrapf(ErrNotAvailable, "%q requires Linux perf events", event)
}
