package output

import (
	"context"
	"fmt"
	"time"
)

func StatusBar(ctx context.Context, refreshRate time.Duration, printF func()) {
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printF()
		case <-ctx.Done():
			return
		}
	}
}

func PrettyProfileStatus(samplesRate uint64, bufUtil int, dropped uint64, funcs int) string {
	return fmt.Sprintf("\r%-24s %-28s %-18s %-16s",
		fmt.Sprintf("Samples/s: %6d", samplesRate),
		fmt.Sprintf("Sample Buffer: [%s] %3d%%", ProgressBar(bufUtil, 10), bufUtil),
		fmt.Sprintf("Dropped: %6d", dropped),
		fmt.Sprintf("Functions: %4d", funcs),
	)
}
