package browser

import (
	"io"
	"log/slog"
	"time"

	"github.com/mwahhasnft-alt/rork-sub000/config"
)

func testBrowserConfig() *config.BrowserConfig {
	return &config.BrowserConfig{
		Headless:       true,
		NavTimeout:     time.Second,
		RetryAttempts:  3,
		BackoffCeiling: 30 * time.Second,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
