// Command warmup pre-populates a running usergate instance's cache by
// requesting a range of user identifiers. Useful after a deploy, before
// traffic is cut over.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/usergate-io/usergate/internal/config"
	"github.com/usergate-io/usergate/internal/logging"
)

func main() {
	var (
		target  = flag.String("target", "http://localhost:8080", "base URL of the running usergate instance")
		fromID  = flag.Int("from", 1, "first user identifier to warm")
		toID    = flag.Int("to", 10, "last user identifier to warm (inclusive)")
		timeout = flag.Duration("timeout", 30*time.Second, "overall deadline for the warmup run")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "warmup")

	if *fromID <= 0 || *toID < *fromID {
		logger.Error("invalid identifier range", "from", *fromID, "to", *toID)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	base := strings.TrimRight(*target, "/")

	warmed, failed := 0, 0
	for id := *fromID; id <= *toID; id++ {
		if err := warmOne(ctx, client, base, id); err != nil {
			logger.Warn("warmup request failed", "id", id, "error", err)
			failed++
			continue
		}
		warmed++
	}

	logger.Info("warmup finished", "warmed", warmed, "failed", failed)
	if warmed == 0 {
		os.Exit(1)
	}
}

func warmOne(ctx context.Context, client *http.Client, base string, id int) error {
	url := fmt.Sprintf("%s/user?id=%d", base, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
