package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"multisig-backend/internal/config"
)

// IndexerHealth is one probe result from the indexer's health endpoint.
type IndexerHealth struct {
	Healthy      bool
	LatestBlock  uint64
	BlocksBehind uint64
}

// IndexerHealthClient probes the indexer's HTTP health endpoint. A
// reachable indexer that has fallen too far behind the chain head is
// reported unhealthy; serving stale rows as fresh is worse than
// falling back to the chain.
type IndexerHealthClient struct {
	healthURL       string
	maxBlocksBehind uint64
	httpClient      *http.Client
}

func NewIndexerHealthClient(cfg config.IndexerConfig) *IndexerHealthClient {
	return &IndexerHealthClient{
		healthURL:       cfg.HealthURL,
		maxBlocksBehind: cfg.MaxBlocksBehind,
		httpClient: &http.Client{
			Timeout: cfg.HealthTimeoutDuration(),
		},
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	LatestBlock uint64 `json:"latest_block"`
	ChainHead   uint64 `json:"chain_head"`
}

// Probe queries the health endpoint once. Any transport or decode
// failure means unhealthy; the caller decides how long to cache the
// verdict.
func (c *IndexerHealthClient) Probe(ctx context.Context) (*IndexerHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer health request failed after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer health endpoint returned status %d", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	var behind uint64
	if body.ChainHead > body.LatestBlock {
		behind = body.ChainHead - body.LatestBlock
	}

	healthy := body.Status == "ok"
	if c.maxBlocksBehind > 0 && behind > c.maxBlocksBehind {
		healthy = false
	}

	return &IndexerHealth{
		Healthy:      healthy,
		LatestBlock:  body.LatestBlock,
		BlocksBehind: behind,
	}, nil
}
