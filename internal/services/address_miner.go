package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"multisig-backend/internal/config"
	"multisig-backend/internal/metrics"
	"multisig-backend/internal/models"
)

// AddressMiner searches CREATE2 salts until the derived wallet
// address starts with the configured hex prefix. The search space per
// salt is uniform, so expected attempts grow by 16x per prefix
// character; the attempt ceiling keeps a too-long prefix from spinning
// forever.
type AddressMiner struct {
	factory          common.Address
	initCodeHash     common.Hash
	prefix           string
	maxAttempts      uint64
	progressInterval uint64
	logger           *logrus.Logger
}

func NewAddressMiner(cfg config.BlockchainConfig, miner config.MinerConfig, logger *logrus.Logger) (*AddressMiner, error) {
	prefix := strings.ToLower(strings.TrimPrefix(cfg.ShardPrefix, "0x"))
	for _, c := range prefix {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return nil, validationErrorf("shard prefix %q is not hex", cfg.ShardPrefix)
		}
	}
	if len(prefix) > 40 {
		return nil, validationErrorf("shard prefix longer than an address")
	}
	initCodeHash := common.HexToHash(cfg.WalletInitHash)
	if initCodeHash == (common.Hash{}) {
		return nil, validationErrorf("wallet init code hash is not configured")
	}
	return &AddressMiner{
		factory:          common.HexToAddress(cfg.FactoryContract),
		initCodeHash:     initCodeHash,
		prefix:           prefix,
		maxAttempts:      miner.MaxAttempts,
		progressInterval: miner.ProgressInterval,
		logger:           logger,
	}, nil
}

// Mine searches for a matching salt. Progress updates are delivered
// on the returned channel at the configured attempt interval and the
// channel is closed when the search ends. The final result or error
// arrives on the result channel exactly once.
//
// Salts derive from keccak(sender || 32 random bytes) so that two
// users mining the same prefix concurrently cannot collide, and so a
// salt cannot be predicted from the attempt counter alone.
func (m *AddressMiner) Mine(ctx context.Context, sender common.Address) (<-chan models.MiningProgress, <-chan MiningOutcome) {
	progress := make(chan models.MiningProgress, 1)
	outcome := make(chan MiningOutcome, 1)

	go func() {
		defer close(progress)
		defer close(outcome)

		start := time.Now()
		var attempts uint64
		for attempts < m.maxAttempts {
			select {
			case <-ctx.Done():
				metrics.MiningJobs.WithLabelValues("cancelled").Inc()
				outcome <- MiningOutcome{Err: ctx.Err()}
				return
			default:
			}

			salt, err := m.nextSalt(sender)
			if err != nil {
				metrics.MiningJobs.WithLabelValues("error").Inc()
				outcome <- MiningOutcome{Err: err}
				return
			}
			attempts++
			metrics.MiningAttempts.Inc()

			derived := crypto.CreateAddress2(m.factory, salt, m.initCodeHash.Bytes())
			if m.matches(derived) {
				m.logger.WithFields(logrus.Fields{
					"address":  derived.Hex(),
					"attempts": attempts,
					"elapsed":  time.Since(start).String(),
				}).Info("address mining succeeded")
				metrics.MiningJobs.WithLabelValues("success").Inc()
				outcome <- MiningOutcome{Result: &models.MiningResult{
					Salt:            "0x" + hex.EncodeToString(salt[:]),
					ExpectedAddress: derived.Hex(),
					Attempts:        attempts,
				}}
				return
			}

			if m.progressInterval > 0 && attempts%m.progressInterval == 0 {
				// Drop the update if the consumer is behind; progress
				// is advisory and must not stall the search.
				select {
				case progress <- models.MiningProgress{Attempts: attempts, Elapsed: time.Since(start)}:
				default:
				}
			}
		}

		metrics.MiningJobs.WithLabelValues("exhausted").Inc()
		outcome <- MiningOutcome{Err: preconditionErrorf(
			"no address with prefix %q found within %d attempts", m.prefix, m.maxAttempts)}
	}()

	return progress, outcome
}

// MiningOutcome terminates a mining job: exactly one of Result or Err
// is set.
type MiningOutcome struct {
	Result *models.MiningResult
	Err    error
}

func (m *AddressMiner) nextSalt(sender common.Address) ([32]byte, error) {
	var entropy [32]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		return [32]byte{}, transportError("entropy source failed", err)
	}
	digest := crypto.Keccak256(sender.Bytes(), entropy[:])
	var salt [32]byte
	copy(salt[:], digest)
	return salt, nil
}

func (m *AddressMiner) matches(addr common.Address) bool {
	if m.prefix == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(addr.Hex()[2:]), m.prefix)
}
