package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisig-backend/internal/config"
)

func minerConfig(prefix string, maxAttempts uint64) (config.BlockchainConfig, config.MinerConfig) {
	return config.BlockchainConfig{
			FactoryContract: "0x4444444444444444444444444444444444444444",
			ShardPrefix:     prefix,
			WalletInitHash:  "0x" + strings.Repeat("11", 32),
		}, config.MinerConfig{
			MaxAttempts:      maxAttempts,
			ProgressInterval: 2,
		}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestMinerRejectsBadPrefix(t *testing.T) {
	chainCfg, mCfg := minerConfig("0xzz", 10)
	_, err := NewAddressMiner(chainCfg, mCfg, quietLogger())
	assert.Error(t, err)

	chainCfg, mCfg = minerConfig("0x"+strings.Repeat("a", 41), 10)
	_, err = NewAddressMiner(chainCfg, mCfg, quietLogger())
	assert.Error(t, err)
}

func TestMinerRequiresInitHash(t *testing.T) {
	chainCfg, mCfg := minerConfig("0xab", 10)
	chainCfg.WalletInitHash = ""
	_, err := NewAddressMiner(chainCfg, mCfg, quietLogger())
	assert.Error(t, err)
}

func TestMinerEmptyPrefixSucceedsImmediately(t *testing.T) {
	chainCfg, mCfg := minerConfig("", 10)
	miner, err := NewAddressMiner(chainCfg, mCfg, quietLogger())
	require.NoError(t, err)

	sender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	_, outcome := miner.Mine(context.Background(), sender)

	result := <-outcome
	require.NoError(t, result.Err)
	require.NotNil(t, result.Result)
	assert.Equal(t, uint64(1), result.Result.Attempts)
	assert.True(t, strings.HasPrefix(result.Result.Salt, "0x"))
	assert.Len(t, result.Result.Salt, 66)
	assert.True(t, strings.HasPrefix(result.Result.ExpectedAddress, "0x"))
}

func TestMinerSaltDerivesConfiguredPrefix(t *testing.T) {
	chainCfg, mCfg := minerConfig("0xa", 1_000_000)
	miner, err := NewAddressMiner(chainCfg, mCfg, quietLogger())
	require.NoError(t, err)

	sender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	_, outcome := miner.Mine(context.Background(), sender)

	result := <-outcome
	require.NoError(t, result.Err)
	addr := strings.ToLower(strings.TrimPrefix(result.Result.ExpectedAddress, "0x"))
	assert.True(t, strings.HasPrefix(addr, "a"))
}

func TestMinerAttemptCeiling(t *testing.T) {
	// A 16-character prefix cannot be found in 5 attempts.
	chainCfg, mCfg := minerConfig("0x"+strings.Repeat("f", 16), 5)
	miner, err := NewAddressMiner(chainCfg, mCfg, quietLogger())
	require.NoError(t, err)

	sender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	progress, outcome := miner.Mine(context.Background(), sender)

	result := <-outcome
	require.Error(t, result.Err)
	var preconditionErr *PreconditionError
	assert.ErrorAs(t, result.Err, &preconditionErr)
	assert.Contains(t, result.Err.Error(), "5 attempts")

	// Progress channel closes with the job.
	for range progress {
	}
}

func TestMinerCancellation(t *testing.T) {
	chainCfg, mCfg := minerConfig("0x"+strings.Repeat("f", 16), 1_000_000_000)
	miner, err := NewAddressMiner(chainCfg, mCfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	_, outcome := miner.Mine(ctx, sender)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := <-outcome
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestMinerProgressUpdates(t *testing.T) {
	chainCfg, mCfg := minerConfig("0x"+strings.Repeat("f", 16), 50)
	miner, err := NewAddressMiner(chainCfg, mCfg, quietLogger())
	require.NoError(t, err)

	sender := common.HexToAddress("0x5555555555555555555555555555555555555555")
	progress, outcome := miner.Mine(context.Background(), sender)

	var updates int
	var lastAttempts uint64
	for update := range progress {
		updates++
		assert.Greater(t, update.Attempts, lastAttempts, "attempt counts are monotonic")
		lastAttempts = update.Attempts
	}
	<-outcome
	assert.Greater(t, updates, 0)
}
