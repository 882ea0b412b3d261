package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"multisig-backend/internal/metrics"
	"multisig-backend/internal/models"
	"multisig-backend/internal/repository"
	"multisig-backend/internal/utils"
)

// verifierChain is the authoritative side of a verification.
type verifierChain interface {
	GetTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) (*models.Transaction, error)
}

// VerificationResult is one transaction's chain-versus-indexer
// comparison. Verified is true only when the chain read succeeded and
// every compared field matched; any failure on either side yields
// Verified false with the reasons listed, never a dropped item.
type VerificationResult struct {
	TxHash     string   `json:"tx_hash"`
	Verified   bool     `json:"verified"`
	Mismatches []string `json:"mismatches,omitempty"`
}

// ConsistencyVerifier compares indexer rows against chain state. The
// chain is always right; a mismatch is an indexer defect report, not a
// conflict to resolve.
type ConsistencyVerifier struct {
	chain  verifierChain
	txs    repository.TransactionRepository
	logger *logrus.Logger

	batchConcurrency int
}

func NewConsistencyVerifier(chain verifierChain, txs repository.TransactionRepository, logger *logrus.Logger) *ConsistencyVerifier {
	return &ConsistencyVerifier{
		chain:            chain,
		txs:              txs,
		logger:           logger,
		batchConcurrency: 8,
	}
}

// Verify compares one transaction. A chain read failure makes the
// transaction unverifiable and is reported as such; a missing or
// unreadable indexer row is a plain mismatch.
func (v *ConsistencyVerifier) Verify(ctx context.Context, wallet, txHash string) *VerificationResult {
	result := &VerificationResult{TxHash: txHash}

	walletAddr, err := utils.ParseAddress(wallet)
	if err != nil {
		result.Mismatches = append(result.Mismatches, "invalid wallet address")
		return result
	}
	hash, err := utils.ParseHash(txHash)
	if err != nil {
		result.Mismatches = append(result.Mismatches, "invalid transaction hash")
		return result
	}

	chainTx, err := v.chain.GetTransaction(ctx, walletAddr, hash)
	if err != nil {
		result.Mismatches = append(result.Mismatches, fmt.Sprintf("chain read failed: %s", err))
		return result
	}

	indexed, err := v.txs.GetTransaction(ctx, wallet, txHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Mismatches = append(result.Mismatches, "transaction missing from indexer")
		} else {
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("indexer read failed: %s", err))
		}
		metrics.VerificationMismatches.Inc()
		return result
	}

	result.Mismatches = compareTransaction(chainTx, indexed)
	if len(result.Mismatches) == 0 {
		result.Verified = true
	} else {
		metrics.VerificationMismatches.Inc()
		v.logger.WithFields(logrus.Fields{
			"wallet":     wallet,
			"tx_hash":    txHash,
			"mismatches": result.Mismatches,
		}).Warn("indexer row disagrees with chain state")
	}
	return result
}

// VerifyBatch verifies many transactions of one wallet concurrently.
// Results preserve input order and every input yields a result; one
// item failing never aborts its siblings.
func (v *ConsistencyVerifier) VerifyBatch(ctx context.Context, wallet string, txHashes []string) []*VerificationResult {
	results := make([]*VerificationResult, len(txHashes))

	sem := make(chan struct{}, v.batchConcurrency)
	var wg sync.WaitGroup
	for i, txHash := range txHashes {
		wg.Add(1)
		go func(i int, txHash string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = v.Verify(ctx, wallet, txHash)
		}(i, txHash)
	}
	wg.Wait()
	return results
}

// compareTransaction lists every field where the indexer row differs
// from chain state. Decoded calldata columns are excluded: they are
// the indexer's own derivation, and the raw calldata comparison
// already covers what they describe.
func compareTransaction(chainTx *models.Transaction, indexed *models.IndexedTransaction) []string {
	var mismatches []string

	if !utils.SameAddress(chainTx.To, indexed.To) {
		mismatches = append(mismatches, fmt.Sprintf("to: chain=%s indexer=%s", chainTx.To, indexed.To))
	}

	indexedValue, ok := new(big.Int).SetString(indexed.Value, 10)
	if !ok || chainTx.Value == nil || chainTx.Value.Cmp(indexedValue) != 0 {
		mismatches = append(mismatches, fmt.Sprintf("value: chain=%s indexer=%s", chainTx.Value, indexed.Value))
	}

	if !strings.EqualFold(chainTx.Data, indexed.Data) {
		mismatches = append(mismatches, "calldata differs")
	}
	if !utils.SameAddress(chainTx.Proposer, indexed.Proposer) {
		mismatches = append(mismatches, fmt.Sprintf("proposer: chain=%s indexer=%s", chainTx.Proposer, indexed.Proposer))
	}
	if chainTx.NumApprovals != indexed.NumApprovals {
		mismatches = append(mismatches, fmt.Sprintf("approvals: chain=%d indexer=%d", chainTx.NumApprovals, indexed.NumApprovals))
	}
	if chainTx.Executed != indexed.Executed {
		mismatches = append(mismatches, fmt.Sprintf("executed: chain=%t indexer=%t", chainTx.Executed, indexed.Executed))
	}
	if chainTx.Cancelled != indexed.Cancelled {
		mismatches = append(mismatches, fmt.Sprintf("cancelled: chain=%t indexer=%t", chainTx.Cancelled, indexed.Cancelled))
	}
	return mismatches
}
