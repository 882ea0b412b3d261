package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"multisig-backend/internal/models"
)

type fakeVerifierChain struct {
	txs map[string]*models.Transaction
	err error
}

func (f *fakeVerifierChain) GetTransaction(ctx context.Context, wallet common.Address, txHash common.Hash) (*models.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	tx, ok := f.txs[strings.ToLower(txHash.Hex())]
	if !ok {
		return nil, preconditionErrorf("transaction %s does not exist", txHash.Hex())
	}
	return tx, nil
}

type fakeTxRepo struct {
	rows map[string]*models.IndexedTransaction
	err  error
}

func (f *fakeTxRepo) GetTransaction(ctx context.Context, wallet, txHash string) (*models.IndexedTransaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[strings.ToLower(txHash)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (f *fakeTxRepo) FindByWallet(ctx context.Context, wallet string, page, limit int) ([]*models.IndexedTransaction, int64, error) {
	return nil, 0, f.err
}

func (f *fakeTxRepo) FindPendingByWallet(ctx context.Context, wallet string) ([]*models.IndexedTransaction, error) {
	var pending []*models.IndexedTransaction
	for _, row := range f.rows {
		if !row.Executed && !row.Cancelled {
			pending = append(pending, row)
		}
	}
	return pending, f.err
}

func (f *fakeTxRepo) FindByProposer(ctx context.Context, wallet, proposer string, page, limit int) ([]*models.IndexedTransaction, int64, error) {
	return nil, 0, f.err
}

func (f *fakeTxRepo) GetActiveConfirmations(ctx context.Context, wallet, txHash string) ([]*models.IndexedConfirmation, error) {
	return nil, f.err
}

func (f *fakeTxRepo) CountPending(ctx context.Context, wallet string) (int64, error) {
	return 0, f.err
}

const (
	verifyWallet = "0x1111111111111111111111111111111111111111"
	verifyTo     = "0x2222222222222222222222222222222222222222"
	verifyOwner  = "0x3333333333333333333333333333333333333333"
)

func verifyHash(n byte) string {
	return "0x" + strings.Repeat(string("0123456789abcdef"[n%16]), 64)
}

func chainAndIndexedAgreeing(hash string) (*models.Transaction, *models.IndexedTransaction) {
	chainTx := &models.Transaction{
		Hash:         hash,
		Wallet:       verifyWallet,
		To:           verifyTo,
		Value:        big.NewInt(100),
		Data:         "0x",
		Proposer:     verifyOwner,
		NumApprovals: 1,
	}
	indexed := &models.IndexedTransaction{
		WalletAddress: verifyWallet,
		TxHash:        hash,
		To:            verifyTo,
		Value:         "100",
		Data:          "0x",
		Proposer:      verifyOwner,
		NumApprovals:  1,
	}
	return chainTx, indexed
}

func TestVerifyAgreement(t *testing.T) {
	hash := verifyHash(1)
	chainTx, indexed := chainAndIndexedAgreeing(hash)

	verifier := NewConsistencyVerifier(
		&fakeVerifierChain{txs: map[string]*models.Transaction{hash: chainTx}},
		&fakeTxRepo{rows: map[string]*models.IndexedTransaction{hash: indexed}},
		quietLogger(),
	)

	result := verifier.Verify(context.Background(), verifyWallet, hash)
	assert.True(t, result.Verified)
	assert.Empty(t, result.Mismatches)
}

func TestVerifyChecksumDifferenceIsNotAMismatch(t *testing.T) {
	hash := verifyHash(2)
	chainTx, indexed := chainAndIndexedAgreeing(hash)
	// The indexer stores lowercase; the chain read returns checksummed.
	chainTx.To = common.HexToAddress(verifyTo).Hex()
	indexed.To = strings.ToLower(verifyTo)

	verifier := NewConsistencyVerifier(
		&fakeVerifierChain{txs: map[string]*models.Transaction{hash: chainTx}},
		&fakeTxRepo{rows: map[string]*models.IndexedTransaction{hash: indexed}},
		quietLogger(),
	)

	result := verifier.Verify(context.Background(), verifyWallet, hash)
	assert.True(t, result.Verified)
}

func TestVerifyDetectsMismatches(t *testing.T) {
	hash := verifyHash(3)
	chainTx, indexed := chainAndIndexedAgreeing(hash)
	indexed.NumApprovals = 3
	indexed.Executed = true

	verifier := NewConsistencyVerifier(
		&fakeVerifierChain{txs: map[string]*models.Transaction{hash: chainTx}},
		&fakeTxRepo{rows: map[string]*models.IndexedTransaction{hash: indexed}},
		quietLogger(),
	)

	result := verifier.Verify(context.Background(), verifyWallet, hash)
	assert.False(t, result.Verified)
	assert.Len(t, result.Mismatches, 2)
}

func TestVerifyMissingIndexerRow(t *testing.T) {
	hash := verifyHash(4)
	chainTx, _ := chainAndIndexedAgreeing(hash)

	verifier := NewConsistencyVerifier(
		&fakeVerifierChain{txs: map[string]*models.Transaction{hash: chainTx}},
		&fakeTxRepo{rows: map[string]*models.IndexedTransaction{}},
		quietLogger(),
	)

	result := verifier.Verify(context.Background(), verifyWallet, hash)
	assert.False(t, result.Verified)
	require.Len(t, result.Mismatches, 1)
	assert.Contains(t, result.Mismatches[0], "missing from indexer")
}

func TestVerifyChainFailureIsUnverifiable(t *testing.T) {
	hash := verifyHash(5)
	verifier := NewConsistencyVerifier(
		&fakeVerifierChain{err: errors.New("rpc down")},
		&fakeTxRepo{},
		quietLogger(),
	)

	result := verifier.Verify(context.Background(), verifyWallet, hash)
	assert.False(t, result.Verified)
	require.Len(t, result.Mismatches, 1)
	assert.Contains(t, result.Mismatches[0], "chain read failed")
}

func TestVerifyBatchPreservesOrderAndSurvivesFailures(t *testing.T) {
	good := verifyHash(6)
	missing := verifyHash(7)
	chainTx, indexed := chainAndIndexedAgreeing(good)

	verifier := NewConsistencyVerifier(
		&fakeVerifierChain{txs: map[string]*models.Transaction{good: chainTx}},
		&fakeTxRepo{rows: map[string]*models.IndexedTransaction{good: indexed}},
		quietLogger(),
	)

	hashes := []string{good, missing, "not-a-hash", good}
	results := verifier.VerifyBatch(context.Background(), verifyWallet, hashes)

	require.Len(t, results, len(hashes))
	for i, result := range results {
		require.NotNil(t, result, "every input yields a result")
		assert.Equal(t, hashes[i], result.TxHash)
	}
	assert.True(t, results[0].Verified)
	assert.False(t, results[1].Verified)
	assert.False(t, results[2].Verified)
	assert.True(t, results[3].Verified)
}
