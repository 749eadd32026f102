package blockchain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/dexpulse/pkg/logger"
)

// TransactionStatus represents the status of a transaction
type TransactionStatus int

const (
	// TxPending indicates transaction is pending
	TxPending TransactionStatus = iota
	// TxConfirmed indicates transaction is confirmed
	TxConfirmed
	// TxFailed indicates transaction has failed
	TxFailed
)

// TransactionRecord tracks details about a transaction
type TransactionRecord struct {
	Hash      common.Hash
	Nonce     uint64
	Operation string
	CreatedAt time.Time
	UpdatedAt time.Time
	Status    TransactionStatus
}

// NonceSource returns the pending nonce of an account
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager hands out nonces for a single wallet so that the approval and
// the swap of one invocation never race for the same nonce
type NonceManager struct {
	source  NonceSource
	address common.Address
	logger  logger.Logger

	mu           sync.Mutex
	currentNonce uint64
	synced       bool
	reserved     map[uint64]bool
	pendingTxs   map[uint64]*TransactionRecord
}

// NewNonceManager creates a new nonce manager for address
func NewNonceManager(source NonceSource, address common.Address, log logger.Logger) *NonceManager {
	return &NonceManager{
		source:     source,
		address:    address,
		logger:     log,
		reserved:   make(map[uint64]bool),
		pendingTxs: make(map[uint64]*TransactionRecord),
	}
}

// GetNonce reserves and returns the next available nonce
func (nm *NonceManager) GetNonce(ctx context.Context) (uint64, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if !nm.synced {
		if err := nm.syncLocked(ctx); err != nil {
			return 0, err
		}
	}

	nonce := nm.currentNonce
	nm.currentNonce++
	nm.reserved[nonce] = true
	return nonce, nil
}

// TrackTransaction records a submitted transaction for a reserved nonce
func (nm *NonceManager) TrackTransaction(txHash common.Hash, nonce uint64, operation string) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	now := time.Now()
	nm.pendingTxs[nonce] = &TransactionRecord{
		Hash:      txHash,
		Nonce:     nonce,
		Operation: operation,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    TxPending,
	}
	delete(nm.reserved, nonce)

	nm.logger.Debug("Tracking %s transaction with nonce %d: %s", operation, nonce, txHash.Hex())
}

// MarkTransactionConfirmed marks a transaction as included
func (nm *NonceManager) MarkTransactionConfirmed(nonce uint64) bool {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	tx, exists := nm.pendingTxs[nonce]
	if !exists {
		nm.logger.Notice("No pending transaction found for nonce %d", nonce)
		return false
	}

	tx.Status = TxConfirmed
	tx.UpdatedAt = time.Now()
	delete(nm.pendingTxs, nonce)
	return true
}

// ReleaseNonce returns a nonce whose submission failed before reaching the
// mempool. The nonce is handed out again when nothing after it is in flight.
func (nm *NonceManager) ReleaseNonce(nonce uint64) bool {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if tx, exists := nm.pendingTxs[nonce]; exists {
		tx.Status = TxFailed
		tx.UpdatedAt = time.Now()
		delete(nm.pendingTxs, nonce)
	}
	delete(nm.reserved, nonce)

	if nonce+1 != nm.currentNonce {
		nm.logger.Notice("Cannot reuse nonce %d, next nonce is already %d", nonce, nm.currentNonce)
		return false
	}

	nm.currentNonce = nonce
	nm.logger.Debug("Nonce %d set for reuse", nonce)
	return true
}

// SyncWithBlockchain refreshes the local counter from the pending state
func (nm *NonceManager) SyncWithBlockchain(ctx context.Context) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return nm.syncLocked(ctx)
}

func (nm *NonceManager) syncLocked(ctx context.Context) error {
	nonce, err := nm.source.PendingNonceAt(ctx, nm.address)
	if err != nil {
		return fmt.Errorf("failed to get pending nonce: %w", err)
	}

	if nonce > nm.currentNonce || !nm.synced {
		nm.logger.Debug("Updating nonce for %s: %d -> %d", nm.address.Hex(), nm.currentNonce, nonce)
		nm.currentNonce = nonce
	}
	nm.synced = true
	return nil
}

// GetPendingTransactionsCount returns the number of submitted but unconfirmed transactions
func (nm *NonceManager) GetPendingTransactionsCount() int {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return len(nm.pendingTxs)
}
