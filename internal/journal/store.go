// Package journal records every submitted transaction so that ones whose
// confirmation window closed can be reconciled later.
package journal

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/omnimint-bridge/internal/model"
	"github.com/yourorg/omnimint-bridge/internal/types"
)

var ErrNotFound = errors.New("journal entry not found")

// OperationMint marks entries whose token id is read from the receipt once settled
const OperationMint = "mint"

// Entry is one submitted transaction
type Entry struct {
	ID        uuid.UUID          `json:"id"`
	Operation string             `json:"operation"`
	Protocol  types.ProtocolKind `json:"protocol"`
	Network   types.NetworkName  `json:"network"`
	TxHash    string             `json:"transactionHash"`
	TokenID   string             `json:"tokenId,omitempty"`
	Message   model.Message      `json:"message"`
	Detail    string             `json:"detail,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Store abstracts journal persistence.
type Store interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, id uuid.UUID) (Entry, error)

	// Settle rewrites the message and detail; a non-empty tokenID replaces the stored one
	Settle(ctx context.Context, id uuid.UUID, msg model.Message, detail, tokenID string) error

	// Pending returns up to limit NotConfirmed entries, oldest first
	Pending(ctx context.Context, limit int) ([]Entry, error)
}

// NewEntry builds an entry for an outcome, or false when nothing reached the chain
func NewEntry(op string, protocol types.ProtocolKind, network types.NetworkName, out model.TransactionOutcome) (Entry, bool) {
	if out.TransactionHash == "" || !out.Message.Submitted() {
		return Entry{}, false
	}
	e := Entry{
		Operation: op,
		Protocol:  protocol,
		Network:   network,
		TxHash:    out.TransactionHash,
		Message:   out.Message,
		Detail:    out.Detail,
	}
	return e.WithTokenID(out.BlockchainLogID), true
}

// WithTokenID returns e carrying id; nil leaves it unchanged
func (e Entry) WithTokenID(id *big.Int) Entry {
	if id != nil {
		e.TokenID = id.String()
	}
	return e
}

// Token parses TokenID, nil when absent or malformed
func (e Entry) Token() *big.Int {
	if e.TokenID == "" {
		return nil
	}
	id, ok := new(big.Int).SetString(e.TokenID, 10)
	if !ok {
		return nil
	}
	return id
}

func stamp(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	return e
}

// MemoryStore is mostly for testing and single-process deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[uuid.UUID]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[uuid.UUID]Entry)}
}

func (m *MemoryStore) Record(_ context.Context, e Entry) (Entry, error) {
	e = stamp(e)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[e.ID] = e
	return e, nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) Settle(_ context.Context, id uuid.UUID, msg model.Message, detail, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[id]
	if !ok {
		return ErrNotFound
	}
	e.Message = msg
	e.Detail = detail
	if tokenID != "" {
		e.TokenID = tokenID
	}
	e.UpdatedAt = time.Now().UTC()
	m.data[id] = e
	return nil
}

func (m *MemoryStore) Pending(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.data {
		if e.Message == model.MessageNotConfirmed {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
