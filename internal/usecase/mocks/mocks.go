package mocks

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/usecase"
)

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc                func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error
	GetByIDFunc               func(ctx context.Context, id string) (*domain.Account, error)
	GetByNumberFunc           func(ctx context.Context, number string) (*domain.Account, error)
	GetByNumbersForUpdateFunc func(ctx context.Context, tx usecase.Transaction, numbers []string) ([]*domain.Account, error)
	UpdateBalanceFunc         func(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	ListFunc                  func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountRepository(accounts ...*domain.Account) *MockAccountRepository {
	m := &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return domain.ErrAccountExists
		}
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	if m.GetByNumberFunc != nil {
		return m.GetByNumberFunc(ctx, number)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.AccountNumber == number {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByNumbersForUpdate(ctx context.Context, tx usecase.Transaction, numbers []string) ([]*domain.Account, error) {
	if m.GetByNumbersForUpdateFunc != nil {
		return m.GetByNumbersForUpdateFunc(ctx, tx, numbers)
	}
	var accounts []*domain.Account
	for _, n := range numbers {
		if acc, err := m.GetByNumber(ctx, n); err == nil {
			accounts = append(accounts, acc)
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, tx, id, balance, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.Balance = balance
	acc.Version++
	acc.UpdatedAt = updatedAt
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].AccountNumber < accounts[j].AccountNumber })
	return page(accounts, limit, offset), nil
}

// Balance returns the stored balance of the account with the given number.
func (m *MockAccountRepository) Balance(number string) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.AccountNumber == number {
			return acc.Balance
		}
	}
	return decimal.Zero
}

// MockClearanceRepository is a mock implementation of ClearanceRepository.
type MockClearanceRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.ClearanceRecord

	CreateFunc        func(ctx context.Context, tx usecase.Transaction, record *domain.ClearanceRecord) error
	GetByIDFunc       func(ctx context.Context, id string) (*domain.ClearanceRecord, error)
	ListFunc          func(ctx context.Context, filter usecase.ClearanceFilter) ([]*domain.ClearanceRecord, error)
	ListPendingFunc   func(ctx context.Context, limit int) ([]*domain.ClearanceRecord, error)
	ResolveFunc       func(ctx context.Context, tx usecase.Transaction, record *domain.ClearanceRecord) error
	RecordAttemptFunc func(ctx context.Context, id string, attempts int, lastError string, updatedAt time.Time) error
}

func NewMockClearanceRepository() *MockClearanceRepository {
	return &MockClearanceRepository{
		records: make(map[string]*domain.ClearanceRecord),
	}
}

func (m *MockClearanceRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.ClearanceRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.records[record.ID] = &cp
	return nil
}

func (m *MockClearanceRepository) GetByID(ctx context.Context, id string) (*domain.ClearanceRecord, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrClearanceNotFound
}

func (m *MockClearanceRepository) List(ctx context.Context, filter usecase.ClearanceFilter) ([]*domain.ClearanceRecord, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []*domain.ClearanceRecord
	for _, r := range m.records {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		cp := *r
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return page(records, filter.Limit, filter.Offset), nil
}

func (m *MockClearanceRepository) ListPending(ctx context.Context, limit int) ([]*domain.ClearanceRecord, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []*domain.ClearanceRecord
	for _, r := range m.records {
		if r.Status == domain.ClearanceStatusPending {
			cp := *r
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return page(records, limit, 0), nil
}

func (m *MockClearanceRepository) Resolve(ctx context.Context, tx usecase.Transaction, record *domain.ClearanceRecord) error {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, tx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[record.ID]
	if !ok {
		return domain.ErrClearanceNotFound
	}
	if stored.Status != domain.ClearanceStatusPending {
		return domain.ErrClearanceAlreadyResolved
	}
	cp := *record
	m.records[record.ID] = &cp
	return nil
}

func (m *MockClearanceRepository) RecordAttempt(ctx context.Context, id string, attempts int, lastError string, updatedAt time.Time) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, id, attempts, lastError, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		r.Attempts = attempts
		r.LastError = lastError
		r.UpdatedAt = updatedAt
	}
	return nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published {
			events = append(events, e)
		}
	}
	return page(events, limit, 0), nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			events = append(events, e)
		}
	}
	return page(events, limit, offset), nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if !e.Published || e.PublishedAt == nil || !e.PublishedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// EventTypes returns the types of all stored events in insertion order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.EventType)
	}
	return types
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)

	mu        sync.Mutex
	Commits   int
	Rollbacks int
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{manager: m}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	manager *MockTransactionManager
	done    bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	if m.manager != nil && !m.done {
		m.manager.mu.Lock()
		m.manager.Commits++
		m.manager.mu.Unlock()
	}
	m.done = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	if m.manager != nil && !m.done {
		m.manager.mu.Lock()
		m.manager.Rollbacks++
		m.manager.mu.Unlock()
	}
	m.done = true
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return "mock-id-" + strconv.Itoa(m.counter)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockBlobStore is an in-memory BlobStore keyed by handle.
type MockBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	PutFunc func(ctx context.Context, key string, data []byte, contentType string) (string, error)
	GetFunc func(ctx context.Context, handle string) ([]byte, error)
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{blobs: make(map[string][]byte)}
}

func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, data, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	handle := m.HandleFor(key)
	if _, ok := m.blobs[handle]; ok {
		return "", domain.ErrBlobExists
	}
	m.blobs[handle] = data
	return handle, nil
}

func (m *MockBlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, handle)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[handle]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return data, nil
}

func (m *MockBlobStore) Exists(ctx context.Context, handle string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[handle]
	return ok, nil
}

func (m *MockBlobStore) HandleFor(key string) string {
	return "mock://" + key
}

// MockClearanceQueue records enqueued items.
type MockClearanceQueue struct {
	mu    sync.Mutex
	Items []domain.QueueItem
}

func NewMockClearanceQueue() *MockClearanceQueue {
	return &MockClearanceQueue{}
}

func (m *MockClearanceQueue) Enqueue(item domain.QueueItem) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Items {
		if existing.RecordID == item.RecordID {
			return false
		}
	}
	m.Items = append(m.Items, item)
	return true
}

func (m *MockClearanceQueue) Snapshot() []domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.QueueItem, len(m.Items))
	copy(out, m.Items)
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
