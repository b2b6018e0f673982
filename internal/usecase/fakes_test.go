package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

// In-memory adapters for scenario tests. Narrow failure paths use the gomock mocks instead.

type memMasterRepo struct {
	mu      sync.Mutex
	records []*domain.MasterRecord
}

func (r *memMasterRepo) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	return nil
}

func (r *memMasterRepo) Insert(ctx context.Context, records []*domain.MasterRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

func (r *memMasterRepo) List(ctx context.Context) ([]*domain.MasterRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.MasterRecord(nil), r.records...), nil
}

type memStatementRepo struct {
	mu         sync.Mutex
	statements map[string]*domain.Statement
	order      []string
	rows       map[string][]*domain.CarrierStatementRow
	rowsErr    map[string]error
}

func newMemStatementRepo() *memStatementRepo {
	return &memStatementRepo{
		statements: make(map[string]*domain.Statement),
		rows:       make(map[string][]*domain.CarrierStatementRow),
		rowsErr:    make(map[string]error),
	}
}

func (r *memStatementRepo) Create(ctx context.Context, tx usecase.Transaction, s *domain.Statement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.statements[s.ID] = &cp
	r.order = append(r.order, s.ID)
	return nil
}

func (r *memStatementRepo) GetByID(ctx context.Context, id string) (*domain.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statements[id]
	if !ok {
		return nil, domain.ErrStatementNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memStatementRepo) ListByPeriod(ctx context.Context, period string) ([]*domain.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Statement
	for _, id := range r.order {
		if s := r.statements[id]; s.Period == period {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memStatementRepo) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.StatementStatus, matchedCount int, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.statements[id]
	if !ok {
		return domain.ErrStatementNotFound
	}
	s.Status = status
	s.MatchedCount = matchedCount
	s.UpdatedAt = updatedAt
	return nil
}

func (r *memStatementRepo) SaveRows(ctx context.Context, rows []*domain.CarrierStatementRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.rows[row.StatementID] = append(r.rows[row.StatementID], row)
	}
	return nil
}

func (r *memStatementRepo) DeleteRows(ctx context.Context, tx usecase.Transaction, statementID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, statementID)
	return nil
}

func (r *memStatementRepo) ListRows(ctx context.Context, statementID string) ([]*domain.CarrierStatementRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rowsErr[statementID]; err != nil {
		return nil, err
	}
	return append([]*domain.CarrierStatementRow(nil), r.rows[statementID]...), nil
}

func (r *memStatementRepo) status(id string) domain.StatementStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.statements[id]; ok {
		return s.Status
	}
	return ""
}

type memMatchRepo struct {
	mu         sync.Mutex
	statements *memStatementRepo
	matched    map[string][]*domain.MatchedRow
	unmatched  map[string][]*domain.UnmatchedRow
	order      []string
}

func newMemMatchRepo(statements *memStatementRepo) *memMatchRepo {
	return &memMatchRepo{
		statements: statements,
		matched:    make(map[string][]*domain.MatchedRow),
		unmatched:  make(map[string][]*domain.UnmatchedRow),
	}
}

func (r *memMatchRepo) track(id string) {
	for _, seen := range r.order {
		if seen == id {
			return
		}
	}
	r.order = append(r.order, id)
}

func (r *memMatchRepo) SaveMatched(ctx context.Context, period string, rows []*domain.MatchedRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range rows {
		r.track(m.Row.StatementID)
		r.matched[m.Row.StatementID] = append(r.matched[m.Row.StatementID], m)
	}
	return nil
}

func (r *memMatchRepo) SaveUnmatched(ctx context.Context, period string, rows []*domain.UnmatchedRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range rows {
		r.track(u.Row.StatementID)
		r.unmatched[u.Row.StatementID] = append(r.unmatched[u.Row.StatementID], u)
	}
	return nil
}

func (r *memMatchRepo) ListByStatement(ctx context.Context, statementID string) ([]*domain.MatchedRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.MatchedRow(nil), r.matched[statementID]...), nil
}

func (r *memMatchRepo) ListByPeriod(ctx context.Context, period string) ([]*domain.MatchedRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.MatchedRow
	for _, id := range r.order {
		if r.active(id, period) {
			out = append(out, r.matched[id]...)
		}
	}
	return out, nil
}

func (r *memMatchRepo) ListUnmatchedByPeriod(ctx context.Context, period string) ([]*domain.UnmatchedRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.UnmatchedRow
	for _, id := range r.order {
		if r.active(id, period) {
			out = append(out, r.unmatched[id]...)
		}
	}
	return out, nil
}

func (r *memMatchRepo) active(id, period string) bool {
	s, err := r.statements.GetByID(context.Background(), id)
	return err == nil && s.Period == period && s.Status == domain.StatementStatusMatched
}

func (r *memMatchRepo) DeleteByStatement(ctx context.Context, tx usecase.Transaction, statementID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matched, statementID)
	delete(r.unmatched, statementID)
	return nil
}

type memSellerRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.SellerStatementGroup
}

func newMemSellerRepo(seed ...*domain.SellerStatementGroup) *memSellerRepo {
	r := &memSellerRepo{docs: make(map[string]*domain.SellerStatementGroup)}
	for _, doc := range seed {
		r.docs[doc.ID] = doc.Clone()
	}
	return r
}

func (r *memSellerRepo) ListByPeriod(ctx context.Context, period string) ([]*domain.SellerStatementGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SellerStatementGroup
	for _, doc := range r.docs {
		if doc.Period == period {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memSellerRepo) Upsert(ctx context.Context, groups []*domain.SellerStatementGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range groups {
		r.docs[g.ID] = g.Clone()
	}
	return nil
}

func (r *memSellerRepo) Delete(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.docs, id)
	}
	return nil
}

func (r *memSellerRepo) get(id string) *domain.SellerStatementGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id]
}

func (r *memSellerRepo) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.docs))
	for id := range r.docs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type memDisputeRepo struct {
	mu       sync.Mutex
	disputes []*domain.Dispute
}

func (r *memDisputeRepo) DeleteByPeriod(ctx context.Context, period string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.disputes[:0]
	for _, d := range r.disputes {
		if d.Period != period {
			kept = append(kept, d)
		}
	}
	r.disputes = kept
	return nil
}

func (r *memDisputeRepo) Save(ctx context.Context, disputes []*domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disputes = append(r.disputes, disputes...)
	return nil
}

func (r *memDisputeRepo) ListByPeriod(ctx context.Context, period string) ([]*domain.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Dispute
	for _, d := range r.disputes {
		if d.Period == period {
			out = append(out, d)
		}
	}
	return out, nil
}

type nopTx struct{}

func (nopTx) Commit(ctx context.Context) error   { return nil }
func (nopTx) Rollback(ctx context.Context) error { return nil }

type nopTxManager struct{}

func (nopTxManager) Begin(ctx context.Context) (usecase.Transaction, error) { return nopTx{}, nil }

func (nopTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx usecase.Transaction) error) error {
	return fn(ctx, nopTx{})
}

// flakySellerRepo fails the Upsert calls listed in failOn, counting from 1.
type flakySellerRepo struct {
	*memSellerRepo
	failOn map[int]bool
	calls  int
}

func (r *flakySellerRepo) Upsert(ctx context.Context, groups []*domain.SellerStatementGroup) error {
	r.calls++
	if r.failOn[r.calls] {
		return errors.New("write ceiling exceeded")
	}
	return r.memSellerRepo.Upsert(ctx, groups)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, usecase.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

type memLock struct {
	locker *memLocker
	period string
}

func (l *memLocker) Acquire(ctx context.Context, period string) (usecase.PeriodLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[period] {
		return nil, domain.ErrPeriodLocked
	}
	l.held[period] = true
	return &memLock{locker: l, period: period}, nil
}

func (l *memLock) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.period)
	return nil
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func (s *memIdempotency) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = make(map[string][]byte)
	}
	if v, ok := s.keys[key]; ok {
		return true, v, nil
	}
	s.keys[key] = response
	return false, nil, nil
}

func (s *memIdempotency) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		return errors.New("key not found")
	}
	s.keys[key] = response
	return nil
}

func (s *memIdempotency) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memIdempotency) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%03d", g.n)
}

// harness bundles the in-memory adapters behind a ReconciliationUseCase.
type harness struct {
	masters     *memMasterRepo
	statements  *memStatementRepo
	matches     *memMatchRepo
	sellers     *memSellerRepo
	flaky       *flakySellerRepo
	locker      *memLocker
	idempotency *memIdempotency
	cache       *memCache
	uc          *usecase.ReconciliationUseCase
}

func newHarness(records []*domain.MasterRecord, seed ...*domain.SellerStatementGroup) *harness {
	statements := newMemStatementRepo()
	sellers := newMemSellerRepo(seed...)
	h := &harness{
		masters:     &memMasterRepo{records: records},
		statements:  statements,
		matches:     newMemMatchRepo(statements),
		sellers:     sellers,
		flaky:       &flakySellerRepo{memSellerRepo: sellers, failOn: map[int]bool{}},
		locker:      &memLocker{},
		idempotency: &memIdempotency{},
		cache:       &memCache{},
	}
	h.uc = usecase.NewReconciliationUseCase(usecase.ReconciliationDeps{
		TxManager:     nopTxManager{},
		MasterRepo:    h.masters,
		StatementRepo: h.statements,
		MatchRepo:     h.matches,
		SellerRepo:    h.flaky,
		Locker:        h.locker,
		Idempotency:   h.idempotency,
		Cache:         h.cache,
		IDGen:         &seqIDGen{},
		Writer:        usecase.NewChunkWriter(2, 0, nil, nil),
		Logger:        zerolog.Nop(),
	})
	return h
}

func record(id, billingItem, account string, codes ...string) *domain.MasterRecord {
	rec := &domain.MasterRecord{ID: id, BillingItem: billingItem, AccountName: account, Provider: "Lumen"}
	copy(rec.RoleSlots[:], codes)
	return rec
}

func row(billingItem, account, commission string) *domain.CarrierStatementRow {
	return &domain.CarrierStatementRow{
		BillingItem: billingItem,
		AccountName: account,
		Provider:    "Lumen",
		Commission:  decimal.RequireFromString(commission),
	}
}
