package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/commissions/internal/aggregation"
	"github.com/iho/commissions/internal/allocation"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/infrastructure/metrics"
	"github.com/iho/commissions/internal/matching"
)

// ReconciliationDeps wires a ReconciliationUseCase.
// Cache, Metrics, Allocator and Aggregator are optional.
type ReconciliationDeps struct {
	TxManager     TransactionManager
	MasterRepo    MasterRecordRepository
	StatementRepo StatementRepository
	MatchRepo     MatchRepository
	SellerRepo    SellerStatementRepository
	Locker        PeriodLocker
	Idempotency   IdempotencyStore
	Cache         Cache
	IDGen         IDGenerator
	Writer        *ChunkWriter
	Allocator     *allocation.Allocator
	Aggregator    *aggregation.Aggregator
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics

	IdempotencyTTL        time.Duration
	RegenerateConcurrency int
}

// ReconciliationUseCase matches carrier statements and keeps seller statements in step with them.
// Every aggregate mutation for a period runs under that period's lock.
type ReconciliationUseCase struct {
	txManager     TransactionManager
	masterRepo    MasterRecordRepository
	statementRepo StatementRepository
	matchRepo     MatchRepository
	sellerRepo    SellerStatementRepository
	locker        PeriodLocker
	idempotency   IdempotencyStore
	cache         Cache
	idGen         IDGenerator
	writer        *ChunkWriter
	allocator     *allocation.Allocator
	aggregator    *aggregation.Aggregator
	logger        zerolog.Logger
	metrics       *metrics.Metrics

	idempotencyTTL time.Duration
	concurrency    int
	now            func() time.Time
}

// NewReconciliationUseCase creates a new ReconciliationUseCase.
func NewReconciliationUseCase(deps ReconciliationDeps) *ReconciliationUseCase {
	uc := &ReconciliationUseCase{
		txManager:      deps.TxManager,
		masterRepo:     deps.MasterRepo,
		statementRepo:  deps.StatementRepo,
		matchRepo:      deps.MatchRepo,
		sellerRepo:     deps.SellerRepo,
		locker:         deps.Locker,
		idempotency:    deps.Idempotency,
		cache:          deps.Cache,
		idGen:          deps.IDGen,
		writer:         deps.Writer,
		allocator:      deps.Allocator,
		aggregator:     deps.Aggregator,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		idempotencyTTL: deps.IdempotencyTTL,
		concurrency:    deps.RegenerateConcurrency,
		now:            func() time.Time { return time.Now().UTC() },
	}
	if uc.writer == nil {
		uc.writer = NewChunkWriter(DefaultWriteBatchSize, DefaultWriteBatchPacing, nil, deps.Metrics)
	}
	if uc.allocator == nil {
		uc.allocator = allocation.New(nil)
	}
	if uc.aggregator == nil {
		uc.aggregator = aggregation.New(nil)
	}
	if uc.idempotencyTTL <= 0 {
		uc.idempotencyTTL = IdempotencyKeyTTL
	}
	if uc.concurrency <= 0 {
		uc.concurrency = DefaultRegenerateConcurrency
	}
	return uc
}

// SubmitStatementInput represents one extracted carrier statement upload.
// Rows are stamped with the new statement's ID and their position.
type SubmitStatementInput struct {
	Period   string
	Carrier  string
	FileName string
	Rows     []*domain.CarrierStatementRow
}

// SubmitStatementResult is the outcome of matching and merging one statement.
type SubmitStatementResult struct {
	Statement *domain.Statement
	Matched   []*domain.MatchedRow
	Unmatched []*domain.UnmatchedRow
	Groups    []*domain.SellerStatementGroup
}

// RetractStatementResult reports how a retraction reached the aggregates.
// Regenerated is set when the retracted rows shared items with other statements.
type RetractStatementResult struct {
	Statement   *domain.Statement
	Regenerated bool
	Report      *RegenerateReport
}

// RegenerateReport summarises a full period rebuild.
type RegenerateReport struct {
	Period        string
	Statements    int
	Excluded      []string
	Superseded    []string
	MatchedRows   int
	UnmatchedRows int
	Groups        int
}

// SubmitStatement matches a statement against the registry, persists the result and merges
// the matched rows into the period's seller statements.
func (uc *ReconciliationUseCase) SubmitStatement(ctx context.Context, input SubmitStatementInput) (*SubmitStatementResult, error) {
	period, err := domain.ValidatePeriod(input.Period)
	if err != nil {
		return nil, err
	}
	if len(input.Rows) == 0 {
		return nil, domain.ErrEmptyStatement
	}

	now := uc.now()
	statement := &domain.Statement{
		ID:          uc.idGen.Generate(),
		Period:      period,
		Carrier:     input.Carrier,
		FileName:    input.FileName,
		Fingerprint: StatementFingerprint(input.Carrier, input.Rows),
		Status:      domain.StatementStatusMatched,
		RowCount:    len(input.Rows),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	log := uc.logger.With().Str("period", period).Str("statement_id", statement.ID).Logger()

	key := submissionKey(period, statement.Fingerprint)
	exists, existing, err := uc.idempotency.CheckAndSet(ctx, key, []byte(statement.ID), uc.idempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("check submission: %w", err)
	}
	if exists {
		uc.countOutcome("duplicate")
		if uc.metrics != nil {
			uc.metrics.DuplicateSubmissions.Inc()
		}
		return nil, fmt.Errorf("%w: matches statement %s", domain.ErrDuplicateSubmission, string(existing))
	}

	submitted := false
	defer func() {
		if submitted {
			return
		}
		if err := uc.idempotency.Delete(context.WithoutCancel(ctx), key); err != nil {
			log.Warn().Err(err).Msg("failed to release submission key")
		}
	}()

	lock, err := uc.lock(ctx, period)
	if err != nil {
		return nil, err
	}
	defer uc.unlock(ctx, lock, log)

	prior, err := uc.priorAttempt(ctx, period, statement.Fingerprint)
	if err != nil {
		return nil, err
	}
	resume := false
	if prior != nil {
		if err := uc.idempotency.Update(ctx, key, []byte(prior.ID), uc.idempotencyTTL); err != nil {
			log.Warn().Err(err).Msg("failed to re-point submission key")
		}
		if prior.Status == domain.StatementStatusMatched {
			submitted = true
			uc.countOutcome("duplicate")
			if uc.metrics != nil {
				uc.metrics.DuplicateSubmissions.Inc()
			}
			return nil, fmt.Errorf("%w: matches statement %s", domain.ErrDuplicateSubmission, prior.ID)
		}

		// A failed attempt keeps its ID so row refs it already merged are recognised.
		resume = true
		statement.ID = prior.ID
		statement.FileName = prior.FileName
		statement.CreatedAt = prior.CreatedAt
		log = uc.logger.With().Str("period", period).Str("statement_id", statement.ID).Logger()
		log.Info().Msg("resuming failed statement")
	}

	for i, row := range input.Rows {
		row.StatementID = statement.ID
		row.RowIndex = i
	}

	matcher, err := uc.buildMatcher(ctx)
	if err != nil {
		return nil, err
	}
	res := uc.match(matcher, input.Rows)
	statement.MatchedCount = len(res.Matched)

	if err := uc.persistStatement(ctx, statement, input.Rows, res, resume); err != nil {
		uc.countOutcome("failed")
		uc.markFailed(ctx, statement, log)
		return nil, err
	}

	start := time.Now()
	resolved, stale, err := uc.loadAggregates(ctx, period)
	if err != nil {
		uc.countOutcome("failed")
		uc.markFailed(ctx, statement, log)
		return nil, err
	}
	groups := uc.aggregator.Add(period, resolved, res.Matched)
	if err := uc.storeAggregates(ctx, period, resolved, stale, groups); err != nil {
		uc.countOutcome("failed")
		uc.markFailed(ctx, statement, log)
		log.Error().Err(err).Msg("seller statement merge failed; regenerate the period to recover")
		return nil, err
	}
	uc.observeMerge("add", start)

	submitted = true
	uc.countOutcome("matched")
	log.Info().
		Bool("resumed", resume).
		Int("rows", statement.RowCount).
		Int("matched", len(res.Matched)).
		Int("unmatched", len(res.Unmatched)).
		Msg("statement submitted")

	return &SubmitStatementResult{
		Statement: statement,
		Matched:   res.Matched,
		Unmatched: res.Unmatched,
		Groups:    groups,
	}, nil
}

// RetractStatement withdraws a statement's rows from the period's seller statements.
// When a retracted row shares an item with another statement the period is rebuilt instead.
func (uc *ReconciliationUseCase) RetractStatement(ctx context.Context, period, statementID string) (*RetractStatementResult, error) {
	period, err := domain.ValidatePeriod(period)
	if err != nil {
		return nil, err
	}
	log := uc.logger.With().Str("period", period).Str("statement_id", statementID).Logger()

	lock, err := uc.lock(ctx, period)
	if err != nil {
		return nil, err
	}
	defer uc.unlock(ctx, lock, log)

	statement, err := uc.statementInPeriod(ctx, period, statementID)
	if err != nil {
		return nil, err
	}
	switch statement.Status {
	case domain.StatementStatusMatched, domain.StatementStatusFailed:
	default:
		return nil, fmt.Errorf("%w: statement %s is %s", domain.ErrStatementNotActive, statementID, statement.Status)
	}
	// Part of a failed statement's rows may have reached the aggregates.
	partial := statement.Status == domain.StatementStatusFailed

	rows, err := uc.matchRepo.ListByStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}

	resolved, stale, err := uc.loadAggregates(ctx, period)
	if err != nil {
		return nil, err
	}
	shared := uc.aggregator.SharedItems(resolved, rows)

	now := uc.now()
	if err := uc.txManager.WithinTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.statementRepo.UpdateStatus(ctx, tx, statementID, domain.StatementStatusRetracted, 0, now); err != nil {
			return err
		}
		return uc.matchRepo.DeleteByStatement(ctx, tx, statementID)
	}); err != nil {
		return nil, fmt.Errorf("retract statement: %w", err)
	}
	statement.Status = domain.StatementStatusRetracted
	statement.MatchedCount = 0
	statement.UpdatedAt = now

	if err := uc.idempotency.Delete(ctx, submissionKey(period, statement.Fingerprint)); err != nil {
		log.Warn().Err(err).Msg("failed to release submission key")
	}

	result := &RetractStatementResult{Statement: statement}

	if len(shared) > 0 || partial {
		log.Info().
			Int("shared_items", len(shared)).
			Bool("failed", partial).
			Msg("retraction cannot be applied incrementally; regenerating")
		report, err := uc.regenerate(ctx, period)
		if err != nil {
			return nil, err
		}
		result.Regenerated = true
		result.Report = report
		return result, nil
	}

	start := time.Now()
	groups := uc.aggregator.Remove(period, resolved, rows)
	if err := uc.storeAggregates(ctx, period, resolved, stale, groups); err != nil {
		log.Error().Err(err).Msg("seller statement removal failed; regenerate the period to recover")
		return nil, err
	}
	uc.observeMerge("remove", start)

	log.Info().Int("rows", len(rows)).Msg("statement retracted")
	return result, nil
}

// RegeneratePeriod re-matches every active statement of a period against the current registry
// and rebuilds its seller statements from scratch.
func (uc *ReconciliationUseCase) RegeneratePeriod(ctx context.Context, period string) (*RegenerateReport, error) {
	period, err := domain.ValidatePeriod(period)
	if err != nil {
		return nil, err
	}
	log := uc.logger.With().Str("period", period).Logger()

	lock, err := uc.lock(ctx, period)
	if err != nil {
		return nil, err
	}
	defer uc.unlock(ctx, lock, log)

	return uc.regenerate(ctx, period)
}

// regenerate expects the period lock to be held.
func (uc *ReconciliationUseCase) regenerate(ctx context.Context, period string) (*RegenerateReport, error) {
	start := time.Now()
	log := uc.logger.With().Str("period", period).Logger()

	statements, err := uc.statementRepo.ListByPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	candidates, superseded := regenerationSources(statements)

	matcher, err := uc.buildMatcher(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*matching.Result, len(candidates))
	var (
		mu       sync.Mutex
		excluded = make(map[string]struct{})
	)
	exclude := func(s *domain.Statement, err error) {
		log.Error().Err(err).Str("statement_id", s.ID).Msg("statement excluded from regeneration")
		mu.Lock()
		excluded[s.ID] = struct{}{}
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, s := range candidates {
		g.Go(func() error {
			rows, err := uc.statementRepo.ListRows(gctx, s.ID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				exclude(s, fmt.Errorf("load rows: %w", err))
				return nil
			}
			if len(rows) != s.RowCount {
				exclude(s, fmt.Errorf("row set incomplete: stored %d of %d", len(rows), s.RowCount))
				return nil
			}
			res := uc.match(matcher, rows)
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &RegenerateReport{Period: period, Superseded: superseded}
	var matched []*domain.MatchedRow
	now := uc.now()

	for i, s := range candidates {
		res := results[i]
		if res == nil {
			continue
		}
		if err := uc.replaceMatches(ctx, s, *res, now); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			exclude(s, fmt.Errorf("store matches: %w", err))
			results[i] = nil
			continue
		}
		report.Statements++
		report.MatchedRows += len(res.Matched)
		report.UnmatchedRows += len(res.Unmatched)
		matched = append(matched, res.Matched...)
	}

	for _, s := range candidates {
		if _, ok := excluded[s.ID]; !ok {
			continue
		}
		report.Excluded = append(report.Excluded, s.ID)
		if s.Status != domain.StatementStatusFailed {
			uc.markFailed(ctx, s, log)
		}
	}

	previous, stale, err := uc.loadAggregates(ctx, period)
	if err != nil {
		return nil, err
	}
	groups := uc.aggregator.Build(period, matched)
	if err := uc.storeAggregates(ctx, period, previous, stale, groups); err != nil {
		return nil, err
	}
	report.Groups = len(groups)
	uc.observeMerge("regenerate", start)

	if uc.metrics != nil {
		uc.metrics.RegenerateExcluded.Add(float64(len(report.Excluded)))
	}

	log.Info().
		Int("statements", report.Statements).
		Int("excluded", len(report.Excluded)).
		Int("superseded", len(report.Superseded)).
		Int("groups", report.Groups).
		Msg("period regenerated")

	return report, nil
}

// ListStatements returns the statements uploaded for a period.
func (uc *ReconciliationUseCase) ListStatements(ctx context.Context, period string) ([]*domain.Statement, error) {
	period, err := domain.ValidatePeriod(period)
	if err != nil {
		return nil, err
	}
	return uc.statementRepo.ListByPeriod(ctx, period)
}

// GetStatementMatches returns the matched rows stored for a statement.
func (uc *ReconciliationUseCase) GetStatementMatches(ctx context.Context, period, statementID string) ([]*domain.MatchedRow, error) {
	period, err := domain.ValidatePeriod(period)
	if err != nil {
		return nil, err
	}
	if _, err := uc.statementInPeriod(ctx, period, statementID); err != nil {
		return nil, err
	}
	return uc.matchRepo.ListByStatement(ctx, statementID)
}

// PreviewSplit runs the allocator without touching storage.
func (uc *ReconciliationUseCase) PreviewSplit(amount domain.Cents, codes []string) (allocation.Result, error) {
	return uc.allocator.Split(amount, codes)
}

func (uc *ReconciliationUseCase) statementInPeriod(ctx context.Context, period, statementID string) (*domain.Statement, error) {
	statement, err := uc.statementRepo.GetByID(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if statement.Period != period {
		return nil, domain.ErrStatementNotFound
	}
	return statement, nil
}

func (uc *ReconciliationUseCase) buildMatcher(ctx context.Context) (*matching.Matcher, error) {
	records, err := uc.masterRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	index := matching.BuildIndex(records, uc.allocator.Table())
	return matching.NewMatcher(index, uc.allocator), nil
}

func (uc *ReconciliationUseCase) match(matcher *matching.Matcher, rows []*domain.CarrierStatementRow) matching.Result {
	start := time.Now()
	res := matcher.Match(rows)

	if uc.metrics != nil {
		uc.metrics.MatchDuration.Observe(time.Since(start).Seconds())
		uc.metrics.RowsMatched.Add(float64(len(res.Matched)))
		for _, u := range res.Unmatched {
			uc.metrics.RowsUnmatched.WithLabelValues(string(u.Reason)).Inc()
		}
		for _, m := range res.Matched {
			if len(m.Warnings) > 0 {
				uc.metrics.AllocationWarnings.Inc()
			}
		}
	}
	return res
}

// priorAttempt returns the period's statement carrying fingerprint: an active one first,
// otherwise the earliest failed one. It returns nil when there is neither.
func (uc *ReconciliationUseCase) priorAttempt(ctx context.Context, period, fingerprint string) (*domain.Statement, error) {
	statements, err := uc.statementRepo.ListByPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}

	var failed *domain.Statement
	for _, s := range statements {
		if s.Fingerprint != fingerprint {
			continue
		}
		switch s.Status {
		case domain.StatementStatusMatched:
			return s, nil
		case domain.StatementStatusFailed:
			if failed == nil {
				failed = s
			}
		}
	}
	return failed, nil
}

// regenerationSources picks the statements a rebuild reads. A failed statement is left out
// when an active statement, or an earlier failed one, carries the same fingerprint.
func regenerationSources(statements []*domain.Statement) (sources []*domain.Statement, superseded []string) {
	active := make(map[string]struct{})
	for _, s := range statements {
		if s.Status == domain.StatementStatusMatched && s.Fingerprint != "" {
			active[s.Fingerprint] = struct{}{}
		}
	}

	claimed := make(map[string]struct{})
	for _, s := range statements {
		switch s.Status {
		case domain.StatementStatusMatched:
			sources = append(sources, s)
		case domain.StatementStatusFailed:
			if s.Fingerprint != "" {
				_, live := active[s.Fingerprint]
				_, taken := claimed[s.Fingerprint]
				if live || taken {
					superseded = append(superseded, s.ID)
					continue
				}
				claimed[s.Fingerprint] = struct{}{}
			}
			sources = append(sources, s)
		}
	}
	return sources, superseded
}

// persistStatement stores the statement header, rows and matching output. A resumed
// statement first drops whatever its failed attempt left behind.
func (uc *ReconciliationUseCase) persistStatement(
	ctx context.Context,
	statement *domain.Statement,
	rows []*domain.CarrierStatementRow,
	res matching.Result,
	resume bool,
) error {
	header := func(ctx context.Context, tx Transaction) error {
		return uc.statementRepo.Create(ctx, tx, statement)
	}
	if resume {
		header = func(ctx context.Context, tx Transaction) error {
			if err := uc.matchRepo.DeleteByStatement(ctx, tx, statement.ID); err != nil {
				return err
			}
			if err := uc.statementRepo.DeleteRows(ctx, tx, statement.ID); err != nil {
				return err
			}
			return uc.statementRepo.UpdateStatus(ctx, tx, statement.ID, domain.StatementStatusMatched, statement.MatchedCount, statement.UpdatedAt)
		}
	}
	if err := uc.txManager.WithinTx(ctx, header); err != nil {
		return fmt.Errorf("create statement: %w", err)
	}

	if err := WriteInChunks(ctx, uc.writer, "statement_rows", rows, uc.statementRepo.SaveRows); err != nil {
		return err
	}
	return uc.saveMatches(ctx, statement.Period, res)
}

func (uc *ReconciliationUseCase) saveMatches(ctx context.Context, period string, res matching.Result) error {
	if err := WriteInChunks(ctx, uc.writer, "matched_rows", res.Matched, func(ctx context.Context, chunk []*domain.MatchedRow) error {
		return uc.matchRepo.SaveMatched(ctx, period, chunk)
	}); err != nil {
		return err
	}
	return WriteInChunks(ctx, uc.writer, "unmatched_rows", res.Unmatched, func(ctx context.Context, chunk []*domain.UnmatchedRow) error {
		return uc.matchRepo.SaveUnmatched(ctx, period, chunk)
	})
}

func (uc *ReconciliationUseCase) replaceMatches(ctx context.Context, statement *domain.Statement, res matching.Result, now time.Time) error {
	if err := uc.txManager.WithinTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.matchRepo.DeleteByStatement(ctx, tx, statement.ID); err != nil {
			return err
		}
		return uc.statementRepo.UpdateStatus(ctx, tx, statement.ID, domain.StatementStatusMatched, len(res.Matched), now)
	}); err != nil {
		return err
	}
	return uc.saveMatches(ctx, statement.Period, res)
}

// loadAggregates returns the period's documents with duplicates resolved, and the stored IDs
// those documents supersede.
func (uc *ReconciliationUseCase) loadAggregates(ctx context.Context, period string) ([]*domain.SellerStatementGroup, []string, error) {
	docs, err := uc.sellerRepo.ListByPeriod(ctx, period)
	if err != nil {
		return nil, nil, fmt.Errorf("load seller statements: %w", err)
	}

	resolved, duplicates := aggregation.ResolveDuplicates(period, docs)
	var stale []string
	for _, d := range duplicates {
		if d.Documents > 1 {
			uc.logger.Warn().
				Str("period", period).
				Str("role_group", d.RoleGroup).
				Str("kept_id", d.KeptID).
				Strs("dropped_ids", d.DroppedIDs).
				Msg("duplicate seller statement documents")
			if uc.metrics != nil {
				uc.metrics.DuplicateAggregates.Inc()
			}
		}
		stale = append(stale, d.DroppedIDs...)
	}
	return resolved, stale, nil
}

// storeAggregates writes next and deletes every stored document it no longer contains.
func (uc *ReconciliationUseCase) storeAggregates(
	ctx context.Context,
	period string,
	previous []*domain.SellerStatementGroup,
	stale []string,
	next []*domain.SellerStatementGroup,
) error {
	now := uc.now()
	keep := make(map[string]struct{}, len(next))
	for _, g := range next {
		g.UpdatedAt = now
		keep[g.ID] = struct{}{}
	}

	if err := WriteInChunks(ctx, uc.writer, "seller_statements", next, uc.sellerRepo.Upsert); err != nil {
		return err
	}

	var obsolete []string
	seen := make(map[string]struct{})
	collect := func(id string) {
		if _, ok := keep[id]; ok {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		obsolete = append(obsolete, id)
	}
	for _, id := range stale {
		collect(id)
	}
	for _, g := range previous {
		collect(g.ID)
	}
	if len(obsolete) > 0 {
		if err := uc.sellerRepo.Delete(ctx, obsolete); err != nil {
			return fmt.Errorf("delete seller statements: %w", err)
		}
	}

	if uc.metrics != nil {
		uc.metrics.SellerStatements.WithLabelValues(period).Set(float64(len(next)))
	}
	if uc.cache != nil {
		if err := advanceGeneration(ctx, uc.cache, period, now); err != nil {
			uc.logger.Warn().Err(err).Str("period", period).Msg("failed to invalidate seller statement cache")
		}
	}
	return nil
}

func (uc *ReconciliationUseCase) markFailed(ctx context.Context, statement *domain.Statement, log zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)
	now := uc.now()
	err := uc.txManager.WithinTx(ctx, func(ctx context.Context, tx Transaction) error {
		return uc.statementRepo.UpdateStatus(ctx, tx, statement.ID, domain.StatementStatusFailed, statement.MatchedCount, now)
	})
	if err != nil {
		log.Error().Err(err).Str("statement_id", statement.ID).Msg("failed to mark statement failed")
		return
	}
	statement.Status = domain.StatementStatusFailed
	statement.UpdatedAt = now
}

func (uc *ReconciliationUseCase) lock(ctx context.Context, period string) (PeriodLock, error) {
	lock, err := uc.locker.Acquire(ctx, period)
	if err != nil {
		if errors.Is(err, domain.ErrPeriodLocked) {
			uc.countOutcome("locked")
			if uc.metrics != nil {
				uc.metrics.PeriodLockContention.Inc()
			}
		}
		return nil, err
	}
	return lock, nil
}

func (uc *ReconciliationUseCase) unlock(ctx context.Context, lock PeriodLock, log zerolog.Logger) {
	if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("failed to release period lock")
	}
}

func (uc *ReconciliationUseCase) countOutcome(outcome string) {
	if uc.metrics != nil {
		uc.metrics.StatementsProcessed.WithLabelValues(outcome).Inc()
	}
}

func (uc *ReconciliationUseCase) observeMerge(operation string, start time.Time) {
	if uc.metrics != nil {
		uc.metrics.MergeDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
