// Package disputes flags anomalies in a period's matching output for manual review.
package disputes

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/commissions/internal/domain"
)

// DefaultChangedRateThreshold is the period-over-period swing, per billing item, that raises a dispute.
const DefaultChangedRateThreshold domain.Cents = 500

// zeroTolerance is half a minor unit.
var zeroTolerance = decimal.New(5, -3)

// Input is one detection run. Prior is optional; nil disables changed-rate detection.
type Input struct {
	Period    string
	Matched   []*domain.MatchedRow
	Unmatched []*domain.UnmatchedRow
	Registry  []*domain.MasterRecord
	Prior     []*domain.MatchedRow
}

// Detector applies the dispute rules.
type Detector struct {
	threshold domain.Cents
	now       func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides the changed-rate threshold.
func WithThreshold(threshold domain.Cents) Option {
	return func(d *Detector) { d.threshold = threshold }
}

// WithClock overrides the detection timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		threshold: DefaultChangedRateThreshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect runs every rule and returns the disputes grouped by rule.
func (d *Detector) Detect(in Input) []*domain.Dispute {
	at := d.now()

	var out []*domain.Dispute
	out = append(out, d.newAccounts(in, at)...)
	out = append(out, d.zeroAndChargebacks(in, at)...)
	out = append(out, d.canceledMissing(in, at)...)
	if in.Prior != nil {
		out = append(out, d.changedRates(in, at)...)
	}
	return out
}

func (d *Detector) newAccounts(in Input, at time.Time) []*domain.Dispute {
	seen := make(map[string]struct{}, len(in.Unmatched))
	var out []*domain.Dispute

	for _, u := range in.Unmatched {
		r := u.Row
		sig := strings.Join([]string{
			domain.NormalizeAccountName(r.AccountName),
			domain.NormalizeBillingItem(r.BillingItem),
			strings.ToLower(strings.TrimSpace(r.Provider)),
			r.StatementID,
		}, "|")
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}

		out = append(out, &domain.Dispute{
			Period:      in.Period,
			Type:        domain.DisputeNewAccount,
			StatementID: r.StatementID,
			AccountName: r.AccountName,
			BillingItem: r.BillingItem,
			Provider:    r.Provider,
			Amount:      r.CommissionCents(),
			Explanation: fmt.Sprintf("statement line has no master record (%s)", u.Reason),
			DetectedAt:  at,
		})
	}
	return out
}

func (d *Detector) zeroAndChargebacks(in Input, at time.Time) []*domain.Dispute {
	var out []*domain.Dispute

	for _, m := range in.Matched {
		commission := m.Row.Commission
		base := domain.Dispute{
			Period:      in.Period,
			StatementID: m.Row.StatementID,
			AccountName: m.AccountName,
			BillingItem: m.BillingItem,
			Provider:    m.Provider,
			Amount:      m.Amount(),
			DetectedAt:  at,
		}

		if commission.Abs().LessThan(zeroTolerance) {
			z := base
			z.Type = domain.DisputeZero
			z.Explanation = fmt.Sprintf("commission %s is zero", commission.String())
			out = append(out, &z)
		}
		if commission.IsNegative() {
			c := base
			c.Type = domain.DisputeChargeback
			c.Explanation = fmt.Sprintf("commission %s is a chargeback", commission.String())
			out = append(out, &c)
		}
	}
	return out
}

func (d *Detector) canceledMissing(in Input, at time.Time) []*domain.Dispute {
	present := make(map[string]struct{}, len(in.Matched)+len(in.Unmatched))
	for _, m := range in.Matched {
		present[domain.NormalizeBillingItem(m.Row.BillingItem)] = struct{}{}
	}
	for _, u := range in.Unmatched {
		present[domain.NormalizeBillingItem(u.Row.BillingItem)] = struct{}{}
	}

	flagged := make(map[string]struct{})
	var out []*domain.Dispute

	for _, rec := range in.Registry {
		key := domain.NormalizeBillingItem(rec.BillingItem)
		if key == "" {
			continue
		}
		if _, ok := present[key]; ok {
			continue
		}
		if _, dup := flagged[key]; dup {
			continue
		}
		flagged[key] = struct{}{}

		out = append(out, &domain.Dispute{
			Period:      in.Period,
			Type:        domain.DisputeCanceledMissing,
			AccountName: rec.AccountName,
			BillingItem: rec.BillingItem,
			Provider:    rec.Provider,
			Explanation: missingExplanation(rec),
			DetectedAt:  at,
		})
	}
	return out
}

func missingExplanation(rec *domain.MasterRecord) string {
	switch {
	case rec.CancelDate != "":
		return fmt.Sprintf("billing item absent from statements; master record canceled on %s", rec.CancelDate)
	case rec.IsCanceled():
		return fmt.Sprintf("billing item absent from statements; master record status is %q", rec.Status)
	default:
		return "billing item in master registry but missing from every statement"
	}
}

func (d *Detector) changedRates(in Input, at time.Time) []*domain.Dispute {
	current, representative := totalsByItem(in.Matched)
	prior, _ := totalsByItem(in.Prior)

	keys := make([]string, 0, len(current))
	for key := range current {
		if _, ok := prior[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var out []*domain.Dispute
	for _, key := range keys {
		cur, prev := current[key], prior[key]
		if (cur - prev).Abs() <= d.threshold {
			continue
		}

		rep := representative[key]
		out = append(out, &domain.Dispute{
			Period:      in.Period,
			Type:        domain.DisputeChangedRate,
			StatementID: rep.Row.StatementID,
			AccountName: rep.AccountName,
			BillingItem: rep.BillingItem,
			Provider:    rep.Provider,
			Amount:      cur,
			PriorAmount: prev,
			Explanation: fmt.Sprintf("commission moved from %s to %s (change %s)", prev, cur, cur-prev),
			DetectedAt:  at,
		})
	}
	return out
}

func totalsByItem(rows []*domain.MatchedRow) (map[string]domain.Cents, map[string]*domain.MatchedRow) {
	totals := make(map[string]domain.Cents)
	first := make(map[string]*domain.MatchedRow)
	for _, m := range rows {
		key := domain.NormalizeBillingItem(m.Row.BillingItem)
		totals[key] += m.Amount()
		if _, ok := first[key]; !ok {
			first[key] = m
		}
	}
	return totals, first
}
