package matching_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/commissions/internal/allocation"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/matching"
)

func record(id, billingItem, account string, slots ...string) *domain.MasterRecord {
	r := &domain.MasterRecord{ID: id, BillingItem: billingItem, AccountName: account}
	copy(r.RoleSlots[:], slots)
	return r
}

func row(billingItem, account, commission string) *domain.CarrierStatementRow {
	return &domain.CarrierStatementRow{
		BillingItem: billingItem,
		AccountName: account,
		Commission:  decimal.RequireFromString(commission),
	}
}

func TestExtractRoleCodes(t *testing.T) {
	t.Parallel()

	vocab := allocation.DefaultRuleTable()

	rec := record("m1", "1", "Acme", "custom-code", "BOGUS", "SA2", "N/A")
	rec.LegacyRoleSlots[1] = "RD2"
	rec.LegacyRoleSlots[3] = "ALSO-BOGUS"

	codes := matching.ExtractRoleCodes(rec, vocab)
	expected := []string{"custom-code", "RD2", "SA2"}
	if fmt.Sprint(codes) != fmt.Sprint(expected) {
		t.Fatalf("expected %v, got %v", expected, codes)
	}

	empty := matching.ExtractRoleCodes(record("m2", "2", "Acme", "n/a"), vocab)
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil codes, got %#v", empty)
	}
}

func TestBuildIndex(t *testing.T) {
	t.Parallel()

	records := []*domain.MasterRecord{
		record("m1", " 525251.0 ", "Acme", "RD1"),
		record("m2", "525251", "Acme West", "SA1"),
		record("m3", "", "No Key", "RD1"),
		record("m4", "'0042", "Other", "PA1"),
	}
	records[0].Jurisdiction = "Texas"
	records[1].Jurisdiction = "tx"

	idx := matching.BuildIndex(records, allocation.DefaultRuleTable())

	if idx.Keys() != 2 {
		t.Fatalf("expected 2 keys, got %d", idx.Keys())
	}

	cands := idx.Candidates("525251")
	if len(cands) != 2 || cands[0].Record.ID != "m1" || cands[1].Record.ID != "m2" {
		t.Fatalf("candidates not in registry order: %+v", cands)
	}

	if j, ok := idx.Jurisdiction("525251"); !ok || j != "TX" {
		t.Errorf("expected TX from second record, got %q, %v", j, ok)
	}
	if _, ok := idx.Jurisdiction("0042"); ok {
		t.Error("expected no jurisdiction for 0042")
	}
	if len(idx.Candidates("0042")) != 1 {
		t.Error("expected apostrophe-prefixed key to be normalised")
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	noCodes := &matching.Candidate{Record: record("a", "1", ""), AccountName: "Acme Co", RoleCodes: []string{}}
	withCodes := &matching.Candidate{Record: record("b", "1", ""), AccountName: "Zeta", RoleCodes: []string{"RD1"}, PrimaryCode: "RD1"}
	acme := &matching.Candidate{Record: record("c", "1", ""), AccountName: "ACME  co", RoleCodes: []string{"SA1"}, PrimaryCode: "SA1"}
	acmeWest := &matching.Candidate{Record: record("d", "1", ""), AccountName: "Acme Co West", RoleCodes: []string{"SA2"}}
	naPrimary := &matching.Candidate{Record: record("e", "1", ""), AccountName: "Other", RoleCodes: []string{"SE1"}, PrimaryCode: "N/A"}
	primary := &matching.Candidate{Record: record("f", "1", ""), AccountName: "Else", RoleCodes: []string{"MA1"}, PrimaryCode: "MA1"}

	tests := []struct {
		name       string
		candidates []*matching.Candidate
		account    string
		expected   string
	}{
		{"single candidate", []*matching.Candidate{noCodes}, "whatever", "a"},
		{"narrows to candidates with codes", []*matching.Candidate{noCodes, withCodes}, "Acme Co", "b"},
		{"exact account name", []*matching.Candidate{acmeWest, acme}, "acme co", "c"},
		{"containment", []*matching.Candidate{naPrimary, acmeWest}, "Acme Co", "d"},
		{"reverse containment", []*matching.Candidate{naPrimary, acme}, "Acme Co Holdings", "c"},
		{"usable primary code", []*matching.Candidate{naPrimary, primary}, "Nobody", "f"},
		{"first in registry order", []*matching.Candidate{naPrimary, acmeWest}, "Nobody", "e"},
		{"empty row account skips name rules", []*matching.Candidate{naPrimary, primary}, "", "f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := matching.Resolve(tt.candidates, &domain.CarrierStatementRow{AccountName: tt.account})
			if !ok {
				t.Fatal("expected a resolution")
			}
			if got.Record.ID != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got.Record.ID)
			}
		})
	}

	if _, ok := matching.Resolve(nil, &domain.CarrierStatementRow{}); ok {
		t.Error("expected no resolution for empty candidate list")
	}
}

func TestMatcher_PrefersCandidateWithCodes(t *testing.T) {
	t.Parallel()

	registry := []*domain.MasterRecord{
		record("bare", "777", "Acme Co"),
		record("coded", "777", "Acme Co", "RD1", "RD2"),
	}
	idx := matching.BuildIndex(registry, allocation.DefaultRuleTable())
	m := matching.NewMatcher(idx, allocation.New(nil))

	res := m.Match([]*domain.CarrierStatementRow{
		row("777", "Acme Co", "100.00"),
		row("777", "Acme Co", "50.00"),
	})

	if len(res.Matched) != 2 || len(res.Unmatched) != 0 {
		t.Fatalf("expected 2 matched, got %d matched, %d unmatched", len(res.Matched), len(res.Unmatched))
	}
	for _, mr := range res.Matched {
		if mr.MasterRecordID != "coded" {
			t.Errorf("expected coded record, got %s", mr.MasterRecordID)
		}
	}

	first := res.Matched[0]
	if first.Split[domain.RoleRD1] != 2000 || first.Split[domain.RoleRD2] != 1000 || first.Split.Residual() != 7000 {
		t.Errorf("unexpected split %v", first.Split)
	}
}

func TestMatcher_EffectiveFields(t *testing.T) {
	t.Parallel()

	registry := []*domain.MasterRecord{
		{ID: "m1", BillingItem: "100", AccountName: "Acme", Provider: "Lumen", Notes: "vip", RoleSlots: [4]string{"RD1"}, ExpectedPercent: decimal.NewFromInt(20)},
		{ID: "m2", BillingItem: "100", AccountName: "Other", Jurisdiction: "ca"},
	}
	idx := matching.BuildIndex(registry, allocation.DefaultRuleTable())
	m := matching.NewMatcher(idx, allocation.New(nil))

	withProvider := row("100", "Acme", "10")
	withProvider.Provider = "Verizon"
	withProvider.Jurisdiction = "ny"

	bare := row("100", "", "10")
	bare.Jurisdiction = "New York"

	res := m.Match([]*domain.CarrierStatementRow{withProvider, bare})
	if len(res.Matched) != 2 {
		t.Fatalf("expected 2 matched rows, got %d", len(res.Matched))
	}

	if got := res.Matched[0]; got.Provider != "Verizon" || got.Jurisdiction != "NY" || got.AccountName != "Acme" {
		t.Errorf("row values should win: %+v", got)
	}
	if got := res.Matched[1]; got.Provider != "Lumen" || got.Jurisdiction != "CA" || got.AccountName != "Acme" {
		t.Errorf("registry values should fill gaps: %+v", got)
	}
	if got := res.Matched[1]; got.Notes != "vip" || !got.ExpectedPercent.Equal(decimal.NewFromInt(20)) || got.BillingItem != "100" {
		t.Errorf("unexpected resolution fields: %+v", got)
	}
}

func TestMatcher_UnmatchedReasons(t *testing.T) {
	t.Parallel()

	registry := []*domain.MasterRecord{record("m1", "1", "Acme", "RD1")}
	idx := matching.BuildIndex(registry, allocation.DefaultRuleTable())

	// An index entry with unreadable codes is only reachable through hand-built candidates.
	idx.Candidates("1")[0].RoleCodes = nil

	m := matching.NewMatcher(idx, allocation.New(nil))
	res := m.Match([]*domain.CarrierStatementRow{
		row("  ", "Acme", "1"),
		row("404", "Acme", "1"),
		row("1", "Acme", "1"),
	})

	expected := []domain.UnmatchedReason{
		domain.UnmatchedMissingBillingItem,
		domain.UnmatchedNoCandidates,
		domain.UnmatchedUnusableRoleCodes,
	}
	if len(res.Unmatched) != len(expected) {
		t.Fatalf("expected %d unmatched, got %d", len(expected), len(res.Unmatched))
	}
	for i, want := range expected {
		if res.Unmatched[i].Reason != want {
			t.Errorf("row %d: expected %s, got %s", i, want, res.Unmatched[i].Reason)
		}
	}
}

func TestMatcher_PartitionCompleteness(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	var registry []*domain.MasterRecord
	for i := 0; i < 50; i++ {
		registry = append(registry, record(fmt.Sprintf("m%d", i), fmt.Sprint(rng.Intn(30)), fmt.Sprintf("acct %d", rng.Intn(5)), "RD1", "SA2"))
	}
	m := matching.NewMatcher(matching.BuildIndex(registry, allocation.DefaultRuleTable()), allocation.New(nil))

	for run := 0; run < 20; run++ {
		n := rng.Intn(200)
		rows := make([]*domain.CarrierStatementRow, 0, n)
		for i := 0; i < n; i++ {
			key := fmt.Sprint(rng.Intn(45))
			if rng.Intn(10) == 0 {
				key = ""
			}
			rows = append(rows, row(key, "acct", fmt.Sprintf("%d.%02d", rng.Intn(1000)-500, rng.Intn(100))))
		}

		res := m.Match(rows)
		if res.Total() != len(rows) {
			t.Fatalf("expected %d rows, got %d", len(rows), res.Total())
		}

		seen := make(map[*domain.CarrierStatementRow]int, len(rows))
		for _, mr := range res.Matched {
			seen[mr.Row]++
			if mr.Split.Sum() != mr.Amount() {
				t.Fatalf("split for %s does not sum to amount", mr.Row.BillingItem)
			}
		}
		for _, u := range res.Unmatched {
			seen[u.Row]++
		}
		for _, r := range rows {
			if seen[r] != 1 {
				t.Fatalf("row %p appears %d times", r, seen[r])
			}
		}
	}
}
