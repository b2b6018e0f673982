package allocation

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iho/commissions/internal/domain"
)

// BasisPointsScale is 100% expressed in basis points.
const BasisPointsScale = 10000

var haCodeRegex = regexp.MustCompile(`^HA\d+$`)

// Rate credits a share of the amount to Role.
type Rate struct {
	Role        domain.Role `yaml:"role"`
	BasisPoints int64       `yaml:"basis_points"`
}

// RuleTable is an immutable set of code rates. Build one with NewRuleTable, DefaultRuleTable
// or LoadRuleTable; the zero value allocates everything to the residual role.
type RuleTable struct {
	rates      map[string]Rate
	haDiscard  map[string]struct{}
	haResidual map[string]int64
}

// RuleTableSpec is the plain, serialisable form of a RuleTable.
type RuleTableSpec struct {
	// Rates maps a role code to its role's default rate in basis points.
	Rates map[string]int64 `yaml:"rates"`
	// Aliases map a code to a base role at a non-default rate.
	Aliases map[string]Rate `yaml:"aliases"`
	// HADiscard lists HA codes dropped without credit.
	HADiscard []string `yaml:"ha_discard"`
	// HAResidual lists HA codes whose share is credited to the residual role.
	HAResidual map[string]int64 `yaml:"ha_residual"`
}

// DefaultRuleTableSpec returns the built-in rates.
func DefaultRuleTableSpec() RuleTableSpec {
	return RuleTableSpec{
		Rates: map[string]int64{
			"RD1": 2000, "RD2": 1000, "RD3": 500,
			"SA1": 3000, "SA2": 2500, "SA3": 1500,
			"SE1": 1000, "SE2": 500,
			"MA1": 1000, "MA2": 500,
			"PA1": 4000, "PA2": 2000,
			"RF1": 1000, "RF2": 500,
			"CS1": 500, "CS2": 250,
		},
		Aliases: map[string]Rate{
			"RD1H": {Role: domain.RoleRD1, BasisPoints: 1000},
			"SA1X": {Role: domain.RoleSA1, BasisPoints: 5000},
			"PA1S": {Role: domain.RolePA1, BasisPoints: 2500},
			"RF1L": {Role: domain.RoleRF1, BasisPoints: 1500},
		},
		HADiscard:  []string{"HA1", "HA2", "HA3", "HA4"},
		HAResidual: map[string]int64{"HA5": 1000, "HA6": 500},
	}
}

// DefaultRuleTable returns the built-in table.
func DefaultRuleTable() *RuleTable {
	t, err := NewRuleTable(DefaultRuleTableSpec())
	if err != nil {
		panic(fmt.Sprintf("allocation: invalid default rule table: %v", err))
	}
	return t
}

// LoadRuleTable reads a YAML rule table from path.
func LoadRuleTable(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	return ParseRuleTable(data)
}

// ParseRuleTable decodes and validates a YAML rule table.
func ParseRuleTable(data []byte) (*RuleTable, error) {
	var spec RuleTableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRuleTable, err)
	}
	return NewRuleTable(spec)
}

// NewRuleTable validates spec and freezes it into a RuleTable.
func NewRuleTable(spec RuleTableSpec) (*RuleTable, error) {
	t := &RuleTable{
		rates:      make(map[string]Rate, len(spec.Rates)+len(spec.Aliases)),
		haDiscard:  make(map[string]struct{}, len(spec.HADiscard)),
		haResidual: make(map[string]int64, len(spec.HAResidual)),
	}

	for code, bp := range spec.Rates {
		c := NormalizeCode(code)
		role := domain.Role(c)
		if !domain.IsKnownRole(role) || role == domain.ResidualRole {
			return nil, fmt.Errorf("%w: rate code %q is not a named role", domain.ErrInvalidRuleTable, code)
		}
		if err := validateBasisPoints(code, bp); err != nil {
			return nil, err
		}
		t.rates[c] = Rate{Role: role, BasisPoints: bp}
	}

	for code, rate := range spec.Aliases {
		c := NormalizeCode(code)
		if _, exists := t.rates[c]; exists {
			return nil, fmt.Errorf("%w: alias %q shadows a rate code", domain.ErrInvalidRuleTable, code)
		}
		if !domain.IsKnownRole(rate.Role) || rate.Role == domain.ResidualRole {
			return nil, fmt.Errorf("%w: alias %q targets unknown role %q", domain.ErrInvalidRuleTable, code, rate.Role)
		}
		if err := validateBasisPoints(code, rate.BasisPoints); err != nil {
			return nil, err
		}
		t.rates[c] = rate
	}

	for _, code := range spec.HADiscard {
		c := NormalizeCode(code)
		if !haCodeRegex.MatchString(c) {
			return nil, fmt.Errorf("%w: %q is not an HA code", domain.ErrInvalidRuleTable, code)
		}
		t.haDiscard[c] = struct{}{}
	}

	for code, bp := range spec.HAResidual {
		c := NormalizeCode(code)
		if !haCodeRegex.MatchString(c) {
			return nil, fmt.Errorf("%w: %q is not an HA code", domain.ErrInvalidRuleTable, code)
		}
		if _, dup := t.haDiscard[c]; dup {
			return nil, fmt.Errorf("%w: %q is both discarded and residual", domain.ErrInvalidRuleTable, code)
		}
		if err := validateBasisPoints(code, bp); err != nil {
			return nil, err
		}
		t.haResidual[c] = bp
	}

	for c := range t.rates {
		if isResidualCode(c) || haCodeRegex.MatchString(c) {
			return nil, fmt.Errorf("%w: %q collides with a reserved code pattern", domain.ErrInvalidRuleTable, c)
		}
	}

	return t, nil
}

func validateBasisPoints(code string, bp int64) error {
	if bp < 0 || bp > BasisPointsScale {
		return fmt.Errorf("%w: rate for %q must be within 0..%d basis points", domain.ErrInvalidRuleTable, code, BasisPointsScale)
	}
	return nil
}

// NormalizeCode trims and upper-cases a role code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isResidualCode(c string) bool {
	return strings.HasPrefix(c, string(domain.ResidualRole))
}

// Rate returns the rate for a table or alias code.
func (t *RuleTable) Rate(code string) (Rate, bool) {
	r, ok := t.rates[NormalizeCode(code)]
	return r, ok
}

// IsKnownCode reports whether code belongs to the role-code vocabulary: a table or alias code,
// any HA code, or any code prefixed with the residual role's name.
func (t *RuleTable) IsKnownCode(code string) bool {
	c := NormalizeCode(code)
	if c == "" {
		return false
	}
	if _, ok := t.rates[c]; ok {
		return true
	}
	return haCodeRegex.MatchString(c) || isResidualCode(c)
}

// Spec returns a copy of the table in serialisable form.
func (t *RuleTable) Spec() RuleTableSpec {
	spec := RuleTableSpec{
		Rates:      make(map[string]int64),
		Aliases:    make(map[string]Rate),
		HAResidual: make(map[string]int64, len(t.haResidual)),
	}
	for c, r := range t.rates {
		if string(r.Role) == c {
			spec.Rates[c] = r.BasisPoints
		} else {
			spec.Aliases[c] = r
		}
	}
	for c := range t.haDiscard {
		spec.HADiscard = append(spec.HADiscard, c)
	}
	sort.Strings(spec.HADiscard)
	for c, bp := range t.haResidual {
		spec.HAResidual[c] = bp
	}
	return spec
}
