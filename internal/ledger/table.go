package ledger

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Denomination is one named coin type with a fixed ratio to the base unit.
// Rate is the value of a single coin expressed in base units (gp-equivalents).
type Denomination struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Rate string `yaml:"rate"`

	rate decimal.Decimal
}

// Table is an ordered denomination set, coarsest first. Exactly one
// denomination carries rate 1 (the canonical base unit).
type Table struct {
	denoms []Denomination
	byID   map[string]int
}

type tableFile struct {
	Denominations []Denomination `yaml:"denominations"`
}

func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("denominations.yaml: %w", err)
	}
	return NewTable(f.Denominations)
}

func NewTable(denoms []Denomination) (*Table, error) {
	if len(denoms) == 0 {
		return nil, fmt.Errorf("denomination table is empty")
	}
	t := &Table{byID: make(map[string]int, len(denoms))}
	baseCount := 0
	for _, d := range denoms {
		rate, err := decimal.NewFromString(d.Rate)
		if err != nil {
			return nil, fmt.Errorf("denomination %q: bad rate %q: %w", d.ID, d.Rate, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("denomination %q: rate must be positive", d.ID)
		}
		if d.ID == "" {
			return nil, fmt.Errorf("denomination with rate %s: missing id", d.Rate)
		}
		if _, dup := t.byID[d.ID]; dup {
			return nil, fmt.Errorf("denomination %q: duplicate id", d.ID)
		}
		if rate.Equal(decimal.NewFromInt(1)) {
			baseCount++
		}
		d.rate = rate
		t.byID[d.ID] = len(t.denoms)
		t.denoms = append(t.denoms, d)
	}
	if baseCount != 1 {
		return nil, fmt.Errorf("denomination table needs exactly one base unit with rate 1, found %d", baseCount)
	}
	// Coarsest first, regardless of file order.
	sort.SliceStable(t.denoms, func(i, j int) bool {
		return t.denoms[i].rate.GreaterThan(t.denoms[j].rate)
	})
	for i, d := range t.denoms {
		t.byID[d.ID] = i
	}
	return t, nil
}

// Denoms returns the table coarsest first.
func (t *Table) Denoms() []Denomination { return t.denoms }

func (t *Table) Has(id string) bool {
	_, ok := t.byID[id]
	return ok
}

func (t *Table) Rate(id string) (decimal.Decimal, bool) {
	i, ok := t.byID[id]
	if !ok {
		return decimal.Decimal{}, false
	}
	return t.denoms[i].rate, true
}

func (t *Table) Name(id string) string {
	i, ok := t.byID[id]
	if !ok {
		return id
	}
	return t.denoms[i].Name
}
