package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the operator-tunable behavior of the transaction engine.
type Policy struct {
	// RemoveEmptyStacks deletes a stack that reaches quantity zero instead of
	// keeping it around.
	RemoveEmptyStacks bool `yaml:"remove_empty_stacks"`

	// AnnounceChat posts a notice for every completed transaction.
	AnnounceChat bool `yaml:"announce_chat"`

	// ResaleExemptSubTypes sell to merchants at full price instead of half.
	ResaleExemptSubTypes []string `yaml:"resale_exempt_sub_types"`

	// InboxCapacity bounds the authority's pending-intent queue.
	InboxCapacity int `yaml:"inbox_capacity"`
}

func Defaults() Policy {
	return Policy{
		RemoveEmptyStacks:    true,
		AnnounceChat:         true,
		ResaleExemptSubTypes: []string{"tradeGoods"},
		InboxCapacity:        256,
	}
}

func Load(path string) (Policy, error) {
	p := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("policy.yaml: %w", err)
	}
	if p.InboxCapacity <= 0 {
		p.InboxCapacity = Defaults().InboxCapacity
	}
	return p, nil
}

// Exempt returns the resale-exemption predicate for this policy.
func (p Policy) Exempt() func(subType string) bool {
	set := make(map[string]struct{}, len(p.ResaleExemptSubTypes))
	for _, s := range p.ResaleExemptSubTypes {
		set[s] = struct{}{}
	}
	return func(subType string) bool {
		_, ok := set[subType]
		return ok
	}
}
