// Package tier maps a point total onto named loyalty tiers.
package tier

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// None is reported when the total is below the lowest threshold.
const None = "none"

var ErrInvalidThresholds = errors.New("invalid tier thresholds")

type Tier struct {
	Name      string `yaml:"name" json:"name"`
	Threshold int64  `yaml:"threshold" json:"threshold"`
}

// Default mirrors the storefront's launch tiers.
var Default = []Tier{
	{Name: "Friend", Threshold: 25},
	{Name: "Bestie", Threshold: 50},
	{Name: "Sisters", Threshold: 100},
}

type Result struct {
	Tier            string  `json:"tier"`
	NextTier        string  `json:"next_tier,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	PointsToNext    int64   `json:"points_to_next"`
}

// Classifier holds a validated, ascending threshold list.
type Classifier struct {
	tiers []Tier
}

// New validates tiers and returns a Classifier. Input order does not matter.
func New(tiers []Tier) (*Classifier, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidThresholds)
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold < sorted[j].Threshold })

	seen := make(map[string]bool, len(sorted))
	for i, t := range sorted {
		name := strings.TrimSpace(t.Name)
		if name == "" || strings.EqualFold(name, None) {
			return nil, fmt.Errorf("%w: bad tier name %q", ErrInvalidThresholds, t.Name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate tier %q", ErrInvalidThresholds, name)
		}
		seen[name] = true
		if t.Threshold <= 0 {
			return nil, fmt.Errorf("%w: tier %q threshold must be > 0", ErrInvalidThresholds, name)
		}
		if i > 0 && t.Threshold == sorted[i-1].Threshold {
			return nil, fmt.Errorf("%w: tiers %q and %q share threshold %d", ErrInvalidThresholds, sorted[i-1].Name, name, t.Threshold)
		}
		sorted[i].Name = name
	}
	return &Classifier{tiers: sorted}, nil
}

// Tiers returns the thresholds in ascending order.
func (c *Classifier) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

func (c *Classifier) Classify(total int64) Result {
	idx := -1
	for i, t := range c.tiers {
		if total >= t.Threshold {
			idx = i
		}
	}

	res := Result{Tier: None}
	var base int64
	if idx >= 0 {
		res.Tier = c.tiers[idx].Name
		base = c.tiers[idx].Threshold
	}

	if idx == len(c.tiers)-1 {
		res.ProgressPercent = 100
		return res
	}

	next := c.tiers[idx+1]
	res.NextTier = next.Name
	res.PointsToNext = next.Threshold - total
	if res.PointsToNext < 0 {
		res.PointsToNext = 0
	}

	pct := float64(total-base) / float64(next.Threshold-base) * 100
	res.ProgressPercent = clamp(pct, 0, 100)
	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type file struct {
	Tiers []Tier `yaml:"tiers"`
}

// Load reads a YAML file of the form:
//
//	tiers:
//	  - name: Friend
//	    threshold: 25
//
// An empty path returns the Default tiers.
func Load(path string) (*Classifier, error) {
	if strings.TrimSpace(path) == "" {
		return New(Default)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tiers file: %w", err)
	}
	return New(f.Tiers)
}
