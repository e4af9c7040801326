package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// GradeDomain declares which numeric domain a policy grades over.
type GradeDomain string

const (
	// DomainMarks grades raw marks (e.g. formative assessments out of 20).
	DomainMarks GradeDomain = "marks"
	// DomainPercentage grades the aggregate percentage 0-100.
	DomainPercentage GradeDomain = "percentage"
)

// Built-in policy codes. Bands registered under these codes never change
// once a report card references them.
const (
	PolicyCBSETraditional = "CBSE_TRADITIONAL"
	PolicyStateFA         = "STATE_FA"
	PolicyStateSA         = "STATE_SA"
)

// GradeBand maps a numeric range onto a letter grade and remark. Bands in
// a policy are ordered by Min and partition the domain: a value belongs to
// the band with the greatest Min not exceeding it.
type GradeBand struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Grade  string  `json:"grade"`
	Remark string  `json:"remark"`
}

// GradeBandList is the JSONB persistence form of a policy's bands.
type GradeBandList []GradeBand

// Value marshals bands for storage.
func (l GradeBandList) Value() (driver.Value, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal grade bands: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB bands column.
func (l *GradeBandList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for GradeBandList", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("unmarshal grade bands: %w", err)
	}
	return nil
}

// GradingPolicy is a named, ordered set of grade bands over a domain.
type GradingPolicy struct {
	ID        string        `db:"id" json:"id"`
	Code      string        `db:"code" json:"code"`
	BoardType string        `db:"board_type" json:"board_type"`
	Domain    GradeDomain   `db:"domain" json:"domain"`
	DomainMax float64       `db:"domain_max" json:"domain_max"`
	Bands     GradeBandList `db:"bands" json:"bands"`
	IsActive  bool          `db:"is_active" json:"is_active"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// Validate checks that bands are present, sorted and non-overlapping.
func (p GradingPolicy) Validate() error {
	if len(p.Bands) == 0 {
		return fmt.Errorf("policy %s has no grade bands", p.Code)
	}
	bands := p.sorted()
	for i, b := range bands {
		if b.Min > b.Max {
			return fmt.Errorf("policy %s band %q has min above max", p.Code, b.Grade)
		}
		if i > 0 && b.Min <= bands[i-1].Max {
			return fmt.Errorf("policy %s bands overlap at %q", p.Code, b.Grade)
		}
	}
	if bands[0].Min != 0 {
		return fmt.Errorf("policy %s does not cover the bottom of its domain", p.Code)
	}
	return nil
}

// Grade resolves the band for a value within the policy domain. Values
// outside [lowest min, highest max] are out of range; the caller decides
// any fallback, this function never defaults silently.
func (p GradingPolicy) Grade(value float64) (GradeBand, error) {
	bands := p.sorted()
	if len(bands) == 0 {
		return GradeBand{}, fmt.Errorf("policy %s has no grade bands", p.Code)
	}
	top := bands[len(bands)-1]
	if value < bands[0].Min || value > top.Max {
		return GradeBand{}, fmt.Errorf("value %.2f outside policy %s range [%.2f, %.2f]", value, p.Code, bands[0].Min, top.Max)
	}
	// The band with the greatest Min not exceeding the value wins, so
	// fractional values between integer band edges still resolve.
	for i := len(bands) - 1; i >= 0; i-- {
		if value >= bands[i].Min {
			return bands[i], nil
		}
	}
	return GradeBand{}, fmt.Errorf("value %.2f matched no band of policy %s", value, p.Code)
}

// LowestBand returns the bottom band, used by callers that opt into an
// explicit out-of-range fallback.
func (p GradingPolicy) LowestBand() GradeBand {
	bands := p.sorted()
	if len(bands) == 0 {
		return GradeBand{}
	}
	return bands[0]
}

func (p GradingPolicy) sorted() []GradeBand {
	bands := make([]GradeBand, len(p.Bands))
	copy(bands, p.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min })
	return bands
}
