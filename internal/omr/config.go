package omr

import (
	"fmt"
	"strings"
)

// Config holds the recognition constants. The defaults are part of the
// observable output contract; change them only after re-validating against
// real scans.
type Config struct {
	// ConfidenceFloor is the minimum detector confidence for admission.
	ConfidenceFloor float64

	// SortTolerance is the vertical distance under which two marks are
	// ordered by x instead of y before clustering.
	SortTolerance float64

	// RowTolerance is the vertical distance (exclusive) within which a mark
	// joins an existing row.
	RowTolerance float64

	// Letters is the answer alphabet. A row of n marks selects Letters[n-1],
	// saturating at the last letter.
	Letters string

	// IDPrefix prefixes the 1-based item counter.
	IDPrefix string
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor: 0.85,
		SortTolerance:   20,
		RowTolerance:    15,
		Letters:         "ABCDEF",
		IDPrefix:        "P",
	}
}

func (c Config) Validate() error {
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence floor %v outside [0,1]", c.ConfidenceFloor)
	}
	if c.SortTolerance < 0 {
		return fmt.Errorf("sort tolerance must be non-negative, got %v", c.SortTolerance)
	}
	if c.RowTolerance <= 0 {
		return fmt.Errorf("row tolerance must be positive, got %v", c.RowTolerance)
	}
	if strings.TrimSpace(c.Letters) == "" {
		return fmt.Errorf("letter alphabet is empty")
	}
	return nil
}

func (c Config) letters() []string {
	out := make([]string, 0, len(c.Letters))
	for _, r := range c.Letters {
		out = append(out, string(r))
	}
	return out
}
