package assembler

import "fmt"

// Layout of a quick-read card: four rows of four digits.
const (
	QuickReadRows    = 4
	QuickReadPerRow  = 4
	QuickReadDigits  = QuickReadRows * QuickReadPerRow
	DefaultTolerance = 1.2
	DefaultSpread    = 2.0
)

// Config tunes the grouping heuristics.
type Config struct {
	// Tolerance bounds box height and width in multiples of the median.
	Tolerance float32
	// QuickReadSpread is the aggregate vertical deviation, in median heights,
	// above which 16 boxes are read as four rows.
	QuickReadSpread float32
}

// DefaultConfig returns the tuned heuristics.
func DefaultConfig() Config {
	return Config{Tolerance: DefaultTolerance, QuickReadSpread: DefaultSpread}
}

// Validate rejects non-positive multipliers.
func (c Config) Validate() error {
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %.2f", c.Tolerance)
	}
	if c.QuickReadSpread <= 0 {
		return fmt.Errorf("quick read spread must be positive, got %.2f", c.QuickReadSpread)
	}
	return nil
}
