// Package assembler turns the detections of one frame into a digit string.
//
// Two layouts are recognized. A card printing its number as four rows of four
// digits is read row by row ("quick read"). Anything else is treated as one
// line: a median filter drops boxes off the line and the rest are read left
// to right. The result is then checked by a Validator.
package assembler

import (
	"github.com/MeKo-Tech/cardscan/internal/cardnum"
	"github.com/MeKo-Tech/cardscan/internal/detector"
)

// Validator decides whether an assembled string is a usable card number.
type Validator interface {
	IsValid(digits string) bool
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(digits string) bool

// IsValid calls f.
func (f ValidatorFunc) IsValid(digits string) bool { return f(digits) }

// CardNumberValidator accepts Luhn-valid numbers of 12 to 19 digits.
var CardNumberValidator Validator = ValidatorFunc(cardnum.IsValid)

// Result is the read of one frame.
type Result struct {
	Digits    string `json:"digits" yaml:"digits"`
	Present   bool   `json:"present" yaml:"present"`
	Valid     bool   `json:"valid" yaml:"valid"`
	QuickRead bool   `json:"quick_read" yaml:"quick_read"`
	// ObjectBoxes holds every detection of a general-layout frame in pixel
	// space, sorted by left edge. Empty for quick reads.
	ObjectBoxes []detector.DetectedOcrBox `json:"object_boxes,omitempty" yaml:"object_boxes,omitempty"`
}

// Value returns the digits and whether a result is present.
func (r Result) Value() (string, bool) {
	return r.Digits, r.Present
}

// Assembler groups detections and applies the validation policy.
type Assembler struct {
	cfg       Config
	validator Validator
}

// New returns an assembler. A nil validator means CardNumberValidator.
func New(cfg Config, validator Validator) *Assembler {
	if validator == nil {
		validator = CardNumberValidator
	}
	return &Assembler{cfg: cfg, validator: validator}
}

// Config returns the heuristics in use.
func (a *Assembler) Config() Config { return a.cfg }

// Assemble classifies the layout, reads the digits and validates them.
// A valid read is present. An invalid read is absent when strict, otherwise
// present with Valid unset so callers can still show it.
func (a *Assembler) Assemble(boxes []detector.DetectionBox, strict bool) Result {
	var res Result
	if a.cfg.IsQuickRead(boxes) {
		res.QuickRead = true
		res.Digits = AssembleQuickRead(boxes)
	} else {
		res.Digits, res.ObjectBoxes = a.cfg.AssembleMedian(boxes)
	}

	res.Valid = a.validator.IsValid(res.Digits)
	res.Present = res.Valid || !strict
	if !res.Present {
		res.Digits = ""
	}
	return res
}
