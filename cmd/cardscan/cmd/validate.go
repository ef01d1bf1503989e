package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/MeKo-Tech/cardscan/internal/cardnum"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// numberCheck is the validation outcome of one card number.
type numberCheck struct {
	Input     string `json:"input" yaml:"input"`
	Digits    string `json:"digits" yaml:"digits"`
	Length    int    `json:"length" yaml:"length"`
	Luhn      bool   `json:"luhn" yaml:"luhn"`
	Valid     bool   `json:"valid" yaml:"valid"`
	Issuer    string `json:"issuer" yaml:"issuer"`
	Formatted string `json:"formatted" yaml:"formatted"`
	Masked    string `json:"masked" yaml:"masked"`
}

func checkNumber(input string) numberCheck {
	digits := cardnum.Normalize(input)
	c := numberCheck{
		Input:  input,
		Digits: digits,
		Length: len(digits),
		Luhn:   cardnum.Luhn(digits),
		Valid:  cardnum.IsValid(digits),
		Issuer: cardnum.IssuerOf(digits).String(),
	}
	if cardnum.IsDigits(digits) {
		c.Formatted = cardnum.Format(digits)
		c.Masked = cardnum.Mask(digits)
	}
	return c
}

var validateCmd = &cobra.Command{
	Use:   "validate <number> [number...]",
	Short: "Check card numbers with the Luhn checksum and issuer ranges",
	Long: `Checks each argument the way frame readings are checked in strict mode:
spaces and dashes are ignored, the number must be 12 to 19 digits long and
pass the Luhn checksum. The issuer is detected from the leading digits.

The command fails when any number is invalid.

Examples:
  cardscan validate 4111111111111111
  cardscan validate "5555 5555 5555 4444" 378282246310005 --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	checks := make([]numberCheck, len(args))
	invalid := 0
	for i, arg := range args {
		checks[i] = checkNumber(arg)
		if !checks[i].Valid {
			invalid++
		}
	}

	if err := writeChecks(cmd.OutOrStdout(), checks, format); err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d numbers are invalid", invalid, len(checks))
	}
	return nil
}

func writeChecks(w io.Writer, checks []numberCheck, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(checks)
	case "yaml":
		return yaml.NewEncoder(w).Encode(checks)
	case "", "text":
		for _, c := range checks {
			status := "valid"
			switch {
			case c.Valid:
			case !cardnum.IsDigits(c.Digits):
				status = "invalid: not a digit string"
			case !c.Luhn:
				status = "invalid: checksum mismatch"
			default:
				status = fmt.Sprintf("invalid: length %d outside %d-%d", c.Length, cardnum.MinLength, cardnum.MaxLength)
			}
			_, _ = fmt.Fprintf(w, "%s: %s (%s) %s\n", c.Input, c.Formatted, c.Issuer, status)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
