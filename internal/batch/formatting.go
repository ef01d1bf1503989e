package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cardscan/internal/cardnum"
	"gopkg.in/yaml.v3"
)

// FormatSummary renders a burst summary as text, json, yaml or csv.
func FormatSummary(s Summary, format string) (string, error) {
	switch format {
	case "json":
		bts, err := json.MarshalIndent(s, "", "  ")
		return string(bts) + "\n", err
	case "yaml":
		bts, err := yaml.Marshal(s)
		return string(bts), err
	case "csv":
		return formatCSV(s)
	case "", "text":
		return formatText(s), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// formatCSV writes one row per distinct reading.
func formatCSV(s Summary) (string, error) {
	var output strings.Builder
	w := csv.NewWriter(&output)
	if err := w.Write([]string{"digits", "count", "winner", "valid", "issuer"}); err != nil {
		return "", err
	}
	for _, e := range s.Tally {
		row := []string{
			e.Digits,
			strconv.Itoa(e.Count),
			strconv.FormatBool(s.Present && e.Digits == s.Digits),
			strconv.FormatBool(cardnum.IsValid(e.Digits)),
			cardnum.IssuerOf(e.Digits).String(),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return output.String(), w.Error()
}

func formatText(s Summary) string {
	var b strings.Builder
	if s.Present {
		fmt.Fprintf(&b, "Card number: %s (%s)\n", cardnum.Format(s.Digits), cardnum.IssuerOf(s.Digits))
		fmt.Fprintf(&b, "Votes: %d of %d frames\n", s.Votes, s.Frames)
	} else {
		b.WriteString("No card number read\n")
	}
	fmt.Fprintf(&b, "Frames: %d read, %d failed, %d skipped\n", s.Read, s.Failed, s.Skipped)
	if len(s.Tally) > 0 {
		b.WriteString("Tally:\n")
		for _, e := range s.Tally {
			fmt.Fprintf(&b, "  %-19s %d\n", e.Digits, e.Count)
		}
	}
	return b.String()
}
