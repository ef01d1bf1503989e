package assembler

import (
	"slices"
	"strings"

	"github.com/MeKo-Tech/cardscan/internal/detector"
)

// AssembleQuickRead reads 16 boxes as four rows of four: rows by vertical
// center, top to bottom, digits within a row left to right. Any other box
// count returns "".
func AssembleQuickRead(boxes []detector.DetectionBox) string {
	if len(boxes) != QuickReadDigits {
		return ""
	}

	sorted := slices.Clone(boxes)
	slices.SortStableFunc(sorted, func(a, b detector.DetectionBox) int {
		return compareFloat32(a.Rect.CenterY(), b.Rect.CenterY())
	})

	var sb strings.Builder
	sb.Grow(QuickReadDigits)
	for row := range QuickReadRows {
		group := sorted[row*QuickReadPerRow : (row+1)*QuickReadPerRow]
		slices.SortStableFunc(group, byLeft)
		for _, b := range group {
			sb.WriteByte(digitChar(b.Label))
		}
	}
	return sb.String()
}

func byLeft(a, b detector.DetectionBox) int {
	return compareFloat32(a.Rect.Left, b.Rect.Left)
}

func compareFloat32(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func digitChar(label int) byte {
	return byte('0' + label%10)
}
