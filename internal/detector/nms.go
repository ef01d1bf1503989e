package detector

import (
	"sort"

	"github.com/MeKo-Tech/cardscan/internal/mempool"
	"github.com/chewxy/math32"
)

// candidate is a prior that passed the probability threshold for one class.
type candidate struct {
	index int // prior index, used as the tie-break
	prob  float32
	rect  Rect
}

// IoU computes intersection over union of two corner-form rectangles.
func IoU(a, b Rect) float32 {
	iw := math32.Min(a.Right, b.Right) - math32.Max(a.Left, b.Left)
	ih := math32.Min(a.Bottom, b.Bottom) - math32.Max(a.Top, b.Top)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// hardNMS keeps the highest scoring candidate, drops every remaining one that
// overlaps it by more than iouThreshold and repeats until topK are kept or
// the candidates run out. Equal probabilities keep prior order.
func hardNMS(cands []candidate, iouThreshold float32, topK int) []candidate {
	if len(cands) == 0 || topK <= 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].prob > cands[j].prob
	})

	suppressed := mempool.GetBool(len(cands))
	defer mempool.PutBool(suppressed)

	keep := make([]candidate, 0, min(topK, len(cands)))
	for i := range cands {
		if suppressed[i] {
			continue
		}
		keep = append(keep, cands[i])
		if len(keep) == topK {
			break
		}
		for j := i + 1; j < len(cands); j++ {
			if !suppressed[j] && IoU(cands[i].rect, cands[j].rect) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}
