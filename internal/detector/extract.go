package detector

// RemapLabel maps a raw class index to the digit it stands for. The model has
// two classes for zero; index 10 collapses onto 0.
func RemapLabel(class int) int {
	if class == ZeroAliasClass {
		return 0
	}
	return class
}

// Extract selects the confident, non-overlapping boxes of every digit class.
//
// scores is the softmaxed (priors x NumClasses) matrix and boxes the decoded
// (priors x 4) corner-form matrix. For each class other than the background,
// priors scoring strictly above ProbThreshold are ranked by probability (ties
// by prior index) and reduced with greedy hard NMS to at most TopK boxes.
// Results are grouped by class in ascending order, best first within a class.
func Extract(scores, boxes []float32, size Size, opts ExtractOptions) []DetectionBox {
	cols := opts.NumClasses
	if cols <= 0 {
		return nil
	}
	numPriors := min(len(scores)/cols, len(boxes)/NumCoordinates)

	var out []DetectionBox
	var cands []candidate
	for class := 1; class < cols; class++ {
		cands = cands[:0]
		for i := range numPriors {
			p := scores[i*cols+class]
			if p > opts.ProbThreshold {
				cands = append(cands, candidate{index: i, prob: p, rect: rectAt(boxes, i)})
			}
		}
		for _, c := range hardNMS(cands, opts.IoUThreshold, opts.TopK) {
			out = append(out, DetectionBox{
				Rect:       c.rect,
				Label:      RemapLabel(class),
				Confidence: c.prob,
				ImageSize:  size,
			})
		}
	}
	return out
}
