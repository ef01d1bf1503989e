package detector

import (
	"fmt"

	"github.com/MeKo-Tech/cardscan/internal/mempool"
)

// Outputs holds the two raw heads of the network for one frame, each as
// per-layer channel-first blocks.
type Outputs struct {
	Locations []float32
	Classes   []float32
}

// PostProcess turns raw network outputs into the frame's detections:
// rearrange both heads, decode the boxes, softmax the scores and extract.
func PostProcess(out Outputs, priors []PriorBox, size Size, cfg Config) ([]DetectionBox, error) {
	maps := cfg.FeatureMaps
	ppa := cfg.PriorsPerActivation
	classes := cfg.Extract.NumClasses

	if n := RearrangedLen(maps, ppa, 1); n != len(priors) {
		return nil, fmt.Errorf("%w: %d priors for %d anchors", ErrShapeMismatch, len(priors), n)
	}

	boxes := mempool.GetFloat32(RearrangedLen(maps, ppa, NumCoordinates))
	defer mempool.PutFloat32(boxes)
	if err := RearrangeInto(boxes, out.Locations, maps, ppa, NumCoordinates); err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}
	if err := DecodeBoxes(boxes, priors, cfg.CenterVariance, cfg.SizeVariance); err != nil {
		return nil, err
	}

	scores := mempool.GetFloat32(RearrangedLen(maps, ppa, classes))
	defer mempool.PutFloat32(scores)
	if err := RearrangeInto(scores, out.Classes, maps, ppa, classes); err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}
	Softmax2D(scores, classes)

	return Extract(scores, boxes, size, cfg.Extract), nil
}
