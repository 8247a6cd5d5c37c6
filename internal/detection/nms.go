package detection

import "sort"

// NonMaxSuppress removes boxes that overlap an already kept box.
//
// Parameters:
//   - boxes: Raw candidates. The slice is not modified.
//   - overlapThresh: A remaining box is discarded when the intersection with
//     the kept box, divided by the remaining box's own area, exceeds this value.
//
// Returns the kept boxes in pick order. An empty input gives an empty output.
//
// # Algorithm
//
//  1. Sort candidate indices by Y2 ascending (stable, so equal Y2 keep input order)
//  2. Pop the last index (largest Y2) and keep it
//  3. For every index still queued, compute the inclusive intersection
//     w = max(0, min(x2)-max(x1)+1), h = max(0, min(y2)-max(y1)+1)
//     and its ratio to that box's inclusive area
//  4. Drop the queued indices whose ratio exceeds overlapThresh; repeat
//
// The ratio is deliberately asymmetric (not IoU): a small box mostly covered
// by a kept box is removed even when the kept box is much larger.
func NonMaxSuppress(boxes []DetectionBox, overlapThresh float64) []DetectionBox {
	if len(boxes) == 0 {
		return []DetectionBox{}
	}

	idxs := make([]int, len(boxes))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return boxes[idxs[a]].Y2 < boxes[idxs[b]].Y2
	})

	picked := make([]DetectionBox, 0, len(boxes))
	for len(idxs) > 0 {
		last := len(idxs) - 1
		keep := boxes[idxs[last]]
		picked = append(picked, keep)

		remaining := idxs[:0]
		for _, j := range idxs[:last] {
			if overlapRatio(keep, boxes[j]) <= overlapThresh {
				remaining = append(remaining, j)
			}
		}
		idxs = remaining
	}
	return picked
}

// overlapRatio returns the inclusive intersection of kept and other divided
// by the inclusive area of other.
func overlapRatio(kept, other DetectionBox) float64 {
	w := min(kept.X2, other.X2) - max(kept.X1, other.X1) + 1
	h := min(kept.Y2, other.Y2) - max(kept.Y1, other.Y1) + 1
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	area := other.area()
	if area <= 0 {
		return 0
	}
	return float64(w*h) / float64(area)
}
