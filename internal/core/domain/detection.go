package domain

import "image"

// BoundingBox is a detector box in source-image pixel coordinates, (X1,Y1) inclusive,
// (X2,Y2) exclusive.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is one pollen grain reported by the external model.
type Detection struct {
	ClassIndex int         `json:"class_index"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
}

// Tally holds the per-class counters. Total == Viable + NonViable.
type Tally struct {
	Total     int `json:"total"`
	Viable    int `json:"viable"`
	NonViable int `json:"non_viable"`
}

// ViabilityRate returns viable/total*100, or 0 when the class has no detections.
func (t Tally) ViabilityRate() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.Viable) / float64(t.Total) * 100
}

// ClassCounts maps every known class to its tally.
type ClassCounts map[ClassName]Tally

// NewClassCounts returns counts with every class present and zeroed.
func NewClassCounts() ClassCounts {
	out := make(ClassCounts, len(variants))
	for _, v := range variants {
		out[v.Name] = Tally{}
	}
	return out
}

// Record counts one grain of the given class.
func (c ClassCounts) Record(name ClassName, viable bool) {
	t := c[name]
	t.Total++
	if viable {
		t.Viable++
	} else {
		t.NonViable++
	}
	c[name] = t
}

// Normalized returns a copy that contains every known class.
func (c ClassCounts) Normalized() ClassCounts {
	out := NewClassCounts()
	for name, t := range c {
		if _, ok := VariantByName(name); ok {
			out[name] = t
		}
	}
	return out
}

func (c ClassCounts) Clone() ClassCounts {
	out := make(ClassCounts, len(c))
	for name, t := range c {
		out[name] = t
	}
	return out
}

// Add returns the per-class sum of c and other.
func (c ClassCounts) Add(other ClassCounts) ClassCounts {
	out := c.Normalized()
	for name, t := range other.Normalized() {
		sum := out[name]
		sum.Total += t.Total
		sum.Viable += t.Viable
		sum.NonViable += t.NonViable
		out[name] = sum
	}
	return out
}

func (c ClassCounts) Totals() Tally {
	var sum Tally
	for _, t := range c {
		sum.Total += t.Total
		sum.Viable += t.Viable
		sum.NonViable += t.NonViable
	}
	return sum
}
