package qvar

import "fmt"

/*
Dataset maps class labels to feature vectors. Labels keep the order they were
first added in; that order fixes the class index of each label.
*/
type Dataset struct {
	labels []string
	points map[string][][]float64
}

func NewDataset() *Dataset {
	return &Dataset{points: make(map[string][][]float64)}
}

// Add appends points under label, registering the label on first use.
func (d *Dataset) Add(label string, points ...[]float64) *Dataset {
	if _, ok := d.points[label]; !ok {
		d.labels = append(d.labels, label)
		d.points[label] = make([][]float64, 0, len(points))
	}
	for _, p := range points {
		d.points[label] = append(d.points[label], append([]float64(nil), p...))
	}
	return d
}

func (d *Dataset) Labels() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.labels...)
}

func (d *Dataset) Points(label string) [][]float64 {
	return d.points[label]
}

// Len counts points over all labels.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, pts := range d.points {
		n += len(pts)
	}
	return n
}

// Validate checks that there is at least one label and that every point has
// dim features.
func (d *Dataset) Validate(dim int) error {
	if d == nil || len(d.labels) == 0 {
		return ErrEmptyDataset
	}
	for _, label := range d.labels {
		for i, p := range d.points[label] {
			if len(p) != dim {
				return fmt.Errorf(
					"%w: point %d of class %q has %d features, want %d",
					ErrConfiguration, i, label, len(p), dim,
				)
			}
		}
	}
	return nil
}

// labelIndex maps each label to its class index.
func labelIndex(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	return idx
}
