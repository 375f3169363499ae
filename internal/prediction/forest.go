package prediction

import "fmt"

// Tree is a single regression tree in flattened array form, the layout the
// training exporter emits: parallel arrays indexed by node ID. Internal nodes
// route on Feature[i] <= Threshold[i]; leaves are marked by Left[i] == -1 and
// carry their output in Value[i].
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

// leafMarker identifies leaf nodes in the Left/Right child arrays.
const leafMarker = -1

// validate checks the structural consistency of the flattened tree: equal
// array lengths, child indices in range, and feature indices within the
// feature vector width.
func (t *Tree) validate(numFeatures int) error {
	n := len(t.Feature)
	if n == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
		return fmt.Errorf("tree node arrays have inconsistent lengths")
	}
	for i := 0; i < n; i++ {
		if t.Left[i] == leafMarker {
			continue
		}
		if t.Left[i] < 0 || t.Left[i] >= n || t.Right[i] < 0 || t.Right[i] >= n {
			return fmt.Errorf("tree node %d has child index out of range", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= numFeatures {
			return fmt.Errorf("tree node %d routes on feature %d, want [0,%d)", i, t.Feature[i], numFeatures)
		}
	}
	return nil
}

// predict walks the tree from the root to a leaf for the given feature vector.
func (t *Tree) predict(features []float64) float64 {
	i := 0
	for t.Left[i] != leafMarker {
		if features[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

// Forest is the fitted ensemble regressor: the mean of its trees' outputs.
// It is immutable after loading and safe for unsynchronized concurrent use.
type Forest struct {
	NumFeatures int    `json:"n_features"`
	Trees       []Tree `json:"trees"`
}

// validate checks the forest shape and every tree's internal consistency.
func (f *Forest) validate() error {
	if f.NumFeatures <= 0 {
		return fmt.Errorf("forest declares %d features", f.NumFeatures)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NumFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Predict maps a feature vector to the ensemble's scalar output. It is a pure
// function of the vector and the fitted parameters; randomness was fixed at
// training time. A vector of the wrong width is a programming-contract
// violation and returns an error rather than a degraded prediction.
func (f *Forest) Predict(features []float64) (float64, error) {
	if len(features) != f.NumFeatures {
		return 0, fmt.Errorf("feature vector has %d values, model was fit on %d", len(features), f.NumFeatures)
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].predict(features)
	}
	return sum / float64(len(f.Trees)), nil
}
