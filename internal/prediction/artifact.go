package prediction

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// FeatureColumnSpec is the ordered column layout the model was fit on,
// serialized alongside the model at training time. The order of both lists is
// significant: it determines the feature vector layout.
type FeatureColumnSpec struct {
	NumericFeatures     []string `json:"numeric_features"`
	CategoricalFeatures []string `json:"categorical_features"`
}

// NumericStats holds the training-time standardization statistics for one
// numeric column.
type NumericStats struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// CategoricalVocab holds the trained one-hot vocabulary for one categorical
// column, in the encoder's stored category order.
type CategoricalVocab struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Artifact is the deserialized trained model: the fitted preprocessing
// transform (scaler statistics and one-hot vocabularies) plus the fitted
// forest, together with the feature-column spec they were fit under.
//
// An Artifact is loaded exactly once at startup and treated as immutable for
// the process lifetime; all fields are safe for unsynchronized concurrent
// read access.
type Artifact struct {
	SchemaVersion int                `json:"schema_version"`
	Numeric       []NumericStats     `json:"numeric"`
	Categorical   []CategoricalVocab `json:"categorical"`
	Forest        Forest             `json:"forest"`

	// Populated by LoadArtifacts from the companion spec file, then verified
	// against the fitted transform.
	Columns FeatureColumnSpec `json:"-"`

	// vocabIndex maps column name -> category -> position within that
	// column's indicator block. Built once at load.
	vocabIndex map[string]map[string]int
}

// FeatureWidth returns the width of the feature vector the fitted transform
// produces: one value per numeric column plus one indicator per trained
// category.
func (a *Artifact) FeatureWidth() int {
	w := len(a.Numeric)
	for i := range a.Categorical {
		w += len(a.Categorical[i].Categories)
	}
	return w
}

// validate cross-checks the column spec against the fitted transform and the
// transform against the fitted forest. Any mismatch is a fatal configuration
// error at load time, never a per-request error.
func (a *Artifact) validate() error {
	if len(a.Numeric) != len(a.Columns.NumericFeatures) {
		return fmt.Errorf("column spec lists %d numeric features, artifact was fit on %d",
			len(a.Columns.NumericFeatures), len(a.Numeric))
	}
	for i, name := range a.Columns.NumericFeatures {
		if a.Numeric[i].Name != name {
			return fmt.Errorf("numeric column %d: spec says %q, artifact was fit on %q",
				i, name, a.Numeric[i].Name)
		}
		if _, ok := (&NormalizedRecord{}).NumericValue(name); !ok {
			return fmt.Errorf("numeric column %q is not part of the canonical schema", name)
		}
	}

	if len(a.Categorical) != len(a.Columns.CategoricalFeatures) {
		return fmt.Errorf("column spec lists %d categorical features, artifact was fit on %d",
			len(a.Columns.CategoricalFeatures), len(a.Categorical))
	}
	for i, name := range a.Columns.CategoricalFeatures {
		if a.Categorical[i].Name != name {
			return fmt.Errorf("categorical column %d: spec says %q, artifact was fit on %q",
				i, name, a.Categorical[i].Name)
		}
		if _, ok := (&NormalizedRecord{}).CategoricalValue(name); !ok {
			return fmt.Errorf("categorical column %q is not part of the canonical schema", name)
		}
		if len(a.Categorical[i].Categories) == 0 {
			return fmt.Errorf("categorical column %q has an empty vocabulary", name)
		}
	}

	if err := a.Forest.validate(); err != nil {
		return fmt.Errorf("invalid forest: %w", err)
	}
	if w := a.FeatureWidth(); w != a.Forest.NumFeatures {
		return fmt.Errorf("preprocessing emits %d features, forest was fit on %d", w, a.Forest.NumFeatures)
	}
	return nil
}

// buildIndex precomputes the per-column category lookup used by Featurize.
func (a *Artifact) buildIndex() {
	a.vocabIndex = make(map[string]map[string]int, len(a.Categorical))
	for i := range a.Categorical {
		col := &a.Categorical[i]
		idx := make(map[string]int, len(col.Categories))
		for j, cat := range col.Categories {
			idx[cat] = j
		}
		a.vocabIndex[col.Name] = idx
	}
}

// LoadArtifacts reads the trained model and the feature-column spec from the
// given paths and returns a validated, ready-to-serve Artifact. Paths ending
// in ".zst" are zstd-decompressed while reading; the exported forest JSON is
// large enough that compressed artifacts are the normal case.
//
// Loading happens exactly once at startup. Any failure here puts the
// prediction service into its fail-closed state; it is reported once, not
// per request.
func LoadArtifacts(modelPath, columnsPath string) (*Artifact, error) {
	var artifact Artifact
	if err := readJSONArtifact(modelPath, &artifact); err != nil {
		return nil, fmt.Errorf("loading model artifact: %w", err)
	}

	var spec FeatureColumnSpec
	if err := readJSONArtifact(columnsPath, &spec); err != nil {
		return nil, fmt.Errorf("loading feature column spec: %w", err)
	}
	artifact.Columns = spec

	if err := artifact.validate(); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", modelPath, err)
	}
	artifact.buildIndex()
	return &artifact, nil
}

// readJSONArtifact decodes a JSON file into dst, transparently handling zstd
// compression for ".zst" paths.
func readJSONArtifact(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	dec := json.NewDecoder(r)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
