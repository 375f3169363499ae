package prediction

// Featurize applies the fitted preprocessing transform to a normalized record
// and returns the numeric feature vector in training order: all standardized
// numeric values first (in stored column order), then one indicator block per
// categorical column (in stored column order, each block in stored vocabulary
// order).
//
// Numeric columns are standardized as (value - mean) / std with the
// statistics captured at training time. A column whose training-time std is
// zero contributes 0, avoiding a division by zero.
//
// A categorical value never seen during training produces an all-zero
// indicator block for its column. This is a vocabulary lookup with a default
// zero vector, not an error path: inference stays robust to unseen regions
// and crop names at the cost of silently degraded prediction quality.
func (a *Artifact) Featurize(rec *NormalizedRecord) []float64 {
	features := make([]float64, 0, a.Forest.NumFeatures)

	for i := range a.Numeric {
		col := &a.Numeric[i]
		// The column set was verified against the canonical schema at load
		// time, so the lookup cannot miss here.
		value, _ := rec.NumericValue(col.Name)
		if col.Std == 0 {
			features = append(features, 0)
			continue
		}
		features = append(features, (value-col.Mean)/col.Std)
	}

	for i := range a.Categorical {
		col := &a.Categorical[i]
		value, _ := rec.CategoricalValue(col.Name)
		block := make([]float64, len(col.Categories))
		if j, known := a.vocabIndex[col.Name][value]; known {
			block[j] = 1
		}
		features = append(features, block...)
	}

	return features
}
