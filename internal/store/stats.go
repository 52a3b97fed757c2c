package store

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ConfidenceStats summarizes the confidence of a set of track records.
type ConfidenceStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes ConfidenceStats over tracks. StdDev is the sample
// standard deviation and is 0 for fewer than two records.
func Summarize(tracks []TrackRecord) ConfidenceStats {
	if len(tracks) == 0 {
		return ConfidenceStats{}
	}
	xs := make([]float64, len(tracks))
	for i, t := range tracks {
		xs[i] = t.Confidence
	}

	s := ConfidenceStats{
		Count: len(xs),
		Mean:  stat.Mean(xs, nil),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s
}
