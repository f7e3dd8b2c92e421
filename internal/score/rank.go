package score

import "math"

// RankWithin positions a raw value within a reference distribution. The
// distribution does not need to contain the raw value and does not need to be
// sorted. An empty distribution is not rankable.
func RankWithin(signalID string, raw float64, reference []float64) (RankInfo, error) {
	if len(reference) == 0 {
		return RankInfo{}, &InsufficientDataError{
			SignalID: signalID,
			Reason:   "empty reference distribution",
		}
	}

	info := RankInfo{SignalID: signalID}
	for _, v := range reference {
		switch {
		case v < raw:
			info.Lower++
		case v > raw:
			info.Higher++
		default:
			info.SameRank++
		}
	}
	return info, nil
}

// Percentile computes the inclusive percentile rank of raw within reference.
func Percentile(signalID string, raw float64, reference []float64) (float64, error) {
	info, err := RankWithin(signalID, raw, reference)
	if err != nil {
		return 0, err
	}
	return info.Percentile(), nil
}

// Normalized converts rank counts into a score in [1.0, 5.0] that follows a
// normal distribution centered at 3.0 (sigma 0.5) over the reference
// population. Same-rank mass is split half above and half below, and an edge
// adjustment of 1-0.5/ln(n+1) keeps the extremes off the asymptotes.
func (r RankInfo) Normalized() float64 {
	total := r.Lower + r.Higher + r.SameRank + 1

	adjustment := 1 - 0.5/math.Log(float64(total)+1)
	split := 0.5 * float64(r.SameRank)

	lower := float64(r.Lower) + split + adjustment
	higher := float64(r.Higher) + split + adjustment

	// ppf(1-x) = -ppf(x), but x near 1 loses precision, so always evaluate
	// near 0 and restore the sign.
	ratio := math.Min(lower, higher) / (lower + higher)
	z := sign(higher-lower) * normQuantile(ratio)

	return clamp(z*0.5+3.0, 1.0, 5.0)
}

// normQuantile is the standard normal inverse CDF.
func normQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
