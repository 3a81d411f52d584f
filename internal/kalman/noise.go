package kalman

// DefaultVarianceFloor bounds the time-varying observation variance away
// from zero during estimation.
const DefaultVarianceFloor = 0.01

// NoiseModel resolves the per-step observation variance for a series.
//
// Two modes exist and are mutually exclusive, chosen once per run:
//
//   - Constant: a single variance applied at every step.
//   - Overdispersed: a time-varying variance derived from the empirical
//     rate under a Poisson-count approximation. A yearly count at rate r
//     has Var(log(count + c)) of roughly 1/(r + c) by the delta method;
//     the overdispersion factor phi scales this because real citation
//     counts are noisier than Poisson, and a floor keeps the variance
//     bounded below for large rates:
//
//     R_t = phi/(r_t + c) + floor
//
// phi = 0 degenerates to the floor alone. The zero value of NoiseModel is
// not meaningful; construct via ConstantNoise or OverdispersedNoise.
type NoiseModel struct {
	timeVarying bool
	value       float64
	phi         float64
	pseudocount float64
	floor       float64
}

// ConstantNoise returns a model applying the same variance at every step.
func ConstantNoise(value float64) NoiseModel {
	return NoiseModel{value: value}
}

// OverdispersedNoise returns a time-varying model with overdispersion phi,
// pseudocount and variance floor.
func OverdispersedNoise(phi, pseudocount, floor float64) NoiseModel {
	return NoiseModel{timeVarying: true, phi: phi, pseudocount: pseudocount, floor: floor}
}

// TimeVarying reports whether the variance depends on the empirical rate.
func (m NoiseModel) TimeVarying() bool { return m.timeVarying }

// At returns the observation variance for a single empirical rate.
// Constant mode ignores the rate.
func (m NoiseModel) At(rate float64) float64 {
	if !m.timeVarying {
		return m.value
	}
	return m.phi/(rate+m.pseudocount) + m.floor
}

// Variances returns one observation variance per entry of empirical.
// Constant mode fills the slice with the configured value, so the filter
// always receives a full per-step sequence.
func (m NoiseModel) Variances(empirical []float64) []float64 {
	out := make([]float64, len(empirical))
	for i, r := range empirical {
		out[i] = m.At(r)
	}
	return out
}
