package kalman

import (
	"fmt"
	"math"
)

// DefaultPriorVar is the initial state variance used when the caller does
// not override the prior.
const DefaultPriorVar = 1.0

// State is a scalar Gaussian belief over the latent log-rate.
type State struct {
	Mean float64
	Var  float64
}

// DefaultInit seeds the filter prior from the first observation: prior mean
// z[0], prior variance DefaultPriorVar. An empty series yields a zero-mean
// prior, which Filter never consults.
func DefaultInit(z []float64) State {
	s := State{Var: DefaultPriorVar}
	if len(z) > 0 {
		s.Mean = z[0]
	}
	return s
}

// FilterResult is one completed forward pass over a series. All slices
// share the series length and are indexed by time step. A result is
// read-only once returned; the smoother consumes it without modification.
type FilterResult struct {
	PredMean []float64 // one-step-ahead state mean
	PredVar  []float64 // one-step-ahead state variance
	FiltMean []float64 // updated state mean
	FiltVar  []float64 // updated state variance
	LogLik   float64   // accumulated marginal log-likelihood
}

// Len returns the number of time steps in the pass.
func (r *FilterResult) Len() int { return len(r.FiltMean) }

var log2Pi = math.Log(2 * math.Pi)

// Filter runs the forward Kalman recursion for the scalar local-level model
//
//	x_t = x_{t-1} + eps_t,  eps_t ~ N(0, Q)
//	z_t = x_t + eta_t,      eta_t ~ N(0, R_t)
//
// over observations z with process variance processVar, per-step
// observation variances obsVar and prior state init. The prior is used as
// the t=0 prediction directly; no transition is applied before the first
// update. Each step accumulates the innovation's log-density into LogLik,
// which is the series' marginal log-likelihood after the pass.
//
// A zero-length z returns an empty result with log-likelihood 0.
// Misconfiguration is rejected at the boundary, never masked: processVar
// must be non-negative, obsVar must match z in length with every entry
// strictly positive, and the prior must be finite with non-negative
// variance. These guarantees keep the innovation variance strictly
// positive at every step.
func Filter(z []float64, processVar float64, obsVar []float64, init State) (*FilterResult, error) {
	if processVar < 0 {
		return nil, fmt.Errorf("filter: process variance must be non-negative, got %g", processVar)
	}
	if len(obsVar) != len(z) {
		return nil, fmt.Errorf("filter: got %d observation variances for %d observations", len(obsVar), len(z))
	}
	for t, r := range obsVar {
		if !(r > 0) {
			return nil, fmt.Errorf("filter: observation variance must be positive, got %g at step %d", r, t)
		}
	}
	if math.IsNaN(init.Mean) || math.IsInf(init.Mean, 0) || math.IsNaN(init.Var) || init.Var < 0 {
		return nil, fmt.Errorf("filter: initial state must be finite with non-negative variance, got mean=%g var=%g", init.Mean, init.Var)
	}

	n := len(z)
	res := &FilterResult{
		PredMean: make([]float64, n),
		PredVar:  make([]float64, n),
		FiltMean: make([]float64, n),
		FiltVar:  make([]float64, n),
	}

	for t := 0; t < n; t++ {
		mean, variance := init.Mean, init.Var
		if t > 0 {
			mean = res.FiltMean[t-1]
			variance = res.FiltVar[t-1] + processVar
		}
		res.PredMean[t] = mean
		res.PredVar[t] = variance

		v := z[t] - mean
		s := variance + obsVar[t]
		k := variance / s
		res.FiltMean[t] = mean + k*v
		res.FiltVar[t] = (1 - k) * variance
		res.LogLik += -0.5 * (log2Pi + math.Log(s) + v*v/s)
	}

	return res, nil
}
