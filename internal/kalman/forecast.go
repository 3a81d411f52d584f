package kalman

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// SamplingVarianceFloor is the observation-variance floor used when
// sampling forecast realizations. Distinct from DefaultVarianceFloor:
// draws of future observed rates carry a wider floor than estimation.
const SamplingVarianceFloor = 0.05

// Step is one horizon step of a forecast, h years past the final observed
// step. Median and Std summarize the closed-form predictive distribution
// in rate space; SampledLog and SampledRate are one Monte-Carlo
// realization drawn through the observation noise.
type Step struct {
	LogVar      float64 // predictive variance of the latent log-rate
	Median      float64 // closed-form median citation rate
	Std         float64 // closed-form standard deviation of the rate
	SampledLog  float64 // one sampled observed log-rate
	SampledRate float64 // exp(SampledLog)
}

// Forecaster extends a smoothed trajectory past its final state. Under the
// local-level model the latent mean stays at the final smoothed mean while
// the variance grows linearly with the horizon:
//
//	var_h = P_T + h*Q
//
// The rate-space summary follows the lognormal identity: the median is
// exp(x_T) and the variance is (exp(var_h)-1)*exp(2*x_T+var_h). Each step
// additionally samples a latent log-rate from N(x_T, var_h), resolves that
// rate's observation variance through the noise model with
// SamplingVarianceFloor, and draws the observed log-rate around the latent
// sample.
//
// A nil Src seeds a fresh PCG generator from the wall clock; supply a
// fixed source for reproducible draws.
type Forecaster struct {
	ProcessVar     float64
	Overdispersion float64
	Pseudocount    float64
	Src            rand.Source
}

// Forecast produces horizon steps extending from the final smoothed state.
// Horizon 0 yields no output. Steps are sampled independently; the only
// shared quantity is the starting state.
func (f Forecaster) Forecast(last State, horizon int) ([]Step, error) {
	if horizon <= 0 {
		return nil, nil
	}
	if f.ProcessVar < 0 {
		return nil, fmt.Errorf("forecast: process variance must be non-negative, got %g", f.ProcessVar)
	}
	if math.IsNaN(last.Mean) || math.IsInf(last.Mean, 0) || math.IsNaN(last.Var) || last.Var < 0 {
		return nil, fmt.Errorf("forecast: final state must be finite with non-negative variance, got mean=%g var=%g", last.Mean, last.Var)
	}

	src := f.Src
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed)
	}
	noise := OverdispersedNoise(f.Overdispersion, f.Pseudocount, SamplingVarianceFloor)

	median := math.Exp(last.Mean)
	steps := make([]Step, horizon)
	for h := 1; h <= horizon; h++ {
		logVar := last.Var + float64(h)*f.ProcessVar
		rateVar := (math.Exp(logVar) - 1) * math.Exp(2*last.Mean+logVar)

		latent := distuv.Normal{Mu: last.Mean, Sigma: math.Sqrt(logVar), Src: src}.Rand()
		obsVar := noise.At(math.Exp(latent))
		observed := distuv.Normal{Mu: latent, Sigma: math.Sqrt(obsVar), Src: src}.Rand()

		steps[h-1] = Step{
			LogVar:      logVar,
			Median:      median,
			Std:         math.Sqrt(rateVar),
			SampledLog:  observed,
			SampledRate: math.Exp(observed),
		}
	}

	return steps, nil
}
