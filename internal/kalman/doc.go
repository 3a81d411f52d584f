// Package kalman implements the scalar local-level state-space model used
// for citation rate estimation.
//
// The latent state is the log of an annualized citation rate, evolving as a
// driftless random walk with process variance Q. Observations are
// log-transformed empirical rates with per-step observation variance R_t,
// either constant or derived from a Poisson approximation (see NoiseModel).
//
// PIPELINE:
//
// 1. Filter: forward pass producing predicted and filtered state moments
// plus the accumulated marginal log-likelihood via the innovations.
//
// 2. Smooth: Rauch-Tung-Striebel backward pass refining every estimate
// using the full series, not just past observations.
//
// 3. Forecast: closed-form predictive distribution plus one Monte-Carlo
// realization per horizon step, extending the final smoothed state.
//
// All recursions are sequential along the time axis and use flat per-step
// slices indexed by time. A pass is a pure function of its inputs and holds
// no shared mutable state, so independent series may be processed
// concurrently. Sampling in the Forecaster is the only source of
// randomness and is isolated behind an injectable source.
package kalman
