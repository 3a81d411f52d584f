package kalman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantVars(n int, v float64) []float64 {
	return ConstantNoise(v).Variances(make([]float64, n))
}

func TestFilterEmptySeries(t *testing.T) {
	res, err := Filter(nil, 0.25, nil, State{Mean: 0, Var: 1})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Len())
	assert.Empty(t, res.PredMean)
	assert.Empty(t, res.FiltVar)
	assert.Equal(t, 0.0, res.LogLik)
}

func TestFilterSingleObservation(t *testing.T) {
	// Prior mean equals the observation, so the innovation is zero and the
	// update leaves the mean untouched while shrinking the variance.
	z := []float64{2.0}
	res, err := Filter(z, 0.25, constantVars(1, 0.3), State{Mean: 2.0, Var: 1.0})
	require.NoError(t, err)

	assert.Equal(t, 2.0, res.PredMean[0])
	assert.Equal(t, 1.0, res.PredVar[0])
	assert.Equal(t, 2.0, res.FiltMean[0])
	assert.InDelta(t, 0.3/1.3, res.FiltVar[0], 1e-12)

	wantLogLik := -0.5 * (math.Log(2*math.Pi) + math.Log(1.3))
	assert.InDelta(t, wantLogLik, res.LogLik, 1e-12)
}

func TestFilterCitationScenario(t *testing.T) {
	// Counts [0, 3, 5] with exposure 1.0 and pseudocount 0.5 give
	// z = log([0.5, 3.5, 5.5]).
	z := []float64{math.Log(0.5), math.Log(3.5), math.Log(5.5)}
	init := DefaultInit(z)
	require.Equal(t, math.Log(0.5), init.Mean)
	require.Equal(t, DefaultPriorVar, init.Var)

	res, err := Filter(z, 0.25, constantVars(3, 0.3), init)
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())

	assert.False(t, math.IsNaN(res.LogLik) || math.IsInf(res.LogLik, 0))
	assert.Negative(t, res.LogLik)

	// Zero innovation at t=0 leaves the filtered mean at z[0].
	assert.InDelta(t, z[0], res.FiltMean[0], 1e-12)

	// Uncertainty shrinks strictly over the pass, starting from the prior.
	assert.Less(t, res.FiltVar[0], init.Var)
	assert.Less(t, res.FiltVar[1], res.FiltVar[0])
	assert.Less(t, res.FiltVar[2], res.FiltVar[1])
}

func TestFilterUpdateNeverInflatesVariance(t *testing.T) {
	z := []float64{0.3, -1.2, 2.4, 0.9, -0.5, 1.7, 0.1}
	obsVar := OverdispersedNoise(0.56, 0.5, 0.01).Variances([]float64{0, 2, 10, 1, 0, 4, 1})

	res, err := Filter(z, 0.25, obsVar, DefaultInit(z))
	require.NoError(t, err)

	for i := 0; i < res.Len(); i++ {
		assert.LessOrEqual(t, res.FiltVar[i], res.PredVar[i], "step %d", i)
		assert.Greater(t, res.FiltVar[i], 0.0, "step %d", i)
	}
}

func TestFilterConstantSequenceConverges(t *testing.T) {
	const c = 3.0
	z := []float64{c, c, c, c, c, c, c, c}

	res, err := Filter(z, 1e-9, constantVars(len(z), 0.3), DefaultInit(z))
	require.NoError(t, err)

	for i, m := range res.FiltMean {
		assert.InDelta(t, c, m, 1e-9, "step %d", i)
	}
	// With negligible process noise the variance keeps shrinking.
	assert.Less(t, res.FiltVar[len(z)-1], res.FiltVar[0])
}

func TestFilterRejectsNegativeProcessVar(t *testing.T) {
	_, err := Filter([]float64{1}, -0.1, constantVars(1, 0.3), State{Var: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "process variance")
}

func TestFilterRejectsNonPositiveObsVar(t *testing.T) {
	for name, v := range map[string]float64{
		"zero":     0,
		"negative": -0.3,
		"nan":      math.NaN(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Filter([]float64{1, 2}, 0.25, []float64{0.3, v}, State{Var: 1})

			require.Error(t, err)
			assert.Contains(t, err.Error(), "observation variance")
			assert.Contains(t, err.Error(), "step 1")
		})
	}
}

func TestFilterRejectsLengthMismatch(t *testing.T) {
	_, err := Filter([]float64{1, 2, 3}, 0.25, constantVars(2, 0.3), State{Var: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "observation variances")
}

func TestFilterRejectsNonFiniteInit(t *testing.T) {
	cases := map[string]State{
		"nan mean":     {Mean: math.NaN(), Var: 1},
		"inf mean":     {Mean: math.Inf(1), Var: 1},
		"negative var": {Mean: 0, Var: -1},
	}
	for name, init := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Filter([]float64{1}, 0.25, constantVars(1, 0.3), init)
			require.Error(t, err)
		})
	}
}
