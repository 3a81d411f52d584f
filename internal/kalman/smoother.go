package kalman

import "fmt"

// SmoothResult holds smoothed state estimates, one per time step of the
// filter pass it was derived from.
type SmoothResult struct {
	Mean []float64
	Var  []float64
}

// Len returns the number of time steps.
func (r *SmoothResult) Len() int { return len(r.Mean) }

// Smooth runs the Rauch-Tung-Striebel backward recursion over a completed
// forward pass. The terminal step is the filtered state unchanged; each
// earlier step is corrected using everything observed after it:
//
//	C_t = P_filt_t / P_pred_{t+1}
//	mean_t = x_filt_t + C_t*(mean_{t+1} - x_pred_{t+1})
//	var_t  = P_filt_t + C_t^2*(var_{t+1} - P_pred_{t+1})
//
// Zero-length input returns an empty result; a single step returns the
// filtered state as-is. A negative smoothed variance signals numerical
// pathology in the inputs and is returned as an error naming the step,
// never clamped.
func Smooth(f *FilterResult) (*SmoothResult, error) {
	if f == nil {
		return nil, fmt.Errorf("smoother: nil filter result")
	}

	n := f.Len()
	res := &SmoothResult{
		Mean: make([]float64, n),
		Var:  make([]float64, n),
	}
	if n == 0 {
		return res, nil
	}

	res.Mean[n-1] = f.FiltMean[n-1]
	res.Var[n-1] = f.FiltVar[n-1]

	for t := n - 2; t >= 0; t-- {
		if !(f.PredVar[t+1] > 0) {
			return nil, fmt.Errorf("smoother: predicted variance %g at step %d is not positive", f.PredVar[t+1], t+1)
		}
		c := f.FiltVar[t] / f.PredVar[t+1]
		res.Mean[t] = f.FiltMean[t] + c*(res.Mean[t+1]-f.PredMean[t+1])
		v := f.FiltVar[t] + c*c*(res.Var[t+1]-f.PredVar[t+1])
		if v < 0 {
			return nil, fmt.Errorf("smoother: smoothed variance %g at step %d is negative", v, t)
		}
		res.Var[t] = v
	}

	return res, nil
}
