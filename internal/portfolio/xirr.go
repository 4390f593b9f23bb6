package portfolio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/adrianvollmer/solvency/internal/money"
)

// CashFlow is a single dated amount for the XIRR solver; Cents may be
// negative (outflow) or positive (inflow).
type CashFlow struct {
	Date  money.Date
	Cents money.Cents
}

const (
	xirrInitialGuess  = 0.10
	xirrTolerance     = 1e-7
	xirrMaxIterations = 100
	xirrMinRate       = -0.99
	xirrMaxRate       = 100.0
	xirrMinDerivative = 1e-10
	xirrNPVTolerance  = 1e-4
)

var xirrRestartCandidates = []float64{-0.5, 0.0, 0.5, 1.0, 2.0}

// yearsBetween returns (date - base) in years, using a 365-day year, as
// spec.md §4.6 specifies.
func yearsBetween(base, date money.Date) float64 {
	return float64(date.DaysSince(base)) / 365.0
}

// npv computes Σ amount_i · (1+r)^(-years_i), summing via gonum/floats for
// consistent accumulation order with dnpv.
func npv(flows []CashFlow, base money.Date, r float64) float64 {
	terms := make([]float64, len(flows))
	for i, f := range flows {
		years := yearsBetween(base, f.Date)
		terms[i] = float64(f.Cents) * math.Pow(1+r, -years)
	}
	return floats.Sum(terms)
}

// dnpv computes the derivative of npv with respect to r.
func dnpv(flows []CashFlow, base money.Date, r float64) float64 {
	terms := make([]float64, len(flows))
	for i, f := range flows {
		years := yearsBetween(base, f.Date)
		terms[i] = -years * float64(f.Cents) * math.Pow(1+r, -years-1)
	}
	return floats.Sum(terms)
}

func clampRate(r float64) float64 {
	if r < xirrMinRate {
		return xirrMinRate
	}
	if r > xirrMaxRate {
		return xirrMaxRate
	}
	return r
}

// hasMixedSign reports whether flows contains at least one positive and one
// negative amount, the precondition for a root to exist.
func hasMixedSign(flows []CashFlow) bool {
	sawPos, sawNeg := false, false
	for _, f := range flows {
		if f.Cents > 0 {
			sawPos = true
		}
		if f.Cents < 0 {
			sawNeg = true
		}
		if sawPos && sawNeg {
			return true
		}
	}
	return false
}

// XIRR finds the annualized rate r such that the flows' net present value
// is zero, via Newton-Raphson with a fixed restart candidate set on
// non-convergence. ok is false ("no rate") if flows lack mixed signs, if no
// starting point converges, or if the converged rate falls outside
// (-0.99, 100.0).
func XIRR(flows []CashFlow) (rate float64, ok bool) {
	if len(flows) < 2 || !hasMixedSign(flows) {
		return 0, false
	}

	sorted := make([]CashFlow, len(flows))
	copy(sorted, flows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	base := sorted[0].Date

	starts := append([]float64{xirrInitialGuess}, xirrRestartCandidates...)

	for _, start := range starts {
		if r, converged := newtonRaphson(sorted, base, start); converged {
			if r > xirrMinRate && r < xirrMaxRate {
				if math.Abs(npv(sorted, base, r)) < xirrNPVTolerance {
					return r, true
				}
			}
		}
	}

	return 0, false
}

func newtonRaphson(flows []CashFlow, base money.Date, start float64) (float64, bool) {
	r := start
	for i := 0; i < xirrMaxIterations; i++ {
		f := npv(flows, base, r)
		if math.Abs(f) < xirrTolerance {
			return r, true
		}
		d := dnpv(flows, base, r)
		if math.Abs(d) < xirrMinDerivative {
			return 0, false
		}
		r = clampRate(r - f/d)
	}
	return 0, false
}
