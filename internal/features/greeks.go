package features

import "math"

// invSqrt2Pi is 1/sqrt(2*pi), used by the standard normal pdf.
const invSqrt2Pi = 0.3989422804014327

func normPDF(x float64) float64 {
	return invSqrt2Pi * math.Exp(-0.5*x*x)
}

// normCDF uses the erf-based closed form rather than a rational
// approximation, since math.Erf is exact to float64 precision.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// d1d2 computes the Black-Scholes d1 and d2 terms.
func d1d2(spot, strike, rate, vol, t float64) (d1, d2 float64) {
	if t <= 0 || vol <= 0 {
		return 0, 0
	}
	d1 = (math.Log(spot/strike) + (rate+0.5*vol*vol)*t) / (vol * math.Sqrt(t))
	d2 = d1 - vol*math.Sqrt(t)
	return d1, d2
}

// BSPrice returns the Black-Scholes theoretical price of a European
// option. isCall selects call vs put.
func BSPrice(spot, strike, rate, vol, t float64, isCall bool) float64 {
	if t <= 0 {
		if isCall {
			return math.Max(spot-strike, 0)
		}
		return math.Max(strike-spot, 0)
	}
	d1, d2 := d1d2(spot, strike, rate, vol, t)
	if isCall {
		return spot*normCDF(d1) - strike*math.Exp(-rate*t)*normCDF(d2)
	}
	return strike*math.Exp(-rate*t)*normCDF(-d2) - spot*normCDF(-d1)
}

// Greeks holds the first-order and second-order Black-Scholes
// sensitivities for one contract.
type Greeks struct {
	Delta, Gamma, Vega, Theta, Rho float64
}

// ComputeGreeks returns the Black-Scholes Greeks for a European
// option. Vega is per 1-vol-point move, Theta per calendar day, and
// Rho per 1% rate move.
func ComputeGreeks(spot, strike, rate, vol, t float64, isCall bool) Greeks {
	if t <= 0 || vol <= 0 {
		return Greeks{}
	}
	d1, d2 := d1d2(spot, strike, rate, vol, t)
	sqrtT := math.Sqrt(t)
	pdf1 := normPDF(d1)

	gamma := pdf1 / (spot * vol * sqrtT)
	vega := spot * pdf1 * sqrtT

	var delta, theta, rho float64
	if isCall {
		delta = normCDF(d1)
		theta = -(spot*pdf1*vol)/(2*sqrtT) - rate*strike*math.Exp(-rate*t)*normCDF(d2)
		rho = strike * t * math.Exp(-rate*t) * normCDF(d2)
	} else {
		delta = normCDF(d1) - 1
		theta = -(spot*pdf1*vol)/(2*sqrtT) + rate*strike*math.Exp(-rate*t)*normCDF(-d2)
		rho = -strike * t * math.Exp(-rate*t) * normCDF(-d2)
	}

	return Greeks{
		Delta: delta,
		Gamma: gamma,
		Vega:  vega / 100, // per 1-vol-point move
		Theta: theta / 365, // per calendar day
		Rho:   rho / 100,  // per 1% rate move
	}
}

// ivTolerance, ivMaxIter and the search domain bounds match the
// implied-volatility solver's fixed parameters.
const (
	ivTolerance = 1e-6
	ivMaxIter   = 64
	ivLowBound  = 1e-4
	ivHighBound = 5.0
)

// ImpliedVol solves for the Black-Scholes volatility that reprices
// marketPrice, using Brent's method over [ivLowBound, ivHighBound].
// Returns false if the market price is outside the no-arbitrage
// bounds achievable within the domain (e.g. below intrinsic value or
// above the deep-ITM ceiling), in which case the caller should treat
// implied vol as absent rather than clamp to a boundary.
func ImpliedVol(marketPrice, spot, strike, rate, t float64, isCall bool) (float64, bool) {
	if marketPrice <= 0 || t <= 0 || spot <= 0 || strike <= 0 {
		return 0, false
	}

	f := func(vol float64) float64 {
		return BSPrice(spot, strike, rate, vol, t, isCall) - marketPrice
	}

	a, b := ivLowBound, ivHighBound
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, true
	}
	if fb == 0 {
		return b, true
	}
	if (fa > 0 && fb > 0) || (fa < 0 && fb < 0) {
		// marketPrice is outside what's reachable in the domain —
		// e.g. below intrinsic or above the deep-ITM ceiling.
		return 0, false
	}

	if math.Abs(fa) < math.Abs(fb) {
		a, b = b, a
		fa, fb = fb, fa
	}
	c, fc := a, fa
	mflag := true
	var d float64

	for i := 0; i < ivMaxIter; i++ {
		if math.Abs(b-a) < ivTolerance {
			break
		}

		var s float64
		if fa != fc && fb != fc {
			// inverse quadratic interpolation
			s = a*fb*fc/((fa-fb)*(fa-fc)) +
				b*fa*fc/((fb-fa)*(fb-fc)) +
				c*fa*fb/((fc-fa)*(fc-fb))
		} else {
			// secant method
			s = b - fb*(b-a)/(fb-fa)
		}

		cond1 := (s < (3*a+b)/4 || s > b) && (b > a && (s < (3*a+b)/4 || s > b))
		useBisection := false
		mid := (3*a + b) / 4
		lo, hi := math.Min(mid, b), math.Max(mid, b)
		if s < lo || s > hi {
			useBisection = true
		}
		if mflag && math.Abs(s-b) >= math.Abs(b-c)/2 {
			useBisection = true
		}
		if !mflag && math.Abs(s-b) >= math.Abs(c-d)/2 {
			useBisection = true
		}
		_ = cond1
		if useBisection {
			s = (a + b) / 2
			mflag = true
		} else {
			mflag = false
		}

		fs := f(s)
		d = c
		c, fc = b, fb

		if fa*fs < 0 {
			b, fb = s, fs
		} else {
			a, fa = s, fs
		}
		if math.Abs(fa) < math.Abs(fb) {
			a, b = b, a
			fa, fb = fb, fa
		}
		if math.Abs(fb) < ivTolerance {
			return b, true
		}
	}

	if b < ivLowBound || b > ivHighBound {
		return 0, false
	}
	return b, true
}
