package calculator

// Regression est le résultat d'un ajustement par moindres carrés.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// At évalue la droite en x.
func (r Regression) At(x float64) float64 { return r.Intercept + r.Slope*x }

// LinearRegression ajuste y = slope*x + intercept sur les min(len(x), len(y))
// premiers points. Moins de 2 points ou x sans variance : pente nulle et
// intercept = y[0] (ou 0).
func LinearRegression(x, y []float64) Regression {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 2 {
		return Regression{Intercept: first(y)}
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return Regression{Intercept: first(y)}
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	return Regression{Slope: slope, Intercept: (sumY - slope*sumX) / fn}
}

// fitIndexed ajuste une droite sur (0..n-1, y).
func fitIndexed(y []float64) Regression {
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	return LinearRegression(x, y)
}

func first(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[0]
}
