package calculator

import (
	"math"

	"revenue-forecast/pkg/models"
)

// trendProjector prolonge la régression linéaire des totaux historiques.
type trendProjector struct{}

func (trendProjector) project(in Input) models.Result {
	keys, totals := historyTotals(in.History)
	if len(totals) < 2 {
		return models.EmptyResult(WarnTrendTooShort)
	}
	reg := fitIndexed(totals)
	adj := adjuster{dipDecember: in.Config.KPIs.DipDecember, dipSummer: in.Config.KPIs.DipSummer}
	last := keys[len(keys)-1]

	labels := make([]string, 0, in.Config.Horizon)
	projected := make([]float64, 0, in.Config.Horizon)
	for i := 1; i <= in.Config.Horizon; i++ {
		key := addMonths(last, i)
		total := reg.At(float64(len(totals) - 1 + i))
		labels = append(labels, key)
		projected = append(projected, adj.dips(total, monthIndex(key)))
	}
	return totalsOnly(labels, projected)
}

// expProjector applique la moyenne géométrique des ratios mois sur mois au
// dernier total connu.
type expProjector struct{}

func (expProjector) project(in Input) models.Result {
	keys, totals := historyTotals(in.History)
	if len(totals) < 3 {
		return models.EmptyResult(WarnExpTooShort)
	}
	geo, ok := GeometricGrowth(totals)
	if !ok {
		return models.EmptyResult(WarnExpNoRatios)
	}
	adj := adjuster{dipDecember: in.Config.KPIs.DipDecember, dipSummer: in.Config.KPIs.DipSummer}
	last := keys[len(keys)-1]
	running := totals[len(totals)-1]

	labels := make([]string, 0, in.Config.Horizon)
	projected := make([]float64, 0, in.Config.Horizon)
	for i := 1; i <= in.Config.Horizon; i++ {
		key := addMonths(last, i)
		running *= geo
		labels = append(labels, key)
		projected = append(projected, adj.dips(running, monthIndex(key)))
	}
	return totalsOnly(labels, projected)
}

// GeometricGrowth retourne la moyenne géométrique des ratios cur/prev, en ne
// retenant que les paires où les deux valeurs sont positives.
func GeometricGrowth(totals []float64) (float64, bool) {
	sumLog, n := 0.0, 0
	for i := 1; i < len(totals); i++ {
		prev, cur := totals[i-1], totals[i]
		if prev > 0 && cur > 0 {
			sumLog += math.Log(cur / prev)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return math.Exp(sumLog / float64(n)), true
}
