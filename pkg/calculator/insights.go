package calculator

import (
	"math"
	"sort"
	"strings"

	"revenue-forecast/pkg/models"
)

// HistoricalKPIs sont les valeurs observées affichées à côté des sliders.
type HistoricalKPIs struct {
	Churn      float64 `json:"churn"`
	NewBiz     float64 `json:"newBiz"`
	AvgRevenue float64 `json:"avgRevenue"`
}

// ObservedKPIs calcule, sur les mois historiques triés :
//   - churn % : part des clients du mois i-3 absents des mois i-2..i
//   - new business % : part des clients du mois i absents des 3 mois précédents
//   - revenu moyen par client normal
//
// chaque série étant moyennée sur ses 3 dernières valeurs disponibles.
func ObservedKPIs(h *models.History, sets map[string]models.CustomerSet) HistoricalKPIs {
	keys := SortedMonths(h)
	n := len(keys)
	churn := make([]*float64, n)
	newBiz := make([]*float64, n)
	revPerCust := make([]*float64, n)

	for i, k := range keys {
		cur := sets[k]
		if i >= 3 {
			prior := sets[keys[i-3]]
			lost := 0
			for id := range prior {
				if !sets[keys[i-2]].Has(id) && !sets[keys[i-1]].Has(id) && !cur.Has(id) {
					lost++
				}
			}
			v := 0.0
			if len(prior) > 0 {
				v = float64(lost) / float64(len(prior)) * 100
			}
			churn[i] = &v
		}

		newcomers := 0
		for id := range cur {
			seen := false
			for back := 1; back <= 3 && i-back >= 0; back++ {
				if sets[keys[i-back]].Has(id) {
					seen = true
					break
				}
			}
			if !seen {
				newcomers++
			}
		}
		nb := 0.0
		if len(cur) > 0 {
			nb = float64(newcomers) / float64(len(cur)) * 100
		}
		newBiz[i] = &nb

		rev := 0.0
		if len(cur) > 0 {
			rev = h.Months[k].NormalFloat() / float64(len(cur))
		}
		revPerCust[i] = &rev
	}
	return HistoricalKPIs{
		Churn:      lastThreeAverage(churn),
		NewBiz:     lastThreeAverage(newBiz),
		AvgRevenue: lastThreeAverage(revPerCust),
	}
}

func lastThreeAverage(values []*float64) float64 {
	start := len(values) - 3
	if start < 0 {
		start = 0
	}
	sum, n := 0.0, 0
	for _, v := range values[start:] {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// OnboardingEstimate est la vitesse d'onboarding observée dans l'historique.
type OnboardingEstimate struct {
	EstimatedCurve     float64 `json:"estimatedCurve"`
	AvgFirstMonthRatio float64 `json:"avgFirstMonthRatio"`
	SampleSize         int     `json:"sampleSize"`
	Confidence         string  `json:"confidence"` // "high" | "medium" | "low"
}

// EstimateOnboarding compare, pour chaque client actif au moins 4 mois, le
// revenu du premier mois à la moyenne de ses 4 premiers mois positifs, puis
// convertit le ratio moyen en gain : 10% → 2.0x, 40% → 1.0x, 80% → 0.5x.
// Retourne false si aucun client n'est exploitable.
func EstimateOnboarding(rows []models.TransactionRow) (OnboardingEstimate, bool) {
	// dernière ligne du mois par client, comme l'export d'origine
	byCustomer := map[models.CustomerID]map[string]float64{}
	for _, r := range rows {
		m, ok := byCustomer[r.Customer]
		if !ok {
			m = map[string]float64{}
			byCustomer[r.Customer] = m
		}
		m[r.MonthKey()] = r.Amount.InexactFloat64()
	}

	var ratios []float64
	for _, id := range models.SortedCustomers(byCustomer) {
		months := byCustomer[id]
		if len(months) < 4 {
			continue
		}
		keys := make([]string, 0, len(months))
		for k := range months {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		first := months[keys[0]]
		if first <= 0 {
			continue
		}
		total, valid := 0.0, 0
		for _, k := range keys[:4] {
			if v := months[k]; v > 0 {
				total += v
				valid++
			}
		}
		if valid < 2 {
			continue
		}
		ratios = append(ratios, first/(total/float64(valid)))
	}
	if len(ratios) == 0 {
		return OnboardingEstimate{}, false
	}

	avg := 0.0
	for _, r := range ratios {
		avg += r
	}
	avg /= float64(len(ratios))

	curve := 1.0
	if avg > 0 {
		if avg <= 0.4 {
			curve = 1 + (0.4-avg)/0.3
		} else {
			curve = 1 - (avg-0.4)/0.4
		}
		curve = math.Max(0.5, math.Min(2, curve))
	}
	confidence := "low"
	switch {
	case len(ratios) >= 10:
		confidence = "high"
	case len(ratios) >= 5:
		confidence = "medium"
	}
	return OnboardingEstimate{
		EstimatedCurve:     math.Round(curve*10) / 10,
		AvgFirstMonthRatio: math.Round(avg*100) / 100,
		SampleSize:         len(ratios),
		Confidence:         confidence,
	}, true
}

// TrendStats résume la tendance linéaire de l'historique.
type TrendStats struct {
	Regression
	// AvgMoMPct : pente exprimée en % du total mensuel moyen.
	AvgMoMPct float64 `json:"avgMoMPct"`
}

// HistoryTrend ajuste la tendance sur les totaux historiques. Retourne false
// avec moins de 2 mois.
func HistoryTrend(h *models.History) (TrendStats, bool) {
	_, totals := historyTotals(h)
	if len(totals) < 2 {
		return TrendStats{}, false
	}
	reg := fitIndexed(totals)
	mean := 0.0
	for _, v := range totals {
		mean += v
	}
	mean /= float64(len(totals))
	stats := TrendStats{Regression: reg}
	if mean != 0 {
		stats.AvgMoMPct = reg.Slope / mean * 100
	}
	return stats, true
}

// Trendline retourne la droite ajustée sur l'historique et sa projection sur
// n mois de prévision. La projection commence au dernier point historique
// pour que les deux segments se rejoignent.
func Trendline(h *models.History, n int) (fitted, projection []float64, ok bool) {
	_, totals := historyTotals(h)
	if len(totals) < 2 {
		return nil, nil, false
	}
	reg := fitIndexed(totals)
	fitted = make([]float64, len(totals))
	for i := range totals {
		fitted[i] = reg.At(float64(i))
	}
	projection = make([]float64, 0, n+1)
	for j := 0; j <= n; j++ {
		projection = append(projection, reg.At(float64(len(totals)-1+j)))
	}
	return fitted, projection, true
}

// YearTarget est le total d'une année civile, historique et prévision confondus.
type YearTarget struct {
	Year  string  `json:"year"`
	Total float64 `json:"total"`
}

// YearTargets additionne, par année, le revenu historique des mois connus et
// le revenu prévu des autres mois.
func YearTargets(h *models.History, fc models.Result) []YearTarget {
	totals := map[string]float64{}
	var years []string
	add := func(month string, v float64) {
		year := month[:4]
		if _, ok := totals[year]; !ok {
			years = append(years, year)
		}
		totals[year] += v
	}
	for _, k := range SortedMonths(h) {
		add(k, h.Months[k].TotalFloat())
	}
	for i, k := range fc.Labels {
		if h.Has(k) || len(k) < 4 {
			continue
		}
		add(k, fc.Normal[i]+fc.Event[i])
	}
	sort.Strings(years)
	out := make([]YearTarget, 0, len(years))
	for _, y := range years {
		out = append(out, YearTarget{Year: y, Total: totals[y]})
	}
	return out
}

// TrendTarget additionne la droite de tendance sur les mois de l'année year
// présents dans labels (historique puis prévision).
func TrendTarget(h *models.History, labels []string, year string) float64 {
	keys, totals := historyTotals(h)
	if len(totals) < 2 {
		return 0
	}
	reg := fitIndexed(totals)
	start := len(keys)
	for i, k := range keys {
		if strings.HasPrefix(k, year) {
			start = i
			break
		}
	}
	sum, n := 0.0, 0
	for _, k := range labels {
		if strings.HasPrefix(k, year) {
			sum += reg.At(float64(start + n))
			n++
		}
	}
	return sum
}

// Grouping regroupe une série mensuelle.
type Grouping string

const (
	GroupMonth   Grouping = "month"
	GroupQuarter Grouping = "quarter"
	GroupYear    Grouping = "year"
)

// BucketLabel retourne le libellé du bucket d'un mois ("2025-Q2", "2025").
func BucketLabel(month string, g Grouping) string {
	switch g {
	case GroupYear:
		if i := strings.IndexByte(month, '-'); i > 0 {
			return month[:i]
		}
		return month
	case GroupQuarter:
		idx := monthIndex(month)
		if idx < 0 {
			return month
		}
		return month[:4] + "-Q" + string(rune('1'+idx/3))
	default:
		return month
	}
}

// GroupTimeline additionne des séries alignées sur labels par bucket. Un
// bucket sans aucune valeur non nulle reste nil.
func GroupTimeline(labels []string, series [][]*float64, g Grouping) ([]string, [][]*float64) {
	var buckets []string
	index := map[string]int{}
	out := make([][]*float64, len(series))
	for row, label := range labels {
		b := BucketLabel(label, g)
		idx, ok := index[b]
		if !ok {
			idx = len(buckets)
			index[b] = idx
			buckets = append(buckets, b)
			for s := range out {
				out[s] = append(out[s], nil)
			}
		}
		for s, values := range series {
			if row >= len(values) || values[row] == nil {
				continue
			}
			if out[s][idx] == nil {
				out[s][idx] = models.Float(0)
			}
			*out[s][idx] += *values[row]
		}
	}
	return buckets, out
}

// MarketGrowth retourne start × (1+rate%)^i pour i = 0..n-1.
func MarketGrowth(start, ratePct float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start * math.Pow(1+ratePct/100, float64(i))
	}
	return out
}
