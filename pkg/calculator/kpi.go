package calculator

import (
	"math"

	"github.com/shopspring/decimal"

	"revenue-forecast/pkg/models"
)

// BaselineStats sont les valeurs de départ tirées de la période de baseline.
type BaselineStats struct {
	Period []string `json:"period"`
	// Valid : mois de la période présents dans l'historique.
	Valid []string `json:"valid"`
	// Customers : nombre moyen de clients normaux par mois valide.
	Customers float64 `json:"customers"`
	// AvgRevenue : revenu normal total / clients normaux cumulés.
	AvgRevenue float64 `json:"avgRevenue"`
	// EventStart : revenu moyen par mois valide de chaque client événementiel.
	EventStart map[models.CustomerID]float64 `json:"eventStart"`
}

// ResolveBaseline calcule les valeurs de départ. Une période sans données
// donne des valeurs nulles, jamais d'erreur.
func ResolveBaseline(in Input) BaselineStats {
	b := in.Config.Baseline
	var period []string
	if b.Mode == models.BaselineRange {
		period = MonthRange(b.From, b.To)
	} else if b.Month != "" {
		period = []string{b.Month}
	}

	stats := BaselineStats{Period: period, EventStart: map[models.CustomerID]float64{}}
	for _, k := range period {
		if in.History.Has(k) {
			stats.Valid = append(stats.Valid, k)
		}
	}
	if len(stats.Valid) == 0 {
		return stats
	}

	normSum, custSum := decimal.Zero, 0.0
	for _, k := range stats.Valid {
		normSum = normSum.Add(in.History.Months[k].Normal)
		custSum += float64(in.NormalCustomers[k])
	}
	n := float64(len(stats.Valid))
	stats.Customers = custSum / n
	stats.AvgRevenue = normSum.InexactFloat64() / math.Max(1, custSum)

	for _, id := range models.SortedCustomers(in.History.EventByClient) {
		if in.Overrides.Excluded(id) {
			continue
		}
		series := in.History.EventByClient[id]
		s := decimal.Zero
		for _, k := range stats.Valid {
			s = s.Add(series[k])
		}
		if s.IsPositive() {
			stats.EventStart[id] = s.InexactFloat64() / n
		}
	}
	return stats
}

// kpiProjector est le mode principal : churn, new business, croissance,
// saisonnalité, cohortes, clients événementiels et nouvelles marques.
type kpiProjector struct{}

func (kpiProjector) project(in Input) models.Result {
	keys := SortedMonths(in.History)
	if len(keys) == 0 {
		return models.EmptyResult(WarnNoHistory)
	}
	cfg := in.Config
	res := models.EmptyResult()

	base := ResolveBaseline(in)
	if len(base.Valid) == 0 {
		res.Warnings = append(res.Warnings, WarnBaselineEmpty)
	}
	adj, warnings := newAdjuster(cfg, in.History, in.Overrides)
	res.Warnings = append(res.Warnings, warnings...)

	individual := in.Customer != ""
	var person models.IndividualCustomerConfig
	growth := cfg.KPIs.Growth
	if individual {
		if ic, ok := in.Overrides.Individual[in.Customer]; ok {
			person = ic
			growth = ic.Growth
		}
	}

	pop := newPopulation(cfg, base.Customers, individual)
	avg := newAverageRevenue(cfg, base.AvgRevenue, individual)
	events := newEventOverlay(base.EventStart, in.Overrides.EventSettings, adj)
	// les nouvelles marques s'ajoutent aussi en mode client individuel
	brands := newBrandOverlay(in.Overrides.NewBrands, cfg.KPIs, adj)

	last := keys[len(keys)-1]
	for i := 1; i <= cfg.Horizon; i++ {
		month := addMonths(last, i)
		mIdx := monthIndex(month)

		pop.advance(i, month)
		brandRevenue, brandCustomers := brands.step(month)

		avg.compound(growth)
		monthAvg := avg.current()
		if individual && person.ChangeMonth != "" && month >= person.ChangeMonth {
			monthAvg *= 1 + person.ChangePct/100
		}
		monthAvg = adj.apply(monthAvg, mIdx)

		normal := pop.revenue(i, monthAvg) + brandRevenue
		if individual && person.Skips(month) {
			normal = 0
		}
		eventRevenue := events.revenue(i, month)

		totalCustomers := pop.customers(i) + brandCustomers
		count := math.Max(0, totalCustomers)
		perNormal := 0.0
		if count > 0 {
			perNormal = normal / count
		}
		res.Append(models.ForecastDetail{
			Month:               month,
			Kind:                models.DetailForecast,
			NormalRevenue:       normal,
			EventRevenue:        eventRevenue,
			TotalRevenue:        normal + eventRevenue,
			NormalCustomers:     models.Float(count),
			AvgRevenuePerNormal: perNormal,
		})
	}
	return res
}
