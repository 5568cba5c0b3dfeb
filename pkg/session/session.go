package session

import (
	"errors"
	"sync"
	"time"

	"revenue-forecast/pkg/calculator"
	"revenue-forecast/pkg/models"
	"revenue-forecast/pkg/snapshot"
)

// ErrNoData : aucune ligne de vente chargée.
var ErrNoData = errors.New("aucune donnée chargée")

// Session garde les lignes chargées et l'état réglable. Les modifications
// passent par le verrou en écriture ; Recompute travaille sur une copie prise
// sous verrou en lecture, jamais sur l'état partagé.
type Session struct {
	mu    sync.RWMutex
	rows  []models.TransactionRow
	state snapshot.State
}

// New crée une session. rows n'est jamais modifié par la session.
func New(rows []models.TransactionRow, st snapshot.State) *Session {
	return &Session{rows: rows, state: st.Clone()}
}

// State retourne une copie de l'état courant.
func (s *Session) State() snapshot.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Update modifie l'état sous verrou exclusif.
func (s *Session) Update(fn func(st *snapshot.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// ApplySnapshot charge un snapshot (application partielle).
func (s *Session) ApplySnapshot(snap snapshot.Snapshot) {
	s.Update(func(st *snapshot.State) { snapshot.Apply(snap, st) })
}

// Snapshot sérialise l'état courant.
func (s *Session) Snapshot(now time.Time) snapshot.Snapshot {
	return snapshot.Make(s.State(), now)
}

// UseStoragePreset remplace les overrides saisonniers par le profil "opslag".
func (s *Session) UseStoragePreset() {
	s.Update(func(st *snapshot.State) {
		st.Overrides.SeasonalityOverrides = calculator.StoragePresetOverrides()
		st.View.ManualSeasonality = true
	})
}

// Customers liste les clients présents dans les lignes filtrées (hors filtre client).
func (s *Session) Customers() []models.CustomerID {
	s.mu.RLock()
	rows := s.rows
	f := s.state.Filters
	s.mu.RUnlock()
	f.Customer = ""
	return calculator.Customers(calculator.FilterRows(rows, f))
}

// Trendline est la droite de tendance sur l'historique et sa projection.
type Trendline struct {
	Fitted     []float64 `json:"fitted"`
	Projection []float64 `json:"projection"`
}

// Outcome est le résultat d'une passe complète.
type Outcome struct {
	History     []models.ForecastDetail        `json:"history"`
	Forecast    models.Result                  `json:"forecast"`
	Individual  bool                           `json:"individual"`
	Baseline    calculator.BaselineStats       `json:"baseline"`
	Observed    calculator.HistoricalKPIs      `json:"observed"`
	Seasonality calculator.Seasonality         `json:"seasonality"`
	Onboarding  *calculator.OnboardingEstimate `json:"onboarding,omitempty"`
	Trend       *calculator.TrendStats         `json:"trend,omitempty"`
	YearTargets []calculator.YearTarget        `json:"yearTargets"`
	Trendline   *Trendline                     `json:"trendline,omitempty"`

	// SeasonalFactors sont les 12 facteurs appliqués (overrides compris).
	SeasonalFactors [12]float64 `json:"seasonalFactors"`
	// ActiveCustomers compte tous les clients distincts par mois d'historique.
	ActiveCustomers map[string]int `json:"activeCustomers"`
	// TrendTarget est le total de la droite de tendance sur la première année prévue.
	TrendTarget float64 `json:"trendTarget"`

	// MarketGrowth est aligné sur history puis forecast.
	MarketGrowth []float64 `json:"marketGrowth,omitempty"`
}

// Recompute agrège les lignes filtrées et calcule la prévision.
func (s *Session) Recompute(now time.Time) (Outcome, error) {
	s.mu.RLock()
	rows := s.rows
	st := s.state.Clone()
	s.mu.RUnlock()

	if len(rows) == 0 {
		return Outcome{}, ErrNoData
	}

	f := st.Filters
	settings := st.Overrides.EventSettings
	events := st.Overrides.EventSet(f.Supplier)
	filtered := calculator.FilterRows(rows, f)

	// les lignes sont déjà filtrées : filtre vide pour la suite
	h := calculator.Aggregate(filtered, models.Filters{}, events, settings)
	sets := calculator.NormalCustomerSets(filtered, models.Filters{}, events, settings)
	counts := make(map[string]int, len(sets))
	for k, set := range sets {
		counts[k] = len(set)
	}

	cfg := st.Config
	months := calculator.SortedMonths(h)
	if cfg.ExtraYears && len(months) > 0 {
		cfg.Horizon = calculator.ExtendedHorizon(months[len(months)-1], now)
	}
	in := calculator.Input{
		History:         h,
		NormalCustomers: counts,
		Config:          cfg,
		Overrides:       st.Overrides,
	}
	if f.IndividualCustomer() {
		in.Customer = f.Customer
	}

	out := Outcome{
		History:         calculator.HistoricalDetails(h, counts),
		Forecast:        calculator.Forecast(in),
		Individual:      f.IndividualCustomer(),
		Baseline:        calculator.ResolveBaseline(in),
		Observed:        calculator.ObservedKPIs(h, sets),
		Seasonality:     calculator.NewSeasonality(h, settings, st.Overrides.SeasonalityOverrides),
		ActiveCustomers: calculator.ActiveCustomerCounts(filtered, models.Filters{}),
	}
	out.SeasonalFactors = out.Seasonality.Effective()
	out.YearTargets = calculator.YearTargets(h, out.Forecast)
	if out.Forecast.Len() > 0 {
		labels := append(append([]string{}, months...), out.Forecast.Labels...)
		out.TrendTarget = calculator.TrendTarget(h, labels, out.Forecast.Labels[0][:4])
	}
	if est, ok := calculator.EstimateOnboarding(filtered); ok {
		out.Onboarding = &est
	}
	if trend, ok := calculator.HistoryTrend(h); ok {
		out.Trend = &trend
	}
	if st.View.ShowTrendline {
		if fitted, projection, ok := calculator.Trendline(h, out.Forecast.Len()); ok {
			out.Trendline = &Trendline{Fitted: fitted, Projection: projection}
		}
	}
	if st.View.ShowMarketGrowth && len(out.History) > 0 {
		out.MarketGrowth = calculator.MarketGrowth(out.History[0].TotalRevenue, st.View.MarketGrowthRate, len(out.History)+out.Forecast.Len())
	}
	return out, nil
}
