package calculator

import (
	"math"

	"revenue-forecast/pkg/models"
)

// Avertissements renvoyés dans Result.Warnings. Le moteur ne retourne jamais
// d'erreur : l'appelant affiche un état "pas de données".
const (
	WarnNoHistory        = "no historical data for the current selection"
	WarnBaselineEmpty    = "baseline period has no historical data; starting values default to zero"
	WarnTrendTooShort    = "trend forecast needs at least 2 historical months"
	WarnExpTooShort      = "exponential forecast needs at least 3 historical months"
	WarnExpNoRatios      = "exponential forecast found no consecutive months with positive revenue"
	WarnDipsWithSeasonal = "december/summer dips ignored while seasonality is active"
)

// Input regroupe tout ce dont une passe de prévision a besoin. L'appelant
// fournit des valeurs figées : Forecast ne modifie rien.
type Input struct {
	History         *models.History
	NormalCustomers map[string]int
	Config          models.ForecastConfiguration
	Overrides       models.Overrides
	// Customer isole un client unique ; vide = population entière.
	Customer models.CustomerID
}

// projector est une variante de mode de prévision.
type projector interface {
	project(in Input) models.Result
}

// Forecast projette l'historique sur l'horizon configuré. Deux appels avec les
// mêmes entrées produisent le même résultat.
func Forecast(in Input) models.Result {
	in.Config = Normalize(in.Config)
	return projectorFor(in.Config.Mode).project(in)
}

func projectorFor(mode models.ForecastMode) projector {
	switch mode {
	case models.ModeTrend:
		return trendProjector{}
	case models.ModeExp:
		return expProjector{}
	default:
		return kpiProjector{}
	}
}

// Normalize remplace les valeurs invalides par des valeurs sûres : NaN → 0,
// KPIs bornés à [0, 50], gain d'onboarding à [0.5, 2], horizon par défaut.
func Normalize(cfg models.ForecastConfiguration) models.ForecastConfiguration {
	cfg.KPIs.Churn = clampPct(cfg.KPIs.Churn)
	cfg.KPIs.NewBiz = clampPct(cfg.KPIs.NewBiz)
	cfg.KPIs.Growth = clampPct(cfg.KPIs.Growth)
	cfg.KPIs.DipDecember = clampPct(cfg.KPIs.DipDecember)
	cfg.KPIs.DipSummer = clampPct(cfg.KPIs.DipSummer)
	switch cfg.Mode {
	case models.ModeKPI, models.ModeTrend, models.ModeExp:
	default:
		cfg.Mode = models.ModeKPI
	}
	switch cfg.Customers.Mode {
	case models.CustomersPercent, models.CustomersAbsolute, models.CustomersManual:
	default:
		cfg.Customers.Mode = models.CustomersPercent
	}
	cfg.Customers.NewCustomersPerMonth = nonNegative(cfg.Customers.NewCustomersPerMonth)
	cfg.Customers.AvgRevenuePerCustomerAbs = nonNegative(cfg.Customers.AvgRevenuePerCustomerAbs)
	cfg.Customers.AvgRevenuePerCustomerManual = nonNegative(cfg.Customers.AvgRevenuePerCustomerManual)
	cfg.Customers.OnboardingCurve = clampGain(cfg.Customers.OnboardingCurve)
	if cfg.Horizon <= 0 {
		cfg.Horizon = models.DefaultHorizon
	}
	return cfg
}

func clampPct(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(50, v))
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// adjuster applique les dips manuels puis, si actif, le facteur saisonnier.
type adjuster struct {
	dipDecember float64
	dipSummer   float64
	seasonal    *Seasonality
}

// newAdjuster construit l'ajustement mensuel. En mode KPI avec saisonnalité,
// les dips manuels sont ignorés pour ne pas appliquer deux fois la baisse.
func newAdjuster(cfg models.ForecastConfiguration, h *models.History, o models.Overrides) (adjuster, []string) {
	a := adjuster{dipDecember: cfg.KPIs.DipDecember, dipSummer: cfg.KPIs.DipSummer}
	if cfg.Mode != models.ModeKPI || !cfg.UseSeasonality {
		return a, nil
	}
	s := NewSeasonality(h, o.EventSettings, o.SeasonalityOverrides)
	a.seasonal = &s
	var warnings []string
	if a.dipDecember != 0 || a.dipSummer != 0 {
		warnings = append(warnings, WarnDipsWithSeasonal)
	}
	a.dipDecember, a.dipSummer = 0, 0
	return a, warnings
}

// dips applique décembre (-dipDecember%) et juillet/août (-dipSummer%).
func (a adjuster) dips(v float64, mIdx int) float64 {
	if mIdx == 11 {
		v *= 1 - a.dipDecember/100
	}
	if mIdx == 6 || mIdx == 7 {
		v *= 1 - a.dipSummer/100
	}
	return v
}

func (a adjuster) apply(v float64, mIdx int) float64 {
	v = a.dips(v, mIdx)
	if a.seasonal != nil {
		v *= a.seasonal.Factor(mIdx)
	}
	return v
}

// totalsOnly construit un résultat où tout le revenu est "normal" et où les
// clients ne sont pas modélisés (modes trend et exp).
func totalsOnly(labels []string, totals []float64) models.Result {
	res := models.EmptyResult()
	for i, month := range labels {
		res.Append(models.ForecastDetail{
			Month:         month,
			Kind:          models.DetailForecast,
			NormalRevenue: totals[i],
			TotalRevenue:  totals[i],
		})
	}
	return res
}
