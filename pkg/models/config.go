package models

import "sort"

/*
CONFIG → paramètres de la prévision
*/

// ForecastMode sélectionne l'algorithme de projection.
type ForecastMode string

const (
	ModeKPI   ForecastMode = "kpi"
	ModeTrend ForecastMode = "trend"
	ModeExp   ForecastMode = "exp"
)

// CustomerMode sélectionne le modèle de croissance clients (mode KPI uniquement).
type CustomerMode string

const (
	CustomersPercent  CustomerMode = "percent"
	CustomersAbsolute CustomerMode = "absolute"
	CustomersManual   CustomerMode = "manual"
)

// BaselineMode : un mois unique ou une plage inclusive.
type BaselineMode string

const (
	BaselineSingle BaselineMode = "single"
	BaselineRange  BaselineMode = "range"
)

// DefaultHorizon est l'horizon de prévision par défaut, en mois.
const DefaultHorizon = 18

// KPIs regroupe les pourcentages pilotés par les sliders.
type KPIs struct {
	Churn       float64 `json:"churn" yaml:"churn"`
	NewBiz      float64 `json:"newBiz" yaml:"new_biz"`
	Growth      float64 `json:"growth" yaml:"growth"`
	DipDecember float64 `json:"dipDec" yaml:"dip_december"`
	DipSummer   float64 `json:"dipBouwvak" yaml:"dip_summer"`
}

// DefaultKPIs : 5% partout.
func DefaultKPIs() KPIs {
	return KPIs{Churn: 5, NewBiz: 5, Growth: 5, DipDecember: 5, DipSummer: 5}
}

// Baseline décrit la période servant aux valeurs de départ.
type Baseline struct {
	Mode  BaselineMode `json:"mode" yaml:"mode"`
	Month string       `json:"month" yaml:"month"` // "YYYY-MM"
	From  string       `json:"from" yaml:"from"`
	To    string       `json:"to" yaml:"to"`
}

// CustomerGrowth porte les paramètres propres à chaque mode clients.
type CustomerGrowth struct {
	Mode                        CustomerMode       `json:"mode" yaml:"mode"`
	NewCustomersPerMonth        float64            `json:"newCustomersPerMonth" yaml:"new_customers_per_month"`
	AvgRevenuePerCustomerAbs    float64            `json:"avgRevenuePerCustomerAbs" yaml:"avg_revenue_per_customer_abs"`
	AvgRevenuePerCustomerManual float64            `json:"avgRevenuePerCustomerManual" yaml:"avg_revenue_per_customer_manual"`
	OnboardingCurve             float64            `json:"onboardingCurve" yaml:"onboarding_curve"`
	ManualPlan                  map[string]float64 `json:"manualCustomerPlan" yaml:"manual_plan"`
}

// ForecastConfiguration regroupe tous les paramètres réglables d'une passe.
type ForecastConfiguration struct {
	KPIs           KPIs           `json:"kpis" yaml:"kpis"`
	Baseline       Baseline       `json:"baseline" yaml:"baseline"`
	Mode           ForecastMode   `json:"forecastMode" yaml:"mode"`
	UseSeasonality bool           `json:"useSeasonality" yaml:"use_seasonality"`
	Customers      CustomerGrowth `json:"customers" yaml:"customers"`
	Horizon        int            `json:"horizon" yaml:"horizon"`
	ExtraYears     bool           `json:"showExtraYears" yaml:"extra_years"`
}

// DefaultForecastConfiguration retourne la configuration de démarrage.
func DefaultForecastConfiguration() ForecastConfiguration {
	return ForecastConfiguration{
		KPIs:     DefaultKPIs(),
		Baseline: Baseline{Mode: BaselineSingle},
		Mode:     ModeKPI,
		Customers: CustomerGrowth{
			Mode:            CustomersPercent,
			OnboardingCurve: 1,
			ManualPlan:      map[string]float64{},
		},
		Horizon: DefaultHorizon,
	}
}

// Clone copie la configuration (le plan manuel est une map).
func (c ForecastConfiguration) Clone() ForecastConfiguration {
	out := c
	out.Customers.ManualPlan = make(map[string]float64, len(c.Customers.ManualPlan))
	for k, v := range c.Customers.ManualPlan {
		out.Customers.ManualPlan[k] = v
	}
	return out
}

/*
FILTERS → sélection active
*/

// Segment filtre sur l'ensemble des articles marqués C&I.
type Segment string

const (
	SegmentAll         Segment = ""
	SegmentCI          Segment = "ci"
	SegmentResidential Segment = "residentieel"
)

// Filters est la sélection active. Une valeur vide signifie "tous".
type Filters struct {
	Supplier       string          `json:"supplier"`
	ArticleGroup   string          `json:"articleGroup"`
	Country        string          `json:"country"`
	Customer       CustomerID      `json:"customer"`
	Segment        Segment         `json:"segment"`
	MarkedArticles map[string]bool `json:"-"`
	DateFrom       string          `json:"dateFrom"` // "YYYY-MM", inclusif
	DateTo         string          `json:"dateTo"`
}

// IndividualCustomer indique si la sélection est réduite à un seul client.
func (f Filters) IndividualCustomer() bool { return f.Customer != "" }

/*
OVERRIDES → tables par entité
*/

// EventCustomerConfig contient les règles propres à un client événementiel.
type EventCustomerConfig struct {
	Growth               float64 `json:"growth"`
	Stop                 string  `json:"stop"`
	IncludeInSeasonality bool    `json:"includeInSeasonality"`
	ChangeMonth          string  `json:"changeMonth"`
	ChangePct            float64 `json:"changePct"`
	ExcludeFromTarget    bool    `json:"excludeFromTarget"`
}

// IndividualCustomerConfig est utilisé quand un seul client est isolé.
type IndividualCustomerConfig struct {
	Growth      float64  `json:"growth"`
	ChangeMonth string   `json:"changeMonth"`
	ChangePct   float64  `json:"changePct"`
	SkipMonths  []string `json:"skipMonths"`
}

// Skips indique si le mois doit être forcé à zéro.
func (c IndividualCustomerConfig) Skips(month string) bool {
	for _, m := range c.SkipMonths {
		if m == month {
			return true
		}
	}
	return false
}

// NewBrand décrit le lancement d'une marque sans historique. Seules les valeurs
// de base sont stockées ; l'état courant (clients cumulés, revenu courant) vit
// dans la passe de calcul.
type NewBrand struct {
	Name    string  `json:"name"`
	Start   string  `json:"start"` // "YYYY-MM"
	NewCust float64 `json:"newCust"`
	BaseRev float64 `json:"baseRev"`
}

// Overrides regroupe les tables modifiées entre deux passes.
type Overrides struct {
	// EventCustomers : fournisseur → clients événementiels ("" = tous fournisseurs).
	EventCustomers       map[string]CustomerSet
	EventSettings        map[CustomerID]EventCustomerConfig
	Individual           map[CustomerID]IndividualCustomerConfig
	SeasonalityOverrides [12]*float64
	NewBrands            []NewBrand
}

// NewOverrides retourne des tables vides.
func NewOverrides() Overrides {
	return Overrides{
		EventCustomers: map[string]CustomerSet{},
		EventSettings:  map[CustomerID]EventCustomerConfig{},
		Individual:     map[CustomerID]IndividualCustomerConfig{},
	}
}

// EventSet retourne les clients événementiels du fournisseur sélectionné.
func (o Overrides) EventSet(supplier string) CustomerSet {
	if s, ok := o.EventCustomers[supplier]; ok {
		return s
	}
	return CustomerSet{}
}

// Excluded indique si le client est retiré de tous les agrégats.
func (o Overrides) Excluded(id CustomerID) bool {
	cfg, ok := o.EventSettings[id]
	return ok && cfg.ExcludeFromTarget
}

// Clone effectue une copie profonde, pour calculer sur un instantané.
func (o Overrides) Clone() Overrides {
	out := NewOverrides()
	for sup, set := range o.EventCustomers {
		out.EventCustomers[sup] = set.Clone()
	}
	for id, cfg := range o.EventSettings {
		out.EventSettings[id] = cfg
	}
	for id, cfg := range o.Individual {
		cfg.SkipMonths = append([]string(nil), cfg.SkipMonths...)
		out.Individual[id] = cfg
	}
	for i, v := range o.SeasonalityOverrides {
		if v != nil {
			out.SeasonalityOverrides[i] = Float(*v)
		}
	}
	out.NewBrands = append([]NewBrand(nil), o.NewBrands...)
	return out
}

// SortedCustomers retourne les clés triées d'une table de configuration.
func SortedCustomers[V any](m map[CustomerID]V) []CustomerID {
	out := make([]CustomerID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
