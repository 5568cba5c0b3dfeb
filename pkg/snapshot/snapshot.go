package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"revenue-forecast/pkg/calculator"
	"revenue-forecast/pkg/models"
)

var (
	ErrInvalidSnapshot = errors.New("snapshot invalide")
	ErrNotFound        = errors.New("snapshot introuvable")
)

// allValue est la sélection "tous" du format d'export.
const allValue = "__all"

// maxForecastMonths borne l'horizon lu depuis un snapshot (50 ans).
const maxForecastMonths = 600

// View regroupe les options d'affichage sauvegardées avec la configuration.
type View struct {
	ShowTrendline     bool    `json:"showTrendline"`
	ShowMarketGrowth  bool    `json:"showMarketGrowth"`
	MarketGrowthRate  float64 `json:"marketGrowthRate"`
	ManualSeasonality bool    `json:"hasManualSeasonalityOverrides"`
}

// DefaultMarketGrowthRate est le taux de croissance du marché par défaut (% / mois).
const DefaultMarketGrowthRate = 2

// State est l'état complet qu'un snapshot sauvegarde et restaure.
type State struct {
	Config    models.ForecastConfiguration
	Filters   models.Filters
	Overrides models.Overrides
	View      View
}

// NewState retourne l'état de démarrage.
func NewState() State {
	return State{
		Config:    models.DefaultForecastConfiguration(),
		Filters:   models.Filters{MarkedArticles: map[string]bool{}},
		Overrides: models.NewOverrides(),
		View:      View{ShowTrendline: true, MarketGrowthRate: DefaultMarketGrowthRate},
	}
}

// Clone copie l'état en profondeur.
func (s State) Clone() State {
	out := s
	out.Config = s.Config.Clone()
	out.Overrides = s.Overrides.Clone()
	out.Filters.MarkedArticles = make(map[string]bool, len(s.Filters.MarkedArticles))
	for a, v := range s.Filters.MarkedArticles {
		out.Filters.MarkedArticles[a] = v
	}
	return out
}

// KPIs reprend les curseurs de la prévision KPI.
type KPIs struct {
	Churn      *Number `json:"churn,omitempty"`
	NewBiz     *Number `json:"newBiz,omitempty"`
	Growth     *Number `json:"growth,omitempty"`
	DipDec     *Number `json:"dipDec,omitempty"`
	DipBouwvak *Number `json:"dipBouwvak,omitempty"`
}

// Brand est une nouvelle marque telle qu'exportée.
type Brand struct {
	Name    Text   `json:"name"`
	Start   Text   `json:"start"`
	NewCust Number `json:"newCust"`
	BaseRev Number `json:"baseRev"`
	// CurRev et CumCust sont exportés pour compatibilité ; ils sont recalculés
	// à chaque passe et ignorés au chargement.
	CurRev  Number `json:"curRev"`
	CumCust Number `json:"cumCust"`
}

// EventSettings est le réglage d'un client événementiel.
type EventSettings struct {
	Growth               Number `json:"growth"`
	Stop                 Text   `json:"stop"`
	IncludeInSeasonality Flag   `json:"includeInSeasonality"`
	ChangeMonth          Text   `json:"changeMonth"`
	ChangePct            Number `json:"changePct"`
	ExcludeFromTarget    Flag   `json:"excludeFromTarget"`
}

// IndividualSettings est le réglage d'un client suivi seul.
type IndividualSettings struct {
	Growth      Number `json:"growth"`
	ChangeMonth Text   `json:"changeMonth"`
	ChangePct   Number `json:"changePct"`
	SkipMonths  []Text `json:"skipMonths"`
}

// SeasonalityConfig est la configuration saisonnière nommée ; ses facteurs priment sur
// seasonalityOverrides au chargement.
type SeasonalityConfig struct {
	Name        string    `json:"name"`
	Factors     []*Number `json:"factors"`
	Timestamp   string    `json:"timestamp"`
	Description string    `json:"description"`
}

// Snapshot est le format sérialisé. Tout champ absent (nil) laisse la valeur
// courante inchangée au chargement.
type Snapshot struct {
	KPIs *KPIs `json:"kpis,omitempty"`

	BaselineMode  *Text `json:"baselineMode,omitempty"`
	BaselineMonth *Text `json:"baselineMonth,omitempty"`
	BaselineFrom  *Text `json:"baselineFrom,omitempty"`
	BaselineTo    *Text `json:"baselineTo,omitempty"`

	ForecastMode   *Text `json:"forecastMode,omitempty"`
	UseSeasonality *Flag `json:"useSeasonality,omitempty"`

	CustomerMode                *Text                  `json:"customerMode,omitempty"`
	NewCustomersPerMonth        *Number                `json:"newCustomersPerMonth,omitempty"`
	OnboardingCurve             *Number                `json:"onboardingCurve,omitempty"`
	AvgRevenuePerCustomerAbs    *Number                `json:"avgRevenuePerCustomerAbs,omitempty"`
	AvgRevenuePerCustomerManual *Number                `json:"avgRevenuePerCustomerManual,omitempty"`
	ManualCustomerPlan          Pairs[json.RawMessage] `json:"manualCustomerPlan"`

	ShowExtraYears   *Flag   `json:"showExtraYears,omitempty"`
	ForecastMonths   *Number `json:"forecastMonths,omitempty"`
	ShowTrendline    *Flag   `json:"showTrendline,omitempty"`
	ShowMarketGrowth *Flag   `json:"showMarketGrowth,omitempty"`
	MarketGrowthRate *Number `json:"marketGrowthRate,omitempty"`

	SelectedSupplier     *Text `json:"selectedSupplier,omitempty"`
	SelectedArtikelgroep *Text `json:"selectedArtikelgroep,omitempty"`
	SelectedCountry      *Text `json:"selectedCountry,omitempty"`
	SelectedCustomer     *Text `json:"selectedCustomer,omitempty"`
	SelectedSegment      *Text `json:"selectedSegment,omitempty"`
	DateFilterFrom       *Text `json:"dateFilterFrom,omitempty"`
	DateFilterTo         *Text `json:"dateFilterTo,omitempty"`

	CIArtikelen []Text `json:"ciArtikelen"`
	// ancien nom de ciArtikelen, lu seulement
	CIArtikelgroepen []Text `json:"ciArtikelgroepen,omitempty"`

	NewSuppliers               []Brand                   `json:"newSuppliers"`
	EventCustomers             Pairs[[]Text]             `json:"eventCustomers"`
	EventSettings              Pairs[EventSettings]      `json:"eventSettings"`
	IndividualCustomerSettings Pairs[IndividualSettings] `json:"individualCustomerSettings"`

	SeasonalityOverrides          []*Number          `json:"seasonalityOverrides"`
	HasManualSeasonalityOverrides *Flag              `json:"hasManualSeasonalityOverrides,omitempty"`
	SeasonalityConfig             *SeasonalityConfig `json:"seasonalityConfig,omitempty"`
}

// Decode lit un snapshot JSON. Un JSON mal formé (virgules en trop, guillemets
// simples, texte tronqué) est réparé avant une seconde tentative.
func Decode(raw []byte) (Snapshot, error) {
	var s Snapshot
	err := decodeObject(raw, &s)
	if err == nil {
		return s, nil
	}
	repaired, repairErr := jsonrepair.RepairJSON(string(raw))
	if repairErr != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	s = Snapshot{}
	if err := decodeObject([]byte(repaired), &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return s, nil
}

func decodeObject(raw []byte, s *Snapshot) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("snapshot n'est pas un objet")
	}
	return json.Unmarshal(trimmed, s)
}

func text(s string) *Text {
	t := Text(s)
	return &t
}

func number(v float64) *Number {
	n := Number(v)
	return &n
}

func flag(b bool) *Flag {
	f := Flag(b)
	return &f
}

// fromAll convertit la sélection "__all" en filtre vide.
func fromAll(v Text) string {
	if v == allValue {
		return ""
	}
	return string(v)
}

func toAll(s string) *Text {
	if s == "" {
		return text(allValue)
	}
	return text(s)
}

// Make sérialise l'état courant. Les tables sont triées par clé.
func Make(st State, now time.Time) Snapshot {
	cfg := st.Config
	s := Snapshot{
		KPIs: &KPIs{
			Churn:      number(cfg.KPIs.Churn),
			NewBiz:     number(cfg.KPIs.NewBiz),
			Growth:     number(cfg.KPIs.Growth),
			DipDec:     number(cfg.KPIs.DipDecember),
			DipBouwvak: number(cfg.KPIs.DipSummer),
		},
		BaselineMode:                text(string(cfg.Baseline.Mode)),
		BaselineMonth:               text(cfg.Baseline.Month),
		BaselineFrom:                text(cfg.Baseline.From),
		BaselineTo:                  text(cfg.Baseline.To),
		ForecastMode:                text(string(cfg.Mode)),
		UseSeasonality:              flag(cfg.UseSeasonality),
		CustomerMode:                text(string(cfg.Customers.Mode)),
		NewCustomersPerMonth:        number(cfg.Customers.NewCustomersPerMonth),
		OnboardingCurve:             number(cfg.Customers.OnboardingCurve),
		AvgRevenuePerCustomerAbs:    number(cfg.Customers.AvgRevenuePerCustomerAbs),
		AvgRevenuePerCustomerManual: number(cfg.Customers.AvgRevenuePerCustomerManual),
		ManualCustomerPlan:          Pairs[json.RawMessage]{},
		ShowExtraYears:              flag(cfg.ExtraYears),
		ForecastMonths:              number(float64(cfg.Horizon)),
		ShowTrendline:               flag(st.View.ShowTrendline),
		ShowMarketGrowth:            flag(st.View.ShowMarketGrowth),
		MarketGrowthRate:            number(st.View.MarketGrowthRate),
		SelectedSupplier:            toAll(st.Filters.Supplier),
		SelectedArtikelgroep:        toAll(st.Filters.ArticleGroup),
		SelectedCountry:             toAll(st.Filters.Country),
		SelectedCustomer:            toAll(string(st.Filters.Customer)),
		SelectedSegment:             toAll(string(st.Filters.Segment)),
		DateFilterFrom:              text(st.Filters.DateFrom),
		DateFilterTo:                text(st.Filters.DateTo),
		CIArtikelen:                 []Text{},
		NewSuppliers:                []Brand{},
		EventCustomers:              Pairs[[]Text]{},
		EventSettings:               Pairs[EventSettings]{},
		IndividualCustomerSettings:  Pairs[IndividualSettings]{},
		SeasonalityOverrides:        make([]*Number, 12),
	}
	s.HasManualSeasonalityOverrides = flag(st.View.ManualSeasonality)

	months := make([]string, 0, len(cfg.Customers.ManualPlan))
	for m := range cfg.Customers.ManualPlan {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		v, _ := json.Marshal(cfg.Customers.ManualPlan[m])
		s.ManualCustomerPlan = append(s.ManualCustomerPlan, Pair[json.RawMessage]{Key: m, Value: v})
	}

	articles := make([]string, 0, len(st.Filters.MarkedArticles))
	for a, marked := range st.Filters.MarkedArticles {
		if marked {
			articles = append(articles, a)
		}
	}
	sort.Strings(articles)
	for _, a := range articles {
		s.CIArtikelen = append(s.CIArtikelen, Text(a))
	}

	for _, b := range st.Overrides.NewBrands {
		s.NewSuppliers = append(s.NewSuppliers, Brand{
			Name:    Text(b.Name),
			Start:   Text(b.Start),
			NewCust: Number(b.NewCust),
			BaseRev: Number(b.BaseRev),
			CurRev:  Number(b.BaseRev),
		})
	}

	suppliers := make([]string, 0, len(st.Overrides.EventCustomers))
	for sup := range st.Overrides.EventCustomers {
		suppliers = append(suppliers, sup)
	}
	sort.Strings(suppliers)
	for _, sup := range suppliers {
		ids := models.SortedCustomers(st.Overrides.EventCustomers[sup])
		list := make([]Text, 0, len(ids))
		for _, id := range ids {
			list = append(list, Text(id))
		}
		key := sup
		if key == "" {
			key = allValue
		}
		s.EventCustomers = append(s.EventCustomers, Pair[[]Text]{Key: key, Value: list})
	}

	for _, id := range models.SortedCustomers(st.Overrides.EventSettings) {
		c := st.Overrides.EventSettings[id]
		s.EventSettings = append(s.EventSettings, Pair[EventSettings]{Key: string(id), Value: EventSettings{
			Growth:               Number(c.Growth),
			Stop:                 Text(c.Stop),
			IncludeInSeasonality: Flag(c.IncludeInSeasonality),
			ChangeMonth:          Text(c.ChangeMonth),
			ChangePct:            Number(c.ChangePct),
			ExcludeFromTarget:    Flag(c.ExcludeFromTarget),
		}})
	}

	for _, id := range models.SortedCustomers(st.Overrides.Individual) {
		c := st.Overrides.Individual[id]
		var skips []Text
		for _, m := range c.SkipMonths {
			skips = append(skips, Text(m))
		}
		s.IndividualCustomerSettings = append(s.IndividualCustomerSettings, Pair[IndividualSettings]{Key: string(id), Value: IndividualSettings{
			Growth:      Number(c.Growth),
			ChangeMonth: Text(c.ChangeMonth),
			ChangePct:   Number(c.ChangePct),
			SkipMonths:  skips,
		}})
	}

	for i, v := range st.Overrides.SeasonalityOverrides {
		if v != nil {
			s.SeasonalityOverrides[i] = number(*v)
		}
	}
	s.SeasonalityConfig = &SeasonalityConfig{
		Name:        "Huidige seizoensindex configuratie",
		Factors:     s.SeasonalityOverrides,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Description: "Maandfactoren voor seizoensindex",
	}
	return s
}

// Apply applique le snapshot sur st. Seuls les champs présents sont appliqués.
func Apply(s Snapshot, st *State) {
	cfg := &st.Config
	if k := s.KPIs; k != nil {
		setNumber(&cfg.KPIs.Churn, k.Churn)
		setNumber(&cfg.KPIs.NewBiz, k.NewBiz)
		setNumber(&cfg.KPIs.Growth, k.Growth)
		setNumber(&cfg.KPIs.DipDecember, k.DipDec)
		setNumber(&cfg.KPIs.DipSummer, k.DipBouwvak)
	}
	if s.BaselineMode != nil {
		cfg.Baseline.Mode = models.BaselineMode(*s.BaselineMode)
	}
	setMonth(&cfg.Baseline.Month, s.BaselineMonth)
	setMonth(&cfg.Baseline.From, s.BaselineFrom)
	setMonth(&cfg.Baseline.To, s.BaselineTo)
	if s.ForecastMode != nil {
		cfg.Mode = models.ForecastMode(*s.ForecastMode)
	}
	setFlag(&cfg.UseSeasonality, s.UseSeasonality)
	if s.CustomerMode != nil {
		cfg.Customers.Mode = models.CustomerMode(*s.CustomerMode)
	}
	setNumber(&cfg.Customers.NewCustomersPerMonth, s.NewCustomersPerMonth)
	setNumber(&cfg.Customers.OnboardingCurve, s.OnboardingCurve)
	setNumber(&cfg.Customers.AvgRevenuePerCustomerAbs, s.AvgRevenuePerCustomerAbs)
	setNumber(&cfg.Customers.AvgRevenuePerCustomerManual, s.AvgRevenuePerCustomerManual)
	if s.ManualCustomerPlan != nil {
		cfg.Customers.ManualPlan = map[string]float64{}
		for _, e := range s.ManualCustomerPlan {
			if v, ok := planValue(e.Value); ok && calculator.ValidMonth(e.Key) {
				cfg.Customers.ManualPlan[e.Key] = v
			}
		}
	}
	setFlag(&cfg.ExtraYears, s.ShowExtraYears)
	if n := s.ForecastMonths; n != nil && *n >= 1 && *n <= maxForecastMonths {
		cfg.Horizon = int(*n)
	}

	setFlag(&st.View.ShowTrendline, s.ShowTrendline)
	setFlag(&st.View.ShowMarketGrowth, s.ShowMarketGrowth)
	if s.MarketGrowthRate != nil {
		st.View.MarketGrowthRate = float64(*s.MarketGrowthRate)
		if st.View.MarketGrowthRate == 0 {
			st.View.MarketGrowthRate = DefaultMarketGrowthRate
		}
	}
	setFlag(&st.View.ManualSeasonality, s.HasManualSeasonalityOverrides)

	f := &st.Filters
	if s.SelectedSupplier != nil {
		f.Supplier = fromAll(*s.SelectedSupplier)
	}
	if s.SelectedArtikelgroep != nil {
		f.ArticleGroup = fromAll(*s.SelectedArtikelgroep)
	}
	if s.SelectedCountry != nil {
		f.Country = fromAll(*s.SelectedCountry)
	}
	if s.SelectedCustomer != nil {
		f.Customer = models.NewCustomerID(fromAll(*s.SelectedCustomer))
	}
	if s.SelectedSegment != nil {
		f.Segment = models.Segment(fromAll(*s.SelectedSegment))
	}
	setMonth(&f.DateFrom, s.DateFilterFrom)
	setMonth(&f.DateTo, s.DateFilterTo)
	articles := s.CIArtikelen
	if articles == nil {
		articles = s.CIArtikelgroepen
	}
	if articles != nil {
		f.MarkedArticles = make(map[string]bool, len(articles))
		for _, a := range articles {
			if a != "" {
				f.MarkedArticles[string(a)] = true
			}
		}
	}

	o := &st.Overrides
	if s.NewSuppliers != nil {
		o.NewBrands = nil
		for _, b := range s.NewSuppliers {
			o.NewBrands = append(o.NewBrands, models.NewBrand{
				Name:    string(b.Name),
				Start:   string(b.Start),
				NewCust: float64(b.NewCust),
				BaseRev: float64(b.BaseRev),
			})
		}
	}
	if s.EventCustomers != nil {
		o.EventCustomers = map[string]models.CustomerSet{}
		for _, e := range s.EventCustomers {
			set := models.CustomerSet{}
			for _, id := range e.Value {
				if id != "" {
					set.Add(models.NewCustomerID(string(id)))
				}
			}
			o.EventCustomers[fromAll(Text(e.Key))] = set
		}
	}
	if s.EventSettings != nil {
		o.EventSettings = map[models.CustomerID]models.EventCustomerConfig{}
		for _, e := range s.EventSettings {
			v := e.Value
			o.EventSettings[models.NewCustomerID(e.Key)] = models.EventCustomerConfig{
				Growth:               float64(v.Growth),
				Stop:                 monthOrEmpty(v.Stop),
				IncludeInSeasonality: bool(v.IncludeInSeasonality),
				ChangeMonth:          monthOrEmpty(v.ChangeMonth),
				ChangePct:            float64(v.ChangePct),
				ExcludeFromTarget:    bool(v.ExcludeFromTarget),
			}
		}
	}
	if s.IndividualCustomerSettings != nil {
		o.Individual = map[models.CustomerID]models.IndividualCustomerConfig{}
		for _, e := range s.IndividualCustomerSettings {
			v := e.Value
			var skips []string
			for _, m := range v.SkipMonths {
				if calculator.ValidMonth(string(m)) {
					skips = append(skips, string(m))
				}
			}
			o.Individual[models.NewCustomerID(e.Key)] = models.IndividualCustomerConfig{
				Growth:      float64(v.Growth),
				ChangeMonth: monthOrEmpty(v.ChangeMonth),
				ChangePct:   float64(v.ChangePct),
				SkipMonths:  skips,
			}
		}
	}

	factors := s.SeasonalityOverrides
	if c := s.SeasonalityConfig; c != nil && len(c.Factors) == 12 {
		factors = c.Factors
	}
	if len(factors) == 12 {
		for i, v := range factors {
			o.SeasonalityOverrides[i] = nil
			if v != nil {
				o.SeasonalityOverrides[i] = models.Float(float64(*v))
			}
		}
	}
}

func setNumber(dst *float64, v *Number) {
	if v != nil {
		*dst = float64(*v)
	}
}

func setText(dst *string, v *Text) {
	if v != nil {
		*dst = string(*v)
	}
}

// setMonth n'applique qu'une clé "YYYY-MM" valide ou vide.
func setMonth(dst *string, v *Text) {
	if v != nil && (*v == "" || calculator.ValidMonth(string(*v))) {
		*dst = string(*v)
	}
}

func monthOrEmpty(v Text) string {
	if calculator.ValidMonth(string(v)) {
		return string(v)
	}
	return ""
}

func setFlag(dst *bool, v *Flag) {
	if v != nil {
		*dst = bool(*v)
	}
}

// planValue n'accepte qu'un nombre fini et positif, ou sa forme texte.
func planValue(raw json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		v = f
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
