package calculator

import (
	"math"
	"reflect"
	"testing"

	"revenue-forecast/pkg/models"
)

// flatConfig : aucune dynamique, baseline sur month.
func flatConfig(month string, horizon int) models.ForecastConfiguration {
	cfg := models.DefaultForecastConfiguration()
	cfg.KPIs = models.KPIs{}
	cfg.Baseline = models.Baseline{Mode: models.BaselineSingle, Month: month}
	cfg.Horizon = horizon
	return cfg
}

// flatRows : n clients à 10 par mois sur 2024-01..2024-12.
func flatRows(n int) []models.TransactionRow {
	var rows []models.TransactionRow
	for m := 1; m <= 12; m++ {
		for c := 0; c < n; c++ {
			rows = append(rows, row(string(rune('A'+c)), 2024, m, 10))
		}
	}
	return rows
}

func inputFor(rows []models.TransactionRow, cfg models.ForecastConfiguration, o models.Overrides) Input {
	events := o.EventSet("")
	return Input{
		History:         Aggregate(rows, models.Filters{}, events, o.EventSettings),
		NormalCustomers: NormalCustomerCounts(rows, models.Filters{}, events, o.EventSettings),
		Config:          cfg,
		Overrides:       o,
	}
}

func hasWarning(res models.Result, w string) bool {
	for _, got := range res.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

func TestForecast_FlatHistoryStaysFlat(t *testing.T) {
	res := Forecast(inputFor(flatRows(10), flatConfig("2024-12", 6), models.NewOverrides()))
	if res.Len() != 6 {
		t.Fatalf("got %d months, want 6", res.Len())
	}
	if res.Labels[0] != "2025-01" || res.Labels[5] != "2025-06" {
		t.Fatalf("unexpected labels: %v", res.Labels)
	}
	for i := range res.Labels {
		if !almostEqual(res.Normal[i], 100) || res.Event[i] != 0 {
			t.Fatalf("%s: got normal=%v event=%v, want 100/0", res.Labels[i], res.Normal[i], res.Event[i])
		}
		if res.Customers[i] == nil || !almostEqual(*res.Customers[i], 10) {
			t.Fatalf("%s: got customers=%v, want 10", res.Labels[i], res.Customers[i])
		}
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestForecast_ChurnOnly(t *testing.T) {
	cfg := flatConfig("2024-12", 2)
	cfg.KPIs.Churn = 10
	res := Forecast(inputFor(flatRows(10), cfg, models.NewOverrides()))
	if !almostEqual(*res.Customers[0], 9) || !almostEqual(res.Normal[0], 90) {
		t.Fatalf("month 1: got customers=%v revenue=%v, want 9/90", *res.Customers[0], res.Normal[0])
	}
	if !almostEqual(*res.Customers[1], 8.1) || !almostEqual(res.Normal[1], 81) {
		t.Fatalf("month 2: got customers=%v revenue=%v, want 8.1/81", *res.Customers[1], res.Normal[1])
	}
}

func TestForecast_AbsoluteCohorts(t *testing.T) {
	cfg := flatConfig("2023-01", 24) // absent de l'historique → base à zéro
	cfg.Customers.Mode = models.CustomersAbsolute
	cfg.Customers.NewCustomersPerMonth = 5
	cfg.Customers.AvgRevenuePerCustomerAbs = 20
	cfg.Customers.OnboardingCurve = 1

	res := Forecast(inputFor(flatRows(1), cfg, models.NewOverrides()))
	if !hasWarning(res, WarnBaselineEmpty) {
		t.Fatalf("expected baseline warning, got %v", res.Warnings)
	}
	if !almostEqual(res.Normal[0], 10) {
		t.Fatalf("month 1: got %v, want 10", res.Normal[0])
	}
	ramp := Ramp(1)
	for i := range res.Labels {
		want := 5 * 20 * ClosedFormMultiplier(i+1, ramp)
		if !almostEqual(res.Normal[i], want) {
			t.Fatalf("month %d: got %v, want %v", i+1, res.Normal[i], want)
		}
	}
}

func TestForecast_PercentCohortsAddCustomers(t *testing.T) {
	cfg := flatConfig("2024-12", 3)
	cfg.KPIs.NewBiz = 10
	res := Forecast(inputFor(flatRows(10), cfg, models.NewOverrides()))
	// cohorte de 1 client par mois, onboarding 10% puis 40%
	if !almostEqual(*res.Customers[0], 11) || !almostEqual(res.Normal[0], 101) {
		t.Fatalf("month 1: got %v/%v, want 11/101", *res.Customers[0], res.Normal[0])
	}
	if !almostEqual(*res.Customers[1], 12) || !almostEqual(res.Normal[1], 100+4+1) {
		t.Fatalf("month 2: got %v/%v, want 12/105", *res.Customers[1], res.Normal[1])
	}
}

func TestForecast_ManualPlanCarriesForward(t *testing.T) {
	cfg := flatConfig("2024-12", 4)
	cfg.Customers.Mode = models.CustomersManual
	cfg.Customers.ManualPlan = map[string]float64{"2025-01": 12, "2025-03": 11}

	res := Forecast(inputFor(flatRows(10), cfg, models.NewOverrides()))
	wantRevenue := []float64{102, 108, 116, 120}
	wantCustomers := []float64{12, 12, 11, 11}
	for i := range wantRevenue {
		if !almostEqual(res.Normal[i], wantRevenue[i]) || !almostEqual(*res.Customers[i], wantCustomers[i]) {
			t.Fatalf("%s: got %v/%v, want %v/%v", res.Labels[i], res.Normal[i], *res.Customers[i], wantRevenue[i], wantCustomers[i])
		}
	}
}

func TestForecast_EventOverlay(t *testing.T) {
	rows := append(flatRows(1), row("EV", 2024, 12, 100))
	o := models.NewOverrides()
	o.EventCustomers[""] = models.NewCustomerSet("EV")
	o.EventSettings["EV"] = models.EventCustomerConfig{
		Growth:      10,
		Stop:        "2025-04",
		ChangeMonth: "2025-02",
		ChangePct:   50,
	}
	res := Forecast(inputFor(rows, flatConfig("2024-12", 4), o))

	want := []float64{110, 121 * 1.5, 133.1 * 1.5, 0}
	for i := range want {
		if !almostEqual(res.Event[i], want[i]) {
			t.Fatalf("%s: got %v, want %v", res.Labels[i], res.Event[i], want[i])
		}
		if !almostEqual(res.Normal[i], 10) {
			t.Fatalf("%s: normal got %v, want 10", res.Labels[i], res.Normal[i])
		}
	}
}

func TestForecast_ExcludedEventCustomerIgnored(t *testing.T) {
	rows := append(flatRows(1), row("EV", 2024, 12, 100))
	o := models.NewOverrides()
	o.EventCustomers[""] = models.NewCustomerSet("EV")
	o.EventSettings["EV"] = models.EventCustomerConfig{ExcludeFromTarget: true}
	res := Forecast(inputFor(rows, flatConfig("2024-12", 3), o))
	for i := range res.Labels {
		if res.Event[i] != 0 {
			t.Fatalf("%s: got event=%v, want 0", res.Labels[i], res.Event[i])
		}
	}
}

func TestForecast_NewBrand(t *testing.T) {
	cfg := flatConfig("2020-01", 3)
	o := models.NewOverrides()
	o.NewBrands = []models.NewBrand{{Name: "Nova", Start: "2025-02", NewCust: 2, BaseRev: 50}}
	res := Forecast(inputFor(flatRows(1), cfg, o))

	want := []float64{0, 100, 200}
	for i := range want {
		if !almostEqual(res.Normal[i], want[i]) {
			t.Fatalf("%s: got %v, want %v", res.Labels[i], res.Normal[i], want[i])
		}
	}
	if !almostEqual(*res.Customers[2], 4) {
		t.Fatalf("customers: got %v, want 4", *res.Customers[2])
	}
	if o.NewBrands[0].NewCust != 2 || o.NewBrands[0].BaseRev != 50 {
		t.Fatalf("brand definition mutated: %+v", o.NewBrands[0])
	}
}

func TestForecast_Idempotent(t *testing.T) {
	rows := append(flatRows(5), row("EV", 2024, 12, 100), row("EV2", 2024, 11, 40))
	o := models.NewOverrides()
	o.EventCustomers[""] = models.NewCustomerSet("EV", "EV2")
	o.EventSettings["EV"] = models.EventCustomerConfig{Growth: 3, IncludeInSeasonality: true}
	o.NewBrands = []models.NewBrand{{Name: "Nova", Start: "2025-03", NewCust: 1.5, BaseRev: 70}}
	cfg := models.DefaultForecastConfiguration()
	cfg.Baseline = models.Baseline{Mode: models.BaselineRange, From: "2024-10", To: "2024-12"}
	cfg.UseSeasonality = true

	in := inputFor(rows, cfg, o)
	first := Forecast(in)
	second := Forecast(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two passes with identical inputs differ")
	}
}

func TestForecast_SeasonalityDisablesDips(t *testing.T) {
	cfg := flatConfig("2024-12", 12)
	cfg.KPIs.DipDecember = 20
	cfg.UseSeasonality = true
	res := Forecast(inputFor(flatRows(2), cfg, models.NewOverrides()))
	if !hasWarning(res, WarnDipsWithSeasonal) {
		t.Fatalf("expected dip warning, got %v", res.Warnings)
	}
	// historique plat → facteurs à 1 et aucun dip appliqué
	if dec := res.Normal[11]; !almostEqual(dec, 20) {
		t.Fatalf("december: got %v, want 20", dec)
	}
}

func TestForecast_DipsWithoutSeasonality(t *testing.T) {
	cfg := flatConfig("2024-12", 12)
	cfg.KPIs.DipDecember = 20
	cfg.KPIs.DipSummer = 10
	res := Forecast(inputFor(flatRows(2), cfg, models.NewOverrides()))
	if !almostEqual(res.Normal[11], 16) || !almostEqual(res.Normal[6], 18) || !almostEqual(res.Normal[5], 20) {
		t.Fatalf("got dec=%v jul=%v jun=%v", res.Normal[11], res.Normal[6], res.Normal[5])
	}
}

func TestForecast_IndividualCustomer(t *testing.T) {
	rows := []models.TransactionRow{row("C", 2024, 12, 100)}
	cfg := flatConfig("2024-12", 3)
	cfg.KPIs.Churn = 20
	o := models.NewOverrides()
	o.Individual["C"] = models.IndividualCustomerConfig{
		Growth:      10,
		SkipMonths:  []string{"2025-02"},
		ChangeMonth: "2025-03",
		ChangePct:   -50,
	}
	in := inputFor(rows, cfg, o)
	in.Customer = "C"
	res := Forecast(in)

	want := []float64{110, 0, 133.1 * 0.5}
	for i := range want {
		if !almostEqual(res.Normal[i], want[i]) {
			t.Fatalf("%s: got %v, want %v", res.Labels[i], res.Normal[i], want[i])
		}
		if !almostEqual(*res.Customers[i], 1) {
			t.Fatalf("%s: customers got %v, want 1", res.Labels[i], *res.Customers[i])
		}
	}
}

func TestForecast_EmptyHistory(t *testing.T) {
	for _, mode := range []models.ForecastMode{models.ModeKPI, models.ModeTrend, models.ModeExp} {
		cfg := models.DefaultForecastConfiguration()
		cfg.Mode = mode
		res := Forecast(Input{History: models.NewHistory(), Config: cfg, Overrides: models.NewOverrides()})
		if res.Len() != 0 || len(res.Warnings) == 0 {
			t.Fatalf("%s: got %d months, warnings %v", mode, res.Len(), res.Warnings)
		}
		if res.Labels == nil || res.Normal == nil {
			t.Fatalf("%s: empty result should carry empty slices", mode)
		}
	}
}

func TestForecast_Trend(t *testing.T) {
	h := historyOf(map[string]float64{"2025-01": 100, "2025-02": 110, "2025-03": 120})
	cfg := flatConfig("", 3)
	cfg.Mode = models.ModeTrend
	res := Forecast(Input{History: h, Config: cfg})
	want := []float64{130, 140, 150}
	for i := range want {
		if !almostEqual(res.Normal[i], want[i]) {
			t.Fatalf("%s: got %v, want %v", res.Labels[i], res.Normal[i], want[i])
		}
		if res.Customers[i] != nil || res.Event[i] != 0 {
			t.Fatalf("%s: trend should not model customers or events", res.Labels[i])
		}
	}

	short := Forecast(Input{History: historyOf(map[string]float64{"2025-01": 1}), Config: cfg})
	if short.Len() != 0 || !hasWarning(short, WarnTrendTooShort) {
		t.Fatalf("one month: got %+v", short)
	}
}

func TestForecast_Exp(t *testing.T) {
	h := historyOf(map[string]float64{"2025-01": 100, "2025-02": 200, "2025-03": 400})
	cfg := flatConfig("", 2)
	cfg.Mode = models.ModeExp
	res := Forecast(Input{History: h, Config: cfg})
	if !almostEqual(res.Normal[0], 800) || !almostEqual(res.Normal[1], 1600) {
		t.Fatalf("got %v", res.Normal)
	}

	zeros := historyOf(map[string]float64{"2025-01": 0, "2025-02": 0, "2025-03": 0})
	if res := Forecast(Input{History: zeros, Config: cfg}); !hasWarning(res, WarnExpNoRatios) {
		t.Fatalf("expected no-ratio warning, got %v", res.Warnings)
	}
}

func TestGeometricGrowth_SkipsNonPositive(t *testing.T) {
	g, ok := GeometricGrowth([]float64{100, 0, 50, 100, 150})
	if !ok || !almostEqual(g, math.Sqrt(2*1.5)) {
		t.Fatalf("got %v (ok=%v), want sqrt(3)", g, ok)
	}
}

func TestNormalize(t *testing.T) {
	cfg := models.ForecastConfiguration{
		KPIs:    models.KPIs{Churn: math.NaN(), NewBiz: 80, Growth: -3},
		Mode:    "bogus",
		Horizon: 0,
	}
	cfg.Customers.OnboardingCurve = 7
	got := Normalize(cfg)
	if got.KPIs.Churn != 0 || got.KPIs.NewBiz != 50 || got.KPIs.Growth != 0 {
		t.Fatalf("unexpected KPIs: %+v", got.KPIs)
	}
	if got.Mode != models.ModeKPI || got.Customers.Mode != models.CustomersPercent {
		t.Fatalf("unexpected modes: %q %q", got.Mode, got.Customers.Mode)
	}
	if got.Horizon != models.DefaultHorizon || got.Customers.OnboardingCurve != 2 {
		t.Fatalf("got horizon=%d curve=%v", got.Horizon, got.Customers.OnboardingCurve)
	}
}

func TestResolveBaseline_Range(t *testing.T) {
	rows := []models.TransactionRow{}
	for c := 0; c < 10; c++ {
		id := string(rune('A' + c))
		rows = append(rows, row(id, 2025, 1, 10), row(id, 2025, 2, 20))
	}
	cfg := models.DefaultForecastConfiguration()
	cfg.Baseline = models.Baseline{Mode: models.BaselineRange, From: "2024-12", To: "2025-02"}
	stats := ResolveBaseline(inputFor(rows, cfg, models.NewOverrides()))

	if len(stats.Period) != 3 || len(stats.Valid) != 2 {
		t.Fatalf("got period=%v valid=%v", stats.Period, stats.Valid)
	}
	if !almostEqual(stats.Customers, 10) || !almostEqual(stats.AvgRevenue, 15) {
		t.Fatalf("got customers=%v avg=%v, want 10/15", stats.Customers, stats.AvgRevenue)
	}
}

func TestForecast_ContinuesFromBaseline(t *testing.T) {
	cfg := flatConfig("2024-12", 1)
	in := inputFor(flatRows(4), cfg, models.NewOverrides())
	res := Forecast(in)
	last := in.History.Months["2024-12"].TotalFloat()
	if !almostEqual(res.Normal[0], last) {
		t.Fatalf("first forecast month: got %v, want %v", res.Normal[0], last)
	}
}

func TestForecast_IndividualCustomerKeepsNewBrands(t *testing.T) {
	rows := []models.TransactionRow{row("C", 2024, 12, 100)}
	o := models.NewOverrides()
	o.NewBrands = []models.NewBrand{{Name: "Nova", Start: "2025-02", NewCust: 2, BaseRev: 50}}
	in := inputFor(rows, flatConfig("2024-12", 3), o)
	in.Customer = "C"
	res := Forecast(in)

	wantRev := []float64{100, 200, 300}
	wantCust := []float64{1, 3, 5}
	for i := range wantRev {
		if !almostEqual(res.Normal[i], wantRev[i]) || !almostEqual(*res.Customers[i], wantCust[i]) {
			t.Fatalf("%s: got %v/%v, want %v/%v", res.Labels[i], res.Normal[i], *res.Customers[i], wantRev[i], wantCust[i])
		}
	}
}

func TestForecast_MidHistoryBaseline(t *testing.T) {
	rows := flatRows(4)
	for c := 4; c < 7; c++ {
		rows = append(rows, row(string(rune('A'+c)), 2024, 6, 10))
	}
	res := Forecast(inputFor(rows, flatConfig("2024-06", 2), models.NewOverrides()))

	// la prévision démarre après le dernier mois d'historique, au niveau de la baseline
	if res.Labels[0] != "2025-01" || res.Labels[1] != "2025-02" {
		t.Fatalf("labels: got %v, want [2025-01 2025-02]", res.Labels)
	}
	if !almostEqual(*res.Customers[0], 7) || !almostEqual(res.Normal[0], 70) {
		t.Fatalf("got customers=%v normal=%v, want 7/70", *res.Customers[0], res.Normal[0])
	}
}
