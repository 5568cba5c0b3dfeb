package calculator

import (
	"math"

	"revenue-forecast/pkg/models"
)

// population modélise l'évolution des clients "core" (hors nouvelles marques)
// pendant une passe. Une implémentation par mode clients.
type population interface {
	// advance applique la dynamique du mois de forecast i (1-based).
	advance(i int, month string)
	// revenue retourne le revenu core du mois pour un revenu moyen donné.
	revenue(i int, monthAvg float64) float64
	// customers retourne le nombre de clients core du mois.
	customers(i int) float64
}

func newPopulation(cfg models.ForecastConfiguration, startCustomers float64, individual bool) population {
	if individual {
		return &individualCustomer{base: startCustomers}
	}
	ramp := Ramp(cfg.Customers.OnboardingCurve)
	switch cfg.Customers.Mode {
	case models.CustomersAbsolute:
		return &absoluteGrowth{
			base:     startCustomers,
			churn:    cfg.KPIs.Churn,
			perMonth: cfg.Customers.NewCustomersPerMonth,
			book:     newCohortBook(ramp),
		}
	case models.CustomersManual:
		return &manualPlan{
			baseline: startCustomers,
			current:  startCustomers,
			previous: startCustomers,
			plan:     cfg.Customers.ManualPlan,
			book:     newCohortBook(ramp),
		}
	default:
		return &percentGrowth{
			base:   startCustomers,
			churn:  cfg.KPIs.Churn,
			newBiz: cfg.KPIs.NewBiz,
			book:   newCohortBook(ramp),
		}
	}
}

// percentGrowth : le churn s'applique à la base, et chaque mois une cohorte
// de base × newBiz% démarre avant le churn du mois.
type percentGrowth struct {
	base   float64
	churn  float64
	newBiz float64
	book   *cohortBook
}

func (p *percentGrowth) advance(i int, _ string) {
	p.book.add(models.Cohort{Customers: p.base * p.newBiz / 100, StartMonth: i})
	p.base *= 1 - p.churn/100
}

func (p *percentGrowth) revenue(i int, monthAvg float64) float64 {
	return p.base*monthAvg + p.book.revenue(i, monthAvg)
}

func (p *percentGrowth) customers(i int) float64 {
	return p.base + p.book.customers(i)
}

// absoluteGrowth : la base reste stable et une cohorte fixe démarre chaque
// mois. Sans acquisition configurée, le churn s'applique à la base.
type absoluteGrowth struct {
	base     float64
	churn    float64
	perMonth float64
	book     *cohortBook
}

func (a *absoluteGrowth) advance(i int, _ string) {
	if a.perMonth == 0 {
		a.base *= 1 - a.churn/100
		return
	}
	a.book.add(models.Cohort{Customers: a.perMonth, StartMonth: i})
}

func (a *absoluteGrowth) revenue(i int, monthAvg float64) float64 {
	return a.base*monthAvg + a.book.revenue(i, monthAvg)
}

func (a *absoluteGrowth) customers(i int) float64 {
	return a.base + a.book.customers(i)
}

// manualPlan lit le nombre de clients saisi pour chaque mois. Une hausse par
// rapport au mois précédent démarre une cohorte ; un mois sans valeur reprend
// la dernière valeur connue. Le revenu = clients de la baseline + cohortes.
type manualPlan struct {
	baseline float64
	current  float64
	previous float64
	plan     map[string]float64
	book     *cohortBook
}

func (m *manualPlan) advance(i int, month string) {
	v, ok := m.plan[month]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		m.current = m.previous
		return
	}
	m.current = v
	if delta := v - m.previous; delta > 0 {
		m.book.add(models.Cohort{Customers: delta, StartMonth: i})
	}
	m.previous = v
}

func (m *manualPlan) revenue(i int, monthAvg float64) float64 {
	return m.baseline*monthAvg + m.book.revenue(i, monthAvg)
}

func (m *manualPlan) customers(int) float64 { return m.current }

// individualCustomer : un seul client isolé, ni churn ni new business.
type individualCustomer struct {
	base float64
}

func (c *individualCustomer) advance(int, string) {}

func (c *individualCustomer) revenue(_ int, monthAvg float64) float64 {
	return c.base * monthAvg
}

func (c *individualCustomer) customers(int) float64 { return c.base }

// averageRevenue suit le revenu moyen par client. Les modes absolute et manual
// peuvent imposer leur propre moyenne, qui compose indépendamment et prime sur
// la moyenne issue de la baseline.
type averageRevenue struct {
	core     float64
	override float64
}

func newAverageRevenue(cfg models.ForecastConfiguration, core float64, individual bool) *averageRevenue {
	a := &averageRevenue{core: core}
	if individual {
		return a
	}
	switch cfg.Customers.Mode {
	case models.CustomersAbsolute:
		a.override = cfg.Customers.AvgRevenuePerCustomerAbs
	case models.CustomersManual:
		a.override = cfg.Customers.AvgRevenuePerCustomerManual
	}
	return a
}

func (a *averageRevenue) compound(growthPct float64) {
	a.core *= 1 + growthPct/100
	if a.override > 0 {
		a.override *= 1 + growthPct/100
	}
}

func (a *averageRevenue) current() float64 {
	if a.override > 0 {
		return a.override
	}
	return a.core
}
