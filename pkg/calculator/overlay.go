package calculator

import (
	"math"

	"revenue-forecast/pkg/models"
)

// eventOverlay projette chaque client événementiel indépendamment de la
// population normale.
type eventOverlay struct {
	start    map[models.CustomerID]float64
	order    []models.CustomerID
	settings map[models.CustomerID]models.EventCustomerConfig
	adj      adjuster
}

func newEventOverlay(start map[models.CustomerID]float64, settings map[models.CustomerID]models.EventCustomerConfig, adj adjuster) eventOverlay {
	return eventOverlay{start: start, order: models.SortedCustomers(start), settings: settings, adj: adj}
}

// revenue retourne la somme des clients événementiels pour le mois i.
func (e eventOverlay) revenue(i int, month string) float64 {
	mIdx := monthIndex(month)
	sum := 0.0
	for _, id := range e.order {
		cfg := e.settings[id]
		if cfg.ExcludeFromTarget {
			continue
		}
		if cfg.Stop != "" && month >= cfg.Stop {
			continue
		}
		v := e.start[id] * math.Pow(1+cfg.Growth/100, float64(i))
		if cfg.ChangeMonth != "" && month >= cfg.ChangeMonth {
			v *= 1 + cfg.ChangePct/100
		}
		sum += e.adj.apply(v, mIdx)
	}
	return sum
}

// brandState est la copie de travail d'une nouvelle marque pour une passe.
type brandState struct {
	def     models.NewBrand
	cumCust float64
	curRev  float64
}

// brandOverlay simule les nouvelles marques. Les états sont recréés à partir
// des définitions à chaque passe ; les définitions ne sont jamais modifiées.
type brandOverlay struct {
	brands []brandState
	churn  float64
	growth float64
	adj    adjuster
}

func newBrandOverlay(defs []models.NewBrand, kpis models.KPIs, adj adjuster) *brandOverlay {
	b := &brandOverlay{churn: kpis.Churn, growth: kpis.Growth, adj: adj}
	for _, d := range defs {
		b.brands = append(b.brands, brandState{def: d, curRev: d.BaseRev})
	}
	return b
}

// step fait avancer toutes les marques d'un mois et retourne (revenu, clients).
func (b *brandOverlay) step(month string) (float64, float64) {
	mIdx := monthIndex(month)
	revenue, customers := 0.0, 0.0
	for i := range b.brands {
		s := &b.brands[i]
		s.cumCust *= 1 - b.churn/100
		if month >= s.def.Start {
			s.cumCust += s.def.NewCust
		}
		s.curRev *= 1 + b.growth/100
		revenue += s.cumCust * b.adj.dips(s.curRev, mIdx)
		customers += s.cumCust
	}
	return revenue, customers
}
