package calculator

import (
	"math"

	"revenue-forecast/pkg/models"
)

// baseRamp : part du revenu complet atteinte aux mois 0, 1 et 2 d'une cohorte.
// À partir du mois 3 la cohorte est entièrement onboardée.
var baseRamp = [3]float64{0.10, 0.40, 0.80}

const rampMonths = len(baseRamp)

// Ramp retourne la rampe d'onboarding pour un gain donné (borné à [0.5, 2]).
// ramp[i] = baseRamp[i]^(1/gain) : un gain > 1 accélère l'onboarding.
func Ramp(gain float64) [3]float64 {
	gain = clampGain(gain)
	var out [3]float64
	for i, v := range baseRamp {
		out[i] = math.Max(0, math.Min(1, math.Pow(v, 1/gain)))
	}
	return out
}

func clampGain(gain float64) float64 {
	if math.IsNaN(gain) || gain == 0 {
		return 1
	}
	return math.Max(0.5, math.Min(2, gain))
}

// OnboardingFactor retourne le facteur d'une cohorte d'âge age (en mois).
// Une cohorte pas encore démarrée (âge négatif) ne contribue pas.
func OnboardingFactor(ramp [3]float64, age int) float64 {
	switch {
	case age < 0:
		return 0
	case age >= rampMonths:
		return 1
	default:
		return ramp[age]
	}
}

// CohortRevenue est la formule de référence : Σ clients × moyenne × facteur(âge)
// pour le mois de forecast month.
func CohortRevenue(cohorts []models.Cohort, month int, monthAvg float64, ramp [3]float64) float64 {
	total := 0.0
	for _, c := range cohorts {
		total += c.Customers * monthAvg * OnboardingFactor(ramp, month-c.StartMonth)
	}
	return total
}

// ClosedFormMultiplier est le raccourci valable quand une cohorte de même
// taille démarre chaque mois 1..month : (month-3 cohortes complètes) + somme
// des rampes des cohortes encore en rodage.
func ClosedFormMultiplier(month int, ramp [3]float64) float64 {
	full := month - rampMonths
	if full < 0 {
		full = 0
	}
	partial := 0.0
	for i := 0; i < rampMonths && i < month; i++ {
		partial += ramp[i]
	}
	return float64(full) + partial
}

// cohortBook suit les cohortes d'une passe. Seules les 3 dernières cohortes
// sont en rodage ; les plus anciennes sont repliées dans matured.
type cohortBook struct {
	ramp    [3]float64
	recent  [rampMonths]models.Cohort
	n       int
	matured float64
}

func newCohortBook(ramp [3]float64) *cohortBook {
	return &cohortBook{ramp: ramp}
}

// add enregistre une cohorte. Les cohortes arrivent par mois croissant.
func (b *cohortBook) add(c models.Cohort) {
	if c.Customers <= 0 {
		return
	}
	if b.n == rampMonths {
		b.matured += b.recent[0].Customers
		copy(b.recent[:], b.recent[1:])
		b.n--
	}
	b.recent[b.n] = c
	b.n++
}

// settle replie les cohortes devenues complètes au mois month.
func (b *cohortBook) settle(month int) {
	for b.n > 0 && month-b.recent[0].StartMonth >= rampMonths {
		b.matured += b.recent[0].Customers
		copy(b.recent[:], b.recent[1:])
		b.n--
	}
}

// revenue retourne le revenu des cohortes démarrées au mois month.
func (b *cohortBook) revenue(month int, monthAvg float64) float64 {
	b.settle(month)
	total := b.matured * monthAvg
	for _, c := range b.recent[:b.n] {
		total += c.Customers * monthAvg * OnboardingFactor(b.ramp, month-c.StartMonth)
	}
	return total
}

// customers retourne le nombre de clients des cohortes démarrées au mois month.
func (b *cohortBook) customers(month int) float64 {
	total := b.matured
	for _, c := range b.recent[:b.n] {
		if month >= c.StartMonth {
			total += c.Customers
		}
	}
	return total
}
