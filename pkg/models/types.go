package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

/*
LOAD → types simples pour les lignes de vente historiques.
*/

// CustomerID identifie un client ("Besteld door"). Les espaces superflus sont
// repliés pour que deux exports du même client tombent sur la même clé.
type CustomerID string

// NewCustomerID normalise un identifiant brut.
func NewCustomerID(raw string) CustomerID {
	return CustomerID(strings.Join(strings.Fields(raw), " "))
}

func (c CustomerID) String() string { return string(c) }

// CustomerSet est un ensemble de clients (ex: clients événementiels d'un fournisseur).
type CustomerSet map[CustomerID]struct{}

// NewCustomerSet construit un ensemble à partir d'identifiants bruts.
func NewCustomerSet(ids ...string) CustomerSet {
	s := make(CustomerSet, len(ids))
	for _, id := range ids {
		s[NewCustomerID(id)] = struct{}{}
	}
	return s
}

// Has indique si le client appartient à l'ensemble. Un ensemble nil est vide.
func (s CustomerSet) Has(id CustomerID) bool {
	_, ok := s[id]
	return ok
}

// Add ajoute un client.
func (s CustomerSet) Add(id CustomerID) { s[id] = struct{}{} }

// Clone copie l'ensemble.
func (s CustomerSet) Clone() CustomerSet {
	out := make(CustomerSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// TransactionRow représente une ligne de vente historique telle que chargée
// depuis la source de données. Immuable une fois chargée.
type TransactionRow struct {
	Customer     CustomerID
	Article      string
	ArticleGroup string
	Supplier     string
	Country      string
	Year         int
	Month        int // 1..12
	Amount       decimal.Decimal
}

// ValidMonth indique si Month est un mois calendaire (1..12).
func (r TransactionRow) ValidMonth() bool { return r.Month >= 1 && r.Month <= 12 }

// MonthKey retourne la clé "YYYY-MM" de la ligne.
func (r TransactionRow) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", r.Year, r.Month)
}

/*
COMPUTE → agrégats historiques
*/

// MonthlyAggregate contient le revenu d'un mois, séparé entre clients normaux et
// clients événementiels. Les montants restent exacts ; la conversion en float64
// n'a lieu qu'à l'entrée des calculs de projection.
type MonthlyAggregate struct {
	Normal         decimal.Decimal                `json:"normalRevenue"`
	Event          decimal.Decimal                `json:"eventRevenue"`
	EventPerClient map[CustomerID]decimal.Decimal `json:"eventPerClient"`
}

// NewMonthlyAggregate retourne un bucket vide.
func NewMonthlyAggregate() *MonthlyAggregate {
	return &MonthlyAggregate{EventPerClient: map[CustomerID]decimal.Decimal{}}
}

// Total = normal + event.
func (m *MonthlyAggregate) Total() decimal.Decimal { return m.Normal.Add(m.Event) }

// NormalFloat convertit le revenu normal pour les calculs de projection.
func (m *MonthlyAggregate) NormalFloat() float64 { return m.Normal.InexactFloat64() }

// TotalFloat convertit le total pour les calculs de projection.
func (m *MonthlyAggregate) TotalFloat() float64 { return m.Total().InexactFloat64() }

// History est le résultat de l'agrégation : les buckets mensuels et la série
// de revenu par client événementiel.
type History struct {
	Months        map[string]*MonthlyAggregate
	EventByClient map[CustomerID]map[string]decimal.Decimal
}

// NewHistory retourne un historique vide.
func NewHistory() *History {
	return &History{
		Months:        map[string]*MonthlyAggregate{},
		EventByClient: map[CustomerID]map[string]decimal.Decimal{},
	}
}

// Len retourne le nombre de mois historiques.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Months)
}

// Has indique si le mois est présent.
func (h *History) Has(key string) bool {
	if h == nil {
		return false
	}
	_, ok := h.Months[key]
	return ok
}

// Cohort est un groupe de nouveaux clients acquis au mois de forecast StartMonth (1-based).
type Cohort struct {
	Customers  float64 `json:"customers"`
	StartMonth int     `json:"startMonth"`
}

/*
RESULT → structure exportée par mois
*/

// ForecastDetail est l'enregistrement par mois, de même forme pour l'historique
// et la prévision. NormalCustomers est nil quand le mode ne modélise pas de clients.
type ForecastDetail struct {
	Month               string   `json:"month"`
	Kind                string   `json:"kind"` // "historical" | "forecast"
	NormalRevenue       float64  `json:"normalRevenue"`
	EventRevenue        float64  `json:"eventRevenue"`
	TotalRevenue        float64  `json:"totalRevenue"`
	NormalCustomers     *float64 `json:"normalCustomers"`
	AvgRevenuePerNormal float64  `json:"avgRevenuePerNormal"`
}

const (
	DetailHistorical = "historical"
	DetailForecast   = "forecast"
)

// Result est la sortie du moteur. Tous les tableaux sont alignés sur Labels.
type Result struct {
	Labels    []string         `json:"labels"`
	Normal    []float64        `json:"normal"`
	Event     []float64        `json:"event"`
	Customers []*float64       `json:"customers"`
	Details   []ForecastDetail `json:"details"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// EmptyResult retourne un résultat vide bien formé.
func EmptyResult(warnings ...string) Result {
	return Result{
		Labels:    []string{},
		Normal:    []float64{},
		Event:     []float64{},
		Customers: []*float64{},
		Details:   []ForecastDetail{},
		Warnings:  warnings,
	}
}

// Append ajoute un mois au résultat en gardant les tableaux alignés.
func (r *Result) Append(d ForecastDetail) {
	r.Labels = append(r.Labels, d.Month)
	r.Normal = append(r.Normal, d.NormalRevenue)
	r.Event = append(r.Event, d.EventRevenue)
	r.Customers = append(r.Customers, d.NormalCustomers)
	r.Details = append(r.Details, d)
}

// Len retourne le nombre de mois du résultat.
func (r Result) Len() int { return len(r.Labels) }

// Float retourne un pointeur vers v (helper pour les champs nullable).
func Float(v float64) *float64 { return &v }
