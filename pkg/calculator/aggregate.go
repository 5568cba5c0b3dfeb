package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"revenue-forecast/pkg/models"
)

// FilterRows applique la sélection active dans l'ordre : fournisseur, segment,
// groupe d'articles, pays, client, plage de dates. Les lignes dont le mois
// n'est pas dans 1..12 sont écartées.
func FilterRows(rows []models.TransactionRow, f models.Filters) []models.TransactionRow {
	out := make([]models.TransactionRow, 0, len(rows))
	for _, r := range rows {
		if r.ValidMonth() && matches(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r models.TransactionRow, f models.Filters) bool {
	if f.Supplier != "" && r.Supplier != f.Supplier {
		return false
	}
	switch f.Segment {
	case models.SegmentCI:
		if !f.MarkedArticles[r.Article] {
			return false
		}
	case models.SegmentResidential:
		if f.MarkedArticles[r.Article] {
			return false
		}
	}
	if f.ArticleGroup != "" && r.ArticleGroup != f.ArticleGroup {
		return false
	}
	if f.Country != "" && r.Country != f.Country {
		return false
	}
	if f.Customer != "" && r.Customer != f.Customer {
		return false
	}
	if f.DateFrom != "" || f.DateTo != "" {
		key := r.MonthKey()
		if f.DateFrom != "" && key < f.DateFrom {
			return false
		}
		if f.DateTo != "" && key > f.DateTo {
			return false
		}
	}
	return true
}

// Aggregate regroupe les lignes filtrées par mois. Les clients exclus de la
// cible sont ignorés totalement ; les autres vont dans le bucket "event" s'ils
// appartiennent à events, sinon dans "normal". Les sommes sont exactes (les
// avoirs négatifs sont nettés dans leur mois).
func Aggregate(rows []models.TransactionRow, f models.Filters, events models.CustomerSet, settings map[models.CustomerID]models.EventCustomerConfig) *models.History {
	h := models.NewHistory()
	for _, r := range FilterRows(rows, f) {
		key := r.MonthKey()
		bucket, ok := h.Months[key]
		if !ok {
			bucket = models.NewMonthlyAggregate()
			h.Months[key] = bucket
		}
		if settings[r.Customer].ExcludeFromTarget {
			continue
		}
		if !events.Has(r.Customer) {
			bucket.Normal = bucket.Normal.Add(r.Amount)
			continue
		}
		bucket.Event = bucket.Event.Add(r.Amount)
		bucket.EventPerClient[r.Customer] = bucket.EventPerClient[r.Customer].Add(r.Amount)
		series, ok := h.EventByClient[r.Customer]
		if !ok {
			series = map[string]decimal.Decimal{}
			h.EventByClient[r.Customer] = series
		}
		series[key] = series[key].Add(r.Amount)
	}
	return h
}

// NormalCustomerCounts compte, par mois, les clients distincts hors clients
// événementiels et hors clients exclus. C'est le dénominateur du revenu moyen
// et la base de la croissance par cohortes.
func NormalCustomerCounts(rows []models.TransactionRow, f models.Filters, events models.CustomerSet, settings map[models.CustomerID]models.EventCustomerConfig) map[string]int {
	sets := NormalCustomerSets(rows, f, events, settings)
	out := make(map[string]int, len(sets))
	for k, s := range sets {
		out[k] = len(s)
	}
	return out
}

// NormalCustomerSets retourne, par mois, l'ensemble des clients normaux actifs.
func NormalCustomerSets(rows []models.TransactionRow, f models.Filters, events models.CustomerSet, settings map[models.CustomerID]models.EventCustomerConfig) map[string]models.CustomerSet {
	out := map[string]models.CustomerSet{}
	for _, r := range FilterRows(rows, f) {
		if events.Has(r.Customer) || settings[r.Customer].ExcludeFromTarget {
			continue
		}
		key := r.MonthKey()
		s, ok := out[key]
		if !ok {
			s = models.CustomerSet{}
			out[key] = s
		}
		s.Add(r.Customer)
	}
	return out
}

// ActiveCustomerCounts compte tous les clients distincts par mois, sans
// distinction normal/événementiel.
func ActiveCustomerCounts(rows []models.TransactionRow, f models.Filters) map[string]int {
	sets := map[string]models.CustomerSet{}
	for _, r := range FilterRows(rows, f) {
		key := r.MonthKey()
		if sets[key] == nil {
			sets[key] = models.CustomerSet{}
		}
		sets[key].Add(r.Customer)
	}
	out := make(map[string]int, len(sets))
	for k, s := range sets {
		out[k] = len(s)
	}
	return out
}

// Customers liste les clients distincts des lignes, triés.
func Customers(rows []models.TransactionRow) []models.CustomerID {
	seen := models.CustomerSet{}
	for _, r := range rows {
		seen.Add(r.Customer)
	}
	out := make([]models.CustomerID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HistoricalDetails produit les enregistrements des mois historiques, de même
// forme que ceux de la prévision.
func HistoricalDetails(h *models.History, counts map[string]int) []models.ForecastDetail {
	keys := SortedMonths(h)
	out := make([]models.ForecastDetail, 0, len(keys))
	for _, k := range keys {
		m := h.Months[k]
		n := float64(counts[k])
		avg := 0.0
		if n > 0 {
			avg = m.Normal.Div(decimal.NewFromInt(int64(counts[k]))).InexactFloat64()
		}
		out = append(out, models.ForecastDetail{
			Month:               k,
			Kind:                models.DetailHistorical,
			NormalRevenue:       m.NormalFloat(),
			EventRevenue:        m.Event.InexactFloat64(),
			TotalRevenue:        m.TotalFloat(),
			NormalCustomers:     models.Float(n),
			AvgRevenuePerNormal: avg,
		})
	}
	return out
}
