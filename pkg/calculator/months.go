package calculator

import (
	"fmt"
	"sort"
	"time"

	"revenue-forecast/pkg/models"
)

// parseMonth("YYYY-MM") -> 1er jour du mois UTC
func parseMonth(key string) (time.Time, error) {
	if len(key) != 7 || key[4] != '-' {
		return time.Time{}, fmt.Errorf("format attendu YYYY-MM (ex: 2025-03)")
	}
	for i, c := range key {
		if i != 4 && (c < '0' || c > '9') {
			return time.Time{}, fmt.Errorf("format attendu YYYY-MM (ex: 2025-03)")
		}
	}
	year := int(key[0]-'0')*1000 + int(key[1]-'0')*100 + int(key[2]-'0')*10 + int(key[3]-'0')
	month := int(key[5]-'0')*10 + int(key[6]-'0')
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("mois invalide")
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// ValidMonth indique si la clé est un "YYYY-MM" valide.
func ValidMonth(key string) bool {
	_, err := parseMonth(key)
	return err == nil
}

func monthsBetweenInclusive(start, end time.Time) []time.Time {
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for !cur.After(last) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

func formatMonth(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// MonthRange retourne les clés de from à to inclus. Vide si l'une des bornes
// est invalide ou si to < from.
func MonthRange(from, to string) []string {
	start, err := parseMonth(from)
	if err != nil {
		return nil
	}
	end, err := parseMonth(to)
	if err != nil {
		return nil
	}
	months := monthsBetweenInclusive(start, end)
	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, formatMonth(m))
	}
	return out
}

// addMonths décale une clé de n mois.
func addMonths(key string, n int) string {
	t, err := parseMonth(key)
	if err != nil {
		return key
	}
	return formatMonth(t.AddDate(0, n, 0))
}

// monthIndex retourne l'index calendaire 0..11 d'une clé ("2025-12" -> 11).
func monthIndex(key string) int {
	t, err := parseMonth(key)
	if err != nil {
		return -1
	}
	return int(t.Month()) - 1
}

// SortedMonths retourne les clés de l'historique en ordre chronologique.
func SortedMonths(h *models.History) []string {
	if h == nil {
		return nil
	}
	keys := make([]string, 0, len(h.Months))
	for k := range h.Months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// historyTotals retourne les clés triées et le total normal+event par mois.
func historyTotals(h *models.History) ([]string, []float64) {
	keys := SortedMonths(h)
	totals := make([]float64, len(keys))
	for i, k := range keys {
		totals[i] = h.Months[k].TotalFloat()
	}
	return keys, totals
}

// ExtendedHorizon calcule l'horizon quand les années supplémentaires sont
// affichées : jusqu'à décembre de (année courante + 3), jamais moins de 18 mois.
func ExtendedHorizon(lastHistory string, now time.Time) int {
	start, err := parseMonth(lastHistory)
	if err != nil {
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	target := time.Date(now.Year()+3, time.December, 1, 0, 0, 0, 0, time.UTC)
	months := 0
	for cur := start; cur.Before(target); cur = cur.AddDate(0, 1, 0) {
		months++
	}
	if months < models.DefaultHorizon {
		return models.DefaultHorizon
	}
	return months
}
