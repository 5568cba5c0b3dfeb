package calculator

import "revenue-forecast/pkg/models"

// StoragePreset est le profil saisonnier "opslag", en pourcentages par mois.
var StoragePreset = [12]float64{69, 72, 123, 141, 105, 117, 95, 81, 96, 100, 100, 70}

// DeriveFactors calcule 12 facteurs mensuels normalisés sur 1.0 (= mois moyen).
// Le total d'un mois = revenu normal + revenu des clients événementiels marqués
// includeInSeasonality et non exclus. Les mois à total nul sont ignorés ; un
// mois calendaire sans données garde le facteur 1.0.
func DeriveFactors(h *models.History, settings map[models.CustomerID]models.EventCustomerConfig) [12]float64 {
	var factors, sums, counts [12]float64
	for i := range factors {
		factors[i] = 1
	}
	if h.Len() == 0 {
		return factors
	}
	for _, key := range SortedMonths(h) {
		idx := monthIndex(key)
		if idx < 0 {
			continue
		}
		m := h.Months[key]
		total := m.Normal
		for _, id := range models.SortedCustomers(m.EventPerClient) {
			cfg, ok := settings[id]
			if !ok || cfg.ExcludeFromTarget || !cfg.IncludeInSeasonality {
				continue
			}
			total = total.Add(m.EventPerClient[id])
		}
		if total.IsPositive() {
			sums[idx] += total.InexactFloat64()
			counts[idx]++
		}
	}
	var avgs [12]float64
	overall, nonZero := 0.0, 0
	for i := range avgs {
		if counts[i] > 0 {
			avgs[i] = sums[i] / counts[i]
		}
		if avgs[i] > 0 {
			overall += avgs[i]
			nonZero++
		}
	}
	if nonZero == 0 {
		return factors
	}
	overall /= float64(nonZero)
	for i := range factors {
		if avgs[i] > 0 {
			factors[i] = avgs[i] / overall
		}
	}
	return factors
}

// Seasonality garde côte à côte les facteurs dérivés et les overrides manuels,
// pour que l'appelant puisse afficher "Auto" ou la valeur forcée.
type Seasonality struct {
	Derived   [12]float64  `json:"derived"`
	Overrides [12]*float64 `json:"overrides"`
}

// NewSeasonality dérive les facteurs de l'historique et y attache les overrides.
func NewSeasonality(h *models.History, settings map[models.CustomerID]models.EventCustomerConfig, overrides [12]*float64) Seasonality {
	return Seasonality{Derived: DeriveFactors(h, settings), Overrides: overrides}
}

// Factor retourne le facteur effectif du mois calendaire idx (0..11).
func (s Seasonality) Factor(idx int) float64 {
	if idx < 0 || idx > 11 {
		return 1
	}
	if s.Overrides[idx] != nil {
		return *s.Overrides[idx]
	}
	return s.Derived[idx]
}

// Effective retourne les 12 facteurs après application des overrides.
func (s Seasonality) Effective() [12]float64 {
	var out [12]float64
	for i := range out {
		out[i] = s.Factor(i)
	}
	return out
}

// Overridden indique si le mois idx est forcé manuellement.
func (s Seasonality) Overridden(idx int) bool {
	return idx >= 0 && idx < 12 && s.Overrides[idx] != nil
}

// StoragePresetOverrides convertit StoragePreset en overrides (facteurs).
func StoragePresetOverrides() [12]*float64 {
	var out [12]*float64
	for i, pct := range StoragePreset {
		out[i] = models.Float(pct / 100)
	}
	return out
}
