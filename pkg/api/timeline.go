package api

import (
	"revenue-forecast/pkg/calculator"
	"revenue-forecast/pkg/models"
	"revenue-forecast/pkg/session"
)

// Timeline est la vue graphique : historique puis prévision sur un même axe.
// Chaque série est alignée sur Labels ; nil = pas de point.
type Timeline struct {
	Grouping     calculator.Grouping `json:"grouping"`
	Labels       []string            `json:"labels"`
	Actual       []*float64          `json:"actual"`
	Normal       []*float64          `json:"normal"`
	Event        []*float64          `json:"event"`
	Trendline    []*float64          `json:"trendline,omitempty"`
	MarketGrowth []*float64          `json:"marketGrowth,omitempty"`
}

func parseGrouping(raw string) (calculator.Grouping, bool) {
	switch g := calculator.Grouping(raw); g {
	case "":
		return calculator.GroupMonth, true
	case calculator.GroupMonth, calculator.GroupQuarter, calculator.GroupYear:
		return g, true
	default:
		return "", false
	}
}

// buildTimeline concatène historique et prévision puis regroupe par bucket.
func buildTimeline(out session.Outcome, g calculator.Grouping) Timeline {
	nh, nf := len(out.History), out.Forecast.Len()
	labels := make([]string, 0, nh+nf)
	actual := make([]*float64, nh+nf)
	normal := make([]*float64, nh+nf)
	event := make([]*float64, nh+nf)
	for i, d := range out.History {
		labels = append(labels, d.Month)
		actual[i] = models.Float(d.TotalRevenue)
	}
	for i, d := range out.Forecast.Details {
		labels = append(labels, d.Month)
		normal[nh+i] = models.Float(d.NormalRevenue)
		event[nh+i] = models.Float(d.EventRevenue)
	}

	series := [][]*float64{actual, normal, event}
	var trend, market []*float64
	if out.Trendline != nil {
		trend = make([]*float64, nh+nf)
		for i, v := range out.Trendline.Fitted {
			trend[i] = models.Float(v)
		}
		// la projection démarre sur le dernier point d'historique
		for i := 1; i < len(out.Trendline.Projection) && nh-1+i < len(trend); i++ {
			trend[nh-1+i] = models.Float(out.Trendline.Projection[i])
		}
		series = append(series, trend)
	}
	if len(out.MarketGrowth) > 0 {
		market = make([]*float64, nh+nf)
		for i, v := range out.MarketGrowth {
			if i < len(market) {
				market[i] = models.Float(v)
			}
		}
		series = append(series, market)
	}

	buckets, grouped := calculator.GroupTimeline(labels, series, g)
	t := Timeline{Grouping: g, Labels: buckets, Actual: grouped[0], Normal: grouped[1], Event: grouped[2]}
	next := 3
	if trend != nil {
		t.Trendline = grouped[next]
		next++
	}
	if market != nil {
		t.MarketGrowth = grouped[next]
	}
	return t
}
