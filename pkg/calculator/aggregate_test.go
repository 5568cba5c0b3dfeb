package calculator

import (
	"testing"

	"github.com/shopspring/decimal"

	"revenue-forecast/pkg/models"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func row(customer string, year, month int, amount float64) models.TransactionRow {
	return models.TransactionRow{
		Customer: models.NewCustomerID(customer),
		Supplier: "ACME",
		Country:  "NL",
		Year:     year,
		Month:    month,
		Amount:   decimal.NewFromFloat(amount),
	}
}

func TestAggregate_SplitsNormalAndEvent(t *testing.T) {
	rows := []models.TransactionRow{
		row("A", 2025, 1, 100),
		row("B", 2025, 1, 50),
		row("EV", 2025, 1, 300),
		row("A", 2025, 2, 80),
	}
	h := Aggregate(rows, models.Filters{}, models.NewCustomerSet("EV"), nil)

	jan := h.Months["2025-01"]
	if !jan.Normal.Equal(dec(150)) || !jan.Event.Equal(dec(300)) {
		t.Fatalf("jan: got normal=%v event=%v, want 150/300", jan.Normal, jan.Event)
	}
	if got := jan.EventPerClient["EV"]; !got.Equal(dec(300)) {
		t.Fatalf("eventPerClient: got %v, want 300", got)
	}
	if got := h.EventByClient["EV"]["2025-01"]; !got.Equal(dec(300)) {
		t.Fatalf("eventByClient: got %v, want 300", got)
	}
	if h.Len() != 2 {
		t.Fatalf("got %d months, want 2", h.Len())
	}
}

func TestAggregate_ConservesFilteredRevenue(t *testing.T) {
	rows := []models.TransactionRow{
		row("A", 2024, 12, 10.5),
		row("B", 2025, 1, 20.25),
		row("EV", 2025, 1, 7),
		row("C", 2025, 3, 1),
	}
	h := Aggregate(rows, models.Filters{}, models.NewCustomerSet("EV"), nil)
	sum := decimal.Zero
	for _, m := range h.Months {
		sum = sum.Add(m.Total())
	}
	if !sum.Equal(decimal.RequireFromString("38.75")) {
		t.Fatalf("got %v, want 38.75", sum)
	}
}

func TestAggregate_ExactSumsOnLargeAndFractionalAmounts(t *testing.T) {
	amounts := []string{"0.1", "0.2", "0.3", "1e16", "-1e16", "0.7", "19.99", "0.01"}
	customers := []string{"A", "EV", "B"}
	var rows []models.TransactionRow
	want := decimal.Zero
	for i, a := range amounts {
		amount := decimal.RequireFromString(a)
		want = want.Add(amount)
		rows = append(rows, models.TransactionRow{
			Customer: models.NewCustomerID(customers[i%3]),
			Year:     2025,
			Month:    i%3 + 1,
			Amount:   amount,
		})
	}
	h := Aggregate(rows, models.Filters{}, models.NewCustomerSet("EV"), nil)

	got := decimal.Zero
	for _, m := range h.Months {
		got = got.Add(m.Total())
	}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !want.Equal(decimal.RequireFromString("21.3")) {
		t.Fatalf("input sum: got %v, want 21.3", want)
	}
}

func TestAggregate_CreditNoteNetsWithinMonth(t *testing.T) {
	rows := []models.TransactionRow{
		row("A", 2025, 1, 100),
		row("A", 2025, 1, -30),
		row("B", 2025, 2, -20),
	}
	h := Aggregate(rows, models.Filters{}, nil, nil)
	if got := h.Months["2025-01"].Normal; !got.Equal(dec(70)) {
		t.Fatalf("jan: got %v, want 70", got)
	}
	// pas de plancher : le mois reste négatif
	if got := h.Months["2025-02"].Normal; !got.Equal(dec(-20)) {
		t.Fatalf("feb: got %v, want -20", got)
	}
}

func TestAggregate_ExcludedCustomerDisappears(t *testing.T) {
	rows := []models.TransactionRow{
		row("A", 2025, 1, 100),
		row("X", 2025, 1, 999),
		row("X", 2025, 2, 999),
	}
	settings := map[models.CustomerID]models.EventCustomerConfig{"X": {ExcludeFromTarget: true}}
	h := Aggregate(rows, models.Filters{}, models.NewCustomerSet("X"), settings)

	if got := h.Months["2025-01"].Total(); !got.Equal(dec(100)) {
		t.Fatalf("jan total: got %v, want 100", got)
	}
	// le mois existe mais reste vide
	feb, ok := h.Months["2025-02"]
	if !ok || !feb.Total().IsZero() {
		t.Fatalf("feb: got %+v (present=%v), want empty bucket", feb, ok)
	}
	if _, ok := h.EventByClient["X"]; ok {
		t.Fatal("excluded customer should not have an event series")
	}
	counts := NormalCustomerCounts(rows, models.Filters{}, models.CustomerSet{}, settings)
	if counts["2025-01"] != 1 {
		t.Fatalf("normal count: got %d, want 1", counts["2025-01"])
	}
}

func TestFilterRows(t *testing.T) {
	rows := []models.TransactionRow{
		{Customer: "A", Supplier: "S1", Article: "pv", Country: "NL", Year: 2025, Month: 1, Amount: dec(1)},
		{Customer: "B", Supplier: "S2", Article: "pv", Country: "BE", Year: 2025, Month: 2, Amount: dec(1)},
		{Customer: "C", Supplier: "S1", Article: "bat", Country: "NL", Year: 2025, Month: 3, Amount: dec(1)},
	}
	marked := map[string]bool{"pv": true}

	cases := []struct {
		name string
		f    models.Filters
		want int
	}{
		{"all", models.Filters{}, 3},
		{"supplier", models.Filters{Supplier: "S1"}, 2},
		{"country", models.Filters{Country: "BE"}, 1},
		{"customer", models.Filters{Customer: "C"}, 1},
		{"ci", models.Filters{Segment: models.SegmentCI, MarkedArticles: marked}, 2},
		{"residential", models.Filters{Segment: models.SegmentResidential, MarkedArticles: marked}, 1},
		{"date range", models.Filters{DateFrom: "2025-02", DateTo: "2025-03"}, 2},
	}
	for _, c := range cases {
		if got := len(FilterRows(rows, c.f)); got != c.want {
			t.Errorf("%s: got %d rows, want %d", c.name, got, c.want)
		}
	}
}

func TestFilterRows_SkipsInvalidMonths(t *testing.T) {
	rows := []models.TransactionRow{
		row("A", 2024, 12, 10),
		row("A", 2024, 13, 10),
		row("A", 2025, 0, 10),
	}
	got := FilterRows(rows, models.Filters{})
	if len(got) != 1 || got[0].MonthKey() != "2024-12" {
		t.Fatalf("got %v, want only 2024-12", got)
	}
	h := Aggregate(rows, models.Filters{}, nil, nil)
	if h.Len() != 1 || h.Has("2024-13") {
		t.Fatalf("got %d months, want 1", h.Len())
	}
}

func TestNormalCustomerCounts_SkipsEventCustomers(t *testing.T) {
	rows := []models.TransactionRow{
		row("A", 2025, 1, 1),
		row("A", 2025, 1, 1),
		row("B", 2025, 1, 1),
		row("EV", 2025, 1, 1),
	}
	counts := NormalCustomerCounts(rows, models.Filters{}, models.NewCustomerSet("EV"), nil)
	if counts["2025-01"] != 2 {
		t.Fatalf("got %d, want 2", counts["2025-01"])
	}
	active := ActiveCustomerCounts(rows, models.Filters{})
	if active["2025-01"] != 3 {
		t.Fatalf("active: got %d, want 3", active["2025-01"])
	}
}

func TestHistoricalDetails(t *testing.T) {
	h := Aggregate([]models.TransactionRow{row("A", 2025, 1, 60), row("B", 2025, 1, 40)}, models.Filters{}, nil, nil)
	details := HistoricalDetails(h, map[string]int{"2025-01": 2})
	if len(details) != 1 {
		t.Fatalf("got %d details, want 1", len(details))
	}
	d := details[0]
	if d.Kind != models.DetailHistorical || d.TotalRevenue != 100 || d.AvgRevenuePerNormal != 50 {
		t.Fatalf("unexpected detail: %+v", d)
	}
}
