package risk

import (
	"errors"
	"math"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestParseProbability(t *testing.T) {
	tests := []struct {
		name  string
		in    float64
		want  float64
		valid bool
	}{
		{"Fraction", 0.35, 0.35, true},
		{"One", 1, 1, true},
		{"Zero", 0, 0, true},
		{"RatingOfFive", 4, 0.8, true},
		{"RatingOfTen", 7, 0.7, true},
		{"Percentage", 65, 0.65, true},
		{"Negative", -0.2, 0, false},
		{"TooLarge", 250, 0, false},
		{"NaN", math.NaN(), 0, false},
		{"Inf", math.Inf(1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseProbability(tt.in)
			if r.IsValid() != tt.valid {
				t.Fatalf("IsValid() = %v, want %v (reason %q)", r.IsValid(), tt.valid, r.Reason())
			}
			if got := r.OrElse(0); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		in    float64
		valid bool
	}{
		{"Zero", 0, true},
		{"Typical", 250_000, true},
		{"AtCap", MaxAmount, true},
		{"AboveCap", MaxAmount * 10, false},
		{"MaxFloat", math.MaxFloat64, false},
		{"Negative", -1, false},
		{"NaN", math.NaN(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseAmount("costImpact", tt.in)
			if r.IsValid() != tt.valid {
				t.Fatalf("IsValid() = %v, want %v (reason %q)", r.IsValid(), tt.valid, r.Reason())
			}
			if tt.valid && r.OrElse(-1) != tt.in {
				t.Errorf("value = %v, want %v", r.OrElse(-1), tt.in)
			}
		})
	}
}

func TestParse_SanitisesPathologicalDraft(t *testing.T) {
	d := Draft{
		ID:                 "R-1",
		Probability:        ptr(1.5),
		CostImpact:         ptr(-10000.0),
		ScheduleImpactDays: ptr(math.Inf(1)),
		Sensitivity:        ptr(2.0),
	}

	rec, issues, err := Parse(d)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if rec.Probability < 0 || rec.Probability > 1 {
		t.Errorf("probability escaped [0,1]: %v", rec.Probability)
	}
	if rec.CostImpact != 0 {
		t.Errorf("negative cost should coerce to 0, got %v", rec.CostImpact)
	}
	if rec.ScheduleImpactDays != 0 {
		t.Errorf("infinite days should coerce to 0, got %v", rec.ScheduleImpactDays)
	}
	if rec.Sensitivity != 0 {
		t.Errorf("out-of-range sensitivity should coerce to 0, got %v", rec.Sensitivity)
	}
	if len(issues) != 3 {
		t.Errorf("expected 3 sanitisation issues, got %d: %+v", len(issues), issues)
	}
}

func TestParse_CostFallbackOrder(t *testing.T) {
	tests := []struct {
		name string
		d    Draft
		want float64
	}{
		{"ExplicitWins", Draft{ID: "a", CostImpact: ptr(5.0), BaseCostImpact: ptr(7.0), Consequence: ptr(5)}, 5},
		{"BaseWhenNoExplicit", Draft{ID: "b", BaseCostImpact: ptr(7.0), Consequence: ptr(5)}, 7},
		{"InvalidExplicitFallsThrough", Draft{ID: "c", CostImpact: ptr(-1.0), BaseCostImpact: ptr(9.0)}, 9},
		{"OversizedFallsThrough", Draft{ID: "f", CostImpact: ptr(math.MaxFloat64), Consequence: ptr(5)}, 1_500_000},
		{"ConsequenceLookup", Draft{ID: "d", Consequence: ptr(3)}, 300_000},
		{"Nothing", Draft{ID: "e"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, err := Parse(tt.d)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if rec.CostImpact != tt.want {
				t.Errorf("CostImpact = %v, want %v", rec.CostImpact, tt.want)
			}
		})
	}
}

func TestParse_RejectsStructuralErrors(t *testing.T) {
	if _, _, err := Parse(Draft{}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("missing id: want ErrInvalidRecord, got %v", err)
	}
	if _, _, err := Parse(Draft{ID: "x", Consequence: ptr(9)}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("consequence 9: want ErrInvalidRecord, got %v", err)
	}
	if _, _, err := Parse(Draft{ID: "   "}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("blank id: want ErrInvalidRecord, got %v", err)
	}
}

func TestParseAll_DuplicatesAndRejections(t *testing.T) {
	drafts := []Draft{
		{ID: "R-1", Probability: ptr(0.5)},
		{ID: ""},
		{ID: "R-1", Probability: ptr(0.9)},
		{ID: "R-2"},
	}

	records, _, rejected := ParseAll(drafts)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Probability != 0.5 {
		t.Errorf("first R-1 should win, got probability %v", records[0].Probability)
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejections, got %+v", rejected)
	}
	if rejected[0].Index != 1 || rejected[1].Index != 2 {
		t.Errorf("unexpected rejection indices: %+v", rejected)
	}
}

func TestDecode_ListAndDocument(t *testing.T) {
	yamlDoc := []byte(`
risks:
  - id: R-1
    title: Supplier insolvency
    probability: 0.4
    baseCostImpact: 200000
    scheduleImpactDays: 12
    mitigation:
      effectiveness: 0.6
      confidence: 0.8
`)
	drafts, err := Decode(yamlDoc)
	if err != nil {
		t.Fatalf("Decode yaml: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != "R-1" || *drafts[0].BaseCostImpact != 200000 {
		t.Fatalf("unexpected drafts: %+v", drafts)
	}
	if drafts[0].Mitigation == nil || *drafts[0].Mitigation.Effectiveness != 0.6 {
		t.Errorf("mitigation not decoded: %+v", drafts[0].Mitigation)
	}

	jsonList := []byte(`[{"id":"R-2","probability":0.1,"costImpact":5000}]`)
	drafts, err = Decode(jsonList)
	if err != nil {
		t.Fatalf("Decode json: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID != "R-2" || *drafts[0].CostImpact != 5000 {
		t.Fatalf("unexpected drafts: %+v", drafts)
	}

	drafts, err = Decode([]byte("   "))
	if err != nil || drafts != nil {
		t.Errorf("empty input should decode to nil, got %v %v", drafts, err)
	}
}
