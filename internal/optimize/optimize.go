package optimize

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"riskquant/internal/stats"

	"github.com/rs/zerolog/log"
)

var (
	// ErrMissingBaseline means no usable neutral P80 is available.
	ErrMissingBaseline = errors.New("missing neutral baseline")
	// ErrInvalidSpendSteps rejects malformed spend step lists.
	ErrInvalidSpendSteps = errors.New("invalid spend steps")
	// ErrInvalidBudget rejects a negative or non-finite budget cap.
	ErrInvalidBudget = errors.New("invalid budget cap")
	// ErrUnsupportedMetric rejects benefit metrics other than P80 reduction.
	ErrUnsupportedMetric = errors.New("unsupported benefit metric")
)

// MetricP80CostReduction is the only supported benefit metric.
const MetricP80CostReduction = "p80CostReduction"

// Materiality sources.
const (
	SourceSnapshot = "snapshot"
	SourceFallback = "probabilityTimesCost"
	SourceEqual    = "equal"
)

// Config holds optimiser defaults.
type Config struct {
	SpendSteps          []float64 `json:"spendSteps" yaml:"spendSteps"`
	BaseK               float64   `json:"baseK" yaml:"baseK"`
	DefaultMaxReduction float64   `json:"defaultMaxReduction" yaml:"defaultMaxReduction"`

	// ContiguousBands makes the budget plan buy each risk's bands in spend order.
	ContiguousBands bool `json:"contiguousBands" yaml:"contiguousBands"`
}

// DefaultConfig returns the stock optimiser settings.
func DefaultConfig() Config {
	return Config{
		SpendSteps:          []float64{0, 25_000, 50_000, 100_000, 200_000},
		BaseK:               1.0 / 100_000,
		DefaultMaxReduction: 0.25,
	}
}

// Request carries per-call overrides. Nil fields use configured defaults.
type Request struct {
	SpendSteps    []float64 `json:"spendSteps,omitempty"`
	BudgetCap     *float64  `json:"budgetCap,omitempty"`
	BenefitMetric string    `json:"benefitMetric,omitempty"`
}

// Band is one interval of a benefit curve, ending at ToSpend.
type Band struct {
	FromSpend         float64 `json:"fromSpend"`
	ToSpend           float64 `json:"toSpend"`
	IncrementalSpend  float64 `json:"incrementalSpend"`
	MarginalBenefit   float64 `json:"marginalBenefit"`
	CumulativeBenefit float64 `json:"cumulativeBenefit"`
	BenefitPerDollar  float64 `json:"benefitPerDollar"`
}

// RiskLeverage is one row of the leverage table.
type RiskLeverage struct {
	RiskID            string   `json:"riskId"`
	Name              string   `json:"name"`
	Rank              int      `json:"rank"`
	MaterialityWeight float64  `json:"materialityWeight"`
	MaterialitySource string   `json:"materialitySource"`
	Response          Response `json:"response"`
	Curve             []Band   `json:"curve"`
	BestBand          Band     `json:"bestBand"`
	LeverageScore     float64  `json:"leverageScore"`
}

// Allocation is one band bought by the budget plan.
type Allocation struct {
	RiskID           string  `json:"riskId"`
	Name             string  `json:"name"`
	FromSpend        float64 `json:"fromSpend"`
	ToSpend          float64 `json:"toSpend"`
	Spend            float64 `json:"spend"`
	Benefit          float64 `json:"benefit"`
	BenefitPerDollar float64 `json:"benefitPerDollar"`
}

// Plan is a greedy allocation of a capped budget.
type Plan struct {
	BudgetCap             float64      `json:"budgetCap"`
	AllocatedSpend        float64      `json:"allocatedSpend"`
	RemainingBudget       float64      `json:"remainingBudget"`
	TotalProjectedBenefit float64      `json:"totalProjectedBenefit"`
	Allocations           []Allocation `json:"allocations"`
}

// Result is the full optimisation output.
type Result struct {
	Source        string         `json:"source"`
	BenefitMetric string         `json:"benefitMetric"`
	NeutralP80    float64        `json:"neutralP80"`
	SpendSteps    []float64      `json:"spendSteps"`
	Risks         []RiskLeverage `json:"risks"`
	FallbackCount int            `json:"fallbackCount"`
	Plan          *Plan          `json:"plan,omitempty"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}

// Optimizer ranks mitigation leverage and allocates budgets.
type Optimizer struct {
	cfg Config
}

// NewOptimizer builds an optimiser, filling unset fields from DefaultConfig.
func NewOptimizer(cfg Config) *Optimizer {
	def := DefaultConfig()
	if len(cfg.SpendSteps) == 0 {
		cfg.SpendSteps = def.SpendSteps
	}
	if !(cfg.BaseK > 0) || !stats.IsFinite(cfg.BaseK) {
		cfg.BaseK = def.BaseK
	}
	if !(cfg.DefaultMaxReduction > 0) || cfg.DefaultMaxReduction > 1 {
		cfg.DefaultMaxReduction = def.DefaultMaxReduction
	}
	return &Optimizer{cfg: cfg}
}

// ValidateSpendSteps requires at least two finite, non-negative, ascending
// steps starting at 0.
func ValidateSpendSteps(steps []float64) error {
	if len(steps) < 2 {
		return fmt.Errorf("%w: need at least 2 steps, got %d", ErrInvalidSpendSteps, len(steps))
	}
	if steps[0] != 0 {
		return fmt.Errorf("%w: first step must be 0, got %v", ErrInvalidSpendSteps, steps[0])
	}
	for i, s := range steps {
		if !stats.IsFinite(s) || s < 0 {
			return fmt.Errorf("%w: step %d is not a finite non-negative number", ErrInvalidSpendSteps, i)
		}
		if i > 0 && s < steps[i-1] {
			return fmt.Errorf("%w: steps must be ascending (step %d)", ErrInvalidSpendSteps, i)
		}
	}
	return nil
}

// ValidateBudget requires a finite, non-negative cap when one is given.
func ValidateBudget(budget *float64) error {
	if budget == nil {
		return nil
	}
	if !stats.IsFinite(*budget) || *budget < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBudget, *budget)
	}
	return nil
}

// Optimise builds the leverage table for sc and, with a positive budget cap,
// an allocation plan.
func (o *Optimizer) Optimise(sc SimulationContext, req Request) (Result, error) {
	metric := req.BenefitMetric
	if metric == "" {
		metric = MetricP80CostReduction
	}
	if metric != MetricP80CostReduction {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedMetric, metric)
	}

	steps := req.SpendSteps
	if steps == nil {
		steps = o.cfg.SpendSteps
	}
	if err := ValidateSpendSteps(steps); err != nil {
		return Result{}, err
	}
	if err := ValidateBudget(req.BudgetCap); err != nil {
		return Result{}, err
	}

	if sc.Neutral == nil || !stats.IsFinite(sc.Neutral.P80Cost()) {
		return Result{}, fmt.Errorf("%w for source %q", ErrMissingBaseline, sc.Source)
	}
	p80 := stats.NonNegative(sc.Neutral.P80Cost())

	weights, sources, fallbacks := o.materiality(sc)

	res := Result{
		Source:        sc.Source,
		BenefitMetric: metric,
		NeutralP80:    p80,
		SpendSteps:    slices.Clone(steps),
		Risks:         make([]RiskLeverage, len(sc.Risks)),
		FallbackCount: fallbacks,
		GeneratedAt:   time.Now().UTC(),
	}

	for i, r := range sc.Risks {
		resp := ResponseFor(r, o.cfg.BaseK, o.cfg.DefaultMaxReduction)
		curve := buildCurve(resp, p80, weights[i], steps)
		best := bestBand(curve)
		res.Risks[i] = RiskLeverage{
			RiskID:            r.ID,
			Name:              r.Name(),
			MaterialityWeight: weights[i],
			MaterialitySource: sources[i],
			Response:          resp,
			Curve:             curve,
			BestBand:          best,
			LeverageScore:     best.BenefitPerDollar * weights[i],
		}
	}

	slices.SortStableFunc(res.Risks, func(a, b RiskLeverage) int {
		if c := cmp.Compare(b.LeverageScore, a.LeverageScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.MaterialityWeight, a.MaterialityWeight); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.RiskID, b.RiskID)
	})
	for i := range res.Risks {
		res.Risks[i].Rank = i + 1
	}

	if req.BudgetCap != nil && *req.BudgetCap > 0 {
		plan := Allocate(res.Risks, *req.BudgetCap, o.cfg.ContiguousBands)
		res.Plan = &plan
	}

	log.Debug().
		Str("source", sc.Source).
		Int("risks", len(sc.Risks)).
		Int("fallbacks", fallbacks).
		Float64("neutralP80", p80).
		Msg("Mitigation optimisation complete")

	return res, nil
}

// materiality returns per-risk weights summing to 1 (or all 0 for no risks),
// the source of each weight and how many risks fell back from the snapshot.
func (o *Optimizer) materiality(sc SimulationContext) ([]float64, []string, int) {
	n := len(sc.Risks)
	weights := make([]float64, n)
	sources := make([]string, n)
	if n == 0 {
		return weights, sources, 0
	}

	fromSnap := make([]float64, n)
	missing := 0
	snapTotal := 0.0
	for i, r := range sc.Risks {
		rs, ok := sc.Neutral.Risk(r.ID)
		if !ok {
			missing++
			continue
		}
		fromSnap[i] = stats.NonNegative(rs.ExpectedCost)
		snapTotal += fromSnap[i]
	}

	if missing == 0 && snapTotal > 0 {
		for i := range weights {
			weights[i] = fromSnap[i] / snapTotal
			sources[i] = SourceSnapshot
		}
		return weights, sources, 0
	}

	fallbacks := missing
	if missing == 0 {
		// Snapshot present but carries no expected cost at all.
		fallbacks = n
	}

	total := 0.0
	for i, r := range sc.Risks {
		weights[i] = stats.NonNegative(r.ExpectedCost())
		total += weights[i]
	}
	if total > 0 {
		for i := range weights {
			weights[i] /= total
			sources[i] = SourceFallback
		}
	} else {
		for i := range weights {
			weights[i] = 1 / float64(n)
			sources[i] = SourceEqual
		}
	}

	if fallbacks > 0 {
		log.Warn().Str("source", sc.Source).Int("fallbacks", fallbacks).Msg("Materiality fell back from snapshot expected cost")
	}
	return weights, sources, fallbacks
}

func buildCurve(resp Response, p80, weight float64, steps []float64) []Band {
	curve := make([]Band, len(steps))
	prevSpend, prevBenefit := 0.0, 0.0
	for i, s := range steps {
		cum := resp.BenefitAt(p80, weight, s)
		b := Band{
			FromSpend:         prevSpend,
			ToSpend:           s,
			IncrementalSpend:  s - prevSpend,
			MarginalBenefit:   stats.NonNegative(cum - prevBenefit),
			CumulativeBenefit: cum,
		}
		if b.IncrementalSpend > 0 {
			b.BenefitPerDollar = b.MarginalBenefit / b.IncrementalSpend
		}
		curve[i] = b
		prevSpend, prevBenefit = s, cum
	}
	return curve
}

// bestBand returns the spend interval with the highest benefit per dollar,
// earliest on ties. Zero-width bands never win.
func bestBand(curve []Band) Band {
	best := -1
	for i, b := range curve {
		if b.IncrementalSpend <= 0 {
			continue
		}
		if best < 0 || b.BenefitPerDollar > curve[best].BenefitPerDollar {
			best = i
		}
	}
	if best < 0 {
		return Band{}
	}
	return curve[best]
}

// Allocate greedily buys whole bands by benefit per dollar, taking every
// band that still fits the remaining budget. With contiguous set, a band is
// only bought once the same risk's preceding band is.
func Allocate(risks []RiskLeverage, budget float64, contiguous bool) Plan {
	type candidate struct {
		risk  int
		band  int
		order int
	}

	var cands []candidate
	for ri, r := range risks {
		for bi, b := range r.Curve {
			if b.IncrementalSpend > 0 {
				cands = append(cands, candidate{risk: ri, band: bi, order: len(cands)})
			}
		}
	}
	slices.SortStableFunc(cands, func(a, b candidate) int {
		ba, bb := risks[a.risk].Curve[a.band], risks[b.risk].Curve[b.band]
		if c := cmp.Compare(bb.BenefitPerDollar, ba.BenefitPerDollar); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	plan := Plan{BudgetCap: budget, Allocations: []Allocation{}}
	remaining := budget
	// reached[i] is the spend already bought for risk i.
	reached := make([]float64, len(risks))

	take := func(c candidate) {
		b := risks[c.risk].Curve[c.band]
		remaining -= b.IncrementalSpend
		reached[c.risk] = b.ToSpend
		plan.Allocations = append(plan.Allocations, Allocation{
			RiskID:           risks[c.risk].RiskID,
			Name:             risks[c.risk].Name,
			FromSpend:        b.FromSpend,
			ToSpend:          b.ToSpend,
			Spend:            b.IncrementalSpend,
			Benefit:          b.MarginalBenefit,
			BenefitPerDollar: b.BenefitPerDollar,
		})
		plan.AllocatedSpend += b.IncrementalSpend
		plan.TotalProjectedBenefit += b.MarginalBenefit
	}

	if !contiguous {
		for _, c := range cands {
			if risks[c.risk].Curve[c.band].IncrementalSpend <= remaining {
				take(c)
			}
		}
		plan.RemainingBudget = stats.NonNegative(remaining)
		return plan
	}

	// Repeat passes so a band skipped for lack of its predecessor can be
	// bought once that predecessor is taken.
	taken := make([]bool, len(cands))
	for progress := true; progress; {
		progress = false
		for ci, c := range cands {
			if taken[ci] {
				continue
			}
			b := risks[c.risk].Curve[c.band]
			if b.FromSpend != reached[c.risk] || b.IncrementalSpend > remaining {
				continue
			}
			taken[ci] = true
			progress = true
			take(c)
			break
		}
	}
	plan.RemainingBudget = stats.NonNegative(remaining)
	return plan
}
