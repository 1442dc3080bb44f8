package fusion

import (
	"fmt"
	"math"
	"sort"

	"github.com/facturaIA/receipt-extract-service/internal/lang"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/weights"
)

// textAgreementTol is the relative tolerance for calculation/text agreement.
const textAgreementTol = 0.01

// sumMatchTol is the absolute tolerance, in currency units, for matching a
// total against the sum of subtotal and tax text evidence.
const sumMatchTol = 0.05

// reconcileTol is the relative subtotal+tax vs total deviation beyond which
// the breakdown-wins rule fires.
const reconcileTol = 0.02

// FusedValue is one canonical field value with its provenance.
type FusedValue struct {
	Value      float64
	Confidence float64
	Source     models.Source
}

// Outcome is the engine's reconciled view of a document.
type Outcome struct {
	Subtotal  *FusedValue
	TaxAmount *FusedValue
	Total     *FusedValue
	Breakdown []models.TaxBreakdown
	Clusters  []*Cluster
	Warnings  []string
}

// Engine reduces clustered evidence to canonical values under a fixed
// priority policy.
type Engine struct {
	clusterer *Clusterer
	keywords  *lang.Index
}

func NewEngine(provider weights.Provider, ix *lang.Index) *Engine {
	return &Engine{
		clusterer: NewClusterer(provider),
		keywords:  ix,
	}
}

// Fuse clusters the evidence and resolves every field.
func (e *Engine) Fuse(evidence []models.Evidence, language string) Outcome {
	clusters := e.clusterer.Cluster(evidence)

	out := Outcome{Clusters: clusters}

	usable := make([]*Cluster, 0, len(clusters))
	for _, cl := range clusters {
		if !cl.IsConsistent {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("dropped low-confidence %s cluster (%.2f, %d items)",
					cl.Field, cl.ConsolidatedConfidence, len(cl.Items)))
			continue
		}
		usable = append(usable, cl)
	}

	out.Subtotal = e.fuseScalar(models.FieldSubtotal, usable)
	out.TaxAmount = e.fuseScalar(models.FieldTaxAmount, usable)
	out.Total = e.fuseScalar(models.FieldTotal, usable)
	out.Breakdown = e.fuseBreakdown(usable, language)

	e.reconcile(&out)
	return out
}

// fuseScalar resolves one scalar field from its best consistent cluster.
func (e *Engine) fuseScalar(field models.Field, clusters []*Cluster) *FusedValue {
	cl := bestCluster(field, clusters)
	if cl == nil {
		return nil
	}

	// (1) trusted text wins verbatim
	if ev := bestTextual(cl, 0.7); ev != nil {
		return &FusedValue{Value: *ev.Amount, Confidence: cl.ConsolidatedConfidence, Source: ev.Source}
	}

	// (2) a calculation corroborating any text value promotes the text
	if ev := textAgreedByCalculation(cl); ev != nil {
		return &FusedValue{Value: *ev.Amount, Confidence: cl.ConsolidatedConfidence, Source: ev.Source}
	}

	// (3) totals can be vouched for by the subtotal+tax text sum
	if field == models.FieldTotal {
		if ev := totalMatchingTextSum(cl, clusters); ev != nil {
			return &FusedValue{Value: *ev.Amount, Confidence: cl.ConsolidatedConfidence, Source: ev.Source}
		}
	}

	// (4) single best item
	if ev := highestConfidence(cl); ev != nil {
		return &FusedValue{Value: *ev.Amount, Confidence: cl.ConsolidatedConfidence, Source: ev.Source}
	}

	// (5) trimmed confidence-weighted mean
	if v, ok := trimmedWeightedMean(cl); ok {
		return &FusedValue{Value: v, Confidence: cl.ConsolidatedConfidence, Source: models.SourceCalculation}
	}
	return nil
}

// bestCluster picks the highest-confidence consistent cluster for a field.
func bestCluster(field models.Field, clusters []*Cluster) *Cluster {
	var best *Cluster
	for _, cl := range clusters {
		if cl.Field != field {
			continue
		}
		if best == nil || cl.ConsolidatedConfidence > best.ConsolidatedConfidence {
			best = cl
		}
	}
	return best
}

func bestTextual(cl *Cluster, minConfidence float64) *models.Evidence {
	var best *models.Evidence
	for i := range cl.Items {
		ev := &cl.Items[i]
		if ev.Amount == nil || ev.Confidence <= minConfidence {
			continue
		}
		if ev.Source != models.SourceText && ev.Source != models.SourcePattern {
			continue
		}
		if best == nil || ev.Confidence > best.Confidence {
			best = ev
		}
	}
	return best
}

func textAgreedByCalculation(cl *Cluster) *models.Evidence {
	var best *models.Evidence
	for i := range cl.Items {
		text := &cl.Items[i]
		if text.Amount == nil || (text.Source != models.SourceText && text.Source != models.SourcePattern) {
			continue
		}
		for j := range cl.Items {
			calc := &cl.Items[j]
			if calc.Amount == nil {
				continue
			}
			if calc.Source != models.SourceCalculation && calc.Source != models.SourceSummaryCalc {
				continue
			}
			if relDiff(*calc.Amount, *text.Amount) > textAgreementTol {
				continue
			}
			if best == nil || text.Confidence > best.Confidence {
				best = text
			}
		}
	}
	return best
}

// totalMatchingTextSum verifies total text candidates against the sum of
// high-confidence subtotal and tax text evidence.
func totalMatchingTextSum(totalCl *Cluster, clusters []*Cluster) *models.Evidence {
	sub := bestTextual(bestClusterOrEmpty(models.FieldSubtotal, clusters), 0.7)
	tax := bestTextual(bestClusterOrEmpty(models.FieldTaxAmount, clusters), 0.7)
	if sub == nil || tax == nil {
		return nil
	}
	sum := *sub.Amount + *tax.Amount

	var best *models.Evidence
	for i := range totalCl.Items {
		ev := &totalCl.Items[i]
		if ev.Amount == nil || (ev.Source != models.SourceText && ev.Source != models.SourcePattern) {
			continue
		}
		if math.Abs(*ev.Amount-sum) > sumMatchTol {
			continue
		}
		if best == nil || ev.Confidence > best.Confidence {
			best = ev
		}
	}
	return best
}

func bestClusterOrEmpty(field models.Field, clusters []*Cluster) *Cluster {
	if cl := bestCluster(field, clusters); cl != nil {
		return cl
	}
	return &Cluster{Field: field}
}

func highestConfidence(cl *Cluster) *models.Evidence {
	var best *models.Evidence
	for i := range cl.Items {
		ev := &cl.Items[i]
		if ev.Amount == nil {
			continue
		}
		if best == nil || ev.Confidence > best.Confidence {
			best = ev
		}
	}
	return best
}

// trimmedWeightedMean drops the farthest outlier from the median when three
// or more values exist, then takes the confidence-weighted mean.
func trimmedWeightedMean(cl *Cluster) (float64, bool) {
	type val struct {
		v, conf float64
	}
	var vals []val
	for _, ev := range cl.Items {
		if ev.Amount != nil {
			vals = append(vals, val{*ev.Amount, ev.Confidence})
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	if len(vals) >= 3 {
		sorted := make([]float64, len(vals))
		for i, v := range vals {
			sorted[i] = v.v
		}
		sort.Float64s(sorted)
		median := sorted[len(sorted)/2]

		worst, worstDist := -1, 0.0
		for i, v := range vals {
			if d := math.Abs(v.v - median); d > worstDist {
				worst, worstDist = i, d
			}
		}
		if worst >= 0 {
			vals = append(vals[:worst], vals[worst+1:]...)
		}
	}
	sum, wsum := 0.0, 0.0
	for _, v := range vals {
		sum += v.v * v.conf
		wsum += v.conf
	}
	if wsum == 0 {
		return 0, false
	}
	return sum / wsum, true
}

// fuseBreakdown groups breakdown evidence by rate rounded to 0.1% and takes
// the confidence-weighted mean amount per group, sorted ascending by rate.
func (e *Engine) fuseBreakdown(clusters []*Cluster, language string) []models.TaxBreakdown {
	cl := bestCluster(models.FieldTaxBreakdown, clusters)
	if cl == nil {
		return nil
	}

	type group struct {
		rate       float64
		amountSum  float64
		netSum     float64
		grossSum   float64
		hasNet     bool
		confSum    float64
		weightSum  float64
		category   string
		confidence float64
		n          int
	}
	groups := map[float64]*group{}

	for _, ev := range cl.Items {
		if ev.Rate == nil || ev.Amount == nil {
			continue
		}
		key := math.Round(*ev.Rate*10) / 10
		g := groups[key]
		if g == nil {
			g = &group{rate: key}
			groups[key] = g
		}
		g.amountSum += *ev.Amount * ev.Confidence
		g.weightSum += ev.Confidence
		g.confSum += ev.Confidence
		g.n++
		if support, ok := ev.Support.(models.TableSupport); ok && support.Row != nil {
			g.netSum += support.Row.Net
			g.grossSum += support.Row.Gross
			g.hasNet = true
			if g.category == "" {
				g.category = support.Row.Code
			}
		}
	}

	var out []models.TaxBreakdown
	for _, g := range groups {
		if g.weightSum == 0 {
			continue
		}
		entry := models.TaxBreakdown{
			Rate:        g.rate,
			Amount:      round2(g.amountSum / g.weightSum),
			Category:    g.category,
			Confidence:  g.confSum / float64(g.n),
			Description: e.keywords.DescribeRate(g.category, g.rate, language),
		}
		if g.hasNet {
			net := round2(g.netSum)
			gross := round2(g.grossSum)
			entry.Net = &net
			entry.Gross = &gross
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate < out[j].Rate })
	return out
}

// reconcile applies the breakdown-wins rule when the scalar fields disagree
// beyond tolerance and a breakdown exists to arbitrate.
func (e *Engine) reconcile(out *Outcome) {
	if out.Subtotal == nil || out.TaxAmount == nil || out.Total == nil {
		return
	}
	dev := math.Abs(out.Subtotal.Value+out.TaxAmount.Value-out.Total.Value) / math.Max(out.Total.Value, 0.01)
	if dev <= reconcileTol {
		return
	}
	if len(out.Breakdown) == 0 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("subtotal+tax deviates from total by %.1f%%", dev*100))
		return
	}

	taxSum := 0.0
	for _, b := range out.Breakdown {
		taxSum += b.Amount
	}
	out.TaxAmount = &FusedValue{
		Value:      round2(taxSum),
		Confidence: out.TaxAmount.Confidence,
		Source:     models.SourceSummaryCalc,
	}
	out.Subtotal = &FusedValue{
		Value:      round2(out.Total.Value - taxSum),
		Confidence: out.Subtotal.Confidence,
		Source:     models.SourceSummaryCalc,
	}
	out.Warnings = append(out.Warnings,
		fmt.Sprintf("reconciled subtotal/tax from breakdown (deviation %.1f%%)", dev*100))
}

func relDiff(a, b float64) float64 {
	ref := math.Max(math.Abs(a), math.Abs(b))
	if ref == 0 {
		return 0
	}
	return math.Abs(a-b) / ref
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
