package detect

import (
	"math"

	"github.com/facturaIA/receipt-extract-service/internal/lang"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/numeric"
)

// SummaryCalculator derives subtotal and tax_amount from the tax breakdown:
// collect every (rate, amount) pair in the document, sum the amounts, and
// subtract from each textual total candidate. A plausible candidate yields
// three correlated evidence items, including a total self-consistency signal.
type SummaryCalculator struct {
	keywords *lang.Index
}

func NewSummaryCalculator(ix *lang.Index) *SummaryCalculator {
	return &SummaryCalculator{keywords: ix}
}

func (d *SummaryCalculator) Name() string { return "summary" }

func (d *SummaryCalculator) Detect(rows []models.Row, language string) []models.Evidence {
	pairs := d.breakdownPairs(rows)
	if len(pairs) == 0 {
		return nil
	}
	taxTotal := 0.0
	for _, p := range pairs {
		taxTotal += p.amount
	}
	if taxTotal <= 0 {
		return nil
	}

	var out []models.Evidence
	for _, cand := range d.totalCandidates(rows, language) {
		subtotal := cand.value - taxTotal
		if subtotal <= 0 || subtotal <= taxTotal {
			continue
		}

		inputs := map[string]float64{"total": cand.value, "taxTotal": taxTotal}

		sub := newEvidence(models.SourceSummaryCalc, models.FieldSubtotal, d.subtotalConfidence(len(pairs), subtotal, cand.value))
		sub.Amount = models.WithAmount(round2(subtotal))
		sub.Position = cand.position
		sub.Support = models.CalculationSupport{Inputs: inputs}
		out = append(out, sub)

		tax := newEvidence(models.SourceSummaryCalc, models.FieldTaxAmount, 0.92)
		tax.Amount = models.WithAmount(round2(taxTotal))
		tax.Support = models.CalculationSupport{Inputs: inputs}
		out = append(out, tax)

		// self-consistency signal: how well the candidate total closes
		// against subtotal+taxTotal after rounding
		dev := math.Abs(cand.value-(subtotal+taxTotal)) / cand.value
		ver := newEvidence(models.SourceCalculation, models.FieldTotal, clamp01(0.9*(1-10*dev)))
		ver.Amount = models.WithAmount(cand.value)
		ver.Position = cand.position
		ver.Support = models.CalculationSupport{Inputs: inputs, Deviation: dev}
		out = append(out, ver)
	}
	return out
}

type ratePair struct {
	rate   float64
	amount float64
}

type totalCandidate struct {
	value    float64
	position *models.BoundingBox
}

// breakdownPairs collects (rate, amount) pairs from any row carrying exactly
// one percentage and at least one amount; the rate's tax share reads at the
// right edge of the row.
func (d *SummaryCalculator) breakdownPairs(rows []models.Row) []ratePair {
	var pairs []ratePair
	for i := range rows {
		sigs := numeric.RowSignature(rows[i])
		var percents, amounts []float64
		for _, s := range sigs {
			switch s.Kind {
			case numeric.KindPercent:
				percents = append(percents, s.Value)
			case numeric.KindAmount:
				amounts = append(amounts, s.Value)
			}
		}
		if len(percents) == 1 && len(amounts) > 0 {
			pairs = append(pairs, ratePair{rate: percents[0], amount: amounts[len(amounts)-1]})
		}
	}
	return pairs
}

func (d *SummaryCalculator) totalCandidates(rows []models.Row, language string) []totalCandidate {
	var cands []totalCandidate
	for i := range rows {
		row := rows[i]
		if _, ok := d.keywords.Match(row.Text, lang.ConceptSubtotal, language); ok {
			continue
		}
		if _, ok := d.keywords.Match(row.Text, lang.ConceptTotal, language); !ok {
			continue
		}
		sigs := numeric.RowSignature(row)
		for j := len(sigs) - 1; j >= 0; j-- {
			if sigs[j].Kind == numeric.KindAmount {
				cands = append(cands, totalCandidate{value: sigs[j].Value, position: &row.Box})
				break
			}
		}
	}
	return cands
}

// subtotalConfidence scales with the breakdown size and with how plausible
// the derived subtotal is as a share of the total.
func (d *SummaryCalculator) subtotalConfidence(pairs int, subtotal, total float64) float64 {
	conf := 0.8 + 0.03*float64(pairs)
	if ratio := subtotal / total; ratio > 0.5 && ratio < 1 {
		conf += 0.05
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
