// Package fusion reconciles competing evidence into canonical field values:
// same-field evidence is clustered by value similarity, clusters are scored
// for internal consistency, and a fixed priority policy reduces each cluster
// to one value.
package fusion

import (
	"math"

	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/weights"
)

// similarityThreshold is the default relative closeness for two amounts to
// share a cluster.
const similarityThreshold = 0.85

// spatialTolerance is the pairwise page distance beyond which positioned
// evidence no longer counts as spatially coherent.
const spatialTolerance = 600.0

// Cluster aggregates same-field evidence believed to describe one value.
// Mutable while evidence streams in, finalized exactly once per run.
type Cluster struct {
	Field models.Field
	Items []models.Evidence

	// set by finalize
	Centroid                float64
	Variance                float64
	MathConsistency         float64
	SpatialConsistency      float64
	TaxBreakdownConsistency float64
	ConsolidatedConfidence  float64
	IsConsistent            bool
}

// Clusterer groups evidence into per-field clusters.
type Clusterer struct {
	Threshold float64
	weights   map[models.Source]float64
}

func NewClusterer(provider weights.Provider) *Clusterer {
	return &Clusterer{
		Threshold: similarityThreshold,
		weights:   provider.GetWeights(),
	}
}

// Cluster groups the evidence and finalizes every cluster's scores.
func (c *Clusterer) Cluster(evidence []models.Evidence) []*Cluster {
	var clusters []*Cluster

	for _, ev := range evidence {
		target := c.match(clusters, ev)
		if target == nil {
			target = &Cluster{Field: ev.Field}
			clusters = append(clusters, target)
		}
		target.Items = append(target.Items, ev)
	}

	for _, cl := range clusters {
		c.finalize(cl)
	}
	return clusters
}

// match finds the cluster an evidence item belongs to. Breakdown evidence
// always shares one cluster per document: a breakdown is inherently
// multi-valued, so distinct rates accumulate instead of splitting.
func (c *Clusterer) match(clusters []*Cluster, ev models.Evidence) *Cluster {
	for _, cl := range clusters {
		if cl.Field != ev.Field {
			continue
		}
		switch ev.Field {
		case models.FieldTaxBreakdown:
			return cl
		case models.FieldCurrency:
			if len(cl.Items) > 0 && cl.Items[0].Currency == ev.Currency {
				return cl
			}
		default:
			if ev.Amount != nil && similar(*ev.Amount, cl.mean(), c.Threshold) {
				return cl
			}
		}
	}
	return nil
}

// similar is the relative closeness test: min/max of the two values.
func similar(a, b float64, threshold float64) bool {
	if a <= 0 || b <= 0 {
		return a == b
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo/hi >= threshold
}

func (cl *Cluster) mean() float64 {
	sum, n := 0.0, 0
	for _, ev := range cl.Items {
		if ev.Amount != nil {
			sum += *ev.Amount
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (c *Clusterer) finalize(cl *Cluster) {
	cl.Centroid = cl.mean()
	cl.Variance = cl.variance()
	cl.MathConsistency = cl.mathConsistency()
	cl.SpatialConsistency = cl.spatialConsistency()
	cl.TaxBreakdownConsistency = cl.breakdownConsistency()

	weightSum, confSum := 0.0, 0.0
	for _, ev := range cl.Items {
		w, ok := c.weights[ev.Source]
		if !ok {
			w = weights.Default(ev.Source)
		}
		weightSum += w
		confSum += w * ev.Confidence
	}
	conf := 0.0
	if weightSum > 0 {
		conf = confSum / weightSum
	}
	bonus := 0.06 * (cl.MathConsistency + cl.SpatialConsistency + cl.TaxBreakdownConsistency) / 3
	cl.ConsolidatedConfidence = math.Min(conf+bonus, 1)
	cl.IsConsistent = cl.ConsolidatedConfidence >= 0.5
}

func (cl *Cluster) variance() float64 {
	mean := cl.Centroid
	sum, n := 0.0, 0
	for _, ev := range cl.Items {
		if ev.Amount != nil {
			d := *ev.Amount - mean
			sum += d * d
			n++
		}
	}
	if n < 2 {
		return 0
	}
	return sum / float64(n)
}

// mathConsistency averages 1−relativeError over items carrying a verifiable
// arithmetic relation. Neutral 0.5 when nothing is verifiable.
func (cl *Cluster) mathConsistency() float64 {
	sum, n := 0.0, 0
	for _, ev := range cl.Items {
		switch support := ev.Support.(type) {
		case models.CalculationSupport:
			sum += clampUnit(1 - support.Deviation)
			n++
		case models.TableSupport:
			if support.Row != nil {
				ref := math.Max(math.Abs(support.Row.Gross), 1)
				sum += clampUnit(1 - support.Row.Validation.WorstDeviation/ref)
				n++
			}
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// spatialConsistency measures how tightly positioned items sit together.
// Neutral 0.5 with fewer than two positioned items.
func (cl *Cluster) spatialConsistency() float64 {
	var boxes []*models.BoundingBox
	for _, ev := range cl.Items {
		if ev.Position != nil {
			boxes = append(boxes, ev.Position)
		}
	}
	if len(boxes) < 2 {
		return 0.5
	}
	sum, pairs := 0.0, 0
	for i := 0; i < len(boxes); i++ {
		for j := i + 1; j < len(boxes); j++ {
			dx := boxes[i].CenterX() - boxes[j].CenterX()
			dy := boxes[i].CenterY() - boxes[j].CenterY()
			sum += math.Hypot(dx, dy)
			pairs++
		}
	}
	return clampUnit(1 - (sum/float64(pairs))/spatialTolerance)
}

// breakdownConsistency is the fraction of rates inside the plausible VAT
// band [0,50]. Full score when no rates are present.
func (cl *Cluster) breakdownConsistency() float64 {
	total, plausible := 0, 0
	for _, ev := range cl.Items {
		if ev.Rate == nil {
			continue
		}
		total++
		if *ev.Rate >= 0 && *ev.Rate <= 50 {
			plausible++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(plausible) / float64(total)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
