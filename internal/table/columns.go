package table

import (
	"math"

	"github.com/facturaIA/receipt-extract-service/internal/lang"
)

// ColumnRole is the semantic role of one column in a tax-breakdown table.
type ColumnRole string

const (
	RoleRate        ColumnRole = "rate"
	RoleNet         ColumnRole = "net"
	RoleTax         ColumnRole = "tax"
	RoleGross       ColumnRole = "gross"
	RoleDescription ColumnRole = "description"
)

// Assignment maps column index to role with a per-role confidence, so a
// keyword-derived assignment can override a weaker arithmetic one per field.
type Assignment struct {
	Roles      map[int]ColumnRole
	Confidence map[ColumnRole]float64
}

// relative tolerance for the net+tax≈gross identity across rows
const tripleTolerance = 0.02

// early exit: a triple passing on this fraction of rows is accepted outright
const triplePassTarget = 0.95

// ClassifyColumns assigns {rate, net, tax, gross} roles to the columns of a
// rectangular numeric structure, independent of column order.
//
// Order of signals:
//  1. a column whose cells all parse as percentages is the rate column
//  2. every ordered triple (i,j,k) of the remaining numeric columns is tested
//     for values[i]+values[j]≈values[k] across rows; the best-passing triple
//     above 0.7 yields (i=net, j=tax, k=gross)
//  3. otherwise columns are ranked by mean magnitude
//  4. header keyword matches independently boost or override, keeping
//     whichever assignment carries the higher confidence per field
func ClassifyColumns(matrix [][]float64, percentCols map[int]bool, header []string, ix *lang.Index, language string) Assignment {
	a := Assignment{
		Roles:      make(map[int]ColumnRole),
		Confidence: make(map[ColumnRole]float64),
	}
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return a
	}
	cols := len(matrix[0])

	// (1) percentage columns
	var numericCols []int
	for c := 0; c < cols; c++ {
		if percentCols[c] {
			a.Roles[c] = RoleRate
			a.Confidence[RoleRate] = 0.95
		} else {
			numericCols = append(numericCols, c)
		}
	}

	// (2) arithmetic triple enumeration; column counts are small (<=6) so
	// O(n^3) is fine, with an early exit once the pass target is met
	if len(numericCols) >= 3 {
		bestRate := 0.0
		var best [3]int
	search:
		for _, i := range numericCols {
			for _, j := range numericCols {
				if j == i {
					continue
				}
				for _, k := range numericCols {
					if k == i || k == j {
						continue
					}
					rate := triplePassRate(matrix, i, j, k)
					if rate > bestRate {
						bestRate = rate
						best = [3]int{i, j, k}
						if rate >= triplePassTarget {
							break search
						}
					}
				}
			}
		}
		if bestRate >= 0.7 {
			a.Roles[best[0]] = RoleNet
			a.Roles[best[1]] = RoleTax
			a.Roles[best[2]] = RoleGross
			a.Confidence[RoleNet] = bestRate
			a.Confidence[RoleTax] = bestRate
			a.Confidence[RoleGross] = bestRate
		}
	}

	// (3) magnitude ranking fallback
	if a.Confidence[RoleGross] == 0 {
		assignByMagnitude(&a, matrix, numericCols)
	}

	// (4) header keyword boost/override
	applyHeaderKeywords(&a, header, ix, language)

	return a
}

// triplePassRate returns the fraction of rows where col i + col j ≈ col k.
func triplePassRate(matrix [][]float64, i, j, k int) float64 {
	tested, passed := 0, 0
	for _, row := range matrix {
		if i >= len(row) || j >= len(row) || k >= len(row) {
			continue
		}
		sum := row[i] + row[j]
		target := row[k]
		if target == 0 {
			continue
		}
		tested++
		if math.Abs(sum-target)/math.Abs(target) <= tripleTolerance {
			passed++
		}
	}
	if tested == 0 {
		return 0
	}
	return float64(passed) / float64(tested)
}

func assignByMagnitude(a *Assignment, matrix [][]float64, numericCols []int) {
	type colMean struct {
		col  int
		mean float64
	}
	means := make([]colMean, 0, len(numericCols))
	for _, c := range numericCols {
		sum, n := 0.0, 0
		for _, row := range matrix {
			if c < len(row) {
				sum += math.Abs(row[c])
				n++
			}
		}
		if n > 0 {
			means = append(means, colMean{col: c, mean: sum / float64(n)})
		}
	}
	// sort ascending by mean (tiny slice, insertion is fine)
	for i := 1; i < len(means); i++ {
		for j := i; j > 0 && means[j].mean < means[j-1].mean; j-- {
			means[j], means[j-1] = means[j-1], means[j]
		}
	}

	switch len(means) {
	case 3:
		a.Roles[means[0].col] = RoleTax
		a.Roles[means[1].col] = RoleNet
		a.Roles[means[2].col] = RoleGross
		a.Confidence[RoleTax] = 0.5
		a.Confidence[RoleNet] = 0.5
		a.Confidence[RoleGross] = 0.5
	case 2:
		a.Roles[means[0].col] = RoleNet
		a.Roles[means[1].col] = RoleGross
		a.Confidence[RoleNet] = 0.5
		a.Confidence[RoleGross] = 0.5
	}
}

// applyHeaderKeywords maps header cells to roles and keeps whichever
// assignment (keyword vs. arithmetic) has higher confidence per field.
func applyHeaderKeywords(a *Assignment, header []string, ix *lang.Index, language string) {
	const keywordConfidence = 0.8

	conceptRole := []struct {
		concept lang.Concept
		role    ColumnRole
	}{
		{lang.ConceptGross, RoleGross},
		{lang.ConceptNet, RoleNet},
		{lang.ConceptTax, RoleTax},
		{lang.ConceptRate, RoleRate},
	}

	for col, cell := range header {
		for _, cr := range conceptRole {
			if _, ok := ix.Match(cell, cr.concept, language); !ok {
				continue
			}
			if keywordConfidence > a.Confidence[cr.role] {
				// drop any previous column holding this role
				for c, role := range a.Roles {
					if role == cr.role {
						delete(a.Roles, c)
					}
				}
				a.Roles[col] = cr.role
				a.Confidence[cr.role] = keywordConfidence
			}
			break
		}
	}
}

// ColumnFor returns the column index assigned to a role, or -1.
func (a Assignment) ColumnFor(role ColumnRole) int {
	for col, r := range a.Roles {
		if r == role {
			return col
		}
	}
	return -1
}
