// Package assign solves the bipartite optimal-assignment problem over an
// arbitrary real-valued score matrix.
//
// Rows are bidders and columns are items. The solver maximizes the total
// score of a one-to-one pairing in which any bidder or item may stay
// unassigned; a pairing is only made when its score is strictly positive.
// This is the same as matching every bidder and item against a virtual
// "no match" option worth 0.
//
// The implementation is the Hungarian method (Kuhn-Munkres with potentials)
// on a square cost matrix padded with dummy rows and columns. Among all
// optimal assignments the solver returns the one where earlier bidders win:
// bidder 0 holds the lowest-index item it can hold at the optimal total,
// then bidder 1, and so on. Staying unassigned ranks after every item.
package assign

import "math"

// Pair is one bidder/item assignment.
type Pair struct {
	Bidder int     `json:"bidder" yaml:"bidder"`
	Item   int     `json:"item" yaml:"item"`
	Score  float64 `json:"score" yaml:"score"`
}

// Assignment is the solver result. Pairs are ordered by bidder; the
// unassigned lists are ascending.
type Assignment struct {
	Pairs             []Pair `json:"pairs" yaml:"pairs"`
	UnassignedBidders []int  `json:"unassigned_bidders" yaml:"unassigned_bidders"`
	UnassignedItems   []int  `json:"unassigned_items" yaml:"unassigned_items"`
}

// Total returns the summed score of all pairs.
func (a Assignment) Total() float64 {
	var total float64
	for _, p := range a.Pairs {
		total += p.Score
	}
	return total
}

// Solve computes the optimal assignment for scores[bidder][item]. Ragged
// rows are allowed; missing and NaN cells count as "no value".
func Solve(scores [][]float64) Assignment {
	bidders := len(scores)
	items := 0
	for _, row := range scores {
		items = max(items, len(row))
	}

	result := Assignment{
		Pairs:             []Pair{},
		UnassignedBidders: []int{},
		UnassignedItems:   []int{},
	}
	if bidders == 0 || items == 0 {
		for i := 0; i < bidders; i++ {
			result.UnassignedBidders = append(result.UnassignedBidders, i)
		}
		for j := 0; j < items; j++ {
			result.UnassignedItems = append(result.UnassignedItems, j)
		}
		return result
	}

	value := func(i, j int) float64 {
		if j >= len(scores[i]) {
			return 0
		}
		s := scores[i][j]
		if math.IsNaN(s) || s <= 0 {
			return 0
		}
		return s
	}

	// Square matrix: bidders + dummy rows by items + dummy columns. Every
	// dummy cell costs 0, so leaving a bidder or item unmatched is free.
	// A non-positive real cell costs more than a dummy, so no optimal
	// matching uses it.
	n := bidders + items
	allowed := func(i, j int) bool {
		return i >= bidders || j >= items || value(i, j) > 0
	}
	cost := func(i, j int) float64 {
		if i < bidders && j < items {
			if score := value(i, j); score > 0 {
				return -score
			}
			return 1
		}
		return 0
	}

	colOf, u, v := hungarian(n, cost)

	var largest float64
	for i := 0; i < bidders; i++ {
		for j := 0; j < items; j++ {
			largest = max(largest, value(i, j))
		}
	}
	eps := tightTolerance * (1 + largest)
	tight := func(i, j int) bool {
		return allowed(i, j) && cost(i, j)-u[i]-v[j] <= eps
	}
	preferEarlier(colOf, bidders, items, tight)

	itemOf := make([]int, bidders)
	assignedItem := make([]bool, items)
	for i := 0; i < bidders; i++ {
		itemOf[i] = -1
		if j := colOf[i]; j < items && value(i, j) > 0 {
			itemOf[i] = j
			assignedItem[j] = true
		}
	}

	for i := 0; i < bidders; i++ {
		if j := itemOf[i]; j >= 0 {
			result.Pairs = append(result.Pairs, Pair{Bidder: i, Item: j, Score: scores[i][j]})
		} else {
			result.UnassignedBidders = append(result.UnassignedBidders, i)
		}
	}
	for j := 0; j < items; j++ {
		if !assignedItem[j] {
			result.UnassignedItems = append(result.UnassignedItems, j)
		}
	}
	return result
}

// tightTolerance is the relative slack under which a reduced cost counts
// as zero.
const tightTolerance = 1e-9

// preferEarlier rewrites an optimal matching into the optimal matching whose
// bidder-to-column vector is lexicographically smallest.
//
// Every optimal matching is a perfect matching of the tight subgraph (edges
// with zero reduced cost under the final potentials) and every such perfect
// matching is optimal. So bidders are fixed in index order: each tries the
// columns below its current one and moves if an alternating path through
// the unfixed part of the tight subgraph can give up its old column. Dummy
// columns sit above all real items and are interchangeable.
func preferEarlier(colOf []int, bidders, items int, tight func(i, j int) bool) {
	n := len(colOf)
	rowOf := make([]int, n)
	for r, c := range colOf {
		rowOf[c] = r
	}
	lockedCol := make([]bool, n)

	prev := make([]int, n)
	seen := make([]bool, n)
	reroute := func(i, j int) bool {
		start, target := rowOf[j], colOf[i]
		for c := range seen {
			seen[c] = false
		}
		queue := []int{start}
		found := false
		for len(queue) > 0 && !found {
			r := queue[0]
			queue = queue[1:]
			for c := 0; c < n; c++ {
				if seen[c] || lockedCol[c] || c == j || !tight(r, c) {
					continue
				}
				seen[c] = true
				prev[c] = r
				if c == target {
					found = true
					break
				}
				queue = append(queue, rowOf[c])
			}
		}
		if !found {
			return false
		}
		for c := target; ; {
			r := prev[c]
			next := colOf[r]
			colOf[r], rowOf[c] = c, r
			if r == start {
				break
			}
			c = next
		}
		colOf[i], rowOf[j] = j, i
		return true
	}

	for i := 0; i < bidders; i++ {
		for j := 0; j < items && j < colOf[i]; j++ {
			if lockedCol[j] || !tight(i, j) {
				continue
			}
			if reroute(i, j) {
				break
			}
		}
		lockedCol[colOf[i]] = true
	}
}

// hungarian minimizes total cost on an n×n matrix. It returns, for every
// row, the column assigned to it, plus the final row and column potentials
// (all 0-based). Reduced costs cost(i,j)-u[i]-v[j] are non-negative and
// zero on the matching.
func hungarian(n int, cost func(i, j int) float64) (colOf []int, rowPot, colPot []float64) {
	inf := math.Inf(1)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) // p[j]: 1-based row matched to column j, 0 if none
	way := make([]int, n+1)
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = inf
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	colOf = make([]int, n)
	for j := 1; j <= n; j++ {
		colOf[p[j]-1] = j - 1
	}
	return colOf, u[1:], v[1:]
}
