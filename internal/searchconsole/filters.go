package searchconsole

import "iter"

// OperatorEquals is the only filter operator the generator emits.
const OperatorEquals = "equals"

// Dimension is a named list of candidate filter values.
type Dimension struct {
	Name   string
	Values []string
}

// Filter is a single-valued constraint on one dimension.
type Filter struct {
	Dimension  string `json:"dimension"`
	Operator   string `json:"operator"`
	Expression string `json:"expression"`
}

// Filters returns the cartesian product of the supplied dimensions as a lazy
// sequence of filter sets. Dimensions without values are dropped and the
// remaining ones keep their input order, the last dimension varying fastest.
//
// Supplying no dimensions (or only empty ones) yields an empty sequence rather
// than a single empty filter set. The sequence can be ranged over any number
// of times.
func Filters(dims ...Dimension) iter.Seq[[]Filter] {
	active := make([]Dimension, 0, len(dims))
	for _, d := range dims {
		if len(d.Values) == 0 {
			continue
		}
		active = append(active, Dimension{Name: d.Name, Values: append([]string(nil), d.Values...)})
	}

	return func(yield func([]Filter) bool) {
		if len(active) == 0 {
			return
		}
		idx := make([]int, len(active))
		for {
			set := make([]Filter, len(active))
			for i, d := range active {
				set[i] = Filter{Dimension: d.Name, Operator: OperatorEquals, Expression: d.Values[idx[i]]}
			}
			if !yield(set) {
				return
			}
			i := len(active) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(active[i].Values) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}
