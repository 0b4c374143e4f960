package view

import (
	"sort"

	"dashcore/pkg/table"
)

type bucket struct {
	key  []table.Value
	rows []int
}

// group partitions rows by the GroupBy columns and reduces each partition.
// Groups are emitted in ascending key order. Without GroupBy the whole
// selection forms one group, which is omitted when nothing matched.
func group(ds *table.Dataset, spec Spec, rows []int, out *Derived) {
	keys := make([]*table.Column, len(spec.GroupBy))
	for i, name := range spec.GroupBy {
		keys[i], _ = ds.Column(name)
		out.Columns = append(out.Columns, keys[i].Name)
		out.Kinds = append(out.Kinds, keys[i].Kind)
	}
	for _, agg := range spec.Aggregates {
		out.Columns = append(out.Columns, agg.Name())
		out.Kinds = append(out.Kinds, aggregateKind(ds, agg))
	}

	var buckets []*bucket
	index := make(map[string]*bucket)
	for _, r := range rows {
		key := make([]table.Value, len(keys))
		for i, col := range keys {
			key[i] = col.Values[r]
		}
		k := joinKey(key)
		b, ok := index[k]
		if !ok {
			b = &bucket{key: key}
			index[k] = b
			buckets = append(buckets, b)
		}
		b.rows = append(b.rows, r)
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		for k := range buckets[i].key {
			if c := buckets[i].key[k].Compare(buckets[j].key[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})

	out.Rows = make([][]table.Value, 0, len(buckets))
	for _, b := range buckets {
		row := append([]table.Value(nil), b.key...)
		for _, agg := range spec.Aggregates {
			row = append(row, reduce(ds, agg, b.rows))
		}
		out.Rows = append(out.Rows, row)
	}
}

func aggregateKind(ds *table.Dataset, agg Aggregate) table.Kind {
	switch agg.Func {
	case FuncMin, FuncMax, FuncFirst, FuncLast:
		col, _ := ds.Column(agg.Column)
		return col.Kind
	default:
		return table.KindNumber
	}
}

func reduce(ds *table.Dataset, agg Aggregate, rows []int) table.Value {
	if agg.Column == "" {
		return table.Number(float64(len(rows)))
	}
	col, _ := ds.Column(agg.Column)
	var (
		n      int
		sum    float64
		best   table.Value
		first  table.Value
		last   table.Value
		unique = make(map[string]struct{})
	)
	for _, r := range rows {
		v := col.Values[r]
		if !v.Valid {
			continue
		}
		if n == 0 {
			first, best = v, v
		}
		n++
		last = v
		sum += v.Num
		unique[v.String()] = struct{}{}
		switch agg.Func {
		case FuncMin:
			if v.Compare(best) < 0 {
				best = v
			}
		case FuncMax:
			if v.Compare(best) > 0 {
				best = v
			}
		}
	}
	switch agg.Func {
	case FuncSum:
		return table.Number(sum)
	case FuncCount:
		return table.Number(float64(n))
	case FuncUnique:
		return table.Number(float64(len(unique)))
	case FuncMean:
		if n == 0 {
			return table.Missing(table.KindNumber)
		}
		return table.Number(sum / float64(n))
	case FuncMin, FuncMax:
		if n == 0 {
			return table.Missing(col.Kind)
		}
		return best
	case FuncFirst:
		if n == 0 {
			return table.Missing(col.Kind)
		}
		return first
	case FuncLast:
		if n == 0 {
			return table.Missing(col.Kind)
		}
		return last
	default:
		return table.Missing(table.KindNumber)
	}
}
