package engine

import (
	"brainapi/internal/models"
)

// Query functions read a Dataset snapshot and never mutate it. Each call
// recomputes from scratch; nothing is cached between calls.
//
// Rows with a null grouping value are left out of every bucket, so bucket
// counts sum to the number of rows with a non-null value.

// RawRows returns every row as field name -> value, with nulls kept as nil.
func RawRows(ds *Dataset) []map[string]any {
	n := ds.Len()
	rows := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		row := make(map[string]any, numFields)
		for f := Field(0); f < numFields; f++ {
			if v := ds.Value(f, i); v != nil {
				row[f.String()] = *v
			} else {
				row[f.String()] = nil
			}
		}
		rows[i] = row
	}
	return rows
}

// GroupByCategory counts rows per category in first-seen order.
func GroupByCategory(ds *Dataset) []models.GroupCount {
	return groupBy(ds, FieldCategory, nil)
}

// GroupByCountry counts rows per country in first-seen order.
func GroupByCountry(ds *Dataset) []models.GroupCount {
	return groupBy(ds, FieldCountry, nil)
}

// GroupWhere counts rows per `by` value among rows whose `where` field
// equals `equals` exactly.
func GroupWhere(ds *Dataset, by, where Field, equals string) []models.GroupCount {
	return groupBy(ds, by, matches(ds, where, equals))
}

// UniqueNamesWhereCategory lists distinct non-null names of rows whose
// category equals category (case-sensitive), in first-occurrence order.
func UniqueNamesWhereCategory(ds *Dataset, category string) []string {
	return uniqueWhere(ds, FieldName, matches(ds, FieldCategory, category))
}

func matches(ds *Dataset, f Field, equals string) func(row int) bool {
	col := ds.cols[f]
	return func(row int) bool {
		return !col.IsNull(row) && col.Value(row) == equals
	}
}

// groupBy dictionary-encodes the `by` column on the fly: each new label gets
// the next slot in out and later rows index straight into it.
func groupBy(ds *Dataset, by Field, keep func(row int) bool) []models.GroupCount {
	col := ds.cols[by]
	index := make(map[string]int)
	out := make([]models.GroupCount, 0)

	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) || (keep != nil && !keep(i)) {
			continue
		}
		label := col.Value(i)
		if id, ok := index[label]; ok {
			out[id].Count++
			continue
		}
		index[label] = len(out)
		out = append(out, models.GroupCount{Label: label, Count: 1})
	}
	return out
}

func uniqueWhere(ds *Dataset, project Field, keep func(row int) bool) []string {
	col := ds.cols[project]
	seen := make(map[string]struct{})
	out := make([]string, 0)

	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) || !keep(i) {
			continue
		}
		v := col.Value(i)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
