package storage

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Row maps column names to values for a single upsert.
type Row map[string]any

// columns returns the row's column names in sorted order so generated SQL is stable.
func (r Row) columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func (r Row) values(cols []string) []any {
	vals := make([]any, 0, len(cols))
	for _, c := range cols {
		vals = append(vals, r[c])
	}
	return vals
}

func checkTable(table string) error {
	if _, ok := knownColumns[table]; !ok {
		return fmt.Errorf("table %q is not in the allow-list", table)
	}
	return nil
}

func checkColumns(table string, cols []string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	known := knownColumns[table]
	for _, c := range cols {
		if !slices.Contains(known, c) {
			return fmt.Errorf("column %q is not a column of %q", c, table)
		}
	}
	return nil
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ph, ", ")
}

// mergePlan holds the validated statements for one upsert.
type mergePlan struct {
	table     string
	cols      []string
	keys      []string
	returning string
	args      []any
}

func newMergePlan(table string, row Row, keys []string, returning string) (*mergePlan, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("empty row for %q", table)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no natural key columns for %q", table)
	}

	cols := row.columns()
	if err := checkColumns(table, cols); err != nil {
		return nil, err
	}
	if err := checkColumns(table, keys); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if !slices.Contains(cols, k) {
			return nil, fmt.Errorf("natural key column %q missing from row for %q", k, table)
		}
	}
	if returning != "" {
		if err := checkColumns(table, []string{returning}); err != nil {
			return nil, err
		}
	}

	sortedKeys := slices.Clone(keys)
	sort.Strings(sortedKeys)

	return &mergePlan{
		table:     table,
		cols:      cols,
		keys:      sortedKeys,
		returning: returning,
		args:      row.values(cols),
	}, nil
}

// stagingInsertSQL loads the row into the staging relation.
func (p *mergePlan) stagingInsertSQL(staging string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(staging), quoteAll(p.cols), placeholders(len(p.cols)))
}

// mergeSQL moves the staged row into the target table; non-key columns are overwritten on conflict.
func (p *mergePlan) mergeSQL(staging string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s)",
		quote(p.table), quoteAll(p.cols), quoteAll(p.cols), quote(staging), quoteAll(p.keys))

	var sets []string
	for _, c := range p.cols {
		if slices.Contains(p.keys, c) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(c), quote(c)))
	}
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}

	if p.returning != "" {
		fmt.Fprintf(&b, " RETURNING %s", quote(p.returning))
	}
	return b.String()
}

// keyOnly is true when every row column is part of the natural key (merge degrades to DO NOTHING).
func (p *mergePlan) keyOnly() bool {
	return len(p.cols) == len(p.keys)
}

// lookupSQL re-reads the returning column by natural key; used when DO NOTHING returned no row.
func (p *mergePlan) lookupSQL() (string, []any) {
	conds := make([]string, len(p.keys))
	args := make([]any, len(p.keys))
	for i, k := range p.keys {
		conds[i] = fmt.Sprintf("%s = $%d", quote(k), i+1)
		args[i] = p.args[slices.Index(p.cols, k)]
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		quote(p.returning), quote(p.table), strings.Join(conds, " AND ")), args
}
