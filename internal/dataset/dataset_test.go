package dataset

import (
	"reflect"
	"testing"
)

func TestCompositeKeyDropsNullComponents(t *testing.T) {
	nulls := NewNullSet([]string{"NA"})

	row := Row{"id": "A", "seq": "1"}
	key, ok := CompositeKey(row, []string{"id", "seq"}, nulls)
	if !ok {
		t.Fatal("expected valid key")
	}
	if key != "A\x1f1" {
		t.Fatalf("unexpected key %q", key)
	}

	if _, ok := CompositeKey(Row{"id": "A", "seq": ""}, []string{"id", "seq"}, nulls); ok {
		t.Fatal("empty key component must invalidate the row")
	}
	if _, ok := CompositeKey(Row{"id": "NA", "seq": "1"}, []string{"id", "seq"}, nulls); ok {
		t.Fatal("sentinel key component must invalidate the row")
	}
}

func TestAggregateRowsColumnWise(t *testing.T) {
	nulls := NewNullSet(nil)
	columns := []string{"note", "empty", "single"}

	rows := []Row{
		{"note": "ok", "empty": "", "single": "x"},
		{"note": "done", "empty": "", "single": "x"},
	}
	got := AggregateRows(rows, columns, nulls)

	if got["note"] != "ok, done" {
		t.Fatalf("multi-value join: got %q", got["note"])
	}
	if got["empty"] != "" {
		t.Fatalf("all-null column must stay null, got %q", got["empty"])
	}
	if got["single"] != "x" {
		t.Fatalf("single distinct value: got %q", got["single"])
	}
}

func TestAggregateRowsIgnoresRowOrderForPreference(t *testing.T) {
	nulls := NewNullSet(nil)
	columns := []string{"note"}

	a := AggregateRows([]Row{{"note": ""}, {"note": "ok"}}, columns, nulls)
	b := AggregateRows([]Row{{"note": "ok"}, {"note": ""}}, columns, nulls)
	if a["note"] != "ok" || b["note"] != "ok" {
		t.Fatalf("null values must not participate: %q / %q", a["note"], b["note"])
	}
}

func TestMergeColumnsPlacesNewColumnsNearNeighbours(t *testing.T) {
	existing := []string{"id", "name", "price"}
	incoming := []string{"id", "name", "brand", "price"}

	got := MergeColumns(existing, incoming)
	want := []string{"id", "name", "brand", "price"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeColumnsFallsBackToFollowingNeighbour(t *testing.T) {
	existing := []string{"b", "c"}
	incoming := []string{"a", "b"}

	got := MergeColumns(existing, incoming)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeColumnsAppendsUnanchoredColumns(t *testing.T) {
	got := MergeColumns([]string{"x"}, []string{"y", "z"})
	want := []string{"x", "y", "z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergeColumnsKeepsExistingOrder(t *testing.T) {
	existing := []string{"id", "name"}
	// Incoming order disagrees with the legacy order; legacy wins.
	got := MergeColumns(existing, []string{"name", "id"})
	if !reflect.DeepEqual(got, existing) {
		t.Fatalf("got %v, want %v", got, existing)
	}
}

func TestSortNumericAware(t *testing.T) {
	d := New("n")
	d.Rows = []Row{{"n": "10"}, {"n": "2"}, {"n": "1"}}
	d.Sort(SortSpec{Columns: []string{"n"}})

	var got []string
	for _, row := range d.Rows {
		got = append(got, row["n"])
	}
	want := []string{"1", "2", "10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	d.Sort(SortSpec{Columns: []string{"n"}, Descending: true})
	got = got[:0]
	for _, row := range d.Rows {
		got = append(got, row["n"])
	}
	want = []string{"10", "2", "1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("descending: got %v, want %v", got, want)
	}
}

func TestValuesEqualNumeric(t *testing.T) {
	if !ValuesEqual("7", "7.0") {
		t.Fatal("numeric equality expected")
	}
	if ValuesEqual("7", "8") {
		t.Fatal("unequal numbers")
	}
	if !ValuesEqual(" a ", "a") {
		t.Fatal("trimmed string equality expected")
	}
}

func TestColumnFilter(t *testing.T) {
	filter, err := NewColumnFilter(`[?#\x00-\x1f]`)
	if err != nil {
		t.Fatal(err)
	}
	if got := filter.Apply(" preço? "); got != "preço" {
		t.Fatalf("got %q", got)
	}
	cleaned := filter.ApplyAll([]string{"id", "??", "nome"})
	if !reflect.DeepEqual(cleaned, []string{"id", "nome"}) {
		t.Fatalf("got %v", cleaned)
	}
}
