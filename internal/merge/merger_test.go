package merge

import (
	"errors"
	"strings"
	"testing"
)

func TestParseFixedSplitsSAPColumns(t *testing.T) {
	m := New("Matnr")
	content := "Matnr\tName\tPrice\n" +
		"12345678\tWidget Deluxe  9,99\n" +
		"\n" +
		"87654321\tGadget\t4,50\n"

	rows := m.ParseFixed(content, DelimiterSAP, "")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	row, ok := rows["12345678"]
	if !ok {
		t.Fatal("expected row for key 12345678")
	}
	// A single space stays inside the cell; tabs and runs of two-plus
	// spaces separate columns.
	if row["Name"] != "Widget Deluxe" {
		t.Fatalf("Name = %q, want %q", row["Name"], "Widget Deluxe")
	}
	if row["Price"] != "9,99" {
		t.Fatalf("Price = %q, want 9,99", row["Price"])
	}
	if rows["87654321"]["Price"] != "4,50" {
		t.Fatalf("unexpected second row %v", rows["87654321"])
	}
}

func TestParseFixedPrefixesSecondaryColumns(t *testing.T) {
	m := New("Matnr")
	base := m.ParseFixed("Matnr\tPrice\n11111111\t10,00\n", DelimiterTab, "")
	stock := m.ParseFixed("Matnr\tPrice\n11111111\t12,00\n", DelimiterTab, "stock")

	merged, err := m.Merge(base, stock)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	row := merged["11111111"]
	if row["Price"] != "10,00" {
		t.Fatalf("base Price = %q, want 10,00", row["Price"])
	}
	if row["stock_Price"] != "12,00" {
		t.Fatalf("stock_Price = %q, want 12,00", row["stock_Price"])
	}
}

func TestParseTrailingNumber(t *testing.T) {
	m := New("Matnr")
	content := "12345678  Umwelt-Abgabe  1,25 EUR\n" +
		"garbage line without a key\n" +
		"87654321 no float here\n"

	rows := m.ParseTrailingNumber(content, "tax")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := rows["12345678"]["tax"]; got != "1.25" {
		t.Fatalf("tax = %q, want 1.25", got)
	}
	if got := rows["87654321"]["tax"]; got != "0" {
		t.Fatalf("keyed line without float should default to 0, got %q", got)
	}
}

func TestMergeIsLeftJoin(t *testing.T) {
	m := New("Matnr")
	base := m.ParseFixed("Matnr\tName\n11111111\tWidget\n22222222\tGadget\n", DelimiterTab, "")
	tax := m.ParseTrailingNumber("11111111 0,50\n33333333 9,99\n", "tax")

	merged, err := m.Merge(base, tax)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged rows, got %d", len(merged))
	}
	if _, ok := merged["33333333"]; ok {
		t.Fatal("key absent from base must not survive the join")
	}
	if merged["11111111"]["tax"] != "0.50" {
		t.Fatalf("tax = %q, want 0.50", merged["11111111"]["tax"])
	}
	if _, ok := merged["22222222"]["tax"]; ok {
		t.Fatal("unmatched base row must not gain the tax column")
	}
}

func TestMergeRejectsEmptyBase(t *testing.T) {
	m := New("Matnr")
	if _, err := m.Merge(nil); !errors.Is(err, ErrEmptyBaseFile) {
		t.Fatalf("expected ErrEmptyBaseFile, got %v", err)
	}
}

func TestToCSVIsDeterministic(t *testing.T) {
	m := New("Matnr")
	base := m.ParseFixed("Matnr\tName\n22222222\tGadget\n11111111\tWidget\n", DelimiterTab, "")
	merged, err := m.Merge(base)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	first, err := m.ToCSV(merged, true)
	if err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
	if !strings.HasPrefix(first, "Matnr;Name\n") {
		t.Fatalf("unexpected header: %q", first)
	}
	lines := strings.Split(strings.TrimRight(first, "\n"), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "11111111") {
		t.Fatalf("rows must be sorted by key:\n%s", first)
	}
	for i := 0; i < 5; i++ {
		again, err := m.ToCSV(merged, true)
		if err != nil {
			t.Fatalf("ToCSV: %v", err)
		}
		if again != first {
			t.Fatal("ToCSV output changed between calls")
		}
	}
}
