package schema

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

func profileOf(t *testing.T, recs []records.Record) DatasetProfile {
	t.Helper()
	p := NewProfiler()
	for _, rec := range recs {
		p.Observe(rec)
	}
	profile, err := p.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return profile
}

// TestInferColumnTypes verifies semantic type detection across a mixed
// dataset, including the name-keyword override for amount columns.
func TestInferColumnTypes(t *testing.T) {
	t.Parallel()

	var recs []records.Record
	for i := 0; i < 50; i++ {
		recs = append(recs, records.Record{
			"transaction_amount": fmt.Sprintf("%d.25", 100+i),
			"contact_email":      fmt.Sprintf("user%d@example.com", i),
			"signup_date":        fmt.Sprintf("2025-03-%02d", i%28+1),
			"discount":           fmt.Sprintf("%d%%", i%30),
			"active":             []string{"true", "false"}[i%2],
			"notes":              fmt.Sprintf("free text note %d with no structure", i),
		})
	}

	profile := profileOf(t, recs)

	want := map[string]Kind{
		"transaction_amount": KindCurrency,
		"contact_email":      KindEmail,
		"signup_date":        KindDate,
		"discount":           KindPercentage,
		"active":             KindBoolean,
		"notes":              KindText,
	}
	for name, kind := range want {
		cs, ok := profile.Columns[name]
		if !ok {
			t.Fatalf("missing column %q", name)
		}
		if cs.Type != kind {
			t.Errorf("%s: type=%q, want %q", name, cs.Type, kind)
		}
	}

	if cs := profile.Columns["transaction_amount"]; cs.Confidence < 0.8 {
		t.Errorf("transaction_amount confidence=%v, want >= 0.8", cs.Confidence)
	}
}

// TestInferBooleanBeatsNumeric verifies two-token 0/1 columns read as
// boolean, not numeric.
func TestInferBooleanBeatsNumeric(t *testing.T) {
	t.Parallel()

	var recs []records.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, records.Record{"flag": fmt.Sprintf("%d", i%2)})
	}
	profile := profileOf(t, recs)
	if got := profile.Columns["flag"].Type; got != KindBoolean {
		t.Fatalf("flag type=%q, want boolean", got)
	}
}

// TestInferCategoricalFallback verifies repeated low-cardinality text
// becomes categorical rather than plain text.
func TestInferCategoricalFallback(t *testing.T) {
	t.Parallel()

	regions := []string{"north region x", "south region y", "east region z"}
	var recs []records.Record
	for i := 0; i < 60; i++ {
		recs = append(recs, records.Record{"region": regions[i%3]})
	}
	profile := profileOf(t, recs)
	cs := profile.Columns["region"]
	if cs.Type != KindCategorical {
		t.Fatalf("region type=%q, want categorical", cs.Type)
	}
	if cs.UniqueCount != 3 {
		t.Fatalf("region unique=%d, want 3", cs.UniqueCount)
	}
}

// TestFinishEmpty verifies the empty sentinel.
func TestFinishEmpty(t *testing.T) {
	t.Parallel()

	_, err := NewProfiler().Finish()
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("err=%v, want ErrEmptyDataset", err)
	}
}

// TestFinishIdempotent verifies Finish can be called mid-run for a
// provisional profile and again at the end with the same types.
func TestFinishIdempotent(t *testing.T) {
	t.Parallel()

	p := NewProfiler()
	for i := 0; i < 10; i++ {
		p.Observe(records.Record{"amount": fmt.Sprintf("%d", i)})
	}
	early, err := p.Finish()
	if err != nil {
		t.Fatalf("early Finish: %v", err)
	}
	for i := 10; i < 200; i++ {
		p.Observe(records.Record{"amount": fmt.Sprintf("%d", i)})
	}
	late, err := p.Finish()
	if err != nil {
		t.Fatalf("late Finish: %v", err)
	}
	if early.Columns["amount"].Type != late.Columns["amount"].Type {
		t.Fatalf("type drifted: early=%q late=%q", early.Columns["amount"].Type, late.Columns["amount"].Type)
	}
	if late.RowCount != 200 {
		t.Fatalf("late RowCount=%d, want 200", late.RowCount)
	}
}

// TestQualityMonotonicity verifies a dataset with more missing values
// never scores higher than the same dataset complete.
func TestQualityMonotonicity(t *testing.T) {
	t.Parallel()

	build := func(nullEvery int) DatasetProfile {
		var recs []records.Record
		for i := 0; i < 60; i++ {
			rec := records.Record{"amount": fmt.Sprintf("%d", 100+i), "name": fmt.Sprintf("item %d text", i)}
			if nullEvery > 0 && i%nullEvery == 0 {
				rec["amount"] = nil
			}
			recs = append(recs, rec)
		}
		return profileOf(t, recs)
	}

	complete := build(0)
	sparse := build(3)
	if sparse.QualityScore > complete.QualityScore {
		t.Fatalf("sparse quality %v > complete %v", sparse.QualityScore, complete.QualityScore)
	}
	if complete.Columns["amount"].Completeness != 1 {
		t.Fatalf("complete completeness=%v, want 1", complete.Columns["amount"].Completeness)
	}
	if sparse.Columns["amount"].Completeness >= 1 {
		t.Fatalf("sparse completeness=%v, want < 1", sparse.Columns["amount"].Completeness)
	}
}

// TestInconsistentFlag verifies spread numeric columns are flagged.
func TestInconsistentFlag(t *testing.T) {
	t.Parallel()

	vals := []string{"1", "1", "1", "1", "1", "1", "1", "1", "1", "10000"}
	var recs []records.Record
	for _, v := range vals {
		recs = append(recs, records.Record{"spread": v, "steady": "5"})
	}
	profile := profileOf(t, recs)
	if !profile.Columns["spread"].Inconsistent {
		t.Error("spread column not flagged inconsistent")
	}
	if profile.Columns["steady"].Inconsistent {
		t.Error("steady column flagged inconsistent")
	}
}

// TestCanonicalize verifies per-cell transforms and the non-fatal error
// path for values that fail their column's transform.
func TestCanonicalize(t *testing.T) {
	t.Parallel()

	profile := DatasetProfile{Columns: map[string]ColumnSchema{
		"amount": {Name: "amount", Type: KindCurrency},
		"when":   {Name: "when", Type: KindDate},
		"pct":    {Name: "pct", Type: KindPercentage},
		"ok":     {Name: "ok", Type: KindBoolean},
		"note":   {Name: "note", Type: KindText},
	}}

	var terrs []*TransformError
	out := Canonicalize(records.Record{
		"amount": "$1,234.56",
		"when":   "2025-03-15",
		"pct":    "12.5%",
		"ok":     "yes",
		"note":   "hello",
		"extra":  "untyped",
	}, profile, func(e *TransformError) { terrs = append(terrs, e) })

	if got := out["amount"]; got != 1234.56 {
		t.Errorf("amount=%v, want 1234.56", got)
	}
	if got, ok := out["when"].(time.Time); !ok || got.Year() != 2025 || got.Month() != time.March {
		t.Errorf("when=%v, want March 2025", out["when"])
	}
	if got := out["pct"]; got != 0.125 {
		t.Errorf("pct=%v, want 0.125", got)
	}
	if got := out["ok"]; got != true {
		t.Errorf("ok=%v, want true", got)
	}
	if got := out["note"]; got != "hello" {
		t.Errorf("note=%v, want raw passthrough", got)
	}
	if got := out["extra"]; got != "untyped" {
		t.Errorf("extra=%v, want raw passthrough", got)
	}
	if len(terrs) != 0 {
		t.Fatalf("unexpected transform errors: %v", terrs)
	}

	out = Canonicalize(records.Record{"when": "not a date"}, profile, func(e *TransformError) { terrs = append(terrs, e) })
	if len(terrs) != 1 || terrs[0].Column != "when" {
		t.Fatalf("transform errors=%v, want one for column when", terrs)
	}
	if got := out["when"]; got != "not a date" {
		t.Errorf("failed transform must keep raw value, got %v", got)
	}
}

// TestTransformCurrency covers separator and accounting-negative forms.
func TestTransformCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"$1,234.56", 1234.56},
		{"€ 99", 99},
		{"1 234,00 ¥", 123400},
		{"($500.00)", -500},
		{"-$25.50", -25.50},
	}
	for _, tc := range tests {
		got, err := transformCurrency(tc.in)
		if err != nil {
			t.Fatalf("transformCurrency(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("transformCurrency(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

// TestNormalizeFieldName covers diacritics, separators and symbols.
func TestNormalizeFieldName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Transaction Amount", "transaction_amount"},
		{"  Région/Zone  ", "region_zone"},
		{"order-id", "order_id"},
		{"Price ($)", "price"},
		{"__weird__", "weird"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range tests {
		if got := NormalizeFieldName(tc.in); got != tc.want {
			t.Errorf("NormalizeFieldName(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestTruncateFieldName verifies long identifiers are cut at the byte
// limit without splitting a multi-byte rune.
func TestTruncateFieldName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in, want string
	}{
		{"short_passthrough", "transaction_amount", "transaction_amount"},
		{"long_ascii", strings.Repeat("a", 70), strings.Repeat("a", 63)},
		{"rune_boundary", strings.Repeat("a", 62) + "é", strings.Repeat("a", 62)},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		if got := TruncateFieldName(tc.in); got != tc.want {
			t.Errorf("%s: TruncateFieldName=%q, want %q", tc.name, got, tc.want)
		}
	}
}
