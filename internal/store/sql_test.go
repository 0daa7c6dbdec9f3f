package store

import (
	"testing"
	"time"
)

func TestDialectRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y = ? LIMIT ?`
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := `SELECT a FROM t WHERE x = $1 AND y = $2 LIMIT $3`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestScanTime(t *testing.T) {
	ref := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)
	inputs := []any{
		ref,
		ref.Format(time.RFC3339Nano),
		[]byte(ref.Format(time.RFC3339Nano)),
		"2025-03-14 09:26:53.589+00:00",
	}
	for _, in := range inputs {
		var st scanTime
		if err := st.Scan(in); err != nil {
			t.Fatalf("Scan(%v) error = %v", in, err)
		}
		if !st.Time.Equal(ref) {
			t.Errorf("Scan(%v) = %v, want %v", in, st.Time, ref)
		}
	}

	var st scanTime
	if err := st.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestJSONArg_EmptyIsNull(t *testing.T) {
	for _, v := range []any{nil, map[string]interface{}{}, []string{}, map[string]float64{}} {
		got, err := jsonArg(v)
		if err != nil || got != nil {
			t.Errorf("jsonArg(%#v) = %v, %v; want nil", v, got, err)
		}
	}
	got, err := jsonArg([]string{"hiking"})
	if err != nil || got != `["hiking"]` {
		t.Errorf("jsonArg(slice) = %v, %v", got, err)
	}
}

func TestNewID_Monotonic(t *testing.T) {
	prev := NewID()
	for i := 0; i < 1000; i++ {
		next := NewID()
		if next <= prev {
			t.Fatalf("NewID() not increasing: %s after %s", next, prev)
		}
		prev = next
	}
}
