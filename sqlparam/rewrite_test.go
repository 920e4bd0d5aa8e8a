package sqlparam

import "testing"

func rewrite(t *testing.T, style Style, in string) *Query {
	t.Helper()
	q, err := Rewrite(style, in)
	if err != nil {
		t.Fatalf("rewrite %q: %v", in, err)
	}
	return q
}

func TestQmark(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT * FROM t WHERE a = ? AND b = ?")
	if q.SQL != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("got %q", q.SQL)
	}
	if q.NumParams != 2 {
		t.Fatalf("num params %d", q.NumParams)
	}
}

func TestNumeric(t *testing.T) {
	q := rewrite(t, Numeric, "SELECT :2, :1")
	if q.SQL != "SELECT $2, $1" {
		t.Fatalf("got %q", q.SQL)
	}
	if q.NumParams != 2 {
		t.Fatalf("num params %d", q.NumParams)
	}
}

func TestNumericLeavesCastsAlone(t *testing.T) {
	q := rewrite(t, Numeric, "SELECT '5'::int, :1")
	if q.SQL != "SELECT '5'::int, $1" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestFormat(t *testing.T) {
	q := rewrite(t, Format, "INSERT INTO t VALUES (%s, %s)")
	if q.SQL != "INSERT INTO t VALUES ($1, $2)" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestFormatEscapedPercent(t *testing.T) {
	q := rewrite(t, Format, "SELECT 'x' WHERE a LIKE '10%%' AND b = %s")
	if q.SQL != "SELECT 'x' WHERE a LIKE '10%%' AND b = $1" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestFormatDoublePercentOutsideQuotes(t *testing.T) {
	q := rewrite(t, Format, "SELECT 1 %% 2, %s")
	if q.SQL != "SELECT 1 % 2, $1" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestNamed(t *testing.T) {
	q := rewrite(t, Named, "SELECT :name, :age, :name")
	if q.SQL != "SELECT $1, $2, $1" {
		t.Fatalf("got %q", q.SQL)
	}
	if len(q.Names) != 2 || q.Names[0] != "name" || q.Names[1] != "age" {
		t.Fatalf("names %v", q.Names)
	}
}

func TestPyformat(t *testing.T) {
	q := rewrite(t, Pyformat, "SELECT %(a)s + %(b)s + %(a)s")
	if q.SQL != "SELECT $1 + $2 + $1" {
		t.Fatalf("got %q", q.SQL)
	}
	if len(q.Names) != 2 {
		t.Fatalf("names %v", q.Names)
	}
}

func TestPlaceholdersInsideStringLiteral(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT 'a?b', \"c?d\", ? FROM t")
	if q.SQL != "SELECT 'a?b', \"c?d\", $1 FROM t" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestPlaceholderInsideQuoteEscape(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT 'it''s ?', ?")
	if q.SQL != "SELECT 'it''s ?', $1" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestPlaceholderInsideEscapeString(t *testing.T) {
	q := rewrite(t, Qmark, `SELECT E'\'?\'', ?`)
	if q.SQL != `SELECT E'\'?\'', $1` {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestPlaceholderInsideDollarQuote(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT $$a?b$$, $tag$x ? y$tag$, ?")
	if q.SQL != "SELECT $$a?b$$, $tag$x ? y$tag$, $1" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestDollarNumberIsNotADollarQuote(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT $1 + ?")
	if q.SQL != "SELECT $1 + $2" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestPlaceholderInsideLineComment(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT ? -- is this a ? no\n, ?")
	if q.SQL != "SELECT $1 -- is this a ? no\n, $2" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestPlaceholderInsideNestedBlockComment(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT /* outer /* inner ? */ still ? */ ?")
	if q.SQL != "SELECT /* outer /* inner ? */ still ? */ $1" {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	inputs := map[Style]string{
		Qmark:    "SELECT a, 'x?y' FROM t WHERE b = ? AND c = ? -- trailing ?",
		Numeric:  "SELECT :1, '::', :2::int",
		Named:    "UPDATE t SET a = :a WHERE b = :b",
		Format:   "SELECT %s, '100%%', 7 %% 2",
		Pyformat: "SELECT %(x)s, %(y)s",
	}
	for style, in := range inputs {
		first := rewrite(t, style, in)
		second := rewrite(t, style, first.SQL)
		if second.SQL != first.SQL {
			t.Errorf("%s: not idempotent:\n first %q\nsecond %q", style, first.SQL, second.SQL)
		}
	}
}

func TestRewriteDeterministic(t *testing.T) {
	in := "SELECT %(a)s, %(b)s, %(a)s"
	a := rewrite(t, Pyformat, in)
	b := rewrite(t, Pyformat, in)
	if a.SQL != b.SQL {
		t.Fatalf("non-deterministic rewrite: %q vs %q", a.SQL, b.SQL)
	}
}

func TestBindPositional(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT ?, ?")
	args, err := q.Bind([]any{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 2 {
		t.Fatalf("args %v", args)
	}
	if _, err := q.Bind([]any{1}); err == nil {
		t.Fatal("expected count mismatch error")
	}
	if _, err := q.BindMap(map[string]any{"a": 1}); err == nil {
		t.Fatal("expected error binding map to positional query")
	}
}

func TestBindNamed(t *testing.T) {
	q := rewrite(t, Named, "SELECT :b, :a, :b")
	args, err := q.BindMap(map[string]any{"a": "A", "b": "B"})
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 2 || args[0] != "B" || args[1] != "A" {
		t.Fatalf("args %v", args)
	}
	if _, err := q.BindMap(map[string]any{"a": "A"}); err == nil {
		t.Fatal("expected missing parameter error")
	}
}

func TestMalformedPyformat(t *testing.T) {
	if _, err := Rewrite(Pyformat, "SELECT %(name"); err == nil {
		t.Fatal("expected error for unterminated placeholder")
	}
}

func TestParseStyle(t *testing.T) {
	for _, s := range []string{"qmark", "numeric", "named", "format", "pyformat"} {
		if _, err := ParseStyle(s); err != nil {
			t.Errorf("style %s rejected: %v", s, err)
		}
	}
	if _, err := ParseStyle("oracle"); err == nil {
		t.Error("expected error for unknown style")
	}
}

func TestUTF8Passthrough(t *testing.T) {
	q := rewrite(t, Qmark, "SELECT 'Mü?chen', ?")
	if q.SQL != "SELECT 'Mü?chen', $1" {
		t.Fatalf("got %q", q.SQL)
	}
}
