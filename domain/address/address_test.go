package address

import (
	"testing"
)

func TestParse(t *testing.T) {
	u, err := Parse("rpc://192.168.1.10:20880/demo.Echo?side=provider&methods=echo")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if u.Scheme() != "rpc" {
		t.Errorf("Scheme() = %s, want rpc", u.Scheme())
	}
	if u.Host() != "192.168.1.10" {
		t.Errorf("Host() = %s, want 192.168.1.10", u.Host())
	}
	if u.Port() != 20880 {
		t.Errorf("Port() = %d, want 20880", u.Port())
	}
	if u.Path() != "demo.Echo" {
		t.Errorf("Path() = %s, want demo.Echo", u.Path())
	}
	if got := u.ParamOr("side", ""); got != "provider" {
		t.Errorf("ParamOr(side) = %s, want provider", got)
	}
}

func TestParse_MissingScheme(t *testing.T) {
	if _, err := Parse("192.168.1.10:20880/demo.Echo"); err == nil {
		t.Error("Parse() should fail without scheme")
	}
}

func TestString_SortedAndPortElided(t *testing.T) {
	u := New("injvm", "127.0.0.1", 0, "demo.Echo", map[string]string{
		"b": "2",
		"a": "1",
	})
	want := "injvm://127.0.0.1/demo.Echo?a=1&b=2"
	if got := u.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		url  URL
	}{
		{
			name: "basic",
			url:  New("rpc", "10.0.0.1", 20880, "demo.Echo", map[string]string{"side": "provider", "methods": "echo"}),
		},
		{
			name: "no port",
			url:  New("injvm", "127.0.0.1", 0, "demo.Echo", nil),
		},
		{
			name: "special characters",
			url:  New("rpc", "10.0.0.1", 7070, "a/b", map[string]string{"key": "a b&c=d%e", "empty": ""}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.url.String())
			if err != nil {
				t.Fatalf("Parse(String()) error = %v", err)
			}
			if !got.Equal(tt.url) {
				t.Errorf("round trip mismatch:\n got %s\nwant %s", got, tt.url)
			}
		})
	}
}

func TestRoundTrip_NestedAddress(t *testing.T) {
	export := New("rpc", "10.0.0.1", 20880, "demo.Echo", map[string]string{
		"side":    "provider",
		"methods": "echo",
	})
	reg := New("registry", "127.0.0.1", 2181, "RegistryService", map[string]string{
		"registry": "memory",
	}).WithEncodedParam("export", export)

	parsed, err := Parse(reg.String())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parsed.Equal(reg) {
		t.Fatalf("outer round trip mismatch:\n got %s\nwant %s", parsed, reg)
	}

	nested, err := Parse(parsed.EncodedParam("export"))
	if err != nil {
		t.Fatalf("Parse(EncodedParam()) error = %v", err)
	}
	if !nested.Equal(export) {
		t.Errorf("nested round trip mismatch:\n got %s\nwant %s", nested, export)
	}
}

func TestImmutability(t *testing.T) {
	params := map[string]string{"a": "1"}
	u := New("rpc", "h", 1, "p", params)

	// Mutating the source map must not affect the URL.
	params["a"] = "changed"
	if got := u.ParamOr("a", ""); got != "1" {
		t.Errorf("source map mutation leaked: a = %s", got)
	}

	// With* must not affect the original.
	u2 := u.WithParam("a", "2").WithHost("other").WithPort(9)
	if got := u.ParamOr("a", ""); got != "1" {
		t.Errorf("WithParam mutated original: a = %s", got)
	}
	if u.Host() != "h" || u.Port() != 1 {
		t.Errorf("WithHost/WithPort mutated original: %s", u)
	}
	if u2.ParamOr("a", "") != "2" || u2.Host() != "other" {
		t.Errorf("derived value wrong: %s", u2)
	}

	// Params() returns a copy.
	u.Params()["a"] = "changed"
	if got := u.ParamOr("a", ""); got != "1" {
		t.Errorf("Params() copy mutation leaked: a = %s", got)
	}
}

func TestWithParamIfAbsent(t *testing.T) {
	u := New("rpc", "h", 1, "p", map[string]string{"dynamic": "false"})
	if got := u.WithParamIfAbsent("dynamic", "true").ParamOr("dynamic", ""); got != "false" {
		t.Errorf("WithParamIfAbsent overwrote existing value: %s", got)
	}
	if got := u.WithParamIfAbsent("fresh", "v").ParamOr("fresh", ""); got != "v" {
		t.Errorf("WithParamIfAbsent did not set absent key: %s", got)
	}
	if u.WithParamIfAbsent("fresh", "").HasParam("fresh") {
		t.Error("WithParamIfAbsent should ignore empty values")
	}
}

func TestTypedParams(t *testing.T) {
	u := New("rpc", "h", 1, "p", map[string]string{
		"retries": "3",
		"dynamic": "true",
		"bad":     "zzz",
	})
	if got := u.IntParam("retries", 0); got != 3 {
		t.Errorf("IntParam(retries) = %d, want 3", got)
	}
	if got := u.IntParam("bad", 7); got != 7 {
		t.Errorf("IntParam(bad) = %d, want fallback 7", got)
	}
	if !u.BoolParam("dynamic", false) {
		t.Error("BoolParam(dynamic) = false, want true")
	}
	if !u.BoolParam("missing", true) {
		t.Error("BoolParam(missing) should fall back to default")
	}
}

func TestEqual_ParamDifference(t *testing.T) {
	a := New("rpc", "h", 1, "p", map[string]string{"k": "v"})
	b := New("rpc", "h", 1, "p", map[string]string{"k": "other"})
	c := New("rpc", "h", 1, "p", map[string]string{"k": "v", "extra": "x"})
	if a.Equal(b) {
		t.Error("Equal() should detect differing values")
	}
	if a.Equal(c) {
		t.Error("Equal() should detect extra parameters")
	}
}

func TestAuthority(t *testing.T) {
	if got := New("rpc", "h", 20880, "", nil).Authority(); got != "h:20880" {
		t.Errorf("Authority() = %s, want h:20880", got)
	}
	if got := New("injvm", "127.0.0.1", 0, "", nil).Authority(); got != "127.0.0.1" {
		t.Errorf("Authority() = %s, want 127.0.0.1", got)
	}
}

func TestMustParse_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()
	MustParse("no-scheme-here")
}
