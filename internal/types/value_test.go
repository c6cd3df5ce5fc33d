package types

import "testing"

func TestValue_AsInt(t *testing.T) {
	tests := []struct {
		name   string
		value  Value
		want   int64
		wantOK bool
	}{
		{"int passthrough", IntValue(42), 42, true},
		{"integral float", FloatValue(7.0), 7, true},
		{"fractional float rejected", FloatValue(7.5), 0, false},
		{"numeric string", StringValue("123"), 123, true},
		{"numeric string with whitespace", StringValue("  -9 "), -9, true},
		{"non-numeric string rejected", StringValue("ten"), 0, false},
		{"float string rejected", StringValue("1.5"), 0, false},
		{"null rejected", Null(), 0, false},
		{"bool rejected", BoolValue(true), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.value.AsInt()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("AsInt() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int equals integral float", IntValue(5), FloatValue(5.0), true},
		{"int vs different float", IntValue(5), FloatValue(5.5), false},
		{"number never equals numeric string", IntValue(5), StringValue("5"), false},
		{"null equals null", Null(), Null(), true},
		{"null vs zero", Null(), IntValue(0), false},
		{"bool", BoolValue(true), BoolValue(true), true},
		{"lists elementwise", ListValue([]Value{IntValue(1), StringValue("a")}), ListValue([]Value{FloatValue(1), StringValue("a")}), true},
		{"lists length mismatch", ListValue([]Value{IntValue(1)}), ListValue(nil), false},
		{"maps keywise", MapValue(map[string]Value{"x": IntValue(1)}), MapValue(map[string]Value{"x": IntValue(1)}), true},
		{"maps differing key", MapValue(map[string]Value{"x": IntValue(1)}), MapValue(map[string]Value{"y": IntValue(1)}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromJSON_PreservesIntFloat(t *testing.T) {
	v, err := FromJSON("5")
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if v.Kind != KindInt || v.Int != 5 {
		t.Errorf("FromJSON(5) = %v, want KindInt 5", v)
	}

	v, err = FromJSON("5.5")
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if v.Kind != KindFloat || v.Float != 5.5 {
		t.Errorf("FromJSON(5.5) = %v, want KindFloat 5.5", v)
	}
}

func TestFromJSON_Structured(t *testing.T) {
	v, err := FromJSON(`{"count": 3, "tags": ["a", "b"], "ok": true, "gone": null}`)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if v.Kind != KindMap {
		t.Fatalf("Kind = %v, want map", v.Kind)
	}
	if v.Map["count"].Kind != KindInt || v.Map["count"].Int != 3 {
		t.Errorf("count = %v, want int 3", v.Map["count"])
	}
	if v.Map["tags"].Kind != KindList || len(v.Map["tags"].List) != 2 {
		t.Errorf("tags = %v, want two-element list", v.Map["tags"])
	}
	if !v.Map["gone"].IsNull() {
		t.Errorf("gone = %v, want null", v.Map["gone"])
	}
}

func TestFromJSON_Errors(t *testing.T) {
	for _, raw := range []string{"", "{", "5 6", `"unterminated`} {
		if _, err := FromJSON(raw); err == nil {
			t.Errorf("FromJSON(%q) expected error", raw)
		}
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	original := MapValue(map[string]Value{
		"n":    IntValue(41),
		"f":    FloatValue(2.5),
		"s":    StringValue("hi"),
		"list": ListValue([]Value{BoolValue(false), Null()}),
	})
	encoded, err := original.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	decoded, err := FromJSON(encoded)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if !original.Equal(decoded) {
		t.Errorf("round trip changed value: %v -> %v", original, decoded)
	}
}

func TestValue_String(t *testing.T) {
	v := MapValue(map[string]Value{"b": IntValue(2), "a": StringValue("x")})
	// Map keys render sorted for stable log output
	if got := v.String(); got != "{a: x, b: 2}" {
		t.Errorf("String() = %q, want %q", got, "{a: x, b: 2}")
	}
	if got := FloatValue(1.5).String(); got != "1.5" {
		t.Errorf("String() = %q, want 1.5", got)
	}
}
