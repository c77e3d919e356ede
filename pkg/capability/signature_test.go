package capability

import (
	"errors"
	"reflect"
	"testing"
)

func TestSignatureCheck(t *testing.T) {
	signature := Signature{
		Required("path", "file to delete"),
		Optional("content", "initial content"),
	}

	tests := []struct {
		name           string
		params         Params
		wantUnexpected []string
		wantMissing    []string
	}{
		{"exact", Params{"path": "/tmp/x"}, nil, nil},
		{"optional supplied", Params{"path": "/tmp/x", "content": "hi"}, nil, nil},
		{"confirm always accepted", Params{"path": "/tmp/x", "confirm": true}, nil, nil},
		{"unexpected key", Params{"path": "/tmp/x", "wrong_param": 1}, []string{"wrong_param"}, nil},
		{"missing required", Params{"content": "hi"}, nil, []string{"path"}},
		{"both", Params{"b": 1, "a": 2}, []string{"a", "b"}, []string{"path"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := signature.Check(test.params)
			if test.wantUnexpected == nil && test.wantMissing == nil {
				if err != nil {
					t.Fatalf("Check() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrParamMismatch) {
				t.Fatalf("Check() = %v, want ErrParamMismatch", err)
			}
			var mismatch *MismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("Check() error is %T", err)
			}
			if !reflect.DeepEqual(mismatch.Unexpected, test.wantUnexpected) {
				t.Errorf("Unexpected = %v, want %v", mismatch.Unexpected, test.wantUnexpected)
			}
			if !reflect.DeepEqual(mismatch.Missing, test.wantMissing) {
				t.Errorf("Missing = %v, want %v", mismatch.Missing, test.wantMissing)
			}
		})
	}
}

func TestSignatureString(t *testing.T) {
	signature := Signature{Required("path", ""), Optional("content", "")}
	if got := signature.String(); got != "(path, content?)" {
		t.Errorf("String() = %q", got)
	}
	if got := (Signature{}).String(); got != "()" {
		t.Errorf("empty String() = %q", got)
	}
}

func TestParamsAccessors(t *testing.T) {
	params := Params{
		"text":    "hi",
		"count":   float64(3),
		"ratio":   1.5,
		"all":     true,
		"confirm": "true",
	}

	if text, err := params.String("text"); err != nil || text != "hi" {
		t.Errorf("String(text) = %q, %v", text, err)
	}
	if _, err := params.String("absent"); err == nil {
		t.Error("String(absent) should fail")
	}
	if _, err := params.String("count"); err == nil {
		t.Error("String(count) should fail on a number")
	}
	if value, err := params.StringOr("absent", "fallback"); err != nil || value != "fallback" {
		t.Errorf("StringOr = %q, %v", value, err)
	}
	if count, err := params.IntOr("count", 0); err != nil || count != 3 {
		t.Errorf("IntOr(count) = %d, %v", count, err)
	}
	if _, err := params.IntOr("ratio", 0); err == nil {
		t.Error("IntOr(ratio) should reject a fraction")
	}
	if all, err := params.BoolOr("all", false); err != nil || !all {
		t.Errorf("BoolOr(all) = %v, %v", all, err)
	}
	if params.Confirmed() {
		t.Error(`"true" string must not count as confirmation`)
	}
	if !(Params{"confirm": true}).Confirmed() {
		t.Error("confirm: true should be confirmed")
	}
}

func TestParseTier(t *testing.T) {
	for _, name := range []string{"safe", "Medium", " dangerous ", "CRITICAL"} {
		if _, err := ParseTier(name); err != nil {
			t.Errorf("ParseTier(%q): %v", name, err)
		}
	}
	if _, err := ParseTier("extreme"); err == nil {
		t.Error("ParseTier(extreme) should fail")
	}

	var tier Tier
	if err := tier.UnmarshalText([]byte("dangerous")); err != nil || tier != TierDangerous {
		t.Errorf("UnmarshalText = %v, %v", tier, err)
	}
	if !(TierSafe < TierMedium && TierMedium < TierDangerous && TierDangerous < TierCritical) {
		t.Error("tiers are not ordered")
	}
}
