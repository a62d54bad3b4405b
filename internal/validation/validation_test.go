package validation

import (
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"trims whitespace", "  hello  ", 100, "hello"},
		{"strips null bytes", "he\x00llo", 100, "hello"},
		{"caps length", strings.Repeat("a", 20), 10, strings.Repeat("a", 10)},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	errs := Validate(
		Required("merchant", ""),
		NonNegative("amount", -5),
		InUnitRange("weight", 1.2),
	)

	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "merchant" || errs[1].Field != "amount" || errs[2].Field != "weight" {
		t.Errorf("unexpected error fields: %v", errs)
	}
}

func TestValidate_PassesValidInput(t *testing.T) {
	errs := Validate(
		Required("merchant", "Amazon"),
		NonNegative("amount", 42.50),
		InUnitRange("weight", 0.7),
		OneOf("condition", "greater_than", "greater_than", "less_than", "equals"),
	)

	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestOneOf_RejectsUnknownValue(t *testing.T) {
	errs := Validate(OneOf("rule_type", "geo_fence", "amount", "velocity", "location", "merchant", "time"))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if !strings.Contains(errs[0].Message, "must be one of") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestInUnitRange_Boundaries(t *testing.T) {
	if err := InUnitRange("weight", 0)(); err != nil {
		t.Errorf("0 should be valid: %v", err)
	}
	if err := InUnitRange("weight", 1)(); err != nil {
		t.Errorf("1 should be valid: %v", err)
	}
	if err := InUnitRange("weight", -0.001)(); err == nil {
		t.Error("-0.001 should be invalid")
	}
}
