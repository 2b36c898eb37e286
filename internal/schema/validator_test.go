package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

func TestValidateFragment(t *testing.T) {
	v := New()
	tests := []struct {
		name    string
		f       models.Fragment
		wantErr bool
	}{
		{"valid", models.Fragment{Speaker: "Alice", Text: "hello"}, false},
		{"empty speaker allowed", models.Fragment{Text: "hello"}, false},
		{"missing text", models.Fragment{Speaker: "Alice"}, true},
		{"blank text", models.Fragment{Speaker: "Alice", Text: "   "}, true},
		{"text too long", models.Fragment{Speaker: "Alice", Text: strings.Repeat("a", 4097)}, true},
		{"speaker too long", models.Fragment{Speaker: strings.Repeat("b", 257), Text: "hi"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateFragment(tt.f)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFragment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFragment) {
				t.Errorf("expected ErrInvalidFragment, got %v", err)
			}
		})
	}
}

func TestValidate_DescribesField(t *testing.T) {
	err := New().Validate(models.Fragment{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Text failed required") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
