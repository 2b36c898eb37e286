// Package schema validates inbound payloads before they reach the engine.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

// ErrInvalidFragment wraps every fragment validation failure.
var ErrInvalidFragment = errors.New("invalid fragment")

// Validator checks struct tags on inbound payloads.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator.
func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks any tagged struct.
func (v *Validator) Validate(event any) error {
	if err := v.v.Struct(event); err != nil {
		return describe(err)
	}
	return nil
}

// ValidateFragment checks a caption fragment. Text must contain something
// other than whitespace; an empty speaker is allowed and later coerced.
func (v *Validator) ValidateFragment(f models.Fragment) error {
	if err := v.Validate(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFragment, err)
	}
	if strings.TrimSpace(f.Text) == "" {
		return fmt.Errorf("%w: text is blank", ErrInvalidFragment)
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
