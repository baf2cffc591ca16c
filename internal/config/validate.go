package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/bytes"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the size expressions.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := bytes.Parse(c.Server.BodyLimit); err != nil {
		return fmt.Errorf("config validation failed: invalid BodyLimit %q", c.Server.BodyLimit)
	}
	if _, err := c.MaxUploadBytes(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
