package session

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// DefaultRequestTimeout bounds every outbound network call so an unreachable
// backend degrades instead of hanging consumers.
var DefaultRequestTimeout = 10 * time.Second

// ConfigObject is the concrete Config used when the host application does not
// bring its own configuration layer.
type ConfigObject struct {
	BaseURL          string   `json:"base_url"`
	PrivilegedEmails []string `json:"privileged_emails,omitempty"`
	RequestTimeoutMS int      `json:"request_timeout_ms,omitempty"`
}

var _ Config = ConfigObject{}

func (c ConfigObject) GetBaseURL() string {
	return c.BaseURL
}

func (c ConfigObject) GetPrivilegedEmails() []string {
	return c.PrivilegedEmails
}

func (c ConfigObject) GetRequestTimeout() time.Duration {
	if c.RequestTimeoutMS <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate will validate the config
func (c ConfigObject) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.PrivilegedEmails, validation.By(validateEmailList)),
		validation.Field(&c.RequestTimeoutMS, validation.Min(0)),
	)
}

func validateEmailList(value any) error {
	emails, _ := value.([]string)
	for _, email := range emails {
		if err := validation.Validate(email, is.Email); err != nil {
			return err
		}
	}
	return nil
}
