package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Credential exchange API credentials. Never logged or serialized.
type Credential struct {
	APIKey     string `json:"-" yaml:"-"`
	APISecret  string `json:"-" yaml:"-"`
	Passphrase string `json:"-" yaml:"-"`
}

// Empty reports whether no credential field is set.
func (c Credential) Empty() bool {
	return c.APIKey == "" && c.APISecret == "" && c.Passphrase == ""
}

// Complete reports whether every credential field is set.
func (c Credential) Complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.Passphrase != ""
}

// Validate fails on incomplete credentials and names the missing parts.
func (c Credential) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "api key")
	}
	if c.APISecret == "" {
		missing = append(missing, "api secret")
	}
	if c.Passphrase == "" {
		missing = append(missing, "passphrase")
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrConfiguration, "incomplete credentials, missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// String redacts the secret parts.
func (c Credential) String() string {
	if c.Empty() {
		return "Credential{}"
	}
	return "Credential{***}"
}

// GoString keeps %#v from printing secrets.
func (c Credential) GoString() string {
	return c.String()
}
