package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// AuthKind enumerates the supported SSH authentication modes.
type AuthKind string

const (
	AuthPassword   AuthKind = "password"
	AuthPrivateKey AuthKind = "privateKey"
)

// Target is a named remote host plus its connection parameters.
type Target struct {
	Name       string    `yaml:"name" json:"name"`
	Host       string    `yaml:"host" json:"host"`
	Port       int       `yaml:"port" json:"port"`
	Username   string    `yaml:"username" json:"username"`
	AuthType   AuthKind  `yaml:"authType" json:"authType"`
	Password   string    `yaml:"password,omitempty" json:"password,omitempty"`
	PrivateKey string    `yaml:"privateKey,omitempty" json:"privateKey,omitempty"`
	Passphrase string    `yaml:"passphrase,omitempty" json:"passphrase,omitempty"`
	CreatedAt  time.Time `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// Identity is the display form user@host; it never carries credentials.
func (t Target) Identity() string {
	return fmt.Sprintf("%s@%s", t.Username, t.Host)
}

// Address returns host:port with the SSH default applied.
func (t Target) Address() string {
	port := t.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Redacted returns a copy safe to log or send to clients.
func (t Target) Redacted() TargetSummary {
	return TargetSummary{
		Name:     t.Name,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.Username,
		AuthType: t.AuthType,
	}
}

// TargetSummary is the credential-free view of a Target.
type TargetSummary struct {
	Name     string   `json:"name"`
	Host     string   `json:"host"`
	Port     int      `json:"port,omitempty"`
	Username string   `json:"username"`
	AuthType AuthKind `json:"authType,omitempty"`
}

// TargetPatch carries a partial update. Empty fields keep the stored value.
type TargetPatch struct {
	Host       string   `json:"host,omitempty"`
	Port       int      `json:"port,omitempty"`
	Username   string   `json:"username,omitempty"`
	AuthType   AuthKind `json:"authType,omitempty"`
	Password   string   `json:"password,omitempty"`
	PrivateKey string   `json:"privateKey,omitempty"`
	Passphrase string   `json:"passphrase,omitempty"`
}

// Validate checks a target before it is stored.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Host) == "" ||
		strings.TrimSpace(t.Username) == "" || t.AuthType == "" {
		return &ValidationError{Message: "Missing required fields"}
	}
	if t.Port < 1 || t.Port > 65535 {
		return &ValidationError{Message: "Port must be a number between 1 and 65535"}
	}
	switch t.AuthType {
	case AuthPassword:
		if t.Password == "" {
			return &ValidationError{Message: "Password is required for password authentication"}
		}
	case AuthPrivateKey:
		if t.PrivateKey == "" {
			return &ValidationError{Message: "Private key is required for key authentication"}
		}
	default:
		return &ValidationError{Message: fmt.Sprintf("Unsupported authentication type %q", t.AuthType)}
	}
	return nil
}

// Apply merges a patch. Supplying a new secret for the active auth kind drops
// the secret of the other kind.
func (t Target) Apply(patch TargetPatch) Target {
	out := t
	if patch.Host != "" {
		out.Host = patch.Host
	}
	if patch.Port != 0 {
		out.Port = patch.Port
	}
	if patch.Username != "" {
		out.Username = patch.Username
	}
	if patch.AuthType != "" {
		out.AuthType = patch.AuthType
	}
	switch out.AuthType {
	case AuthPassword:
		if patch.Password != "" {
			out.Password = patch.Password
			out.PrivateKey = ""
			out.Passphrase = ""
		}
	case AuthPrivateKey:
		if patch.PrivateKey != "" {
			out.PrivateKey = patch.PrivateKey
			out.Passphrase = patch.Passphrase
			out.Password = ""
		} else if patch.Passphrase != "" {
			out.Passphrase = patch.Passphrase
		}
	}
	return out
}
