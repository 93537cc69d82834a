// Package config turns command line arguments and config files into the
// validated settings a tunnel session needs.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/termtunnel/termtunnel/tunnel"
)

// MaxUsernameLength is the longest username in bytes, it has to fit the
// buffer the peer reads it into.
const MaxUsernameLength = tunnel.UsernameSize

var (
	ErrRole       = errors.New("invalid role")
	ErrAddress    = errors.New("invalid address")
	ErrUsername   = errors.New("invalid username")
	ErrPassword   = errors.New("invalid password")
	ErrConfigFile = errors.New("invalid config file")
)

// Values are the raw settings as given on the command line or in a YAML file.
type Values struct {
	Role             string        `yaml:"role"`
	Address          string        `yaml:"address"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	Salt             string        `yaml:"salt"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	LogFile          string        `yaml:"log_file"`
}

// Config holds validated settings.
type Config struct {
	Role             tunnel.Role
	Address          *net.TCPAddr
	Username         string
	Digest           []byte
	HandshakeTimeout time.Duration
	TickInterval     time.Duration
	LogFile          string
}

// Merge returns v with every field that is set in override replaced.
func (v Values) Merge(override Values) Values {
	pick := func(base, o string) string {
		if o != "" {
			return o
		}
		return base
	}
	v.Role = pick(v.Role, override.Role)
	v.Address = pick(v.Address, override.Address)
	v.Username = pick(v.Username, override.Username)
	v.Password = pick(v.Password, override.Password)
	v.Salt = pick(v.Salt, override.Salt)
	v.LogFile = pick(v.LogFile, override.LogFile)
	if override.HandshakeTimeout != 0 {
		v.HandshakeTimeout = override.HandshakeTimeout
	}
	if override.TickInterval != 0 {
		v.TickInterval = override.TickInterval
	}
	return v
}

// Validate checks the values and derives the password digest.
func (v Values) Validate() (Config, error) {
	role, err := ParseRole(v.Role)
	if err != nil {
		return Config{}, err
	}
	addr, err := net.ResolveTCPAddr("tcp", strings.TrimSpace(v.Address))
	if err != nil || strings.TrimSpace(v.Address) == "" {
		return Config{}, fmt.Errorf("%w: %q", ErrAddress, v.Address)
	}
	username, err := ParseUsername(v.Username)
	if err != nil {
		return Config{}, err
	}
	password := strings.TrimSpace(v.Password)
	if password == "" {
		return Config{}, fmt.Errorf("%w: password is empty", ErrPassword)
	}
	if v.HandshakeTimeout < 0 || v.TickInterval < 0 {
		return Config{}, fmt.Errorf("%w: durations must not be negative", ErrConfigFile)
	}

	c := Config{
		Role:             role,
		Address:          addr,
		Username:         username,
		Digest:           Digest(password, v.Salt),
		HandshakeTimeout: v.HandshakeTimeout,
		TickInterval:     v.TickInterval,
		LogFile:          v.LogFile,
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = tunnel.DefaultHandshakeTimeout
	}
	if c.TickInterval == 0 {
		c.TickInterval = tunnel.DefaultTickInterval
	}
	return c, nil
}

// ParseRole accepts "host" and "connect", with or without leading dashes.
func ParseRole(s string) (tunnel.Role, error) {
	switch strings.TrimLeft(strings.TrimSpace(s), "-") {
	case "host":
		return tunnel.Listener, nil
	case "connect":
		return tunnel.Connector, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrRole, s)
	}
}

// ParseUsername trims the name and checks that it is not blank and fits the
// username buffer of the peer.
func ParseUsername(s string) (string, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", fmt.Errorf("%w: username is empty", ErrUsername)
	}
	if len(name) > MaxUsernameLength {
		return "", fmt.Errorf("%w: username is too long (%d byte limit)", ErrUsername, MaxUsernameLength)
	}
	return name, nil
}

// Endpoint converts the settings into what tunnel.Establish needs.
func (c Config) Endpoint() tunnel.Endpoint {
	return tunnel.Endpoint{
		Role:             c.Role,
		Address:          c.Address.String(),
		Username:         c.Username,
		Digest:           c.Digest,
		HandshakeTimeout: c.HandshakeTimeout,
	}
}
