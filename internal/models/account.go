package models

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultRetry       = 60 * time.Second
	DefaultIdleTimeout = 600 * time.Second

	DefaultTLSPort   = 993
	DefaultPlainPort = 143

	InboxMailbox = "INBOX"
)

// Account describes one watched mailbox. It is immutable once loaded.
type Account struct {
	Name     string   `json:"name"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	User     string   `json:"user"`
	Pass     string   `json:"-"`
	TLS      bool     `json:"tls"`
	Commands []string `json:"commands"`
	// Folders is accepted from the config file but not wired into mailbox
	// selection yet; workers always watch INBOX.
	Folders  []string `json:"folders,omitempty"`
}

// Address returns host:port, applying the TLS/plain default port when unset.
func (a Account) Address() string {
	port := a.Port
	if port == 0 {
		port = DefaultPlainPort
		if a.TLS {
			port = DefaultTLSPort
		}
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(port))
}

func (a Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Host
}

func (a Account) String() string {
	return fmt.Sprintf("%s (%s@%s)", a.DisplayName(), a.User, a.Address())
}

type Settings struct {
	Retry       time.Duration
	IdleTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Retry:       DefaultRetry,
		IdleTimeout: DefaultIdleTimeout,
	}
}
