package constants

import (
	"errors"
	"strings"
)

// ErrInvalidMode is returned for a mode other than online or offline.
var ErrInvalidMode = errors.New("invalid rosetta mode")

// NodeMode tells whether the server may reach the chain. Offline servers
// only answer the network metadata endpoints.
type NodeMode uint8

const (
	Unknown NodeMode = iota + 1
	Offline
	Online
)

var nodeModes = map[string]NodeMode{
	"offline": Offline,
	"online":  Online,
}

func (m NodeMode) String() string {
	for name, mode := range nodeModes {
		if mode == m {
			return name
		}
	}
	return "unknown"
}

// GetNodeMode parses a configured mode name, ignoring case and surrounding
// blanks.
func GetNodeMode(s string) (NodeMode, error) {
	if mode, ok := nodeModes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return mode, nil
	}
	return Unknown, ErrInvalidMode
}
