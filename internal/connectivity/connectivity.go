// Package connectivity reports whether the host has a usable network.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"strings"
)

// Transport classifies a network interface.
type Transport string

const (
	TransportCellular Transport = "cellular"
	TransportWiFi     Transport = "wifi"
	TransportEthernet Transport = "ethernet"
	TransportOther    Transport = "other"
)

// Checker reports network availability.
type Checker interface {
	IsOnline(ctx context.Context) bool
}

// Static is a Checker with a fixed answer.
type Static bool

// IsOnline returns the fixed answer.
func (s Static) IsOnline(context.Context) bool { return bool(s) }

// Interface describes one network interface as seen by the checker.
type Interface struct {
	Name    string
	Up      bool
	Loop    bool
	HasAddr bool
}

// InterfaceChecker inspects the host's interfaces. An interface counts when
// it is up, not loopback, carries an address and is classified as cellular,
// WiFi or ethernet.
type InterfaceChecker struct {
	list func() ([]Interface, error)
}

// NewInterfaceChecker returns a checker over the host's real interfaces.
func NewInterfaceChecker() *InterfaceChecker {
	return &InterfaceChecker{list: hostInterfaces}
}

// IsOnline returns true if an active interface has a recognised transport.
func (c *InterfaceChecker) IsOnline(ctx context.Context) bool {
	ifaces, err := c.list()
	if err != nil {
		slog.Warn("failed to list network interfaces", "error", err)
		return false
	}
	for _, iface := range ifaces {
		if !iface.Up || iface.Loop || !iface.HasAddr {
			continue
		}
		switch transport := Classify(iface.Name); transport {
		case TransportCellular, TransportWiFi, TransportEthernet:
			slog.Debug("network available", "interface", iface.Name, "transport", transport)
			return true
		}
	}
	return false
}

// Classify maps an interface name to its transport using the naming
// conventions of Linux, macOS and Android.
func Classify(name string) Transport {
	n := strings.ToLower(name)
	switch {
	case hasAnyPrefix(n, "rmnet", "wwan", "ccmni", "pdp_ip", "usb"):
		return TransportCellular
	case hasAnyPrefix(n, "wlan", "wlp", "wlx", "wifi", "ath", "ra"):
		return TransportWiFi
	case hasAnyPrefix(n, "eth", "enp", "eno", "ens", "enx", "en"):
		return TransportEthernet
	}
	return TransportOther
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hostInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		out = append(out, Interface{
			Name:    iface.Name,
			Up:      iface.Flags&net.FlagUp != 0,
			Loop:    iface.Flags&net.FlagLoopback != 0,
			HasAddr: err == nil && len(addrs) > 0,
		})
	}
	return out, nil
}
