package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// ClientInfo is what the audit log keeps about a caller's User-Agent
type ClientInfo struct {
	Name     string `json:"name"`     // browser or client library, e.g. Chrome, Stripe
	Version  string `json:"version"`  // its version
	Platform string `json:"platform"` // android, ios, windows, mac, linux, server
	IsBot    bool   `json:"is_bot"`
}

// ParseUserAgent parses a User-Agent string
func ParseUserAgent(userAgent string) ClientInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return ClientInfo{Name: "Unknown", Platform: "unknown"}
	}

	parser := ua.New(userAgent)
	name, version := parser.Browser()
	info := ClientInfo{
		Name:     name,
		Version:  version,
		IsBot:    parser.Bot(),
		Platform: platformOf(parser),
	}

	// server-side callers such as "Stripe/1.0 (+https://stripe.com/docs/webhooks)"
	// have no OS; the product token is the useful part
	if info.Platform == "unknown" && parser.OS() == "" {
		if product, ver, ok := strings.Cut(strings.Fields(userAgent)[0], "/"); ok {
			info.Name, info.Version = product, ver
			info.Platform = "server"
		}
	}
	if info.Name == "" {
		info.Name = "Unknown"
	}

	return info
}

// String renders the info for the client_platform audit column
func (i ClientInfo) String() string {
	if i.Version == "" {
		return i.Name + " (" + i.Platform + ")"
	}
	return i.Name + "/" + i.Version + " (" + i.Platform + ")"
}

func platformOf(parser *ua.UserAgent) string {
	osName := strings.ToLower(parser.OSInfo().Name)

	switch {
	case strings.Contains(osName, "android"):
		return "android"
	case strings.Contains(osName, "ios"), strings.Contains(osName, "iphone"):
		return "ios"
	case strings.Contains(osName, "windows"):
		return "windows"
	case strings.Contains(osName, "mac"):
		return "mac"
	case strings.Contains(osName, "chrome os"):
		return "chromeos"
	case strings.Contains(osName, "linux"), strings.Contains(osName, "ubuntu"):
		return "linux"
	}
	return "unknown"
}
