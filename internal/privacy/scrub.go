package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`\b(?:https?|mqtts?|tcp|ssl|wss?)://\S+`)

	// Decimal coordinate pairs such as "1.4667,110.3333" or "1.4667, 110.3333".
	coordPairPattern = regexp.MustCompile(`-?\b\d{1,2}\.\d{2,}\s*,\s*-?\d{1,3}\.\d{2,}\b`)

	// Named coordinates such as "lat=1.4667" or "longitude: 110.3333".
	coordFieldPattern = regexp.MustCompile(`(?i)\b(location_latitude|location_longitude|latitude|longitude|lat|lon|lng)("?\s*[=:]\s*)"?-?\d+(?:\.\d+)?"?`)

	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ScrubMessage removes sensitive information from log and telemetry
// messages: URLs are anonymized, GPS coordinates, bearer tokens and email
// addresses are replaced by placeholders.
func ScrubMessage(message string) string {
	if message == "" {
		return message
	}
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	message = bearerPattern.ReplaceAllString(message, "Bearer [TOKEN]")
	message = emailPattern.ReplaceAllString(message, "[EMAIL]")
	message = coordPairPattern.ReplaceAllString(message, "[LAT],[LON]")
	message = coordFieldPattern.ReplaceAllString(message, "$1$2[COORD]")
	return message
}

// AnonymizeURL converts a URL to a stable hash that keeps the scheme, host
// category, port and path shape but no credentials or host names.
func AnonymizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var normalizedParts []string
	if parsedURL.Scheme != "" {
		normalizedParts = append(normalizedParts, parsedURL.Scheme)
	}
	if host := parsedURL.Hostname(); host != "" {
		normalizedParts = append(normalizedParts, categorizeHost(host))
	}
	if parsedURL.Port() != "" {
		normalizedParts = append(normalizedParts, "port-"+parsedURL.Port())
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		normalizedParts = append(normalizedParts, anonymizePath(parsedURL.Path))
	}

	hash := sha256.Sum256([]byte(strings.Join(normalizedParts, ":")))
	return fmt.Sprintf("url-%x", hash[:12])
}

// categorizeHost reduces a host to localhost, private-ip, public-ip or its TLD.
func categorizeHost(host string) string {
	switch {
	case host == "localhost" || host == "127.0.0.1" || host == "::1":
		return "localhost"
	case isPrivateIP(host):
		return "private-ip"
	case isIPAddress(host):
		return "public-ip"
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}
	return "unknown-host"
}

// anonymizePath keeps the number of path segments and hashes each one.
func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	var segments []string
	for segment := range strings.SplitSeq(path, "/") {
		switch {
		case segment == "":
			continue
		case isNumeric(segment):
			segments = append(segments, "numeric")
		default:
			hash := sha256.Sum256([]byte(segment))
			segments = append(segments, fmt.Sprintf("seg-%x", hash[:4]))
		}
	}
	return strings.Join(segments, "/")
}

var privateRanges = []string{
	"10.", "172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.", "172.22.", "172.23.",
	"172.24.", "172.25.", "172.26.", "172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
	"192.168.", "169.254.",
	"fc00:", "fd00:", "fe80:",
}

func isPrivateIP(host string) bool {
	host = strings.ToLower(host)
	for _, prefix := range privateRanges {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	return false
}

func isIPAddress(host string) bool {
	return ipv4Pattern.MatchString(host) || strings.Contains(host, ":")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
