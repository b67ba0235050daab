package logger

import (
	"net"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	digitRegex = regexp.MustCompile(`[0-9]`)
)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactPhone keeps only the last two digits: "+1 555 123 4567" → "***67".
func RedactPhone(phone string) string {
	digits := digitRegex.FindAllString(phone, -1)
	if len(digits) <= 2 {
		return "***"
	}
	return "***" + strings.Join(digits[len(digits)-2:], "")
}

// RedactIP zeroes the host part: IPv4 keeps /24, IPv6 keeps /48.
func RedactIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "email") || strings.Contains(key, "subscriber") || strings.Contains(key, "recipient"):
		return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	case strings.Contains(key, "phone"):
		return RedactPhone(val)
	case key == "ip" || strings.HasSuffix(key, "_ip") || strings.Contains(key, "ip_address"):
		return RedactIP(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
