package utils

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"iptv-check/work/config"
)

// LogURL returns either the original URL or an obfuscated version for logging
func LogURL(cfg *config.Config, url string) string {
	if cfg != nil && cfg.ObfuscateUrls {
		return ObfuscateURL(url)
	}
	return url
}

// LogURLWithFlag is LogURL for callers that only carry the flag
func LogURLWithFlag(obfuscate bool, url string) string {
	if obfuscate {
		return ObfuscateURL(url)
	}
	return url
}

// SanitizeName turns free text into a safe identifier: spaces and
// punctuation become underscores, runs of underscores collapse.
func SanitizeName(name string) string {
	sanitized := name
	replacements := map[string]string{
		" ":  "_",
		",":  "_",
		"\"": "",
		"'":  "",
		"/":  "_",
		"\\": "_",
		"?":  "_",
		"&":  "_",
		"=":  "_",
		":":  "_",
		";":  "_",
		"|":  "_",
		"*":  "_",
		"<":  "_",
		">":  "_",
		".":  "_",
		"-":  "_",
	}

	for old, new := range replacements {
		sanitized = strings.ReplaceAll(sanitized, old, new)
	}

	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}

	return strings.Trim(sanitized, "_")
}

// NameFromURL derives a short display name for a stream or playlist URL:
// the last path element without its extension, or the host when the path
// is empty.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return SanitizeName(rawURL)
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		if name := SanitizeName(u.Hostname()); name != "" {
			return name
		}
		return "playlist"
	}

	base = strings.TrimSuffix(base, path.Ext(base))
	if name := SanitizeName(base); name != "" {
		return name
	}
	if name := SanitizeName(u.Hostname()); name != "" {
		return name
	}
	return "playlist"
}

// ObfuscateURL hides the path, query and fragment of a URL. Local paths
// and other strings without a scheme and host are returned unchanged.
func ObfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "***OBFUSCATED***"
	}
	if u.Scheme == "" || u.Host == "" {
		return urlStr
	}

	// keep scheme and host
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}

	return result
}

// FormatBytes renders a byte count for status lines
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
