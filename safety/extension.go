package safety

import (
	"net/url"
	"path"
	"strings"
)

// blockedExtensions are executable/script extensions never written to disk.
var blockedExtensions = map[string]bool{
	".exe": true, ".dll": true, ".bat": true, ".cmd": true,
	".sh": true, ".ps1": true, ".msi": true, ".com": true, ".scr": true,
}

// blockedContentTypes are dangerous MIME types, matched after stripping
// any ";charset=..." parameter.
var blockedContentTypes = map[string]bool{
	"application/x-msdownload":    true,
	"application/x-executable":    true,
	"application/x-msdos-program": true,
	"application/x-sh":            true,
	"application/x-shellscript":   true,
	"application/x-httpd-php":     true,
	"application/x-httpd-cgi":     true,
}

// ExtensionGate reports whether a URL/content-type pair is allowed to be
// fetched and written to disk.
func ExtensionGate(rawURL, contentType string) (allow bool, reason string) {
	if ext := extensionOf(rawURL); blockedExtensions[ext] {
		return false, "blocked extension " + ext
	}
	if ct := baseContentType(contentType); blockedContentTypes[ct] {
		return false, "blocked content type " + ct
	}
	return true, ""
}

func extensionOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(parsed.Path))
}

func baseContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}
