package safety

import "testing"

func TestExtensionGate(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		wantAllow   bool
	}{
		{"html page", "https://example.com/index.html", "text/html; charset=utf-8", true},
		{"exe blocked", "https://example.com/setup.exe", "application/octet-stream", false},
		{"sh blocked", "https://example.com/install.sh", "text/plain", false},
		{"dangerous mime blocked", "https://example.com/download", "application/x-msdownload", false},
		{"php mime blocked", "https://example.com/page", "application/x-httpd-php", false},
		{"plain text allowed", "https://example.com/readme.txt", "text/plain", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allow, reason := ExtensionGate(tt.url, tt.contentType)
			if allow != tt.wantAllow {
				t.Errorf("ExtensionGate(%q, %q) = (%v, %q), want allow=%v", tt.url, tt.contentType, allow, reason, tt.wantAllow)
			}
		})
	}
}
