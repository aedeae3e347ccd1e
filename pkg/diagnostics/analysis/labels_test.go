package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSubtreeLabel tests tag precedence and class-convention fallbacks.
func TestSubtreeLabel(t *testing.T) {
	tests := []struct {
		name      string
		tag       string
		className string
		want      string
	}{
		{"nav tag wins over class", "nav", "product-grid", "navigation"},
		{"table tag", "TABLE", "", "data table"},
		{"grid class", "div", "product-grid", "data grid"},
		{"menu class", "div", "DropdownMenu", "navigation"},
		{"comment class", "section", "comment-thread", "comment thread"},
		{"no signal", "div", "xyz", "content"},
		{"empty", "div", "", "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, subtreeLabel(tt.tag, tt.className))
		})
	}
}

// TestFixedPurpose tests the fixed-position purpose heuristics.
func TestFixedPurpose(t *testing.T) {
	tests := []struct {
		name      string
		tag       string
		className string
		want      string
	}{
		{"dialog tag", "dialog", "", "overlay"},
		{"cookie class", "div", "cookie-consent", "cookie banner"},
		{"consent class", "div", "gdpr-consent", "cookie banner"},
		{"chat widget", "div", "intercom-chat", "chat widget"},
		{"toast", "div", "toast-container", "notification"},
		{"no signal", "div", "xyz", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fixedPurpose(tt.tag, tt.className))
		})
	}
}
