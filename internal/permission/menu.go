package permission

import (
	"github.com/agnivade/levenshtein"
)

// maxSuggestionDistance is the largest edit distance SuggestMenuKey accepts.
const maxSuggestionDistance = 3

// menus maps menu keys to the display names the server uses in permissions.
//
//nolint:gochecknoglobals // Lookup table
var menus = []struct {
	key  string
	name string
}{
	{"dashboard", "Dashboard"},
	{"input_data", "Input Data Muda-Mudi"},
	{"manajemen_kegiatan", "Manajemen Kegiatan"},
	{"scan_qr", "Scan QR Absensi"},
	{"pencarian_data", "Pencarian Data"},
	{"laporan", "Laporan"},
	{"gabung_database", "Gabung Database"},
}

// MenuName returns the display name for a menu key.
func MenuName(key string) (string, bool) {
	for _, m := range menus {
		if m.key == key {
			return m.name, true
		}
	}
	return "", false
}

// IsKnownMenu reports whether key is in the menu table.
func IsKnownMenu(key string) bool {
	_, ok := MenuName(key)
	return ok
}

// MenuKeys lists the known menu keys in table order.
func MenuKeys() []string {
	keys := make([]string, len(menus))
	for i, m := range menus {
		keys[i] = m.key
	}
	return keys
}

// SuggestMenuKey returns the known key closest to key, if any is within a
// small edit distance. Exact matches return false.
func SuggestMenuKey(key string) (string, bool) {
	best, bestDist := "", maxSuggestionDistance+1
	for _, m := range menus {
		d := levenshtein.ComputeDistance(key, m.key)
		if d == 0 {
			return "", false
		}
		if d < bestDist {
			best, bestDist = m.key, d
		}
	}
	return best, best != ""
}
