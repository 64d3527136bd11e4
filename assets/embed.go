package assets

import "embed"

//go:embed catalog.json
var FS embed.FS

// DefaultCatalog returns the embedded fallback catalog, used when no
// CATALOG_FILE is configured.
func DefaultCatalog() ([]byte, error) {
	return FS.ReadFile("catalog.json")
}
