package modelregistry

import (
	_ "embed"
	"encoding/json"
	"log/slog"

	"github.com/emesal/ratatoskr/pkg/types"
)

//go:embed seed.json
var embeddedSeed []byte

// loadEmbeddedSeed parses the compiled-in seed. A parse failure never
// panics (§4.8: "parse-failure-never-panics") — it logs a warning and
// returns an empty slice, matching original_source's with_embedded_seed,
// which treats a broken seed as merely "an empty registry is usable".
func loadEmbeddedSeed() []types.ModelMetadata {
	var entries []types.ModelMetadata
	if err := json.Unmarshal(embeddedSeed, &entries); err != nil {
		slog.Warn("failed to parse embedded model seed", "error", err)
		return nil
	}
	return entries
}
