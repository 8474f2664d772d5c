package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Rewrapper re-wraps stored DEKs under the active KEK version.
type Rewrapper interface {
	RewrapAll(ctx context.Context) (int, error)
}

// RunRewrapResources re-wraps every stored DEK that is not under the active
// KEK version. Ciphertexts are untouched; only the wrapped DEKs change.
//
// Requirements: KEK_KEY_URIS must still list every version in use, with
// KEK_ACTIVE_VERSION set to the new one.
func RunRewrapResources(
	ctx context.Context,
	rewrapper Rewrapper,
	activeVersion uint,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("starting DEK rewrap", slog.Uint64("active_kek_version", uint64(activeVersion)))

	count, err := rewrapper.RewrapAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to rewrap resources: %w", err)
	}

	logger.Info("DEK rewrap completed", slog.Int("rewrapped", count))

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"rewrapped":          count,
			"active_kek_version": activeVersion,
		})
	}

	_, _ = fmt.Fprintf(writer, "Rewrapped %d resource(s) to KEK version %d\n", count, activeVersion)
	return nil
}
