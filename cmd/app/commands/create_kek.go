package commands

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	cryptoService "github.com/allisson/gatekeeper/internal/crypto/service"
)

// RunCreateKek prepares a KEK_KEY_URIS entry for a new KEK version.
//
// With an empty keyURI a random 32-byte key is generated and returned as a
// base64key:// URI, which is only suitable for local development. Otherwise
// keyURI names a key held by a KMS (gcpkms://, awskms://, azurekeyvault://,
// hashivault://). Either way the keeper is opened and a probe is wrapped and
// unwrapped before the entry is printed.
func RunCreateKek(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	version uint,
	keyURI string,
	format string,
) error {
	if version == 0 {
		return fmt.Errorf("--version must be greater than 0")
	}

	local := keyURI == ""
	if local {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("failed to generate KEK: %w", err)
		}
		keyURI = "base64key://" + base64.URLEncoding.EncodeToString(key)
		clear(key)
	}

	keeper, err := kmsService.OpenKeeper(ctx, keyURI)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	probe := make([]byte, 32)
	if _, err := rand.Read(probe); err != nil {
		return fmt.Errorf("failed to generate probe: %w", err)
	}
	wrapped, err := keeper.Encrypt(ctx, probe)
	if err != nil {
		return fmt.Errorf("failed to wrap probe with KEK: %w", err)
	}
	unwrapped, err := keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return fmt.Errorf("failed to unwrap probe with KEK: %w", err)
	}
	if !bytes.Equal(probe, unwrapped) {
		return fmt.Errorf("KEK probe round trip mismatch")
	}

	entry := fmt.Sprintf("%d=%s", version, keyURI)
	logger.Info("KEK verified", slog.Uint64("version", uint64(version)), slog.Bool("local", local))

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"version": version,
			"entry":   entry,
			"local":   local,
		})
	}

	if local {
		_, _ = fmt.Fprintln(writer, "# Local KEK: do not use in production")
	}
	_, _ = fmt.Fprintln(writer, "# Append to KEK_KEY_URIS (comma separated) and set KEK_ACTIVE_VERSION to rotate")
	_, _ = fmt.Fprintf(writer, "%s\n", entry)
	return nil
}
