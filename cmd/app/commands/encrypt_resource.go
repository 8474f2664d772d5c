package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
)

// Encryptor stores plaintext for a resource through the gateway.
type Encryptor interface {
	Encrypt(ctx context.Context, req gatewayDomain.EncryptRequest) (*gatewayDomain.EncryptResult, error)
}

// maxResourceSize bounds plaintext read from stdin.
const maxResourceSize = 64 << 20

// RunEncryptResource reads plaintext from the reader and stores it encrypted
// under ref. The write goes through the gateway so it is authorized against
// the caller's token and appended to the audit chain.
func RunEncryptResource(
	ctx context.Context,
	encryptor Encryptor,
	logger *slog.Logger,
	streams IOTuple,
	token string,
	ref gatewayDomain.ResourceRef,
	contentType string,
	format string,
) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	plaintext, err := readLimited(streams.Reader, maxResourceSize)
	if err != nil {
		return err
	}
	defer clear(plaintext)

	result, err := encryptor.Encrypt(ctx, gatewayDomain.EncryptRequest{
		Token:       token,
		SourceIP:    "127.0.0.1",
		Resource:    ref,
		Plaintext:   plaintext,
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to encrypt resource: %w", err)
	}

	logger.Info("resource encrypted",
		slog.String("resource", result.Resource.String()),
		slog.Uint64("kek_version", uint64(result.KekVersion)),
		slog.Uint64("audit_sequence", result.AuditSequence),
	)

	if format == "json" {
		return writeJSON(streams.Writer, map[string]any{
			"resource":       result.Resource,
			"kek_version":    result.KekVersion,
			"audit_sequence": result.AuditSequence,
		})
	}

	_, _ = fmt.Fprintf(streams.Writer, "Encrypted %s with KEK version %d (audit #%d)\n",
		result.Resource.String(), result.KekVersion, result.AuditSequence)
	return nil
}

func readLimited(reader io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read plaintext: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("plaintext exceeds %d bytes", limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("plaintext is empty")
	}
	return data, nil
}
