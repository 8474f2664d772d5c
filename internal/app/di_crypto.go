package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
	cryptoService "github.com/allisson/gatekeeper/internal/crypto/service"
)

// KMSService returns the KMS service that opens KEK keepers.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// KeyRing returns the ring of KEK keepers loaded from KEK_KEY_URIS.
func (c *Container) KeyRing() (*cryptoService.KeyRing, error) {
	var err error
	c.keyRingInit.Do(func() {
		c.keyRing, err = c.initKeyRing()
		if err != nil {
			c.initErrors["keyRing"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRing"]; exists {
		return nil, storedErr
	}
	return c.keyRing, nil
}

// Envelope returns the envelope encryption service.
func (c *Container) Envelope() (*cryptoService.EnvelopeService, error) {
	var err error
	c.envelopeInit.Do(func() {
		var ring *cryptoService.KeyRing
		ring, err = c.KeyRing()
		if err != nil {
			err = fmt.Errorf("failed to get key ring for envelope service: %w", err)
			c.initErrors["envelope"] = err
			return
		}
		c.envelope = cryptoService.NewEnvelopeService(ring)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["envelope"]; exists {
		return nil, storedErr
	}
	return c.envelope, nil
}

func (c *Container) initKeyRing() (*cryptoService.KeyRing, error) {
	keks, err := cryptoDomain.ParseKekList(c.config.KekKeyURIs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KEK_KEY_URIS: %w", err)
	}

	ring, err := cryptoService.OpenKeyRing(context.Background(), c.KMSService(), keks, c.config.KekActiveVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to open key ring: %w", err)
	}
	return ring, nil
}
