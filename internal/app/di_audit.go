package app

import (
	"fmt"

	auditHTTP "github.com/allisson/gatekeeper/internal/audit/http"
	auditRepository "github.com/allisson/gatekeeper/internal/audit/repository"
	auditService "github.com/allisson/gatekeeper/internal/audit/service"
	auditUseCase "github.com/allisson/gatekeeper/internal/audit/usecase"
)

// AuditHasher returns the chain hasher. AUDIT_CHAIN_KEY switches it to HMAC.
func (c *Container) AuditHasher() (auditService.ChainHasher, error) {
	var err error
	c.auditHasherInit.Do(func() {
		if c.config.AuditChainKey == "" {
			c.auditHasher = auditService.NewSHA256Hasher()
			return
		}
		c.auditHasher, err = auditService.NewHMACHasher([]byte(c.config.AuditChainKey))
		if err != nil {
			c.initErrors["auditHasher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditHasher"]; exists {
		return nil, storedErr
	}
	return c.auditHasher, nil
}

// AuditLog returns the hash-chained audit log.
func (c *Container) AuditLog() (auditUseCase.AuditLog, error) {
	var err error
	c.auditLogInit.Do(func() {
		c.auditLog, err = c.initAuditLog()
		if err != nil {
			c.initErrors["auditLog"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditLog"]; exists {
		return nil, storedErr
	}
	return c.auditLog, nil
}

func (c *Container) initAuditLog() (auditUseCase.AuditLog, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for audit log: %w", err)
	}
	hasher, err := c.AuditHasher()
	if err != nil {
		return nil, fmt.Errorf("failed to get hasher for audit log: %w", err)
	}

	return auditUseCase.NewAuditLog(
		auditRepository.NewKVAuditRepository(store),
		hasher,
		auditService.NewSlogMirror(c.Logger().With("component", "audit")),
	), nil
}

func (c *Container) auditHandler() (*auditHTTP.AuditHandler, error) {
	auditLog, err := c.AuditLog()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log for audit handler: %w", err)
	}
	return auditHTTP.NewAuditHandler(auditLog, c.Logger()), nil
}
