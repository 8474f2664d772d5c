package app

import (
	"fmt"

	"github.com/allisson/gatekeeper/internal/errors"
	gatewayHTTP "github.com/allisson/gatekeeper/internal/gateway/http"
	gatewayRepository "github.com/allisson/gatekeeper/internal/gateway/repository"
	gatewayUseCase "github.com/allisson/gatekeeper/internal/gateway/usecase"
	"github.com/allisson/gatekeeper/internal/http"
	identityService "github.com/allisson/gatekeeper/internal/identity/service"
	policyService "github.com/allisson/gatekeeper/internal/policy/service"
	sessionService "github.com/allisson/gatekeeper/internal/session/service"
	"github.com/allisson/gatekeeper/internal/storage"
)

// Policy returns the access policy: POLICY_FILE when set, otherwise the built-in policy.
func (c *Container) Policy() (*policyService.Policy, error) {
	var err error
	c.policyInit.Do(func() {
		if c.config.PolicyFile == "" {
			c.policy = policyService.Default()
			return
		}
		c.policy, err = policyService.LoadFile(c.config.PolicyFile)
		if err != nil {
			c.initErrors["policy"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["policy"]; exists {
		return nil, storedErr
	}
	return c.policy, nil
}

// SessionStore returns the per-session ephemeral artifact store.
func (c *Container) SessionStore() (*sessionService.Store, error) {
	var err error
	c.sessionStoreInit.Do(func() {
		c.sessionStore, err = sessionService.NewStore(
			c.config.EphemeralRootDir,
			c.Logger().With("component", "sessions"),
		)
		if err != nil {
			c.initErrors["sessionStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sessionStore"]; exists {
		return nil, storedErr
	}
	return c.sessionStore, nil
}

// IdentityVerifier returns the bearer token verifier.
func (c *Container) IdentityVerifier() (identityService.IdentityVerifier, error) {
	var err error
	c.identityInit.Do(func() {
		if c.config.IdentityJWTSecret == "" {
			err = errors.Wrap(errors.ErrInvalidInput, "IDENTITY_JWT_SECRET is required")
			c.initErrors["identity"] = err
			return
		}
		c.identity = identityService.NewJWTVerifier(
			c.config.IdentityJWTSecret,
			c.config.IdentityJWTIssuer,
			c.config.IdentityJWTAudience,
		)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["identity"]; exists {
		return nil, storedErr
	}
	return c.identity, nil
}

// StepUpVerifier returns the MFA verifier. Without STEP_UP_URL every step-up is rejected.
func (c *Container) StepUpVerifier() identityService.StepUpVerifier {
	c.stepUpInit.Do(func() {
		if c.config.StepUpURL == "" {
			c.stepUp = identityService.UnavailableStepUpVerifier{}
			return
		}
		c.stepUp = identityService.NewHTTPStepUpVerifier(c.config.StepUpURL, nil)
	})
	return c.stepUp
}

// GatewayUseCase returns the decryption gateway, wrapped with metrics when enabled.
func (c *Container) GatewayUseCase() (gatewayUseCase.Gateway, error) {
	var err error
	c.gatewayUseCaseInit.Do(func() {
		c.gatewayUseCase, err = c.initGatewayUseCase()
		if err != nil {
			c.initErrors["gatewayUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["gatewayUseCase"]; exists {
		return nil, storedErr
	}
	return c.gatewayUseCase, nil
}

func (c *Container) initGatewayUseCase() (gatewayUseCase.Gateway, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for gateway: %w", err)
	}
	identity, err := c.IdentityVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get identity verifier for gateway: %w", err)
	}
	monitor, err := c.Monitor()
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor for gateway: %w", err)
	}
	policy, err := c.Policy()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy for gateway: %w", err)
	}
	envelope, err := c.Envelope()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope service for gateway: %w", err)
	}
	sessions, err := c.SessionStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get session store for gateway: %w", err)
	}
	auditLog, err := c.AuditLog()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log for gateway: %w", err)
	}
	dispatcher, err := c.Dispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher for gateway: %w", err)
	}

	baseUseCase := gatewayUseCase.NewGateway(gatewayUseCase.Dependencies{
		Identity:  identity,
		StepUp:    c.StepUpVerifier(),
		Monitor:   monitor,
		Policy:    policy,
		Envelope:  envelope,
		Resources: gatewayRepository.NewKVResourceRepository(store),
		Sessions:  sessions,
		Audit:     auditLog,
		Alerts:    dispatcher,
		Logger:    c.Logger().With("component", "gateway"),
	}, gatewayUseCase.Config{
		UpstreamTimeout:    c.config.UpstreamTimeout,
		SessionIdleTimeout: c.config.SessionIdleTimeout,
	})

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		gatewayMetrics, err := c.GatewayMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for gateway: %w", err)
		}
		return gatewayUseCase.NewGatewayWithMetrics(baseUseCase, gatewayMetrics), nil
	}

	return baseUseCase, nil
}

// handlers builds every API handler mounted by the HTTP server.
func (c *Container) handlers() (http.Handlers, error) {
	gateway, err := c.GatewayUseCase()
	if err != nil {
		return http.Handlers{}, fmt.Errorf("failed to get gateway for http server: %w", err)
	}
	audit, err := c.auditHandler()
	if err != nil {
		return http.Handlers{}, err
	}
	loginEvents, err := c.loginEventHandler()
	if err != nil {
		return http.Handlers{}, err
	}

	return http.Handlers{
		Gateway:     gatewayHTTP.NewGatewayHandler(gateway, c.Logger()),
		Audit:       audit,
		LoginEvents: loginEvents,
	}, nil
}

func isKeyNotFound(err error) bool {
	return errors.Is(err, storage.ErrKeyNotFound)
}
