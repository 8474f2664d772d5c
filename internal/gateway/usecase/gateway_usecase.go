package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
	cryptoDomain "github.com/allisson/gatekeeper/internal/crypto/domain"
	cryptoService "github.com/allisson/gatekeeper/internal/crypto/service"
	"github.com/allisson/gatekeeper/internal/errors"
	gatewayDomain "github.com/allisson/gatekeeper/internal/gateway/domain"
	identityDomain "github.com/allisson/gatekeeper/internal/identity/domain"
	identityService "github.com/allisson/gatekeeper/internal/identity/service"
	monitorDomain "github.com/allisson/gatekeeper/internal/monitor/domain"
	sessionDomain "github.com/allisson/gatekeeper/internal/session/domain"
)

const (
	actionResolve      = "resolve"
	actionEncrypt      = "encrypt"
	actionReadArtifact = "read_artifact"
	actionLogout       = "logout"
	actionRewrap       = "rewrap"

	statusError          = "error"
	statusInvalidRequest = "invalid_request"

	anonymousActor = "anonymous"
	systemActor    = "system"
)

var errMissingStepUp = errors.New("step-up code required")

// Config holds the gateway's timing settings.
type Config struct {
	// UpstreamTimeout bounds each identity and step-up call.
	UpstreamTimeout time.Duration
	// SessionIdleTimeout is used to report artifact expiry deadlines.
	SessionIdleTimeout time.Duration
}

// Dependencies are the collaborators of the gateway.
type Dependencies struct {
	Identity  identityService.IdentityVerifier
	StepUp    identityService.StepUpVerifier
	Posture   identityService.PostureChecker
	Monitor   RateMonitor
	Policy    AccessPolicy
	Envelope  cryptoService.Envelope
	Resources ResourceRepository
	Sessions  SessionStore
	Audit     AuditAppender
	Alerts    AlertPublisher
	Logger    *slog.Logger
}

type gatewayUseCase struct {
	Dependencies
	cfg Config
	now func() time.Time
}

// NewGateway creates the gateway use case. Posture defaults to a no-op check.
func NewGateway(deps Dependencies, cfg Config) Gateway {
	if deps.Posture == nil {
		deps.Posture = identityService.NoopPostureChecker{}
	}
	return &gatewayUseCase{
		Dependencies: deps,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// denial is a gate failure before it is audited.
type denial struct {
	reason     gatewayDomain.DenialReason
	cause      error
	retryAfter time.Duration
}

// call carries the audit entry and state of one gateway call.
type call struct {
	g        *gatewayUseCase
	progress *gatewayDomain.Progress
	entry    auditDomain.Entry
}

func (g *gatewayUseCase) begin(action, resourceType, resourceID string) *call {
	return &call{
		g:        g,
		progress: gatewayDomain.NewProgress(),
		entry: auditDomain.Entry{
			ActorID:      anonymousActor,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
		},
	}
}

func (c *call) advance(ctx context.Context, next gatewayDomain.State) {
	if err := c.progress.Advance(next); err != nil {
		c.g.Logger.ErrorContext(ctx, "illegal gateway state transition", slog.Any("error", err))
	}
}

// record appends the single audit entry of this call. The append is detached
// from caller cancellation so a disconnecting client cannot skip it.
func (c *call) record(ctx context.Context, status string) (uint64, error) {
	entry := c.entry
	entry.Status = status
	appended, err := c.g.Audit.Append(context.WithoutCancel(ctx), &entry)
	if err != nil {
		c.g.Logger.ErrorContext(ctx, "failed to append audit entry",
			slog.String("action", entry.Action),
			slog.String("status", status),
			slog.Any("error", err),
		)
		return 0, errors.Wrap(err, "failed to record access decision")
	}
	return appended.Sequence, nil
}

func (c *call) deny(ctx context.Context, d *denial) error {
	c.progress.Deny()
	c.g.logDenial(ctx, c.entry, d)

	seq, err := c.record(ctx, string(d.reason))
	if err != nil {
		return err
	}
	denialErr := gatewayDomain.NewDenialError(d.reason)
	denialErr.RetryAfter = d.retryAfter
	denialErr.AuditSequence = seq
	return denialErr
}

func (c *call) fail(ctx context.Context, status string, cause error) error {
	c.progress.Deny()
	c.g.Logger.ErrorContext(ctx, "gateway call failed",
		slog.String("action", c.entry.Action),
		slog.String("actor_id", c.entry.ActorID),
		slog.String("resource", c.entry.ResourceType+"/"+c.entry.ResourceID),
		slog.Any("error", cause),
	)
	if _, err := c.record(ctx, status); err != nil {
		return err
	}
	return cause
}

func (c *call) succeed(ctx context.Context) (uint64, error) {
	c.advance(ctx, gatewayDomain.StateLogged)
	seq, err := c.record(ctx, auditDomain.StatusSuccess)
	if err != nil {
		c.progress.Deny()
		return 0, err
	}
	c.advance(ctx, gatewayDomain.StateResponded)
	return seq, nil
}

func (g *gatewayUseCase) logDenial(ctx context.Context, entry auditDomain.Entry, d *denial) {
	level := slog.LevelWarn
	attrs := []slog.Attr{
		slog.String("action", entry.Action),
		slog.String("actor_id", entry.ActorID),
		slog.String("resource", entry.ResourceType+"/"+entry.ResourceID),
		slog.String("reason", string(d.reason)),
	}
	if d.cause != nil {
		attrs = append(attrs, slog.String("cause", d.cause.Error()))
	}
	switch d.reason {
	case gatewayDomain.DenialTamperedOrCorrupt, gatewayDomain.DenialKeyNotFound:
		level = slog.LevelError
	case gatewayDomain.DenialPathEscape:
		level = slog.LevelError
		attrs = append(attrs, slog.Bool("security_fault", true))
	}
	g.Logger.LogAttrs(ctx, level, "access denied", attrs...)
}

func (g *gatewayUseCase) escalate(
	ctx context.Context,
	rule monitorDomain.Rule,
	severity monitorDomain.Severity,
	entry auditDomain.Entry,
	message string,
) {
	if g.Alerts == nil {
		return
	}
	alert := monitorDomain.NewAlert(rule, monitorDomain.PrincipalKey(entry.ActorID).String(), severity, message)
	alert.Metadata = map[string]string{
		"action":        entry.Action,
		"resource_type": entry.ResourceType,
		"resource_id":   entry.ResourceID,
	}
	g.Alerts.Publish(ctx, alert)
}

func (g *gatewayUseCase) checkRate(key monitorDomain.Key) *denial {
	if key.ID == "" {
		return nil
	}
	blocked, until := g.Monitor.BlockedUntil(key)
	if !blocked {
		return nil
	}
	retryAfter := until.Sub(g.now())
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return &denial{
		reason:     gatewayDomain.DenialRateLimited,
		cause:      fmt.Errorf("%s is blocked", key),
		retryAfter: retryAfter,
	}
}

// isUpstreamTimeout reports whether err came from an expired or cancelled
// deadline rather than an answer from the collaborator.
func isUpstreamTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
}

// authenticate runs the rate check on the source address, resolves the
// identity token, checks device posture and then the principal's own rate state.
func (g *gatewayUseCase) authenticate(
	ctx context.Context,
	c *call,
	token, sourceIP string,
) (identityDomain.Identity, *denial) {
	if d := g.checkRate(monitorDomain.IPKey(sourceIP)); d != nil {
		return identityDomain.Identity{}, d
	}
	c.advance(ctx, gatewayDomain.StateRateChecked)

	ictx, cancel := context.WithTimeout(ctx, g.cfg.UpstreamTimeout)
	defer cancel()

	identity, err := g.Identity.VerifyIdentity(ictx, token)
	if err != nil {
		if isUpstreamTimeout(ictx, err) {
			return identityDomain.Identity{}, &denial{reason: gatewayDomain.DenialUpstreamTimeout, cause: err}
		}
		return identityDomain.Identity{}, &denial{reason: gatewayDomain.DenialIdentityInvalid, cause: err}
	}
	c.entry.ActorID = identity.PrincipalID

	if err := g.Posture.CheckPosture(ictx, identity); err != nil {
		if isUpstreamTimeout(ictx, err) {
			return identityDomain.Identity{}, &denial{reason: gatewayDomain.DenialUpstreamTimeout, cause: err}
		}
		return identityDomain.Identity{}, &denial{reason: gatewayDomain.DenialIdentityInvalid, cause: err}
	}

	if d := g.checkRate(monitorDomain.PrincipalKey(identity.PrincipalID)); d != nil {
		return identityDomain.Identity{}, d
	}
	return identity, nil
}

func (g *gatewayUseCase) verifyStepUp(ctx context.Context, identity identityDomain.Identity, code string) *denial {
	principal := monitorDomain.PrincipalKey(identity.PrincipalID)
	if code == "" {
		g.Monitor.RecordFailure(ctx, principal)
		return &denial{reason: gatewayDomain.DenialStepUpFailed, cause: errMissingStepUp}
	}

	sctx, cancel := context.WithTimeout(ctx, g.cfg.UpstreamTimeout)
	defer cancel()

	ok, err := g.StepUp.VerifyStepUp(sctx, identity.PrincipalID, code)
	if err != nil && isUpstreamTimeout(sctx, err) {
		return &denial{reason: gatewayDomain.DenialUpstreamTimeout, cause: err}
	}
	if err != nil || !ok {
		g.Monitor.RecordFailure(ctx, principal)
		if err == nil {
			err = errors.New("step-up code rejected")
		}
		return &denial{reason: gatewayDomain.DenialStepUpFailed, cause: err}
	}
	return nil
}

func (g *gatewayUseCase) authorize(identity identityDomain.Identity, ref gatewayDomain.ResourceRef) *denial {
	var allowed bool
	if ref.Kind == gatewayDomain.KindFile {
		allowed = g.Policy.CanAccessFile(ref.Type, identity.Role)
	} else {
		allowed = g.Policy.CanAccess(ref.Type, ref.Field, identity.Role)
	}
	if allowed {
		return nil
	}
	return &denial{
		reason: gatewayDomain.DenialInsufficientPermission,
		cause:  fmt.Errorf("role %q may not access %s", identity.Role, ref),
	}
}

func (g *gatewayUseCase) requiresStepUp(ref gatewayDomain.ResourceRef) bool {
	if ref.Kind == gatewayDomain.KindFile {
		return true
	}
	return g.Policy.RequiresStepUp(ref.Type, ref.Field)
}

// cryptoDenial maps envelope and storage failures to denial reasons. It
// returns nil for errors that are not access decisions.
func (g *gatewayUseCase) cryptoDenial(ctx context.Context, c *call, err error) *denial {
	switch {
	case errors.Is(err, gatewayDomain.ErrResourceNotFound):
		return &denial{reason: gatewayDomain.DenialResourceNotFound, cause: err}
	case errors.Is(err, cryptoDomain.ErrKeyNotFound):
		g.escalate(ctx, monitorDomain.RuleKeyNotFound, monitorDomain.SeverityCritical, c.entry,
			"kek version required by a stored resource is missing")
		return &denial{reason: gatewayDomain.DenialKeyNotFound, cause: err}
	case errors.Is(err, cryptoDomain.ErrTamperedOrCorrupt):
		g.escalate(ctx, monitorDomain.RuleTamperedOrCorrupt, monitorDomain.SeverityHigh, c.entry,
			"ciphertext failed authentication")
		return &denial{reason: gatewayDomain.DenialTamperedOrCorrupt, cause: err}
	case isUpstreamTimeout(ctx, err):
		return &denial{reason: gatewayDomain.DenialUpstreamTimeout, cause: err}
	}
	return nil
}

func (g *gatewayUseCase) Resolve(
	ctx context.Context,
	req gatewayDomain.ResolveRequest,
) (*gatewayDomain.ResolveResult, error) {
	ref := req.Resource
	c := g.begin(actionResolve, ref.Type, resourceAuditID(ref))
	if err := ref.Validate(); err != nil {
		return nil, c.fail(ctx, statusInvalidRequest, err)
	}

	identity, d := g.authenticate(ctx, c, req.Token, req.SourceIP)
	if d != nil {
		return nil, c.deny(ctx, d)
	}
	// Every authenticated attempt counts, allowed or not.
	g.Monitor.RecordEvent(ctx, monitorDomain.PrincipalKey(identity.PrincipalID), ref.String())
	c.advance(ctx, gatewayDomain.StateIdentityVerified)

	if g.requiresStepUp(ref) {
		if d := g.verifyStepUp(ctx, identity, req.StepUpCode); d != nil {
			return nil, c.deny(ctx, d)
		}
	}
	c.advance(ctx, gatewayDomain.StateStepUpVerified)

	if d := g.authorize(identity, ref); d != nil {
		return nil, c.deny(ctx, d)
	}
	c.advance(ctx, gatewayDomain.StatePolicyChecked)

	stored, err := g.Resources.Get(ctx, ref)
	if err == nil {
		var plaintext []byte
		plaintext, err = g.Envelope.Decrypt(ctx, stored.Blob, stored.WrappedDEK, ref.AAD())
		if err == nil {
			c.advance(ctx, gatewayDomain.StateDecrypted)
			return g.deliver(ctx, c, req, identity, plaintext)
		}
	}
	if d := g.cryptoDenial(ctx, c, err); d != nil {
		return nil, c.deny(ctx, d)
	}
	return nil, c.fail(ctx, statusError, err)
}

// deliver returns field plaintext directly and writes file plaintext to the
// caller's session.
func (g *gatewayUseCase) deliver(
	ctx context.Context,
	c *call,
	req gatewayDomain.ResolveRequest,
	identity identityDomain.Identity,
	plaintext []byte,
) (*gatewayDomain.ResolveResult, error) {
	result := &gatewayDomain.ResolveResult{Resource: req.Resource}

	if req.Resource.Kind == gatewayDomain.KindFile {
		defer cryptoDomain.Zero(plaintext)

		sessionID := sessionFor(req.SessionID, identity)
		if sessionID == "" {
			return nil, c.deny(ctx, &denial{
				reason: gatewayDomain.DenialIdentityInvalid,
				cause:  errors.New("file access requires a login session"),
			})
		}
		// A swept or never-created session is recreated transparently.
		session, err := g.Sessions.EnsureSession(identity.PrincipalID, sessionID)
		if err != nil {
			return nil, c.fail(ctx, statusError, err)
		}
		artifact, err := g.Sessions.WriteArtifact(session, req.Resource.String(), plaintext)
		if err != nil {
			return nil, c.fail(ctx, statusError, err)
		}
		result.Artifact = &gatewayDomain.ArtifactRef{
			SessionID: session.ID,
			Path:      artifact.Path,
			ExpiresAt: artifact.CreatedAt.Add(g.cfg.SessionIdleTimeout),
		}
	} else {
		result.Plaintext = plaintext
	}

	seq, err := c.succeed(ctx)
	if err != nil {
		if result.Plaintext != nil {
			cryptoDomain.Zero(result.Plaintext)
		}
		return nil, err
	}
	result.AuditSequence = seq
	result.Trail = c.progress.Trail()

	g.Logger.DebugContext(ctx, "access granted",
		slog.String("actor_id", identity.PrincipalID),
		slog.String("resource", req.Resource.String()),
	)
	return result, nil
}

func (g *gatewayUseCase) Encrypt(
	ctx context.Context,
	req gatewayDomain.EncryptRequest,
) (*gatewayDomain.EncryptResult, error) {
	ref := req.Resource
	c := g.begin(actionEncrypt, ref.Type, resourceAuditID(ref))
	if err := ref.Validate(); err != nil {
		return nil, c.fail(ctx, statusInvalidRequest, err)
	}

	identity, d := g.authenticate(ctx, c, req.Token, req.SourceIP)
	if d != nil {
		return nil, c.deny(ctx, d)
	}
	c.advance(ctx, gatewayDomain.StateIdentityVerified)
	c.advance(ctx, gatewayDomain.StateStepUpVerified)

	if d := g.authorize(identity, ref); d != nil {
		return nil, c.deny(ctx, d)
	}
	c.advance(ctx, gatewayDomain.StatePolicyChecked)

	now := g.now()
	createdAt := now
	existing, err := g.Resources.Get(ctx, ref)
	switch {
	case err == nil:
		createdAt = existing.CreatedAt
	case !errors.Is(err, gatewayDomain.ErrResourceNotFound):
		// An unreadable record is replaced by the new write.
		g.Logger.WarnContext(ctx, "overwriting unreadable resource record",
			slog.String("resource", ref.String()),
			slog.Any("error", err),
		)
	}

	// Every write uses a fresh DEK wrapped by the active KEK version.
	blob, wrappedDEK, err := g.Envelope.Encrypt(ctx, req.Plaintext, ref.AAD())
	if err != nil {
		if d := g.cryptoDenial(ctx, c, err); d != nil {
			return nil, c.deny(ctx, d)
		}
		return nil, c.fail(ctx, statusError, err)
	}

	err = g.Resources.Put(ctx, &gatewayDomain.StoredResource{
		Ref:         ref,
		Blob:        blob,
		WrappedDEK:  wrappedDEK,
		ContentType: req.ContentType,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, c.fail(ctx, statusError, err)
	}

	seq, err := c.succeed(ctx)
	if err != nil {
		return nil, err
	}
	return &gatewayDomain.EncryptResult{Resource: ref, KekVersion: blob.KekVersion, AuditSequence: seq}, nil
}

func (g *gatewayUseCase) ReadArtifact(ctx context.Context, req gatewayDomain.ArtifactRequest) ([]byte, error) {
	c := g.begin(actionReadArtifact, "artifact", req.SessionID+"/"+req.Path)

	identity, d := g.authenticate(ctx, c, req.Token, req.SourceIP)
	if d != nil {
		return nil, c.deny(ctx, d)
	}

	sessionID := sessionFor(req.SessionID, identity)
	c.entry.ResourceID = sessionID + "/" + req.Path

	session, ok := g.Sessions.Lookup(identity.PrincipalID, sessionID)
	if !ok {
		return nil, c.deny(ctx, &denial{reason: gatewayDomain.DenialResourceNotFound, cause: sessionDomain.ErrSessionNotFound})
	}

	data, err := g.Sessions.ReadArtifact(ctx, session, req.Path)
	switch {
	case err == nil:
	case errors.Is(err, sessionDomain.ErrPathEscape):
		g.escalate(ctx, monitorDomain.RulePathEscape, monitorDomain.SeverityCritical, c.entry,
			"artifact path resolved outside its session directory")
		return nil, c.deny(ctx, &denial{reason: gatewayDomain.DenialPathEscape, cause: err})
	case errors.Is(err, sessionDomain.ErrArtifactNotFound), errors.Is(err, sessionDomain.ErrSessionNotFound):
		return nil, c.deny(ctx, &denial{reason: gatewayDomain.DenialResourceNotFound, cause: err})
	default:
		return nil, c.fail(ctx, statusError, err)
	}

	if _, err := c.record(ctx, auditDomain.StatusSuccess); err != nil {
		cryptoDomain.Zero(data)
		return nil, err
	}
	return data, nil
}

func (g *gatewayUseCase) Logout(ctx context.Context, req gatewayDomain.LogoutRequest) error {
	c := g.begin(actionLogout, "session", req.SessionID)

	ictx, cancel := context.WithTimeout(ctx, g.cfg.UpstreamTimeout)
	defer cancel()
	identity, err := g.Identity.VerifyIdentity(ictx, req.Token)
	if err != nil {
		reason := gatewayDomain.DenialIdentityInvalid
		if isUpstreamTimeout(ictx, err) {
			reason = gatewayDomain.DenialUpstreamTimeout
		}
		return c.deny(ctx, &denial{reason: reason, cause: err})
	}
	c.entry.ActorID = identity.PrincipalID

	sessionID := sessionFor(req.SessionID, identity)
	c.entry.ResourceID = sessionID
	if err := g.Sessions.CleanupSession(identity.PrincipalID, sessionID); err != nil {
		return c.fail(ctx, statusError, err)
	}

	_, err = c.record(ctx, auditDomain.StatusSuccess)
	return err
}

func (g *gatewayUseCase) RewrapAll(ctx context.Context) (int, error) {
	c := g.begin(actionRewrap, "resources", "*")
	c.entry.ActorID = systemActor

	active := g.Envelope.ActiveVersion()
	var stale []*gatewayDomain.StoredResource
	err := g.Resources.Walk(ctx, func(resource *gatewayDomain.StoredResource) error {
		if resource.Blob.KekVersion != active {
			stale = append(stale, resource)
		}
		return nil
	})
	if err != nil {
		return 0, c.fail(ctx, statusError, err)
	}

	rewrapped := 0
	for _, resource := range stale {
		blob, wrappedDEK, err := g.Envelope.Rewrap(ctx, resource.Blob, resource.WrappedDEK)
		if err != nil {
			c.entry.ResourceID = fmt.Sprintf("rewrapped=%d", rewrapped)
			return rewrapped, c.fail(ctx, statusError, fmt.Errorf("rewrap %s: %w", resource.Ref, err))
		}
		next := *resource
		next.Blob = blob
		next.WrappedDEK = wrappedDEK
		next.UpdatedAt = g.now()
		err = g.Resources.Replace(ctx, resource, &next)
		if errors.Is(err, gatewayDomain.ErrResourceChanged) {
			// A newer write already sealed it under the active KEK.
			g.Logger.InfoContext(ctx, "skipping resource changed during rewrap",
				slog.String("resource", resource.Ref.String()))
			continue
		}
		if err != nil {
			c.entry.ResourceID = fmt.Sprintf("rewrapped=%d", rewrapped)
			return rewrapped, c.fail(ctx, statusError, err)
		}
		rewrapped++
	}

	c.entry.ResourceID = fmt.Sprintf("rewrapped=%d", rewrapped)
	if _, err := c.record(ctx, auditDomain.StatusSuccess); err != nil {
		return rewrapped, err
	}
	return rewrapped, nil
}

func sessionFor(requested string, identity identityDomain.Identity) string {
	if requested != "" {
		return requested
	}
	return identity.SessionID
}

func resourceAuditID(ref gatewayDomain.ResourceRef) string {
	id := ref.ID
	if ref.Field != "" {
		id += "/" + ref.Field
	}
	return id
}
