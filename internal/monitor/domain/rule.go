package domain

import (
	"time"
)

// Rule names one sliding-window detector. Escalation rules carry no window
// and are used for alerts raised directly by the gateway.
type Rule string

const (
	RuleLoginFailuresPerIP            Rule = "login_failures_per_ip"
	RuleLoginFailuresPerPrincipal     Rule = "login_failures_per_principal"
	RuleDecryptRequestsPerPrincipal   Rule = "decrypt_requests_per_principal"
	RuleDistinctResourcesPerPrincipal Rule = "distinct_resources_per_principal"
	RuleDistinctPrincipalsPerIP       Rule = "distinct_principals_per_ip"

	RulePathEscape        Rule = "path_escape"
	RuleKeyNotFound       Rule = "key_not_found"
	RuleTamperedOrCorrupt Rule = "tampered_or_corrupt"
)

// KeyKind selects which family of windows a key belongs to.
type KeyKind string

const (
	KindIP        KeyKind = "ip"
	KindPrincipal KeyKind = "principal"
)

// Key identifies a monitored subject.
type Key struct {
	Kind KeyKind
	ID   string
}

// IPKey returns the key for a client address.
func IPKey(ip string) Key {
	return Key{Kind: KindIP, ID: ip}
}

// PrincipalKey returns the key for an authenticated principal.
func PrincipalKey(principalID string) Key {
	return Key{Kind: KindPrincipal, ID: principalID}
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Threshold blocks a key once Limit hits fall inside Window.
type Threshold struct {
	Limit  int
	Window time.Duration
}

// Thresholds configures every detector.
type Thresholds struct {
	LoginFailuresPerIP            Threshold
	LoginFailuresPerPrincipal     Threshold
	DecryptRequestsPerPrincipal   Threshold
	DistinctResourcesPerPrincipal Threshold
	DistinctPrincipalsPerIP       Threshold
}

// DefaultThresholds returns the stock detector configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LoginFailuresPerIP:            Threshold{Limit: 5, Window: 15 * time.Minute},
		LoginFailuresPerPrincipal:     Threshold{Limit: 3, Window: 15 * time.Minute},
		DecryptRequestsPerPrincipal:   Threshold{Limit: 50, Window: 5 * time.Minute},
		DistinctResourcesPerPrincipal: Threshold{Limit: 20, Window: 5 * time.Minute},
		DistinctPrincipalsPerIP:       Threshold{Limit: 3, Window: 60 * time.Minute},
	}
}
