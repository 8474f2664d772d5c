// Package domain defines rate/anomaly rules, subject keys and operational alerts.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades an alert for the notification sinks.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is an operational signal. It is never an audit record.
type Alert struct {
	ID        uuid.UUID         `json:"id"`
	Rule      Rule              `json:"rule"`
	Subject   string            `json:"subject"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Count     int               `json:"count,omitempty"`
	Threshold int               `json:"threshold,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewAlert builds an alert stamped with a UUIDv7 and the current UTC time.
func NewAlert(rule Rule, subject string, severity Severity, message string) Alert {
	return Alert{
		ID:        uuid.Must(uuid.NewV7()),
		Rule:      rule,
		Subject:   subject,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
