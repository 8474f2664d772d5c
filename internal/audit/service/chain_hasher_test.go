package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/gatekeeper/internal/audit/domain"
)

func sampleEntry() *auditDomain.Entry {
	return &auditDomain.Entry{
		ID:           uuid.MustParse("0190a3b2-7c4d-7e8f-9a0b-1c2d3e4f5a6b"),
		Sequence:     7,
		ActorID:      "nurse-1",
		Action:       "resolve",
		ResourceType: "patients",
		ResourceID:   "p-42/medical_history",
		Status:       auditDomain.StatusSuccess,
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
	}
}

func TestSHA256Hasher(t *testing.T) {
	hasher := NewSHA256Hasher()
	prev := auditDomain.GenesisHash()

	h1 := hasher.Hash(prev, sampleEntry())
	assert.Len(t, h1, auditDomain.HashSize)
	assert.Equal(t, h1, hasher.Hash(prev, sampleEntry()), "hash must be deterministic")

	t.Run("every field is covered", func(t *testing.T) {
		mutations := map[string]func(e *auditDomain.Entry){
			"id":            func(e *auditDomain.Entry) { e.ID = uuid.New() },
			"sequence":      func(e *auditDomain.Entry) { e.Sequence++ },
			"actor":         func(e *auditDomain.Entry) { e.ActorID = "nurse-2" },
			"action":        func(e *auditDomain.Entry) { e.Action = "encrypt" },
			"resource type": func(e *auditDomain.Entry) { e.ResourceType = "billing" },
			"resource id":   func(e *auditDomain.Entry) { e.ResourceID = "p-43/medical_history" },
			"status":        func(e *auditDomain.Entry) { e.Status = "insufficient_permission" },
			"timestamp":     func(e *auditDomain.Entry) { e.Timestamp = e.Timestamp.Add(time.Nanosecond) },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				e := sampleEntry()
				mutate(e)
				assert.NotEqual(t, h1, hasher.Hash(prev, e))
			})
		}
	})

	t.Run("prev hash is covered", func(t *testing.T) {
		other := auditDomain.GenesisHash()
		other[31] = 1
		assert.NotEqual(t, h1, hasher.Hash(other, sampleEntry()))
	})

	t.Run("length prefix prevents field shifting", func(t *testing.T) {
		a := sampleEntry()
		a.ActorID, a.Action = "ab", "c"
		b := sampleEntry()
		b.ActorID, b.Action = "a", "bc"
		assert.NotEqual(t, hasher.Hash(prev, a), hasher.Hash(prev, b))
	})
}

func TestHMACHasher(t *testing.T) {
	prev := auditDomain.GenesisHash()

	k1, err := NewHMACHasher([]byte("chain-secret-1"))
	require.NoError(t, err)
	k1Again, err := NewHMACHasher([]byte("chain-secret-1"))
	require.NoError(t, err)
	k2, err := NewHMACHasher([]byte("chain-secret-2"))
	require.NoError(t, err)

	h := k1.Hash(prev, sampleEntry())
	assert.Len(t, h, auditDomain.HashSize)
	assert.Equal(t, h, k1Again.Hash(prev, sampleEntry()))
	assert.NotEqual(t, h, k2.Hash(prev, sampleEntry()))
	assert.NotEqual(t, h, NewSHA256Hasher().Hash(prev, sampleEntry()))
}
