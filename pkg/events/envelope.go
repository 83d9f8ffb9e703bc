// Package events defines the wire format of messages exchanged over Pub/Sub.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventSaleCompleted = "sale.completed"

	CurrentVersion = 1
)

// Envelope wraps every published payload.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// SaleCompleted is published by the checkout/funnel flow once a customer payment settles.
type SaleCompleted struct {
	SaleID          uuid.UUID       `json:"saleId"`
	CoachID         uuid.UUID       `json:"coachId"`
	GrossAmount     string          `json:"grossAmount"`
	Currency        string          `json:"currency"`
	TransactionType string          `json:"transactionType"`
	ProductInfo     json.RawMessage `json:"productInfo,omitempty"`
	Overrides       *FeeOverrides   `json:"overrides,omitempty"`
	OccurredAt      time.Time       `json:"occurredAt"`
}

// FeeOverrides carries per-product fee rules. Nil fields fall back to platform settings.
type FeeOverrides struct {
	FixedFee     *string `json:"fixedFee,omitempty"`
	GSTEnabled   *bool   `json:"gstEnabled,omitempty"`
	TDSThreshold *string `json:"tdsThreshold,omitempty"`
}

// DecodeEnvelope parses and sanity-checks an envelope.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == uuid.Nil {
		return Envelope{}, fmt.Errorf("envelope missing eventId")
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("envelope missing eventType")
	}
	if env.Version > CurrentVersion {
		return Envelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	return env, nil
}

// DecodeSaleCompleted extracts the sale payload from an envelope.
func DecodeSaleCompleted(env Envelope) (SaleCompleted, error) {
	if env.EventType != EventSaleCompleted {
		return SaleCompleted{}, fmt.Errorf("unexpected event type %q", env.EventType)
	}
	var payload SaleCompleted
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return SaleCompleted{}, fmt.Errorf("decode sale payload: %w", err)
	}
	if payload.SaleID == uuid.Nil {
		payload.SaleID = env.EventID
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = env.OccurredAt
	}
	return payload, nil
}
