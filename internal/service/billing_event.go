package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

var (
	// ErrNotConfigured means a collaborator the event needs was never wired.
	ErrNotConfigured = errors.New("billing integration not configured")
	// ErrMalformedEvent means the event payload could not be decoded.
	ErrMalformedEvent = errors.New("malformed billing event")
)

// EventKind is the closed set of billing events the reconciler acts on.
type EventKind string

const (
	KindSubscriptionCreated EventKind = "subscription_created"
	KindSubscriptionUpdated EventKind = "subscription_updated"
	KindSubscriptionDeleted EventKind = "subscription_deleted"
	KindPaymentSucceeded    EventKind = "payment_succeeded"
	KindPaymentFailed       EventKind = "payment_failed"
	KindIgnored             EventKind = "ignored"
)

var eventKinds = map[stripe.EventType]EventKind{
	"customer.subscription.created": KindSubscriptionCreated,
	"customer.subscription.updated": KindSubscriptionUpdated,
	"customer.subscription.deleted": KindSubscriptionDeleted,
	"invoice.payment_succeeded":     KindPaymentSucceeded,
	"invoice.payment_failed":        KindPaymentFailed,
}

// KindOf classifies a Stripe event type.
func KindOf(t stripe.EventType) EventKind {
	if k, ok := eventKinds[t]; ok {
		return k
	}
	return KindIgnored
}

// Outcome describes what handling an event did.
type Outcome string

const (
	OutcomeReconciled    Outcome = "reconciled"
	OutcomeStatusUpdated Outcome = "status_updated"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeIgnored       Outcome = "ignored"
	OutcomeDuplicate     Outcome = "duplicate"
)

// Metadata keys that carry the internal user ID on Stripe objects.
const (
	metadataUserID       = "userId"
	metadataUserIDLegacy = "user_id"
)

func userIDFromMetadata(md map[string]string) string {
	if id := md[metadataUserID]; id != "" {
		return id
	}
	return md[metadataUserIDLegacy]
}

func decodeSubscription(event stripe.Event) (*stripe.Subscription, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, event.ID)
	}
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: subscription in event %s: %v", ErrMalformedEvent, event.ID, err)
	}
	return &sub, nil
}

// invoicePayload holds the invoice fields the reconciler reads. Stripe moved
// the subscription reference under parent.subscription_details in newer API
// versions, so both layouts are accepted.
type invoicePayload struct {
	ID                  string               `json:"id"`
	Metadata            map[string]string    `json:"metadata"`
	Subscription        expandableID         `json:"subscription"`
	SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	Parent              *struct {
		SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	} `json:"parent"`
}

type subscriptionDetails struct {
	Metadata     map[string]string `json:"metadata"`
	Subscription expandableID      `json:"subscription"`
}

// expandableID accepts a Stripe reference either as a bare ID or an expanded object.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

func decodeInvoice(event stripe.Event) (*invoicePayload, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, event.ID)
	}
	var inv invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, fmt.Errorf("%w: invoice in event %s: %v", ErrMalformedEvent, event.ID, err)
	}
	return &inv, nil
}

func (inv *invoicePayload) details() *subscriptionDetails {
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return inv.Parent.SubscriptionDetails
	}
	return inv.SubscriptionDetails
}

// SubscriptionID returns the subscription the invoice bills, if any.
func (inv *invoicePayload) SubscriptionID() string {
	if d := inv.details(); d != nil && d.Subscription != "" {
		return string(d.Subscription)
	}
	return string(inv.Subscription)
}

// UserID looks at the invoice metadata first, then the subscription snapshot.
func (inv *invoicePayload) UserID() string {
	if id := userIDFromMetadata(inv.Metadata); id != "" {
		return id
	}
	if d := inv.details(); d != nil {
		return userIDFromMetadata(d.Metadata)
	}
	return ""
}
