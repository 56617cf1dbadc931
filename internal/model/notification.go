package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NotificationType classifies a notification for iconography and for
// bucketing in Stats.ByType.
type NotificationType string

const (
	NotificationOrderCreated   NotificationType = "ORDER_CREATED"
	NotificationOrderConfirmed NotificationType = "ORDER_CONFIRMED"
	NotificationOrderShipped   NotificationType = "ORDER_SHIPPED"
	NotificationOrderDelivered NotificationType = "ORDER_DELIVERED"
	NotificationOrderCancelled NotificationType = "ORDER_CANCELLED"
	NotificationPaymentSuccess NotificationType = "PAYMENT_SUCCESS"
	NotificationPaymentFailed  NotificationType = "PAYMENT_FAILED"
	NotificationReviewReceived NotificationType = "REVIEW_RECEIVED"
	NotificationPromotion      NotificationType = "PROMOTION"
	NotificationSystem         NotificationType = "SYSTEM"
)

// NotificationTypes lists every known notification type in display order.
var NotificationTypes = []NotificationType{
	NotificationOrderCreated,
	NotificationOrderConfirmed,
	NotificationOrderShipped,
	NotificationOrderDelivered,
	NotificationOrderCancelled,
	NotificationPaymentSuccess,
	NotificationPaymentFailed,
	NotificationReviewReceived,
	NotificationPromotion,
	NotificationSystem,
}

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Notification is a single user-facing storefront event.
type Notification struct {
	// ID is stable across REST and push delivery of the same event.
	ID string `json:"id"`

	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`

	// IsRead flips only through an explicit mark-read or a refetch.
	IsRead bool `json:"is_read"`

	// ActionURL is an optional deep link, either absolute or an in-app route.
	ActionURL string `json:"action_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalJSON accepts created_at with or without a zone offset, since
// the backend emits naive ISO-8601 timestamps for some events.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	aux := struct {
		*alias
		CreatedAt string `json:"created_at"`
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CreatedAt == "" {
		n.CreatedAt = time.Time{}
		return nil
	}

	ts, err := ParseTimestamp(aux.CreatedAt)
	if err != nil {
		return err
	}
	n.CreatedAt = ts
	return nil
}

// timestampLayouts are tried in order by ParseTimestamp. Naive layouts are
// interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp as sent by the backend.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// IsExternal reports whether the action link points outside the storefront.
func (n Notification) IsExternal() bool {
	return strings.HasPrefix(n.ActionURL, "http://") ||
		strings.HasPrefix(n.ActionURL, "https://")
}

// Stats is the aggregate view of every notification the server holds for
// the current user. Locally it is an approximation until the next
// reconciliation replaces it wholesale.
type Stats struct {
	Total  int                      `json:"total_notifications"`
	Unread int                      `json:"unread_notifications"`
	Read   int                      `json:"read_notifications"`
	ByType map[NotificationType]int `json:"by_type"`
}

// EmptyStats returns zeroed stats with an allocated ByType map.
func EmptyStats() Stats {
	return Stats{ByType: make(map[NotificationType]int)}
}

// Clone returns a deep copy of s.
func (s Stats) Clone() Stats {
	out := s
	out.ByType = make(map[NotificationType]int, len(s.ByType))
	for t, c := range s.ByType {
		out.ByType[t] = c
	}
	return out
}

// Consistent reports whether read+unread equals total and the per-type
// buckets sum to total.
func (s Stats) Consistent() bool {
	if s.Read+s.Unread != s.Total {
		return false
	}
	sum := 0
	for _, c := range s.ByType {
		if c < 0 {
			return false
		}
		sum += c
	}
	return sum == s.Total
}

// StatsDelta is a signed change to apply to Stats.
type StatsDelta struct {
	Total  int
	Unread int
	Read   int
	ByType map[NotificationType]int
}

// DeltaForPush is the change caused by a freshly pushed notification, which
// is unread by definition.
func DeltaForPush(n Notification) StatsDelta {
	return StatsDelta{
		Total:  1,
		Unread: 1,
		ByType: map[NotificationType]int{n.Type: 1},
	}
}

// DeltaForMarkRead is the change caused by marking the given unread
// notifications read. Callers pass only items that actually flipped.
func DeltaForMarkRead(flipped ...Notification) StatsDelta {
	n := len(flipped)
	return StatsDelta{Unread: -n, Read: n}
}

// DeltaForRemoval is the change caused by deleting the given notifications.
func DeltaForRemoval(removed ...Notification) StatsDelta {
	d := StatsDelta{ByType: make(map[NotificationType]int)}
	for _, n := range removed {
		d.Total--
		if n.IsRead {
			d.Read--
		} else {
			d.Unread--
		}
		d.ByType[n.Type]--
	}
	return d
}

// Apply returns s with d added, flooring every counter and bucket at zero.
// s is not modified.
func (s Stats) Apply(d StatsDelta) Stats {
	out := s.Clone()
	out.Total = floor(out.Total + d.Total)
	out.Unread = floor(out.Unread + d.Unread)
	out.Read = floor(out.Read + d.Read)
	for t, c := range d.ByType {
		if _, ok := out.ByType[t]; !ok && c <= 0 {
			continue
		}
		out.ByType[t] = floor(out.ByType[t] + c)
	}
	return out
}

func floor(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
