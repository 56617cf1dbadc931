package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"zoned", `{"id":"n1","created_at":"2026-03-01T09:30:00+02:00"}`, time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)},
		{"naive", `{"id":"n1","created_at":"2026-03-01T09:30:00.123456"}`, time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.UTC)},
		{"space separated", `{"id":"n1","created_at":"2026-03-01 09:30:00"}`, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"missing", `{"id":"n1"}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Notification
			require.NoError(t, json.Unmarshal([]byte(tt.in), &n))
			assert.Equal(t, "n1", n.ID)
			assert.True(t, tt.want.Equal(n.CreatedAt), "got %s", n.CreatedAt)
		})
	}
}

func TestNotification_UnmarshalJSONFields(t *testing.T) {
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "n7",
		"type": "ORDER_SHIPPED",
		"title": "Shipped",
		"message": "On its way",
		"is_read": true,
		"action_url": "/orders/7",
		"created_at": "2026-03-01T09:30:00Z"
	}`), &n))

	assert.Equal(t, NotificationOrderShipped, n.Type)
	assert.Equal(t, "Shipped", n.Title)
	assert.Equal(t, "On its way", n.Message)
	assert.True(t, n.IsRead)
	assert.Equal(t, "/orders/7", n.ActionURL)
}

func TestNotification_UnmarshalJSONBadTimestamp(t *testing.T) {
	var n Notification
	err := json.Unmarshal([]byte(`{"id":"n1","created_at":"yesterday"}`), &n)
	assert.ErrorContains(t, err, "unrecognized timestamp")
}

func TestNotification_IsExternal(t *testing.T) {
	assert.True(t, Notification{ActionURL: "https://carrier.example/track"}.IsExternal())
	assert.True(t, Notification{ActionURL: "http://example.com"}.IsExternal())
	assert.False(t, Notification{ActionURL: "/orders/1"}.IsExternal())
	assert.False(t, Notification{}.IsExternal())
}

func TestNotificationType_Valid(t *testing.T) {
	for _, typ := range NotificationTypes {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, NotificationType("ORDER_LOST").Valid())
}

func TestStats_ApplyPush(t *testing.T) {
	s := EmptyStats()
	s = s.Apply(DeltaForPush(Notification{Type: NotificationPromotion}))
	s = s.Apply(DeltaForPush(Notification{Type: NotificationPromotion}))

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.Unread)
	assert.Equal(t, 0, s.Read)
	assert.Equal(t, 2, s.ByType[NotificationPromotion])
	assert.True(t, s.Consistent())
}

func TestStats_ApplyMarkRead(t *testing.T) {
	s := Stats{Total: 3, Unread: 2, Read: 1, ByType: map[NotificationType]int{NotificationSystem: 3}}

	out := s.Apply(DeltaForMarkRead(Notification{}, Notification{}))

	assert.Equal(t, 0, out.Unread)
	assert.Equal(t, 3, out.Read)
	assert.Equal(t, 3, out.Total)
	assert.True(t, out.Consistent())
}

func TestStats_ApplyRemovalFloorsAtZero(t *testing.T) {
	s := Stats{Total: 1, Unread: 0, Read: 1, ByType: map[NotificationType]int{NotificationSystem: 1}}

	out := s.Apply(DeltaForRemoval(
		Notification{Type: NotificationSystem, IsRead: true},
		Notification{Type: NotificationSystem, IsRead: true},
		Notification{Type: NotificationPaymentFailed},
	))

	assert.Equal(t, 0, out.Total)
	assert.Equal(t, 0, out.Unread)
	assert.Equal(t, 0, out.Read)
	assert.Equal(t, 0, out.ByType[NotificationSystem])
	_, created := out.ByType[NotificationPaymentFailed]
	assert.False(t, created, "a negative delta must not create a bucket")
}

func TestStats_ApplyDoesNotMutateReceiver(t *testing.T) {
	s := Stats{Total: 1, Unread: 1, ByType: map[NotificationType]int{NotificationSystem: 1}}
	_ = s.Apply(DeltaForPush(Notification{Type: NotificationSystem}))

	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.ByType[NotificationSystem])
}

func TestStats_Consistent(t *testing.T) {
	tests := []struct {
		name string
		s    Stats
		want bool
	}{
		{"empty", EmptyStats(), true},
		{"balanced", Stats{Total: 2, Unread: 1, Read: 1, ByType: map[NotificationType]int{NotificationSystem: 2}}, true},
		{"read plus unread off", Stats{Total: 2, Unread: 2, Read: 1, ByType: map[NotificationType]int{NotificationSystem: 2}}, false},
		{"buckets off", Stats{Total: 2, Unread: 1, Read: 1, ByType: map[NotificationType]int{NotificationSystem: 1}}, false},
		{"negative bucket", Stats{Total: 0, ByType: map[NotificationType]int{NotificationSystem: -1, NotificationPromotion: 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Consistent())
		})
	}
}

func TestStats_JSONShape(t *testing.T) {
	var s Stats
	require.NoError(t, json.Unmarshal([]byte(`{
		"total_notifications": 5,
		"unread_notifications": 2,
		"read_notifications": 3,
		"by_type": {"ORDER_CREATED": 4, "PROMOTION": 1}
	}`), &s))

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Unread)
	assert.Equal(t, 3, s.Read)
	assert.Equal(t, 4, s.ByType[NotificationOrderCreated])
}

func TestPageInfo_Navigation(t *testing.T) {
	p := PageInfo{Page: 1, TotalPages: 3}
	assert.True(t, p.HasNext())
	assert.False(t, p.HasPrev())

	p.Page = 3
	assert.False(t, p.HasNext())
	assert.True(t, p.HasPrev())

	assert.False(t, PageInfo{Page: 1}.HasNext(), "unknown total means no next page")
}
