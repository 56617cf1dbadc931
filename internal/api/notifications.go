package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/shopnotify/internal/model"
)

// ListParams selects one page of notifications.
type ListParams struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

// Pagination is the page metadata returned with a list.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// Page is one page of notifications, newest first.
type Page struct {
	Items      []model.Notification `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

type markReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

// IssueTicket requests a single-use ticket for the push channel.
func (c *Client) IssueTicket(ctx context.Context) (string, error) {
	var resp ticketResponse
	if err := c.post(ctx, "/notifications/ws-ticket", nil, &resp); err != nil {
		return "", err
	}
	if resp.Ticket == "" {
		return "", fmt.Errorf("ticket endpoint returned an empty ticket")
	}
	return resp.Ticket, nil
}

// ListNotifications fetches one page of notifications.
func (c *Client) ListNotifications(ctx context.Context, p ListParams) (*Page, error) {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.UnreadOnly {
		q.Set("unread_only", "true")
	}

	path := "/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page Page
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []model.Notification{}
	}
	return &page, nil
}

// GetStats fetches the authoritative stats snapshot.
func (c *Client) GetStats(ctx context.Context) (model.Stats, error) {
	stats := model.EmptyStats()
	if err := c.get(ctx, "/notifications/stats", &stats); err != nil {
		return model.Stats{}, err
	}
	if stats.ByType == nil {
		stats.ByType = make(map[model.NotificationType]int)
	}
	return stats, nil
}

// MarkRead marks the given notifications read.
func (c *Client) MarkRead(ctx context.Context, ids []string) error {
	return c.put(ctx, "/notifications/read", markReadRequest{NotificationIDs: ids}, nil)
}

// MarkAllRead marks every notification of the user read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.put(ctx, "/notifications/read-all", nil, nil)
}

// DeleteNotification deletes a single notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.delete(ctx, "/notifications/"+url.PathEscape(id), nil)
}

// DeleteAllRead deletes every read notification of the user.
func (c *Client) DeleteAllRead(ctx context.Context) error {
	return c.delete(ctx, "/notifications/read", nil)
}
