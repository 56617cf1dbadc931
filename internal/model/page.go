package model

// PageInfo describes which page of the notification list is loaded.
type PageInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	Total      int  `json:"total"`
	UnreadOnly bool `json:"unread_only"`
}

// HasNext reports whether a later page exists.
func (p PageInfo) HasNext() bool {
	return p.Page < p.TotalPages
}

// HasPrev reports whether an earlier page exists.
func (p PageInfo) HasPrev() bool {
	return p.Page > 1
}
