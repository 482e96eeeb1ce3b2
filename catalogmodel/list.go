package catalogmodel

import (
	"net/url"
	"strconv"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListOptions are the paging, sorting and filter parameters of list calls.
type ListOptions struct {
	Page     int       `json:"page,omitempty" validate:"gte=0"`
	PageSize int       `json:"page_size,omitempty" validate:"gte=0,lte=100"`
	Sort     string    `json:"sort,omitempty" validate:"max=50"`
	Order    SortOrder `json:"order,omitempty" validate:"omitempty,oneof=asc desc"`
	Search   string    `json:"search,omitempty" validate:"max=200"`
	Status   string    `json:"status,omitempty"`
}

// Query encodes the non-zero options as URL query parameters.
func (o ListOptions) Query() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Order != "" {
		q.Set("order", string(o.Order))
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Status != "" {
		q.Set("status", o.Status)
	}
	return q
}

// Page is one page of a list response.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
