// Package provider wraps the outbound channel providers behind one normalized contract.
package provider

import (
	"context"
	"errors"
	"fmt"

	"crm-messaging/internal/domain/automation"
	crm_errors "crm-messaging/pkg/errors"
)

// ErrTransport marks failures talking to a provider: timeouts, non-2xx without a result
// header, or bodies that are not the expected JSON. A provider-reported failure is not an error.
var ErrTransport = errors.New("provider transport error")

func transportErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransport, err)
}

// Message is a fully rendered message ready to hand to a provider.
type Message struct {
	Recipient   string
	TemplateRef string
	Subject     string
	Content     string
}

// SendResult is the normalized provider answer.
type SendResult struct {
	OK        bool   `json:"ok"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type Page struct {
	PageNum  int `json:"page_num"`
	PageSize int `json:"page_size"`
}

// Normalize applies the provider defaults (page 1, 15 per page, at most 1000).
func (p Page) Normalize() Page {
	if p.PageNum < 1 {
		p.PageNum = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 15
	}
	if p.PageSize > 1000 {
		p.PageSize = 1000
	}
	return p
}

type ListResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}

type Template struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Status  string `json:"status,omitempty"`
}

type SenderProfile struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

type Category struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Sender interface {
	Channel() automation.Channel
	Send(ctx context.Context, msg Message) (SendResult, error)
}

type Catalog interface {
	ListTemplates(ctx context.Context, page Page) (ListResult[Template], error)
	ListSenders(ctx context.Context, page Page) (ListResult[SenderProfile], error)
	ListCategories(ctx context.Context, page Page) (ListResult[Category], error)
}

// Client is what every channel adapter implements.
type Client interface {
	Sender
	Catalog
}

// Registry resolves adapters by channel.
type Registry struct {
	clients map[automation.Channel]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[automation.Channel]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Channel()] = c
	}
	return r
}

func (r *Registry) Client(ch automation.Channel) (Client, error) {
	c, ok := r.clients[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", crm_errors.ErrUnsupportedChannel, ch)
	}
	return c, nil
}

func (r *Registry) Sender(ch automation.Channel) (Sender, error) {
	return r.Client(ch)
}
