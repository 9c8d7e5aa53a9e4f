package services

import (
	"context"
	"errors"
	"fmt"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/provider"
	crm_errors "crm-messaging/pkg/errors"
)

// CatalogKind names a provider catalog listing.
type CatalogKind string

const (
	CatalogTemplates  CatalogKind = "templates"
	CatalogSenders    CatalogKind = "senders"
	CatalogCategories CatalogKind = "categories"
)

type ClientResolver interface {
	Client(ch automation.Channel) (provider.Client, error)
}

// CatalogService exposes the provider catalogs template editors pick from.
type CatalogService struct {
	clients ClientResolver
}

func NewCatalogService(clients ClientResolver) *CatalogService {
	return &CatalogService{clients: clients}
}

// List returns one page of the requested catalog. Provider outages are reported as
// ErrServiceUnavailable; provider rejections keep their *provider.ProviderError.
func (s *CatalogService) List(ctx context.Context, channel automation.Channel, kind CatalogKind, page provider.Page) (any, error) {
	client, err := s.clients.Client(channel)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()

	var out any
	switch kind {
	case CatalogTemplates:
		out, err = client.ListTemplates(ctx, page)
	case CatalogSenders:
		out, err = client.ListSenders(ctx, page)
	case CatalogCategories:
		out, err = client.ListCategories(ctx, page)
	default:
		return nil, fmt.Errorf("%w: unknown catalog %q", crm_errors.ErrInvalidInput, kind)
	}
	if err != nil {
		if errors.Is(err, provider.ErrTransport) {
			return nil, fmt.Errorf("%w: %v", crm_errors.ErrServiceUnavailable, err)
		}
		return nil, err
	}
	return out, nil
}
