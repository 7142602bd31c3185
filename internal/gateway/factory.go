package gateway

import (
	"context"
	"fmt"

	"balaka-tickets/internal/gateway/paychangu"
)

// Factory creates gateway instances by provider type.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) CreateGateway(ctx context.Context, provider Provider, config any) (Gateway, error) {
	switch provider {
	case ProviderPayChangu:
		cfg, ok := config.(*paychangu.Config)
		if !ok {
			return nil, fmt.Errorf("invalid PayChangu config type, expected *paychangu.Config")
		}
		return NewPayChanguAdapter(ctx, cfg)

	case ProviderDPO:
		// TODO: add a DPO adapter once card settlement goes live
		return nil, fmt.Errorf("DPO gateway provider not implemented yet")

	default:
		return nil, fmt.Errorf("unsupported gateway provider: %s", provider)
	}
}

func (f *Factory) GetSupportedProviders() []Provider {
	return []Provider{
		ProviderPayChangu,
	}
}
