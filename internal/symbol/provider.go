package symbol

import "context"

// Provider is the backing source of broker symbol metadata — typically the
// Execution Bridge's adapter (§4.6, `symbol_info`). Kept as an interface so
// the Normalizer never depends on a concrete broker SDK, per §1's Non-goals.
type Provider interface {
	SymbolInfo(ctx context.Context, sym string) (Info, error)
}

// StaticProvider serves a fixed table of symbol metadata. Used in tests and
// as the default when no live broker connection is configured.
type StaticProvider struct {
	table map[string]Info
}

// NewStaticProvider builds a provider from a slice of Info.
func NewStaticProvider(infos ...Info) *StaticProvider {
	table := make(map[string]Info, len(infos))
	for _, i := range infos {
		table[i.Symbol] = i
	}
	return &StaticProvider{table: table}
}

// SymbolInfo implements Provider.
func (p *StaticProvider) SymbolInfo(ctx context.Context, sym string) (Info, error) {
	info, ok := p.table[sym]
	if !ok {
		return Info{}, errUnknown(sym)
	}
	return info, nil
}
