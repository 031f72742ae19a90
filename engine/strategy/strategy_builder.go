package strategy

import (
	"github.com/Carmen-Shannon/phex-go/common"
	"github.com/Carmen-Shannon/phex-go/engine/instance"
)

// StrategyBuilderOption is a functional option applied to a strategy during New.
type StrategyBuilderOption func(*base)

// WithPacker sets the packer used to lay out instance records. The strategy takes ownership and
// releases it. Storage strategies need a packer whose stride is the 32-byte record size.
//
// Parameters:
//   - p: the packer
//
// Returns:
//   - StrategyBuilderOption: option function to apply
func WithPacker(p instance.Packer) StrategyBuilderOption {
	return func(b *base) {
		if p != nil {
			b.packer = p
		}
	}
}

// WithSampler sets the sampler configuration of the textured strategy.
func WithSampler(cfg common.SamplerStagingData) StrategyBuilderOption {
	return func(b *base) {
		b.sampler = cfg
	}
}
