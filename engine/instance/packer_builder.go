package instance

// PackerBuilderOption is a functional option used to configure a Packer during construction.
type PackerBuilderOption func(*packer)

// WithAlignment sets the device's uniform/storage offset alignment. The record stride is the larger
// of 32 bytes and 32 rounded up to this alignment.
//
// Parameters:
//   - alignment: the alignment in bytes, 0 keeps the default
//
// Returns:
//   - PackerBuilderOption: a function that sets the alignment for this packer
func WithAlignment(alignment uint64) PackerBuilderOption {
	return func(p *packer) {
		if alignment > 0 {
			p.alignment = alignment
		}
	}
}

// WithWorkers sets how many pool workers pack large object sets in parallel.
//
// Parameters:
//   - n: the worker count, values below 1 disable parallel packing
//
// Returns:
//   - PackerBuilderOption: a function that sets the worker count for this packer
func WithWorkers(n int) PackerBuilderOption {
	return func(p *packer) {
		p.workers = n
	}
}

// WithParallelThreshold sets the object count above which packing is split across the worker pool.
//
// Parameters:
//   - n: the threshold in objects
//
// Returns:
//   - PackerBuilderOption: a function that sets the parallel threshold for this packer
func WithParallelThreshold(n int) PackerBuilderOption {
	return func(p *packer) {
		p.parallelThreshold = n
	}
}
