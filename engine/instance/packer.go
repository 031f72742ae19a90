package instance

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/phex-go/common"
)

const (
	// MinRecordSize is the smallest stride a packed record may use.
	MinRecordSize = 32

	defaultAlignment         = 32
	defaultParallelThreshold = 4096
	poolQueueSize            = 256
)

// One pack pool serves every packer in the process. It is never stopped; automation's Stop
// leaves its workers blocked.
var (
	sharedPoolOnce sync.Once
	sharedPool     worker.DynamicWorkerPool
)

func packPool() worker.DynamicWorkerPool {
	sharedPoolOnce.Do(func() {
		sharedPool = worker.NewDynamicWorkerPool(max(2, runtime.NumCPU()), poolQueueSize, time.Second)
	})
	return sharedPool
}

// Packer lays out per-object records into contiguous, aligned byte blocks.
// Record i of every block always belongs to objects[i].
type Packer interface {
	// Stride returns the byte distance between consecutive records.
	Stride() uint64

	// BlockSize returns the size of a block holding n records.
	BlockSize(n int) uint64

	// PackBase packs the immutable color/offset record of every object.
	//
	// Parameters:
	//   - objects: the objects in draw order
	//
	// Returns:
	//   - []byte: BlockSize(len(objects)) bytes
	PackBase(objects []Object) []byte

	// PackExtra updates each object's per-frame scale for the aspect ratio and packs the scale records.
	//
	// Parameters:
	//   - objects: the objects in draw order, updated in place
	//   - aspect: window width / height
	//
	// Returns:
	//   - []byte: BlockSize(len(objects)) bytes
	PackExtra(objects []Object, aspect float32) []byte

	// PackExtraInto is PackExtra writing into a caller-owned block, so the per-frame path does not allocate.
	//
	// Parameters:
	//   - dst: destination block, at least BlockSize(len(objects)) bytes
	//   - objects: the objects in draw order, updated in place
	//   - aspect: window width / height
	//
	// Returns:
	//   - error: error if dst is too small
	PackExtraInto(dst []byte, objects []Object, aspect float32) error

	// Release detaches the packer from the shared worker pool; later packs run serially.
	Release()
}

var _ Packer = &packer{}

type packer struct {
	alignment         uint64
	workers           int
	parallelThreshold int
	released          bool
}

// NewPacker creates a new Packer.
//
// Parameters:
//   - options: functional options to configure the packer
//
// Returns:
//   - Packer: the new packer
func NewPacker(options ...PackerBuilderOption) Packer {
	p := &packer{
		alignment:         defaultAlignment,
		workers:           runtime.NumCPU(),
		parallelThreshold: defaultParallelThreshold,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *packer) Stride() uint64 {
	return max(MinRecordSize, common.AlignUp(MinRecordSize, p.alignment))
}

func (p *packer) BlockSize(n int) uint64 {
	if n <= 0 {
		return 0
	}
	return uint64(n) * p.Stride()
}

func (p *packer) PackBase(objects []Object) []byte {
	dst := make([]byte, p.BlockSize(len(objects)))
	stride := int(p.Stride())
	p.forEachChunk(len(objects), func(start, end int) {
		for i := start; i < end; i++ {
			rec := GPUInstanceBase{Color: objects[i].Base.Color, Offset: objects[i].Base.Offset}
			rec.MarshalTo(dst[i*stride:])
		}
	})
	return dst
}

func (p *packer) PackExtra(objects []Object, aspect float32) []byte {
	dst := make([]byte, p.BlockSize(len(objects)))
	p.packExtra(dst, objects, aspect)
	return dst
}

func (p *packer) PackExtraInto(dst []byte, objects []Object, aspect float32) error {
	need := p.BlockSize(len(objects))
	if uint64(len(dst)) < need {
		return fmt.Errorf("extra block too small: have %d bytes, need %d", len(dst), need)
	}
	p.packExtra(dst, objects, aspect)
	return nil
}

func (p *packer) packExtra(dst []byte, objects []Object, aspect float32) {
	stride := int(p.Stride())
	p.forEachChunk(len(objects), func(start, end int) {
		for i := start; i < end; i++ {
			objects[i].UpdateExtra(aspect)
			rec := GPUInstanceScale{Scale: objects[i].Extra.ScaleXY}
			rec.MarshalTo(dst[i*stride:])
			// stride padding beyond the 32-byte record stays zero
			clear(dst[i*stride+MinRecordSize : (i+1)*stride])
		}
	})
}

func (p *packer) Release() {
	p.released = true
}

// forEachChunk runs fn over [0, n). Above the parallel threshold the range is split into one disjoint
// chunk per worker and submitted to the shared pool; a WaitGroup keeps the call synchronous.
func (p *packer) forEachChunk(n int, fn func(start, end int)) {
	if n == 0 {
		return
	}
	if p.released || p.workers < 2 || n <= p.parallelThreshold {
		fn(0, n)
		return
	}
	pool := packPool()

	chunk := (n + p.workers - 1) / p.workers
	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		s, e := start, end
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				fn(s, e)
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()
}
