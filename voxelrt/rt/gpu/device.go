package gpu

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// BufferID identifies a GPU buffer across draw calls.
type BufferID string

func NewBufferID() BufferID {
	return BufferID(uuid.NewString())
}

// Buffer is one GPU buffer usable as both vertex and index source.
// Write is queued on the device queue; it does not wait for earlier GPU reads.
type Buffer interface {
	ID() BufferID
	Label() string
	Size() uint64
	Write(offset uint64, data []byte)
	Release()
}

// Device creates buffers.
type Device interface {
	CreateBuffer(label string, size uint64) (Buffer, error)
}

// HostDevice keeps buffers in host memory. It backs tests and headless runs.
type HostDevice struct {
	mu      sync.Mutex
	buffers map[BufferID]*HostBuffer
	writes  int
}

func NewHostDevice() *HostDevice {
	return &HostDevice{buffers: make(map[BufferID]*HostBuffer)}
}

func (d *HostDevice) CreateBuffer(label string, size uint64) (Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("create buffer %q: %w", label, ErrZeroCapacity)
	}
	b := &HostBuffer{
		id:    NewBufferID(),
		label: label,
		data:  make([]byte, size),
		dev:   d,
	}
	d.mu.Lock()
	d.buffers[b.id] = b
	d.mu.Unlock()
	return b, nil
}

// LiveBuffers is the number of buffers created and not yet released.
func (d *HostDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// Writes is the number of Write calls over all buffers.
func (d *HostDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Lookup returns a live buffer by id.
func (d *HostDevice) Lookup(id BufferID) (*HostBuffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	return b, ok
}

type HostBuffer struct {
	id       BufferID
	label    string
	data     []byte
	dev      *HostDevice
	released bool
}

func (b *HostBuffer) ID() BufferID  { return b.id }
func (b *HostBuffer) Label() string { return b.label }
func (b *HostBuffer) Size() uint64  { return uint64(len(b.data)) }

func (b *HostBuffer) Write(offset uint64, data []byte) {
	if b.released || offset+uint64(len(data)) > uint64(len(b.data)) {
		return
	}
	copy(b.data[offset:], data)
	b.dev.mu.Lock()
	b.dev.writes++
	b.dev.mu.Unlock()
}

func (b *HostBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.dev.mu.Lock()
	delete(b.dev.buffers, b.id)
	b.dev.mu.Unlock()
}

// Bytes exposes the buffer contents for inspection.
func (b *HostBuffer) Bytes() []byte { return b.data }
