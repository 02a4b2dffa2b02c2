package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/voxstream/voxelrt/rt/core"
)

// WgpuDevice creates real GPU buffers. Uploads go through Queue.WriteBuffer, so
// they are ordered with every command buffer submitted on the same queue.
type WgpuDevice struct {
	Device *wgpu.Device
	Usage  wgpu.BufferUsage
	Log    core.Logger
}

func NewWgpuDevice(device *wgpu.Device, log core.Logger) *WgpuDevice {
	return &WgpuDevice{
		Device: device,
		Usage:  wgpu.BufferUsageVertex | wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		Log:    core.OrNop(log),
	}
}

// OpenHeadless requests an adapter and device without a surface. The returned
// func releases them.
func OpenHeadless(log core.Logger) (*WgpuDevice, func(), error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("request device: %w", err)
	}
	release := func() {
		device.Release()
		adapter.Release()
		instance.Release()
	}
	return NewWgpuDevice(device, log), release, nil
}

func (d *WgpuDevice) CreateBuffer(label string, size uint64) (Buffer, error) {
	size = AlignUp(size)
	if size == 0 {
		return nil, fmt.Errorf("create buffer %q: %w", label, ErrZeroCapacity)
	}
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            d.Usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer: %w", label, err)
	}
	return &wgpuBuffer{
		id:    NewBufferID(),
		label: label,
		buf:   buf,
		queue: d.Device.GetQueue(),
		log:   core.OrNop(d.Log),
	}, nil
}

type wgpuBuffer struct {
	id    BufferID
	label string
	buf   *wgpu.Buffer
	queue *wgpu.Queue
	log   core.Logger
}

func (b *wgpuBuffer) ID() BufferID  { return b.id }
func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64 {
	if b.buf == nil {
		return 0
	}
	return b.buf.GetSize()
}

// Raw returns the underlying wgpu buffer for binding in a render pass.
func (b *wgpuBuffer) Raw() *wgpu.Buffer { return b.buf }

func (b *wgpuBuffer) Write(offset uint64, data []byte) {
	if len(data) == 0 || b.buf == nil {
		return
	}
	// WriteBuffer sizes must be a multiple of 4.
	if pad := len(data) % 4; pad != 0 {
		data = append(data[:len(data):len(data)], make([]byte, 4-pad)...)
	}
	if err := b.queue.WriteBuffer(b.buf, offset, data); err != nil {
		b.log.Errorf("write %s at %d (%d bytes): %v", b.label, offset, len(data), err)
	}
}

func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// RawBuffer returns the wgpu buffer behind a Buffer created by a WgpuDevice.
func RawBuffer(b Buffer) (*wgpu.Buffer, bool) {
	wb, ok := b.(*wgpuBuffer)
	if !ok || wb.buf == nil {
		return nil, false
	}
	return wb.buf, true
}
