//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/integral/gpucore"
)

// command is one recorded compute pass with its resources resolved.
type command struct {
	label    string
	kernel   *computeKernel
	storage  []*deviceBuffer
	uniforms []*deviceUniform
	shapes   [gpucore.MaxStorageBindings * gpucore.UniformWords]uint32
	groups   gpucore.Size
}

// batch records compute passes and encodes them into one command buffer
// on Submit.
type batch struct {
	backend  *Backend
	label    string
	commands []command
	err      error
	done     bool
}

var _ gpucore.Batch = (*batch)(nil)

func (c *batch) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Dispatch records a kernel dispatch.
func (c *batch) Dispatch(d *gpucore.DispatchDesc) {
	if c.done || c.err != nil {
		return
	}
	if err := gpucore.ValidateDispatch(d); err != nil {
		c.fail(err)
		return
	}

	b := c.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	k, ok := b.kernels[d.Kernel.ID]
	if !ok {
		c.fail(fmt.Errorf("%w: %s", gpucore.ErrKernelNotFound, d.Kernel.Desc.Name))
		return
	}
	cmd := command{
		label:  d.Label,
		kernel: k,
		shapes: gpucore.ShapeWords(d.Storage),
		groups: d.Groups,
	}
	if cmd.label == "" {
		cmd.label = k.name
	}
	for _, buf := range d.Storage {
		db, err := b.lookup(buf)
		if err != nil {
			c.fail(err)
			return
		}
		cmd.storage = append(cmd.storage, db)
	}
	for _, u := range d.Uniforms {
		du, ok := b.uniforms[u.ID]
		if !ok {
			c.fail(fmt.Errorf("%w: %q (id %d)", gpucore.ErrUnknownUniform, u.Label, u.ID))
			return
		}
		cmd.uniforms = append(cmd.uniforms, du)
	}
	c.commands = append(c.commands, cmd)
}

// Transpose records dst(x, y) = src(y, x) with the built-in transpose shader.
func (c *batch) Transpose(src, dst gpucore.Buffer) {
	if c.done || c.err != nil {
		return
	}
	if err := gpucore.ValidateTranspose(src, dst); err != nil {
		c.fail(err)
		return
	}

	b := c.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, err := b.lookup(src)
	if err != nil {
		c.fail(err)
		return
	}
	t, err := b.lookup(dst)
	if err != nil {
		c.fail(err)
		return
	}
	c.commands = append(c.commands, command{
		label:   "transpose",
		kernel:  b.transpose,
		storage: []*deviceBuffer{s, t},
		shapes:  gpucore.ShapeWords([]gpucore.Buffer{src, dst}),
		groups:  transposeGroups(src),
	})
}

// batchResources tracks the per-submission GPU objects for cleanup.
type batchResources struct {
	device     hal.Device
	shapes     []hal.Buffer
	bindGroups []hal.BindGroup
	cmdBuf     hal.CommandBuffer
}

func (r *batchResources) cleanup() {
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
	}
	for _, g := range r.bindGroups {
		r.device.DestroyBindGroup(g)
	}
	for _, s := range r.shapes {
		r.device.DestroyBuffer(s)
	}
}

// Submit encodes every recorded command, submits the command buffer and
// waits for the GPU.
func (c *batch) Submit() error {
	if c.done {
		return gpucore.ErrBatchDone
	}
	c.done = true
	if c.err != nil {
		return fmt.Errorf("wgpu: batch %q: %w", c.label, c.err)
	}
	if len(c.commands) == 0 {
		return nil
	}

	b := c.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return gpucore.ErrClosed
	}

	res := &batchResources{device: b.device}
	defer res.cleanup()

	if err := c.encode(res); err != nil {
		return err
	}
	if err := b.submitAndWait(res.cmdBuf); err != nil {
		return fmt.Errorf("wgpu: batch %q: %w", c.label, err)
	}

	gpucore.Logger().Debug("wgpu backend: batch submitted",
		"batch", c.label,
		"passes", len(c.commands))
	c.commands = nil
	return nil
}

// encode records one compute pass per command into a new command buffer.
func (c *batch) encode(res *batchResources) error {
	b := c.backend
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: c.label,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(c.label); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	for i := range c.commands {
		cmd := &c.commands[i]
		if cmd.groups.X == 0 || cmd.groups.Y == 0 || cmd.groups.Z == 0 {
			continue
		}

		bg, err := c.bindGroup(res, cmd)
		if err != nil {
			encoder.DiscardEncoding()
			return err
		}

		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
			Label: cmd.label,
		})
		pass.SetPipeline(cmd.kernel.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(cmd.groups.X, cmd.groups.Y, cmd.groups.Z)
		pass.End()

		gpucore.Logger().Debug("wgpu backend: dispatched",
			"kernel", cmd.kernel.name,
			"label", cmd.label,
			"groups_x", cmd.groups.X,
			"groups_y", cmd.groups.Y)
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	res.cmdBuf = cmdBuf
	return nil
}

// bindGroup creates the shapes uniform and bind group of one command.
func (c *batch) bindGroup(res *batchResources, cmd *command) (hal.BindGroup, error) {
	b := c.backend
	shapes, err := b.createUniformBuffer(cmd.label+"_shapes", shapesSize, uint32sToBytes(cmd.shapes[:]))
	if err != nil {
		return nil, err
	}
	res.shapes = append(res.shapes, shapes)

	entries := make([]gputypes.BindGroupEntry, 0, 1+len(cmd.storage)+len(cmd.uniforms))
	entries = append(entries, bufferEntry(gpucore.ShapesBinding, shapes, shapesSize))
	for i, db := range cmd.storage {
		entries = append(entries, bufferEntry(uint32(gpucore.FirstStorageBinding+i), db.buf, db.size)) //nolint:gosec // small binding index
	}
	for i, du := range cmd.uniforms {
		entries = append(entries, bufferEntry(uint32(gpucore.FirstUniformBinding+i), du.buf, uniformSize)) //nolint:gosec // small binding index
	}

	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   cmd.label + "_bg",
		Layout:  cmd.kernel.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group for %s: %w", cmd.kernel.name, err)
	}
	res.bindGroups = append(res.bindGroups, bg)
	return bg, nil
}

func bufferEntry(binding uint32, buf hal.Buffer, size uint64) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.NativeHandle(),
			Offset: 0,
			Size:   size,
		},
	}
}

// Discard drops the recorded commands.
func (c *batch) Discard() {
	c.done = true
	c.commands = nil
}
