package cpu

import (
	"fmt"

	"github.com/gogpu/integral/gpucore"
)

// command is one recorded operation. It runs with the backend read lock held.
type command func(b *Backend) error

// batch records commands and runs them in order on Submit.
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

	desc := *d
	desc.Storage = append([]gpucore.Buffer(nil), d.Storage...)
	desc.Uniforms = append([]gpucore.Uniform(nil), d.Uniforms...)
	c.commands = append(c.commands, func(b *Backend) error {
		return b.dispatch(&desc)
	})
}

// Transpose records dst(x, y) = src(y, x).
func (c *batch) Transpose(src, dst gpucore.Buffer) {
	if c.done || c.err != nil {
		return
	}
	if err := gpucore.ValidateTranspose(src, dst); err != nil {
		c.fail(err)
		return
	}
	c.commands = append(c.commands, func(b *Backend) error {
		s, err := b.lookup(src)
		if err != nil {
			return err
		}
		t, err := b.lookup(dst)
		if err != nil {
			return err
		}
		b.transpose(s, t)
		return nil
	})
}

// Submit runs every recorded command and returns the first error.
func (c *batch) Submit() error {
	if c.done {
		return gpucore.ErrBatchDone
	}
	c.done = true
	if c.err != nil {
		return fmt.Errorf("cpu: batch %q: %w", c.label, c.err)
	}

	b := c.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return gpucore.ErrClosed
	}

	for i, cmd := range c.commands {
		if err := cmd(b); err != nil {
			return fmt.Errorf("cpu: batch %q command %d: %w", c.label, i, err)
		}
	}
	gpucore.Logger().Debug("cpu backend: batch submitted",
		"batch", c.label,
		"commands", len(c.commands))
	c.commands = nil
	return nil
}

// Discard drops the recorded commands.
func (c *batch) Discard() {
	c.done = true
	c.commands = nil
}

// dispatch resolves the bindings of d and runs every workgroup of the grid.
// Callers hold b.mu for reading.
func (b *Backend) dispatch(d *gpucore.DispatchDesc) error {
	k, ok := b.kernels[d.Kernel.ID]
	if !ok {
		return fmt.Errorf("%w: %s", gpucore.ErrKernelNotFound, d.Kernel.Desc.Name)
	}

	views := make([]gpucore.View, len(d.Storage))
	for i, buf := range d.Storage {
		hb, err := b.lookup(buf)
		if err != nil {
			return err
		}
		views[i] = gpucore.View{Data: hb.data, Width: hb.width, Height: hb.height}
	}
	uniforms := make([][gpucore.UniformWords]uint32, len(d.Uniforms))
	for i, u := range d.Uniforms {
		words, ok := b.uniforms[u.ID]
		if !ok {
			return fmt.Errorf("%w: %q (id %d)", gpucore.ErrUnknownUniform, u.Label, u.ID)
		}
		uniforms[i] = words
	}

	// An empty grid is a no-op on every backend.
	grid := d.Groups
	if grid.X == 0 || grid.Y == 0 || grid.Z == 0 {
		return nil
	}

	gx, gy := int(grid.X), int(grid.Y)
	b.pool.ForEach(int(grid.Count()), func(i int) {
		g := gpucore.Group{
			ID: gpucore.Size{
				X: uint32(i % gx),        //nolint:gosec // bounded by grid.X
				Y: uint32((i / gx) % gy), //nolint:gosec // bounded by grid.Y
				Z: uint32(i / (gx * gy)), //nolint:gosec // bounded by grid.Z
			},
			Grid:     grid,
			Threads:  k.GroupSize,
			Storage:  views,
			Uniforms: uniforms,
		}
		k.Host(&g)
	})
	return nil
}
