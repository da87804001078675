// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"math"
	"sync"

	"voicefft/internal/errs"
	applog "voicefft/internal/log"
	"voicefft/pkg/bitint"

	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/dsp/fourier"
)

// MaxPlanSize bounds the transform length. Larger requests fail with an
// allocation failure instead of exhausting memory on the device.
const MaxPlanSize = 1 << 24

var planLog = applog.Named("fft")

// transformer is the real-valued DFT primitive. *fourier.FFT satisfies it:
// Coefficients is the unscaled forward transform, Sequence the unscaled
// inverse.
type transformer interface {
	Coefficients(dst []complex128, seq []float64) []complex128
	Sequence(dst []float64, coeff []complex128) []float64
}

// planWorkspace holds the buffers a plan owns. They are overwritten by every
// call and never resized.
type planWorkspace struct {
	timeBuf []float64    // size real samples
	freqBuf []complex128 // size/2+1 complex bins
	re      []float64    // split real part of freqBuf, for vecmath
	im      []float64    // split imaginary part of freqBuf, for vecmath
}

// Plan owns the buffers for one transform length and serializes every
// transform against them. Distinct plans share nothing and never contend.
//
// A Plan is created with NewPlan and released with Destroy. Calls after
// Destroy fail with errs.IllegalState.
type Plan struct {
	size  int
	bins  int
	scale float64 // inverse normalization, 1/size

	mu        sync.Mutex // held for the whole duration of each transform
	destroyed bool
	prim      transformer
	workspace planWorkspace
}

// NewPlan allocates a plan for transforms of the given length. The size must
// be a positive power of two no larger than MaxPlanSize.
func NewPlan(size int) (*Plan, error) {
	const op = "fft.NewPlan"
	if size <= 0 {
		return nil, errs.New(errs.InvalidArgument, op, "size must be positive, got %d", size)
	}
	if !bitint.IsPowerOfTwo(size) {
		return nil, errs.New(errs.InvalidArgument, op, "size must be a power of 2, got %d", size)
	}
	if size > MaxPlanSize {
		return nil, errs.New(errs.AllocationFailure, op, "size %d exceeds maximum plan size %d", size, MaxPlanSize)
	}

	ws, prim, err := allocate(size)
	if err != nil {
		planLog.Errorf("failed to allocate plan buffers (size %d): %v", size, err)
		return nil, errs.Wrap(errs.AllocationFailure, op, err, "failed to allocate plan of size %d", size)
	}

	planLog.Debugf("created plan (size %d = 2^%d, bins %d)", size, bitint.Log2(size), size/2+1)

	return &Plan{
		size:      size,
		bins:      size/2 + 1,
		scale:     1 / float64(size),
		prim:      prim,
		workspace: ws,
	}, nil
}

// allocate builds every buffer up front so a plan is either complete or not
// created at all.
func allocate(size int) (ws planWorkspace, prim transformer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	bins := size/2 + 1
	ws = planWorkspace{
		timeBuf: make([]float64, size),
		freqBuf: make([]complex128, bins),
		re:      make([]float64, bins),
		im:      make([]float64, bins),
	}
	return ws, fourier.NewFFT(size), nil
}

// Size returns the transform length.
func (p *Plan) Size() int { return p.size }

// Bins returns the number of spectrum bins, Size()/2+1.
func (p *Plan) Bins() int { return p.bins }

// Destroy releases the plan's buffers. It waits for an in-flight transform,
// is safe on a nil or already destroyed plan and never fails.
func (p *Plan) Destroy() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.prim = nil
	p.workspace = planWorkspace{}
	planLog.Debugf("destroyed plan (size %d)", p.size)
}

// Destroyed reports whether Destroy has been called.
func (p *Plan) Destroyed() bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// Forward transforms size samples and writes the magnitude and phase of each
// of the size/2+1 bins. The forward pass is unscaled.
func (p *Plan) Forward(samples, magnitude, phase []float64) (err error) {
	const op = "fft.Forward"
	if p == nil {
		return errs.New(errs.IllegalState, op, "plan is nil")
	}
	if err := checkBuffer(op, "input", samples, p.size); err != nil {
		return err
	}
	if err := checkBuffer(op, "magnitude", magnitude, p.bins); err != nil {
		return err
	}
	if err := checkBuffer(op, "phase", phase, p.bins); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return errs.New(errs.IllegalState, op, "plan has been destroyed")
	}
	defer recoverTransform(op, &err)

	ws := &p.workspace
	copy(ws.timeBuf, samples)
	p.prim.Coefficients(ws.freqBuf, ws.timeBuf)

	for i, c := range ws.freqBuf {
		ws.re[i] = real(c)
		ws.im[i] = imag(c)
		phase[i] = math.Atan2(ws.im[i], ws.re[i])
	}
	vecmath.Magnitude(magnitude, ws.re, ws.im)
	return nil
}

// Spectrum transforms size samples and copies the size/2+1 complex bins into
// out. It is the path used when the bins feed the voice extractor directly.
func (p *Plan) Spectrum(samples []float64, out []complex128) (err error) {
	const op = "fft.Spectrum"
	if p == nil {
		return errs.New(errs.IllegalState, op, "plan is nil")
	}
	if err := checkBuffer(op, "input", samples, p.size); err != nil {
		return err
	}
	if out == nil {
		return errs.New(errs.InvalidArgument, op, "spectrum buffer cannot be nil")
	}
	if len(out) != p.bins {
		return errs.New(errs.InvalidArgument, op, "spectrum buffer size must be %d, got %d", p.bins, len(out))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return errs.New(errs.IllegalState, op, "plan has been destroyed")
	}
	defer recoverTransform(op, &err)

	copy(p.workspace.timeBuf, samples)
	p.prim.Coefficients(p.workspace.freqBuf, p.workspace.timeBuf)
	copy(out, p.workspace.freqBuf)
	return nil
}

// Inverse rebuilds the bins as magnitude·(cos φ + i·sin φ), runs the inverse
// transform and writes size samples scaled by 1/size, so that Forward
// followed by Inverse reproduces the input.
func (p *Plan) Inverse(magnitude, phase, out []float64) (err error) {
	const op = "fft.Inverse"
	if p == nil {
		return errs.New(errs.IllegalState, op, "plan is nil")
	}
	if err := checkBuffer(op, "magnitude", magnitude, p.bins); err != nil {
		return err
	}
	if err := checkBuffer(op, "phase", phase, p.bins); err != nil {
		return err
	}
	if err := checkBuffer(op, "output", out, p.size); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return errs.New(errs.IllegalState, op, "plan has been destroyed")
	}
	defer recoverTransform(op, &err)

	ws := &p.workspace
	for i := range ws.freqBuf {
		sin, cos := math.Sincos(phase[i])
		ws.freqBuf[i] = complex(magnitude[i]*cos, magnitude[i]*sin)
	}
	p.prim.Sequence(ws.timeBuf, ws.freqBuf)

	for i, v := range ws.timeBuf {
		out[i] = v * p.scale
	}
	return nil
}

// checkBuffer validates a caller buffer before any plan state is touched.
func checkBuffer(op, name string, buf []float64, want int) error {
	if buf == nil {
		return errs.New(errs.InvalidArgument, op, "%s buffer cannot be nil", name)
	}
	if len(buf) != want {
		return errs.New(errs.InvalidArgument, op, "%s buffer size must be %d, got %d", name, want, len(buf))
	}
	return nil
}

// recoverTransform turns a panic raised by the primitive into a transform
// failure for this call only. The deferred unlock still runs.
func recoverTransform(op string, err *error) {
	if r := recover(); r != nil {
		planLog.Errorf("%s: primitive panicked: %v", op, r)
		*err = errs.Wrap(errs.TransformFailure, op, fmt.Errorf("%v", r), "transform primitive failed")
	}
}
