// SPDX-License-Identifier: MIT
//
// Package host is the boundary through which embedding code drives transform
// plans and voice processors. Objects are referenced by generation-checked
// handles, every argument is validated before any buffer is touched and
// failures come back as *errs.Error values carrying one of the four kinds.
package host

import (
	"voicefft/internal/errs"
	"voicefft/internal/fft"
	applog "voicefft/internal/log"
	"voicefft/internal/voice"
)

var hostLog = applog.Named("host")

// Host owns every plan and voice processor created through it. It is safe
// for concurrent use.
type Host struct {
	plans      table[*fft.Plan]
	processors table[*voice.Extractor]
}

// New returns an empty Host.
func New() *Host {
	return &Host{}
}

// CreatePlan allocates a transform plan of the given size.
func (h *Host) CreatePlan(size int) (Handle, error) {
	plan, err := fft.NewPlan(size)
	if err != nil {
		hostLog.Warnf("createPlan(%d) failed: %v", size, err)
		return NullHandle, boundaryError("host.CreatePlan", err)
	}
	hd := h.plans.insert(plan)
	hostLog.Debugf("created plan %s (size %d)", hd, size)
	return hd, nil
}

// DestroyPlan releases the plan behind hd. An invalid or already destroyed
// handle is logged and ignored. A transform running on the plan finishes
// before its buffers are released.
func (h *Host) DestroyPlan(hd Handle) {
	plan, ok := h.plans.remove(hd)
	if !ok {
		hostLog.Warnf("destroyPlan: invalid plan handle %s", hd)
		return
	}
	plan.Destroy()
	hostLog.Debugf("destroyed plan %s", hd)
}

// ForwardTransform fills magnitude and phase from samples using the plan
// behind hd.
func (h *Host) ForwardTransform(hd Handle, samples, magnitude, phase []float64) error {
	const op = "host.ForwardTransform"
	if err := requireBuffers(op, []namedBuffer{{"samples", samples}, {"magnitude", magnitude}, {"phase", phase}}); err != nil {
		return err
	}
	plan, err := h.plan(op, hd)
	if err != nil {
		return err
	}
	if err := plan.Forward(samples, magnitude, phase); err != nil {
		return boundaryError(op, err)
	}
	return nil
}

// InverseTransform reconstructs samples into out from magnitude and phase
// using the plan behind hd.
func (h *Host) InverseTransform(hd Handle, magnitude, phase, out []float64) error {
	const op = "host.InverseTransform"
	if err := requireBuffers(op, []namedBuffer{{"magnitude", magnitude}, {"phase", phase}, {"output", out}}); err != nil {
		return err
	}
	plan, err := h.plan(op, hd)
	if err != nil {
		return err
	}
	if err := plan.Inverse(magnitude, phase, out); err != nil {
		return boundaryError(op, err)
	}
	return nil
}

// PlanSize returns the transform length of the plan behind hd.
func (h *Host) PlanSize(hd Handle) (int, error) {
	plan, err := h.plan("host.PlanSize", hd)
	if err != nil {
		return 0, err
	}
	return plan.Size(), nil
}

// CreateVoiceProcessor creates a feature extractor for audio sampled at
// sampleRate Hz. Construction failures are reported as errs.IllegalState.
func (h *Host) CreateVoiceProcessor(sampleRate int) (Handle, error) {
	ex, err := voice.NewExtractor(sampleRate)
	if err != nil {
		hostLog.Warnf("createVoiceProcessor(%d) failed: %v", sampleRate, err)
		return NullHandle, errs.Wrap(errs.IllegalState, "host.CreateVoiceProcessor", err, "failed to create voice processor")
	}
	hd := h.processors.insert(ex)
	hostLog.Debugf("created voice processor %s (%d Hz)", hd, sampleRate)
	return hd, nil
}

// DestroyVoiceProcessor releases the processor behind hd. Invalid handles
// are logged and ignored.
func (h *Host) DestroyVoiceProcessor(hd Handle) {
	if _, ok := h.processors.remove(hd); !ok {
		hostLog.Warnf("destroyVoiceProcessor: invalid processor handle %s", hd)
		return
	}
	hostLog.Debugf("destroyed voice processor %s", hd)
}

// ProcessVoice analyzes raw interleaved (re, im) bytes with the processor
// behind hd. Malformed input yields the zero result; only an invalid handle
// is an error.
func (h *Host) ProcessVoice(hd Handle, raw []byte, numBands int) (voice.VoiceVariables, error) {
	ex, ok := h.processors.get(hd)
	if !ok {
		return voice.VoiceVariables{}, errs.New(errs.IllegalState, "host.ProcessVoice", "invalid voice processor handle %s", hd)
	}
	return ex.ProcessRawBytes(raw, numBands), nil
}

// Plans returns the number of live plans.
func (h *Host) Plans() int { return h.plans.len() }

// Processors returns the number of live voice processors.
func (h *Host) Processors() int { return h.processors.len() }

// Close destroys every remaining plan and processor. Handles issued before
// Close are invalid afterwards.
func (h *Host) Close() error {
	plans := h.plans.drain()
	for _, p := range plans {
		p.Destroy()
	}
	procs := h.processors.drain()
	if len(plans)+len(procs) > 0 {
		hostLog.Infof("released %d plans and %d voice processors", len(plans), len(procs))
	}
	return nil
}

func (h *Host) plan(op string, hd Handle) (*fft.Plan, error) {
	plan, ok := h.plans.get(hd)
	if !ok {
		return nil, errs.New(errs.IllegalState, op, "invalid plan handle %s", hd)
	}
	return plan, nil
}

type namedBuffer struct {
	name string
	buf  []float64
}

// requireBuffers rejects nil buffers before the handle is resolved.
func requireBuffers(op string, bufs []namedBuffer) error {
	for _, b := range bufs {
		if b.buf == nil {
			return errs.New(errs.InvalidArgument, op, "%s buffer cannot be nil", b.name)
		}
	}
	return nil
}

// boundaryError re-labels a component error with the boundary operation,
// keeping its kind and cause.
func boundaryError(op string, err error) error {
	kind := errs.KindOf(err)
	if kind == 0 {
		kind = errs.TransformFailure
	}
	return &errs.Error{Kind: kind, Op: op, Err: err}
}
