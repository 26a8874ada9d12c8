// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProc exits with the configured code once its run time elapses, emitting
// the given streams.
type fakeProc struct {
	outR, errR *strings.Reader
	code       int
	exitAt     time.Time
	closed     bool
}

func newFakeProc(stdout, stderr string, code int, runFor time.Duration) *fakeProc {
	return &fakeProc{
		outR:   strings.NewReader(stdout),
		errR:   strings.NewReader(stderr),
		code:   code,
		exitAt: time.Now().Add(runFor),
	}
}

func (f *fakeProc) Stdout() io.Reader { return f.outR }
func (f *fakeProc) Stderr() io.Reader { return f.errR }

func (f *fakeProc) Poll(context.Context) (int, bool, error) {
	if time.Now().After(f.exitAt) {
		return f.code, true, nil
	}
	return 0, false, nil
}

func (f *fakeProc) Close() error {
	f.closed = true
	return nil
}

// signalRecorder records signal deliveries.
type signalRecorder struct {
	mu      sync.Mutex
	signals []string
}

func (r *signalRecorder) signal(_ context.Context, sig string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, sig)
	return nil
}

func (r *signalRecorder) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.signals...)
}

func TestRunCollectsOutput(t *testing.T) {
	t.Parallel()

	proc := newFakeProc("hello stdout", "hello stderr", 3, 0)
	res, err := Run(context.Background(), proc, 5*time.Second, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "hello stdout", string(res.Stdout))
	assert.Equal(t, "hello stderr", string(res.Stderr))
	assert.True(t, proc.closed)
}

func TestRunNoDeadline(t *testing.T) {
	t.Parallel()

	proc := newFakeProc("ok", "", 0, 200*time.Millisecond)
	res, err := Run(context.Background(), proc, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()

	rec := &signalRecorder{}
	proc := newFakeProc("partial", "", 0, time.Hour)
	res, err := Run(context.Background(), proc, 150*time.Millisecond, rec.signal)
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	assert.Equal(t, "partial", string(res.Stdout))
	assert.Equal(t, []string{"TERM", "KILL"}, rec.delivered())
}

func TestStreamForwardsChunksAndExitCode(t *testing.T) {
	t.Parallel()

	proc := newFakeProc("streamed output", "", 7, 0)
	var got []byte
	res, err := Stream(context.Background(), proc, 5*time.Second, nil, func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "streamed output", string(got))
}

func TestStreamClientGone(t *testing.T) {
	t.Parallel()

	rec := &signalRecorder{}
	proc := newFakeProc("some output", "", 0, time.Hour)
	_, err := Stream(context.Background(), proc, 0, rec.signal, func([]byte) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, ErrClientGone)
	assert.Equal(t, []string{"TERM", "KILL"}, rec.delivered())
}

func TestStreamTimeout(t *testing.T) {
	t.Parallel()

	rec := &signalRecorder{}
	// Stdout stays open past the deadline and the process never exits.
	blocked := &blockingProc{inner: &fakeProc{
		errR:   strings.NewReader(""),
		exitAt: time.Now().Add(time.Hour),
	}}

	res, err := Stream(context.Background(), blocked, 150*time.Millisecond, rec.signal, func([]byte) error {
		return nil
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	assert.Equal(t, []string{"TERM", "KILL"}, rec.delivered())
}

// blockingProc never delivers stdout EOF until closed.
type blockingProc struct {
	inner *fakeProc
	outR  blockingReader
}

func (b *blockingProc) Stdout() io.Reader { return &b.outR }
func (b *blockingProc) Stderr() io.Reader { return b.inner.errR }

func (b *blockingProc) Poll(ctx context.Context) (int, bool, error) { return b.inner.Poll(ctx) }
func (b *blockingProc) Close() error {
	b.outR.close()
	return b.inner.Close()
}

type blockingReader struct {
	once sync.Once
	ch   chan struct{}
}

func (r *blockingReader) Read([]byte) (int, error) {
	r.once.Do(func() { r.ch = make(chan struct{}) })
	<-r.ch
	return 0, io.EOF
}

func (r *blockingReader) close() {
	r.once.Do(func() { r.ch = make(chan struct{}) })
	select {
	case <-r.ch:
	default:
		close(r.ch)
	}
}

func TestTerminateNilKiller(t *testing.T) {
	t.Parallel()
	Terminate(context.Background(), nil, nil)
}

// termProc never exits on its own but dies as soon as it receives TERM.
type termProc struct {
	mu      sync.Mutex
	exited  bool
	signals []string
	outR    *strings.Reader
	errR    *strings.Reader
}

func newTermProc(stdout string) *termProc {
	return &termProc{
		outR: strings.NewReader(stdout),
		errR: strings.NewReader(""),
	}
}

func (p *termProc) Stdout() io.Reader { return p.outR }
func (p *termProc) Stderr() io.Reader { return p.errR }
func (p *termProc) Close() error      { return nil }

func (p *termProc) Poll(context.Context) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return 143, true, nil
	}
	return 0, false, nil
}

func (p *termProc) signal(_ context.Context, sig string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, sig)
	if sig == "TERM" {
		p.exited = true
	}
	return nil
}

func (p *termProc) delivered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.signals...)
}

func TestRunTimeoutReturnsOnceChildDies(t *testing.T) {
	t.Parallel()

	proc := newTermProc("partial")
	start := time.Now()
	res, err := Run(context.Background(), proc, 200*time.Millisecond, proc.signal)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	// The child dies on TERM, so the full kill grace is never charged and
	// no KILL escalation happens.
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, []string{"TERM"}, proc.delivered())
}

func TestStreamSingleDeadline(t *testing.T) {
	t.Parallel()

	// Stdout reaches EOF immediately but the process never exits: the
	// final exit wait must consume the remaining budget, not a fresh one.
	proc := newFakeProc("", "", 0, time.Hour)
	start := time.Now()
	res, err := Stream(context.Background(), proc, 400*time.Millisecond, nil, func([]byte) error {
		return nil
	})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	assert.Less(t, elapsed, 700*time.Millisecond)
}
