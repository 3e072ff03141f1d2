// Package dispatch fans one notification out over several channels at once
// and settles every send before reporting. A channel failing, timing out, or
// being disabled never short-circuits the others; the caller receives every
// per-channel outcome and an aggregate success flag.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momtazchem/go-verify-backend/internal/channels"
)

const defaultSendTimeout = 15 * time.Second

// Job pairs one adapter with the message it should carry.
type Job struct {
	Adapter channels.Adapter
	Message channels.Message
}

// Result is the settled outcome of a fan-out.
type Result struct {
	// PerChannel maps adapter name to its outcome. Every submitted job has
	// an entry, including disabled and timed-out channels.
	PerChannel map[string]channels.Outcome

	// AnySuccess is true when at least one channel accepted the message.
	AnySuccess bool
}

// Sent reports whether the named channel succeeded.
func (r Result) Sent(channel string) bool {
	return r.PerChannel[channel].Success
}

// Coordinator runs fan-outs with a per-send timeout.
type Coordinator struct {
	timeout time.Duration
	log     zerolog.Logger
}

func New(timeout time.Duration, log zerolog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Coordinator{timeout: timeout, log: log}
}

// FanOut sends every job concurrently and waits for all of them to settle.
// Jobs with a disabled adapter settle immediately as failed outcomes. The
// parent ctx bounds the whole fan-out; each send additionally gets its own
// timeout so one slow provider cannot starve the rest of the parent budget.
func (c *Coordinator) FanOut(ctx context.Context, jobs []Job) Result {
	res := Result{PerChannel: make(map[string]channels.Outcome, len(jobs))}
	if len(jobs) == 0 {
		return res
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, job := range jobs {
		name := job.Adapter.Name()
		if !job.Adapter.Enabled() {
			res.PerChannel[name] = channels.Outcome{Error: "channel disabled"}
			sendsTotal.WithLabelValues(name, "disabled").Inc()
			continue
		}
		wg.Add(1)
		go func(job Job, name string) {
			defer wg.Done()
			out := c.send(ctx, job)
			mu.Lock()
			res.PerChannel[name] = out
			mu.Unlock()
		}(job, name)
	}
	wg.Wait()

	for _, out := range res.PerChannel {
		if out.Success {
			res.AnySuccess = true
			break
		}
	}
	if !res.AnySuccess {
		fanoutsAllFailed.Inc()
	}
	return res
}

func (c *Coordinator) send(ctx context.Context, job Job) (out channels.Outcome) {
	name := job.Adapter.Name()
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	// A panicking provider SDK must settle as a failed outcome, not take
	// the process down; these goroutines are outside gin's recovery.
	defer func() {
		if r := recover(); r != nil {
			sendsTotal.WithLabelValues(name, "failure").Inc()
			c.log.Error().
				Str("channel", name).
				Interface("panic", r).
				Msg("channel send panicked")
			out = channels.Outcome{Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	out = job.Adapter.Send(sendCtx, job.Message)
	elapsed := time.Since(start)

	sendDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if out.Success {
		sendsTotal.WithLabelValues(name, "success").Inc()
		c.log.Debug().
			Str("channel", name).
			Str("message_id", out.MessageID).
			Dur("elapsed", elapsed).
			Msg("channel send succeeded")
	} else {
		sendsTotal.WithLabelValues(name, "failure").Inc()
		c.log.Warn().
			Str("channel", name).
			Str("error", out.Error).
			Dur("elapsed", elapsed).
			Msg("channel send failed")
	}
	return out
}
