package main

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"syscall"
	"time"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/events"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
)

// pressedMirror receives debounced pressed-state changes.
type pressedMirror interface {
	SetPressed(name string, pressed bool, at time.Time) error
	IsConnected() bool
}

// mqttLink is the broker connection as seen by the status page.
type mqttLink interface {
	mqtt.ConnectionStatus
	Buffered() int
}

// readCounter counts failed line reads.
type readCounter interface {
	Errors() int
}

// statusSink receives a fresh snapshot whenever button state changes.
type statusSink interface {
	PublishStatus(snap status.Snapshot) error
}

// loop owns the bank and drives it from the poll ticker. Only run's
// goroutine touches the bank.
type loop struct {
	bank  *button.Bank
	clock button.Clock
	names []string

	publisher events.Publisher
	mqtt      mqttLink      // optional
	redis     pressedMirror // optional
	live      statusSink    // optional
	reads     readCounter   // optional
	tracker   *status.Tracker

	heartbeat time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// run polls on every tick until a signal arrives or ctx is done, then
// publishes SHUTDOWN.
func (l *loop) run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := l.now()
	pressed := l.bank.PressedSnapshot()
	latched := l.bank.LatchedSnapshot()
	l.tracker.Update(pressed, latched)

	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			l.logger.Info("shutting down", "signal", s)
			l.announce(l.now(), "SHUTDOWN", reason, true)
			return nil

		case <-ctx.Done():
			l.logger.Info("shutting down", "cause", context.Cause(ctx))
			l.announce(l.now(), "SHUTDOWN", "ERROR", true)
			return nil

		case <-tick:
			t := l.now()
			l.bank.Poll(l.clock)

			changed := l.publishReports(t)

			nowPressed := l.bank.PressedSnapshot()
			nowLatched := l.bank.LatchedSnapshot()
			if !slices.Equal(nowPressed, pressed) {
				l.mirrorPressed(t, pressed, nowPressed)
				changed = true
			}
			if !slices.Equal(nowLatched, latched) {
				changed = true
			}
			pressed, latched = nowPressed, nowLatched

			l.tracker.Update(pressed, latched)
			l.refreshLinks()

			if changed && l.live != nil {
				if err := l.live.PublishStatus(l.tracker.Snapshot()); err != nil {
					l.logger.Warn("status broadcast failed", "error", err)
				}
			}

			if l.heartbeat > 0 && t.Sub(lastHeartbeat) >= l.heartbeat {
				lastHeartbeat = t
				if net := readNetworkInfo(); net != nil {
					l.tracker.SetNetwork(net)
				}
				l.logger.Debug("heartbeat", "uptime", t.Sub(l.tracker.Snapshot().StartTime).Round(time.Second))
				l.announce(t, "HEARTBEAT", "", false)
			}
		}
	}
}

// publishReports drains the bank and publishes one event per report.
// It reports whether anything was drained.
func (l *loop) publishReports(t time.Time) bool {
	reports := l.bank.Collect()
	for _, r := range reports {
		e := events.FromReport(t, l.name(r.Index), r)
		l.logger.Info("button event",
			"button", e.Button,
			"event", e.Type,
			"duration_ms", e.DurationMs,
			"latched", e.Latched,
			"latch_changed", e.LatchChanged,
		)
		l.tracker.Record(e)
		if err := l.publisher.Publish(e); err != nil {
			l.logger.Warn("publish error", "button", e.Button, "error", err)
		}
	}
	return len(reports) > 0
}

func (l *loop) mirrorPressed(t time.Time, before, after []bool) {
	if l.redis == nil {
		return
	}
	for i := range after {
		if i < len(before) && before[i] == after[i] {
			continue
		}
		if err := l.redis.SetPressed(l.name(i), after[i], t); err != nil {
			l.logger.Debug("redis pressed update failed", "button", l.name(i), "error", err)
		}
	}
}

func (l *loop) refreshLinks() {
	if l.mqtt != nil {
		l.tracker.SetMQTTConnected(l.mqtt.IsConnected())
		l.tracker.SetMQTTBuffered(l.mqtt.Buffered())
	}
	if l.redis != nil {
		l.tracker.SetRedisConnected(l.redis.IsConnected())
	}
	if l.reads != nil {
		l.tracker.SetInputErrors(l.reads.Errors())
	}
}

// announce publishes a system event carrying a full status snapshot.
func (l *loop) announce(at time.Time, event, reason string, retained bool) {
	l.refreshLinks()
	snap := l.tracker.Snapshot()
	e := events.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := l.publisher.PublishSystem(e); err != nil {
		l.logger.Warn("system event publish failed", "event", event, "error", err)
		return
	}
	l.logger.Info("published system event", "event", event)
}

func (l *loop) name(index int) string {
	if index >= 0 && index < len(l.names) {
		return l.names[index]
	}
	return ""
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
