package daemon

import (
	"context"
	"fmt"
	"time"

	"vodwatch/internal/logging"
	"vodwatch/internal/notifications"
	"vodwatch/internal/recording"
)

// announce publishes a started recording without blocking the caller.
func (d *Daemon) announce(info recording.SessionInfo) {
	d.publish(notifications.EventRecordingStarted, notifications.Payload{
		"channel": info.Channel,
		"file":    info.OutputPath,
	})
}

// notifyOutcome publishes a finished recording. Registered as an OnTerminal hook.
func (d *Daemon) notifyOutcome(o recording.Outcome) {
	if o.State == recording.StateFailed {
		detail := fmt.Sprintf("exit code %d", o.ExitCode)
		if o.Err != nil {
			detail = o.Err.Error()
		}
		d.publish(notifications.EventRecordingFailed, notifications.Payload{
			"channel": o.Channel,
			"error":   detail,
		})
		return
	}
	d.publish(notifications.EventRecordingFinished, notifications.Payload{
		"channel":  o.Channel,
		"state":    string(o.State),
		"duration": o.Duration.Round(time.Second).String(),
		"file":     o.OutputPath,
	})
}

func (d *Daemon) publish(event notifications.Event, payload notifications.Payload) {
	d.notifyMu.Lock()
	if d.notifyClosed {
		d.notifyMu.Unlock()
		d.logger.Debug("notification dropped after flush", logging.String("event", string(event)))
		return
	}
	d.notifyWG.Add(1)
	d.notifyMu.Unlock()
	go func() {
		defer d.notifyWG.Done()
		if err := d.notifier.Publish(context.Background(), event, payload); err != nil {
			logging.WarnWithContext(d.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "ntfy subscribers miss this update"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			)
		}
	}()
}

// FlushNotifications stops accepting notifications and waits for in-flight
// ones until ctx ends. Later publishes are dropped.
func (d *Daemon) FlushNotifications(ctx context.Context) {
	d.notifyMu.Lock()
	d.notifyClosed = true
	d.notifyMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.notifyWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
