package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"kestrel/internal/pipeline"
)

// Notifier turns published results into Telegram alerts. Only classes in
// the watch list trigger an alert, one per class per cooldown period.
// An empty watch list alerts on every class.
type Notifier struct {
	bot     *Bot
	watched map[string]bool
	logger  *log.Logger
}

var _ pipeline.ResultHandler = (*Notifier)(nil)

// NewNotifier creates a notifier for the given class labels.
func NewNotifier(bot *Bot, watchClasses []string, logger *log.Logger) *Notifier {
	watched := make(map[string]bool, len(watchClasses))
	for _, c := range watchClasses {
		c = strings.TrimSpace(strings.ToLower(c))
		if c != "" {
			watched[c] = true
		}
	}
	return &Notifier{bot: bot, watched: watched, logger: logger}
}

// OnResult sends an alert for each watched class present in the result.
func (n *Notifier) OnResult(res *pipeline.AggregatedResult) {
	if !n.bot.IsEnabled() || res.Count == 0 {
		return
	}

	// Collect the best record per watched class so one frame produces at
	// most one alert per class.
	best := make(map[string]pipeline.DetectionRecord)
	for _, rec := range res.Records() {
		label := strings.ToLower(rec.Label)
		if len(n.watched) > 0 && !n.watched[label] {
			continue
		}
		if prev, ok := best[label]; !ok || rec.Probability > prev.Probability {
			best[label] = rec
		}
	}
	if len(best) == 0 {
		return
	}

	frame := res.Annotated
	for label, rec := range best {
		msg := formatAlert(rec, res.Header.Timestamp)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := n.bot.SendAlert(ctx, label, msg, frame)
		cancel()
		if err != nil {
			if !strings.Contains(err.Error(), "cooldown") {
				n.logger.Printf("[Notifier] Error sending alert: %v", err)
			}
			continue
		}
		// Attach the frame only to the first delivered alert.
		frame = nil
	}
}

func formatAlert(rec pipeline.DetectionRecord, ts time.Time) string {
	zoneName, _ := ts.Zone()
	timestamp := fmt.Sprintf("%s %s", ts.Format("2 Jan 2006, 15:04:05"), zoneName)

	msg := fmt.Sprintf(
		"🚨 <b>Detection Alert!</b>\n\n"+
			"🎯 Detected: %s (%.0f%%)\n"+
			"🕐 Time: %s",
		rec.Label,
		rec.Probability*100,
		timestamp,
	)
	if rec.HasDepth() {
		msg += fmt.Sprintf("\n📏 Distance: %.1fm", rec.Depth)
	}
	return msg
}
