// Package notify formats board reminders and reward announcements and
// delivers them to a Notifier.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"choreboard/internal/core"
	applog "choreboard/internal/log"
	"choreboard/internal/services"
)

// Notifier delivers a short HTML-formatted message to the household.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// LogNotifier writes messages to the log. Used when no chat is configured.
type LogNotifier struct {
	logger *applog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: applog.Wrap(logger, applog.ComponentNotify)}
}

func (n *LogNotifier) Notify(ctx context.Context, text string) error {
	n.logger.InfoContext(ctx, "Notification", applog.FieldOperation, applog.OpNotify, "text", text)
	return nil
}

// FormatReminder renders the weekly reminder.
func FormatReminder(r services.ReminderReport) string {
	var b strings.Builder
	b.WriteString("🔔 <b>Rappel des tâches</b>\n")

	if len(r.Idle) > 0 {
		names := make([]string, len(r.Idle))
		for i, c := range r.Idle {
			names[i] = html.EscapeString(c.Name)
		}
		fmt.Fprintf(&b, "\nPas encore de tâche cette semaine : %s\n", strings.Join(names, ", "))
	}

	for _, p := range r.Progress {
		if p.TotalChores == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s : %s", html.EscapeString(p.ChildName), plural(p.TotalChores, "tâche"))
		if !p.Earnings.IsZero() {
			fmt.Fprintf(&b, ", %s € gagnés", p.Earnings.String())
		}
		if p.NextTier != nil {
			fmt.Fprintf(&b, " (encore %s", plural(p.NextTier.ChoresNeeded, "tâche"))
			if p.NextTier.CategoriesNeeded > 0 {
				fmt.Fprintf(&b, " et %s", plural(p.NextTier.CategoriesNeeded, "catégorie"))
			}
			fmt.Fprintf(&b, " pour %s €)", p.NextTier.Cash.String())
		}
	}

	if r.HasActivity {
		b.WriteString("\n\nPensez à archiver la semaine.")
	}
	return b.String()
}

// FormatReward renders a tier-crossing announcement.
func FormatReward(r core.RewardEarned) string {
	return fmt.Sprintf("🎉 <b>%s</b> a gagné %s € cette semaine !", html.EscapeString(r.ChildName), r.Amount.String())
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// RewardForwarder returns a callback that announces rewards in the
// background so the mark request is not held up by the chat API.
func RewardForwarder(n Notifier, timeout time.Duration, logger *slog.Logger) func(core.RewardEarned) {
	log := applog.Wrap(logger, applog.ComponentNotify)
	return func(r core.RewardEarned) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := n.Notify(ctx, FormatReward(r)); err != nil {
				log.Warn("Failed to announce reward",
					applog.FieldChildID, r.ChildID,
					applog.FieldError, err)
			}
		}()
	}
}
