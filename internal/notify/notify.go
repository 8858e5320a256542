package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brensch/camava/internal/providers"
)

// Notifier tells someone about campsites that just opened up at a facility.
type Notifier interface {
	Notify(ctx context.Context, facility string, sites []providers.AvailableCampsite) error
}

const (
	maxListed       = 15
	maxMessageRunes = 2000 // Discord message limit
)

// FormatMessage renders one bundled message for a facility. At most 15 sites
// are listed; the rest are summarised as a count.
func FormatMessage(facility string, sites []providers.AvailableCampsite) string {
	var b strings.Builder
	noun := "sites"
	if len(sites) == 1 {
		noun = "site"
	}
	fmt.Fprintf(&b, "🏕️ %d new %s open at %s\n", len(sites), noun, facility)
	for i, s := range sites {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", len(sites)-maxListed)
			break
		}
		fmt.Fprintf(&b, "• %s (%s) %s → %s", s.SiteName, s.Type, s.BookingDate.Format("Mon Jan 2"), s.BookingEndDate.Format("Mon Jan 2"))
		if s.Price > 0 {
			fmt.Fprintf(&b, ", $%.2f", s.Price)
		}
		b.WriteString("\n")
	}
	if len(sites) > 0 && sites[0].BookingURL != "" {
		fmt.Fprintf(&b, "Book: %s", sites[0].BookingURL)
	}
	out := strings.TrimRight(b.String(), "\n")
	if r := []rune(out); len(r) > maxMessageRunes {
		out = string(r[:maxMessageRunes-3]) + "..."
	}
	return out
}

// Log writes notifications to a logger. It is used when no Discord token is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, facility string, sites []providers.AvailableCampsite) error {
	l.logger.InfoContext(ctx, "new availability",
		slog.String("facility", facility),
		slog.Int("count", len(sites)),
		slog.String("message", FormatMessage(facility, sites)))
	return nil
}
