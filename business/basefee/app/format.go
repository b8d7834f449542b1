package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/internal/apperror"
)

// Panel titles.
const (
	TitleConnecting   = "Connecting"
	TitleListening    = "Listening"
	TitleReconnecting = "Reconnecting"
	TitleStale        = "No new blocks"
	TitleMalformed    = "Malformed header"
	TitleDisconnected = "Disconnected"
)

// BlockTitle is the panel title for a rendered header.
func BlockTitle(b *domain.Block) string {
	return fmt.Sprintf("Block #%s", groupDigits(b.Number))
}

// FormatSnapshot renders the block lines of the panel.
func FormatSnapshot(s domain.Snapshot) string {
	if s.Empty() {
		return ""
	}

	b := s.Block
	f := s.Forecast

	var sb strings.Builder
	fmt.Fprintf(&sb, "Block          #%s  %s\n", groupDigits(b.Number), b.Timestamp.UTC().Format(time.TimeOnly+" MST"))
	fmt.Fprintf(&sb, "Gas used       %s%% (%s / %s)\n",
		f.UtilizationPercent().StringFixed(0), groupDigits(b.GasUsed), groupDigits(b.GasLimit))
	fmt.Fprintf(&sb, "Base fee       %s gwei\n", domain.WeiToGwei(b.BaseFee).StringFixed(2))
	fmt.Fprintf(&sb, "Next base fee  %s gwei (%s%%)", f.NextBaseFeeGwei().StringFixed(2), signed(f.ChangePercent().StringFixed(2)))
	if f.ProtocolBaseFee != nil {
		fmt.Fprintf(&sb, "\nProtocol fee   %s gwei", domain.WeiToGwei(f.ProtocolBaseFee).StringFixed(4))
	}
	return sb.String()
}

// withSnapshot appends the last accepted header under a status line so the
// panel never goes blank.
func withSnapshot(status string, s domain.Snapshot) string {
	if s.Empty() {
		return status
	}
	return status + "\n\n" + FormatSnapshot(s)
}

func connectingText(ev domain.Event) string {
	if ev.Attempt > 0 {
		return fmt.Sprintf("Connecting to %s (attempt %d)...", ev.Endpoint, ev.Attempt)
	}
	return fmt.Sprintf("Connecting to %s...", ev.Endpoint)
}

func listeningText(ev domain.Event) string {
	return fmt.Sprintf("Listening for new blocks on %s...", ev.Endpoint)
}

func reconnectingText(ev domain.Event) string {
	var sb strings.Builder
	if ev.Reason != nil {
		fmt.Fprintf(&sb, "Connection lost: %s\n", apperror.Reason(ev.Reason))
	}
	fmt.Fprintf(&sb, "Reconnecting (attempt %d)", ev.Attempt)
	if ev.Delay > 0 {
		fmt.Fprintf(&sb, " in %s", ev.Delay)
	}
	sb.WriteString("...")
	return sb.String()
}

func staleText(window time.Duration) string {
	return fmt.Sprintf("No new blocks in %s, still listening...", window)
}

func malformedText(err error) string {
	return fmt.Sprintf("Skipped header: %s", apperror.Reason(err))
}

func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}

// groupDigits formats n with thousands separators.
func groupDigits(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}

	var sb strings.Builder
	head := len(s) % 3
	if head > 0 {
		sb.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
