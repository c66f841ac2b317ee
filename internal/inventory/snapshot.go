package inventory

import (
	"strings"
	"time"
)

// Snapshot is the evaluated availability state of a single check.
// It is ephemeral; nothing persists it.
type Snapshot struct {
	Available     bool
	Denominations []Denomination
	Message       string
	CheckedAt     time.Time
	Err           bool
}

const (
	msgFetchFailed = "❌ Failed to fetch data from the store"
	msgOutOfStock  = "📭 No vouchers currently available"
)

// Evaluator turns a raw payload into a Snapshot with a user-facing message.
type Evaluator struct {
	productURL string
}

func NewEvaluator(productURL string) *Evaluator {
	return &Evaluator{productURL: productURL}
}

func (e *Evaluator) Evaluate(p Payload) Snapshot {
	denoms := denominationsFromPayload(p)
	now := time.Now()

	if len(denoms) == 0 {
		return Snapshot{
			Available: false,
			Message:   msgOutOfStock,
			CheckedAt: now,
		}
	}

	var b strings.Builder
	b.WriteString("🎉 *Vouchers Available!*\n\n")
	b.WriteString(formatDenominations(denoms))
	if e.productURL != "" {
		b.WriteString("\n\n🔗 [Buy Now](")
		b.WriteString(e.productURL)
		b.WriteString(")")
	}

	return Snapshot{
		Available:     true,
		Denominations: denoms,
		Message:       b.String(),
		CheckedAt:     now,
	}
}

// ErrorSnapshot is the snapshot used when the payload could not be fetched.
func (e *Evaluator) ErrorSnapshot() Snapshot {
	return Snapshot{
		Available: false,
		Message:   msgFetchFailed,
		CheckedAt: time.Now(),
		Err:       true,
	}
}

func formatDenominations(denoms []Denomination) string {
	if len(denoms) == 0 {
		return "No denominations available"
	}
	lines := make([]string, 0, len(denoms)+1)
	lines = append(lines, "*Available Denominations:*\n")
	for _, d := range denoms {
		line := "💰 ₹" + d.Value
		if d.Price != "" {
			line += " - Price: ₹" + d.Price
		}
		if d.Discount != "" {
			line += " (" + d.Discount + "% OFF)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
