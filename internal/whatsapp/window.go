package whatsapp

import "time"

// SessionWindow is how long after a customer's last inbound message free-form
// messages may be sent
const SessionWindow = 24 * time.Hour

// InSessionWindow reports whether now is within SessionWindow of lastInbound.
// A customer who never wrote in has no open window. Inbound times slightly ahead of
// now (provider clock skew) count as inside the window.
func InSessionWindow(lastInbound *time.Time, now time.Time) bool {
	if lastInbound == nil || lastInbound.IsZero() {
		return false
	}
	return now.Sub(*lastInbound) < SessionWindow
}
