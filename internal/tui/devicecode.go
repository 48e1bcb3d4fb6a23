package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/djinn/kashir/internal/domain"
)

// DeviceCodeModel is an immutable model for the device-code panel. It shows
// where to go, which code to type and how long the code stays valid.
type DeviceCodeModel struct {
	auth    domain.DeviceAuthorization
	started time.Time
	now     time.Time
}

// NewDeviceCodeModel creates the panel for auth, issued at started.
func NewDeviceCodeModel(auth domain.DeviceAuthorization, started time.Time) DeviceCodeModel {
	return DeviceCodeModel{auth: auth, started: started, now: started}
}

// Tick returns a new model observed at now.
func (m DeviceCodeModel) Tick(now time.Time) DeviceCodeModel {
	m.now = now
	return m
}

// Remaining returns how long the code stays valid, never negative.
func (m DeviceCodeModel) Remaining() time.Duration {
	left := time.Duration(m.auth.ExpiresIn)*time.Second - m.now.Sub(m.started)
	if left < 0 {
		return 0
	}
	return left.Truncate(time.Second)
}

// Authorization returns the device authorization shown by the panel.
func (m DeviceCodeModel) Authorization() domain.DeviceAuthorization {
	return m.auth
}

// View renders the panel.
func (m DeviceCodeModel) View() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(" Visit:  %s\n", m.auth.VerificationURI))
	sb.WriteString(fmt.Sprintf(" Code:   %s\n", m.auth.UserCode))
	if msg := strings.TrimSpace(m.auth.Message); msg != "" {
		sb.WriteString("\n " + msg + "\n")
	}
	if m.auth.ExpiresIn > 0 {
		sb.WriteString(fmt.Sprintf("\n Code expires in %s\n", formatRemaining(m.Remaining())))
	}
	return sb.String()
}

func formatRemaining(d time.Duration) string {
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
