package tui

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/djinn/kashir/internal/domain"
)

// ProfileCardModel renders a resolved game profile.
type ProfileCardModel struct {
	profile domain.Profile
}

// NewProfileCardModel creates a card for p.
func NewProfileCardModel(p domain.Profile) ProfileCardModel {
	return ProfileCardModel{profile: p}
}

// Profile returns the displayed profile.
func (m ProfileCardModel) Profile() domain.Profile {
	return m.profile
}

// View renders the card.
func (m ProfileCardModel) View() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(" Player: %s\n", m.profile.DisplayName))
	sb.WriteString(fmt.Sprintf(" UUID:   %s\n", formatUUID(m.profile.ID)))
	skin := "default"
	if m.profile.HasSkin() {
		skin = m.profile.SkinURL
	}
	sb.WriteString(fmt.Sprintf(" Skin:   %s\n", skin))
	return sb.String()
}

// formatUUID renders the game's undashed ids in canonical form.
func formatUUID(id string) string {
	u, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return u.String()
}
