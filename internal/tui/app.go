// Package tui is the interactive host: it walks the user through the device
// login while polling in the background, then shows the resolved profile.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/djinn/kashir/internal/domain"
)

// Service is the part of the session the TUI drives.
type Service interface {
	StartDeviceAuthorization(ctx context.Context) (domain.DeviceAuthorization, error)
	Login(ctx context.Context, da domain.DeviceAuthorization, timeout time.Duration) error
	ResolveProfile(ctx context.Context) (domain.Profile, error)
	IsAuthenticated() bool
	Logout() error
}

// DeviceCodeMsg carries the device authorization to show the user.
// It is exported so that tests can inject it directly into AppModel.Update.
type DeviceCodeMsg struct {
	Auth domain.DeviceAuthorization
	Err  error
}

// LoginCompleteMsg signals the end of a polling loop.
type LoginCompleteMsg struct {
	Err  error
	poll int
}

// ProfileLoadedMsg carries the result of the federation chain.
type ProfileLoadedMsg struct {
	Profile domain.Profile
	Err     error
}

// LoggedOutMsg signals that the stored secret was deleted.
type LoggedOutMsg struct {
	Err error
}

// tickMsg refreshes the expiry countdown while waiting.
type tickMsg time.Time

// viewState indicates the current screen.
type viewState int

const (
	viewRequesting viewState = iota
	viewWaiting
	viewResolving
	viewProfile
	viewError
)

// errLoginCancelled is shown when the user abandons the login screen.
var errLoginCancelled = errors.New("login cancelled")

// AppModel is the root Bubbletea model for kashir.
type AppModel struct {
	svc     Service
	timeout time.Duration
	view    viewState
	// Login state
	device DeviceCodeModel
	cancel context.CancelFunc
	poll   int // numbers each polling loop; older completions are dropped
	// Profile state
	card ProfileCardModel
	// General state
	err    error
	width  int
	height int
}

// NewAppModel creates the root model. timeout bounds the polling loop.
func NewAppModel(svc Service, timeout time.Duration) AppModel {
	view := viewRequesting
	if svc.IsAuthenticated() {
		view = viewResolving
	}
	return AppModel{svc: svc, timeout: timeout, view: view}
}

// Init starts with the profile when a secret is stored, else with a login.
func (m AppModel) Init() tea.Cmd {
	if m.view == viewResolving {
		return m.resolveProfile()
	}
	return m.requestDeviceCode()
}

// Profile returns the resolved profile, if any.
func (m AppModel) Profile() (domain.Profile, bool) {
	return m.card.Profile(), m.view == viewProfile
}

// Err returns the error on screen, if any.
func (m AppModel) Err() error {
	if m.view != viewError {
		return nil
	}
	return m.err
}

func (m AppModel) requestDeviceCode() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		da, err := m.svc.StartDeviceAuthorization(ctx)
		return DeviceCodeMsg{Auth: da, Err: err}
	}
}

func (m AppModel) pollLogin(ctx context.Context, da domain.DeviceAuthorization) tea.Cmd {
	poll := m.poll
	return func() tea.Msg {
		return LoginCompleteMsg{Err: m.svc.Login(ctx, da, m.timeout), poll: poll}
	}
}

func (m AppModel) resolveProfile() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		p, err := m.svc.ResolveProfile(ctx)
		return ProfileLoadedMsg{Profile: p, Err: err}
	}
}

func (m AppModel) logout() tea.Cmd {
	return func() tea.Msg {
		return LoggedOutMsg{Err: m.svc.Logout()}
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles all incoming messages and key events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case DeviceCodeMsg:
		if msg.Err != nil {
			return m.fail(fmt.Errorf("could not start sign-in: %w", msg.Err))
		}
		m.stopPolling()
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.poll++
		m.device = NewDeviceCodeModel(msg.Auth, time.Now())
		m.view = viewWaiting
		m.err = nil
		return m, tea.Batch(m.pollLogin(ctx, msg.Auth), tickEvery(time.Second))

	case tickMsg:
		if m.view != viewWaiting {
			return m, nil
		}
		m.device = m.device.Tick(time.Time(msg))
		return m, tickEvery(time.Second)

	case LoginCompleteMsg:
		if msg.poll != m.poll {
			return m, nil
		}
		m.stopPolling()
		if msg.Err != nil {
			if m.view != viewWaiting {
				// The user already left the login screen.
				return m, nil
			}
			return m.fail(fmt.Errorf("sign-in failed: %w", msg.Err))
		}
		m.view = viewResolving
		return m, m.resolveProfile()

	case ProfileLoadedMsg:
		if msg.Err != nil {
			return m.fail(msg.Err)
		}
		m.card = NewProfileCardModel(msg.Profile)
		m.view = viewProfile
		m.err = nil

	case LoggedOutMsg:
		if msg.Err != nil {
			return m.fail(fmt.Errorf("sign-out failed: %w", msg.Err))
		}
		m.card = ProfileCardModel{}
		m.view = viewRequesting
		return m, m.requestDeviceCode()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stopPolling()
			return m, tea.Quit
		}
		switch m.view {
		case viewWaiting:
			if msg.String() == "esc" {
				m.stopPolling()
				m.view = viewError
				m.err = errLoginCancelled
			}
		case viewProfile:
			switch msg.String() {
			case "ctrl+r":
				m.view = viewResolving
				return m, m.resolveProfile()
			case "l":
				return m, m.logout()
			}
		case viewError:
			if msg.String() == "ctrl+r" {
				return m.retry()
			}
		}
	}
	return m, nil
}

// retry restarts from the login when the error calls for a new sign-in,
// otherwise from the profile.
func (m AppModel) retry() (tea.Model, tea.Cmd) {
	prev := m.err
	m.err = nil
	if errors.Is(prev, errLoginCancelled) || domain.IsReauthRequired(prev) || !m.svc.IsAuthenticated() {
		m.view = viewRequesting
		return m, m.requestDeviceCode()
	}
	m.view = viewResolving
	return m, m.resolveProfile()
}

func (m AppModel) fail(err error) (tea.Model, tea.Cmd) {
	m.view = viewError
	m.err = err
	return m, nil
}

func (m *AppModel) stopPolling() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// View renders the full TUI.
func (m AppModel) View() string {
	header := " kashir | Minecraft account\n"
	separator := "────────────────────────────────────────────────────────────\n"

	switch m.view {
	case viewRequesting:
		return header + separator + "\n Requesting a sign-in code...\n\n" + separator + " q: quit\n"
	case viewWaiting:
		body := "\n Sign in with your Microsoft account.\n\n" + m.device.View() +
			"\n Waiting for authorization...\n\n"
		return header + separator + body + separator + " esc: cancel   q: quit\n"
	case viewResolving:
		return header + separator + "\n Loading profile...\n\n" + separator + " q: quit\n"
	case viewProfile:
		return header + separator + "\n" + m.card.View() + "\n" + separator +
			" ctrl+r: refresh   l: sign out   q: quit\n"
	default:
		return header + separator + "\n" + m.renderError() + "\n" + separator +
			" ctrl+r: retry   q: quit\n"
	}
}

func (m AppModel) renderError() string {
	switch {
	case errors.Is(m.err, domain.ErrMissingCredential):
		return " Not signed in.\n Press ctrl+r to sign in.\n"
	case errors.Is(m.err, domain.ErrNoEntitlement):
		return " This account does not own Minecraft.\n"
	case domain.IsReauthRequired(m.err):
		return fmt.Sprintf(" Error: %v\n Press ctrl+r to sign in again.\n", m.err)
	default:
		return fmt.Sprintf(" Error: %v\n", m.err)
	}
}

// Run starts the Bubbletea program and returns the resolved profile when the
// user quits from the profile screen.
func Run(svc Service, timeout time.Duration) (domain.Profile, error) {
	p := tea.NewProgram(NewAppModel(svc, timeout), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return domain.Profile{}, err
	}
	m := final.(AppModel)
	if profile, ok := m.Profile(); ok {
		return profile, nil
	}
	if err := m.Err(); err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{}, errLoginCancelled
}
