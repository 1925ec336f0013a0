// internal/engine/bootstrap.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/law-makers/tablecrawl/internal/auth"
	"github.com/law-makers/tablecrawl/internal/config"
	"github.com/law-makers/tablecrawl/internal/engine/dynamic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Step is a position in the first-time authentication procedure.
type Step string

const (
	StepIdle                      Step = "idle"
	StepAwaitingManualLogin       Step = "awaiting_manual_login"
	StepAwaitingQrVisible         Step = "awaiting_qr_visible"
	StepAwaitingLoginConfirmation Step = "awaiting_login_confirmation"
	StepDone                      Step = "done"
	StepFailed                    Step = "failed"
)

// Terminal reports whether no further signal is accepted.
func (s Step) Terminal() bool {
	return s == StepDone || s == StepFailed
}

// Prompt is the instruction shown to the operator while waiting in s.
func (s Step) Prompt() string {
	switch s {
	case StepIdle:
		return "Start authentication to open a browser window."
	case StepAwaitingManualLogin:
		return "Log in with your account in the browser window, then continue."
	case StepAwaitingQrVisible:
		return "Open the two-factor setup so the QR code is on screen, then continue."
	case StepAwaitingLoginConfirmation:
		return "Finish logging in with the displayed or device code, then continue to save the session."
	case StepDone:
		return "Session saved. Sheet extraction is ready."
	case StepFailed:
		return "Authentication failed. Start a new one to retry."
	}
	return ""
}

// BootstrapOptions configures the first-time authentication procedure.
type BootstrapOptions struct {
	LoginURL   string
	QRSelector string
	QRPath     string
	// Account names the keyring entry the OTP secret is stored under.
	Account string
	// StepTimeout bounds the browser work done inside one step.
	StepTimeout time.Duration
}

// BootstrapOptionsFromConfig maps application config onto bootstrap options.
func BootstrapOptionsFromConfig(cfg *config.Config) BootstrapOptions {
	return BootstrapOptions{
		LoginURL:    cfg.LoginURL,
		QRSelector:  cfg.QRSelector,
		QRPath:      cfg.QRCodePath,
		Account:     auth.DefaultAccount,
		StepTimeout: cfg.NavigationTimeout,
	}
}

// BootstrapStatus is a snapshot of a bootstrap for display.
type BootstrapStatus struct {
	Step        Step      `json:"step"`
	Prompt      string    `json:"prompt"`
	Code        string    `json:"code,omitempty"`
	CodeAt      time.Time `json:"code_at,omitempty"`
	Issuer      string    `json:"issuer,omitempty"`
	Account     string    `json:"account,omitempty"`
	QRPath      string    `json:"qr_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	SessionPath string    `json:"session_path,omitempty"`
	SecretStore string    `json:"secret_store,omitempty"`
}

// Bootstrap drives a visible browser through login, QR capture and session
// save. Each step waits for an explicit Advance call. A failed or finished
// bootstrap cannot be resumed.
type Bootstrap struct {
	store    *auth.Store
	launcher dynamic.Launcher
	opts     BootstrapOptions
	logger   zerolog.Logger

	// replaceable in tests
	checkDisplay func() error
	saveSecret   func(account, secret string) error
	now          func() time.Time

	op sync.Mutex

	mu          sync.Mutex
	step        Step
	err         error
	page        dynamic.Page
	cancelStep  context.CancelFunc
	key         *auth.OTPKey
	code        string
	codeAt      time.Time
	secretStore string
}

// NewBootstrap creates a bootstrap in StepIdle.
func NewBootstrap(store *auth.Store, launcher dynamic.Launcher, opts BootstrapOptions) *Bootstrap {
	if opts.LoginURL == "" {
		opts.LoginURL = config.DefaultLoginURL
	}
	if opts.QRSelector == "" {
		opts.QRSelector = config.DefaultQRSelector
	}
	if opts.QRPath == "" {
		opts.QRPath = config.DefaultQRCodePath
	}
	if opts.Account == "" {
		opts.Account = auth.DefaultAccount
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = config.DefaultNavigationTimeout
	}
	return &Bootstrap{
		store:        store,
		launcher:     launcher,
		opts:         opts,
		logger:       log.Logger.With().Str("component", "bootstrap").Logger(),
		checkDisplay: dynamic.CheckDisplay,
		saveSecret:   auth.SaveSecret,
		now:          time.Now,
		step:         StepIdle,
	}
}

// Step returns the current step.
func (b *Bootstrap) Step() Step {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.step
}

// Err returns the failure that moved the bootstrap to StepFailed.
func (b *Bootstrap) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Status returns a display snapshot.
func (b *Bootstrap) Status() BootstrapStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := BootstrapStatus{
		Step:        b.step,
		Prompt:      b.step.Prompt(),
		Code:        b.code,
		CodeAt:      b.codeAt,
		SecretStore: b.secretStore,
	}
	if b.key != nil {
		st.Issuer = b.key.Issuer
		st.Account = b.key.Account
		st.QRPath = b.opts.QRPath
	}
	if b.err != nil {
		st.Error = b.err.Error()
	}
	if b.step == StepDone {
		st.SessionPath = b.store.Path
	}
	return st
}

// Start opens the visible browser on the login page.
func (b *Bootstrap) Start(ctx context.Context) error {
	if !b.op.TryLock() {
		return NewEngineError(ErrCodeBootstrapState, "a step is already running", nil)
	}
	defer b.op.Unlock()

	if step := b.Step(); step != StepIdle {
		return NewEngineError(ErrCodeBootstrapState, fmt.Sprintf("cannot start from step %s", step), nil)
	}

	if err := b.checkDisplay(); err != nil {
		return b.fail(NewEngineError(ErrCodeBrowser, "cannot open a visible browser", err))
	}

	stepCtx, cancel := b.begin(ctx)
	defer cancel()

	page, err := b.launcher.Launch(stepCtx, dynamic.LaunchOptions{Headless: false})
	if err != nil {
		return b.fail(NewEngineError(ErrCodeBrowser, "failed to launch browser", err))
	}
	if err := b.adopt(page); err != nil {
		return err
	}

	b.logger.Info().Str("url", b.opts.LoginURL).Msg("Opening login page")
	if err := page.Navigate(stepCtx, b.opts.LoginURL); err != nil {
		if errors.Is(err, dynamic.ErrNavigationTimeout) || errors.Is(err, context.DeadlineExceeded) {
			// Login pages often keep long-lived connections open; the operator can proceed.
			b.logger.Warn().Err(err).Msg("Login page did not reach network idle")
		} else {
			return b.fail(NewEngineError(ErrCodeBrowser, "failed to open login page", err))
		}
	}

	return b.transition(StepAwaitingManualLogin, nil)
}

// Advance signals that the operator finished the current manual action.
func (b *Bootstrap) Advance(ctx context.Context) error {
	if !b.op.TryLock() {
		return NewEngineError(ErrCodeBootstrapState, "a step is already running", nil)
	}
	defer b.op.Unlock()

	switch step := b.Step(); step {
	case StepAwaitingManualLogin:
		return b.transition(StepAwaitingQrVisible, nil)
	case StepAwaitingQrVisible:
		return b.captureSecret(ctx)
	case StepAwaitingLoginConfirmation:
		return b.saveSession(ctx)
	case StepIdle:
		return NewEngineError(ErrCodeBootstrapState, "bootstrap has not been started", nil)
	default:
		return NewEngineError(ErrCodeBootstrapState, fmt.Sprintf("bootstrap is %s and cannot be resumed, start a new one", step), nil)
	}
}

// Abort closes the browser and marks the bootstrap failed. A step still
// running has its context cancelled and cannot move the bootstrap on.
func (b *Bootstrap) Abort() {
	b.fail(NewEngineError(ErrCodeBootstrapState, "aborted by operator", nil))
}

func (b *Bootstrap) captureSecret(ctx context.Context) error {
	stepCtx, cancel := b.begin(ctx)
	defer cancel()

	page, err := b.livePage()
	if err != nil {
		return err
	}

	shot, err := page.ScreenshotElement(stepCtx, b.opts.QRSelector)
	if err != nil {
		if errors.Is(err, dynamic.ErrElementNotFound) {
			return b.fail(NewEngineError(ErrCodeElementNotFound, "QR code element missing or hidden", err).
				WithDetail("selector", b.opts.QRSelector))
		}
		return b.fail(NewEngineError(ErrCodeBrowser, "failed to capture QR code", err))
	}

	if dir := filepath.Dir(b.opts.QRPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return b.fail(fmt.Errorf("create QR directory: %w", err))
		}
	}
	if err := os.WriteFile(b.opts.QRPath, shot, 0600); err != nil {
		return b.fail(fmt.Errorf("write QR image: %w", err))
	}
	b.logger.Info().Str("path", b.opts.QRPath).Int("bytes", len(shot)).Msg("QR code captured")

	payload, err := auth.DecodeQRFile(b.opts.QRPath)
	if err != nil {
		return b.fail(NewEngineError(ErrCodeDecode, "could not read a QR code from the image", err).
			WithDetail("path", b.opts.QRPath))
	}

	key, err := auth.ParseOTPURI(payload)
	if err != nil {
		if errors.Is(err, auth.ErrMissingSecret) {
			return b.fail(NewEngineError(ErrCodeMalformedSecret, "QR code carries no usable secret", err))
		}
		return b.fail(NewEngineError(ErrCodeDecode, "QR code is not a one-time password URI", err))
	}

	at := b.now()
	code, err := auth.CurrentCode(key.Secret, at)
	if err != nil {
		return b.fail(NewEngineError(ErrCodeMalformedSecret, "secret cannot derive a code", err))
	}

	saved := "keyring"
	if err := b.saveSecret(b.opts.Account, key.Secret); err != nil {
		saved = ""
		b.logger.Warn().Err(err).Msg("Could not store OTP secret, set " + auth.SecretEnvVar + " to reuse it")
	}

	err = b.transition(StepAwaitingLoginConfirmation, func() {
		b.key = key
		b.code = code
		b.codeAt = at
		b.secretStore = saved
	})
	if err != nil {
		return err
	}
	b.logger.Info().Str("issuer", key.Issuer).Msg("One-time password derived for cross-check")
	return nil
}

func (b *Bootstrap) saveSession(ctx context.Context) error {
	stepCtx, cancel := b.begin(ctx)
	defer cancel()

	page, err := b.livePage()
	if err != nil {
		return err
	}

	state, err := page.SessionState(stepCtx)
	if err != nil {
		return b.fail(NewEngineError(ErrCodeBrowser, "failed to read session state", err))
	}
	if len(state.Cookies) == 0 {
		b.logger.Warn().Msg("No cookies captured, login may not have completed")
	}
	// An abort that landed while the state was read must not be overridden.
	if step := b.Step(); step.Terminal() {
		return b.fail(NewEngineError(ErrCodeBootstrapState, fmt.Sprintf("bootstrap is %s", step), nil))
	}
	if err := b.store.Save(state); err != nil {
		return b.fail(err)
	}

	if err := b.transition(StepDone, nil); err != nil {
		return err
	}
	b.closePage()
	b.logger.Info().
		Str("path", b.store.Path).
		Int("cookies", len(state.Cookies)).
		Int("origins", len(state.Origins)).
		Msg("Session state saved")
	return nil
}

// CurrentCode recomputes the one-time password from the captured secret.
func (b *Bootstrap) CurrentCode() (string, int, error) {
	b.mu.Lock()
	key := b.key
	b.mu.Unlock()
	if key == nil {
		return "", 0, NewEngineError(ErrCodeBootstrapState, "no secret captured yet", nil)
	}
	at := b.now()
	code, err := auth.CurrentCode(key.Secret, at)
	if err != nil {
		return "", 0, err
	}
	return code, auth.SecondsRemaining(at, key.Period), nil
}

// begin derives the context of one step. Abort cancels it.
func (b *Bootstrap) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	stepCtx, cancel := context.WithTimeout(ctx, b.opts.StepTimeout)
	b.mu.Lock()
	b.cancelStep = cancel
	b.mu.Unlock()
	return stepCtx, func() {
		b.mu.Lock()
		b.cancelStep = nil
		b.mu.Unlock()
		cancel()
	}
}

// adopt records the launched browser unless the bootstrap ended meanwhile,
// in which case the browser is closed.
func (b *Bootstrap) adopt(page dynamic.Page) error {
	b.mu.Lock()
	if b.step.Terminal() {
		err := b.terminalErrLocked()
		b.mu.Unlock()
		if cerr := page.Close(); cerr != nil {
			b.logger.Debug().Err(cerr).Msg("Browser close reported an error")
		}
		return err
	}
	b.page = page
	b.mu.Unlock()
	return nil
}

func (b *Bootstrap) livePage() (dynamic.Page, error) {
	b.mu.Lock()
	page := b.page
	b.mu.Unlock()
	if page == nil {
		return nil, b.fail(NewEngineError(ErrCodeBootstrapState, "browser is no longer open", nil))
	}
	return page, nil
}

// transition moves to the next step and applies update under the same lock.
// A terminal bootstrap stays terminal.
func (b *Bootstrap) transition(to Step, update func()) error {
	b.mu.Lock()
	from := b.step
	if from.Terminal() {
		err := b.terminalErrLocked()
		b.mu.Unlock()
		return err
	}
	if update != nil {
		update()
	}
	b.step = to
	b.mu.Unlock()
	b.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("Bootstrap step")
	return nil
}

// fail moves to StepFailed, cancels a running step and closes the browser.
// The first failure is kept; later ones return it.
func (b *Bootstrap) fail(err error) error {
	b.mu.Lock()
	if b.step.Terminal() {
		prev := b.terminalErrLocked()
		b.mu.Unlock()
		return prev
	}
	b.step = StepFailed
	b.err = err
	cancel := b.cancelStep
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.closePage()
	b.logger.Error().Err(err).Msg("Bootstrap failed")
	return err
}

func (b *Bootstrap) terminalErrLocked() error {
	if b.err != nil {
		return b.err
	}
	return NewEngineError(ErrCodeBootstrapState, fmt.Sprintf("bootstrap is %s", b.step), nil)
}

func (b *Bootstrap) closePage() {
	b.mu.Lock()
	page := b.page
	b.page = nil
	b.mu.Unlock()
	if page != nil {
		if err := page.Close(); err != nil {
			b.logger.Debug().Err(err).Msg("Browser close reported an error")
		}
	}
}
