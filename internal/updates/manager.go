// SPDX-License-Identifier: MPL-2.0

package updates

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/quillchat/quill/pkg/platform"
)

// subscriberBuffer is the capacity of each status notification channel. A
// subscriber that falls this far behind loses intermediate transitions, not
// the latest one it manages to read.
const subscriberBuffer = 16

var (
	// ErrCheckInFlight is returned when CheckForUpdates is called while a
	// previous check has not completed.
	ErrCheckInFlight = errors.New("update check already in flight")

	// ErrInstallInFlight is returned when InstallUpdates is called while a
	// previous install has not completed.
	ErrInstallInFlight = errors.New("update install already in flight")

	// ErrNoUpdateAvailable is returned when InstallUpdates is called while
	// the status is not update-available. Correct integrations gate the
	// install affordance on status, so hitting this is a programming error;
	// no network or filesystem work happens.
	ErrNoUpdateAvailable = errors.New("install requested but no update is available")
)

type (
	// VersionInfo is the version pair the state machine owns. OnlineVersion
	// is empty until a successful check; IsDowngrade is meaningful only when
	// the status is update-available.
	VersionInfo struct {
		CurrentVersion string
		OnlineVersion  string
		IsDowngrade    bool
	}

	// ManagerParams carries everything a Manager needs. One Manager exists
	// per process, constructed at the composition root and handed to
	// whichever surfaces need it.
	ManagerParams struct {
		CurrentVersion  string
		Identity        platform.Identity
		Feed            *Feed
		Strategy        InstallStrategy
		Disabled        bool          // config kill switch
		CheckTimeout    time.Duration // metadata fetch bound
		DownloadTimeout time.Duration // artifact fetch bound
		Logger          *log.Logger
	}

	// Manager is the update state machine: the single source of truth for
	// status, version strings, and artifact URLs. All transitions flow
	// through setStatusLocked; background completions are the only other
	// writers and they take the same path. Collaborators (feed, strategies)
	// never assign status themselves, they only return outcomes.
	Manager struct {
		mu          sync.Mutex
		status      Status
		version     VersionInfo
		artifacts   ArtifactLocations
		notes       string
		checking    bool
		installing  bool
		subscribers []chan Status

		identity        platform.Identity
		feed            *Feed
		strategy        InstallStrategy
		disabled        bool
		checkTimeout    time.Duration
		downloadTimeout time.Duration
		logger          *log.Logger
	}
)

// NewManager constructs the process-wide update manager in the idle state.
func NewManager(p ManagerParams) *Manager {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Manager{
		status:          StatusIdle,
		version:         VersionInfo{CurrentVersion: p.CurrentVersion},
		identity:        p.Identity,
		feed:            p.Feed,
		strategy:        p.Strategy,
		disabled:        p.Disabled,
		checkTimeout:    p.CheckTimeout,
		downloadTimeout: p.DownloadTimeout,
		logger:          logger,
	}
}

// Status returns the current lifecycle phase.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// VersionInfo returns the current/online version pair.
func (m *Manager) VersionInfo() VersionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Artifacts returns the last resolved artifact locations. They are only
// guaranteed meaningful right after a check that produced update-available,
// but deliberately survive a later failed check so a retry can still install
// against stale-but-correct URLs.
func (m *Manager) Artifacts() ArtifactLocations {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifacts
}

// Installing reports whether an install flow is currently running.
func (m *Manager) Installing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installing
}

// StrategyName identifies the install strategy selected for this platform.
func (m *Manager) StrategyName() string {
	return m.strategy.Name()
}

// InAppInstall reports whether installing downloads and launches an artifact
// in-process, as opposed to handing the user off to a browser page.
func (m *Manager) InAppInstall() bool {
	return m.strategy.InApp()
}

// ReleaseNotes returns the Markdown notes of the last fetched release, if
// the feed published any.
func (m *Manager) ReleaseNotes() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes
}

// Subscribe returns a channel that receives every status change. The UI
// consumes it from its own event loop; nothing received over it may be used
// to mutate the manager. Slow subscribers drop intermediate transitions.
func (m *Manager) Subscribe() <-chan Status {
	ch := make(chan Status, subscriberBuffer)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// DisabledReason returns a human-readable explanation when update checks are
// permanently off for this process, or "" when checking is allowed. The
// conditions are not retryable: they are properties of the build or the
// distribution channel.
func (m *Manager) DisabledReason() string {
	switch {
	case m.disabled:
		return "updates are disabled in the configuration"
	case m.identity.Nightly:
		return "nightly builds update through the CI artifact feed"
	case !m.identity.OSSupported():
		return "no release artifacts exist for this operating system"
	case m.identity.ChannelManaged():
		return "the " + string(m.identity.Sandbox) + " distribution channel manages updates"
	default:
		return ""
	}
}

// CheckForUpdates starts an asynchronous metadata check and returns
// immediately. When a permanent guard applies (nightly build, unsupported
// OS, managed channel, config kill switch) it returns nil without touching
// status and without any network call. A check already in flight yields
// ErrCheckInFlight. Exactly one terminal transition (update-available,
// no-update-available, or search-failed) follows per accepted invocation.
func (m *Manager) CheckForUpdates() error {
	if reason := m.DisabledReason(); reason != "" {
		m.logger.Debug("skipping update check", "reason", reason)
		return nil
	}

	m.mu.Lock()
	if m.checking {
		m.mu.Unlock()
		return ErrCheckInFlight
	}
	m.checking = true
	m.setStatusLocked(StatusSearching)
	m.mu.Unlock()

	go m.runCheck()
	return nil
}

// runCheck performs the metadata fetch and applies the one terminal
// transition for this check.
func (m *Manager) runCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), m.checkTimeout)
	defer cancel()

	meta, err := m.feed.Latest(ctx, m.identity)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checking = false

	if err != nil {
		// Malformed responses and unsupported-platform payloads are kept
		// distinct from plain network failures in the logs but collapse to
		// the same user-visible status.
		switch {
		case errors.Is(err, ErrMalformedResponse):
			m.logger.Error("release feed returned a malformed document", "err", err)
		case errors.Is(err, ErrUnsupportedPlatform):
			m.logger.Error("release feed has no assets for this platform", "os", m.identity.OS, "err", err)
		default:
			m.logger.Warn("update check failed", "err", err)
		}
		m.setStatusLocked(StatusSearchFailed)
		return
	}

	m.version.OnlineVersion = meta.TagName
	m.notes = meta.Notes

	if sameVersion(meta.TagName, m.version.CurrentVersion) {
		m.setStatusLocked(StatusNoUpdateAvailable)
		return
	}

	m.artifacts = meta.Artifacts

	downgrade, err := IsDowngrade(meta.TagName, m.version.CurrentVersion)
	if err != nil {
		// Unparseable versions fail open toward allowing the update.
		m.logger.Warn("could not compare versions", "online", meta.TagName,
			"current", m.version.CurrentVersion, "err", err)
	}
	m.version.IsDowngrade = downgrade

	m.setStatusLocked(StatusUpdateAvailable)
}

// InstallUpdates starts the asynchronous platform install flow and returns
// immediately. The status must be update-available; anything else is a
// gating bug in the caller and returns ErrNoUpdateAvailable before any I/O.
func (m *Manager) InstallUpdates() error {
	m.mu.Lock()

	if m.status != StatusUpdateAvailable {
		m.mu.Unlock()
		return ErrNoUpdateAvailable
	}
	if m.installing {
		m.mu.Unlock()
		return ErrInstallInFlight
	}

	m.installing = true
	art := m.artifacts
	if m.strategy.InApp() {
		m.setStatusLocked(StatusDownloading)
	}
	m.mu.Unlock()

	go m.runInstall(art)
	return nil
}

// runInstall drives the selected strategy and maps its classified outcome to
// the one resulting status. In-app strategies normally never return: they
// terminate the process after handing off to the installer or the companion
// updater.
func (m *Manager) runInstall(art ArtifactLocations) {
	ctx, cancel := context.WithTimeout(context.Background(), m.downloadTimeout)
	defer cancel()

	err := m.strategy.Install(ctx, art)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.installing = false

	if err == nil {
		// Manual strategies finish here with the update still available;
		// in-app strategies only reach this point in tests, where the exit
		// seam is a no-op.
		return
	}

	var (
		downloadErr *DownloadError
		writeErr    *WriteError
		launchErr   *LaunchError
	)
	switch {
	case errors.As(err, &downloadErr):
		m.logger.Error("update download failed", "strategy", m.strategy.Name(), "err", err)
		m.setStatusLocked(StatusDownloadFailed)
	case errors.As(err, &writeErr):
		m.logger.Error("could not persist update artifact", "strategy", m.strategy.Name(), "err", err)
		m.setStatusLocked(StatusWriteFileFailed)
	case errors.As(err, &launchErr):
		m.logger.Error("update artifact failed to launch", "strategy", m.strategy.Name(), "err", err)
		m.setStatusLocked(StatusLaunchFailed)
	default:
		m.logger.Error("update install failed", "strategy", m.strategy.Name(), "err", err)
		m.setStatusLocked(StatusDownloadFailed)
	}
}

// setStatusLocked applies a transition and publishes it to subscribers.
// Callers must hold m.mu. Publishing a no-change transition is suppressed so
// subscribers only wake for real state movement.
func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s

	for _, ch := range m.subscribers {
		select {
		case ch <- s:
		default:
			m.logger.Warn("dropping status notification for slow subscriber", "status", s)
		}
	}
}
