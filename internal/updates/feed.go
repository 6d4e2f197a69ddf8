// SPDX-License-Identifier: MPL-2.0

package updates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/quillchat/quill/pkg/platform"
)

var (
	// ErrMalformedResponse indicates the feed document is missing the
	// top-level version tag or it is not a string.
	ErrMalformedResponse = errors.New("malformed release feed response")

	// ErrUnsupportedPlatform indicates the feed carries no usable asset set
	// for the current platform. Callers treat this exactly like a network
	// failure.
	ErrUnsupportedPlatform = errors.New("release feed has no assets for this platform")
)

type (
	// Fetcher is the generic network collaborator: fetch a URL, get bytes or
	// an error. Satisfied by *netfetch.Client.
	Fetcher interface {
		Fetch(ctx context.Context, url string) ([]byte, error)
	}

	// ArtifactLocations holds the platform-specific download URLs resolved
	// from release metadata, with optional SHA-256 digests when the feed
	// publishes them.
	ArtifactLocations struct {
		InstallerURL    string
		InstallerSHA256 string
		PortableURL     string
		PortableSHA256  string
	}

	// ReleaseMetadata is the parsed result of one feed fetch.
	ReleaseMetadata struct {
		TagName   string // raw feed tag, e.g. "v.2.1.0"
		Notes     string // optional Markdown release notes
		Artifacts ArtifactLocations
	}

	// Feed fetches and parses the release metadata endpoint. Stateless per
	// call; parsing is conditioned on the platform identity and fails closed.
	Feed struct {
		fetcher Fetcher
		feedURL string
		channel string // appended as a query parameter when non-empty
	}

	// feedAsset is the JSON wire format for one downloadable artifact.
	// URL is declared as any so a missing or non-string value can be told
	// apart from a present one.
	feedAsset struct {
		URL    any    `json:"url"`
		SHA256 string `json:"sha256"`
	}

	// feedDocument is the JSON wire format of the release feed.
	feedDocument struct {
		TagName  any    `json:"tag_name"`
		Notes    string `json:"notes"`
		Download struct {
			Installer feedAsset `json:"installer"`
			Portable  feedAsset `json:"portable"`
		} `json:"download"`
	}
)

// NewFeed creates a Feed reading from feedURL. The channel ("beta") selects
// the pre-release feed; empty or "stable" leaves the URL untouched.
func NewFeed(fetcher Fetcher, feedURL, channel string) *Feed {
	return &Feed{
		fetcher: fetcher,
		feedURL: feedURL,
		channel: channel,
	}
}

// Latest fetches the feed once and extracts the version tag plus the asset
// URLs the given platform needs. Missing or mistyped fields surface as
// ErrMalformedResponse (version tag) or ErrUnsupportedPlatform (asset set);
// the orchestrator collapses both into a failed search.
func (f *Feed) Latest(ctx context.Context, id platform.Identity) (*ReleaseMetadata, error) {
	reqURL, err := f.requestURL()
	if err != nil {
		return nil, fmt.Errorf("building feed URL: %w", err)
	}

	body, err := f.fetcher.Fetch(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("fetching release feed: %w", err)
	}

	var doc feedDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	tag, ok := doc.TagName.(string)
	if !ok || tag == "" {
		return nil, fmt.Errorf("%w: tag_name missing or not a string", ErrMalformedResponse)
	}

	meta := &ReleaseMetadata{
		TagName: tag,
		Notes:   doc.Notes,
	}

	// Platform-conditional asset extraction. Windows installs either the
	// GUI installer or, in portable mode, the portable archive, so both
	// URLs must be present. macOS hands the installer URL to the browser.
	// Linux has no in-app install flow and needs no asset at all.
	switch id.OS {
	case platform.Windows:
		installer, ok := assetURL(doc.Download.Installer)
		if !ok {
			return nil, fmt.Errorf("%w: download.installer.url", ErrUnsupportedPlatform)
		}
		portable, ok := assetURL(doc.Download.Portable)
		if !ok {
			return nil, fmt.Errorf("%w: download.portable.url", ErrUnsupportedPlatform)
		}
		meta.Artifacts.InstallerURL = installer
		meta.Artifacts.InstallerSHA256 = doc.Download.Installer.SHA256
		meta.Artifacts.PortableURL = portable
		meta.Artifacts.PortableSHA256 = doc.Download.Portable.SHA256
	case platform.Darwin:
		installer, ok := assetURL(doc.Download.Installer)
		if !ok {
			return nil, fmt.Errorf("%w: download.installer.url", ErrUnsupportedPlatform)
		}
		meta.Artifacts.InstallerURL = installer
		meta.Artifacts.InstallerSHA256 = doc.Download.Installer.SHA256
	default:
		// Manual-guide platforms carry no artifact requirements.
	}

	return meta, nil
}

// requestURL appends the channel selector to the configured feed URL.
func (f *Feed) requestURL() (string, error) {
	if f.channel == "" || f.channel == "stable" {
		return f.feedURL, nil
	}

	u, err := url.Parse(f.feedURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("channel", f.channel)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// assetURL extracts a non-empty string URL from a feed asset, reporting
// whether one was present. Anything else fails closed.
func assetURL(a feedAsset) (string, bool) {
	s, ok := a.URL.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
