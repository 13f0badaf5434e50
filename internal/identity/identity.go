// Package identity produces per-session browser identities and the
// environment patches that suppress automation traces.
package identity

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Identity is the full set of observable browser attributes presented to the
// target site. Immutable once generated; one instance per session.
type Identity struct {
	UserAgent      string
	ChromeVersion  string
	Platform       string // navigator.platform value
	OSFragment     string // UA platform fragment, consistent with Platform
	AcceptLanguage string
	Locale         string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int
	WebGLVendor    string
	WebGLRenderer  string
	HardwareCores  int
	DeviceMemory   int
}

// profile ties together the attributes that fingerprinting scripts
// cross-check against each other. The single most detectable signal is a
// claimed user agent that disagrees with the engine actually driving the
// page, so the Chrome version here must track the bundled browser.
type profile struct {
	chromeVersion string
	platform      string
	osFragment    string
	webglVendor   string
	webglRenderer string
}

var profiles = []profile{
	{
		chromeVersion: "126.0.6478.127",
		platform:      "MacIntel",
		osFragment:    "Macintosh; Intel Mac OS X 10_15_7",
		webglVendor:   "Google Inc. (Apple)",
		webglRenderer: "ANGLE (Apple, Apple M2, OpenGL 4.1)",
	},
	{
		chromeVersion: "126.0.6478.127",
		platform:      "Win32",
		osFragment:    "Windows NT 10.0; Win64; x64",
		webglVendor:   "Google Inc. (NVIDIA)",
		webglRenderer: "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)",
	},
	{
		chromeVersion: "125.0.6422.142",
		platform:      "MacIntel",
		osFragment:    "Macintosh; Intel Mac OS X 10_15_7",
		webglVendor:   "Google Inc. (Apple)",
		webglRenderer: "ANGLE (Apple, Apple M1 Pro, OpenGL 4.1)",
	},
}

// viewports lists common desktop resolutions. Odd sizes are a fingerprinting
// signal of their own.
var viewports = [][2]int{
	{1440, 900},
	{1536, 960},
	{1680, 1050},
	{1920, 1080},
}

// Provider generates identities. Each call to Generate yields a fresh,
// internally consistent identity; identities are never reused across runs.
type Provider struct {
	rng *rand.Rand
}

// NewProvider creates a provider seeded from the wall clock.
func NewProvider() *Provider {
	return NewProviderWithSeed(time.Now().UnixNano())
}

// NewProviderWithSeed creates a deterministic provider, for tests.
func NewProviderWithSeed(seed int64) *Provider {
	return &Provider{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces one internally consistent identity.
func (p *Provider) Generate() Identity {
	prof := profiles[p.rng.Intn(len(profiles))]
	vp := viewports[p.rng.Intn(len(viewports))]
	cores := []int{8, 10, 12}[p.rng.Intn(3)]

	return Identity{
		UserAgent:      buildUserAgent(prof.osFragment, prof.chromeVersion),
		ChromeVersion:  prof.chromeVersion,
		Platform:       prof.platform,
		OSFragment:     prof.osFragment,
		AcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.8",
		Locale:         "zh-CN",
		Timezone:       "Asia/Shanghai",
		ViewportWidth:  vp[0],
		ViewportHeight: vp[1],
		WebGLVendor:    prof.webglVendor,
		WebGLRenderer:  prof.webglRenderer,
		HardwareCores:  cores,
		DeviceMemory:   8,
	}
}

// buildUserAgent derives the UA string from the profile so the claimed
// version can never drift from the rest of the identity.
func buildUserAgent(osFragment, chromeVersion string) string {
	return fmt.Sprintf(
		"Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
		osFragment, chromeVersion,
	)
}

// MajorVersion returns the Chrome major version ("126.0.6478.127" -> "126").
func (id Identity) MajorVersion() string {
	if i := strings.IndexByte(id.ChromeVersion, '.'); i > 0 {
		return id.ChromeVersion[:i]
	}
	return id.ChromeVersion
}
