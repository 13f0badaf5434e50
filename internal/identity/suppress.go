package identity

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed evasions.js
var evasionsTemplate string

// SuppressionScript renders the automation-trace suppression patches for
// this identity. The script is injected before any document script runs.
func (id Identity) SuppressionScript() string {
	langs := strings.Split(id.Locale+","+"zh", ",")
	quoted := make([]string, len(langs))
	for i, l := range langs {
		quoted[i] = fmt.Sprintf("%q", l)
	}

	r := strings.NewReplacer(
		"'__LANGUAGES__'", strings.Join(quoted, ", "),
		"__PLATFORM__", id.Platform,
		"__CORES__", fmt.Sprintf("%d", id.HardwareCores),
		"__MEMORY__", fmt.Sprintf("%d", id.DeviceMemory),
		"__WEBGL_VENDOR__", id.WebGLVendor,
		"__WEBGL_RENDERER__", id.WebGLRenderer,
	)
	return r.Replace(evasionsTemplate)
}

// Apply constructs the Chrome DevTools Protocol actions that make a page
// present this identity. Must run once on every new page, before navigation;
// mid-session changes are themselves a detection signal, so callers apply
// the same identity for the whole session.
func Apply(id Identity, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser identity",
		zap.String("user_agent", id.UserAgent),
		zap.String("platform", id.Platform),
	)

	return chromedp.Tasks{
		emulation.SetUserAgentOverride(id.UserAgent).
			WithAcceptLanguage(id.AcceptLanguage).
			WithPlatform(id.Platform),

		emulation.SetDeviceMetricsOverride(
			int64(id.ViewportWidth), int64(id.ViewportHeight), 1.0, false,
		),

		emulation.SetTimezoneOverride(id.Timezone),
		emulation.SetLocaleOverride().WithLocale(id.Locale),

		// AddScriptToEvaluateOnNewDocument returns two values, so it needs
		// an ActionFunc wrapper to fit the chromedp.Action interface.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(id.SuppressionScript()).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to inject suppression script: %w", err)
			}
			return nil
		}),

		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": id.AcceptLanguage,
		}),
	}
}
