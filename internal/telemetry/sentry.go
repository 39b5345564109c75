// Package telemetry provides privacy-compliant error tracking, disabled
// unless the user opts in.
package telemetry

import (
	"fmt"
	"log"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/logging"
	"github.com/TheCacophonyProject/Full-Noise/internal/privacy"
	"github.com/TheCacophonyProject/Full-Noise/internal/secrets"
)

// Default DSN used when the config does not override it.
const defaultSentryDSN = "https://b9269b6c0f8fae154df65be5a97e0435@o4509553065525248.ingest.de.sentry.io/4509553112186960"

// deferredMessage is a message captured before InitSentry ran. The queue
// drains once initialization succeeds; if telemetry stays disabled it is
// never sent.
type deferredMessage struct {
	Message   string
	Level     sentry.Level
	Component string
	Timestamp time.Time
}

var (
	sentryInitialized bool
	deferredMessages  []deferredMessage
	deferredMutex     sync.Mutex

	serviceLogger *slog.Logger
	loggerOnce    sync.Once
)

// getLogger returns the telemetry service logger.
func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logging.ForService("telemetry")
	})
	return serviceLogger
}

// InitSentry initializes the Sentry SDK with privacy-compliant settings.
// It does nothing unless telemetry has been explicitly enabled by the user.
func InitSentry(settings *conf.Settings) error {
	if !settings.Sentry.Enabled {
		log.Println("telemetry stays off unless sentry.enabled is set")
		return nil
	}

	// The configured DSN may reference an environment variable.
	dsn, err := secrets.ExpandString(settings.Sentry.DSN)
	if err != nil {
		return fmt.Errorf("resolving sentry dsn: %w", err)
	}
	if dsn == "" {
		dsn = defaultSentryDSN
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:        dsn,
		SampleRate: 1.0,
		Debug:      settings.Sentry.Debug,

		// Nothing that could identify the installation leaves the machine:
		// no hostname, no stack traces, and every outgoing event passes
		// through the scrubber first.
		AttachStacktrace: false,
		ServerName:       "",
		Environment:      "production",
		Release:          "fullnoise@" + settings.Version,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrubEvent(event)
		},
	})
	if err != nil {
		return fmt.Errorf("initializing sentry: %w", err)
	}

	configureGlobalScope(settings)

	// Route enhanced errors from the errors package through Sentry,
	// scrubbed with the full anonymizer rather than its built-in fallback
	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	deferredCount := drainDeferred()

	getLogger().Info("Sentry telemetry initialized",
		"system_id", settings.SystemID,
		"version", settings.Version,
		"deferred_messages", deferredCount,
	)

	return nil
}

// scrubEvent is the BeforeSend filter. It strips identifying fields and
// scrubs all message text out of an event before it is sent.
func scrubEvent(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	// The SDK fills device and runtime contexts on its own; drop those, and
	// any extra fields we did not put there ourselves.
	for _, key := range []string{"device", "os", "runtime"} {
		delete(event.Contexts, key)
	}
	for key := range event.Extra {
		if key != "error_type" && key != "component" {
			delete(event.Extra, key)
		}
	}
	delete(event.Tags, "server_name")
	delete(event.Tags, "hostname")

	return event
}

// configureGlobalScope attaches the anonymous system ID and coarse platform
// facts to every event.
func configureGlobalScope(settings *conf.Settings) {
	inContainer := conf.RunningInContainer()

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", settings.SystemID)
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("container", strconv.FormatBool(inContainer))

		scope.SetContext("application", map[string]any{
			"name":      "Full-Noise",
			"version":   settings.Version,
			"system_id": settings.SystemID,
		})
		scope.SetContext("platform", map[string]any{
			"os":           runtime.GOOS,
			"architecture": runtime.GOARCH,
			"container":    inContainer,
			"num_cpu":      runtime.NumCPU(),
			"go_version":   runtime.Version(),
		})
	})
}

// drainDeferred marks the package initialized and replays messages
// queued before startup, returning how many were replayed.
func drainDeferred() int {
	deferredMutex.Lock()
	sentryInitialized = true
	queued := deferredMessages
	deferredMessages = nil
	deferredMutex.Unlock()

	for _, msg := range queued {
		CaptureMessage(msg.Message, msg.Level, msg.Component)
	}

	return len(queued)
}

// CaptureError captures an error with component context. Events captured
// before initialization are silently dropped when telemetry stays disabled.
func CaptureError(err error, component string) {
	settings := conf.GetSettings()
	if settings == nil || !settings.Sentry.Enabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		errorTitle := generateErrorTitle(err, component)
		safe := privacy.WrapError(err)

		scope.SetTag("component", component)
		scope.SetTag("error_title", errorTitle)
		scope.SetContext("error", map[string]any{
			"type": fmt.Sprintf("%T", err),
		})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = safe.Error()
		event.Exception = []sentry.Exception{{
			Type:  errorTitle,
			Value: safe.Error(),
		}}
		sentry.CaptureEvent(event)
	})
}

// CaptureMessage captures an informational message. Messages sent before
// initialization are queued and delivered once Sentry comes up.
func CaptureMessage(message string, level sentry.Level, component string) {
	deferredMutex.Lock()
	if !sentryInitialized {
		deferredMessages = append(deferredMessages, deferredMessage{
			Message:   message,
			Level:     level,
			Component: component,
			Timestamp: time.Now(),
		})
		deferredMutex.Unlock()
		return
	}
	deferredMutex.Unlock()

	settings := conf.GetSettings()
	if settings == nil || !settings.Sentry.Enabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(privacy.ScrubMessage(message))
	})
}

// Flush waits for queued events to be delivered, bounded by the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// Runtime fault markers mapped to stable titles so faults group by kind
// rather than by message text. Checked in order; the nil pointer marker has
// to come before the invalid memory one because the runtime emits both in
// the same message.
var runtimeFaults = []struct {
	marker string
	title  string
}{
	{"nil pointer dereference", "Nil Pointer Dereference"},
	{"index out of range", "Index Out of Range"},
	{"slice bounds out of range", "Slice Bounds Out of Range"},
	{"integer divide by zero", "Integer Divide by Zero"},
	{"invalid memory address", "Invalid Memory Access"},
	{"send on closed channel", "Send on Closed Channel"},
	{"close of closed channel", "Close of Closed Channel"},
	{"concurrent map", "Concurrent Map Access"},
	{"interface conversion", "Interface Conversion Failed"},
}

// generateErrorTitle builds the Sentry issue title from the component and a
// condensed form of the error text.
func generateErrorTitle(err error, component string) string {
	title := parseErrorType(privacy.ScrubMessage(err.Error()))
	if component == "" || component == "unknown" {
		return title
	}
	return titleCaseComponent(component) + ": " + title
}

// parseErrorType condenses an error message into a short title. Known
// runtime faults get a fixed name, panic messages keep a clipped payload and
// anything else passes through truncated.
func parseErrorType(errMsg string) string {
	for _, fault := range runtimeFaults {
		if strings.Contains(errMsg, fault.marker) {
			return fault.title
		}
	}
	if panicMsg, ok := strings.CutPrefix(errMsg, "panic: "); ok {
		return "Panic: " + clip(panicMsg, 50)
	}
	return clip(errMsg, 60)
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// Abbreviations kept fully capitalized in error titles.
var titleAbbreviations = map[string]string{
	"api":  "API",
	"db":   "DB",
	"http": "HTTP",
}

// titleCaseComponent renders a component name for an error title:
// "datastore" becomes "Datastore", "visit_matcher" becomes "Visit Matcher".
func titleCaseComponent(component string) string {
	parts := strings.Split(component, "_")
	words := parts[:0]
	for _, word := range parts {
		switch {
		case word == "":
		case titleAbbreviations[word] != "":
			words = append(words, titleAbbreviations[word])
		default:
			runes := []rune(word)
			runes[0] = unicode.ToUpper(runes[0])
			words = append(words, string(runes))
		}
	}
	return strings.Join(words, " ")
}
