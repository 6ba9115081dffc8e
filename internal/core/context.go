package core

import "context"

type contextKey string

const ctxKeyTrigger contextKey = "reload_trigger"

// Reload trigger reasons.
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerAPI      = "api"
)

// ReloadTrigger records what started a reload. It is logged and kept on the
// resulting snapshot.
type ReloadTrigger struct {
	Reason     string `json:"reason"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
}

// ContextWithTrigger attaches a reload trigger to ctx.
func ContextWithTrigger(ctx context.Context, t ReloadTrigger) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, t)
}

// TriggerFromContext returns the trigger on ctx. Reason is "unknown" if none
// was set.
func TriggerFromContext(ctx context.Context) ReloadTrigger {
	if t, ok := ctx.Value(ctxKeyTrigger).(ReloadTrigger); ok {
		return t
	}
	return ReloadTrigger{Reason: "unknown"}
}
