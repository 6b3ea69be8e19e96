package action

import (
	"context"
	"runtime"
)

// StatusName is the conventional name of the built-in status action.
const StatusName = "status"

// Status returns a factory for the built-in status action, which reports the
// service version and build along with the Go runtime version. Register it
// under StatusName.
func Status(version, build string) Factory {
	return func() Handler {
		return HandlerFunc(func(_ context.Context, _ map[string]any) (map[string]any, error) {
			body := map[string]any{
				"version": version,
				"go":      runtime.Version(),
			}
			if build != "" {
				body["build"] = build
			}
			return body, nil
		})
	}
}
