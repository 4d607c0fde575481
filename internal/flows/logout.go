package flows

import (
	"context"

	"github.com/MrEthical07/goPortal/credential"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Store credential.Store
	// Forget drops the in-memory session. It runs even when the store fails.
	Forget func()
	Warn   func(string, ...any)
}

// LogoutResult reports a store failure that was logged but not surfaced.
type LogoutResult struct {
	StoreErr error
}

// RunLogout clears the store and the in-memory session. It never fails.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	err := deps.Store.Clear(ctx)
	if err != nil && deps.Warn != nil {
		deps.Warn("goportal: credential clear on logout failed", "error", err)
	}
	if deps.Forget != nil {
		deps.Forget()
	}
	return LogoutResult{StoreErr: err}
}
