package flows

import "context"

// Service is the centralized flow runner built once by the root client.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Call.Store != nil && s.deps.Renewal.Exchange != nil
}

func (s Service) Call(ctx context.Context, in CallInput, send func(context.Context, string) Attempt) CallResult {
	deps := s.deps.Call
	deps.Send = send
	return RunCall(ctx, in, deps)
}

func (s Service) Renew(ctx context.Context, refresh string) RenewalResult {
	return RunRenewal(ctx, refresh, s.deps.Renewal)
}

func (s Service) Login(ctx context.Context, identifier, password string, resolve func(context.Context) error) LoginResult {
	deps := s.deps.Login
	deps.Resolve = resolve
	return RunLogin(ctx, identifier, password, deps)
}

func (s Service) Resume(ctx context.Context, resolve func(context.Context) error) ResumeResult {
	deps := s.deps.Resume
	deps.Resolve = resolve
	return RunResume(ctx, deps)
}

func (s Service) Logout(ctx context.Context) LogoutResult {
	return RunLogout(ctx, s.deps.Logout)
}
