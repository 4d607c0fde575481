package flows

// Deps groups flow dependency sets. The root client builds this once and
// delegates its methods to the matching flow implementation.
type Deps struct {
	Call    CallDeps
	Renewal RenewalDeps
	Login   LoginDeps
	Resume  ResumeDeps
	Logout  LogoutDeps
}
