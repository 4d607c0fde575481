package goPortal

// Version is the release of this module, sent in the default User-Agent.
const Version = "0.3.0"
