package common

// Version is the SDK release version, overridable at build time with
// -ldflags "-X github.com/nextdotid/sdk-go/common.Version=...".
var Version = "dev"
