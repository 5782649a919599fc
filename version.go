package director

// Version is the release of the engine. Overridden at build time with
// -ldflags "-X github.com/aretw0/director.Version=...".
var Version = "0.4.0-dev"
