package version

// Version is set at build time, e.g.
// go build -ldflags "-X github.com/shishobooks/extrasync/pkg/version.Version=1.0.0" ./cmd/extrasd
var Version = "dev"
