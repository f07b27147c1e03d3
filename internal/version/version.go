package version

// Set at build time:
//
//	go build -ldflags "-X autocomplete/internal/version.Version=v0.3.0 -X autocomplete/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "none"
)

func String() string {
	if Commit == "" || Commit == "none" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
