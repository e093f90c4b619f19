package buildinfo

import "runtime"

// Set at build time with -ldflags "-X bff-service/internal/buildinfo.Version=...".
var (
	Version    = "v0.1.0"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

type Info struct {
	Service    string `json:"service"`
	Version    string `json:"version"`
	CommitHash string `json:"gitSha"`
	BuildTime  string `json:"buildTime"`
	GoVersion  string `json:"goVersion"`
}

func Get() Info {
	return Info{
		Service:    "bff-service",
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
	}
}
