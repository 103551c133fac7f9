package handlers

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/theOGognf/finagg/internal/config"
)

// Build is the metadata stamped into the binary by ldflags.
type Build struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
}

var (
	buildMu sync.RWMutex
	build   = Build{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
)

// SetBuild records the binary's build metadata. Empty fields keep their
// defaults.
func SetBuild(b Build) {
	buildMu.Lock()
	defer buildMu.Unlock()
	if b.Version != "" {
		build.Version = b.Version
	}
	if b.Commit != "" {
		build.Commit = b.Commit
	}
	if b.BuildDate != "" {
		build.BuildDate = b.BuildDate
	}
}

// CurrentBuild returns the recorded build metadata.
func CurrentBuild() Build {
	buildMu.RLock()
	defer buildMu.RUnlock()
	return build
}

// VersionReport is served on /version and printed by `finagg version`.
type VersionReport struct {
	Name  string `json:"name" yaml:"name"`
	Build `yaml:",inline"`

	Go       string `json:"go_version" yaml:"go_version"`
	Platform string `json:"platform" yaml:"platform"`
	Gofulmen string `json:"gofulmen" yaml:"gofulmen"`
	Crucible string `json:"crucible" yaml:"crucible"`
}

// CurrentVersion assembles the version report.
func CurrentVersion() VersionReport {
	deps := crucible.GetVersion()
	return VersionReport{
		Name:     config.AppName,
		Build:    CurrentBuild(),
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Gofulmen: deps.Gofulmen,
		Crucible: deps.Crucible,
	}
}

// VersionHandler serves CurrentVersion as JSON.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrentVersion())
}
