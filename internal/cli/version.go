package cli

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/mekedron/fieldmap-cli/internal/domain"
)

const (
	devVersion     = "dev"
	develModule    = "(devel)"
	revisionKey    = "vcs.revision"
	modifiedKey    = "vcs.modified"
	shortRevLength = 12
)

var readBuildInfo = debug.ReadBuildInfo

// buildStamp identifies the running binary.
type buildStamp struct {
	Version string
	Mode    domain.Mode
}

func (b buildStamp) String() string {
	if b.Mode == "" {
		return b.Version
	}
	return fmt.Sprintf("%s (%s build)", b.Version, b.Mode)
}

// stampFor prefers the version injected at link time, then the module
// version, then the VCS revision recorded by the toolchain.
func stampFor(injected string, mode domain.Mode) buildStamp {
	stamp := buildStamp{Version: devVersion, Mode: mode}
	injected = strings.TrimSpace(injected)
	if injected != "" && injected != devVersion {
		stamp.Version = injected
		return stamp
	}
	if info, ok := readBuildInfo(); ok && info != nil {
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != develModule {
			stamp.Version = v
			return stamp
		}
		if rev := vcsRevision(info.Settings); rev != "" {
			stamp.Version = rev
			return stamp
		}
	}
	return stamp
}

func vcsRevision(settings []debug.BuildSetting) string {
	revision := ""
	dirty := false
	for _, setting := range settings {
		switch setting.Key {
		case revisionKey:
			revision = strings.TrimSpace(setting.Value)
		case modifiedKey:
			dirty = strings.EqualFold(strings.TrimSpace(setting.Value), "true")
		}
	}
	if revision == "" {
		return ""
	}
	if len(revision) > shortRevLength {
		revision = revision[:shortRevLength]
	}
	if dirty {
		revision += "-dirty"
	}
	return revision
}
