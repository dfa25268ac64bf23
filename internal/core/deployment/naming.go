package deployment

import (
	"fmt"
	"time"
)

// =============================================================================
// Bundle Naming Functions
// =============================================================================

// DirPrefix starts every bundle directory name.
const DirPrefix = "deployment_"

// DirName returns the name of a fresh bundle directory for the given time.
// When the timestamped name is taken, a numeric suffix is appended until
// exists reports a free name.
// Pattern: deployment_{YYYYMMDD_HHMMSS}[_{n}]
//
// Example:
//
//	DirName(t, func(string) bool { return false }) // returns "deployment_20260102_150405"
func DirName(now time.Time, exists func(name string) bool) string {
	base := DirPrefix + now.UTC().Format("20060102_150405")
	name := base
	for n := 1; exists(name); n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	return name
}

// ArchiveName returns the archive file name for a bundle directory.
// Pattern: {dirName}.tar.zst
func ArchiveName(dirName string) string {
	return dirName + ".tar.zst"
}

// ContainerName generates the runner container name for one lifecycle step.
// Pattern: autodeploy_{deploymentID}_{step}
//
// Example:
//
//	ContainerName("abc123", "plan") // returns "autodeploy_abc123_plan"
func ContainerName(deploymentID, step string) string {
	return fmt.Sprintf("autodeploy_%s_%s", deploymentID, step)
}
