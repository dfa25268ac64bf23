// Package deployment provides pure functions for the deployment lifecycle.
//
// This package holds the deployment record, its status machine, and the
// values the orchestrator needs to drive Terraform: bundle directory names,
// the ordered lifecycle steps, variable arguments, the containerized runner
// spec, and the parsing of `terraform output -json`. All functions are pure
// (no I/O, no side effects).
//
// # Functions
//
//   - Record: New, Planned, Transition, Succeed, Fail
//   - Naming: DirName, ArchiveName
//   - Lifecycle: Steps
//   - Variables: MissingVariables, VarArgs, SensitiveEnv
//   - Runner: BuildRunnerPlan
//   - Outputs: ParseOutputs, AppURL
//
// # Usage
//
// The imperative shell (internal/shell/orchestrator) uses these values to
// run Terraform and record the result.
//
//	d := deployment.New(id, description, repoURL, dryRun, time.Now())
//	_ = d.Planned(plan, dir, bundle.Digest(), time.Now())
//	for _, step := range deployment.Steps(dryRun, args) {
//	    ...
//	}
package deployment
