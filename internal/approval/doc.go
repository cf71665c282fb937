// Package approval implements the console side of pack approval: it renders a
// pack's pending offset changes as a table and asks the operator for a yes/no
// answer, or approves/previews without asking for --yes and --dry-run.
package approval
