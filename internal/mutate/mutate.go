// Package mutate implements the idempotent configuration edit engine: apply
// a marker-tagged directive exactly once with a provenance-tracked backup,
// reverse it from backup or by heuristic strip, and report file state.
package mutate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/clustertools/certauth/internal/backup"
	"github.com/clustertools/certauth/internal/directive"
	"github.com/clustertools/certauth/internal/resolve"
	"github.com/clustertools/certauth/internal/runner"
)

// Outcome of one apply (or planned apply) for one directive on one target.
type Outcome string

const (
	// AlreadyPresent: the directive is in the file, ours or foreign. A
	// foreign identical line satisfies the goal and is never duplicated.
	AlreadyPresent Outcome = "already-present"
	// Applied: the edit was written (or, in a plan, would be written).
	Applied Outcome = "applied"
	// SkippedMissingFile: the resolved target file does not exist.
	SkippedMissingFile Outcome = "skipped-missing-file"
	// Failed: an I/O error during resolve, backup or write.
	Failed Outcome = "failed"
)

// RevertOutcome of one rollback for one directive on one target.
type RevertOutcome string

const (
	// Restored: backup content copied back verbatim. The only reversal
	// mode with a correctness guarantee.
	Restored RevertOutcome = "restored"
	// Stripped: no backup; the marker-delimited block was removed after
	// a safety copy. For directives that changed an existing
	// single-valued setting this leaves the setting unset, it cannot
	// recover the original value.
	Stripped RevertOutcome = "stripped"
	// NoBackupNoMarker: nothing to revert.
	NoBackupNoMarker RevertOutcome = "no-backup-no-marker"
	// RevertFailed: an I/O error during restore or strip.
	RevertFailed RevertOutcome = "failed"
)

// Result of applying (or planning) one directive on one target.
type Result struct {
	Outcome        Outcome
	RealPath       string
	BackupPath     string
	Classification directive.Classification
	Err            error
}

// RevertResult of reverting one directive on one target.
type RevertResult struct {
	Outcome    RevertOutcome
	RealPath   string
	BackupPath string
	SafetyPath string
	Err        error
}

// Engine applies and reverses directives through an execution target. All
// operations are independently idempotent, so re-running a partially failed
// batch is safe.
//
// There is no locking between concurrent invocations of the tool: two
// simultaneous runs can both observe an absent directive before either
// writes. Invocations are expected to be sequential.
type Engine struct {
	Log     logr.Logger
	Backups *backup.Store
}

// NewEngine returns an Engine logging through log.
func NewEngine(log logr.Logger) *Engine {
	return &Engine{Log: log, Backups: backup.NewStore()}
}

// resolveTarget maps the directive's nominal path to the real file on the
// target, joining it under imageRoot when editing a staged image tree.
func (e *Engine) resolveTarget(ctx context.Context, t runner.Target, d directive.Directive, imageRoot string) (string, error) {
	nominal := d.Path
	if imageRoot != "" {
		nominal = resolve.InImage(imageRoot, d.Path)
	}
	return resolve.Resolve(ctx, t, nominal, imageRoot)
}

// Apply ensures the directive is present in its file on the target. It is
// a no-op when the line is already there (ours or foreign), skips when the
// file is missing, and otherwise backs the file up once and appends a blank
// line, the marker comment and the directive line.
func (e *Engine) Apply(ctx context.Context, t runner.Target, d directive.Directive, imageRoot string) Result {
	return e.apply(ctx, t, d, imageRoot, true)
}

// Plan reports what Apply would do without writing anything. An Applied
// outcome means the edit is needed.
func (e *Engine) Plan(ctx context.Context, t runner.Target, d directive.Directive, imageRoot string) Result {
	return e.apply(ctx, t, d, imageRoot, false)
}

func (e *Engine) apply(ctx context.Context, t runner.Target, d directive.Directive, imageRoot string, write bool) Result {
	real, err := e.resolveTarget(ctx, t, d, imageRoot)
	if err != nil {
		return Result{Outcome: Failed, Err: err}
	}

	exists, err := t.FileExists(ctx, real)
	if err != nil {
		return Result{Outcome: Failed, RealPath: real, Err: err}
	}
	if !exists {
		if d.Optional {
			e.Log.V(1).Info("optional config absent, skipping", "path", real, "target", t.Name())
		} else {
			e.Log.Info("config file missing, skipping", "path", real, "target", t.Name(), "directive", d.Name)
		}
		return Result{Outcome: SkippedMissingFile, RealPath: real}
	}

	content, err := t.ReadFile(ctx, real)
	if err != nil {
		return Result{Outcome: Failed, RealPath: real, Err: err}
	}

	cls := directive.Classify(content, d)
	if cls == directive.Ours || cls == directive.Foreign {
		return Result{Outcome: AlreadyPresent, RealPath: real, Classification: cls}
	}

	if !write {
		return Result{Outcome: Applied, RealPath: real, Classification: cls}
	}

	backupPath, created, err := e.Backups.Ensure(ctx, t, real)
	if err != nil {
		return Result{Outcome: Failed, RealPath: real, Err: err}
	}
	if created {
		e.Log.V(1).Info("created backup", "path", backupPath, "target", t.Name())
	}

	if err := t.WriteFile(ctx, real, appendBlock(content, d), 0o644); err != nil {
		return Result{Outcome: Failed, RealPath: real, BackupPath: backupPath,
			Err: fmt.Errorf("failed to write %s on %s: %w", real, t.Name(), err)}
	}

	e.Log.Info("directive applied", "directive", d.Name, "path", real, "target", t.Name())
	return Result{Outcome: Applied, RealPath: real, BackupPath: backupPath, Classification: cls}
}

// Revert undoes a mutation. Restore from the pristine backup when one
// exists; otherwise strip the marker block after snapshotting current
// content; otherwise report that there is nothing to do.
func (e *Engine) Revert(ctx context.Context, t runner.Target, d directive.Directive, imageRoot string) RevertResult {
	real, err := e.resolveTarget(ctx, t, d, imageRoot)
	if err != nil {
		return RevertResult{Outcome: RevertFailed, Err: err}
	}

	backupPath, ok, err := e.Backups.Pristine(ctx, t, real)
	if err != nil {
		return RevertResult{Outcome: RevertFailed, RealPath: real, Err: err}
	}
	if ok {
		if err := t.CopyFile(ctx, backupPath, real); err != nil {
			return RevertResult{Outcome: RevertFailed, RealPath: real, BackupPath: backupPath,
				Err: fmt.Errorf("failed to restore %s on %s: %w", real, t.Name(), err)}
		}
		e.Log.Info("restored from backup", "path", real, "backup", backupPath, "target", t.Name())
		return RevertResult{Outcome: Restored, RealPath: real, BackupPath: backupPath}
	}

	exists, err := t.FileExists(ctx, real)
	if err != nil {
		return RevertResult{Outcome: RevertFailed, RealPath: real, Err: err}
	}
	if !exists {
		return RevertResult{Outcome: NoBackupNoMarker, RealPath: real}
	}

	content, err := t.ReadFile(ctx, real)
	if err != nil {
		return RevertResult{Outcome: RevertFailed, RealPath: real, Err: err}
	}
	if !directive.MarkerPresent(content, d) {
		return RevertResult{Outcome: NoBackupNoMarker, RealPath: real}
	}

	safetyPath, err := e.Backups.SafetyCopy(ctx, t, real)
	if err != nil {
		return RevertResult{Outcome: RevertFailed, RealPath: real, Err: err}
	}

	if err := t.WriteFile(ctx, real, stripBlock(content, d), 0o644); err != nil {
		return RevertResult{Outcome: RevertFailed, RealPath: real, SafetyPath: safetyPath,
			Err: fmt.Errorf("failed to strip %s on %s: %w", real, t.Name(), err)}
	}

	e.Log.Info("stripped marker block", "directive", d.Name, "path", real,
		"safetyCopy", safetyPath, "target", t.Name())
	return RevertResult{Outcome: Stripped, RealPath: real, SafetyPath: safetyPath}
}

// Classify reports the directive's provenance state in its file on the
// target. found is false when the resolved file does not exist; the
// classification is then absent, and callers that mirror Apply's
// missing-file handling report the skip instead of the classification.
func (e *Engine) Classify(ctx context.Context, t runner.Target, d directive.Directive, imageRoot string) (cls directive.Classification, realPath string, found bool, err error) {
	real, err := e.resolveTarget(ctx, t, d, imageRoot)
	if err != nil {
		return directive.Absent, "", false, err
	}
	exists, err := t.FileExists(ctx, real)
	if err != nil {
		return directive.Absent, real, false, err
	}
	if !exists {
		return directive.Absent, real, false, nil
	}
	content, err := t.ReadFile(ctx, real)
	if err != nil {
		return directive.Absent, real, true, err
	}
	return directive.Classify(content, d), real, true, nil
}

// IsPristine reports whether the file carries no engine-authored marker for
// the directive. Foreign is pristine: a directive the site had before this
// tool ever ran is not ours to account for.
func (e *Engine) IsPristine(ctx context.Context, t runner.Target, d directive.Directive, imageRoot string) (bool, directive.Classification, error) {
	cls, _, _, err := e.Classify(ctx, t, d, imageRoot)
	if err != nil {
		return false, cls, err
	}
	return cls == directive.Absent || cls == directive.Foreign, cls, nil
}

// appendBlock appends a blank line, the marker and the directive line,
// normalizing a missing trailing newline first.
func appendBlock(content []byte, d directive.Directive) []byte {
	var b strings.Builder
	b.Write(content)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(d.Marker)
	b.WriteByte('\n')
	b.WriteString(d.Line)
	b.WriteByte('\n')
	return []byte(b.String())
}

// stripBlock removes each marker line and everything through the following
// directive line. Intermediate structure is not modeled, so this is a
// heuristic; callers snapshot content first.
func stripBlock(content []byte, d directive.Directive) []byte {
	lines := strings.Split(string(content), "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != d.Marker {
			out = append(out, lines[i])
			continue
		}
		// drop through the directive line, or just the marker when the
		// directive is no longer beneath it
		j := i
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == d.Line {
				break
			}
		}
		if j < len(lines) {
			i = j
		}
	}
	return []byte(strings.Join(out, "\n"))
}
