package mutate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustertools/certauth/internal/backup"
	"github.com/clustertools/certauth/internal/directive"
	"github.com/clustertools/certauth/internal/runner"
)

func testEngine() *Engine {
	e := NewEngine(logr.Discard())
	ts, _ := time.Parse("20060102_150405", "20260115_093000")
	e.Backups = &backup.Store{Now: func() time.Time { return ts }}
	return e
}

func testDirectiveAt(dir string) directive.Directive {
	return directive.Directive{
		Name:   "test",
		Role:   directive.RoleLDAPClient,
		Path:   filepath.Join(dir, "a.conf"),
		Marker: "# added by certauthctl: test",
		Line:   "bar=external",
	}
}

func TestApplyAppendsBlock(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	require.NoError(t, os.WriteFile(d.Path, []byte("foo=1\n"), 0o644))

	e := testEngine()
	res := e.Apply(context.Background(), runner.NewLocal(), d, "")

	require.NoError(t, res.Err)
	assert.Equal(t, Applied, res.Outcome)
	assert.Equal(t, d.Path, res.RealPath)
	assert.Equal(t, d.Path+".backup.20260115_093000", res.BackupPath)

	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, "foo=1\n\n# added by certauthctl: test\nbar=external\n", string(data))

	pristine, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "foo=1\n", string(pristine))
}

func TestApplyIdempotent(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	require.NoError(t, os.WriteFile(d.Path, []byte("foo=1\n"), 0o644))

	e := testEngine()
	ctx := context.Background()
	first := e.Apply(ctx, runner.NewLocal(), d, "")
	require.Equal(t, Applied, first.Outcome)

	afterFirst, err := os.ReadFile(d.Path)
	require.NoError(t, err)

	second := e.Apply(ctx, runner.NewLocal(), d, "")
	assert.Equal(t, AlreadyPresent, second.Outcome)
	assert.Equal(t, directive.Ours, second.Classification)

	afterSecond, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, afterFirst, afterSecond, "second apply must be byte-identical")

	backups, err := filepath.Glob(d.Path + ".backup.*")
	require.NoError(t, err)
	assert.Len(t, backups, 1, "repeated applies must not create a second backup")
}

func TestApplyForeignDirectiveUntouched(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	original := []byte("foo=1\nbar=external\n")
	require.NoError(t, os.WriteFile(d.Path, original, 0o644))

	e := testEngine()
	res := e.Apply(context.Background(), runner.NewLocal(), d, "")

	assert.Equal(t, AlreadyPresent, res.Outcome)
	assert.Equal(t, directive.Foreign, res.Classification)

	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, original, data)

	backups, err := filepath.Glob(d.Path + ".backup.*")
	require.NoError(t, err)
	assert.Empty(t, backups, "a foreign directive must not trigger a backup")
}

func TestApplyMissingFile(t *testing.T) {
	d := testDirectiveAt(t.TempDir())

	e := testEngine()
	res := e.Apply(context.Background(), runner.NewLocal(), d, "")
	assert.Equal(t, SkippedMissingFile, res.Outcome)
	assert.NoError(t, res.Err)
}

func TestApplyMissingTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	require.NoError(t, os.WriteFile(d.Path, []byte("foo=1"), 0o644))

	e := testEngine()
	res := e.Apply(context.Background(), runner.NewLocal(), d, "")
	require.Equal(t, Applied, res.Outcome)

	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, "foo=1\n\n# added by certauthctl: test\nbar=external\n", string(data))
}

func TestApplyEmptyFile(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	require.NoError(t, os.WriteFile(d.Path, nil, 0o644))

	e := testEngine()
	res := e.Apply(context.Background(), runner.NewLocal(), d, "")
	require.Equal(t, Applied, res.Outcome)

	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, "\n# added by certauthctl: test\nbar=external\n", string(data))
}

func TestApplyThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.conf")
	require.NoError(t, os.WriteFile(real, []byte("foo=1\n"), 0o644))
	d := testDirectiveAt(dir)
	require.NoError(t, os.Symlink(real, d.Path))

	e := testEngine()
	res := e.Apply(context.Background(), runner.NewLocal(), d, "")
	require.Equal(t, Applied, res.Outcome)
	assert.Equal(t, real, res.RealPath)

	// the edit and the backup both land on the link target
	data, err := os.ReadFile(real)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bar=external")

	backups, err := filepath.Glob(real + ".backup.*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestApplyInImageRoot(t *testing.T) {
	imageRoot := t.TempDir()
	etc := filepath.Join(imageRoot, "etc")
	require.NoError(t, os.MkdirAll(etc, 0o755))
	real := filepath.Join(etc, "y.conf")
	require.NoError(t, os.WriteFile(real, []byte("foo=1\n"), 0o644))
	require.NoError(t, os.Symlink("/etc/y.conf", filepath.Join(etc, "x.conf")))

	d := directive.Directive{
		Name:   "test",
		Path:   "/etc/x.conf",
		Marker: "# added by certauthctl: test",
		Line:   "bar=external",
	}

	e := testEngine()
	res := e.Apply(context.Background(), runner.NewLocal(), d, imageRoot)
	require.NoError(t, res.Err)
	require.Equal(t, Applied, res.Outcome)
	assert.Equal(t, real, res.RealPath, "absolute link target must re-root onto the image")

	data, err := os.ReadFile(real)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bar=external")
}

func TestPlanDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	require.NoError(t, os.WriteFile(d.Path, []byte("foo=1\n"), 0o644))

	e := testEngine()
	res := e.Plan(context.Background(), runner.NewLocal(), d, "")
	assert.Equal(t, Applied, res.Outcome)

	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, "foo=1\n", string(data))

	backups, err := filepath.Glob(d.Path + ".backup.*")
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestRevertRestoresFromBackup(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	original := []byte("foo=1\n")
	require.NoError(t, os.WriteFile(d.Path, original, 0o644))

	e := testEngine()
	ctx := context.Background()
	applied := e.Apply(ctx, runner.NewLocal(), d, "")
	require.Equal(t, Applied, applied.Outcome)

	rev := e.Revert(ctx, runner.NewLocal(), d, "")
	require.NoError(t, rev.Err)
	assert.Equal(t, Restored, rev.Outcome)
	assert.Equal(t, applied.BackupPath, rev.BackupPath)

	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, original, data, "restore must be byte-exact")
}

func TestRevertStripsWithoutBackup(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	content := "foo=1\n\n# added by certauthctl: test\nbar=external\n"
	require.NoError(t, os.WriteFile(d.Path, []byte(content), 0o644))

	e := testEngine()
	rev := e.Revert(context.Background(), runner.NewLocal(), d, "")
	require.NoError(t, rev.Err)
	assert.Equal(t, Stripped, rev.Outcome)
	assert.Equal(t, d.Path+".pre-rollback.20260115_093000", rev.SafetyPath)

	// marker through directive removed; the blank line above survives
	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, "foo=1\n\n", string(data))

	snapshot, err := os.ReadFile(rev.SafetyPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(snapshot))
}

func TestRevertNothingToDo(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	require.NoError(t, os.WriteFile(d.Path, []byte("foo=1\n"), 0o644))

	e := testEngine()
	rev := e.Revert(context.Background(), runner.NewLocal(), d, "")
	assert.Equal(t, NoBackupNoMarker, rev.Outcome)
}

func TestRevertForeignLeftAlone(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	original := []byte("foo=1\nbar=external\n")
	require.NoError(t, os.WriteFile(d.Path, original, 0o644))

	e := testEngine()
	rev := e.Revert(context.Background(), runner.NewLocal(), d, "")
	assert.Equal(t, NoBackupNoMarker, rev.Outcome)

	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestRevertMissingFile(t *testing.T) {
	d := testDirectiveAt(t.TempDir())
	e := testEngine()
	rev := e.Revert(context.Background(), runner.NewLocal(), d, "")
	assert.Equal(t, NoBackupNoMarker, rev.Outcome)
}

func TestIsPristine(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		pristine bool
		cls      directive.Classification
	}{
		{"absent", "foo=1\n", true, directive.Absent},
		{"foreign", "bar=external\n", true, directive.Foreign},
		{"ours", "# added by certauthctl: test\nbar=external\n", false, directive.Ours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			d := testDirectiveAt(dir)
			require.NoError(t, os.WriteFile(d.Path, []byte(tt.content), 0o644))

			e := testEngine()
			pristine, cls, err := e.IsPristine(context.Background(), runner.NewLocal(), d, "")
			require.NoError(t, err)
			assert.Equal(t, tt.pristine, pristine)
			assert.Equal(t, tt.cls, cls)
		})
	}
}

func TestClassifyDistinguishesMissingFile(t *testing.T) {
	dir := t.TempDir()
	d := testDirectiveAt(dir)
	e := testEngine()

	// no file at all: absent, not found
	cls, real, found, err := e.Classify(context.Background(), runner.NewLocal(), d, "")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, directive.Absent, cls)
	assert.Equal(t, d.Path, real)

	// a file without the line: absent, found
	require.NoError(t, os.WriteFile(d.Path, []byte("foo=1\n"), 0o644))
	cls, _, found, err = e.Classify(context.Background(), runner.NewLocal(), d, "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, directive.Absent, cls)
}

func TestIsPristineMissingFile(t *testing.T) {
	d := testDirectiveAt(t.TempDir())
	e := testEngine()
	pristine, cls, err := e.IsPristine(context.Background(), runner.NewLocal(), d, "")
	require.NoError(t, err)
	assert.True(t, pristine)
	assert.Equal(t, directive.Absent, cls)
}

func TestStripBlockMarkerWithoutDirective(t *testing.T) {
	d := directive.Directive{Marker: "# m", Line: "k=v"}
	got := stripBlock([]byte("a\n# m\nb\n"), d)
	// directive never follows the marker: only the marker line goes
	assert.Equal(t, "a\nb\n", string(got))
}

func TestStripBlockSkipsInterveningLines(t *testing.T) {
	d := directive.Directive{Marker: "# m", Line: "k=v"}
	got := stripBlock([]byte("a\n# m\nnoise\nk=v\nz\n"), d)
	assert.Equal(t, "a\nz\n", string(got))
}
