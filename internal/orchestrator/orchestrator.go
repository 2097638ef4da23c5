// Package orchestrator sequences a run: capability validation, head-node
// config mutation, software-image mutation, propagation to live compute
// nodes, the optional identity-broker config, the directory-server config,
// and service restarts. Stages are independent; a target's failure is
// recorded and the run moves on. Only the two named preconditions (cmsh
// present, sufficient privilege) abort a run.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/clustertools/certauth/internal/config"
	"github.com/clustertools/certauth/internal/directive"
	"github.com/clustertools/certauth/internal/mutate"
	"github.com/clustertools/certauth/internal/prereq"
	"github.com/clustertools/certauth/internal/runner"
	"github.com/clustertools/certauth/internal/topology"
)

// Stage names, in execution order.
const (
	StageCapability = "validate-capability"
	StageHeadNodes  = "head-node-configs"
	StageImages     = "software-images"
	StageLiveNodes  = "live-compute-nodes"
	StageIdentity   = "identity-broker"
	StageDirectory  = "directory-server"
	StageServices   = "service-restart"
	StageProbe      = "functional-probe"
)

// Orchestrator drives one run. The zero value is not usable; construct it
// with New and override the injection points in tests.
type Orchestrator struct {
	Run     config.Run
	Site    *config.Site
	Log     logr.Logger
	Obs     Observer
	Engine  *mutate.Engine
	Catalog []directive.Directive

	// Local executes on this head node.
	Local runner.Target

	// NewRemote opens an execution channel to another host.
	NewRemote func(host string) (runner.Target, error)

	// QueryTopology enumerates the cluster.
	QueryTopology func(ctx context.Context, t runner.Target, cmshBin string) (*topology.View, error)

	// CheckPrereqs verifies the hard preconditions.
	CheckPrereqs func(run config.Run, site *config.Site) (string, error)

	// Hostname identifies this head node in the device listing.
	Hostname func() (string, error)

	// OpTimeout bounds each per-target operation so one hung remote
	// command cannot stall the whole run.
	OpTimeout time.Duration

	remotes map[string]runner.Target
}

// remote returns the cached execution channel for a host, opening it on
// first use so every stage reuses one connection per host.
func (o *Orchestrator) remote(host string) (runner.Target, error) {
	if t, ok := o.remotes[host]; ok {
		return t, nil
	}
	t, err := o.NewRemote(host)
	if err != nil {
		return nil, err
	}
	if o.remotes == nil {
		o.remotes = make(map[string]runner.Target)
	}
	o.remotes[host] = t
	return t, nil
}

// closeRemotes releases every connection opened during a run.
func (o *Orchestrator) closeRemotes() {
	for host, t := range o.remotes {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				o.Log.V(1).Info("failed to close connection", "host", host, "error", err.Error())
			}
		}
	}
	o.remotes = nil
}

// New returns an Orchestrator wired to the real cluster.
func New(run config.Run, site *config.Site, log logr.Logger) *Orchestrator {
	o := &Orchestrator{
		Run:     run,
		Site:    site,
		Log:     log,
		Obs:     LogObserver{Log: log},
		Engine:  mutate.NewEngine(log),
		Catalog: directive.Catalog(rolePaths(site)),
		Local:   runner.NewLocal(),
		NewRemote: func(host string) (runner.Target, error) {
			key, err := os.ReadFile(site.SSH.KeyPath) // #nosec G304
			if err != nil {
				return nil, fmt.Errorf("failed to read ssh key: %w", err)
			}
			return runner.NewSSH(host, site.SSH.User, key)
		},
		QueryTopology: topology.Query,
		CheckPrereqs:  prereq.Check,
		Hostname:      os.Hostname,
		OpTimeout:     60 * time.Second,
	}
	return o
}

func rolePaths(site *config.Site) map[directive.Role]string {
	paths := make(map[directive.Role]string, len(site.Paths))
	for role, p := range site.Paths {
		paths[directive.Role(role)] = p
	}
	return paths
}

// Execute runs all stages for the configured mode and returns the
// aggregated summary. The returned error is non-nil only for the hard
// preconditions and topology enumeration; per-target failures land in the
// summary.
func (o *Orchestrator) Execute(ctx context.Context) (*Summary, error) {
	defer o.closeRemotes()

	sum := &Summary{Mode: o.Run.Mode}

	o.event(Event{Type: EventStageStarted, Stage: StageCapability})
	if _, err := o.CheckPrereqs(o.Run, o.Site); err != nil {
		return nil, err
	}

	view, err := o.QueryTopology(ctx, o.Local, o.Site.CmshBin)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate cluster topology: %w", err)
	}
	o.event(Event{Type: EventStageCompleted, Stage: StageCapability})

	self, err := o.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to determine local hostname: %w", err)
	}

	o.headNodeStage(ctx, view, self, sum)
	o.imageStage(ctx, view, sum)
	o.liveNodeStage(ctx, view, sum)
	o.identityStage(ctx, view, self, sum)
	o.directoryStage(ctx, view, self, sum)
	o.serviceStage(ctx, view, self, sum)
	o.probeStage(ctx, view, self, sum)

	return sum, nil
}

// headTargets yields an execution target per head node, the local one for
// this host. A head that cannot be reached is reported and skipped.
func (o *Orchestrator) headTargets(view *topology.View, self string, stage string, sum *Summary) []runner.Target {
	var targets []runner.Target
	for _, head := range view.HeadNodes() {
		if head.Hostname == self {
			targets = append(targets, o.Local)
			continue
		}
		remote, err := o.remote(head.Hostname)
		if err != nil {
			sum.add(Record{Stage: stage, Target: head.Hostname, Outcome: string(mutate.Failed), Err: err})
			o.event(Event{Type: EventTargetFailed, Stage: stage, Target: head.Hostname, Message: err.Error()})
			continue
		}
		targets = append(targets, remote)
	}
	return targets
}

func (o *Orchestrator) headNodeStage(ctx context.Context, view *topology.View, self string, sum *Summary) {
	ds := directive.ByRoles(o.Catalog, directive.RoleLDAPClient, directive.RoleNSLCD)
	o.event(Event{Type: EventStageStarted, Stage: StageHeadNodes})
	for _, t := range o.headTargets(view, self, StageHeadNodes, sum) {
		o.processTarget(ctx, StageHeadNodes, t, "", ds, sum)
	}
	o.event(Event{Type: EventStageCompleted, Stage: StageHeadNodes})
}

func (o *Orchestrator) imageStage(ctx context.Context, view *topology.View, sum *Summary) {
	if len(view.Images) == 0 {
		o.event(Event{Type: EventStageSkipped, Stage: StageImages, Message: "no software images"})
		return
	}
	ds := directive.ByRoles(o.Catalog, directive.RoleLDAPClient, directive.RoleNSLCD, directive.RoleSSSD)
	o.event(Event{Type: EventStageStarted, Stage: StageImages})
	for _, img := range view.Images {
		o.processTarget(ctx, StageImages, o.Local, img.Path, ds, sum)
	}
	o.event(Event{Type: EventStageCompleted, Stage: StageImages})
}

func (o *Orchestrator) liveNodeStage(ctx context.Context, view *topology.View, sum *Summary) {
	compute := view.ComputeNodes()
	if len(compute) == 0 {
		o.event(Event{Type: EventStageSkipped, Stage: StageLiveNodes, Message: "no compute nodes"})
		return
	}

	ds := directive.ByRoles(o.Catalog, directive.RoleLDAPClient, directive.RoleNSLCD, directive.RoleSSSD)
	o.event(Event{Type: EventStageStarted, Stage: StageLiveNodes})
	for _, node := range compute {
		if !node.IsUp() {
			msg := fmt.Sprintf("%s is %s; it receives the change on the next image deployment", node.Hostname, node.Status)
			sum.followUp(msg)
			o.event(Event{Type: EventFollowUp, Stage: StageLiveNodes, Target: node.Hostname, Message: msg})
			continue
		}
		remote, err := o.remote(node.Hostname)
		if err != nil {
			sum.add(Record{Stage: StageLiveNodes, Target: node.Hostname, Outcome: string(mutate.Failed), Err: err})
			o.event(Event{Type: EventTargetFailed, Stage: StageLiveNodes, Target: node.Hostname, Message: err.Error()})
			continue
		}
		o.processTarget(ctx, StageLiveNodes, remote, "", ds, sum)
	}
	o.event(Event{Type: EventStageCompleted, Stage: StageLiveNodes})
}

func (o *Orchestrator) identityStage(ctx context.Context, view *topology.View, self string, sum *Summary) {
	ds := directive.ByRoles(o.Catalog, directive.RoleSSSD)
	if len(ds) == 0 {
		o.event(Event{Type: EventStageSkipped, Stage: StageIdentity})
		return
	}
	o.event(Event{Type: EventStageStarted, Stage: StageIdentity})
	for _, t := range o.headTargets(view, self, StageIdentity, sum) {
		o.processTarget(ctx, StageIdentity, t, "", ds, sum)
	}
	o.event(Event{Type: EventStageCompleted, Stage: StageIdentity})
}

func (o *Orchestrator) directoryStage(ctx context.Context, view *topology.View, self string, sum *Summary) {
	ds := directive.ByRoles(o.Catalog, directive.RoleSLAPD)
	if len(ds) == 0 {
		o.event(Event{Type: EventStageSkipped, Stage: StageDirectory})
		return
	}
	o.event(Event{Type: EventStageStarted, Stage: StageDirectory})
	for _, t := range o.headTargets(view, self, StageDirectory, sum) {
		o.processTarget(ctx, StageDirectory, t, "", ds, sum)
	}
	o.event(Event{Type: EventStageCompleted, Stage: StageDirectory})
}

// processTarget runs the mode-appropriate operation for each directive on
// one target. All outcomes short of an I/O failure are non-fatal, and even
// a failure only moves processing to the next directive.
func (o *Orchestrator) processTarget(ctx context.Context, stage string, t runner.Target, imageRoot string, ds []directive.Directive, sum *Summary) {
	targetName := t.Name()
	if imageRoot != "" {
		targetName = fmt.Sprintf("image:%s", imageRoot)
	}

	for _, d := range ds {
		opCtx, cancel := context.WithTimeout(ctx, o.OpTimeout)
		rec := o.processOne(opCtx, t, imageRoot, d)
		cancel()

		rec.Stage = stage
		rec.Target = targetName
		rec.Directive = d.Name
		sum.add(rec)

		if rec.Err != nil {
			o.event(Event{Type: EventTargetFailed, Stage: stage, Target: targetName,
				Directive: d.Name, Message: rec.Err.Error()})
			continue
		}
		o.event(Event{Type: EventTargetProcessed, Stage: stage, Target: targetName,
			Directive: d.Name, Message: rec.Outcome})
	}
}

func (o *Orchestrator) processOne(ctx context.Context, t runner.Target, imageRoot string, d directive.Directive) Record {
	switch o.Run.Mode {
	case config.ModeDiscover, config.ModeValidate:
		cls, path, found, err := o.Engine.Classify(ctx, t, d, imageRoot)
		if err != nil {
			return Record{Outcome: string(mutate.Failed), Err: err}
		}
		// a missing file is the same non-fatal skip it is for write
		if !found {
			return Record{Outcome: string(mutate.SkippedMissingFile), Path: path}
		}
		return Record{Outcome: cls.String(), Path: path}

	case config.ModeDryRun:
		res := o.Engine.Plan(ctx, t, d, imageRoot)
		return Record{Outcome: string(res.Outcome), Path: res.RealPath, Err: res.Err}

	case config.ModeWrite:
		res := o.Engine.Apply(ctx, t, d, imageRoot)
		return Record{Outcome: string(res.Outcome), Path: res.RealPath, Detail: res.BackupPath, Err: res.Err}

	case config.ModeRollback:
		res := o.Engine.Revert(ctx, t, d, imageRoot)
		detail := res.BackupPath
		if detail == "" {
			detail = res.SafetyPath
		}
		return Record{Outcome: string(res.Outcome), Path: res.RealPath, Detail: detail, Err: res.Err}

	case config.ModeRollbackValidate:
		pristine, cls, err := o.Engine.IsPristine(ctx, t, d, imageRoot)
		if err != nil {
			return Record{Outcome: string(mutate.Failed), Err: err}
		}
		detail := "pristine"
		if !pristine {
			detail = "not pristine"
		}
		return Record{Outcome: cls.String(), Detail: detail}

	default:
		return Record{Outcome: string(mutate.Failed), Err: fmt.Errorf("unknown mode %q", o.Run.Mode)}
	}
}

// serviceStage restarts the services behind mutated configs. Only actual
// mutation runs restart anything; restart failures are reported, never
// retried or escalated.
func (o *Orchestrator) serviceStage(ctx context.Context, view *topology.View, self string, sum *Summary) {
	if !o.Run.Mode.Mutating() {
		return
	}

	services := directive.Services(o.Catalog)
	if len(services) == 0 {
		o.event(Event{Type: EventStageSkipped, Stage: StageServices})
		return
	}

	o.event(Event{Type: EventStageStarted, Stage: StageServices})
	for _, t := range o.headTargets(view, self, StageServices, sum) {
		for _, svc := range services {
			o.restartService(ctx, t, svc, sum)
		}
	}
	for _, node := range view.LiveComputeNodes() {
		remote, err := o.remote(node.Hostname)
		if err != nil {
			sum.add(Record{Stage: StageServices, Target: node.Hostname, Outcome: string(mutate.Failed), Err: err})
			continue
		}
		// compute nodes only run the lookup daemon and identity broker
		for _, svc := range []string{"nslcd", "sssd"} {
			o.restartService(ctx, remote, svc, sum)
		}
	}
	o.event(Event{Type: EventStageCompleted, Stage: StageServices})
}

func (o *Orchestrator) restartService(ctx context.Context, t runner.Target, service string, sum *Summary) {
	opCtx, cancel := context.WithTimeout(ctx, o.OpTimeout)
	defer cancel()

	cmd := fmt.Sprintf(o.Site.RestartCommand, service)
	out, code, err := t.Run(opCtx, cmd)
	rec := Record{Stage: StageServices, Target: t.Name(), Directive: service, Outcome: "ok"}
	switch {
	case err != nil:
		rec.Outcome = string(mutate.Failed)
		rec.Err = err
	case code != 0:
		rec.Outcome = string(mutate.Failed)
		rec.Err = fmt.Errorf("%s exited %d: %s", cmd, code, firstLine(out))
	}
	sum.add(rec)
	if rec.Err != nil {
		o.event(Event{Type: EventTargetFailed, Stage: StageServices, Target: t.Name(),
			Directive: service, Message: rec.Err.Error()})
	}
}

// probeStage runs the configured functional check on each head node in
// validate mode.
func (o *Orchestrator) probeStage(ctx context.Context, view *topology.View, self string, sum *Summary) {
	if o.Run.Mode != config.ModeValidate || o.Site.ProbeCommand == "" {
		return
	}

	o.event(Event{Type: EventStageStarted, Stage: StageProbe})
	for _, t := range o.headTargets(view, self, StageProbe, sum) {
		opCtx, cancel := context.WithTimeout(ctx, o.OpTimeout)
		out, code, err := t.Run(opCtx, o.Site.ProbeCommand)
		cancel()

		rec := Record{Stage: StageProbe, Target: t.Name(), Outcome: "ok"}
		switch {
		case err != nil:
			rec.Outcome = string(mutate.Failed)
			rec.Err = err
		case code != 0:
			rec.Outcome = fmt.Sprintf("exit %d", code)
			rec.Detail = firstLine(out)
		}
		sum.add(rec)
	}
	o.event(Event{Type: EventStageCompleted, Stage: StageProbe})
}

func (o *Orchestrator) event(e Event) {
	if o.Obs == nil {
		return
	}
	e.Timestamp = time.Now()
	o.Obs.Event(e)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
