package handlers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clustertools/certauth/internal/config"
	"github.com/clustertools/certauth/internal/orchestrator"
)

func TestRenderSummaryCleanRun(t *testing.T) {
	sum := &orchestrator.Summary{Mode: config.ModeWrite}
	sum.Records = append(sum.Records,
		orchestrator.Record{Stage: orchestrator.StageHeadNodes, Target: "head01", Directive: "client-line", Outcome: "applied"},
		orchestrator.Record{Stage: orchestrator.StageHeadNodes, Target: "head02", Directive: "client-line", Outcome: "already-present"},
	)

	out := renderSummary(sum)
	assert.Contains(t, out, "certauthctl write")
	assert.Contains(t, out, orchestrator.StageHeadNodes)
	assert.Contains(t, out, "head01 client-line applied")
	assert.Contains(t, out, "applied=1")
	assert.Contains(t, out, "already-present=1")
	assert.Contains(t, out, "run completed")
}

func TestRenderSummaryFailure(t *testing.T) {
	sum := &orchestrator.Summary{Mode: config.ModeWrite}
	sum.Records = append(sum.Records, orchestrator.Record{
		Stage:   orchestrator.StageLiveNodes,
		Target:  "node001",
		Outcome: "failed",
		Err:     fmt.Errorf("connection refused"),
	})

	out := renderSummary(sum)
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "1 operation(s) failed")
	assert.NotContains(t, out, "run completed")
}

func TestRenderSummaryFollowUps(t *testing.T) {
	sum := &orchestrator.Summary{Mode: config.ModeWrite}
	sum.FollowUp = append(sum.FollowUp, "node002 is DOWN; it receives the change on the next image deployment")

	out := renderSummary(sum)
	assert.Contains(t, out, "follow-up")
	assert.Contains(t, out, "node002 is DOWN")
}

func TestRenderSummaryGroupsByStage(t *testing.T) {
	sum := &orchestrator.Summary{Mode: config.ModeDiscover}
	sum.Records = append(sum.Records,
		orchestrator.Record{Stage: orchestrator.StageHeadNodes, Target: "head01", Directive: "client-line", Outcome: "absent"},
		orchestrator.Record{Stage: orchestrator.StageImages, Target: "image:/cm/images/default-image", Directive: "client-line", Outcome: "absent"},
	)

	out := renderSummary(sum)
	assert.Contains(t, out, orchestrator.StageHeadNodes)
	assert.Contains(t, out, orchestrator.StageImages)
	assert.Contains(t, out, "image:/cm/images/default-image")
}
