// Package topology is a thin query over the cluster-manager shell (cmsh):
// the set of head nodes, software images and compute nodes with their
// status. Only column positions and the literal head-node and UP tokens are
// depended on, not the rest of the listing format.
package topology

import (
	"context"
	"fmt"
	"strings"

	"github.com/clustertools/certauth/internal/runner"
)

const (
	// headNodeType is the device type token identifying a head node.
	headNodeType = "HeadNode"
	// statusUp is the status token of a reachable node.
	statusUp = "UP"
)

// Node is one device from the cluster manager's device listing.
type Node struct {
	Hostname string
	Type     string
	Status   string
}

// IsHead reports whether the node is a cluster head (control-plane) node.
func (n Node) IsHead() bool { return n.Type == headNodeType }

// IsUp reports whether the node is currently reachable. Anything other
// than the literal UP token (DOWN, CLOSED, INSTALLING, ...) counts as not
// up; such nodes receive the change on the next full image deployment.
func (n Node) IsUp() bool { return n.Status == statusUp }

// Image is one software image: a filesystem tree staged on the head node
// and deployed to compute nodes.
type Image struct {
	Name string
	Path string
}

// View is the materialized cluster topology for one run.
type View struct {
	Nodes  []Node
	Images []Image
}

// HeadNodes returns all head nodes.
func (v *View) HeadNodes() []Node {
	var out []Node
	for _, n := range v.Nodes {
		if n.IsHead() {
			out = append(out, n)
		}
	}
	return out
}

// ComputeNodes returns all non-head nodes.
func (v *View) ComputeNodes() []Node {
	var out []Node
	for _, n := range v.Nodes {
		if !n.IsHead() {
			out = append(out, n)
		}
	}
	return out
}

// LiveComputeNodes returns the compute nodes currently up.
func (v *View) LiveComputeNodes() []Node {
	var out []Node
	for _, n := range v.ComputeNodes() {
		if n.IsUp() {
			out = append(out, n)
		}
	}
	return out
}

const (
	deviceListCommand = `%s -c "device; list -f type,hostname,status"`
	imageListCommand  = `%s -c "softwareimage; list -f name,path"`
)

// Query enumerates devices and images through cmsh on the given target.
func Query(ctx context.Context, t runner.Target, cmshBin string) (*View, error) {
	out, code, err := t.Run(ctx, fmt.Sprintf(deviceListCommand, cmshBin))
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("device listing exited %d: %s", code, strings.TrimSpace(out))
	}
	nodes := ParseDevices(out)

	out, code, err = t.Run(ctx, fmt.Sprintf(imageListCommand, cmshBin))
	if err != nil {
		return nil, fmt.Errorf("failed to list software images: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("image listing exited %d: %s", code, strings.TrimSpace(out))
	}
	images := ParseImages(out)

	if len(nodes) == 0 {
		return nil, fmt.Errorf("device listing yielded no nodes")
	}
	return &View{Nodes: nodes, Images: images}, nil
}

// ParseDevices extracts nodes from the tabular device listing: type in the
// first column, hostname in the second, status in the remainder. Header and
// separator rows are skipped.
func ParseDevices(output string) []Node {
	var nodes []Node
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || isHeaderRow(fields) {
			continue
		}
		nodes = append(nodes, Node{
			Type:     fields[0],
			Hostname: fields[1],
			Status:   normalizeStatus(fields[2:]),
		})
	}
	return nodes
}

// ParseImages extracts images from the tabular image listing: name in the
// first column, path in the second.
func ParseImages(output string) []Image {
	var images []Image
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || isHeaderRow(fields) {
			continue
		}
		images = append(images, Image{Name: fields[0], Path: fields[1]})
	}
	return images
}

func isHeaderRow(fields []string) bool {
	first := strings.ToLower(fields[0])
	if first == "type" || first == "name" {
		return true
	}
	return strings.Trim(fields[0], "-") == ""
}

// normalizeStatus joins the status columns and strips the bracket frame
// cmsh puts around compound statuses ("[ UP ]").
func normalizeStatus(fields []string) string {
	s := strings.Join(fields, " ")
	s = strings.TrimSpace(strings.Trim(s, "[]"))
	return s
}
