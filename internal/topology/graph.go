package topology

import (
	"encoding/json"
	"strconv"
)

// Role classifies a graph node.
type Role string

const (
	RoleLeader Role = "Leader"
	RoleRouter Role = "Router"
	RoleChild  Role = "Child"
)

// EdgeType distinguishes mesh links from parent/child attachments.
type EdgeType int

const (
	EdgeRouter EdgeType = 0
	EdgeChild  EdgeType = 1
)

// GraphNode is a router (Record set) or a synthesized child (Record nil).
type GraphNode struct {
	Rloc16  uint16
	RouteID uint8
	Role    Role
	Record  *DiagnosticRecord
}

// IsChild reports whether the node was synthesized from a child table entry.
func (n *GraphNode) IsChild() bool {
	return n.Record == nil
}

type childView struct {
	Rloc16  string `json:"Rloc16"`
	RouteID uint8  `json:"RouteId"`
	Role    Role   `json:"Role"`
}

type leaderDataView struct {
	PartitionID       uint32 `json:"PartitionId"`
	Weighting         uint8  `json:"Weighting"`
	DataVersion       uint8  `json:"DataVersion"`
	StableDataVersion uint8  `json:"StableDataVersion"`
	LeaderRouterID    string `json:"LeaderRouterId"`
}

type routeDataView struct {
	RouteID        string `json:"RouteId"`
	LinkQualityIn  uint8  `json:"LinkQualityIn"`
	LinkQualityOut uint8  `json:"LinkQualityOut"`
	RouteCost      uint8  `json:"RouteCost"`
}

type routeView struct {
	IDSequence uint8           `json:"IdSequence"`
	RouteData  []routeDataView `json:"RouteData"`
}

type recordFields DiagnosticRecord

type routerView struct {
	*recordFields
	Rloc16     string         `json:"Rloc16"`
	RouteID    uint8          `json:"RouteId"`
	Role       Role           `json:"Role"`
	LeaderData leaderDataView `json:"LeaderData"`
	Route      *routeView     `json:"Route,omitempty"`
	ChildTable []ChildEntry   `json:"ChildTable"`
}

// MarshalJSON renders short addresses and router ids in their display hex
// forms. Router nodes carry every field of their diagnostic record.
func (n GraphNode) MarshalJSON() ([]byte, error) {
	if n.Record == nil {
		return json.Marshal(childView{
			Rloc16:  FormatRloc16(n.Rloc16),
			RouteID: n.RouteID,
			Role:    n.Role,
		})
	}

	rec := n.Record
	v := routerView{
		recordFields: (*recordFields)(rec),
		Rloc16:       FormatRloc16(n.Rloc16),
		RouteID:      n.RouteID,
		Role:         n.Role,
		LeaderData: leaderDataView{
			PartitionID:       rec.LeaderData.PartitionID,
			Weighting:         rec.LeaderData.Weighting,
			DataVersion:       rec.LeaderData.DataVersion,
			StableDataVersion: rec.LeaderData.StableDataVersion,
			LeaderRouterID:    IntToHexString(int(rec.LeaderData.LeaderRouterID), 2),
		},
		ChildTable: rec.ChildTable,
	}
	if v.ChildTable == nil {
		v.ChildTable = []ChildEntry{}
	}
	if rec.Route != nil {
		rv := &routeView{IDSequence: rec.Route.IDSequence, RouteData: make([]routeDataView, 0, len(rec.Route.RouteData))}
		for _, rd := range rec.Route.RouteData {
			rv.RouteData = append(rv.RouteData, routeDataView{
				RouteID:        IntToHexString(int(rd.RouteID), 2),
				LinkQualityIn:  rd.LinkQualityIn,
				LinkQualityOut: rd.LinkQualityOut,
				RouteCost:      rd.RouteCost,
			})
		}
		v.Route = rv
	}
	return json.Marshal(v)
}

// LinkInfo is the payload of an edge: RouteLink or ChildLink.
type LinkInfo interface {
	edgeType() EdgeType
}

// RouteLink carries the link qualities of a router-router edge.
type RouteLink struct {
	InQuality  uint8 `json:"inQuality"`
	OutQuality uint8 `json:"outQuality"`
}

func (RouteLink) edgeType() EdgeType { return EdgeRouter }

// ChildLink carries the attachment of a child to its parent.
type ChildLink struct {
	Timeout uint32 `json:"Timeout"`
	Mode    Mode   `json:"Mode"`
}

func (ChildLink) edgeType() EdgeType { return EdgeChild }

// Edge connects two node indices.
type Edge struct {
	Source   int      `json:"source"`
	Target   int      `json:"target"`
	Weight   int      `json:"weight"`
	Type     EdgeType `json:"type"`
	LinkInfo LinkInfo `json:"linkInfo"`
}

// Graph is the result of one build.
type Graph struct {
	Nodes        []GraphNode
	Links        []Edge
	NetworkName  string
	LeaderHex    string
	RouterCount  int
	SelectedNode *GraphNode
}

// CountLinks returns the number of router-router and router-child edges.
func (g *Graph) CountLinks() (routers, children int) {
	for _, l := range g.Links {
		if l.Type == EdgeRouter {
			routers++
		} else {
			children++
		}
	}
	return routers, children
}

// FindNode returns the index of the last node with the given short address.
func (g *Graph) FindNode(rloc16 uint16) (int, bool) {
	for i := len(g.Nodes) - 1; i >= 0; i-- {
		if g.Nodes[i].Rloc16 == rloc16 {
			return i, true
		}
	}
	return -1, false
}

// MarshalJSON encodes the graph; a missing selection becomes "Unknown".
func (g Graph) MarshalJSON() ([]byte, error) {
	nodes := g.Nodes
	if nodes == nil {
		nodes = []GraphNode{}
	}
	links := g.Links
	if links == nil {
		links = []Edge{}
	}
	var selected any = "Unknown"
	if g.SelectedNode != nil {
		selected = g.SelectedNode
	}
	return json.Marshal(struct {
		Nodes        []GraphNode `json:"nodes"`
		Links        []Edge      `json:"links"`
		NetworkName  string      `json:"networkName"`
		LeaderHex    string      `json:"leaderHex"`
		RouterCount  int         `json:"routerCount"`
		SelectedNode any         `json:"selectedNode"`
	}{nodes, links, g.NetworkName, g.LeaderHex, g.RouterCount, selected})
}

// leaderHex formats a leader router id as "0x" plus unpadded hex.
func leaderHex(id uint8) string {
	return "0x" + strconv.FormatUint(uint64(id), 16)
}
