package topology

// maxChildID is the largest child ID an RLOC16 can carry in its low 10 bits.
const maxChildID = 0x3ff

// Build turns a node information document and the diagnostics of every
// reachable device into a graph. It never fails: lookup misses, records
// without a child table and child IDs that do not fit an RLOC16 contribute no
// edges.
//
// Routers are indexed first, in record order. Children are appended during
// the edge pass, so a router's edges use its record position as source while
// child edges re-resolve the parent through the address index.
func Build(info *NodeInfo, diagnostics []DiagnosticRecord) *Graph {
	if info == nil {
		info = &NodeInfo{}
	}

	g := &Graph{
		Nodes:       []GraphNode{},
		Links:       []Edge{},
		NetworkName: info.NetworkName,
		LeaderHex:   leaderHex(info.LeaderData.LeaderRouterID),
	}
	index := make(map[uint16]int, len(diagnostics))
	detail := -1

	for i := range diagnostics {
		rec := &diagnostics[i]
		if !rec.IsRouter() {
			continue
		}

		role := RoleRouter
		if rec.RouteID() == info.LeaderData.LeaderRouterID {
			role = RoleLeader
		}
		recCopy := *rec
		index[rec.Rloc16] = len(g.Nodes)
		if rec.Rloc16 == info.Rloc16 {
			detail = len(g.Nodes)
		}
		g.Nodes = append(g.Nodes, GraphNode{
			Rloc16:  rec.Rloc16,
			RouteID: rec.RouteID(),
			Role:    role,
			Record:  &recCopy,
		})
		g.RouterCount++
	}

	for src := range diagnostics {
		rec := &diagnostics[src]
		if !rec.IsRouter() {
			continue
		}

		if rec.Route != nil {
			for _, rd := range rec.Route.RouteData {
				found, ok := index[uint16(rd.RouteID)<<10]
				if !ok || found <= src {
					continue
				}
				g.Links = append(g.Links, Edge{
					Source:   src,
					Target:   found,
					Weight:   1,
					Type:     EdgeRouter,
					LinkInfo: RouteLink{InQuality: rd.LinkQualityIn, OutQuality: rd.LinkQualityOut},
				})
			}
		}

		for _, child := range rec.ChildTable {
			parent, ok := index[rec.Rloc16]
			if !ok || child.ChildID > maxChildID {
				continue
			}
			addr := rec.Rloc16 + child.ChildID
			idx := len(g.Nodes)
			g.Nodes = append(g.Nodes, GraphNode{
				Rloc16:  addr,
				RouteID: rec.RouteID(),
				Role:    RoleChild,
			})
			index[addr] = idx
			g.Links = append(g.Links, Edge{
				Source:   parent,
				Target:   idx,
				Weight:   1,
				Type:     EdgeChild,
				LinkInfo: ChildLink{Timeout: child.Timeout, Mode: child.Mode},
			})
		}
	}

	if detail >= 0 {
		g.SelectedNode = &g.Nodes[detail]
	}
	return g
}
