package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/miguelemosreverte/otbr-web/internal/topology"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#888888"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 2)

	roleStyles = map[topology.Role]lipgloss.Style{
		topology.RoleLeader: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00FF")).Bold(true),
		topology.RoleRouter: lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
		topology.RoleChild:  lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")),
	}

	divider = dimStyle.Render(strings.Repeat("─", 68))
)

func levelStyle(level string) lipgloss.Style {
	switch level {
	case "ERROR":
		return errorStyle
	case "WARN":
		return warnStyle
	case "DEBUG":
		return dimStyle
	}
	return lipgloss.NewStyle()
}

// keyValues renders aligned "key: value" lines inside a rounded box.
func keyValues(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = headerStyle.Render(fmt.Sprintf("%-*s", width+1, p[0]+":")) + " " + p[1]
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// printTopology writes the graph as a summary box followed by node and link
// tables. hops may be nil.
func printTopology(w io.Writer, g *topology.Graph, hops func(uint16) int) {
	selected := "Unknown"
	if g.SelectedNode != nil {
		selected = topology.FormatRloc16(g.SelectedNode.Rloc16)
	}
	routerLinks, childLinks := g.CountLinks()

	fmt.Fprintln(w, titleStyle.Render("Thread Topology"))
	fmt.Fprintln(w, keyValues([][2]string{
		{"Network", g.NetworkName},
		{"Leader", g.LeaderHex},
		{"Routers", fmt.Sprint(g.RouterCount)},
		{"Nodes", fmt.Sprint(len(g.Nodes))},
		{"Links", fmt.Sprintf("%d router, %d child", routerLinks, childLinks)},
		{"Selected", selected},
	}))

	if len(g.Nodes) == 0 {
		fmt.Fprintln(w, dimStyle.Render("\nNo nodes reported."))
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-4s %-8s %-8s %-8s %-6s %s", "#", "RLOC16", "ROLE", "ROUTER", "HOPS", "DETAIL")))
	fmt.Fprintln(w, divider)
	for i, n := range g.Nodes {
		hop := "-"
		if hops != nil {
			if h := hops(n.Rloc16); h >= 0 {
				hop = fmt.Sprint(h)
			}
		}
		role := roleStyles[n.Role].Render(fmt.Sprintf("%-8s", n.Role))
		marker := " "
		if g.SelectedNode != nil && g.SelectedNode.Rloc16 == n.Rloc16 && g.SelectedNode.Role == n.Role {
			marker = "*"
		}
		fmt.Fprintf(w, "%-4d %-8s %s %-8s %-6s %s%s\n",
			i, topology.FormatRloc16(n.Rloc16), role,
			topology.IntToHexString(int(n.RouteID), 2), hop, marker, nodeDetail(n))
	}

	if len(g.Links) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-8s %-8s %-6s %s", "FROM", "TO", "TYPE", "LINK")))
	fmt.Fprintln(w, divider)
	for _, l := range g.Links {
		from := topology.FormatRloc16(g.Nodes[l.Source].Rloc16)
		to := topology.FormatRloc16(g.Nodes[l.Target].Rloc16)
		switch info := l.LinkInfo.(type) {
		case topology.RouteLink:
			fmt.Fprintf(w, "%-8s %-8s %-6s LQ in %d / out %d\n", from, to, "route", info.InQuality, info.OutQuality)
		case topology.ChildLink:
			fmt.Fprintf(w, "%-8s %-8s %-6s timeout %ds, mode %s\n", from, to, "child", info.Timeout, info.Mode)
		}
	}
}

func nodeDetail(n topology.GraphNode) string {
	if n.Record == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("%d children", len(n.Record.ChildTable))}
	if n.Record.ExtAddress != "" {
		parts = append(parts, "ext "+n.Record.ExtAddress)
	}
	return strings.Join(parts, ", ")
}
