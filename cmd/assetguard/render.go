package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"assetguard/internal/app"
	"assetguard/internal/gate"
	"assetguard/internal/store"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	issueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func cell(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

func renderReport(res app.AnalysisResult) string {
	r := res.Report
	var b strings.Builder
	title := fmt.Sprintf("%d plugins, %d resources, %d duplicates", r.Summary.TotalPlugins, r.Summary.TotalResources, r.Summary.DuplicateCount)
	b.WriteString(titleStyle.Render(title))
	if res.Cached {
		b.WriteString(" " + mutedStyle.Render("(cached "+r.GeneratedAt.Format("2006-01-02 15:04:05")+")"))
	}
	b.WriteString("\n")
	for _, issue := range r.Issues {
		b.WriteString(issueStyle.Render("! "+issue) + "\n")
	}
	for _, d := range r.Duplicates {
		b.WriteString(fmt.Sprintf("  %s  %s\n", d.Resource, strings.Join(d.Plugins, " <> ")))
	}
	for _, p := range r.Plugins {
		for _, note := range p.Notes {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  note %s: %s", p.Name, note)) + "\n")
		}
	}
	if res.Seeded > 0 {
		b.WriteString(fmt.Sprintf("seeded %d new optimization record(s)\n", res.Seeded))
	}
	return b.String()
}

func renderRecords(recs []store.Record) string {
	handleW := len("RESOURCE")
	ownerW := len("OWNER")
	for _, r := range recs {
		handleW = max(handleW, len(r.Kind)+1+len(r.Handle))
		ownerW = max(ownerW, len(r.OwningPlugin))
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(cell("ID", 18)+cell("RESOURCE", handleW+2)+cell("OWNER", ownerW+2)+"STATE") + "\n")
	for _, r := range recs {
		state := activeStyle.Render("active")
		if !r.IsActive {
			state = inactiveStyle.Render("suppressed")
		}
		b.WriteString(cell(r.ID, 18) + cell(string(r.Kind)+":"+r.Handle, handleW+2) + cell(r.OwningPlugin, ownerW+2) + state + "\n")
	}
	return b.String()
}

func renderDecision(d gate.Decision) string {
	var b strings.Builder
	for _, e := range d.Emitted {
		b.WriteString(activeStyle.Render("emit") + "     " + e.String() + "\n")
	}
	for _, s := range d.Suppressed {
		b.WriteString(inactiveStyle.Render("suppress") + " " + s.String() + "\n")
	}
	if !d.Enforced && len(d.WouldSuppress) > 0 {
		names := make([]string, 0, len(d.WouldSuppress))
		for _, w := range d.WouldSuppress {
			names = append(names, w.String())
		}
		b.WriteString(mutedStyle.Render("auto_optimize is off; would suppress "+strings.Join(names, ", ")) + "\n")
	}
	return b.String()
}
