package pipeline

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent      = lipgloss.Color("#8BC34A")
	destructive = lipgloss.Color("#e53935")
	muted       = lipgloss.Color("#6b7a90")

	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	detailStyle = lipgloss.NewStyle().Foreground(muted)
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(destructive)
)

func (p *Pipeline) banner(task string) {
	fmt.Fprintf(p.out, "%s %s\n", bannerStyle.Render("==> "+task), detailStyle.Render(p.bc.BuildDir))
}

func (p *Pipeline) summary(run *Run) {
	elapsed := run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)
	if run.State == StateFailed {
		fmt.Fprintf(p.out, "%s %s\n", failStyle.Render("build failed while "+string(run.FailedIn)+":"), run.Err)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", okStyle.Render("build complete"), detailStyle.Render(fmt.Sprintf("%s in %s", p.bc.ProductName, elapsed)))
}
