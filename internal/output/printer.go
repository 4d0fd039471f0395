// Package output formats terminal output for agentflow commands.
//
// The [Printer] renders stage progress, deliverable lists, approval prompts,
// and errors with lipgloss styling. Commands write through a Printer rather
// than to stdout directly so tests can capture output with
// [NewPrinterWithWriter].
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"agentflow/internal/engine"
)

var (
	stageStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	roleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	pendingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	artifactStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// Printer renders command output. Use [NewPrinter] for stdout or
// [NewPrinterWithWriter] to capture output in tests.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a [Printer] writing to stdout.
func NewPrinter() *Printer {
	return &Printer{w: os.Stdout}
}

// NewPrinterWithWriter creates a [Printer] writing to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// StageStarted announces that a stage is about to run.
func (p *Printer) StageStarted(stage int, name, role string) {
	fmt.Fprintf(p.w, "%s %s\n",
		stageStyle.Render(fmt.Sprintf("▶ Stage %d: %s", stage, name)),
		roleStyle.Render("("+role+")"))
}

// Deliverables lists the named artifacts a stage produced.
func (p *Printer) Deliverables(deliverables []engine.Deliverable) {
	for _, d := range deliverables {
		fmt.Fprintf(p.w, "  %s %s\n", artifactStyle.Render("•"), d.Name)
	}
}

// ApprovalPrompt tells the user a stage result is waiting on a decision.
func (p *Printer) ApprovalPrompt(request engine.ApprovalRequest, stageName string) {
	fmt.Fprintf(p.w, "%s\n", pendingStyle.Render(
		fmt.Sprintf("⏸ Stage %d (%s) awaiting approval", request.Stage, stageName)))
	if request.NextStage > 0 {
		fmt.Fprintf(p.w, "  %s\n", dimStyle.Render(
			fmt.Sprintf("approve advances to stage %d; reject re-runs stage %d with feedback",
				request.NextStage, request.Stage)))
	} else {
		fmt.Fprintf(p.w, "  %s\n", dimStyle.Render("approve completes the project; reject re-runs with feedback"))
	}
	fmt.Fprintf(p.w, "  %s\n", dimStyle.Render(
		fmt.Sprintf("agentflow approve %s   |   agentflow reject %s -m \"...\"", request.ProjectID, request.ProjectID)))
}

// ProjectCompleted prints the final completion banner.
func (p *Printer) ProjectCompleted(projectID string, stage int, deliverables []engine.Deliverable) {
	fmt.Fprintf(p.w, "%s %s\n",
		successStyle.Render("✔ Project completed:"), projectID)
	fmt.Fprintf(p.w, "  %s\n", dimStyle.Render(fmt.Sprintf("final stage %d produced:", stage)))
	p.Deliverables(deliverables)
}

// Status prints a one-line summary plus the stored stage set for an
// instance.
func (p *Printer) Status(inst *engine.Instance, totalStages int) {
	fmt.Fprintf(p.w, "%s %s\n", stageStyle.Render("Project:"), inst.ProjectID)
	fmt.Fprintf(p.w, "  %s %s\n", dimStyle.Render("requirement:"), inst.Requirement)
	fmt.Fprintf(p.w, "  %s %s\n", dimStyle.Render("status:"), string(inst.Status))
	completed := len(inst.Results)
	fmt.Fprintf(p.w, "  %s %d/%d stages stored, current stage %d\n",
		dimStyle.Render("progress:"), completed, totalStages, inst.CurrentStage)
	if result, ok := inst.LatestResult(); ok {
		fmt.Fprintf(p.w, "  %s\n", dimStyle.Render(fmt.Sprintf("latest result (stage %d):", result.Stage)))
		p.Deliverables(result.Deliverables)
	}
}

// Pending lists open approval requests for polling consumers.
func (p *Printer) Pending(requests []engine.ApprovalRequest) {
	if len(requests) == 0 {
		fmt.Fprintf(p.w, "%s\n", dimStyle.Render("No approvals pending."))
		return
	}
	for _, request := range requests {
		next := "completes project"
		if request.NextStage > 0 {
			next = fmt.Sprintf("next stage %d", request.NextStage)
		}
		fmt.Fprintf(p.w, "%s %s %s\n",
			pendingStyle.Render("⏸"),
			request.ProjectID,
			dimStyle.Render(fmt.Sprintf("stage %d awaiting approval (%s)", request.Stage, next)))
	}
}

// Info prints a plain informational line.
func (p *Printer) Info(msg string) {
	fmt.Fprintf(p.w, "%s\n", msg)
}

// Error prints an error line.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.w, "%s %v\n", errorStyle.Render("✘"), err)
}
