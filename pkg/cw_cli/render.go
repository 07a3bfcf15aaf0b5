// pkg/cw_cli/render.go

package cw_cli

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/certificate"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/journal"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/wipe"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorOK   = lipgloss.Color("42")
	colorFail = lipgloss.Color("196")
	colorWarn = lipgloss.Color("214")
	colorDim  = lipgloss.Color("245")

	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(colorDim).Width(14)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorDim)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// HumanSize formats n bytes with binary units.
func HumanSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RenderTarget shows what is about to be destroyed.
func RenderTarget(info device.Info, m wipe.Method) string {
	lines := []string{
		titleStyle.Foreground(colorWarn).Render("About to wipe"),
		row("Device", info.Path),
		row("Model", info.Model),
		row("Serial", info.Serial),
		row("Size", HumanSize(info.SizeBytes)),
		row("Method", fmt.Sprintf("%s (%s)", m, m.Compliance())),
	}
	if info.Mounted {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorFail).Render("Device is mounted"))
	}
	return panelStyle.BorderForeground(colorWarn).Render(strings.Join(lines, "\n"))
}

// RenderCertificate summarizes a certificate for the terminal.
func RenderCertificate(cert *certificate.WipeCertificate) string {
	color := colorOK
	if cert.WipeDetails.Status != certificate.StatusSuccess {
		color = colorFail
	}
	d := cert.WipeDetails
	lines := []string{
		titleStyle.Foreground(color).Render("Wipe " + string(d.Status)),
		row("Certificate", cert.CertificateID),
		row("Device", fmt.Sprintf("%s  %s  %s", cert.DeviceInfo.Path, cert.DeviceInfo.Model, cert.DeviceInfo.Serial)),
		row("Method", fmt.Sprintf("%s, %d pass(es)", d.Method, d.Passes)),
		row("Compliance", d.Compliance),
		row("Duration", fmt.Sprintf("%.1fs", d.DurationSeconds)),
		row("HPA removed", fmt.Sprintf("%t", d.HPARemoved)),
		row("DCO detected", fmt.Sprintf("%t", d.DCODetected)),
		row("Verification", cert.Verification.Result),
	}
	if d.Notes != "" {
		lines = append(lines, row("Notes", d.Notes))
	}
	return panelStyle.BorderForeground(color).Render(strings.Join(lines, "\n"))
}

// RenderDisks formats the disk inventory as a table.
func RenderDisks(disks []device.Info) string {
	if len(disks) == 0 {
		return "No disk devices found."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-16s %-28s %-20s %10s  %s", "DEVICE", "MODEL", "SERIAL", "SIZE", "FLAGS")))
	for _, d := range disks {
		var flags []string
		if d.Mounted {
			flags = append(flags, "mounted")
		}
		if d.System {
			flags = append(flags, "system")
		}
		line := fmt.Sprintf("%-16s %-28s %-20s %10s  %s", d.Path, d.Model, d.Serial, HumanSize(d.SizeBytes), strings.Join(flags, ","))
		if len(flags) > 0 {
			line = lipgloss.NewStyle().Foreground(colorWarn).Render(line)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

// RenderJournal lists journal entries, newest last.
func RenderJournal(title string, entries []*journal.Entry) string {
	if len(entries) == 0 {
		return title + ": none"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for _, e := range entries {
		color := colorDim
		switch e.Status {
		case journal.StatusCompleted:
			color = colorOK
		case journal.StatusFailed:
			color = colorFail
		case journal.StatusPending, journal.StatusInProgress:
			color = colorWarn
		}
		line := fmt.Sprintf("%s  %s  %-12s %-14s %-11s last=%s",
			e.StartTime.Format("2006-01-02 15:04:05"), e.ID, e.Device, e.Method, e.Status, e.LastStage())
		if e.Error != "" {
			line += "  error=" + e.Error
		}
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(color).Render(line))
	}
	return b.String()
}
