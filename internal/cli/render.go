package cli

import (
	"fmt"
	"strings"

	"github.com/clarivue/claimpilot/internal/model"
)

// RenderClaim formats a settlement breakdown for terminal output.
func RenderClaim(claim *model.ClaimResult) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Claim Settlement"))
	b.WriteString("\n")

	header := fmt.Sprintf("%-32s %12s %12s %12s %12s  %s",
		"Item", "Billed", "Eligible", "Insurer", "Patient", "Reasons")
	b.WriteString(TableHeaderStyle.Render(header))
	b.WriteString("\n")

	for _, line := range claim.Lines {
		reasons := make([]string, 0, len(line.Reasons))
		for _, r := range line.Reasons {
			reasons = append(reasons, string(r))
		}
		row := fmt.Sprintf("%-32s %12.2f %12.2f %12.2f %12.2f  %s",
			truncate(line.Item, 32), line.Billed, line.Eligible,
			line.InsurerPays, line.PatientPays, strings.Join(reasons, ","))
		if line.Excluded {
			b.WriteString(ErrorStyle.Render(row))
		} else if line.PriceEstimated {
			b.WriteString(WarningStyle.Render(row))
		} else {
			b.WriteString(TableCellStyle.Render(row))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Sum insured (effective): %.2f\n", claim.SumInsured.Effective))
	if claim.DeductibleApplied > 0 {
		b.WriteString(fmt.Sprintf("Deductible applied: %.2f\n", claim.DeductibleApplied))
	}
	b.WriteString(BoldStyle.Render(fmt.Sprintf("Total billed: %.2f", claim.TotalBilled)))
	b.WriteString("\n")
	b.WriteString(SuccessStyle.Render(fmt.Sprintf("Insurer pays: %.2f", claim.InsurerPayable)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Patient pays: %.2f\n", claim.PatientPayable))

	if claim.Warning != "" {
		b.WriteString(WarningStyle.Render("Warning: " + claim.Warning))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderPriceCandidate formats one resolved price for terminal output.
func RenderPriceCandidate(c model.PriceCandidate) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Price Lookup"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Query:   %s\n", c.QueryText))
	if c.Estimated {
		b.WriteString(WarningStyle.Render(fmt.Sprintf("Price:   %.2f (AI-estimated)", c.Price)))
	} else {
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("Price:   %.2f", c.Price)))
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("\nMatched: %q from %s (score %.2f)",
			c.MatchedName, c.Source, c.SimilarityScore)))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderPriceRecords formats a reference price table.
func RenderPriceRecords(source string, records []model.PriceRecord) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Prices: %s", source)))
	b.WriteString("\n")
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-40s %12s  %s", "Name", "Price", "Origin")))
	b.WriteString("\n")
	for _, r := range records {
		b.WriteString(fmt.Sprintf("%-40s %12.2f  %s\n", truncate(r.Name, 40), r.Price, r.Origin))
	}
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d entries", len(records))))
	b.WriteString("\n")
	return b.String()
}

// RenderSessions formats a session listing.
func RenderSessions(sessions []model.Session) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Sessions"))
	b.WriteString("\n")
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-38s %-28s %-14s %s",
		"ID", "Status", "Choice", "Last activity")))
	b.WriteString("\n")
	for _, s := range sessions {
		b.WriteString(fmt.Sprintf("%-38s %-28s %-14s %s\n",
			s.ID, s.Status, s.Choice, s.UpdatedAt.Format("2006-01-02 15:04")))
	}
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d sessions", len(sessions))))
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
