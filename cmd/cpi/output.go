package main

import (
	"encoding/json"
	"fmt"
	"os"

	"cpi-engine/internal/engine"
	records "cpi-engine/pkg/api"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtRate(r *float64) string {
	if r == nil {
		return "     -"
	}
	return fmt.Sprintf("%6.2f", *r)
}

func printComputeTable(res *engine.Result) {
	fmt.Printf("Run %s\n\n", res.RunID)
	fmt.Printf("%-16s %-10s %-8s %10s %7s %7s %6s %-11s\n",
		"DEFINITION", "GEOGRAPHY", "MONTH", "INDEX", "MOM%", "YOY%", "COV", "FLAG")
	covByKey := make(map[string]records.CoverageRecord, len(res.Coverage))
	for _, c := range res.Coverage {
		covByKey[c.Definition+"|"+string(c.Geography)+"|"+string(c.Month)] = c
	}
	for _, p := range res.Points {
		c := covByKey[p.Definition+"|"+string(p.Geography)+"|"+string(p.Month)]
		fmt.Printf("%-16s %-10s %-8s %10.4f %7s %7s %6.2f %-11s\n",
			p.Definition, p.Geography, p.Month, p.Index, fmtRate(p.MoM), fmtRate(p.YoY), c.Coverage, c.Flag)
	}
	if len(res.Contributions) > 0 {
		fmt.Printf("\n%-16s %-8s %-18s %-7s %9s\n", "DEFINITION", "MONTH", "SUBJECT", "LEVEL", "POINTS")
		for _, c := range res.Contributions {
			fmt.Printf("%-16s %-8s %-18s %-7s %9.4f\n", c.Definition, c.Month, c.Subject, c.Level, c.Points)
		}
	}
	for _, d := range res.Decompositions {
		if d.Residual != 0 {
			fmt.Printf("\nresidual %s/%s@%s: %.4f pp\n", d.Definition, d.Geography, d.Month, d.Residual)
		}
	}
	if len(res.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range res.Errors {
			fmt.Printf("  [%s] %s/%s@%s: %s\n", e.Code, e.Definition, e.Geography, e.Month, e.Message)
		}
	}
	if res.QA != nil {
		fmt.Println()
		printQATable(res.QA)
	}
}

func printWedgeTable(rep *records.WedgeReport) {
	fmt.Printf("Wedge %s - %s (%s, %s)\n", rep.Headline, rep.Core, rep.Geography, rep.Month)
	fmt.Printf("  headline YoY %6.2f%%   core YoY %6.2f%%   wedge %6.2f pp\n\n",
		rep.HeadlineYoY, rep.CoreYoY, rep.Wedge)
	fmt.Printf("%-10s %-28s %9s %9s %9s\n", "GROUP", "NAME", "HEADLINE", "CORE", "WEDGE")
	for _, g := range rep.Groups {
		fmt.Printf("%-10s %-28s %9.4f %9.4f %9.4f\n", g.GroupCode, g.GroupName, g.HeadlinePoints, g.CorePoints, g.Wedge)
	}
	fmt.Printf("\nreconciliation residual: %.4f pp\n", rep.Residual)
}

func printLinkedTable(s *records.LinkedSeries) {
	fmt.Printf("Linked series %s/%s  link month %s  link factor %.6f\n\n",
		s.Definition, s.Geography, s.LinkMonth, s.LinkFactor)
	fmt.Printf("%-8s %10s %-8s\n", "MONTH", "INDEX", "SOURCE")
	for _, p := range s.Points {
		fmt.Printf("%-8s %10.4f %-8s\n", p.Month, p.Index, p.Source)
	}
}

func printQATable(rep *records.QAReport) {
	status := "PASS"
	if !rep.Passed {
		status = "FAIL"
	}
	fmt.Printf("QA report %s  [%s]\n", rep.ID, status)
	for _, c := range rep.Checks {
		mark := "ok"
		if !c.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  %-28s %-8s %s\n", c.Name, c.Severity, mark)
		for _, f := range c.Failures {
			fmt.Printf("      %s\n", f)
		}
	}
}
