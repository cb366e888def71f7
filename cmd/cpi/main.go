// cpi - Consumer Price Index aggregation and attribution engine
//
// Usage:
//   cpi compute --definition core-ex-fuel --geography combined --from 2025-01 --to 2025-06
//   cpi wedge --headline headline --core core-ex-fuel --geography combined --month 2025-06
//   cpi link --definition headline --geography combined --legacy legacy.csv --link-month 2025-01
//   cpi qa
//   cpi serve --port 8080
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"cpi-engine/api"
	"cpi-engine/internal/engine"
	"cpi-engine/internal/ingest"
	records "cpi-engine/pkg/api"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	app := &cli.App{
		Name:    "cpi",
		Usage:   "Configurable CPI variants, inflation rates, and contribution attribution",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"CPI_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "weights",
				Value:   "data/items.csv",
				Usage:   "Path to the weights table CSV",
				EnvVars: []string{"CPI_WEIGHTS"},
			},
			&cli.StringFlag{
				Name:    "series",
				Value:   "data/series.csv",
				Usage:   "Path to the time-series table CSV",
				EnvVars: []string{"CPI_SERIES"},
			},
			&cli.StringFlag{
				Name:    "hierarchy",
				Value:   "data/hierarchy.csv",
				Usage:   "Path to the hierarchy table CSV",
				EnvVars: []string{"CPI_HIERARCHY"},
			},
			&cli.StringFlag{
				Name:    "definitions",
				Value:   "data/definitions.yaml",
				Usage:   "Path to the definitions YAML document",
				EnvVars: []string{"CPI_DEFINITIONS"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Value:   4,
				Usage:   "Parallel worker count",
				EnvVars: []string{"CPI_WORKERS"},
			},
		},

		Commands: []*cli.Command{
			computeCommand(),
			wedgeCommand(),
			linkCommand(),
			qaCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildEngine loads the reference tables and definitions named by the global
// flags and assembles an engine.
func buildEngine(c *cli.Context) (*engine.Engine, error) {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	doc, err := ingest.LoadDefinitions(c.String("definitions"))
	if err != nil {
		return nil, err
	}
	snap, err := ingest.LoadSnapshot(c.String("weights"), c.String("series"), c.String("hierarchy"), doc.BaseMonth)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(snap, doc.Definitions)
	if err != nil {
		return nil, err
	}
	return eng.WithLogger(log.Logger).WithWorkers(c.Int("workers")), nil
}

func monthFlag(c *cli.Context, name string) (records.Month, error) {
	return records.ParseMonth(c.String(name))
}

func computeCommand() *cli.Command {
	return &cli.Command{
		Name:  "compute",
		Usage: "Compute index levels, rates, coverage, and contributions",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "definition", Aliases: []string{"d"}, Usage: "Definition id (repeatable; default all)"},
			&cli.StringSliceFlag{Name: "geography", Aliases: []string{"g"}, Usage: "Geography (repeatable; default definition scope)"},
			&cli.StringFlag{Name: "from", Required: true, Usage: "First month (YYYY-MM)"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "Last month (YYYY-MM)"},
			&cli.BoolFlag{Name: "contributions", Usage: "Decompose YoY into item/group contributions"},
			&cli.BoolFlag{Name: "qa", Usage: "Attach a QA report to the run"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
		},
		Action: func(c *cli.Context) error {
			eng, err := buildEngine(c)
			if err != nil {
				return err
			}
			from, err := monthFlag(c, "from")
			if err != nil {
				return err
			}
			to, err := monthFlag(c, "to")
			if err != nil {
				return err
			}
			var geos []records.Geography
			for _, g := range c.StringSlice("geography") {
				geos = append(geos, records.Geography(g))
			}
			res, err := eng.Compute(c.Context, engine.Request{
				Definitions:   c.StringSlice("definition"),
				Geographies:   geos,
				From:          from,
				To:            to,
				Contributions: c.Bool("contributions"),
				RunQA:         c.Bool("qa"),
			})
			if err != nil {
				return err
			}
			if c.String("format") == "json" {
				res.Decompositions = nil
				return printJSON(res)
			}
			printComputeTable(res)
			return nil
		},
	}
}

func wedgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "wedge",
		Usage: "Attribute the headline-core inflation gap to hierarchy groups",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "headline", Required: true, Usage: "Headline definition id"},
			&cli.StringFlag{Name: "core", Required: true, Usage: "Core definition id"},
			&cli.StringFlag{Name: "geography", Aliases: []string{"g"}, Required: true},
			&cli.StringFlag{Name: "month", Required: true, Usage: "Month (YYYY-MM)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
		},
		Action: func(c *cli.Context) error {
			eng, err := buildEngine(c)
			if err != nil {
				return err
			}
			month, err := monthFlag(c, "month")
			if err != nil {
				return err
			}
			rep, err := eng.Wedge(c.Context, c.String("headline"), c.String("core"), records.Geography(c.String("geography")), month)
			if err != nil {
				return err
			}
			if c.String("format") == "json" {
				return printJSON(rep)
			}
			printWedgeTable(rep)
			return nil
		},
	}
}

func linkCommand() *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Splice a legacy base-year series onto the current one",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "definition", Aliases: []string{"d"}, Required: true},
			&cli.StringFlag{Name: "geography", Aliases: []string{"g"}, Required: true},
			&cli.StringFlag{Name: "legacy", Required: true, Usage: "Legacy series CSV (month,index)"},
			&cli.StringFlag{Name: "link-month", Required: true, Usage: "Link month T* (YYYY-MM)"},
			&cli.StringFlag{Name: "from", Required: true, Usage: "First month of the new series"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "Last month of the new series"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
		},
		Action: func(c *cli.Context) error {
			eng, err := buildEngine(c)
			if err != nil {
				return err
			}
			legacy, err := ingest.LoadLevelSeries(c.String("legacy"))
			if err != nil {
				return err
			}
			linkMonth, err := monthFlag(c, "link-month")
			if err != nil {
				return err
			}
			from, err := monthFlag(c, "from")
			if err != nil {
				return err
			}
			to, err := monthFlag(c, "to")
			if err != nil {
				return err
			}
			linked, err := eng.LinkSeries(c.Context, c.String("definition"), records.Geography(c.String("geography")), legacy, linkMonth, from, to)
			if err != nil {
				return err
			}
			if c.String("format") == "json" {
				return printJSON(linked)
			}
			printLinkedTable(linked)
			return nil
		},
	}
}

func qaCommand() *cli.Command {
	return &cli.Command{
		Name:  "qa",
		Usage: "Run the quality validator over the reference tables",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "Output format (table, json)"},
		},
		Action: func(c *cli.Context) error {
			eng, err := buildEngine(c)
			if err != nil {
				return err
			}
			rep := eng.Validate()
			if c.String("format") == "json" {
				return printJSON(rep)
			}
			printQATable(rep)
			if !rep.Passed {
				return cli.Exit("QA checks failed", 1)
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve computed records over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, EnvVars: []string{"CPI_PORT"}},
		},
		Action: func(c *cli.Context) error {
			eng, err := buildEngine(c)
			if err != nil {
				return err
			}
			cfg := api.DefaultConfig()
			cfg.Port = c.Int("port")
			return api.NewServer(eng, cfg, log.Logger).Run()
		},
	}
}
