package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/sqlgate/internal/cli/output"
	gwconfig "github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/storage"
)

// DatabaseReport summarizes one database version.
type DatabaseReport struct {
	Name     string   `json:"name"`
	Version  string   `json:"version,omitempty"`
	Routes   int      `json:"routes"`
	Tables   int      `json:"tables"`
	Backends []string `json:"backends"`
}

// RemoteReport summarizes one remote API.
type RemoteReport struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

// DoctorReport is the doctor command's output.
type DoctorReport struct {
	ConfigDir string           `json:"config_dir"`
	Name      string           `json:"name"`
	Databases []DatabaseReport `json:"databases"`
	Remotes   []RemoteReport   `json:"remotes"`
	Problems  []string         `json:"problems"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Summarize the gateway configuration",
		Long: `Show every database version with its routes, tables and storage
backends, every remote API, and any configuration problems.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(NewCommandContext(cmd))
		},
	}
}

func runDoctor(cc *CommandContext) error {
	g, err := cc.LoadGateway()
	if err != nil {
		return err
	}

	report := buildDoctorReport(g)
	cc.Logger.Debug("doctor report built",
		"databases", len(report.Databases), "remotes", len(report.Remotes))

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(report)
	}
	renderDoctorReport(r, report)
	return nil
}

func buildDoctorReport(g *gwconfig.Gateway) *DoctorReport {
	report := &DoctorReport{
		ConfigDir: g.Dir,
		Name:      g.Main.Name,
		Databases: []DatabaseReport{},
		Remotes:   []RemoteReport{},
		Problems:  []string{},
	}

	title := cases.Title(language.English)
	for _, name := range g.DatabaseNames() {
		set, _ := g.DatabaseSet(name)
		for _, version := range set.VersionNames() {
			db := set.Versions[version]
			backends := make([]string, 0)
			for b := range storage.Requirements(db.Tables) {
				backends = append(backends, title.String(string(b)))
			}
			sort.Strings(backends)

			report.Databases = append(report.Databases, DatabaseReport{
				Name:     name,
				Version:  version,
				Routes:   len(db.Routes),
				Tables:   len(db.Tables),
				Backends: backends,
			})
		}
	}

	for _, name := range g.RemoteNames() {
		rc, _ := g.Remote(name)
		rr := RemoteReport{Name: name, URL: rc.URL, Loaded: rc.LoadErr == nil}
		if rc.LoadErr != nil {
			rr.Error = rc.LoadErr.Error()
		}
		report.Remotes = append(report.Remotes, rr)
	}

	for _, p := range gwconfig.ValidateGateway(g) {
		report.Problems = append(report.Problems, p.Error())
	}
	return report
}

func renderDoctorReport(r *output.Renderer, report *DoctorReport) {
	r.Header(1, "sqlgate doctor")
	r.KeyValue("config", report.ConfigDir)
	if report.Name != "" {
		r.KeyValue("name", report.Name)
	}
	r.Println("")

	r.Header(2, "Databases")
	dbRows := make([]map[string]any, len(report.Databases))
	for i, d := range report.Databases {
		dbRows[i] = map[string]any{
			"database": d.Name,
			"version":  d.Version,
			"routes":   d.Routes,
			"tables":   d.Tables,
			"backends": strings.Join(d.Backends, ", "),
		}
	}
	_ = r.Rows([]string{"database", "version", "routes", "tables", "backends"}, dbRows)
	r.Println("")

	r.Header(2, "Remotes")
	remoteRows := make([]map[string]any, len(report.Remotes))
	for i, rm := range report.Remotes {
		status := "ok"
		if !rm.Loaded {
			status = rm.Error
		}
		remoteRows[i] = map[string]any{"remote": rm.Name, "url": rm.URL, "status": status}
	}
	_ = r.Rows([]string{"remote", "url", "status"}, remoteRows)
	r.Println("")

	if len(report.Problems) == 0 {
		r.Success("no configuration problems")
		return
	}
	for _, p := range report.Problems {
		r.Warning(p)
	}
	r.Warning(fmt.Sprintf("%d configuration problems", len(report.Problems)))
}
