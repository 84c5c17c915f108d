package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/pipeline"
	"github.com/teranos/gauntlet/plugin/grpc/protocol"
)

// render writes v in the selected output format. table builds the rows
// (header first) for the table format.
func render(w io.Writer, v any, table func() [][]string) error {
	switch outputFlag {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal JSON")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to marshal YAML")
		}
		return enc.Close()
	}

	rows := table()
	if len(rows) <= 1 {
		_, err := fmt.Fprintln(w, "(none)")
		return err
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()
}

// resultView is the printable form of a pipeline Result.
type resultView struct {
	Plugin   string   `json:"plugin" yaml:"plugin"`
	Instance string   `json:"instance,omitempty" yaml:"instance,omitempty"`
	Phase    string   `json:"phase" yaml:"phase"`
	Mode     string   `json:"mode" yaml:"mode"`
	Success  bool     `json:"success" yaml:"success"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
	Records  []string `json:"records,omitempty" yaml:"records,omitempty"`
	Duration string   `json:"duration" yaml:"duration"`
}

func viewResults(results []*pipeline.Result) []resultView {
	out := make([]resultView, 0, len(results))
	for _, r := range results {
		v := resultView{
			Plugin:   r.PluginName,
			Instance: r.InstanceName,
			Phase:    string(r.Phase),
			Mode:     string(r.Mode),
			Success:  r.Success,
			Duration: r.Duration.Round(time.Microsecond).String(),
		}
		if r.Error != nil {
			v.Error = fmt.Sprintf("%s: %s", r.Error.Kind, r.Error.Message)
		}
		for _, rec := range r.Records {
			v.Records = append(v.Records, fmt.Sprintf("[%s] %s", rec.Level, rec.Message))
		}
		out = append(out, v)
	}
	return out
}

func resultRows(views []resultView) func() [][]string {
	return func() [][]string {
		rows := [][]string{{"Plugin", "Instance", "Phase", "Mode", "Status", "Duration", "Records"}}
		for _, v := range views {
			status := pterm.Green("ok")
			if !v.Success {
				status = pterm.Red("failed: " + v.Error)
			}
			instance := v.Instance
			if instance == "" {
				instance = "(context)"
			}
			rows = append(rows, []string{v.Plugin, instance, v.Phase, v.Mode, status, v.Duration, strconv.Itoa(len(v.Records))})
		}
		return rows
	}
}

// pluginView is the printable form of a plugin descriptor.
type pluginView struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Order     float64  `json:"order" yaml:"order"`
	Phase     string   `json:"phase" yaml:"phase"`
	Families  []string `json:"families,omitempty" yaml:"families,omitempty"`
	Requires  string   `json:"requires,omitempty" yaml:"requires,omitempty"`
	CanRepair bool     `json:"canRepair" yaml:"canRepair"`
}

func viewPlugins(plugins []pipeline.Descriptor, boundary float64) []pluginView {
	out := make([]pluginView, 0, len(plugins))
	for _, d := range plugins {
		out = append(out, pluginView{
			ID:        d.ID,
			Name:      d.Name,
			Order:     d.Order,
			Phase:     string(d.Phase(boundary)),
			Families:  d.Families,
			Requires:  d.Requires,
			CanRepair: d.CanRepair,
		})
	}
	return out
}

func pluginRows(views []pluginView) func() [][]string {
	return func() [][]string {
		rows := [][]string{{"ID", "Name", "Order", "Phase", "Families", "Repair"}}
		for _, v := range views {
			families := strings.Join(v.Families, ",")
			if families == "" {
				families = "(context)"
			}
			rows = append(rows, []string{
				v.ID, v.Name, strconv.FormatFloat(v.Order, 'g', -1, 64), v.Phase, families, strconv.FormatBool(v.CanRepair),
			})
		}
		return rows
	}
}

func contextRows(c *protocol.Context) func() [][]string {
	return func() [][]string {
		rows := [][]string{{"ID", "Name", "Families", "Data"}}
		for _, inst := range c.Instances {
			rows = append(rows, []string{inst.ID, inst.Name, strings.Join(inst.Families, ","), strconv.Itoa(len(inst.Data)) + " keys"})
		}
		return rows
	}
}

func statsRows(s *protocol.Stats) func() [][]string {
	return func() [][]string {
		rows := [][]string{
			{"Metric", "Value"},
			{"total requests", strconv.FormatUint(s.TotalRequestCount, 10)},
			{"uptime", (time.Duration(s.UptimeSeconds * float64(time.Second))).Round(time.Second).String()},
			{"memory rss", strconv.FormatUint(s.MemoryRSS/1024, 10) + " KiB"},
		}
		for _, m := range sortedKeys(s.Methods) {
			rows = append(rows, []string{"  " + m, strconv.FormatUint(s.Methods[m], 10)})
		}
		return rows
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
