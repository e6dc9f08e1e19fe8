// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/kgtool/internal/knowledgegraph"
)

// Reporter writes a run report to an output.
type Reporter interface {
	Write(report *Report) error
	// Close finalizes the report and closes any underlying file handle.
	Close() error
}

// Report summarises one edge generation run.
type Report struct {
	Tool         string                    `json:"tool" yaml:"tool"`
	Version      string                    `json:"version" yaml:"version"`
	GeneratedAt  time.Time                 `json:"generated_at" yaml:"generated_at"`
	Catalogue    string                    `json:"catalogue" yaml:"catalogue"`
	Articles     int                       `json:"articles" yaml:"articles"`
	Seed         uint64                    `json:"seed" yaml:"seed"`
	Target       int                       `json:"target" yaml:"target"`
	Total        int                       `json:"total" yaml:"total"`
	Complete     bool                      `json:"complete" yaml:"complete"`
	FillAttempts int                       `json:"fill_attempts" yaml:"fill_attempts"`
	Passes       []knowledgegraph.PassStat `json:"passes" yaml:"passes"`
	ByType       map[string]int            `json:"by_type" yaml:"by_type"`
	Isolated     []int                     `json:"isolated,omitempty" yaml:"isolated,omitempty"`
	Output       string                    `json:"output" yaml:"output"`
}

// Meta carries the run details that are not part of the generator result.
type Meta struct {
	Version   string
	Catalogue string
	Articles  int
	Seed      uint64
	Output    string
	Now       time.Time
}

// NewReport builds a report from a generator result.
func NewReport(res *knowledgegraph.Result, meta Meta) *Report {
	byType := make(map[string]int)
	for _, e := range res.Edges {
		byType[string(e.Type)]++
	}
	isolated := append([]int(nil), res.Isolated...)
	sort.Ints(isolated)

	now := meta.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Report{
		Tool:         "kgtool",
		Version:      meta.Version,
		GeneratedAt:  now.UTC(),
		Catalogue:    meta.Catalogue,
		Articles:     meta.Articles,
		Seed:         meta.Seed,
		Target:       res.Target,
		Total:        len(res.Edges),
		Complete:     res.Complete,
		FillAttempts: res.FillAttempts,
		Passes:       res.Passes,
		ByType:       byType,
		Isolated:     isolated,
		Output:       meta.Output,
	}
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("json" or "yaml"). An empty path or
// "-" writes to stdout.
func New(format, outputPath string) (Reporter, error) {
	return newReporter(format, outputPath, os.Stdout)
}

func newReporter(format, outputPath string, stdout io.Writer) (Reporter, error) {
	if format != "json" && format != "yaml" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "-" {
		writer = &nopWriteCloser{stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == "yaml" {
		return &yamlReporter{w: writer}, nil
	}
	return &jsonReporter{w: writer}, nil
}

type jsonReporter struct {
	w io.WriteCloser
}

func (r *jsonReporter) Write(report *Report) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')
	_, err = r.w.Write(data)
	return err
}

func (r *jsonReporter) Close() error { return r.w.Close() }

type yamlReporter struct {
	w io.WriteCloser
}

func (r *yamlReporter) Write(report *Report) error {
	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

func (r *yamlReporter) Close() error { return r.w.Close() }
