package runner

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/config"
)

// NewReporters builds the reporters cfg names. Console reporters write to w.
func NewReporters(cfg config.Config, w io.Writer) ([]Reporter, error) {
	var out []Reporter
	for _, rc := range cfg.Reporters {
		switch rc.Kind {
		case "list":
			out = append(out, &listReporter{w: w})
		case "line":
			out = append(out, &lineReporter{w: w})
		case "github":
			out = append(out, &githubReporter{w: w})
		case "json":
			out = append(out, &jsonReporter{path: outputPath(rc, cfg.OutputDir, "results.json")})
		case "junit":
			out = append(out, &junitReporter{path: outputPath(rc, cfg.OutputDir, "junit.xml")})
		case "html":
			dir := rc.Output
			if dir == "" {
				dir = "playwright-report"
			}
			out = append(out, &htmlReporter{dir: dir, open: rc.Open, w: w})
		default:
			return nil, fmt.Errorf("unknown reporter %q", rc.Kind)
		}
	}
	return out, nil
}

func outputPath(rc config.Reporter, outputDir, name string) string {
	if rc.Output != "" {
		return rc.Output
	}
	return filepath.Join(outputDir, name)
}

func symbol(r Result) string {
	switch r {
	case ResultPassed:
		return "✓"
	case ResultFailed:
		return "✘"
	case ResultFlaky:
		return "±"
	case ResultSkipped:
		return "-"
	}
	return "?"
}

func writeSummary(w io.Writer, s SuiteResult) {
	fmt.Fprintf(w, "\n  %d passed", s.Passed)
	if s.Flaky > 0 {
		fmt.Fprintf(w, ", %d flaky", s.Flaky)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, ", %d failed", s.Failed)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", s.Skipped)
	}
	fmt.Fprintf(w, " (%s)\n", s.Duration.Round(100*time.Millisecond))
	for _, e := range s.BuildErrors {
		fmt.Fprintf(w, "\n%s\n", e)
	}
	if s.Interrupted {
		fmt.Fprintln(w, "  Stopped early: max failures reached")
	}
	if s.TimedOut {
		fmt.Fprintln(w, "  Stopped early: global timeout reached")
	}
}

// listReporter prints one line per finished test.
type listReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func (r *listReporter) ReportStart(cfg config.Config, runID string) {
	fmt.Fprintf(r.w, "Running %s configuration against %s (run %s)\n\n", cfg.Name, config.Target(cfg), runID)
}

func (r *listReporter) ReportTestResult(tr TestResult, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	retry := ""
	if attempt > 0 {
		retry = fmt.Sprintf(" (retry #%d)", attempt)
	}
	fmt.Fprintf(r.w, "  %s %s › %s%s (%s)\n", symbol(tr.Result), tr.Package, tr.Name, retry, tr.Duration.Round(time.Millisecond))
}

func (r *listReporter) ReportSuiteResult(s SuiteResult) error {
	for _, tr := range s.Tests {
		if tr.Result == ResultFailed && tr.Output != "" {
			fmt.Fprintf(r.w, "\n  %s › %s\n%s", tr.Package, tr.Name, indent(tr.Output, "    "))
		}
	}
	writeSummary(r.w, s)
	return nil
}

// lineReporter keeps a running count and prints failures only.
type lineReporter struct {
	mu   sync.Mutex
	w    io.Writer
	seen int
}

func (r *lineReporter) ReportStart(cfg config.Config, runID string) {
	fmt.Fprintf(r.w, "Running %s configuration\n", cfg.Name)
}

func (r *lineReporter) ReportTestResult(tr TestResult, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen++
	if tr.Result == ResultFailed {
		fmt.Fprintf(r.w, "[%d] %s %s › %s\n%s", r.seen, symbol(tr.Result), tr.Package, tr.Name, indent(tr.Output, "    "))
	}
}

func (r *lineReporter) ReportSuiteResult(s SuiteResult) error {
	writeSummary(r.w, s)
	return nil
}

// githubReporter emits workflow commands so failures annotate the run.
type githubReporter struct {
	w io.Writer
}

func (r *githubReporter) ReportStart(config.Config, string) {}
func (r *githubReporter) ReportTestResult(TestResult, int)  {}

func (r *githubReporter) ReportSuiteResult(s SuiteResult) error {
	for _, tr := range s.Tests {
		switch tr.Result {
		case ResultFailed:
			fmt.Fprintf(r.w, "::error title=%s::%s\n", escapeProperty(tr.Name), escapeData(firstLines(tr.Output, 20)))
		case ResultFlaky:
			fmt.Fprintf(r.w, "::warning title=%s::passed after %d attempts\n", escapeProperty(tr.Name), tr.Attempts)
		}
	}
	for _, e := range s.BuildErrors {
		fmt.Fprintf(r.w, "::error title=build failed::%s\n", escapeData(e))
	}
	fmt.Fprintf(r.w, "::notice title=hellopet-e2e::%d passed, %d failed, %d flaky, %d skipped\n", s.Passed, s.Failed, s.Flaky, s.Skipped)
	return nil
}

func escapeData(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(s)
}

func escapeProperty(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C").Replace(s)
}

// jsonReporter writes the suite result as JSON.
type jsonReporter struct {
	path string
}

func (r *jsonReporter) ReportStart(config.Config, string) {}
func (r *jsonReporter) ReportTestResult(TestResult, int)  {}

func (r *jsonReporter) ReportSuiteResult(s SuiteResult) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return writeFile(r.path, data)
}

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     float64      `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     float64     `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *struct{}     `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// junitReporter writes JUnit XML, one testsuite per package.
type junitReporter struct {
	path string
}

func (r *junitReporter) ReportStart(config.Config, string) {}
func (r *junitReporter) ReportTestResult(TestResult, int)  {}

func (r *junitReporter) ReportSuiteResult(s SuiteResult) error {
	data, err := junitXML(s)
	if err != nil {
		return err
	}
	return writeFile(r.path, data)
}

func junitXML(s SuiteResult) ([]byte, error) {
	byPkg := make(map[string]*junitSuite)
	var pkgs []string
	for _, tr := range s.Tests {
		js, ok := byPkg[tr.Package]
		if !ok {
			js = &junitSuite{Name: tr.Package}
			byPkg[tr.Package] = js
			pkgs = append(pkgs, tr.Package)
		}
		c := junitCase{Name: tr.Name, Classname: tr.Package, Time: tr.Duration.Seconds()}
		switch tr.Result {
		case ResultFailed:
			c.Failure = &junitFailure{Message: "failed after " + fmt.Sprint(tr.Attempts) + " attempt(s)", Body: tr.Output}
			js.Failures++
		case ResultSkipped:
			c.Skipped = &struct{}{}
			js.Skipped++
		case ResultFlaky:
			c.SystemOut = tr.Output
		}
		js.Tests++
		js.Time += c.Time
		js.Cases = append(js.Cases, c)
	}
	sort.Strings(pkgs)

	root := junitSuites{
		Name:     "hellopet-e2e " + s.Config,
		Tests:    s.Total,
		Failures: s.Failed,
		Skipped:  s.Skipped,
		Time:     s.Duration.Seconds(),
	}
	for _, p := range pkgs {
		root.Suites = append(root.Suites, *byPkg[p])
	}
	data, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal junit: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

var htmlReport = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>hellopet-e2e {{.Config}}</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem}
.PASSED{color:#15803d}.FAILED{color:#b91c1c}.FLAKY{color:#b45309}.SKIPPED{color:#6b7280}
pre{background:#f3f4f6;padding:1rem;overflow:auto}
</style></head>
<body>
<h1>hellopet-e2e: {{.Config}}</h1>
<p>Run {{.RunID}} &middot; {{.Passed}} passed &middot; {{.Failed}} failed &middot; {{.Flaky}} flaky &middot; {{.Skipped}} skipped &middot; {{.Duration}}</p>
{{range .BuildErrors}}<pre class="FAILED">{{.}}</pre>{{end}}
<table>
<tr><th>Result</th><th>Test</th><th>Attempts</th><th>Duration</th></tr>
{{range .Tests}}<tr><td class="{{.Result}}">{{.Result}}</td><td>{{.Package}} › {{.Name}}</td><td>{{.Attempts}}</td><td>{{.Duration}}</td></tr>
{{if .Output}}<tr><td></td><td colspan="3"><pre>{{.Output}}</pre></td></tr>{{end}}{{end}}
</table>
{{if .Artifacts}}<h2>Artifacts</h2><ul>{{range $name, $url := .Artifacts}}<li><a href="{{$url}}">{{$name}}</a></li>{{end}}</ul>{{end}}
</body>
</html>
`))

// htmlReporter writes a static report to dir/index.html.
type htmlReporter struct {
	dir  string
	open string
	w    io.Writer
}

func (r *htmlReporter) ReportStart(config.Config, string) {}
func (r *htmlReporter) ReportTestResult(TestResult, int)  {}

func (r *htmlReporter) ReportSuiteResult(s SuiteResult) error {
	var b strings.Builder
	if err := htmlReport.Execute(&b, s); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}
	path := filepath.Join(r.dir, "index.html")
	if err := writeFile(path, []byte(b.String())); err != nil {
		return err
	}
	if r.open == "always" || (r.open == "on-failure" && !s.OK()) {
		fmt.Fprintf(r.w, "\n  HTML report: %s\n", path)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func indent(text, prefix string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}

func firstLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}
