package runner

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// stream is an io.Writer that decodes test2json lines as they arrive and
// reports each finished top-level test. Subtest output is folded into its
// parent so a failure report carries everything the test printed.
type stream struct {
	mu     sync.Mutex
	buf    []byte
	output map[string]*strings.Builder
	pkgOut map[string]*strings.Builder
	// buildOut holds compiler output keyed by import path.
	buildOut map[string]*strings.Builder
	failed   map[string]bool // packages with at least one failed test
	onTest   func(TestResult)
	onBuild  func(pkg, output string)
	// raw collects lines that are not JSON, such as compiler errors.
	raw strings.Builder
}

func newStream(onTest func(TestResult), onBuild func(pkg, output string)) *stream {
	return &stream{
		output:   make(map[string]*strings.Builder),
		pkgOut:   make(map[string]*strings.Builder),
		buildOut: make(map[string]*strings.Builder),
		failed:   make(map[string]bool),
		onTest:   onTest,
		onBuild:  onBuild,
	}
}

func (s *stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, p...)
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		s.line(s.buf[:i])
		s.buf = s.buf[i+1:]
	}
	return len(p), nil
}

// Flush handles a trailing line without a newline.
func (s *stream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(bytes.TrimSpace(s.buf)) > 0 {
		s.line(s.buf)
	}
	s.buf = nil
}

// Raw returns the non-JSON output seen so far.
func (s *stream) Raw() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw.String()
}

func (s *stream) line(b []byte) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return
	}
	var ev Event
	if b[0] != '{' || json.Unmarshal(b, &ev) != nil {
		s.raw.Write(b)
		s.raw.WriteByte('\n')
		return
	}
	s.handle(ev)
}

func topLevel(test string) string {
	if i := strings.IndexByte(test, '/'); i >= 0 {
		return test[:i]
	}
	return test
}

func appendOutput(m map[string]*strings.Builder, key, out string) {
	b, ok := m[key]
	if !ok {
		b = &strings.Builder{}
		m[key] = b
	}
	b.WriteString(out)
}

func (s *stream) handle(ev Event) {
	switch ev.Action {
	case "build-output":
		appendOutput(s.buildOut, ev.ImportPath, ev.Output)
		return
	case "build-fail":
		return
	}
	if ev.Test == "" {
		s.handlePackage(ev)
		return
	}

	key := ev.Package + "." + topLevel(ev.Test)
	if ev.Action == "output" {
		appendOutput(s.output, key, ev.Output)
		return
	}
	if ev.Test != topLevel(ev.Test) {
		return
	}

	var result Result
	switch ev.Action {
	case "pass":
		result = ResultPassed
	case "fail":
		result = ResultFailed
		s.failed[ev.Package] = true
	case "skip":
		result = ResultSkipped
	default:
		return
	}

	tr := TestResult{
		Package:  ev.Package,
		Name:     ev.Test,
		Result:   result,
		Duration: time.Duration(ev.Elapsed * float64(time.Second)),
	}
	if result == ResultFailed {
		if b, ok := s.output[key]; ok {
			tr.Output = b.String()
		}
	}
	delete(s.output, key)
	s.onTest(tr)
}

// handlePackage tracks package-level output so a package that fails without
// any failing test (a build error, a panic in TestMain) is still reported
// with the compiler or package output that explains it.
func (s *stream) handlePackage(ev Event) {
	switch ev.Action {
	case "output":
		appendOutput(s.pkgOut, ev.Package, ev.Output)
	case "fail":
		if !s.failed[ev.Package] && s.onBuild != nil {
			var out strings.Builder
			if ev.FailedBuild != "" {
				if b, ok := s.buildOut[ev.FailedBuild]; ok {
					out.WriteString(b.String())
				}
			}
			if b, ok := s.pkgOut[ev.Package]; ok {
				out.WriteString(b.String())
			}
			s.onBuild(ev.Package, out.String())
		}
		delete(s.pkgOut, ev.Package)
		if ev.FailedBuild != "" {
			delete(s.buildOut, ev.FailedBuild)
		}
	case "pass", "skip":
		delete(s.pkgOut, ev.Package)
	}
}
