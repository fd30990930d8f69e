package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type PushTrigger struct {
	Branches []string `yaml:"branches,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

type Trigger struct {
	Push        PushTrigger `yaml:"push,omitempty"`
	PullRequest PushTrigger `yaml:"pull_request,omitempty"`
}

type Args map[string]interface{}

type Step struct {
	Name string `yaml:"name,omitempty"`
	If   string `yaml:"if,omitempty"`
	Uses string `yaml:"uses,omitempty"`
	ID   string `yaml:"id,omitempty"`
	Run  string `yaml:"run,omitempty"`
	With Args   `yaml:"with,omitempty"`
}

type Strategy struct {
	Matrix map[string][]string `yaml:"matrix"`
}

type Job struct {
	RunsOn   string    `yaml:"runs-on"`
	Needs    []string  `yaml:"needs,omitempty"`
	Strategy *Strategy `yaml:"strategy,omitempty"`
	Steps    []Step    `yaml:"steps"`
}

type Workflow struct {
	Name string         `yaml:"name"`
	On   Trigger        `yaml:"on,omitempty"`
	Jobs map[string]Job `yaml:"jobs"`
}

const goVersion = "1.24"

func checkout() []Step {
	return []Step{{
		Name: "Checkout",
		Uses: "actions/checkout@v4",
	}, {
		Name: "Set up Go",
		Uses: "actions/setup-go@v5",
		With: Args{"go-version": goVersion},
	}}
}

func JobTest() Job {
	return Job{
		RunsOn: "ubuntu-latest",
		Steps: append(checkout(), Step{
			Name: "Vet",
			Run:  "go vet ./...",
		}, Step{
			Name: "Test",
			Run:  "go test -race ./...",
		}),
	}
}

// JobRelease cross-compiles the `ext2` CLI for each target platform and
// attaches the binaries to tagged releases.
func JobRelease(platforms ...string) Job {
	return Job{
		RunsOn:   "ubuntu-latest",
		Needs:    []string{"test"},
		Strategy: &Strategy{Matrix: map[string][]string{"platform": platforms}},
		Steps: append(checkout(), Step{
			Name: "Build",
			Run: `PLATFORM=${{ matrix.platform }}
GOOS=${PLATFORM%/*}
GOARCH=${PLATFORM#*/}
CGO_ENABLED=0 GOOS=$GOOS GOARCH=$GOARCH \
  go build -trimpath -o "dist/ext2-$GOOS-$GOARCH" ./cmd/ext2`,
		}, Step{
			Name: "Upload",
			If:   "startsWith(github.ref, 'refs/tags/')",
			Uses: "softprops/action-gh-release@v2",
			With: Args{"files": "dist/*"},
		}),
	}
}

func WorkflowCI() Workflow {
	return Workflow{
		Name: "ci",
		On: Trigger{
			Push: PushTrigger{
				Branches: []string{"*"},
				Tags:     []string{"*"},
			},
			PullRequest: PushTrigger{Branches: []string{"master"}},
		},
		Jobs: map[string]Job{
			"test":    JobTest(),
			"release": JobRelease("linux/amd64", "linux/arm64", "darwin/arm64"),
		},
	}
}

func MarshalToWriter(w io.Writer, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling to YAML: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing YAML: %w", err)
	}
	return nil
}

func main() {
	if err := MarshalToWriter(os.Stdout, WorkflowCI()); err != nil {
		log.Fatalf("marshaling ci workflow: %v", err)
	}
}
