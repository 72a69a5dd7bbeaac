package batch

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleWorkflow = `
name: nightly-unpack
description: unpack the nightly firmware build
version: "1.0"
variables:
  build_dir: /tmp/builds
steps:
  - name: unpack nightly
    type: unpack
    input: "{{.build_dir}}/nightly.img"
    output: "{{.build_dir}}/nightly"
    format: imgrepacker
  - name: dump partitions
    type: partition
    input: "{{.build_dir}}/nightly.img"
`

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadWorkflowExpandsTemplates(t *testing.T) {
	wf, err := LoadWorkflow(writeWorkflow(t, sampleWorkflow))
	if err != nil {
		t.Fatalf("LoadWorkflow: %v", err)
	}

	if wf.Name != "nightly-unpack" {
		t.Fatalf("Name = %q", wf.Name)
	}
	if len(wf.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(wf.Steps))
	}

	input, _ := wf.Steps[0].Parameters["input"].(string)
	if input != "/tmp/builds/nightly.img" {
		t.Fatalf("template not expanded: input = %q", input)
	}
}

func TestValidateWorkflowAcceptsSample(t *testing.T) {
	wf, err := LoadWorkflow(writeWorkflow(t, sampleWorkflow))
	if err != nil {
		t.Fatalf("LoadWorkflow: %v", err)
	}
	if errs := ValidateWorkflow(wf); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
}

func TestValidateWorkflowRejectsBadSteps(t *testing.T) {
	wf := &Workflow{
		Name: "broken",
		Steps: []Step{
			{Name: "no type"},
			{Name: "bad type", Type: "teleport"},
			{Name: "missing params", Type: "unpack", Parameters: map[string]interface{}{}},
		},
	}

	errs := ValidateWorkflow(wf)
	if len(errs) < 3 {
		t.Fatalf("expected at least 3 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidateWorkflowRequiresSteps(t *testing.T) {
	if errs := ValidateWorkflow(&Workflow{Name: "empty"}); len(errs) == 0 {
		t.Fatal("expected validation error for workflow without steps")
	}
}

func TestEvaluateCondition(t *testing.T) {
	vars := map[string]interface{}{"run_scan": "true"}

	ok, err := evaluateCondition("{{.run_scan}}", vars)
	if err != nil || !ok {
		t.Fatalf("condition = %v, %v, want true", ok, err)
	}

	ok, err = evaluateCondition("false", vars)
	if err != nil || ok {
		t.Fatalf("condition = %v, %v, want false", ok, err)
	}
}
