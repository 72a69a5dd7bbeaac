// Package batch runs YAML-defined workflows over firmware images, so a
// sequence of unpack/decrypt/partition/scan steps can be scripted and
// repeated across builds.
package batch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/viper"

	"github.com/openixwty/imagewty/internal/config"
	"github.com/openixwty/imagewty/internal/logger"
)

// Step represents a single step in a workflow.
type Step struct {
	Name        string                 `mapstructure:"name"`
	Type        string                 `mapstructure:"type"`
	Description string                 `mapstructure:"description"`
	Condition   string                 `mapstructure:"condition"`
	Parameters  map[string]interface{} `mapstructure:",remain"`
}

// Workflow represents an entire batch workflow.
type Workflow struct {
	Name        string                 `mapstructure:"name"`
	Description string                 `mapstructure:"description"`
	Version     string                 `mapstructure:"version"`
	Author      string                 `mapstructure:"author"`
	Steps       []Step                 `mapstructure:"steps"`
	Variables   map[string]interface{} `mapstructure:"variables"`
}

// LoadWorkflow loads a workflow definition from a file.
func LoadWorkflow(filePath string) (*Workflow, error) {
	v := viper.New()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("workflow file not found: %s", filePath)
	}

	v.SetConfigFile(filePath)

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext != "" {
		v.SetConfigType(ext[1:])
	} else {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading workflow file: %w", err)
	}

	workflow := &Workflow{}
	if err := v.Unmarshal(workflow); err != nil {
		return nil, fmt.Errorf("error parsing workflow: %w", err)
	}

	if workflow.Variables == nil {
		workflow.Variables = make(map[string]interface{})
	}
	addSystemVariables(workflow)

	if err := processTemplates(workflow); err != nil {
		return nil, fmt.Errorf("error processing templates: %w", err)
	}

	return workflow, nil
}

// addSystemVariables seeds the variables map with values steps commonly
// interpolate.
func addSystemVariables(workflow *Workflow) {
	workflow.Variables["temp_dir"] = config.Instance.Pack.TempDir
	workflow.Variables["output_dir"] = config.Instance.Unpack.OutputDir

	if cwd, err := os.Getwd(); err == nil {
		workflow.Variables["current_dir"] = cwd
	}

	workflow.Variables["timestamp"] = fmt.Sprintf("%d", time.Now().Unix())
}

// processTemplates expands {{.variable}} templates in string step
// parameters.
func processTemplates(workflow *Workflow) error {
	for i, step := range workflow.Steps {
		processedParams := make(map[string]interface{})
		for key, value := range step.Parameters {
			if strValue, ok := value.(string); ok {
				processed, err := processTemplate(strValue, workflow.Variables)
				if err != nil {
					return fmt.Errorf("error processing template in step %s, parameter %s: %w", step.Name, key, err)
				}
				processedParams[key] = processed
			} else {
				processedParams[key] = value
			}
		}
		workflow.Steps[i].Parameters = processedParams
	}
	return nil
}

func processTemplate(templateString string, variables map[string]interface{}) (string, error) {
	if !strings.Contains(templateString, "{{") && !strings.Contains(templateString, "}}") {
		return templateString, nil
	}

	tmpl, err := template.New("inline").Parse(templateString)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, variables); err != nil {
		return "", err
	}

	return buffer.String(), nil
}

// ValidateWorkflow validates the workflow structure and parameters.
func ValidateWorkflow(workflow *Workflow) []error {
	var errs []error

	if workflow.Name == "" {
		errs = append(errs, fmt.Errorf("workflow name is required"))
	}
	if len(workflow.Steps) == 0 {
		errs = append(errs, fmt.Errorf("workflow must contain at least one step"))
	}

	for i, step := range workflow.Steps {
		if step.Name == "" {
			errs = append(errs, fmt.Errorf("step %d: name is required", i+1))
		}
		if step.Type == "" {
			errs = append(errs, fmt.Errorf("step %d (%s): type is required", i+1, step.Name))
			continue
		}
		if _, ok := stepHandlerRegistry()[step.Type]; !ok {
			errs = append(errs, fmt.Errorf("step %d (%s): invalid type '%s'", i+1, step.Name, step.Type))
			continue
		}
		for _, err := range validateStepParameters(step) {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err))
		}
	}

	return errs
}

// ExecuteWorkflow runs the workflow steps in order. A step's failure is
// logged and does not abort the remaining steps; the returned error
// reflects whether every step succeeded.
func ExecuteWorkflow(workflow *Workflow) error {
	logger.LogInfo("starting workflow execution", map[string]interface{}{
		"workflow": workflow.Name,
		"steps":    len(workflow.Steps),
	})

	registry := stepHandlerRegistry()
	failed := 0

	for i, step := range workflow.Steps {
		logger.LogInfo(fmt.Sprintf("executing step %d/%d: %s", i+1, len(workflow.Steps), step.Name),
			map[string]interface{}{
				"type":        step.Type,
				"description": step.Description,
			})

		if step.Condition != "" {
			shouldRun, err := evaluateCondition(step.Condition, workflow.Variables)
			if err != nil {
				return fmt.Errorf("error evaluating condition for step '%s': %w", step.Name, err)
			}
			if !shouldRun {
				logger.LogInfo(fmt.Sprintf("skipping step %d/%d: %s (condition not met)", i+1, len(workflow.Steps), step.Name), nil)
				continue
			}
		}

		handler := registry[step.Type]
		result, err := handler(step, workflow.Variables)
		if err != nil {
			logger.LogError(fmt.Sprintf("step '%s' failed", step.Name), err, nil)
			failed++
			continue
		}

		for k, v := range result {
			workflow.Variables[k] = v
		}

		logger.LogInfo(fmt.Sprintf("completed step %d/%d: %s", i+1, len(workflow.Steps), step.Name), nil)
	}

	if failed > 0 {
		return fmt.Errorf("workflow '%s': %d of %d steps failed", workflow.Name, failed, len(workflow.Steps))
	}

	logger.LogInfo("workflow execution completed", map[string]interface{}{
		"workflow": workflow.Name,
	})
	return nil
}

// evaluateCondition expands a condition template and interprets the
// result as a boolean.
func evaluateCondition(condition string, variables map[string]interface{}) (bool, error) {
	result, err := processTemplate(condition, variables)
	if err != nil {
		return false, err
	}

	result = strings.TrimSpace(strings.ToLower(result))
	return result == "true" || result == "yes" || result == "1", nil
}
