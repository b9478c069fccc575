package sequences

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/opencode-ai/cadence/internal/timeline"
)

// Build renders seq's messages with vars applied and returns a runnable
// timeline sequence whose actions send them to sink. The sequence's own
// policy is applied before opts, so opts may override it.
func Build(seq *Sequence, vars map[string]string, sink Sink, opts ...timeline.Option) (*timeline.Sequence, error) {
	if seq == nil {
		return nil, fmt.Errorf("sequence is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	data, err := resolveVars(seq, vars)
	if err != nil {
		return nil, err
	}

	steps := make([]timeline.Step, 0, len(seq.Steps))
	for i, step := range seq.Steps {
		delay, err := parseDelay(step.Delay)
		if err != nil {
			return nil, fmt.Errorf("build sequence %q step %d: %w", seq.Name, i+1, err)
		}
		text, err := renderText(seq.Name, step.Content, data)
		if err != nil {
			return nil, fmt.Errorf("build sequence %q step %d: %w", seq.Name, i+1, err)
		}

		msg := Message{
			Sequence: seq.Name,
			Step:     i,
			StepName: step.Name,
			Level:    step.Level,
			Text:     text,
		}
		steps = append(steps, timeline.Step{
			Name:   step.Name,
			Delay:  delay,
			Action: logAction(sink, msg),
		})
	}

	policy, err := timeline.ParsePolicy(seq.Policy)
	if err != nil {
		return nil, err
	}
	options := append([]timeline.Option{timeline.WithPolicy(policy)}, opts...)
	return timeline.New(seq.Name, steps, options...)
}

func logAction(sink Sink, msg Message) timeline.Action {
	return func(ctx context.Context) error {
		out := msg
		out.RunID = timeline.RunIDFromContext(ctx)
		return sink.Log(ctx, out)
	}
}

func resolveVars(seq *Sequence, vars map[string]string) (map[string]string, error) {
	data := make(map[string]string, len(vars))
	for key, value := range vars {
		data[key] = value
	}

	for _, variable := range seq.Variables {
		value := strings.TrimSpace(data[variable.Name])
		if value != "" {
			continue
		}
		if variable.Default != "" {
			data[variable.Name] = variable.Default
			continue
		}
		if variable.Required {
			return nil, fmt.Errorf("missing required variable %q", variable.Name)
		}
	}

	return data, nil
}

func renderText(name, content string, data map[string]string) (string, error) {
	parsed, err := template.New(name).
		Funcs(template.FuncMap{"default": defaultValue}).
		Option("missingkey=zero").
		Parse(content)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", name, err)
	}

	var out strings.Builder
	if err := parsed.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}

	return out.String(), nil
}

func defaultValue(def string, value any) string {
	if value == nil {
		return def
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	default:
		text := strings.TrimSpace(fmt.Sprint(v))
		if text == "" {
			return def
		}
		return text
	}
}
