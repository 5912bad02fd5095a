package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stepwise-ai/stepwise/internal/registry"
)

func registerProfile(r *registry.Registry, deps Deps) {
	store := deps.Profile

	r.Register(registry.Spec{
		Name:        "read_profile",
		Description: "Read a field from the user profile, or the whole profile when no field is given.",
		Params: []registry.Param{
			{Name: "field", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			field := registry.GetString(args, "field", "")
			if field != "" {
				value, ok, err := store.GetField(field)
				if err != nil {
					return "", err
				}
				if !ok {
					return "", fmt.Errorf("profile field not set: %s", field)
				}
				return fmt.Sprintf("%s: %s", field, value), nil
			}
			fields, err := store.Fields()
			if err != nil {
				return "", err
			}
			if len(fields) == 0 {
				return "Profile is empty.", nil
			}
			names := make([]string, 0, len(fields))
			for name := range fields {
				names = append(names, name)
			}
			sort.Strings(names)
			var sb strings.Builder
			for _, name := range names {
				fmt.Fprintf(&sb, "%s: %s\n", name, fields[name])
			}
			return sb.String(), nil
		},
	})

	r.Register(registry.Spec{
		Name:        "update_profile",
		Description: "Set a field in the user profile to a new value.",
		Params: []registry.Param{
			{Name: "field", Required: true},
			{Name: "value", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			field := registry.GetString(args, "field", "")
			value := registry.GetString(args, "value", "")
			if field == "" {
				return "", fmt.Errorf("field is required")
			}
			if err := store.SetField(field, value); err != nil {
				return "", err
			}
			return fmt.Sprintf("Updated profile field %s", field), nil
		},
	})

	r.Register(registry.Spec{
		Name:        "append_note",
		Description: "Append a timestamped note to the user profile under a category.",
		Params: []registry.Param{
			{Name: "category", Required: true},
			{Name: "content", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			category := registry.GetString(args, "category", "")
			content := registry.GetString(args, "content", "")
			if content == "" {
				return "", fmt.Errorf("content is required")
			}
			if category == "" {
				category = "general"
			}
			if err := store.AppendNote(category, content); err != nil {
				return "", err
			}
			return fmt.Sprintf("Noted under %s", category), nil
		},
	})
}
