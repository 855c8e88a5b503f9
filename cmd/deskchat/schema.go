package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/invopop/jsonschema"
	"github.com/urfave/cli/v3"
)

// wireTypes are the request and event payloads a frontend exchanges with the backend
var wireTypes = map[string]any{
	"chat-request":  &messages.ChatRequest{},
	"title":         &messages.TitleUpdate{},
	"conversation":  &messages.Conversation{},
	"model":         &messages.Model{},
	"upload-result": &messages.UploadResult{},
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:      "schema",
		Usage:     "Print the JSON Schema of a wire type",
		ArgsUsage: "[" + strings.Join(wireTypeNames(), "|") + "]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				name = "chat-request"
			}
			schema, err := wireSchema(name)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(schema)
		},
	}
}

// wireSchema reflects the named wire type into a standalone schema
func wireSchema(name string) (*jsonschema.Schema, error) {
	v, ok := wireTypes[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q (valid: %s)", name, strings.Join(wireTypeNames(), ", "))
	}
	r := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	return r.Reflect(v), nil
}

func wireTypeNames() []string {
	names := make([]string, 0, len(wireTypes))
	for name := range wireTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
