package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func namesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "names",
		Short: "List every schema's id, name, and type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp schemaListResponse
			if err := newClient(addr).get("/schemas", nil, &resp); err != nil {
				return fmt.Errorf("list schemas: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE")
			for _, s := range resp.Schemas {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Type)
			}
			return tw.Flush()
		},
	}
}

func metadataCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <id>",
		Short: "Print a schema's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s schemaView
			if err := newClient(addr).get("/schemas/"+args[0], nil, &s); err != nil {
				return fmt.Errorf("get schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ID: %s\nName: %s\nType: %s\nTopicOrQueue: %s\nQueryAddress: %s\n",
				s.ID, s.Name, s.Type, s.TopicOrQueue, s.QueryAddress)
			return nil
		},
	}
}

func definitionCommand() *cobra.Command {
	var versionReq string

	cmd := &cobra.Command{
		Use:   "definition <id>",
		Short: "Print the JSON Schema definition resolving a version requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if versionReq != "" {
				query.Set("version_req", versionReq)
			}

			var def definitionView
			if err := newClient(addr).get("/schemas/"+args[0]+"/definition", query, &def); err != nil {
				return fmt.Errorf("get definition: %w", err)
			}

			pretty, err := json.MarshalIndent(def.Definition, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\n%s\n", def.Version, pretty)
			return nil
		},
	}

	cmd.Flags().StringVar(&versionReq, "version-req", "", "version requirement (e.g. ^1.2.0, ~1.2.0, 1.2.3); defaults to latest")
	return cmd
}

func versionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List every stored version for a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp versionsResponse
			if err := newClient(addr).get("/schemas/"+args[0]+"/versions", nil, &resp); err != nil {
				return fmt.Errorf("get versions: %w", err)
			}
			for _, v := range resp.Versions {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}

func addCommand() *cobra.Command {
	var (
		name           string
		schemaType     string
		topicOrQueue   string
		queryAddress   string
		definitionFile string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new schema with its first definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			definition, err := readFileOrStdin(definitionFile)
			if err != nil {
				return fmt.Errorf("read definition: %w", err)
			}

			var resp addSchemaResponse
			req := addSchemaRequest{
				Name: name, Type: schemaType,
				TopicOrQueue: topicOrQueue, QueryAddress: queryAddress,
				Definition: definition,
			}
			if err := newClient(addr).post("/schemas", req, &resp); err != nil {
				return fmt.Errorf("add schema: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", resp.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "schema name")
	cmd.Flags().StringVar(&schemaType, "type", "", "DocumentStorage or Timeseries")
	cmd.Flags().StringVar(&topicOrQueue, "topic", "", "topic or queue name")
	cmd.Flags().StringVar(&queryAddress, "query-address", "", "query-service address")
	cmd.Flags().StringVar(&definitionFile, "definition-file", "", "path to a JSON Schema document, or - for stdin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("definition-file")

	return cmd
}

func addVersionCommand() *cobra.Command {
	var (
		version        string
		definitionFile string
	)

	cmd := &cobra.Command{
		Use:   "add-version <id>",
		Short: "Add a new version to an existing schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			definition, err := readFileOrStdin(definitionFile)
			if err != nil {
				return fmt.Errorf("read definition: %w", err)
			}

			req := addVersionRequest{Version: version, Definition: definition}
			if err := newClient(addr).post("/schemas/"+args[0]+"/versions", req, nil); err != nil {
				return fmt.Errorf("add schema version: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "semantic version, must be greater than every stored version")
	cmd.Flags().StringVar(&definitionFile, "definition-file", "", "path to a JSON Schema document, or - for stdin")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("definition-file")

	return cmd
}

func updateCommand() *cobra.Command {
	var (
		name         string
		schemaType   string
		topicOrQueue string
		queryAddress string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch a schema's metadata fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := updateSchemaRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("type") {
				req.Type = &schemaType
			}
			if cmd.Flags().Changed("topic") {
				req.TopicOrQueue = &topicOrQueue
			}
			if cmd.Flags().Changed("query-address") {
				req.QueryAddress = &queryAddress
			}

			if err := newClient(addr).patch("/schemas/"+args[0], req); err != nil {
				return fmt.Errorf("update schema: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new schema name")
	cmd.Flags().StringVar(&schemaType, "type", "", "new schema type")
	cmd.Flags().StringVar(&topicOrQueue, "topic", "", "new topic or queue")
	cmd.Flags().StringVar(&queryAddress, "query-address", "", "new query-service address")

	return cmd
}

func validateCommand() *cobra.Command {
	var (
		versionReq string
		valueFile  string
	)

	cmd := &cobra.Command{
		Use:   "validate <id>",
		Short: "Validate a JSON document against a schema's definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readFileOrStdin(valueFile)
			if err != nil {
				return fmt.Errorf("read value: %w", err)
			}

			var resp validateResponse
			req := validateRequest{VersionReq: versionReq, Value: value}
			if err := newClient(addr).post("/schemas/"+args[0]+"/validate", req, &resp); err != nil {
				return fmt.Errorf("validate value: %w", err)
			}

			if len(resp.Errors) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "valid")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "invalid:")
			for _, e := range resp.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&versionReq, "version-req", "", "version requirement; defaults to latest")
	cmd.Flags().StringVar(&valueFile, "value-file", "", "path to a JSON document, or - for stdin")
	_ = cmd.MarkFlagRequired("value-file")

	return cmd
}

func readFileOrStdin(path string) (json.RawMessage, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
