package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/resources"
	"github.com/teemow/calview/internal/server"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate the markdown reference of the MCP tools from their registered
definitions, write tools included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(cmd.Context(), outputFile, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

var errDocsOnly = errors.New("calendar backends are not available while generating docs")

// docTools registers every tool, write tools included, against a server
// context without credentials and returns their definitions.
func docTools(ctx context.Context) ([]mcp.Tool, error) {
	authSvc := auth.New(auth.ProviderConfig{
		Kind:        auth.ProviderGoogle,
		ClientID:    "generate-docs",
		RedirectURL: "http://localhost/auth/callback",
	}, auth.NewMemoryStore())
	if err := authSvc.Init(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = authSvc.Close() }()

	factory := func(context.Context, auth.Account, oauth2.TokenSource) (calendar.Backend, error) {
		return nil, errDocsOnly
	}
	serverContext, err := server.NewServerContext(ctx, authSvc, factory, server.WithAllowWrite(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return nil, err
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}
	return tools, nil
}

func runGenerateDocs(ctx context.Context, outputFile string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tools, err := docTools(ctx)
	if err != nil {
		return err
	}

	markdown := generateToolsMarkdown(tools)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Fprint(stdout, markdown)
	}

	return nil
}

// generateToolsMarkdown renders the reference of tools, grouped by the
// prefix of their names
func generateToolsMarkdown(tools []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools available when calview runs as an MCP server (`calview serve`).\n\n")
	sb.WriteString("**Note:** Generated by `calview generate-docs` from the registered tool definitions.\n\n")

	groups := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		groups[category] = append(groups[category], tool)
	}
	categories := make([]string, 0, len(groups))
	for category := range groups {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	sb.WriteString("## Table of Contents\n\n")
	for _, category := range categories {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, strings.ToLower(strings.ReplaceAll(category, " ", "-")))
	}
	sb.WriteString("\n")

	sb.WriteString("## Accounts\n\n")
	sb.WriteString("Every tool takes an optional `account` argument with the e-mail of a signed-in account. ")
	sb.WriteString("Without it the current account is used; `calview accounts` lists them and `calview login` adds one. ")
	sb.WriteString("The same list is available to clients as the `" + resources.AccountsURI + "` resource.\n\n")
	sb.WriteString("Tools marked **write** are only registered when the server runs with `--allow-write`.\n\n")

	for _, category := range categories {
		group := groups[category]
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })

		fmt.Fprintf(&sb, "## %s\n\n", category)
		for _, tool := range group {
			sb.WriteString(generateToolMarkdown(tool))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func getCategoryFromToolName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	switch prefix {
	case "calendar":
		return "Calendar Tools"
	default:
		return "Other"
	}
}

// generateToolMarkdown renders one tool with a table of its arguments
func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	access := "write"
	if ro := tool.Annotations.ReadOnlyHint; ro != nil && *ro {
		access = "read-only"
	}
	fmt.Fprintf(&sb, "**%s**\n\n", access)
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		return sb.String()
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("| Argument | Type | Required | Default | Description |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		required := "no"
		if slices.Contains(tool.InputSchema.Required, name) {
			required = "yes"
		}
		def := ""
		if v, ok := prop["default"]; ok {
			def = fmt.Sprintf("`%v`", v)
		}
		desc, _ := prop["description"].(string)
		if values := enumValues(prop); len(values) > 0 {
			desc = strings.TrimSpace(desc + " One of: " + strings.Join(values, ", ") + ".")
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %s |\n",
			name, propertyType(prop), required, def, strings.ReplaceAll(desc, "|", "\\|"))
	}
	return sb.String()
}

func propertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

// enumValues returns the allowed values of prop. Schemas built in process
// hold a []string, decoded ones a []any.
func enumValues(prop map[string]any) []string {
	switch v := prop["enum"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}
