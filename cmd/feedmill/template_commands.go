package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/mapping"
	"github.com/feedmill/feedmill/internal/store"
)

func newTemplateCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage mapping templates",
	}
	cmd.AddCommand(newTemplateListCommand(cctx))
	cmd.AddCommand(newTemplateImportCommand(cctx))
	cmd.AddCommand(newTemplateExportCommand(cctx))
	return cmd
}

func providerByCode(ctx context.Context, st *store.Store, code string) (*store.Provider, error) {
	provider, err := st.GetProviderByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %q not found", code)
	}
	return provider, nil
}

func newTemplateListCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <provider>",
		Short: "List a provider's templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				provider, err := providerByCode(ctx, st, args[0])
				if err != nil {
					return err
				}
				templates, actives, err := st.ListTemplates(ctx, provider.ID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(templates))
				for i, t := range templates {
					rows = append(rows, []string{
						t.Name,
						strconv.Itoa(len(t.ActiveLines())),
						yesNo(actives[i]),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Name", "Lines", "Active"}, rows, 1))
				return nil
			})
		},
	}
}

func newTemplateImportCommand(cctx *commandContext) *cobra.Command {
	var activate bool
	cmd := &cobra.Command{
		Use:   "import <provider> <file>",
		Short: "Import a JSON mapping template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				provider, err := providerByCode(ctx, st, args[0])
				if err != nil {
					return err
				}
				data, err := os.ReadFile(args[1])
				if err != nil {
					return fmt.Errorf("read template file: %w", err)
				}
				template, err := mapping.ImportJSON(data)
				if err != nil {
					return err
				}
				if _, err := st.SaveTemplate(ctx, provider.ID, template, activate); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported template %q for %s (active: %s)\n",
					template.Name, provider.Code, yesNo(activate))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activate, "activate", true, "Mark the template active for its provider")
	return cmd
}

func newTemplateExportCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <provider> <name>",
		Short: "Export a mapping template as JSON to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				provider, err := providerByCode(ctx, st, args[0])
				if err != nil {
					return err
				}
				template, err := st.GetTemplate(ctx, provider.ID, args[1])
				if err != nil {
					return err
				}
				if template == nil {
					return fmt.Errorf("template %q not found for %s", args[1], provider.Code)
				}
				data, err := mapping.ExportJSON(template)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			})
		},
	}
}
