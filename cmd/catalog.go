package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"floatai/internal/model"
	"floatai/internal/service"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage model configurations",
}

var (
	modelName    string
	modelBaseURL string
	modelID      string
	modelAPIKey  string
)

var modelsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an OpenAI-compatible model",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		m, err := service.NewCatalogService(a.store).CreateModel(model.ModelRequest{
			Name:    modelName,
			APIKey:  modelAPIKey,
			BaseURL: modelBaseURL,
			ModelID: modelID,
		})
		if err != nil {
			return err
		}
		cmd.Printf("added model %s (%s)\n", m.Name, m.ID)
		return nil
	},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List model configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		catalog := service.NewCatalogService(a.store)
		models, err := catalog.ListModels()
		if err != nil {
			return err
		}
		settings, err := catalog.Settings()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tNAME\tMODEL\tBASE URL")
		for _, m := range models {
			mark := ""
			if m.ID == settings[model.SettingSelectedModel] {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, m.ID, m.Name, m.ModelID, m.BaseURL)
		}
		return w.Flush()
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		settings, err := service.NewCatalogService(a.store).Settings()
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("%s=%s\n", k, settings[k])
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		return service.NewCatalogService(a.store).UpdateSettings(map[string]string{args[0]: args[1]})
	},
}

func init() {
	modelsAddCmd.Flags().StringVar(&modelName, "name", "", "display name")
	modelsAddCmd.Flags().StringVar(&modelBaseURL, "base-url", "https://api.deepseek.com", "OpenAI-compatible base url")
	modelsAddCmd.Flags().StringVar(&modelID, "model", "deepseek-chat", "provider model id")
	modelsAddCmd.Flags().StringVar(&modelAPIKey, "api-key", "", "api key (falls back to the api_key setting)")
	modelsAddCmd.MarkFlagRequired("name")

	modelsCmd.AddCommand(modelsAddCmd)
	modelsCmd.AddCommand(modelsListCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}
