package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	// chat
	chatCmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Send a chat message to the gear assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(newClient(apiFlag, apiKeyFlag), strings.Join(args, " "), os.Stdout)
		},
	}
	rootCmd.AddCommand(chatCmd)

	// gear
	gearCmd := &cobra.Command{Use: "gear", Short: "Gear inventory operations"}

	var category string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List gear items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGearList(newClient(apiFlag, apiKeyFlag), category, os.Stdout)
		},
	}
	listCmd.Flags().StringVarP(&category, "category", "c", "", "Only list this category")
	gearCmd.AddCommand(listCmd)

	var add gearInput
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a gear item",
		RunE: func(cmd *cobra.Command, args []string) error {
			add.costSet = cmd.Flags().Changed("cost")
			add.weightSet = cmd.Flags().Changed("weight")
			return runGearAdd(newClient(apiFlag, apiKeyFlag), add, os.Stdout)
		},
	}
	addCmd.Flags().StringVarP(&add.Brand, "brand", "b", "", "Brand (required)")
	addCmd.Flags().StringVarP(&add.Model, "model", "m", "", "Model (required)")
	addCmd.Flags().StringVarP(&add.Category, "category", "c", "", "Category (required)")
	addCmd.Flags().StringVar(&add.Size, "size", "", "Size")
	addCmd.Flags().Float64Var(&add.Cost, "cost", 0, "Purchase cost")
	addCmd.Flags().IntVar(&add.Weight, "weight", 0, "Weight in grams")
	_ = addCmd.MarkFlagRequired("brand")
	_ = addCmd.MarkFlagRequired("model")
	_ = addCmd.MarkFlagRequired("category")
	gearCmd.AddCommand(addCmd)
	rootCmd.AddCommand(gearCmd)

	// history
	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent chat history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(newClient(apiFlag, apiKeyFlag), limit, os.Stdout)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	rootCmd.AddCommand(historyCmd)

	// weather
	var dates string
	weatherCmd := &cobra.Command{
		Use:   "weather LOCATION",
		Short: "Show weather for a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeather(newClient(apiFlag, apiKeyFlag), args[0], dates, os.Stdout)
		},
	}
	weatherCmd.Flags().StringVarP(&dates, "dates", "d", "", "YYYY-MM-DD or YYYY-MM-DD/YYYY-MM-DD")
	rootCmd.AddCommand(weatherCmd)

	// stats
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show inventory statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(newClient(apiFlag, apiKeyFlag), os.Stdout)
		},
	}
	rootCmd.AddCommand(statsCmd)
}

func runChat(c *client, message string, out io.Writer) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	data, err := c.do(http.MethodPost, "/api/chat", nil, map[string]string{"message": message})
	if err != nil {
		return err
	}
	var reply struct {
		Response  string `json:"response"`
		Functions []struct {
			Name string `json:"name"`
		} `json:"functions"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("decode chat reply: %w", err)
	}
	fmt.Fprintln(out, reply.Response)
	for _, f := range reply.Functions {
		fmt.Fprintf(out, "  → %s\n", f.Name)
	}
	return nil
}

func runGearList(c *client, category string, out io.Writer) error {
	var query map[string]string
	if category != "" {
		query = map[string]string{"category": category}
	}
	data, err := c.do(http.MethodGet, "/api/gear", query, nil)
	if err != nil {
		return err
	}
	return printJSON(out, data)
}

type gearInput struct {
	Brand, Model, Category, Size string
	Cost                         float64
	Weight                       int
	costSet, weightSet           bool
}

func runGearAdd(c *client, in gearInput, out io.Writer) error {
	if in.Brand == "" || in.Model == "" || in.Category == "" {
		return fmt.Errorf("--brand, --model and --category required")
	}
	payload := map[string]interface{}{"brand": in.Brand, "model": in.Model, "category": in.Category}
	if in.Size != "" {
		payload["size"] = in.Size
	}
	if in.costSet {
		payload["cost"] = in.Cost
	}
	if in.weightSet {
		payload["weightGrams"] = in.Weight
	}
	data, err := c.do(http.MethodPost, "/api/gear", nil, payload)
	if err != nil {
		return err
	}
	return printJSON(out, data)
}

func runHistory(c *client, limit int, out io.Writer) error {
	data, err := c.do(http.MethodGet, "/api/chat/history", map[string]string{"limit": strconv.Itoa(limit)}, nil)
	if err != nil {
		return err
	}
	var entries []struct {
		Message  string `json:"message"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}
	for _, e := range entries {
		fmt.Fprintf(out, "you> %s\ngearbox> %s\n\n", e.Message, e.Response)
	}
	return nil
}

func runWeather(c *client, location, dates string, out io.Writer) error {
	var query map[string]string
	if dates != "" {
		query = map[string]string{"dates": dates}
	}
	data, err := c.do(http.MethodGet, "/api/weather/"+url.PathEscape(location), query, nil)
	if err != nil {
		return err
	}
	return printJSON(out, data)
}

func runStats(c *client, out io.Writer) error {
	data, err := c.do(http.MethodGet, "/api/analytics/stats", nil, nil)
	if err != nil {
		return err
	}
	return printJSON(out, data)
}
