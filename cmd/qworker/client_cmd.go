package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qworkerhq/qworker/pkg/client"
	"github.com/qworkerhq/qworker/pkg/registry"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Dispatch calls to qworker workers",
}

var clientRunCmd = &cobra.Command{
	Use:   "run <handler> [json-args...]",
	Short: "Run a handler on a worker and print its decoded result",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClientRun,
}

var clientHealthCmd = &cobra.Command{
	Use:   "health <addr>",
	Short: "Probe a worker's health endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientHealth,
}

var clientServersCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the registry's current worker snapshot",
	RunE:  runClientServers,
}

func init() {
	clientRunCmd.Flags().String("addr", "", "Worker address (host:port); if empty, one is chosen via the registry")
	clientRunCmd.Flags().Bool("queued", false, "Run via the background queue instead of immediately")
	registerClientRegistryFlags(clientRunCmd)
	registerClientRegistryFlags(clientServersCmd)

	clientCmd.AddCommand(clientRunCmd)
	clientCmd.AddCommand(clientHealthCmd)
	clientCmd.AddCommand(clientServersCmd)
}

func registerClientRegistryFlags(cmd *cobra.Command) {
	cmd.Flags().String("registry-url", "http://127.0.0.1:9400", "Registry server URL")
	cmd.Flags().String("registry-list", "", "Registry list name")
}

func newClientFromFlags(cmd *cobra.Command) *client.Client {
	url, _ := cmd.Flags().GetString("registry-url")
	list, _ := cmd.Flags().GetString("registry-list")
	return client.New(registry.NewClient(url, list))
}

func runClientRun(cmd *cobra.Command, args []string) error {
	handlerID := args[0]
	rawArgs := args[1:]

	values := make([]any, len(rawArgs))
	for i, a := range rawArgs {
		var v any
		if err := json.Unmarshal([]byte(a), &v); err != nil {
			return fmt.Errorf("arg %d (%q) is not valid JSON: %w", i, a, err)
		}
		values[i] = v
	}

	addr, _ := cmd.Flags().GetString("addr")
	queued, _ := cmd.Flags().GetBool("queued")

	c := newClientFromFlags(cmd)

	result, err := c.Run(context.Background(), addr, handlerID, values, nil, queued)
	if err != nil {
		return err
	}

	out, err := json.Marshal(result)
	if err != nil {
		fmt.Println(result)
		return nil
	}
	fmt.Println(string(out))
	return nil
}

func runClientHealth(cmd *cobra.Command, args []string) error {
	c := client.New(nil)
	status, err := c.Health(context.Background(), args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runClientServers(cmd *cobra.Command, args []string) error {
	c := newClientFromFlags(cmd)
	servers, err := c.GetServers()
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(servers, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
