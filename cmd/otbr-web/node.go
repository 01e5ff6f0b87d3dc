package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/miguelemosreverte/otbr-web/internal/cli"
	"github.com/miguelemosreverte/otbr-web/internal/protocol"
)

func nodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage the Thread interface of the border router",
	}

	stateCmd := &cobra.Command{
		Use:   "state [enable|disable]",
		Short: "Show the device role, or enable or disable Thread",
		Example: `  otbr-web node state            # Print the current role
  otbr-web node state disable    # Stop Thread before changing the active dataset`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				err := runOperation(cmd.Context(), "Thread "+args[0], func(ctx context.Context) error {
					return client.SetNodeState(ctx, args[0])
				})
				if err != nil {
					return err
				}
			}
			state, err := client.NodeState(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(keyValues([][2]string{{"State", state}}))
			return nil
		},
	}

	var yes bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase the node's persistent network data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("node reset erases the network configuration; pass --yes to confirm")
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runOperation(cmd.Context(), "Node reset", client.ResetNode)
		},
	}
	resetCmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")

	cmd.AddCommand(stateCmd, resetCmd)
	return cmd
}

func datasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Show or update the operational datasets",
	}

	var showTLVs bool
	showCmd := &cobra.Command{
		Use:       "show active|pending",
		Short:     "Print a dataset as JSON or hex TLVs",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{protocol.DatasetActive, protocol.DatasetPending},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if err := protocol.ValidateDatasetKind(kind); err != nil {
				return err
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			var ds interface{}
			switch {
			case showTLVs:
				tlvs, err := client.DatasetTLVs(cmd.Context(), kind)
				if err == nil {
					fmt.Println(tlvs)
				}
				return noDataset(kind, err)
			case kind == protocol.DatasetActive:
				ds, err = client.ActiveDataset(cmd.Context())
			default:
				ds, err = client.PendingDataset(cmd.Context())
			}
			if err != nil {
				return noDataset(kind, err)
			}
			return printJSON(ds)
		},
	}
	showCmd.Flags().BoolVar(&showTLVs, "tlvs", false, "Print hex encoded TLVs instead of JSON")

	var file, tlvs string
	setCmd := &cobra.Command{
		Use:   "set active|pending",
		Short: "Merge fields into a dataset",
		Long: `Merge fields into a dataset from a JSON file or from hex encoded TLVs.

The active dataset can only be changed while Thread is disabled.`,
		Example: `  otbr-web node state disable
  otbr-web dataset set active --file dataset.json
  otbr-web dataset set pending --tlvs 0e080000000000010000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if err := protocol.ValidateDatasetKind(kind); err != nil {
				return err
			}
			if (file == "") == (tlvs == "") {
				return errors.New("exactly one of --file or --tlvs is required")
			}
			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			var set func(ctx context.Context) (bool, error)
			if tlvs != "" {
				set = func(ctx context.Context) (bool, error) { return client.SetDatasetTLVs(ctx, kind, tlvs) }
			} else {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read dataset file: %w", err)
				}
				set, err = datasetSetter(client, kind, data)
				if err != nil {
					return err
				}
			}

			var created bool
			err = runOperation(cmd.Context(), "Update "+kind+" dataset", func(ctx context.Context) error {
				var err error
				created, err = set(ctx)
				return err
			})
			if err == nil && created {
				fmt.Println(dimStyle.Render("New " + kind + " dataset created"))
			}
			return err
		},
	}
	setCmd.Flags().StringVar(&file, "file", "", "JSON file with the dataset fields to set")
	setCmd.Flags().StringVar(&tlvs, "tlvs", "", "Hex encoded dataset TLVs")

	cmd.AddCommand(showCmd, setCmd)
	return cmd
}

// datasetSetter decodes a JSON dataset file for the given kind.
func datasetSetter(client *cli.Client, kind string, data []byte) (func(ctx context.Context) (bool, error), error) {
	if kind == protocol.DatasetActive {
		var ds protocol.ActiveDataset
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("invalid dataset file: %w", err)
		}
		return func(ctx context.Context) (bool, error) { return client.SetActiveDataset(ctx, ds) }, nil
	}
	var ds protocol.PendingDataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("invalid dataset file: %w", err)
	}
	return func(ctx context.Context) (bool, error) { return client.SetPendingDataset(ctx, ds) }, nil
}

func noDataset(kind string, err error) error {
	if errors.Is(err, cli.ErrNoDataset) {
		return fmt.Errorf("no %s dataset is configured", kind)
	}
	return err
}
