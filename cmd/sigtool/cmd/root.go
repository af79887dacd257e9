// file: cmd/sigtool/cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the sigtool command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sigtool",
		Short: "Inspect keys and check ECDSA P-256 webhook signatures offline.",
		Long: `sigtool works with the same key and signature formats the webhook gateway
accepts. Use it to confirm a sender's public key loads, convert signatures
between DER and raw r||s form, and verify or produce test signatures.`,
		SilenceUsage: true,
		// If a subcommand is not provided, default to showing help.
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	root.AddCommand(newKeyCmd())
	root.AddCommand(newConvertCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newSignCmd())
	return root
}

// readPayload returns the bytes named by --payload (a file) or --data (inline).
func readPayload(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("payload")
	data, _ := cmd.Flags().GetString("data")

	switch {
	case path != "" && cmd.Flags().Changed("data"):
		return nil, fmt.Errorf("use either --payload or --data, not both")
	case path != "":
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		return payload, nil
	case cmd.Flags().Changed("data"):
		return []byte(data), nil
	default:
		return nil, fmt.Errorf("one of --payload or --data is required")
	}
}

func addPayloadFlags(cmd *cobra.Command) {
	cmd.Flags().String("payload", "", "Path to a file holding the exact signed bytes")
	cmd.Flags().String("data", "", "Signed bytes given inline")
}
