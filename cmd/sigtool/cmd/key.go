// file: cmd/sigtool/cmd/key.go
package cmd

import (
	"encoding/hex"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"webhook-gateway/internal/signature"
)

type keyInfo struct {
	Curve       string `yaml:"curve"`
	Fingerprint string `yaml:"fingerprint"`
	X           string `yaml:"x"`
	Y           string `yaml:"y"`
}

func newKeyCmd() *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Work with sender public keys",
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect --key <public_key.pem>",
		Short: "Load a PEM public key exactly as the gateway would and describe it",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPath, _ := cmd.Flags().GetString("key")

			key, err := signature.LoadPublicKeyFile(keyPath)
			if err != nil {
				return err
			}

			x, y := key.Point()
			out, err := yaml.Marshal(keyInfo{
				Curve:       key.CurveName(),
				Fingerprint: key.Fingerprint(),
				X:           hex.EncodeToString(x),
				Y:           hex.EncodeToString(y),
			})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	inspectCmd.Flags().String("key", "", "Path to the PEM public key (required)")
	inspectCmd.MarkFlagRequired("key")

	keyCmd.AddCommand(inspectCmd)
	return keyCmd
}
