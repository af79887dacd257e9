// file: cmd/sigtool/cmd/convert.go
package cmd

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"webhook-gateway/internal/signature"
)

func newConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert --signature <base64> [--to p1363|der]",
		Short: "Convert a base64 signature between DER and raw r||s (P1363) form",
		RunE: func(cmd *cobra.Command, args []string) error {
			sigB64, _ := cmd.Flags().GetString("signature")
			to, _ := cmd.Flags().GetString("to")

			target, err := signature.ParseEncoding(to)
			if err != nil {
				return err
			}

			raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigB64))
			if err != nil {
				return fmt.Errorf("signature is not valid base64: %w", err)
			}

			var converted []byte
			switch target {
			case signature.EncodingP1363:
				converted, err = signature.DERToP1363(raw)
			default:
				converted, err = signature.P1363ToDER(raw)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(converted))
			return err
		},
	}
	convertCmd.Flags().String("signature", "", "Base64 signature to convert (required)")
	convertCmd.Flags().String("to", "p1363", "Target encoding: p1363 (from DER) or der (from P1363)")
	convertCmd.MarkFlagRequired("signature")
	return convertCmd
}
