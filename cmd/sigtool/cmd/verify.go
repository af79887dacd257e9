// file: cmd/sigtool/cmd/verify.go
package cmd

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"webhook-gateway/internal/signature"
)

var errNotVerified = errors.New("signature not verified")

type verifyResult struct {
	Verified    bool   `json:"verified"`
	Reason      string `json:"reason"`
	Encoding    string `json:"encoding"`
	Fingerprint string `json:"fingerprint"`
}

func newVerifyCmd() *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify --key <public_key.pem> (--payload <file> | --data <text>) --signature <base64>",
		Short: "Verify a signature over a payload; exits 1 when it does not verify",
		Long: `The verify command runs the gateway's verification on a single payload and
signature and prints the outcome as JSON. Unlike the gateway, it reports the
reason for a rejection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPath, _ := cmd.Flags().GetString("key")
			sigB64, _ := cmd.Flags().GetString("signature")
			encName, _ := cmd.Flags().GetString("encoding")

			enc, err := signature.ParseEncoding(encName)
			if err != nil {
				return err
			}
			key, err := signature.LoadPublicKeyFile(keyPath)
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd)
			if err != nil {
				return err
			}

			v, err := signature.NewVerifier("sigtool", key, signature.WithEncoding(enc))
			if err != nil {
				return err
			}
			res := v.Check(payload, sigB64)

			out, err := json.MarshalIndent(verifyResult{
				Verified:    res.Verified(),
				Reason:      res.Reason(),
				Encoding:    enc.String(),
				Fingerprint: key.Fingerprint(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !res.Verified() {
				return errNotVerified
			}
			return nil
		},
	}
	verifyCmd.Flags().String("key", "", "Path to the PEM public key (required)")
	verifyCmd.Flags().String("signature", "", "Base64 signature (required)")
	verifyCmd.Flags().String("encoding", "der", "Signature encoding: der or p1363")
	addPayloadFlags(verifyCmd)
	verifyCmd.MarkFlagRequired("key")
	verifyCmd.MarkFlagRequired("signature")
	return verifyCmd
}
