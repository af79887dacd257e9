// file: cmd/sigtool/cmd/sign.go
package cmd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"webhook-gateway/internal/signature"
)

type signResult struct {
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
	Encoding  string `json:"encoding"`
}

func newSignCmd() *cobra.Command {
	signCmd := &cobra.Command{
		Use:   "sign (--payload <file> | --data <text>) [--encoding der|p1363]",
		Short: "Sign a payload with a throwaway P-256 key for manual testing",
		Long: `The sign command generates a fresh P-256 key pair, signs the payload with it
and prints the public key PEM and the base64 signature. The private key is
discarded; configure the printed public key on a test gateway to replay the
request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			encName, _ := cmd.Flags().GetString("encoding")
			enc, err := signature.ParseEncoding(encName)
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd)
			if err != nil {
				return err
			}

			priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			digest := sha256.Sum256(payload)
			sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
			if err != nil {
				return fmt.Errorf("failed to sign payload: %w", err)
			}
			if enc == signature.EncodingP1363 {
				if sig, err = signature.DERToP1363(sig); err != nil {
					return err
				}
			}

			der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(signResult{
				PublicKey: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
				Signature: base64.StdEncoding.EncodeToString(sig),
				Encoding:  enc.String(),
			}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	signCmd.Flags().String("encoding", "der", "Signature encoding: der or p1363")
	addPayloadFlags(signCmd)
	return signCmd
}
