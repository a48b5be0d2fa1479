package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiva-rakshith/hcx-platform/internal/keystore"
)

func keygenCmd() *cobra.Command {
	var (
		dir        string
		name       string
		commonName string
		bits       int
		validFor   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a self-signed development key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if commonName == "" {
				commonName = name
			}
			km, err := keystore.Generate(commonName, bits, validFor)
			if err != nil {
				return err
			}
			paths, err := keystore.WriteFiles(km, dir, name)
			if err != nil {
				return err
			}

			info := km.Info()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Private key: %s\n", paths.PrivateKey)
			fmt.Fprintf(out, "Certificate: %s\n", paths.Certificate)
			fmt.Fprintf(out, "Subject:     %s\n", info.CertificateSubject)
			fmt.Fprintf(out, "Key size:    %d\n", info.KeySize)
			fmt.Fprintf(out, "Expires:     %s\n", info.NotAfter.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	cmd.Flags().StringVar(&name, "name", "node", "base file name (writes <name>.key and <name>.crt)")
	cmd.Flags().StringVar(&commonName, "cn", "", "certificate common name (default: --name)")
	cmd.Flags().IntVar(&bits, "bits", keystore.DefaultKeyBits, "RSA modulus size")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "certificate lifetime")
	return cmd
}
