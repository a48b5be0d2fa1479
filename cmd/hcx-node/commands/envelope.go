package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shiva-rakshith/hcx-platform/internal/config"
	"github.com/shiva-rakshith/hcx-platform/internal/keystore"
	"github.com/shiva-rakshith/hcx-platform/pkg/security"
)

func envelopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envelope",
		Short: "Work with encrypted exchange envelopes",
	}
	cmd.AddCommand(envelopeDecryptCmd(), envelopeInspectCmd())
	return cmd
}

func envelopeDecryptCmd() *cobra.Command {
	var (
		keyFile     string
		showHeaders bool
	)

	cmd := &cobra.Command{
		Use:   "decrypt [file]",
		Short: "Decrypt an envelope or callback body (reads stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyFile == "" {
				keyFile = os.Getenv(config.EnvPrivateKeyFile)
			}
			if keyFile == "" {
				return fmt.Errorf("--key is required (or set %s)", config.EnvPrivateKeyFile)
			}
			keys, err := keystore.LoadFiles(keystore.Paths{PrivateKey: keyFile})
			if err != nil {
				return err
			}

			env, err := readEnvelope(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			headers, plaintext, err := security.DecryptWithHeaders(keys.PrivateKey, env)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showHeaders {
				data, err := json.MarshalIndent(headers, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n", data)
			}
			fmt.Fprintf(out, "%s\n", prettyJSON(plaintext))
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyFile, "key", "k", "", "private key PEM file")
	cmd.Flags().BoolVar(&showHeaders, "headers", false, "print the protected exchange headers first")
	return cmd
}

func envelopeInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "Print the protected exchange headers without decrypting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := readEnvelope(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			headers, err := security.PeekHeaders(env)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(headers, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return nil
		},
	}
}

// readEnvelope reads a compact envelope, or a {"payload": ...} body, from
// the named file or stdin
func readEnvelope(stdin io.Reader, args []string) (security.Envelope, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, security.MaxEnvelopeSize+1))
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", err
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var body struct {
			Payload string `json:"payload"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return "", fmt.Errorf("parsing callback body: %w", err)
		}
		data = []byte(body.Payload)
	}
	if len(data) == 0 {
		return "", errors.New("no envelope given")
	}
	return security.Envelope(strings.TrimSpace(string(data))), nil
}

func prettyJSON(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return data
	}
	return buf.Bytes()
}
