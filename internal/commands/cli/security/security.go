// Package security provides the PIN, verification value and key utilities.
package security

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_cardsim/internal/builder"
	sec "github.com/andrei-cloud/go_cardsim/internal/security"
)

// NewSecurityCommand creates the security command with subcommands.
func NewSecurityCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "security",
		Short: "PIN block, PVV, CVV and key utilities",
		Long: `Offline utilities that use the same simulated security routines as the
endpoint. Useful for preparing card files and checking captured traffic.`,
		Example: `  # Form an ISO format 0 PIN block
  go_cardsim security pinblock create --pin 1234 --pan 4532111084873037

  # Derive the PVV for a card
  go_cardsim security pvv --pan 4532111084873037 --pin 1234`,
	}

	pbCmd, err := newPinBlockCommand()
	if err != nil {
		return nil, fmt.Errorf("failed to create 'pinblock' subcommand: %w", err)
	}
	cmd.AddCommand(pbCmd)

	pvvCmd, err := newPVVCommand()
	if err != nil {
		return nil, fmt.Errorf("failed to create 'pvv' subcommand: %w", err)
	}
	cmd.AddCommand(pvvCmd)

	cvvCmd, err := newCVVCommand()
	if err != nil {
		return nil, fmt.Errorf("failed to create 'cvv' subcommand: %w", err)
	}
	cmd.AddCommand(cvvCmd)

	cmd.AddCommand(newKeygenCommand())
	cmd.AddCommand(newPinCommand())

	return cmd, nil
}

func newPinBlockCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "pinblock",
		Short: "ISO format 0 PIN block operations",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Form a PIN block",
		RunE:  runPinBlockCreate,
	}
	create.Flags().String("pin", "", "PIN (1-12 digits)")
	create.Flags().String("pan", "", "Primary Account Number (card number)")

	extract := &cobra.Command{
		Use:   "extract",
		Short: "Extract the PIN from a PIN block",
		RunE:  runPinBlockExtract,
	}
	extract.Flags().String("pinblock", "", "PIN block hex string")
	extract.Flags().String("pan", "", "Primary Account Number (card number)")

	// Mark required flags.
	for c, flags := range map[*cobra.Command][]string{
		create:  {"pin", "pan"},
		extract: {"pinblock", "pan"},
	} {
		for _, f := range flags {
			if err := c.MarkFlagRequired(f); err != nil {
				return nil, fmt.Errorf("failed to mark %s flag as required: %w", f, err)
			}
		}
	}

	cmd.AddCommand(create, extract)

	return cmd, nil
}

func newPVVCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "pvv",
		Short: "Derive a PIN verification value",
		RunE:  runPVV,
	}
	cmd.Flags().String("pan", "", "Primary Account Number (card number)")
	cmd.Flags().String("pin", "", "Clear PIN")
	cmd.Flags().String("verify", "", "PVV to verify instead of printing the derived one")

	if err := cmd.MarkFlagRequired("pan"); err != nil {
		return nil, fmt.Errorf("failed to mark pan flag as required: %w", err)
	}
	if err := cmd.MarkFlagRequired("pin"); err != nil {
		return nil, fmt.Errorf("failed to mark pin flag as required: %w", err)
	}

	return cmd, nil
}

func newCVVCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "cvv",
		Short: "Derive a card verification value",
		RunE:  runCVV,
	}
	cmd.Flags().String("pan", "", "Primary Account Number (card number)")
	cmd.Flags().String("expiry", "", "Expiry date (YYMM)")
	cmd.Flags().String("service-code", builder.ServiceCode, "Service code")

	if err := cmd.MarkFlagRequired("pan"); err != nil {
		return nil, fmt.Errorf("failed to mark pan flag as required: %w", err)
	}
	if err := cmd.MarkFlagRequired("expiry"); err != nil {
		return nil, fmt.Errorf("failed to mark expiry flag as required: %w", err)
	}

	return cmd, nil
}

func newKeygenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate random key material with its check value",
		RunE:  runKeygen,
	}
	cmd.Flags().Int("bits", 128, "Key length in bits")
	cmd.Flags().String("type", "ZPK", "Key type label")

	return cmd
}

func newPinCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Generate a random PIN",
		RunE:  runPin,
	}
	cmd.Flags().Int("length", 4, "PIN length")

	return cmd
}

func runPinBlockCreate(cmd *cobra.Command, _ []string) error {
	pin, _ := cmd.Flags().GetString("pin")
	pan, _ := cmd.Flags().GetString("pan")

	block, err := sec.New().FormPinBlock(pin, pan)
	if err != nil {
		return err
	}

	cmd.Printf("PIN block: %s\n", strings.ToUpper(hex.EncodeToString(block)))

	return nil
}

func runPinBlockExtract(cmd *cobra.Command, _ []string) error {
	blockHex, _ := cmd.Flags().GetString("pinblock")
	pan, _ := cmd.Flags().GetString("pan")

	block, err := hex.DecodeString(blockHex)
	if err != nil {
		return fmt.Errorf("%w: pin block is not hex", sec.ErrFormat)
	}

	pin, err := sec.New().ExtractPin(block, pan)
	if err != nil {
		return err
	}

	cmd.Printf("PIN: %s\n", pin)

	return nil
}

func runPVV(cmd *cobra.Command, _ []string) error {
	pan, _ := cmd.Flags().GetString("pan")
	pin, _ := cmd.Flags().GetString("pin")
	expected, _ := cmd.Flags().GetString("verify")

	s := sec.New()
	if expected != "" {
		ok, err := s.VerifyPVV(pan, pin, expected)
		if err != nil {
			return err
		}
		cmd.Printf("PVV %s: %s\n", expected, verdict(ok))

		return nil
	}

	pvv, err := s.DerivePVV(pan, pin)
	if err != nil {
		return err
	}
	cmd.Printf("PVV: %s\n", pvv)

	return nil
}

func runCVV(cmd *cobra.Command, _ []string) error {
	pan, _ := cmd.Flags().GetString("pan")
	expiry, _ := cmd.Flags().GetString("expiry")
	serviceCode, _ := cmd.Flags().GetString("service-code")

	cvv, err := sec.New().DeriveCVV(pan, expiry, serviceCode)
	if err != nil {
		return err
	}
	cmd.Printf("CVV: %s\n", cvv)

	return nil
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	bits, _ := cmd.Flags().GetInt("bits")
	keyType, _ := cmd.Flags().GetString("type")

	k, err := sec.New().GenerateKey(bits, keyType)
	if err != nil {
		return err
	}

	cmd.Printf("Type: %s\n", k.Type)
	cmd.Printf("Key:  %s\n", k.Hex())
	cmd.Printf("KCV:  %s\n", strings.ToUpper(hex.EncodeToString(k.KCV())))

	return nil
}

func runPin(cmd *cobra.Command, _ []string) error {
	length, _ := cmd.Flags().GetInt("length")

	pin, err := sec.New().GeneratePin(length)
	if err != nil {
		return err
	}
	cmd.Printf("PIN: %s\n", pin)

	return nil
}

func verdict(ok bool) string {
	if ok {
		return "valid"
	}

	return "invalid"
}
