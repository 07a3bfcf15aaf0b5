// cmd/cert/cert.go

package cert

import (
	"fmt"
	"os"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/certificate"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/config"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_cli"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CertCmd groups certificate tooling.
var CertCmd = &cobra.Command{
	Use:   "cert",
	Short: "Verify, export and inspect wipe certificates",
	RunE: cw_cli.Wrap(func(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}),
}

var verifyCmd = &cobra.Command{
	Use:   "verify <certificate>",
	Short: "Check a certificate signature",
	Long: `Verify recomputes the canonical payload of a certificate and checks its
signature against a public key (--public-key) or the public half of a
signing key (--key-path).`,
	Args: cobra.ExactArgs(1),
	RunE: cw_cli.Wrap(runVerify),
}

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the PEM public key that verifies certificates",
	Args:  cobra.NoArgs,
	RunE:  cw_cli.Wrap(runPubkey),
}

var exportCmd = &cobra.Command{
	Use:   "export <certificate>",
	Short: "Re-encode a certificate as json, yaml or cbor",
	Args:  cobra.ExactArgs(1),
	RunE:  cw_cli.Wrap(runExport),
}

func init() {
	cw_cli.AddStringFlag(verifyCmd, config.KeyPublicKey, "", "", "PEM public key", false)
	cw_cli.AddStringFlag(verifyCmd, config.KeyKeyPath, "k", config.DefaultKeyPath, "signing key whose public half verifies", false)

	cw_cli.AddStringFlag(pubkeyCmd, config.KeyKeyPath, "k", config.DefaultKeyPath, "signing key", false)
	cw_cli.AddStringFlag(pubkeyCmd, config.KeyOutput, "o", "", "write the key here instead of stdout", false)

	cw_cli.AddStringFlag(exportCmd, "format", "f", string(certificate.FormatYAML), "output format: json, yaml or cbor", false)
	cw_cli.AddStringFlag(exportCmd, config.KeyOutput, "o", "", "write here instead of stdout", false)

	CertCmd.AddCommand(verifyCmd, pubkeyCmd, exportCmd)
}

func runVerify(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	log := otelzap.Ctx(rc.Ctx)

	keyFile, _ := cmd.Flags().GetString(config.KeyPublicKey)
	if keyFile == "" {
		keyFile, _ = cmd.Flags().GetString(config.KeyKeyPath)
	}
	pub, err := certificate.LoadPublicKey(keyFile)
	if err != nil {
		return err
	}
	cert, err := certificate.Load(args[0])
	if err != nil {
		return err
	}
	if err := certificate.Verify(cert, pub); err != nil {
		log.Warn("Certificate signature invalid",
			zap.String("file", args[0]), zap.String("certificate_id", cert.CertificateID))
		return err
	}

	log.Info("Certificate signature valid",
		zap.String("file", args[0]), zap.String("certificate_id", cert.CertificateID))
	fmt.Fprintln(cmd.OutOrStdout(), cw_cli.RenderCertificate(cert))
	fmt.Fprintln(cmd.OutOrStdout(), "Signature: valid")
	return nil
}

func runPubkey(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	keyFile, _ := cmd.Flags().GetString(config.KeyKeyPath)
	pub, err := certificate.LoadPublicKey(keyFile)
	if err != nil {
		return err
	}
	out, err := certificate.PublicKeyPEM(pub)
	if err != nil {
		return err
	}
	return emit(cmd, out, 0o644)
}

func runExport(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("format")
	format, err := certificate.ParseFormat(name)
	if err != nil {
		return err
	}
	cert, err := certificate.Load(args[0])
	if err != nil {
		return err
	}
	out, err := certificate.Encode(cert, format)
	if err != nil {
		return err
	}
	otelzap.Ctx(rc.Ctx).Debug("Certificate exported",
		zap.String("certificate_id", cert.CertificateID), zap.String("format", string(format)))
	return emit(cmd, out, 0o644)
}

func emit(cmd *cobra.Command, data []byte, perm os.FileMode) error {
	path, _ := cmd.Flags().GetString(config.KeyOutput)
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := cw_io.WriteFileAtomic(path, data, perm); err != nil {
		return cw_err.Wrapf(cw_err.KindIo, err, "write %s", path)
	}
	return nil
}
