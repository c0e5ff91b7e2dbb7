package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glogos/zone/internal/identity"
	"github.com/glogos/zone/pkg/canon"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	zoneURL string
	cfgFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zonectl",
	Short: "Zone attestation ledger CLI",
	Long: `zonectl is the operator command-line interface for a Zone.

It generates zone keys, submits claims for attestation, inspects the
Merkle root, and verifies cross-zone citations against a running zone
server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.zone")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if zoneURL == "" {
			zoneURL = viper.GetString("zone_url")
		}
		if zoneURL == "" {
			zoneURL = "http://localhost:8100"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.zone/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&zoneURL, "zone", "", "Zone server URL (default http://localhost:8100)")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(merkleRootCmd)
	rootCmd.AddCommand(verifyCitationCmd)
	rootCmd.AddCommand(canonsCmd)
	rootCmd.AddCommand(versionCmd)
}

// httpJSON performs one request against the zone server and decodes the
// JSON response into out. Non-2xx responses surface the server's error text.
func httpJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, zoneURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reach zone at %s: %w", zoneURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("zone returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("zone returned %d", resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── keygen ───────────────────────────────────────────────────────────────────

var (
	keygenAlg  string
	keygenOut  string
	keygenSeed string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a zone signing key and print the derived zone ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		alg := identity.Algorithm(keygenAlg)

		var id *identity.Identity
		var err error
		if keygenSeed != "" {
			id, err = identity.FromSeedHex(alg, keygenSeed)
		} else {
			id, err = identity.Generate(alg)
		}
		if err != nil {
			return err
		}

		if err := id.Save(keygenOut); err != nil {
			return fmt.Errorf("write key file: %w", err)
		}

		fmt.Printf("Key written to %s\n", keygenOut)
		fmt.Printf("Algorithm:  %s\n", id.Algorithm())
		fmt.Printf("Public key: %s\n", id.PublicKeyHex())
		fmt.Printf("Zone ID:    %s\n", id.ZoneID())
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenAlg, "algorithm", "ed25519", "Signing algorithm: ed25519 or secp256k1")
	keygenCmd.Flags().StringVar(&keygenOut, "out", "zone.key", "Output key file path")
	keygenCmd.Flags().StringVar(&keygenSeed, "seed", "", "Deterministic 64-char hex seed (testing only)")
}

// ── info ─────────────────────────────────────────────────────────────────────

var infoFormat string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the zone's public metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		var info struct {
			ZoneID          string        `json:"zone_id"`
			Name            string        `json:"name"`
			Description     string        `json:"description"`
			PublicKey       string        `json:"public_key"`
			PublicKeyType   string        `json:"public_key_type"`
			SupportedCanons []canon.Canon `json:"supported_canons"`
			GenesisRoot     string        `json:"glsr_reference"`
		}
		if err := httpJSON(cmd.Context(), http.MethodGet, "/zone/info", nil, &info); err != nil {
			return err
		}

		if infoFormat == "json" {
			return printJSON(info)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "Zone ID:\t%s\n", info.ZoneID)
		fmt.Fprintf(w, "Name:\t%s\n", info.Name)
		if info.Description != "" {
			fmt.Fprintf(w, "Description:\t%s\n", info.Description)
		}
		fmt.Fprintf(w, "Public key:\t%s (%s)\n", info.PublicKey, info.PublicKeyType)
		fmt.Fprintf(w, "Canons:\t%d supported\n", len(info.SupportedCanons))
		return w.Flush()
	},
}

func init() {
	infoCmd.Flags().StringVar(&infoFormat, "format", "text", "Output format: text or json")
}

// ── submit ───────────────────────────────────────────────────────────────────

var (
	submitClaim     string
	submitEvidence  string
	submitCanon     string
	submitCitations []string
	submitFormat    string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a claim for attestation",
	Long: `Submit sends a claim and its evidence to the zone, which hashes,
signs, and appends the resulting attestation to its ledger:

  zonectl submit --claim "build #1412 passed" --evidence "$(cat build.log)"

Citations reference attestations in other zones by ID:

  zonectl submit --claim "..." --evidence "..." --cite <attestation-id>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitClaim == "" {
			return fmt.Errorf("--claim is required")
		}
		if submitEvidence == "" {
			return fmt.Errorf("--evidence is required")
		}

		req := map[string]any{
			"claim":    submitClaim,
			"evidence": submitEvidence,
		}
		if submitCanon != "" {
			req["canon_id"] = submitCanon
		}
		if len(submitCitations) > 0 {
			req["citations"] = submitCitations
		}

		var receipt struct {
			SubmissionID string `json:"submission_id"`
			Attestation  struct {
				AttestationID string `json:"attestation_id"`
				CanonID       string `json:"canon_id"`
				Timestamp     int64  `json:"timestamp"`
			} `json:"attestation"`
			Proof struct {
				Root      string `json:"root"`
				LeafIndex int    `json:"leaf_index"`
			} `json:"proof"`
		}
		if err := httpJSON(cmd.Context(), http.MethodPost, "/verify", req, &receipt); err != nil {
			return err
		}

		if submitFormat == "json" {
			return printJSON(receipt)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "Attestation ID:\t%s\n", receipt.Attestation.AttestationID)
		fmt.Fprintf(w, "Canon:\t%s\n", receipt.Attestation.CanonID)
		fmt.Fprintf(w, "Timestamp:\t%s\n", time.Unix(receipt.Attestation.Timestamp, 0).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Merkle root:\t%s\n", receipt.Proof.Root)
		fmt.Fprintf(w, "Leaf index:\t%d\n", receipt.Proof.LeafIndex)
		fmt.Fprintf(w, "Submission:\t%s\n", receipt.SubmissionID)
		return w.Flush()
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitClaim, "claim", "", "Claim content (hashed by the zone)")
	submitCmd.Flags().StringVar(&submitEvidence, "evidence", "", "Evidence content (hashed by the zone)")
	submitCmd.Flags().StringVar(&submitCanon, "canon", "", "Canon ID (64-char hex); zone default when empty")
	submitCmd.Flags().StringArrayVar(&submitCitations, "cite", nil, "Cited attestation ID (repeatable)")
	submitCmd.Flags().StringVar(&submitFormat, "format", "text", "Output format: text or json")
}

// ── root ─────────────────────────────────────────────────────────────────────

var merkleRootFormat string

var merkleRootCmd = &cobra.Command{
	Use:   "root",
	Short: "Show the zone's current Merkle root and anchor state",
	RunE: func(cmd *cobra.Command, args []string) error {
		var info struct {
			Root      string `json:"merkle_root"`
			LeafCount int    `json:"attestation_count"`
			Anchor    *struct {
				Type      string `json:"type"`
				Timestamp int64  `json:"timestamp"`
				Reference string `json:"reference"`
			} `json:"anchor"`
		}
		if err := httpJSON(cmd.Context(), http.MethodGet, "/merkle/root", nil, &info); err != nil {
			return err
		}

		if merkleRootFormat == "json" {
			return printJSON(info)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "Merkle root:\t%s\n", info.Root)
		fmt.Fprintf(w, "Attestations:\t%d\n", info.LeafCount)
		if info.Anchor != nil {
			fmt.Fprintf(w, "Anchored:\t%s via %s (%s)\n",
				time.Unix(info.Anchor.Timestamp, 0).UTC().Format(time.RFC3339),
				info.Anchor.Type, info.Anchor.Reference)
		} else {
			fmt.Fprintf(w, "Anchored:\tnot yet\n")
		}
		return w.Flush()
	},
}

func init() {
	merkleRootCmd.Flags().StringVar(&merkleRootFormat, "format", "text", "Output format: text or json")
}

// ── verify-citation ──────────────────────────────────────────────────────────

var (
	citingID      string
	citedID       string
	citedEndpoint string
	citeFormat    string
)

var verifyCitationCmd = &cobra.Command{
	Use:   "verify-citation",
	Short: "Verify a citation held by a local attestation",
	Long: `Verify-citation asks the zone to check that one of its attestations
may trust a citation into another zone: inclusion proof, signature, anchors
on both sides, and anchored temporal ordering.

  zonectl verify-citation --citing <local-id> --cited <remote-id> \
      --endpoint https://other-zone.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if citingID == "" || citedID == "" || citedEndpoint == "" {
			return fmt.Errorf("--citing, --cited, and --endpoint are all required")
		}

		req := map[string]string{
			"citing_attestation_id": citingID,
			"cited_attestation_id":  citedID,
			"cited_zone_endpoint":   citedEndpoint,
		}
		var res struct {
			CitedID string `json:"cited_id"`
			Status  string `json:"status"`
			Reason  string `json:"reason,omitempty"`
		}
		if err := httpJSON(cmd.Context(), http.MethodPost, "/citation/verify", req, &res); err != nil {
			return err
		}

		if citeFormat == "json" {
			return printJSON(res)
		}

		fmt.Printf("Citation %s: %s\n", res.CitedID, res.Status)
		if res.Reason != "" {
			fmt.Printf("Reason: %s\n", res.Reason)
		}
		if res.Status != "VALID" {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	verifyCitationCmd.Flags().StringVar(&citingID, "citing", "", "Citing attestation ID in this zone")
	verifyCitationCmd.Flags().StringVar(&citedID, "cited", "", "Cited attestation ID in the remote zone")
	verifyCitationCmd.Flags().StringVar(&citedEndpoint, "endpoint", "", "Remote zone base URL")
	verifyCitationCmd.Flags().StringVar(&citeFormat, "format", "text", "Output format: text or json")
}

// ── canons ───────────────────────────────────────────────────────────────────

var canonsCmd = &cobra.Command{
	Use:   "canons",
	Short: "List the verification canons this build knows about",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "CANON ID\tNAME\tVERSION")
		for _, c := range canon.DefaultDirectory().List() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, c.Version)
		}
		return w.Flush()
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the zonectl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("zonectl", version)
	},
}
