package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	sendProfile  string
	sendServer   string
	sendAPIKey   string
	sendUserID   string
	sendIP       string
	sendSeverity string
	sendDetails  []string
)

var sendCmd = &cobra.Command{
	Use:   "send <event-type>",
	Short: "Record a security event on a remote secmon server",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage CLI connection profiles",
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a connection profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSet,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	RunE:  runProfileList,
}

func init() {
	sendCmd.Flags().StringVar(&sendProfile, "profile", "", "connection profile to use")
	sendCmd.Flags().StringVar(&sendServer, "server", "", "server URL (overrides profile)")
	sendCmd.Flags().StringVar(&sendAPIKey, "api-key", "", "API key (overrides profile)")
	sendCmd.Flags().StringVar(&sendUserID, "user", "", "user ID to attach to the event")
	sendCmd.Flags().StringVar(&sendIP, "ip", "", "source IP to attach to the event")
	sendCmd.Flags().StringVar(&sendSeverity, "severity", "", "severity override")
	sendCmd.Flags().StringArrayVarP(&sendDetails, "detail", "d", nil, "event detail as key=value (repeatable)")

	profileSetCmd.Flags().StringVar(&sendServer, "server", "", "server URL")
	profileSetCmd.Flags().StringVar(&sendAPIKey, "api-key", "", "API key")

	profileCmd.AddCommand(profileSetCmd, profileListCmd)
	rootCmd.AddCommand(sendCmd, profileCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	profiles, err := LoadProfiles("")
	if err != nil {
		return err
	}

	serverURL := sendServer
	apiKey := sendAPIKey
	if serverURL == "" || apiKey == "" {
		p, err := profiles.Get(sendProfile)
		if err != nil && serverURL == "" {
			return err
		}
		if p != nil {
			if serverURL == "" {
				serverURL = p.ServerURL
			}
			if apiKey == "" {
				apiKey = p.APIKey
			}
		}
	}
	if serverURL == "" {
		return fmt.Errorf("no server URL configured; use --server or a profile")
	}

	details := make(map[string]any, len(sendDetails))
	for _, kv := range sendDetails {
		k, v, ok := splitKV(kv)
		if !ok {
			return fmt.Errorf("invalid detail %q, expected key=value", kv)
		}
		details[k] = v
	}

	payload := map[string]any{
		"event_type": args[0],
	}
	if sendUserID != "" {
		payload["user_id"] = sendUserID
	}
	if sendIP != "" {
		payload["ip_address"] = sendIP
	}
	if sendSeverity != "" {
		payload["severity"] = sendSeverity
	}
	if len(details) > 0 {
		payload["details"] = details
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
		serverURL+"/api/security/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(respBody)))
	return nil
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	profiles, err := LoadProfiles("")
	if err != nil {
		return err
	}

	name := args[0]
	p, ok := profiles.Profiles[name]
	if !ok {
		p = &Profile{}
		profiles.Profiles[name] = p
	}
	if sendServer != "" {
		p.ServerURL = sendServer
	}
	if sendAPIKey != "" {
		p.APIKey = sendAPIKey
	}
	profiles.CurrentProfile = name

	if err := profiles.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "profile %q saved\n", name)
	return nil
}

func runProfileList(cmd *cobra.Command, _ []string) error {
	profiles, err := LoadProfiles("")
	if err != nil {
		return err
	}
	for name, p := range profiles.Profiles {
		marker := " "
		if name == profiles.CurrentProfile {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\n", marker, name, p.ServerURL)
	}
	return nil
}

func splitKV(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			if i == 0 {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
