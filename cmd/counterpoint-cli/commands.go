package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidahmann/counterpoint/internal/analysis"
	"github.com/davidahmann/counterpoint/internal/api"
	"github.com/davidahmann/counterpoint/internal/dashboard"
	"github.com/davidahmann/counterpoint/internal/policy"
)

func newDecideCmd(st styles) *cobra.Command {
	var (
		severities []string
		thresholds []string
		file       string
		fallback   string
	)
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Decide Accept/Reject per category offline",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sev, err := parseSeverities(severities)
			if err != nil {
				return usageError{err: err}
			}

			loaded := policy.DefaultThresholds()
			if file != "" {
				loaded, err = policy.LoadThresholds(file)
				if err != nil {
					return err
				}
			}
			if len(thresholds) > 0 {
				thr, err := parseSeverities(thresholds)
				if err != nil {
					return usageError{err: err}
				}
				loaded.Thresholds = policy.Thresholds(thr)
			}
			if fallback != "" {
				action, err := policy.ParseAction(fallback)
				if err != nil {
					return usageError{err: err}
				}
				loaded.Default = action
			}

			dec, err := loaded.Decide(sev)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range policy.Categories {
				action, ok := dec.ActionByCategory[c]
				if !ok {
					continue
				}
				fmt.Fprintf(out, "%-9s severity=%d %s\n", c.String(), sev[c], st.action(action.String()))
			}
			fmt.Fprintf(out, "%s %s\n", st.label.Render("suggested:"), st.action(dec.SuggestedAction.String()))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&severities, "severity", nil, "category severity, e.g. Hate=5 (repeatable)")
	cmd.Flags().StringArrayVar(&thresholds, "threshold", nil, "category reject threshold, e.g. Hate=4 (repeatable)")
	cmd.Flags().StringVar(&file, "thresholds", "", "threshold YAML file")
	cmd.Flags().StringVar(&fallback, "default", "", "action for categories without a threshold (accept|reject)")
	return cmd
}

func newThresholdsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Inspect threshold files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a threshold file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := policy.LoadThresholds(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok policy_id=%s policy_version=%s default=%s categories=%d\n",
				loaded.PolicyID, loaded.PolicyVersion, loaded.Default, len(loaded.Thresholds))
			return nil
		},
	}, &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the threshold file digest",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := policy.LoadThresholds(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), loaded.Hash)
			return nil
		},
	})
	return cmd
}

func newSubmitCmd(opts *remoteOptions, st styles) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <text>",
		Short: "Generate a counter-narrative and analyze text",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("submit requires <text>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			body, status, err := httpPostJSON(http.DefaultClient, opts.addr+"/v1/text", opts.token, api.TextRequest{Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			if err := checkStatus("submit", status, body); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				_, _ = out.Write(body)
				return nil
			}

			var res api.TextResult
			if err := json.Unmarshal(body, &res); err != nil {
				return fmt.Errorf("invalid response: %w", err)
			}
			fmt.Fprintf(out, "%s %s\n", st.label.Render("counter-narrative:"), res.Record.CounterNarrative)
			fmt.Fprintf(out, "%s %s\n", st.label.Render("sentiment:"), res.Record.Sentiment)
			fmt.Fprintf(out, "%s %s\n", st.label.Render("severity:"), st.severity(res.Record.Severity))
			fmt.Fprintf(out, "%s positive=%.2f neutral=%.2f negative=%.2f\n", st.label.Render("scores:"),
				res.Record.PositiveScore, res.Record.NeutralScore, res.Record.NegativeScore)
			if len(res.KeyPhrases) == 0 {
				fmt.Fprintln(out, st.muted.Render("No key phrases identified."))
			} else {
				fmt.Fprintf(out, "%s %s\n", st.label.Render("key phrases:"), strings.Join(res.KeyPhrases, ", "))
			}
			fmt.Fprintf(out, "%s %s\n", st.muted.Render("row_key:"), res.RowKey)
			return nil
		},
	}
}

func newImageCmd(opts *remoteOptions, st styles) *cobra.Command {
	return &cobra.Command{
		Use:   "image <path>",
		Short: "Moderate an image",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, status, err := httpPostFile(http.DefaultClient, opts.addr+"/v1/image", opts.token, args[0])
			if err != nil {
				return err
			}
			return printModeration(cmd, opts, st, "image", status, body)
		},
	}
}

func newModerateCmd(opts *remoteOptions, st styles) *cobra.Command {
	var blocklists []string
	cmd := &cobra.Command{
		Use:   "moderate <text>",
		Short: "Moderate text against the safety thresholds",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("moderate requires <text>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ModerateTextRequest{Text: strings.Join(args, " "), Blocklists: blocklists}
			body, status, err := httpPostJSON(http.DefaultClient, opts.addr+"/v1/moderate/text", opts.token, req)
			if err != nil {
				return err
			}
			return printModeration(cmd, opts, st, "moderate", status, body)
		},
	}
	cmd.Flags().StringSliceVar(&blocklists, "blocklist", nil, "blocklist names")
	return cmd
}

func printModeration(cmd *cobra.Command, opts *remoteOptions, st styles, op string, status int, body []byte) error {
	if err := checkStatus(op, status, body); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if opts.jsonOut {
		_, _ = out.Write(body)
		return nil
	}
	var res api.ModerationResult
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	for _, c := range res.Categories {
		fmt.Fprintf(out, "%-9s severity=%d %-10s %s\n", c.Category, c.Severity, st.band(c.Band), st.action(c.Action))
	}
	fmt.Fprintf(out, "%s %s\n", st.label.Render("suggested:"), st.action(res.Record.SuggestedAction))
	fmt.Fprintf(out, "%s %s\n", st.muted.Render("decision_id:"), res.Record.DecisionID)
	return nil
}

func newSessionsCmd(opts *remoteOptions, st styles) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored analysis sessions",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, status, err := httpGet(http.DefaultClient, opts.addr+"/v1/sessions", opts.token)
			if err != nil {
				return err
			}
			if err := checkStatus("sessions", status, body); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				_, _ = out.Write(body)
				return nil
			}
			var payload struct {
				Sessions []analysis.Record `json:"sessions"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("invalid response: %w", err)
			}
			if len(payload.Sessions) == 0 {
				fmt.Fprintln(out, st.muted.Render("No data available."))
				return nil
			}
			for i, r := range payload.Sessions {
				fmt.Fprintf(out, "%3d %-8s %s %s\n", i, r.Sentiment, st.severity(r.Severity), truncate(r.Text, 60))
			}
			return nil
		},
	}
}

func newDashboardCmd(opts *remoteOptions, st styles) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize stored sessions",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, status, err := httpGet(http.DefaultClient, opts.addr+"/v1/dashboard", opts.token)
			if err != nil {
				return err
			}
			if err := checkStatus("dashboard", status, body); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				_, _ = out.Write(body)
				return nil
			}
			var s dashboard.Summary
			if err := json.Unmarshal(body, &s); err != nil {
				return fmt.Errorf("invalid response: %w", err)
			}
			fmt.Fprintf(out, "%s %d\n", st.label.Render("sessions:"), s.Total)
			for _, c := range s.Sentiments {
				fmt.Fprintf(out, "  sentiment %-8s %d\n", c.Label, c.Count)
			}
			for _, c := range s.Severities {
				fmt.Fprintf(out, "  severity  %-8s %d\n", c.Label, c.Count)
			}
			fmt.Fprintf(out, "%s positive=%.2f neutral=%.2f negative=%.2f\n", st.label.Render("average:"),
				s.AverageScores.Positive, s.AverageScores.Neutral, s.AverageScores.Negative)
			return nil
		},
	}
}

// parseSeverities reads Category=N pairs.
func parseSeverities(pairs []string) (policy.Severities, error) {
	out := policy.Severities{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected Category=N, got %q", pair)
		}
		category, err := policy.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("severity for %s: %w", name, err)
		}
		out[category] = policy.Severity(n)
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
