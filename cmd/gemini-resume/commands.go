package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/akshayreddy1906/gemini-resume/internal/config"
	"github.com/akshayreddy1906/gemini-resume/internal/document"
	"github.com/akshayreddy1906/gemini-resume/internal/history"
	"github.com/akshayreddy1906/gemini-resume/internal/inference"
	"github.com/akshayreddy1906/gemini-resume/internal/pipeline"
	"github.com/akshayreddy1906/gemini-resume/internal/render"
)

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one document locally and print the result",
	Long: `Process one document with an instruction without a running server.

The result text is printed to stdout. A failed request exits with status 1.

Examples:
  gemini-resume run --file ./resume.pdf --prompt "Summarize"
  gemini-resume run --file ./notes.txt --prompt "List the action items"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		prompt, _ := cmd.Flags().GetString("prompt")
		if file == "" || prompt == "" {
			return fmt.Errorf("--file and --prompt are required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := setupLogging(cfg.Log.Level)
		if !cfg.HasAPIKey() {
			printWarning("no API key configured: %s", config.APIKeyHint())
		}

		inv, err := newInvoker(cfg, logger)
		if err != nil {
			return err
		}

		entry, err := runLocal(cmd.Context(), inv, file, prompt)
		if err != nil {
			return err
		}
		if !entry.OK() {
			return errors.New(entry.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), entry.Text)
		return nil
	},
}

func init() {
	runCmd.Flags().String("file", "", "document to process (.txt, .pdf, .doc, .docx)")
	runCmd.Flags().String("prompt", "", "instruction for the model")
}

// runLocal drives one submission through a private orchestrator. The error
// is non-nil only when the document or instruction is rejected.
func runLocal(ctx context.Context, inv inference.Invoker, file, prompt string) (history.Entry, error) {
	orch := pipeline.NewOrchestrator(pipeline.Session{Invoker: inv})

	candidate, err := document.FileCandidate(file)
	if err != nil {
		return history.Entry{}, err
	}
	if _, err := orch.SelectDocument(candidate); err != nil {
		return history.Entry{}, err
	}
	orch.SetInstruction(prompt)

	return orch.Submit(ctx)
}

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a document to the running server",
	Long: `Upload a document and an instruction to the running server and submit them.

Without --wait the command returns as soon as the server accepts the
submission; the result appears in "gemini-resume history list".

Examples:
  gemini-resume submit --file ./resume.pdf --prompt "Summarize" --wait`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		prompt, _ := cmd.Flags().GetString("prompt")
		wait, _ := cmd.Flags().GetBool("wait")
		if file == "" || prompt == "" {
			return fmt.Errorf("--file and --prompt are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Submitting %s", filepath.Base(file))
		res, err := submitRemote(cmd.Context(), client, file, prompt, wait)
		if err != nil {
			return err
		}
		if res.Entry == nil {
			printSuccess("Submitted (attempt %s)", res.AttemptID)
			return nil
		}
		if !res.Entry.OK() {
			return errors.New(res.Entry.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Entry.Text)
		return nil
	},
}

func init() {
	submitCmd.Flags().String("file", "", "document to upload (.txt, .pdf, .doc, .docx)")
	submitCmd.Flags().String("prompt", "", "instruction for the model")
	submitCmd.Flags().Bool("wait", false, "wait for the result and print it")
}

type submitResult struct {
	AttemptID string
	Entry     *history.Entry
}

func submitRemote(ctx context.Context, c *apiClient, file, prompt string, wait bool) (submitResult, error) {
	resp, err := c.upload(ctx, "/document", file)
	if err != nil {
		return submitResult{}, err
	}
	if err := checkStatus(resp); err != nil {
		return submitResult{}, fmt.Errorf("uploading document: %w", err)
	}
	resp.Body.Close()

	resp, err = c.put(ctx, "/instruction", map[string]string{"instruction": prompt})
	if err != nil {
		return submitResult{}, err
	}
	if err := checkStatus(resp); err != nil {
		return submitResult{}, fmt.Errorf("setting instruction: %w", err)
	}
	resp.Body.Close()

	path := "/submit"
	if wait {
		path += "?wait=true"
	}
	resp, err = c.post(ctx, path, nil)
	if err != nil {
		return submitResult{}, err
	}

	if wait {
		var entry history.Entry
		if err := decodeJSON(resp, &entry); err != nil {
			return submitResult{}, err
		}
		return submitResult{AttemptID: entry.AttemptID, Entry: &entry}, nil
	}

	var accepted struct {
		AttemptID string `json:"attempt_id"`
	}
	if err := decodeJSON(resp, &accepted); err != nil {
		return submitResult{}, err
	}
	return submitResult{AttemptID: accepted.AttemptID}, nil
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse results kept by the running server",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent results, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/history?limit=%d", limit))
		if err != nil {
			return err
		}

		var entries []history.Entry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No results yet.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), formatEntryLine(e))
		}
		return nil
	},
}

func formatEntryLine(e history.Entry) string {
	outcome := colorize(colorGreen, "ok  ")
	preview := e.Text
	if !e.OK() {
		outcome = colorize(colorRed, "fail")
		preview = e.Error
	}
	preview = strings.Join(strings.Fields(preview), " ")
	if r := []rune(preview); len(r) > 80 {
		preview = string(r[:80]) + "..."
	}
	return fmt.Sprintf("%s  %s  %s  %s",
		colorize(colorCyan, e.ID),
		e.Timestamp.Local().Format(time.DateTime),
		outcome,
		preview,
	)
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/history/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var entry history.Entry
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

var historyDownloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Save a result as a text or HTML file",
	Long: `Save a result as a file named result-<timestamp>.<ext> in the current
directory, or at --output. Use --output - to write to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		if _, err := render.ParseFormat(format); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path, err := downloadEntry(cmd.Context(), client, args[0], format, output, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if path != "" {
			printSuccess("Saved %s", path)
		}
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of results to list")
	historyDownloadCmd.Flags().String("format", "txt", "file format: txt or html")
	historyDownloadCmd.Flags().String("output", "", "output file path (default: server-suggested name, - for stdout)")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDownloadCmd)
}

// downloadEntry fetches a rendered entry and writes it to output, to the
// server-suggested file name when output is empty, or to stdout for "-".
// It returns the path written, or "" for stdout.
func downloadEntry(ctx context.Context, c *apiClient, id, format, output string, stdout io.Writer) (string, error) {
	q := url.Values{"format": {format}}
	resp, err := c.get(ctx, "/history/"+url.PathEscape(id)+"/download?"+q.Encode())
	if err != nil {
		return "", err
	}
	if err := checkStatus(resp); err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if output == "-" {
		_, err := io.Copy(stdout, resp.Body)
		return "", err
	}

	if output == "" {
		output = "result." + format
		if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
			output = filepath.Base(params["filename"])
		}
	}

	f, err := os.Create(output)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", output, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return output, nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		apiKey := "configured"
		if !cfg.HasAPIKey() {
			apiKey = "missing (" + config.APIKeyHint() + ")"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, "gemini.api_key"), apiKey)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value in the platform config store.

Valid keys: %s`, strings.Join(config.ValidKeys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
