package main

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/groupxyz/media-relay/internal/app"
	"github.com/groupxyz/media-relay/internal/domain"
)

var (
	serverURL    string
	serverConfig string
	insecure     bool
	noAutoStart  bool
	rootCmd      = &cobra.Command{
		Use:   "media-relay",
		Short: "media-relay CLI - fetch media through a relay server",
		Long:  `A command-line client for the media relay: inspect media, download it and browse the request history and logs.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "https://localhost:3000", "Server URL")
	rootCmd.PersistentFlags().StringVar(&serverConfig, "config", "", "Config file for an auto-started server")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification (self-signed certificates)")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

// httpClient honours --insecure
func httpClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: transport}
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func postJSON(path string, payload interface{}) *http.Response {
	data, _ := json.Marshal(payload)
	resp, err := httpClient().Post(serverURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		fail("%v", err)
	}
	return resp
}

func getJSON(path string, query url.Values, out interface{}) {
	target := serverURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resp, err := httpClient().Get(target)
	if err != nil {
		fail("%v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fail("%s", errorText(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		fail("unexpected response: %v", err)
	}
}

// errorText extracts {"error": ...} bodies and returns anything else verbatim
func errorText(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}

var infoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Show title, uploader and available formats",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		asJSON, _ := cmd.Flags().GetBool("json")

		resp := postJSON("/api/info", domain.InfoRequest{URL: args[0]})
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fail("%s", errorText(body))
		}

		var info domain.MediaInfo
		if err := json.Unmarshal(body, &info); err != nil {
			fail("unexpected response: %v", err)
		}
		if asJSON {
			pretty, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(pretty))
			return
		}

		fmt.Printf("Title:    %s\n", info.Title)
		fmt.Printf("Uploader: %s\n", info.Uploader)
		if info.Duration != "" {
			fmt.Printf("Duration: %s\n", info.Duration)
		}
		if info.Views != "" {
			fmt.Printf("Views:    %s\n", info.Views)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\nFORMAT\tQUALITY\tEXT\tSIZE")
		for _, f := range info.Formats {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.FormatID, f.Quality, f.Ext, f.Size)
		}
		w.Flush()
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download media into a local file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		quality, _ := cmd.Flags().GetString("quality")
		output, _ := cmd.Flags().GetString("output")

		start := time.Now()
		resp := postJSON("/api/download", domain.DownloadRequest{URL: args[0], Quality: quality})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Download failed (HTTP %d):\n%s\n", resp.StatusCode, errorText(body))
			os.Exit(1)
		}

		if output == "" {
			output = attachmentName(resp.Header.Get("Content-Disposition"))
		}
		file, err := os.Create(output)
		if err != nil {
			fail("%v", err)
		}
		n, err := io.Copy(file, resp.Body)
		closeErr := file.Close()
		if err != nil {
			os.Remove(output)
			fail("download interrupted after %d bytes: %v", n, err)
		}
		if closeErr != nil {
			fail("%v", closeErr)
		}

		fmt.Printf("Saved %s (%s) in %s\n", output, humanBytes(n), time.Since(start).Round(time.Millisecond))
	},
}

// attachmentName returns the file name the server suggested, reduced to its base name
func attachmentName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return "download"
	}
	return filepath.Base(params["filename"])
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent requests",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		endpoint, _ := cmd.Flags().GetString("endpoint")

		query := url.Values{"limit": {strconv.Itoa(limit)}}
		if status != "" {
			query.Set("status", status)
		}
		if endpoint != "" {
			query.Set("endpoint", endpoint)
		}

		var result struct {
			Records []domain.RequestRecord `json:"records"`
		}
		getJSON("/api/history", query, &result)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tENDPOINT\tSTATUS\tBYTES\tURL")
		for _, r := range result.Records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(r.ID, 8),
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				r.Endpoint,
				r.Status,
				humanBytes(r.BytesSent),
				truncate(r.URL, 50))
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show request statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var stats domain.HistoryStats
		getJSON("/api/history/stats", nil, &stats)

		fmt.Println("Request Statistics:")
		fmt.Printf("  Total:     %d\n", stats.Total)
		fmt.Printf("  Succeeded: %d\n", stats.Succeeded)
		fmt.Printf("  Failed:    %d\n", stats.Failed)
		fmt.Printf("  Rejected:  %d\n", stats.Rejected)
		fmt.Printf("  Delivered: %s\n", humanBytes(stats.BytesSent))
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs (access, process, error)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")
		date, _ := cmd.Flags().GetString("date")
		search, _ := cmd.Flags().GetString("search")
		asJSON, _ := cmd.Flags().GetBool("json")

		path := "/api/logs/" + url.PathEscape(args[0])
		query := url.Values{"limit": {strconv.Itoa(limit)}}
		if date != "" {
			query.Set("date", date)
		}
		if search != "" {
			path += "/search"
			query.Set("q", search)
		}

		var result struct {
			Entries []map[string]interface{} `json:"entries"`
		}
		getJSON(path, query, &result)

		for _, e := range result.Entries {
			if asJSON {
				line, _ := json.Marshal(e)
				fmt.Println(string(line))
				continue
			}
			fmt.Printf("%v [%v] %v", e["timestamp"], e["level"], e["message"])
			if fields, ok := e["fields"].(map[string]interface{}); ok && len(fields) > 0 {
				line, _ := json.Marshal(fields)
				fmt.Printf(" %s", line)
			}
			fmt.Println()
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the server configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := filepath.Join("configs", "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			fail("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			fail("%v", err)
		}
		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			fail("%v", err)
		}
		fmt.Printf("Config written to %s\n", path)
	},
}

func init() {
	infoCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	downloadCmd.Flags().StringP("quality", "q", "best", "Format id or quality keyword (mp3, m4a, webm, 720p, ...)")
	downloadCmd.Flags().StringP("output", "o", "", "Output file (default: the name suggested by the server)")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of records")
	historyCmd.Flags().StringP("status", "s", "", "Filter by status (succeeded, failed, rejected)")
	historyCmd.Flags().StringP("endpoint", "e", "", "Filter by endpoint (info, download)")
	logsCmd.Flags().IntP("limit", "n", 100, "Number of entries")
	logsCmd.Flags().StringP("date", "d", "", "Day to read, YYYY-MM-DD (default: today)")
	logsCmd.Flags().StringP("search", "s", "", "Only entries containing this text")
	logsCmd.Flags().BoolP("json", "j", false, "Output raw JSON lines")
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
