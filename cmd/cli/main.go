package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"novelhub/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type jobResponse struct {
	JobID   string                 `json:"job_id"`
	Status  models.IngestionStatus `json:"status"`
	Message string                 `json:"message"`
	Job     *models.IngestionJob   `json:"job"`
	Novel   *models.Novel          `json:"novel"`
	OneShot *models.Chapter        `json:"one_shot"`
}

type novelListResponse struct {
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Items  []models.Novel `json:"items"`
}

func main() {
	global := flag.NewFlagSet("novelhub", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "ingest":
		handleIngest(ctx, client, *baseURL, args[1:])
	case "job":
		handleJob(ctx, client, *baseURL, sub, args[2:])
	case "novels":
		handleNovels(ctx, client, *baseURL, sub, args[2:])
	case "genres":
		handleGenres(ctx, client, *baseURL, sub, args[2:])
	case "oneshots":
		handleOneShots(ctx, client, *baseURL, sub, args[2:])
	case "watch":
		handleWatch(*baseURL, args[1:])
	case "export":
		handleExport(ctx, client, *baseURL, sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleIngest(ctx context.Context, client *http.Client, baseURL string, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	src := fs.String("url", "", "source URL to ingest")
	wait := fs.Bool("wait", false, "poll until the job reaches a terminal status")
	_ = fs.Parse(args)
	if *src == "" {
		log.Fatal("url is required")
	}

	var resp jobResponse
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/api/ingest", map[string]string{"url": *src}, &resp); err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	if resp.Job == nil {
		fmt.Println("already ingested:")
		printJSON(resp)
		return
	}
	printJSON(resp.Job)

	if !*wait || resp.Job == nil {
		return
	}
	for {
		time.Sleep(2 * time.Second)
		var j models.IngestionJob
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/jobs/"+url.PathEscape(resp.Job.ID), nil, &j); err != nil {
			log.Fatalf("poll failed: %v", err)
		}
		log.Printf("job %s: %s", j.ID, j.Status)
		if j.Status.Terminal() {
			printJSON(j)
			if j.Status == models.StatusError {
				os.Exit(1)
			}
			return
		}
	}
}

func handleJob(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "show":
		fs := flag.NewFlagSet("job show", flag.ExitOnError)
		id := fs.String("id", "", "job id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("job id is required")
		}

		var resp models.IngestionJob
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/jobs/"+url.PathEscape(*id), nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: novelhub job show")
	}
}

func handleNovels(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "search":
		fs := flag.NewFlagSet("novels search", flag.ExitOnError)
		query := fs.String("q", "", "search query")
		genre := fs.String("genre", "", "genre slug filter")
		status := fs.String("status", "", "status filter")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/api/novels")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		if *query != "" {
			qv.Set("q", *query)
		}
		if *genre != "" {
			qv.Set("genre", *genre)
		}
		if *status != "" {
			qv.Set("status", *status)
		}
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp novelListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), nil, &resp); err != nil {
			log.Fatalf("search failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("novels show", flag.ExitOnError)
		slug := fs.String("slug", "", "novel slug")
		_ = fs.Parse(args)
		if *slug == "" {
			log.Fatal("novel slug is required")
		}

		var resp models.Novel
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/novels/"+url.PathEscape(*slug), nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "chapters":
		fs := flag.NewFlagSet("novels chapters", flag.ExitOnError)
		slug := fs.String("slug", "", "novel slug")
		number := fs.Int("n", 0, "chapter number (0 lists all)")
		limit := fs.Int("limit", 50, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)
		if *slug == "" {
			log.Fatal("novel slug is required")
		}

		if *number > 0 {
			var resp models.Chapter
			endpoint := fmt.Sprintf("%s/api/novels/%s/chapters/%d", baseURL, url.PathEscape(*slug), *number)
			if err := doJSON(ctx, client, http.MethodGet, endpoint, nil, &resp); err != nil {
				log.Fatalf("chapter failed: %v", err)
			}
			printJSON(resp)
			return
		}

		u, err := url.Parse(baseURL + "/api/novels/" + url.PathEscape(*slug) + "/chapters")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, u.String(), nil, &resp); err != nil {
			log.Fatalf("chapters failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: novelhub novels <search|show|chapters>")
	}
}

func handleGenres(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "list", "":
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/genres", nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("genres show", flag.ExitOnError)
		slug := fs.String("slug", "", "genre slug")
		_ = fs.Parse(args)
		if *slug == "" {
			log.Fatal("genre slug is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/genres/"+url.PathEscape(*slug), nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: novelhub genres <list|show>")
	}
}

func handleOneShots(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "list", "":
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/one-shots", nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("oneshots show", flag.ExitOnError)
		slug := fs.String("slug", "", "one-shot slug")
		_ = fs.Parse(args)
		if *slug == "" {
			log.Fatal("one-shot slug is required")
		}

		var resp models.Chapter
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/api/one-shots/"+url.PathEscape(*slug), nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: novelhub oneshots <list|show>")
	}
}

func handleWatch(baseURL string, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
	_ = fs.Parse(args)

	endpoint := *wsURL
	if endpoint == "" {
		var err error
		endpoint, err = websocketURL(baseURL, "/ws")
		if err != nil {
			log.Fatalf("ws url: %v", err)
		}
	}
	if err := runWebSocket(endpoint); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}

func handleExport(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "json":
		fs := flag.NewFlagSet("export json", flag.ExitOnError)
		out := fs.String("out", "data/novels.json", "output JSON path")
		limit := fs.Int("limit", 200, "max novels to export")
		_ = fs.Parse(args)

		items, err := fetchNovels(ctx, client, baseURL, *limit)
		if err != nil {
			log.Fatalf("export json failed: %v", err)
		}
		if err := writeJSON(*out, items); err != nil {
			log.Fatalf("write json failed: %v", err)
		}
		log.Printf("exported %d novels to %s", len(items), *out)
	case "csv":
		fs := flag.NewFlagSet("export csv", flag.ExitOnError)
		out := fs.String("out", "data/novels.csv", "output CSV path")
		limit := fs.Int("limit", 200, "max novels to export")
		_ = fs.Parse(args)

		items, err := fetchNovels(ctx, client, baseURL, *limit)
		if err != nil {
			log.Fatalf("export csv failed: %v", err)
		}
		if err := writeCSV(*out, items); err != nil {
			log.Fatalf("write csv failed: %v", err)
		}
		log.Printf("exported %d novels to %s", len(items), *out)
	default:
		log.Fatal("usage: novelhub export <json|csv>")
	}
}

func fetchNovels(ctx context.Context, client *http.Client, baseURL string, limit int) ([]models.Novel, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	var out []models.Novel
	offset := 0
	for len(out) < limit {
		pageSize := 50
		if remaining := limit - len(out); remaining < pageSize {
			pageSize = remaining
		}
		u, err := url.Parse(baseURL + "/api/novels")
		if err != nil {
			return nil, err
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", pageSize))
		qv.Set("offset", fmt.Sprintf("%d", offset))
		u.RawQuery = qv.Encode()

		var resp novelListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), nil, &resp); err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			break
		}
		out = append(out, resp.Items...)
		offset += len(resp.Items)
		if offset >= resp.Total {
			break
		}
	}

	return out, nil
}

func writeJSON(path string, items []models.Novel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []models.Novel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"id", "title", "slug", "status", "chapters", "words", "genres", "source_url",
	}); err != nil {
		return err
	}
	for _, item := range items {
		slugs := make([]string, 0, len(item.Genres))
		for _, g := range item.Genres {
			slugs = append(slugs, g.Slug)
		}
		if err := writer.Write([]string{
			fmt.Sprintf("%d", item.ID),
			item.Title,
			item.Slug,
			string(item.Status),
			fmt.Sprintf("%d", item.ChapterCount),
			fmt.Sprintf("%d", item.WordCount),
			strings.Join(slugs, ","),
			item.SourceURL,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func runWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[watch] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("novelhub <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  ingest -url <source> [-wait]")
	fmt.Println("  job show -id <job-id>")
	fmt.Println("  novels search|show|chapters")
	fmt.Println("  genres list|show")
	fmt.Println("  oneshots list|show")
	fmt.Println("  watch")
	fmt.Println("  export json|csv")
}
