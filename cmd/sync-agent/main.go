// sync-agent reads the local Calibre catalog and pushes the recent
// books to a remote inkshelf server. Meant to run from cron or a
// systemd timer on the machine that owns the library.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"inkshelf/internal/catalog"
	"inkshelf/pkg/database"
	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "inkshelf server base URL")
	token := flag.String("token", "", "sync bearer token")
	path := flag.String("calibre", "", "path to metadata.db (default: discover)")
	limit := flag.Int("limit", 50, "max books to push")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	logging.Init("info", "console")
	log := logging.For("sync-agent")

	if *token == "" {
		log.Fatal().Msg("a sync token is required (-token)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	raws, err := readCatalog(ctx, *path, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("catalog read failed")
	}
	log.Info().Int("books", len(raws)).Msg("catalog read complete")

	synced, err := pushBooks(ctx, *server, *token, raws)
	if err != nil {
		log.Fatal().Err(err).Msg("push failed")
	}
	log.Info().Int("synced", synced).Str("server", *server).Msg("push complete")
}

func readCatalog(ctx context.Context, override string, limit int) ([]models.RawBook, error) {
	path := database.Discover(override)
	if path == "" {
		return nil, fmt.Errorf("no calibre catalog found (tried override %q and candidate paths)", override)
	}

	db, err := database.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()

	return catalog.NewRepo(db).Recent(ctx, limit)
}

func pushBooks(ctx context.Context, server, token string, raws []models.RawBook) (int, error) {
	payload := struct {
		Books  []models.RawBook `json:"books"`
		Source string           `json:"source"`
	}{
		Books:  raws,
		Source: models.SourceCatalog,
	}
	if payload.Books == nil {
		payload.Books = []models.RawBook{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/sync", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s/sync: %w", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(b))
	}

	var out struct {
		Synced int `json:"synced"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.Synced, nil
}
