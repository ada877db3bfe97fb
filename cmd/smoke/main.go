// Command smoke drives a running API through login, a task round trip and the
// audit log, exiting non-zero on the first unexpected response.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/google/uuid"

	"taskdesk.org/internal/audit"
	"taskdesk.org/internal/obs"
	"taskdesk.org/internal/tasks"
)

type client struct {
	base string
	http *http.Client
}

func main() {
	log := obs.Logger()

	base := envOr("TASKDESK_SMOKE_URL", "http://localhost:8080") + "/api/v1"
	email := envOr("TASKDESK_SMOKE_EMAIL", "admin@example.com")
	password := envOr("TASKDESK_SMOKE_PASSWORD", "admin123")

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.WithError(err).Fatal("cookie jar")
	}
	c := client{base: base, http: &http.Client{Jar: jar, Timeout: 5 * time.Second}}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, http.StatusOK, nil); err != nil {
		log.WithError(err).Fatal("login")
	}

	title := "smoke-" + uuid.NewString()[:8]
	var created tasks.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", map[string]any{"title": title, "priority": "high"}, http.StatusCreated, &created); err != nil {
		log.WithError(err).Fatal("create task")
	}

	var fetched tasks.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+created.ID, nil, http.StatusOK, &fetched); err != nil {
		log.WithError(err).Fatal("get task")
	}
	if fetched.Title != title || fetched.Status != tasks.StatusPending {
		log.Fatalf("unexpected task: title=%q status=%q", fetched.Title, fetched.Status)
	}

	if err := c.do(ctx, http.MethodDelete, "/tasks/"+created.ID, nil, http.StatusOK, nil); err != nil {
		log.WithError(err).Fatal("delete task")
	}
	if err := c.do(ctx, http.MethodGet, "/tasks/"+created.ID, nil, http.StatusNotFound, nil); err != nil {
		log.WithError(err).Fatal("deleted task still visible")
	}

	// Audit writes are asynchronous; poll briefly for the create entry.
	var found bool
	for attempt := 0; attempt < 10 && !found; attempt++ {
		var entries []audit.Entry
		if err := c.do(ctx, http.MethodGet, "/audit-logs?resource=tasks", nil, http.StatusOK, &entries); err != nil {
			log.WithError(err).Fatal("list audit logs")
		}
		for _, e := range entries {
			if e.Action == audit.ActionCreate && e.ResourceID == nil && e.StatusCode == http.StatusCreated {
				found = true
				break
			}
		}
		if !found {
			time.Sleep(200 * time.Millisecond)
		}
	}
	if !found {
		log.Fatal("audit log has no task create entry")
	}

	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, http.StatusOK, nil); err != nil {
		log.WithError(err).Fatal("logout")
	}

	log.WithField("task_id", created.ID).Info("smoke test passed")
}

func (c client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d (want %d): %s", method, path, resp.StatusCode, want, raw)
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
