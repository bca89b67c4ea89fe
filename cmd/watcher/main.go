// Command watcher is a subscriber-side companion to the server: it keeps a
// local employee cache in sync by consuming the notification stream and logs
// every change it merges. On every (re)connect it refetches the full roster,
// because the stream has no replay.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"talenttrack/internal/platform/logger"
	"talenttrack/pkg/reconcile"
	"talenttrack/pkg/stream"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

func main() {
	server := flag.String("server", "http://localhost:8080", "base URL of the tracker server")
	flag.Parse()

	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &watcher{
		base:   strings.TrimRight(*server, "/"),
		client: &http.Client{},
		cache:  reconcile.NewCache(log),
		logger: log,
	}
	if err := w.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Info("watcher stopped")
}

type watcher struct {
	base   string
	client *http.Client
	cache  *reconcile.Cache
	logger *slog.Logger
}

// run connects, streams until the connection drops, and reconnects with
// exponential backoff. Each successful connect resets the backoff.
func (w *watcher) run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		err := w.connectAndStream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("stream disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// connectAndStream opens the event stream, then seeds the cache from a full
// refetch. Seeding after the stream is open means changes committed between
// the two requests arrive as notifications instead of falling into a gap.
func (w *watcher) connectAndStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.base+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned %s", resp.Status)
	}

	if err := w.seed(ctx); err != nil {
		return fmt.Errorf("seed cache: %w", err)
	}
	w.logger.Info("connected", "employees", w.cache.Len())

	return w.consume(resp.Body)
}

// seed replaces the whole cache from the list and latest-note endpoints.
func (w *watcher) seed(ctx context.Context) error {
	var employees []stream.Employee
	if err := w.getJSON(ctx, "/api/employees", &employees); err != nil {
		return err
	}
	var latest map[string]stream.Note
	if err := w.getJSON(ctx, "/api/notes/latest", &latest); err != nil {
		return err
	}
	notes := make([]stream.Note, 0, len(latest))
	for _, n := range latest {
		notes = append(notes, n)
	}
	w.cache.Reset(employees, notes)
	return nil
}

func (w *watcher) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// consume reads the event stream line by line. Comment lines are keep-alives;
// an empty line terminates one event. Only the data payload matters here, the
// event name is repeated inside it as the notification kind.
func (w *watcher) consume(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// keep-alive
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if data.Len() > 0 {
				w.dispatch(data.String())
				data.Reset()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (w *watcher) dispatch(payload string) {
	if payload == "connected" {
		return
	}
	var n stream.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		w.logger.Warn("undecodable notification", "error", err)
		return
	}
	w.cache.Apply(n)
	w.report(n)
}

// report logs what the merge just did, in terms a roster operator cares
// about.
func (w *watcher) report(n stream.Notification) {
	switch n.Kind {
	case stream.KindCreated, stream.KindUpdated, stream.KindTransitioned:
		if n.Employee == nil {
			return
		}
		w.logger.Info(string(n.Kind),
			"employee_id", n.Employee.ID,
			"name", n.Employee.Name,
			"status", n.Employee.CurrentStage,
		)
	case stream.KindBulkTransitioned:
		stages := make(map[string]int)
		for _, e := range n.Employees {
			stages[string(e.CurrentStage)]++
		}
		w.logger.Info(string(n.Kind), "employees", len(n.Employees), "stages", stages)
	case stream.KindDeleted:
		w.logger.Info(string(n.Kind), "employee_id", n.EmployeeID)
	case stream.KindNoteAttached:
		if n.Note == nil {
			return
		}
		w.logger.Info(string(n.Kind), "employee_id", n.Note.EmployeeID, "note_id", n.Note.ID)
	case stream.KindNoteDetached:
		w.logger.Info(string(n.Kind), "employee_id", n.EmployeeID, "note_id", n.NoteID)
	default:
		w.logger.Warn("unknown notification kind", "kind", n.Kind)
	}
}
