// Package browse is a line-oriented terminal client for one notes view.
//
// Plain input lines are search keystrokes; lines starting with ':' are commands.
// Every state published by the controller is drawn when the listing changed.
package browse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/starford/notehub/internal/apperr"
	"github.com/starford/notehub/internal/models"
	"github.com/starford/notehub/internal/notesync"
	"github.com/starford/notehub/internal/querycache"
)

// Gateway is the notes service as used by the browser.
type Gateway interface {
	notesync.Gateway
	GetNote(ctx context.Context, id string) (*models.Note, error)
	DeleteNote(ctx context.Context, id string) (*models.Note, error)
}

// Browser draws a Controller's state to a writer and drives it from input lines.
type Browser struct {
	cache  *querycache.Cache
	gw     Gateway
	ctrl   *notesync.Controller
	logger *slog.Logger

	mu   sync.Mutex
	out  io.Writer
	last view
}

// view is the part of a State that decides whether the listing is redrawn.
type view struct {
	phase    notesync.Phase
	fetching bool
	data     *models.NotesPage
	err      string
	key      querycache.Key
}

// Option configures a Browser.
type Option func(*config)

type config struct {
	ctrlOpts []notesync.Option
	logger   *slog.Logger
}

// WithControllerOptions passes options to the underlying Controller.
func WithControllerOptions(opts ...notesync.Option) Option {
	return func(c *config) {
		c.ctrlOpts = append(c.ctrlOpts, opts...)
	}
}

// WithLogger sets the browser logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New creates a Browser for the view filtered by tag, drawing to out.
func New(cache *querycache.Cache, gw Gateway, tag models.TagFilter, out io.Writer, opts ...Option) *Browser {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &Browser{cache: cache, gw: gw, out: out, logger: cfg.logger}
	ctrlOpts := append([]notesync.Option{
		notesync.WithLogger(cfg.logger),
		notesync.WithRenderer(b.render),
		notesync.WithNotifier(notesync.NotifierFunc(b.notify)),
	}, cfg.ctrlOpts...)
	b.ctrl = notesync.New(cache, gw, tag, ctrlOpts...)
	return b
}

// Controller returns the controller driven by the browser.
func (b *Browser) Controller() *notesync.Controller { return b.ctrl }

// Run mounts the view and processes lines from in until ":quit", end of input
// or ctx is done. The view is unmounted on return.
func (b *Browser) Run(ctx context.Context, in io.Reader) error {
	b.ctrl.Mount()
	defer b.ctrl.Unmount()
	b.printf("%s\n", helpLine)

	lines := make(chan string)
	errc := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("browse: read input: %w", err)
			}
			return nil
		case line := <-lines:
			if quit := b.Exec(ctx, line); quit {
				return nil
			}
		}
	}
}

const helpLine = "type to search · :page N · :next · :prev · :tag NAME|all · :new TITLE | CONTENT | TAG · :retry · :show ID · :rm ID · :quit"

// Exec handles one input line and reports whether the browser should quit.
func (b *Browser) Exec(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, ":") {
		b.ctrl.TypeSearch(strings.TrimSpace(line))
		return false
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "q", "quit":
		return true
	case "next":
		b.ctrl.NextPage()
	case "prev":
		b.ctrl.PrevPage()
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			b.printf("page must be a positive number\n")
			return false
		}
		b.ctrl.SetPage(n)
	case "tag":
		if arg == "" {
			b.printf("usage: :tag NAME|all\n")
			return false
		}
		if arg == "all" {
			b.ctrl.SetTag(models.AnyTag())
		} else {
			b.ctrl.SetTag(models.WithTag(arg))
		}
	case "retry":
		b.ctrl.Refetch()
	case "new":
		b.create(ctx, arg)
	case "show":
		b.show(ctx, arg)
	case "rm":
		b.remove(ctx, arg)
	case "help":
		b.printf("%s\n", helpLine)
	default:
		b.printf("unknown command %q\n", cmd)
	}
	return false
}

// parseDraft reads "TITLE | CONTENT | TAG". Missing parts keep their defaults.
func parseDraft(arg string) models.NoteDraft {
	d := models.DefaultDraft()
	parts := strings.SplitN(arg, "|", 3)
	d.Title = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		d.Content = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		if tag := strings.TrimSpace(parts[2]); tag != "" {
			d.Tag = tag
		}
	}
	return d
}

func (b *Browser) create(ctx context.Context, arg string) {
	d := parseDraft(arg)
	if err := d.Validate(); err != nil {
		b.printFields(apperr.NewValidation(err))
		return
	}

	b.ctrl.OpenCreate()
	note, err := b.ctrl.SubmitCreate(ctx, d)
	if err != nil {
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			b.printFields(ve)
			return
		}
		b.printf("could not create note: %v\n", err)
		return
	}
	b.printf("created %s %q\n", note.ID, note.Title)
}

func (b *Browser) show(ctx context.Context, id string) {
	if id == "" {
		b.printf("usage: :show ID\n")
		return
	}
	n, err := b.gw.GetNote(ctx, id)
	if err != nil {
		b.printf("could not load note %s: %v\n", id, describe(err))
		return
	}
	b.printf("── %s [%s]\n%s\n", n.Title, n.Tag, n.Content)
}

func (b *Browser) remove(ctx context.Context, id string) {
	if id == "" {
		b.printf("usage: :rm ID\n")
		return
	}
	n, err := b.gw.DeleteNote(ctx, id)
	if err != nil {
		b.printf("could not delete note %s: %v\n", id, describe(err))
		return
	}
	b.logger.Info("browse: note deleted", slog.String("id", n.ID))
	b.cache.Invalidate(querycache.InNamespace(querycache.Namespace))
	b.printf("deleted %s %q\n", n.ID, n.Title)
}

func describe(err error) string {
	var se *apperr.ServiceError
	if errors.As(err, &se) && se.NotFound() {
		return "not found"
	}
	return err.Error()
}

func (b *Browser) printFields(ve *apperr.ValidationError) {
	names := make([]string, 0, len(ve.Fields))
	for name := range ve.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			b.printf("  %s\n", ve.Fields[name])
			continue
		}
		b.printf("  %s: %s\n", name, ve.Fields[name])
	}
}

func (b *Browser) notify(msg string) {
	b.printf("! %s\n", msg)
}

func (b *Browser) render(st notesync.State) {
	v := view{phase: st.Phase, fetching: st.Fetching, data: st.Data, key: st.Key}
	if st.Err != nil {
		v.err = st.Err.Error()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if v == b.last {
		return
	}
	b.last = v
	b.draw(st)
}

// draw writes st; b.mu must be held.
func (b *Browser) draw(st notesync.State) {
	w := b.out
	search := st.Search
	if search == "" {
		search = "—"
	}
	fmt.Fprintf(w, "\n[%s] search: %s\n", st.Tag, search)

	switch st.Phase {
	case notesync.PhaseIdle, notesync.PhaseLoading:
		fmt.Fprintln(w, "loading…")
		return
	case notesync.PhaseError:
		fmt.Fprintf(w, "could not load notes: %v (:retry)\n", st.Err)
		if st.Data == nil {
			return
		}
	}

	for _, n := range st.Notes() {
		fmt.Fprintf(w, "  %-12s %-10s %s\n", n.ID, n.Tag, n.Title)
	}
	if st.ShowPagination() {
		fmt.Fprintf(w, "page %d of %d\n", st.Page, st.TotalPages)
	}
	if st.Fetching {
		fmt.Fprintln(w, "refreshing…")
	}
}

func (b *Browser) printf(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.out, format, args...)
}
