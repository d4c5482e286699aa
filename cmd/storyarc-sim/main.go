// storyarc-sim drives the arc engine through scripted chat sessions,
// standing in for a real chat frontend. Each session gets its own
// in-memory host and signal bus; settings, arc state, the catalog and
// the generator are shared, the way one install serves many tabs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vampirenirmal/storyarc/internal/arc"
	"github.com/vampirenirmal/storyarc/internal/catalog"
	"github.com/vampirenirmal/storyarc/internal/config"
	"github.com/vampirenirmal/storyarc/internal/engine"
	"github.com/vampirenirmal/storyarc/internal/host"
	"github.com/vampirenirmal/storyarc/internal/signal"
	"github.com/vampirenirmal/storyarc/internal/storage"
	"github.com/vampirenirmal/storyarc/internal/textgen"
)

var (
	sessions  = flag.Int("sessions", 3, "number of scripted sessions to run concurrently")
	arcLength = flag.Int("arc-length", 6, "steps per story arc")
	dataDir   = flag.String("data", "", "persist state under this directory (default: in-memory)")
	debug     = flag.Bool("debug", false, "verbose logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

type simEnv struct {
	settings *config.SettingsStore
	states   *arc.Store
	library  *catalog.Library
	gen      textgen.Generator
	limits   config.Limits
	logger   *slog.Logger
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var kv storage.Store = storage.NewMemStore()
	if *dataDir != "" {
		kv = storage.NewFileStore(*dataDir)
		logger.Info("persisting state", "dir", *dataDir)
	}

	settings, err := config.NewSettingsStore(kv)
	if err != nil {
		return fmt.Errorf("creating settings store: %w", err)
	}
	if err := settings.Load(ctx); err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if err := settings.Update(ctx, func(s *config.Settings) {
		s.DefaultArcLength = *arcLength
	}); err != nil {
		return fmt.Errorf("updating settings: %w", err)
	}
	defer func() {
		if err := settings.Flush(context.Background()); err != nil {
			logger.Warn("flushing settings failed", "error", err)
		}
	}()

	library := catalog.NewLibrary(kv, catalog.WithLibraryLogger(logger))
	if err := library.Load(ctx); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	if cfg.Paths.BundleDir != "" {
		stats, err := library.ImportDir(ctx, cfg.Paths.BundleDir)
		if err != nil {
			logger.Warn("importing bundles failed", "dir", cfg.Paths.BundleDir, "error", err)
		} else {
			logger.Info("imported bundles",
				"dir", cfg.Paths.BundleDir,
				"added", stats.Added,
				"updated", stats.Updated)
		}
	}

	if *dataDir != "" {
		watcher, err := catalog.NewWatcher(library, filepath.Join(*dataDir, "library"),
			catalog.WithWatcherLogger(logger),
			catalog.WithOnReload(func() {
				logger.Info("catalog changed on disk")
			}))
		if err != nil {
			return fmt.Errorf("watching catalog: %w", err)
		}
		defer watcher.Close()
	}

	states, err := arc.NewStore(kv,
		arc.WithStoreLogger(logger),
		arc.WithDefaults(func() arc.Defaults {
			set := settings.Current()
			return arc.Defaults{
				ArcLength:     set.DefaultArcLength,
				StoryTypeID:   set.DefaultStoryTypeID,
				AuthorStyleID: set.DefaultAuthorStyleID,
			}
		}),
		arc.WithNotice(func(text string) {
			logger.Warn("user notice", "text", text)
		}))
	if err != nil {
		return fmt.Errorf("creating state store: %w", err)
	}

	gen, err := textgen.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}
	logger.Info("simulation starting",
		"sessions", *sessions,
		"arc_length", *arcLength,
		"provider", cfg.Generation.Provider)

	env := &simEnv{
		settings: settings,
		states:   states,
		library:  library,
		gen:      gen,
		limits:   cfg.Limits,
		logger:   logger,
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 1; i <= *sessions; i++ {
		g.Go(func() error {
			return runSession(ctx, i, env)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("simulation complete", "sessions", *sessions)
	return nil
}

var userLines = []string{
	"Where does the road lead from here?",
	"Tell me what the stranger wants.",
	"We should press on before nightfall.",
	"Something about this place feels wrong.",
	"What do we do now?",
}

var assistantLines = []string{
	"The road bends toward a walled town whose gates hang open.",
	"The stranger lays a worn map on the table and waits.",
	"Night falls early under the pines; a lantern flickers ahead.",
	"Inside the hall, every chair faces a cold hearth.",
	"A bell tolls somewhere below the street.",
	"The answer arrives with the morning post, sealed in grey wax.",
}

// runSession plays one conversation from first greeting to the end of
// its arc: a conversation switch with replayed history, selections, a
// mid-arc swipe, and the post-arc narrations.
func runSession(ctx context.Context, n int, env *simEnv) error {
	convID := fmt.Sprintf("conversation-%d", n)
	logger := env.logger.With("session", n)

	h := host.NewMemoryHost()
	ctrl, err := engine.New(engine.Deps{
		Settings:   env.settings,
		States:     env.states,
		Library:    env.library,
		Generator:  env.gen,
		Injections: h,
		Messages:   h,
		History:    h,
	},
		engine.WithLogger(logger),
		engine.WithLimits(env.limits),
		engine.WithLoadGrace(50*time.Millisecond),
		engine.WithSettleDelay(20*time.Millisecond))
	if err != nil {
		return fmt.Errorf("session %d: %w", n, err)
	}

	bus := signal.NewBus(signal.WithBusLogger(logger))
	if err := ctrl.Attach(bus); err != nil {
		return fmt.Errorf("session %d: %w", n, err)
	}

	seq := 0
	say := func(isUser bool, text string) error {
		seq++
		id := fmt.Sprintf("%s-m%d", convID, seq)
		if err := h.Append(ctx, convID, host.Message{ID: id, IsUser: isUser, Text: text}); err != nil {
			return err
		}
		bus.Publish(ctx, signal.Signal{
			Kind:           signal.MessageReceived,
			ConversationID: convID,
			MessageID:      id,
			IsUser:         isUser,
		})
		return nil
	}

	// switch in; the greeting replays while the load grace is active
	bus.Publish(ctx, signal.Signal{Kind: signal.ConversationChanged, ConversationID: convID})
	if err := say(false, "A stranger waves you over to a corner table."); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)

	ctrl.Reset(ctx, convID)

	stories := env.library.StoryTypes()
	styles := env.library.AuthorStyles()
	if len(stories) == 0 || len(styles) == 0 {
		return fmt.Errorf("session %d: catalog is empty", n)
	}
	story := stories[n%len(stories)]
	style := styles[n%len(styles)]
	if err := ctrl.SelectStoryType(ctx, convID, story.ID); err != nil {
		return fmt.Errorf("session %d: %w", n, err)
	}
	if err := ctrl.SelectAuthorStyle(ctx, convID, style.ID); err != nil {
		return fmt.Errorf("session %d: %w", n, err)
	}
	if err := ctrl.SetArcLength(ctx, convID, *arcLength); err != nil {
		return fmt.Errorf("session %d: %w", n, err)
	}
	logger.Info("session cast", "story_type", story.Name, "author_style", style.Name)

	maxTurns := *arcLength*2 + 6
	swiped := false
	for turn := 0; !env.states.Get(ctx, convID).Complete(); turn++ {
		if turn >= maxTurns {
			return fmt.Errorf("session %d: arc never completed after %d turns", n, maxTurns)
		}

		if err := say(true, userLines[turn%len(userLines)]); err != nil {
			return err
		}
		bus.Publish(ctx, signal.Signal{Kind: signal.GenerationStarting, ConversationID: convID})
		if err := say(false, assistantLines[turn%len(assistantLines)]); err != nil {
			return err
		}

		st := env.states.Get(ctx, convID)
		if !swiped && *arcLength >= 4 && st.CurrentStep == *arcLength/2 {
			swiped = true
			logger.Info("mid-arc guidance", "preview", oneLine(ctrl.Preview(ctx, convID), 100))
			bus.Publish(ctx, signal.Signal{
				Kind:           signal.MessageSwiped,
				ConversationID: convID,
				Reason:         signal.ReasonSwipe,
			})
			if err := say(false, "The scene settles differently this time, but lands in the same place."); err != nil {
				return err
			}
		}
	}

	st := env.states.Get(ctx, convID)
	logger.Info("arc complete",
		"step", st.CurrentStep,
		"epilogue_shown", st.EpilogueShown,
		"summary_shown", st.SummaryShown)

	for _, m := range h.History(convID) {
		if m.DisplayName == "Narrator" {
			logger.Info("narration", "text", oneLine(m.Text, 100))
		}
	}
	if inj, ok := h.Injection("storyarc"); ok {
		logger.Info("closing injection", "text", oneLine(inj.Text, 100))
	}

	// a completed, satisfied arc makes this a no-op
	ctrl.RetryPostArc(ctx, convID)
	return nil
}

// oneLine flattens and truncates text for log output.
func oneLine(s string, max int) string {
	flat := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' {
			r = ' '
		}
		flat = append(flat, r)
	}
	if len(flat) > max {
		return string(flat[:max]) + "..."
	}
	return string(flat)
}
