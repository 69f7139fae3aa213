package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZehenForever/eqrespawn/internal/api"
	"github.com/ZehenForever/eqrespawn/internal/catalog"
	"github.com/ZehenForever/eqrespawn/internal/command"
	"github.com/ZehenForever/eqrespawn/internal/config"
	"github.com/ZehenForever/eqrespawn/internal/countdown"
	"github.com/ZehenForever/eqrespawn/internal/discord"
	"github.com/ZehenForever/eqrespawn/internal/hub"
	"github.com/ZehenForever/eqrespawn/internal/logging"
	"github.com/ZehenForever/eqrespawn/internal/model"
	"github.com/ZehenForever/eqrespawn/internal/store"
	"github.com/ZehenForever/eqrespawn/internal/tail"
	"github.com/ZehenForever/eqrespawn/internal/timeparse"
	"github.com/ZehenForever/eqrespawn/internal/window"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("respawnd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "path to config.yaml (default: ./config.yaml if present)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}

	logging.Init(cfg.Logging)
	log := logging.With("respawnd")

	raws, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Catalog.Path).Msg("load catalog")
		return 1
	}

	engine := window.New()
	loaded := engine.LoadDefinitions(raws)
	engine.SetAliasOverrides(cfg.AliasOverrides)
	log.Info().Int("mobs", loaded).Str("catalog", cfg.Catalog.Path).Msg("catalog loaded")

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Store.Path).Msg("open store")
		return 1
	}
	defer db.Close()

	state, err := db.Load()
	if err != nil {
		log.Error().Err(err).Msg("load state")
		return 1
	}
	if n := engine.LoadState(state.Kills); n > 0 {
		log.Info().Int("kills", n).Msg("state restored")
	}

	timers := countdown.New(0)
	defer timers.Stop()

	wsHub := hub.New(logging.With("hub"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persist asynchronously, coalescing bursts into one write.
	saveCh := make(chan struct{}, 1)
	go saver(ctx, db, engine, saveCh, log)

	cancelSnap := engine.Subscribe(func(snap window.Snapshot) {
		wsHub.Broadcast(hub.TypeSnapshot, snap)
		select {
		case saveCh <- struct{}{}:
		default:
		}
	})
	defer cancelSnap()

	cancelTimers := timers.Subscribe(func(active []countdown.Timer) {
		wsHub.Broadcast(hub.TypeTimers, active)
	})
	defer cancelTimers()

	var notifier *discord.Notifier
	if cfg.Discord.Enabled {
		notifier = discord.NewNotifier(cfg.Discord.WebhookURL, cfg.Discord.Username, cfg.Discord.AvatarURL, logging.With("discord"))
	}
	cancelKills := engine.SubscribeKills(func(def model.MobDefinition, ts time.Time) {
		wsHub.Broadcast(hub.TypeKill, map[string]any{"mobId": def.ID, "name": def.Name, "killedAt": ts})
		if notifier != nil {
			go func() {
				sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := notifier.Send(sctx, discord.WebhookPayload{Embeds: []discord.Embed{discord.KillEmbed(def, ts)}}); err != nil {
					log.Warn().Err(err).Str("mob", def.ID).Msg("discord notify")
				}
			}()
		}
	})
	defer cancelKills()

	if cfg.Logs.Dir != "" {
		if err := startTailing(ctx, cfg, engine, timers, log); err != nil {
			log.Error().Err(err).Str("dir", cfg.Logs.Dir).Msg("start tailer")
			return 1
		}
	}

	// Periodic snapshot push so countdowns on connected clients stay honest
	// even when nothing dies.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Refresh.Seconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				wsHub.Broadcast(hub.TypeSnapshot, engine.ComputeSnapshot(time.Now()))
			}
		}
	}()

	if cfg.Store.ReloadSeconds > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Store.ReloadSeconds) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					st, err := db.Load()
					if err != nil {
						log.Warn().Err(err).Msg("reload state")
						continue
					}
					engine.LoadState(st.Kills)
				}
			}
		}()
	}

	handler := api.NewHandler(engine, timers, wsHub, logging.With("api"))
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutCtx)
		if err := db.Save(engine.SerializeState()); err != nil {
			log.Warn().Err(err).Msg("final save")
		}
		log.Info().Msg("shutdown complete")
		return 0
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			return 1
		}
		return 0
	}
}

// saver writes engine state to the store when poked, at most once per second.
func saver(ctx context.Context, db *store.Store, engine *window.Engine, poke <-chan struct{}, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-poke:
		}
		if err := db.Save(engine.SerializeState()); err != nil {
			log.Warn().Err(err).Msg("save state")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func startTailing(ctx context.Context, cfg *config.Config, engine *window.Engine, timers *countdown.Engine, log zerolog.Logger) error {
	watcher, err := tail.New(tail.Options{
		Dir:            cfg.Logs.Dir,
		Extensions:     cfg.Logs.Extensions,
		Prefixes:       cfg.Logs.Prefixes,
		RescanInterval: time.Duration(cfg.Logs.RescanSeconds) * time.Second,
		Logger:         logging.With("tail"),
	})
	if err != nil {
		return err
	}

	triggers := make(map[string]countdown.Trigger, len(cfg.Triggers))
	tailTriggers := make([]tail.Trigger, 0, len(cfg.Triggers))
	for _, tc := range cfg.Triggers {
		pat := model.CompilePattern(tc.Pattern)
		triggers[tc.ID] = countdown.Trigger{
			ID:          tc.ID,
			Label:       tc.Label,
			Color:       tc.Color,
			Duration:    time.Duration(tc.Seconds) * time.Second,
			Pattern:     pat,
			RestartMode: countdown.RestartMode(tc.RestartMode),
		}
		tailTriggers = append(tailTriggers, tail.Trigger{ID: tc.ID, Pattern: pat})
	}
	watcher.SetTriggers(tailTriggers)

	go func() {
		if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("tailer stopped")
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-watcher.Lines():
				if !ok {
					return
				}
				if who, ok := tail.CharacterName(batch.Path); ok {
					log.Debug().Str("character", who).Int("lines", len(batch.Lines)).Msg("log batch")
				}
				for _, line := range batch.Lines {
					ingestLine(engine, line)
				}
			case m, ok := <-watcher.Matches():
				if !ok {
					return
				}
				if tr, found := triggers[m.TriggerID]; found {
					timers.AddTimer(tr, m.At)
				}
			}
		}
	}()
	return nil
}

// ingestLine routes one raw log line. An embedded ToD command wins over the
// passive slain-message scan; the line's own timestamp anchors relative
// expressions like "20 minutes ago".
func ingestLine(engine *window.Engine, line string) {
	lineAt, hasTime := command.LineTime(line, time.Local)
	ref := time.Now()
	if hasTime {
		ref = lineAt
	}

	if cmd, ok := command.Extract(line, engine.Aliases()); ok {
		ts := ref
		if cmd.TimeText != "" && !cmd.ExplicitNow {
			resolved, ok := timeparse.Resolve(cmd.TimeText, ref, time.Now())
			if !ok {
				return
			}
			ts = resolved
		}
		switch cmd.Kind {
		case command.KindQuake:
			engine.ApplyQuake(ts)
		case command.KindMob:
			if cmd.MobID != "" {
				engine.RecordKill(cmd.MobID, ts)
			}
		}
		return
	}

	engine.IngestLogLine(line, ref)
}
